package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/theplant/filtergroup/api"
	"github.com/theplant/filtergroup/config"
	"github.com/theplant/filtergroup/gormsearch"
	"github.com/theplant/filtergroup/memsearch"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logger.NewLogger(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error.", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("server stopped.")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	backend, err := newBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}

	complexity, err := cfg.Search.ComplexityLimits()
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Config{
		Addr:         cfg.Addr,
		Modules:      cfg.Modules,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		Complexity:   complexity,
		CursorSecret: cfg.Search.CursorSecret,
		Transform:    cfg.Search.KeyTransform(),
		Pagination:   cfg.Search.Pagination,
	}, backend, logger)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

func newBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (api.Backend, error) {
	switch cfg.Storage.Type {
	case config.StoragePostgres:
		level, err := cfg.Logger.GormLevel()
		if err != nil {
			return nil, err
		}
		db, err := gormsearch.Open(cfg.Storage.DSN, level)
		if err != nil {
			return nil, err
		}
		store, err := gormsearch.New(db, gormsearch.WithCacheSize(cfg.Storage.CacheSize))
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		logger.Info("using postgres storage")
		return store, nil

	default:
		store := memsearch.New()
		if cfg.Storage.Fixtures != "" {
			if err := store.Reload(cfg.Storage.Fixtures); err != nil {
				return nil, err
			}
			go func() {
				if err := store.Watch(ctx, cfg.Storage.Fixtures, logger); err != nil {
					logger.Error("fixtures watcher stopped.", "error", err)
				}
			}()
		}
		logger.Info("using memory storage", "fixtures", cfg.Storage.Fixtures)
		return store, nil
	}
}

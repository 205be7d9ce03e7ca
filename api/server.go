package api

import (
	"context"
	"crypto/cipher"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/cursor"
	"github.com/theplant/filtergroup/document"
	"github.com/theplant/filtergroup/filter"
)

// Version is reported by the module health endpoints.
const Version = "1.0.0"

const shutdownTimeout = 10 * time.Second

const (
	PaginationOffset = "offset"
	// PaginationKeyset cursors hold the (createdAt, id) key of a document,
	// so pages stay stable while documents are inserted.
	PaginationKeyset = "keyset"
)

// Backend stores the documents searched by the server.
type Backend interface {
	Finder(module string) cursor.OffsetFinder[*document.Document]
	KeysetFinder(module string) cursor.KeysetFinder[*document.Document, document.Key]
	Ping(ctx context.Context) error
}

type Config struct {
	Addr         string
	Modules      []string
	DefaultLimit int
	MaxLimit     int
	// Complexity bounds incoming filters. Nil accepts any filter.
	Complexity *filter.ComplexityLimits
	// CursorSecret, when set, encrypts cursors and binds them to their filter.
	CursorSecret string
	// Transform rewrites filter keys before they reach the backend.
	Transform filter.TransformFunc
	// Pagination selects the cursor kind. Empty means PaginationOffset.
	Pagination string
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("api server address is required")
	}
	if len(c.Modules) == 0 {
		return errors.New("at least one module is required")
	}
	if c.DefaultLimit < 0 || c.MaxLimit < c.DefaultLimit {
		return errors.New("limits must satisfy 0 <= default limit <= max limit")
	}
	switch c.Pagination {
	case "", PaginationOffset, PaginationKeyset:
	default:
		return errors.Errorf("invalid pagination: %s", c.Pagination)
	}
	return nil
}

type Server struct {
	cfg       Config
	logger    *slog.Logger
	backend   Backend
	searchers map[string]filtergroup.Searcher[*document.Document]
}

func NewServer(cfg Config, backend Backend, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, errors.New("backend is required")
	}

	var aead cipher.AEAD
	if cfg.CursorSecret != "" {
		var err error
		if aead, err = cursor.NewGCMFromSecret(cfg.CursorSecret); err != nil {
			return nil, err
		}
	}

	hooks := []func(next filtergroup.Searcher[*document.Document]) filtergroup.Searcher[*document.Document]{
		filtergroup.EnsureLimits[*document.Document](cfg.DefaultLimit, cfg.MaxLimit),
	}
	if cfg.Transform != nil {
		hooks = append(hooks, filtergroup.TransformFilter[*document.Document](cfg.Transform))
	}
	hooks = append(hooks, filtergroup.EnsureComplexity[*document.Document](cfg.Complexity))

	searchers := make(map[string]filtergroup.Searcher[*document.Document], len(cfg.Modules))
	for _, module := range cfg.Modules {
		var apply filtergroup.ApplyCursorsFunc[*document.Document]
		if cfg.Pagination == PaginationKeyset {
			apply = cursor.NewKeysetAdapter(backend.KeysetFinder(module), (*document.Document).Key)
		} else {
			apply = cursor.NewOffsetAdapter(backend.Finder(module))
		}
		if aead != nil {
			apply = cursor.GCM[*document.Document](aead)(apply)
		} else {
			apply = cursor.Base64(apply)
		}
		searchers[module] = filtergroup.New(apply, hooks...)
	}

	return &Server{
		cfg:       cfg,
		logger:    logger,
		backend:   backend,
		searchers: searchers,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheckHandler)
	mux.HandleFunc("GET /api/v1/health", s.healthCheckHandler)
	mux.HandleFunc("GET /api/v1/modules", s.listModulesHandler)
	mux.HandleFunc("GET /api/v1/{module}", s.listDocumentsHandler)
	mux.HandleFunc("GET /api/v1/{module}/{$}", s.listDocumentsHandler)
	mux.HandleFunc("GET /api/v1/{module}/health", s.moduleHealthHandler)
	mux.HandleFunc("POST /api/v1/{module}/search", s.searchHandler)

	return s.recoverPanicMiddleware(s.requestLoggerMiddleware(s.corsMiddleware(mux)))
}

func (s *Server) modules() []string {
	return slices.Clone(s.cfg.Modules)
}

// Serve listens on the configured address until ctx is done, then shuts the
// server down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info("shutting down server", "addr", s.cfg.Addr)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(sctx)
	}()

	s.logger.Info("starting server", "addr", s.cfg.Addr, "modules", len(s.cfg.Modules), "pagination", lo.CoalesceOrEmpty(s.cfg.Pagination, PaginationOffset))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}

	if err := <-shutdownErr; err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

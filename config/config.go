package config

import (
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm/logger"

	"github.com/theplant/filtergroup/filter"
)

const (
	EnvDSN  = "FILTERGROUP_DSN"
	EnvAddr = "FILTERGROUP_ADDR"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const (
	PaginationOffset = "offset"
	PaginationKeyset = "keyset"
)

// DefaultModules are the data sets served when none are configured.
var DefaultModules = []string{
	"threat-intelligence",
	"incident-response",
	"vulnerability-management",
	"ioc-management",
	"threat-actors",
	"threat-feeds",
	"siem",
	"threat-hunting",
	"risk-assessment",
	"collaboration",
	"reporting",
	"malware-analysis",
	"dark-web",
	"compliance",
	"automation",
}

type Config struct {
	Addr    string        `yaml:"addr"`
	Logger  LoggerConfig  `yaml:"logger"`
	Storage StorageConfig `yaml:"storage"`
	Search  SearchConfig  `yaml:"search"`
	Modules []string      `yaml:"modules"`
}

type LoggerConfig struct {
	Level string `yaml:"level"`
	Type  string `yaml:"type"`
	// SQLLevel is the gorm log level: silent, error, warn or info.
	SQLLevel string `yaml:"sql_level"`
}

type StorageConfig struct {
	Type string `yaml:"type"`
	DSN  string `yaml:"dsn"`
	// Fixtures is a JSON file of documents loaded by the memory storage and
	// reloaded whenever it changes.
	Fixtures string `yaml:"fixtures"`
	// CacheSize is the number of compiled filters kept by the postgres storage.
	CacheSize int `yaml:"cache_size"`
}

type SearchConfig struct {
	DefaultLimit int    `yaml:"default_limit"`
	MaxLimit     int    `yaml:"max_limit"`
	Complexity   string `yaml:"complexity"`
	// CursorSecret, when set, encrypts cursors and binds them to the filter
	// they were issued for.
	CursorSecret string `yaml:"cursor_secret"`
	// KeyAliases maps the keys clients send onto stored document paths.
	KeyAliases map[string]string `yaml:"key_aliases"`
	SnakeCase  bool              `yaml:"snake_case_keys"`
	// AllowedKeys, when set, restricts the leading key segments clients may
	// filter on. It is checked before aliases apply.
	AllowedKeys []string `yaml:"allowed_keys"`
	// Pagination is offset or keyset.
	Pagination string `yaml:"pagination"`
}

func Default() Config {
	return Config{
		Addr: "localhost:8080",
		Logger: LoggerConfig{
			Level:    "info",
			Type:     "json",
			SQLLevel: "warn",
		},
		Storage: StorageConfig{
			Type:      StorageMemory,
			CacheSize: 4096,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
			Complexity:   "default",
			Pagination:   PaginationOffset,
		},
		Modules: slices.Clone(DefaultModules),
	}
}

// Load reads the YAML file at path over the defaults. An empty path uses
// the defaults alone. Environment variables override both.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if cfg, err = Parse(data); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		cfg.Storage.DSN = dsn
		cfg.Storage.Type = StoragePostgres
	}
	if addr := os.Getenv(EnvAddr); addr != "" {
		cfg.Addr = addr
	}
}

func (cfg Config) Validate() error {
	var result *multierror.Error
	if cfg.Addr == "" {
		result = multierror.Append(result, errors.New("addr is required"))
	}
	if _, err := parseLevel(cfg.Logger.Level); err != nil {
		result = multierror.Append(result, err)
	}
	if !slices.Contains([]string{"json", "text", "colored-text"}, cfg.Logger.Type) {
		result = multierror.Append(result, errors.Errorf("invalid log type: %s", cfg.Logger.Type))
	}
	if _, err := cfg.Logger.GormLevel(); err != nil {
		result = multierror.Append(result, err)
	}
	switch cfg.Storage.Type {
	case StoragePostgres:
		if cfg.Storage.DSN == "" {
			result = multierror.Append(result, errors.New("storage dsn is required for postgres"))
		}
		if cfg.Storage.CacheSize <= 0 {
			result = multierror.Append(result, errors.New("storage cache_size must be positive"))
		}
	case StorageMemory:
	default:
		result = multierror.Append(result, errors.Errorf("invalid storage type: %s", cfg.Storage.Type))
	}
	if cfg.Search.DefaultLimit < 0 || cfg.Search.MaxLimit < cfg.Search.DefaultLimit {
		result = multierror.Append(result, errors.New("search limits must satisfy 0 <= default_limit <= max_limit"))
	}
	if _, err := cfg.Search.ComplexityLimits(); err != nil {
		result = multierror.Append(result, err)
	}
	if cfg.Search.Pagination != PaginationOffset && cfg.Search.Pagination != PaginationKeyset {
		result = multierror.Append(result, errors.Errorf("invalid pagination: %s", cfg.Search.Pagination))
	}
	if len(cfg.Modules) == 0 {
		result = multierror.Append(result, errors.New("at least one module is required"))
	}
	return result.ErrorOrNil()
}

// KeyTransform builds the rewrite applied to client filter keys, or nil when
// keys pass through unchanged.
func (c SearchConfig) KeyTransform() filter.TransformFunc {
	var hooks []func(next filter.TransformFunc) filter.TransformFunc
	if len(c.AllowedKeys) > 0 {
		hooks = append(hooks, filter.WithAllowedKeys(c.AllowedKeys...))
	}
	if len(c.KeyAliases) > 0 {
		hooks = append(hooks, filter.WithKeyAliases(c.KeyAliases))
	}
	if c.SnakeCase {
		hooks = append(hooks, filter.WithSnakeCaseKeys())
	}
	if len(hooks) == 0 {
		return nil
	}
	return filter.Chain(filter.Identity, hooks...)
}

// ComplexityLimits resolves the named preset. "none" disables the check.
func (c SearchConfig) ComplexityLimits() (*filter.ComplexityLimits, error) {
	switch c.Complexity {
	case "", "default":
		return filter.DefaultLimits, nil
	case "strict":
		return filter.StrictLimits, nil
	case "relaxed":
		return filter.RelaxedLimits, nil
	case "none":
		return nil, nil
	default:
		return nil, errors.Errorf("invalid complexity: %s", c.Complexity)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.Errorf("invalid log level: %s", s)
	}
}

// NewLogger builds the logger described by cfg writing to w.
func (cfg LoggerConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	switch cfg.Type {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, AddSource: true})
	default:
		return nil, errors.Errorf("invalid log type: %s", cfg.Type)
	}
	return slog.New(handler), nil
}

func (cfg LoggerConfig) GormLevel() (logger.LogLevel, error) {
	switch cfg.SQLLevel {
	case "silent":
		return logger.Silent, nil
	case "error":
		return logger.Error, nil
	case "", "warn":
		return logger.Warn, nil
	case "info":
		return logger.Info, nil
	default:
		return 0, errors.Errorf("invalid sql log level: %s", cfg.SQLLevel)
	}
}

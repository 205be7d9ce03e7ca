// Package gormsearch stores documents in PostgreSQL and searches them by
// compiling filter trees into SQL.
package gormsearch

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/cursor"
	"github.com/theplant/filtergroup/document"
	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/filter/gormfilter"
)

// DefaultCacheSize is the number of compiled filters kept by a Store.
const DefaultCacheSize = 4096

// Open connects to the PostgreSQL database at dsn.
func Open(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	return db, nil
}

type Store struct {
	db    *gorm.DB
	cache *lru.Cache[string, compiled]
}

type compiled struct {
	expr clause.Expression
}

type options struct {
	cacheSize int
}

type Option func(o *options)

// WithCacheSize sets how many compiled filters are kept.
func WithCacheSize(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

func New(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	o := &options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(o)
	}
	cache, err := lru.New[string, compiled](o.cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create filter cache")
	}
	return &Store{db: db, cache: cache}, nil
}

// Migrate creates or updates the documents table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&document.Document{}); err != nil {
		return errors.Wrap(err, "migrate documents")
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get sql db")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "ping database")
	}
	return nil
}

// Insert stores docs in one statement.
func (s *Store) Insert(ctx context.Context, docs ...*document.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&docs).Error; err != nil {
		return errors.Wrap(err, "insert documents")
	}
	return nil
}

// compile returns the predicate of g, compiling it at most once per distinct
// tree. A nil expression matches every document.
func (s *Store) compile(g *filter.FilterGroup) (clause.Expression, error) {
	if g == nil {
		return nil, nil
	}
	key, err := filter.Marshal(g)
	if err != nil {
		return nil, err
	}
	if c, ok := s.cache.Get(string(key)); ok {
		return c.expr, nil
	}
	expr, err := gormfilter.Compile(s.db.Model(&document.Document{}), g)
	if err != nil {
		return nil, err
	}
	s.cache.Add(string(key), compiled{expr: expr})
	return expr, nil
}

// query selects the documents of module matching g.
func (s *Store) query(ctx context.Context, module string, g *filter.FilterGroup) (*gorm.DB, error) {
	expr, err := s.compile(g)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx).Model(&document.Document{}).
		Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: "module"}, Value: module})
	if expr != nil {
		db = db.Where(expr)
	}
	return db, nil
}

// Finder reads the documents of one module.
func (s *Store) Finder(module string) cursor.OffsetFinder[*document.Document] {
	return &finder{store: s, module: module}
}

// Searcher pages through the documents of module matching a filter.
func (s *Store) Searcher(module string, hooks ...func(next filtergroup.Searcher[*document.Document]) filtergroup.Searcher[*document.Document]) filtergroup.Searcher[*document.Document] {
	return filtergroup.New(cursor.Base64(cursor.NewOffsetAdapter(s.Finder(module))), hooks...)
}

type finder struct {
	store  *Store
	module string
}

func (f *finder) Find(ctx context.Context, g *filter.FilterGroup, skip, limit int) ([]*document.Document, error) {
	var docs []*document.Document
	if limit == 0 {
		return docs, nil
	}

	db, err := f.store.query(ctx, f.module, g)
	if err != nil {
		return nil, err
	}
	if skip > 0 {
		db = db.Offset(skip)
	}
	db = db.Limit(limit).Clauses(orderBy(false))

	if err := db.Find(&docs).Error; err != nil {
		return nil, errors.Wrap(err, "find")
	}
	return docs, nil
}

func (f *finder) Count(ctx context.Context, g *filter.FilterGroup) (int, error) {
	db, err := f.store.query(ctx, f.module, g)
	if err != nil {
		return 0, err
	}
	var totalCount int64
	if err := db.Count(&totalCount).Error; err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return int(totalCount), nil
}

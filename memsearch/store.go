// Package memsearch keeps documents in memory and searches them with the
// in-memory evaluator. It returns the same documents, in the same order, as
// gormsearch does for the same data.
package memsearch

import (
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/cursor"
	"github.com/theplant/filtergroup/document"
	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/filter/memfilter"
	"github.com/theplant/filtergroup/value"
)

type entry struct {
	doc    *document.Document
	record value.Value
}

func compareEntries(a, b *entry) int {
	return document.Compare(a.doc, b.doc)
}

type Store struct {
	mu      sync.RWMutex
	modules map[string][]*entry
}

func New() *Store {
	return &Store{modules: map[string][]*entry{}}
}

func newEntries(docs []*document.Document) (map[string][]*entry, error) {
	modules := map[string][]*entry{}
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if doc.Module == "" {
			return nil, errors.Errorf("document %s has no module", doc.ID)
		}
		record, err := doc.Record()
		if err != nil {
			return nil, err
		}
		doc.CreatedAt = document.StoredTime(doc.CreatedAt)
		modules[doc.Module] = append(modules[doc.Module], &entry{doc: doc, record: record})
	}
	return modules, nil
}

// Insert adds docs, keeping every module ordered.
func (s *Store) Insert(_ context.Context, docs ...*document.Document) error {
	added, err := newEntries(docs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for module, entries := range added {
		merged := append(s.modules[module], entries...)
		slices.SortStableFunc(merged, compareEntries)
		s.modules[module] = merged
	}
	return nil
}

// Replace swaps the whole content of the store for docs.
func (s *Store) Replace(docs []*document.Document) error {
	modules, err := newEntries(docs)
	if err != nil {
		return err
	}
	for _, entries := range modules {
		slices.SortStableFunc(entries, compareEntries)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules = modules
	return nil
}

// Len returns the number of documents of module.
func (s *Store) Len(module string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.modules[module])
}

func (s *Store) Ping(_ context.Context) error {
	return nil
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

// each calls fn with every matching document in order until fn returns false.
func (f *finder) each(ctx context.Context, g *filter.FilterGroup, fn func(doc *document.Document) bool) error {
	f.store.mu.RLock()
	defer f.store.mu.RUnlock()

	for i, e := range f.store.modules[f.module] {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}
		}
		if g != nil && !memfilter.Evaluate(g, e.record) {
			continue
		}
		if !fn(e.doc) {
			break
		}
	}
	return nil
}

func (f *finder) Find(ctx context.Context, g *filter.FilterGroup, skip, limit int) ([]*document.Document, error) {
	docs := make([]*document.Document, 0, limit)
	if limit <= 0 {
		return docs, nil
	}
	seen := 0
	err := f.each(ctx, g, func(doc *document.Document) bool {
		seen++
		if seen <= skip {
			return true
		}
		docs = append(docs, doc)
		return len(docs) < limit
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (f *finder) Count(ctx context.Context, g *filter.FilterGroup) (int, error) {
	count := 0
	err := f.each(ctx, g, func(*document.Document) bool {
		count++
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

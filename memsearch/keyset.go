package memsearch

import (
	"context"
	"slices"

	"github.com/pkg/errors"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/cursor"
	"github.com/theplant/filtergroup/document"
	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/filter/memfilter"
)

// KeysetFinder reads the documents of one module by key.
func (s *Store) KeysetFinder(module string) cursor.KeysetFinder[*document.Document, document.Key] {
	return &keysetFinder{finder: finder{store: s, module: module}}
}

// KeysetSearcher pages through the documents of module matching a filter
// with cursors that survive inserts.
func (s *Store) KeysetSearcher(module string, hooks ...func(next filtergroup.Searcher[*document.Document]) filtergroup.Searcher[*document.Document]) filtergroup.Searcher[*document.Document] {
	return filtergroup.New(cursor.Base64(cursor.NewKeysetAdapter(s.KeysetFinder(module), (*document.Document).Key)), hooks...)
}

type keysetFinder struct {
	finder
}

// window returns the bounds of the entries strictly between after and before.
func window(entries []*entry, after, before *document.Key) (int, int) {
	cmp := func(e *entry, key document.Key) int {
		return document.CompareKeys(e.doc.Key(), key)
	}
	lo, hi := 0, len(entries)
	if after != nil {
		i, found := slices.BinarySearchFunc(entries, *after, cmp)
		if found {
			i++
		}
		lo = i
	}
	if before != nil {
		hi, _ = slices.BinarySearchFunc(entries, *before, cmp)
	}
	return lo, max(lo, hi)
}

func (f *keysetFinder) Find(ctx context.Context, g *filter.FilterGroup, after, before *document.Key, limit int, fromEnd bool) ([]*document.Document, error) {
	docs := []*document.Document{}
	if limit <= 0 {
		return docs, nil
	}

	f.store.mu.RLock()
	defer f.store.mu.RUnlock()

	entries := f.store.modules[f.module]
	lo, hi := window(entries, after, before)

	match := func(i int) (bool, error) {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return false, errors.WithStack(err)
			}
		}
		return g == nil || memfilter.Evaluate(g, entries[i].record), nil
	}

	if fromEnd {
		for i := hi - 1; i >= lo && len(docs) < limit; i-- {
			ok, err := match(i)
			if err != nil {
				return nil, err
			}
			if ok {
				docs = append(docs, entries[i].doc)
			}
		}
		slices.Reverse(docs)
		return docs, nil
	}

	for i := lo; i < hi && len(docs) < limit; i++ {
		ok, err := match(i)
		if err != nil {
			return nil, err
		}
		if ok {
			docs = append(docs, entries[i].doc)
		}
	}
	return docs, nil
}

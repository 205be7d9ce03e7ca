package memsearch_test

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/document"
	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/memsearch"
)

func keysetStore(t *testing.T) (*memsearch.Store, time.Time) {
	t.Helper()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store := memsearch.New()
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.Insert(context.Background(),
			mustDoc(t, "iocs", base.Add(time.Duration(i)*time.Minute), map[string]any{"name": name, "even": i%2 == 0}),
		))
	}
	return store, base
}

func TestKeysetSearcher(t *testing.T) {
	ctx := context.Background()
	store, _ := keysetStore(t)
	searcher := store.KeysetSearcher("iocs")

	tests := []struct {
		name        string
		req         func(cursors map[string]string) *filtergroup.SearchRequest
		wantNames   []string
		wantHasNext bool
		wantHasPrev bool
	}{
		{
			name:        "first",
			req:         func(map[string]string) *filtergroup.SearchRequest { return &filtergroup.SearchRequest{First: lo.ToPtr(2)} },
			wantNames:   []string{"a", "b"},
			wantHasNext: true,
		},
		{
			name: "after",
			req: func(c map[string]string) *filtergroup.SearchRequest {
				return &filtergroup.SearchRequest{First: lo.ToPtr(2), After: lo.ToPtr(c["b"])}
			},
			wantNames:   []string{"c", "d"},
			wantHasNext: true,
			wantHasPrev: true,
		},
		{
			name:        "last",
			req:         func(map[string]string) *filtergroup.SearchRequest { return &filtergroup.SearchRequest{Last: lo.ToPtr(2)} },
			wantNames:   []string{"d", "e"},
			wantHasPrev: true,
		},
		{
			name: "before",
			req: func(c map[string]string) *filtergroup.SearchRequest {
				return &filtergroup.SearchRequest{Last: lo.ToPtr(2), Before: lo.ToPtr(c["d"])}
			},
			wantNames:   []string{"b", "c"},
			wantHasNext: true,
			wantHasPrev: true,
		},
		{
			name: "between",
			req: func(c map[string]string) *filtergroup.SearchRequest {
				return &filtergroup.SearchRequest{First: lo.ToPtr(10), After: lo.ToPtr(c["a"]), Before: lo.ToPtr(c["e"])}
			},
			wantNames:   []string{"b", "c", "d"},
			wantHasNext: true,
			wantHasPrev: true,
		},
		{
			name: "filtered after",
			req: func(c map[string]string) *filtergroup.SearchRequest {
				return &filtergroup.SearchRequest{
					First:  lo.ToPtr(10),
					After:  lo.ToPtr(c["a"]),
					Filter: filter.And(filter.Filters(filter.NewFilter("even", filter.OpEq, "true"))),
				}
			},
			wantNames:   []string{"c", "e"},
			wantHasPrev: true,
		},
	}

	all, err := searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(10)})
	require.NoError(t, err)
	cursors := map[string]string{}
	for i, name := range names(all) {
		cursors[name] = all.Edges[i].Cursor
	}
	require.Len(t, cursors, 5)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := searcher.Search(ctx, tt.req(cursors))
			require.NoError(t, err)
			require.Equal(t, tt.wantNames, names(conn))
			require.Equal(t, tt.wantHasNext, conn.PageInfo.HasNextPage)
			require.Equal(t, tt.wantHasPrev, conn.PageInfo.HasPreviousPage)
		})
	}

	t.Run("identical cursors", func(t *testing.T) {
		_, err := searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(1), After: lo.ToPtr(cursors["a"]), Before: lo.ToPtr(cursors["a"])})
		require.ErrorIs(t, err, filtergroup.ErrInvalidRequest)
	})

	t.Run("garbage cursor", func(t *testing.T) {
		_, err := searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(1), After: lo.ToPtr("eyJ4IjoxfQ")}) // {"x":1}
		require.ErrorIs(t, err, filtergroup.ErrInvalidRequest)
		require.ErrorContains(t, err, "invalid keyset cursor")
	})
}

func TestKeysetSurvivesInserts(t *testing.T) {
	ctx := context.Background()
	store, base := keysetStore(t)

	keyset := store.KeysetSearcher("iocs")
	offset := store.Searcher("iocs")

	kconn, err := keyset.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(2)})
	require.NoError(t, err)
	oconn, err := offset.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(2)})
	require.NoError(t, err)

	// lands before every page already read
	require.NoError(t, store.Insert(ctx, mustDoc(t, "iocs", base.Add(-time.Minute), map[string]any{"name": "early"})))

	kconn, err = keyset.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(2), After: kconn.PageInfo.EndCursor})
	require.NoError(t, err)
	require.Equal(t, []string{"c", "d"}, names(kconn))

	oconn, err = offset.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(2), After: oconn.PageInfo.EndCursor})
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, names(oconn))
}

func TestOffsetAndKeysetAgree(t *testing.T) {
	ctx := context.Background()
	store, _ := keysetStore(t)
	searchers := map[string]filtergroup.Searcher[*document.Document]{
		"offset": store.Searcher("iocs"),
		"keyset": store.KeysetSearcher("iocs"),
	}

	tests := []struct {
		name      string
		req       func(c map[string]string) *filtergroup.SearchRequest
		wantNames []string
	}{
		{"first before", func(c map[string]string) *filtergroup.SearchRequest {
			return &filtergroup.SearchRequest{First: lo.ToPtr(2), Before: lo.ToPtr(c["e"])}
		}, []string{"a", "b"}},
		{"last before", func(c map[string]string) *filtergroup.SearchRequest {
			return &filtergroup.SearchRequest{Last: lo.ToPtr(2), Before: lo.ToPtr(c["e"])}
		}, []string{"c", "d"}},
		{"last after", func(c map[string]string) *filtergroup.SearchRequest {
			return &filtergroup.SearchRequest{Last: lo.ToPtr(2), After: lo.ToPtr(c["a"])}
		}, []string{"d", "e"}},
		{"first between", func(c map[string]string) *filtergroup.SearchRequest {
			return &filtergroup.SearchRequest{First: lo.ToPtr(2), After: lo.ToPtr(c["a"]), Before: lo.ToPtr(c["e"])}
		}, []string{"b", "c"}},
		{"last between", func(c map[string]string) *filtergroup.SearchRequest {
			return &filtergroup.SearchRequest{Last: lo.ToPtr(2), After: lo.ToPtr(c["a"]), Before: lo.ToPtr(c["e"])}
		}, []string{"c", "d"}},
	}

	for kind, searcher := range searchers {
		all, err := searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(10)})
		require.NoError(t, err)
		cursors := map[string]string{}
		for i, name := range names(all) {
			cursors[name] = all.Edges[i].Cursor
		}

		for _, tt := range tests {
			t.Run(kind+" "+tt.name, func(t *testing.T) {
				conn, err := searcher.Search(ctx, tt.req(cursors))
				require.NoError(t, err)
				require.Equal(t, tt.wantNames, names(conn))
			})
		}
	}
}

func TestKeysetFinderWindow(t *testing.T) {
	ctx := context.Background()
	store, base := keysetStore(t)
	finder := store.KeysetFinder("iocs")

	// a key between two documents
	key := document.Key{CreatedAt: base.Add(90 * time.Second)}
	docs, err := finder.Find(ctx, nil, &key, nil, 10, false)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	docs, err = finder.Find(ctx, nil, nil, &key, 10, true)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	docs, err = finder.Find(ctx, nil, &key, &key, 10, false)
	require.NoError(t, err)
	require.Empty(t, docs)

	docs, err = finder.Find(ctx, nil, nil, nil, 0, false)
	require.NoError(t, err)
	require.Empty(t, docs)
}

package cursor_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/cursor"
	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/filter/memfilter"
	"github.com/theplant/filtergroup/value"
)

type sliceFinder struct {
	records []value.Value
	counts  int
}

func (f *sliceFinder) matches(g *filter.FilterGroup) []value.Value {
	return lo.Filter(f.records, func(r value.Value, _ int) bool {
		return g == nil || memfilter.Evaluate(g, r)
	})
}

func (f *sliceFinder) Find(_ context.Context, g *filter.FilterGroup, skip, limit int) ([]value.Value, error) {
	matches := f.matches(g)
	if skip >= len(matches) {
		return nil, nil
	}
	return matches[skip:min(skip+limit, len(matches))], nil
}

func (f *sliceFinder) Count(_ context.Context, g *filter.FilterGroup) (int, error) {
	f.counts++
	return len(f.matches(g)), nil
}

func newFinder(n int) *sliceFinder {
	f := &sliceFinder{}
	for i := 0; i < n; i++ {
		f.records = append(f.records, value.MustParse(fmt.Sprintf(`{"n":%d,"even":%t}`, i, i%2 == 0)))
	}
	return f
}

func ns(conn *filtergroup.Connection[value.Value]) []string {
	return lo.Map(conn.Nodes, func(v value.Value, _ int) string {
		n, _ := v.Get("n")
		text, _ := n.Text()
		return text
	})
}

func TestOffsetAdapter(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		req           *filtergroup.SearchRequest
		wantNodes     []string
		wantCursors   []string
		wantHasNext   bool
		wantHasPrev   bool
		wantTotal     int
		wantErrString string
	}{
		{
			name:        "first page",
			req:         &filtergroup.SearchRequest{First: lo.ToPtr(2)},
			wantNodes:   []string{"0", "1"},
			wantCursors: []string{"0", "1"},
			wantHasNext: true,
			wantTotal:   5,
		},
		{
			name:        "after",
			req:         &filtergroup.SearchRequest{First: lo.ToPtr(2), After: lo.ToPtr("1")},
			wantNodes:   []string{"2", "3"},
			wantCursors: []string{"2", "3"},
			wantHasNext: true,
			wantHasPrev: true,
			wantTotal:   5,
		},
		{
			name:        "last page from the end",
			req:         &filtergroup.SearchRequest{Last: lo.ToPtr(2)},
			wantNodes:   []string{"3", "4"},
			wantCursors: []string{"3", "4"},
			wantHasPrev: true,
			wantTotal:   5,
		},
		{
			name:        "before",
			req:         &filtergroup.SearchRequest{Last: lo.ToPtr(2), Before: lo.ToPtr("2")},
			wantNodes:   []string{"0", "1"},
			wantCursors: []string{"0", "1"},
			wantHasNext: true,
			wantTotal:   5,
		},
		{
			name:        "first before",
			req:         &filtergroup.SearchRequest{First: lo.ToPtr(2), Before: lo.ToPtr("4")},
			wantNodes:   []string{"0", "1"},
			wantCursors: []string{"0", "1"},
			wantHasNext: true,
			wantTotal:   5,
		},
		{
			name: "filtered",
			req: &filtergroup.SearchRequest{
				First:  lo.ToPtr(10),
				Filter: filter.And(filter.Filters(filter.NewFilter("even", filter.OpEq, "true"))),
			},
			wantNodes:   []string{"0", "2", "4"},
			wantCursors: []string{"0", "1", "2"},
			wantTotal:   3,
		},
		{
			name:        "past the end",
			req:         &filtergroup.SearchRequest{First: lo.ToPtr(2), After: lo.ToPtr("10")},
			wantNodes:   []string{},
			wantCursors: []string{},
			wantTotal:   5,
		},
		{
			name:          "invalid cursor",
			req:           &filtergroup.SearchRequest{First: lo.ToPtr(2), After: lo.ToPtr("x")},
			wantErrString: `invalid offset cursor "x"`,
		},
		{
			name:          "negative cursor",
			req:           &filtergroup.SearchRequest{First: lo.ToPtr(2), After: lo.ToPtr("-1")},
			wantErrString: "after cursor must be non-negative",
		},
		{
			name:          "after not before before",
			req:           &filtergroup.SearchRequest{First: lo.ToPtr(2), After: lo.ToPtr("3"), Before: lo.ToPtr("2")},
			wantErrString: "after cursor must be less than before cursor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := filtergroup.New(cursor.NewOffsetAdapter[value.Value](newFinder(5)))
			conn, err := searcher.Search(ctx, tt.req)
			if tt.wantErrString != "" {
				require.ErrorContains(t, err, tt.wantErrString)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantNodes, ns(conn))
			require.Equal(t, tt.wantCursors, lo.Map(conn.Edges, func(e *filtergroup.Edge[value.Value], _ int) string { return e.Cursor }))
			require.Equal(t, tt.wantHasNext, conn.PageInfo.HasNextPage)
			require.Equal(t, tt.wantHasPrev, conn.PageInfo.HasPreviousPage)
			require.Equal(t, tt.wantTotal, *conn.TotalCount)
		})
	}
}

func TestOffsetAdapterSkipTotalCount(t *testing.T) {
	finder := newFinder(3)
	searcher := filtergroup.New(cursor.NewOffsetAdapter[value.Value](finder))

	ctx := filtergroup.WithSkip(context.Background(), filtergroup.Skip{TotalCount: true})
	conn, err := searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(2)})
	require.NoError(t, err)
	require.Nil(t, conn.TotalCount)
	require.Equal(t, []string{"0", "1"}, ns(conn))
	require.Equal(t, 0, finder.counts)

	_, err = searcher.Search(ctx, &filtergroup.SearchRequest{Last: lo.ToPtr(2)})
	require.ErrorContains(t, err, "totalCount is required")
}

func TestBase64(t *testing.T) {
	ctx := context.Background()
	searcher := filtergroup.New(cursor.Base64(cursor.NewOffsetAdapter[value.Value](newFinder(5))))

	conn, err := searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(2)})
	require.NoError(t, err)
	require.Equal(t, "MQ", *conn.PageInfo.EndCursor)

	conn, err = searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(2), After: conn.PageInfo.EndCursor})
	require.NoError(t, err)
	require.Equal(t, []string{"2", "3"}, ns(conn))

	_, err = searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(2), After: lo.ToPtr("%%")})
	require.ErrorContains(t, err, "invalid after cursor")
	require.ErrorIs(t, err, filtergroup.ErrInvalidRequest)
}

func TestGCMSearcher(t *testing.T) {
	ctx := context.Background()
	gcm, err := cursor.NewGCMFromSecret("secret")
	require.NoError(t, err)

	searcher := filtergroup.New(cursor.GCM[value.Value](gcm)(cursor.NewOffsetAdapter[value.Value](newFinder(5))))
	even := filter.And(filter.Filters(filter.NewFilter("even", filter.OpEq, "true")))

	conn, err := searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(1), Filter: even})
	require.NoError(t, err)

	conn, err = searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(1), Filter: even, After: conn.PageInfo.EndCursor})
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, ns(conn))

	_, err = searcher.Search(ctx, &filtergroup.SearchRequest{First: lo.ToPtr(1), After: conn.PageInfo.EndCursor})
	require.ErrorContains(t, err, "invalid after cursor")
}

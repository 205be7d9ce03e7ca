package cursor

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/filter"
)

// KeysetFinder reads records positioned strictly between two keys of the
// finder's fixed order. Find returns records in that order, also when fromEnd
// asks for the last ones of the window.
type KeysetFinder[T, K any] interface {
	Find(ctx context.Context, g *filter.FilterGroup, after, before *K, limit int, fromEnd bool) ([]T, error)
	Count(ctx context.Context, g *filter.FilterGroup) (int, error)
}

// NewKeysetAdapter pages with cursors holding the key of a record rather than
// its position, so inserts between requests do not shift later pages.
func NewKeysetAdapter[T, K any](finder KeysetFinder[T, K], key func(node T) K) filtergroup.ApplyCursorsFunc[T] {
	return func(ctx context.Context, req *filtergroup.ApplyCursorsRequest) (*filtergroup.ApplyCursorsResponse[T], error) {
		after, before, err := decodeKeysetCursors[K](req.After, req.Before)
		if err != nil {
			return nil, err
		}

		skip := filtergroup.GetSkip(ctx)

		var totalCount *int
		if !skip.TotalCount {
			count, err := finder.Count(ctx, req.Filter)
			if err != nil {
				return nil, err
			}
			totalCount = &count
		}

		if skip.Edges && skip.Nodes && skip.PageInfo {
			return &filtergroup.ApplyCursorsResponse[T]{
				TotalCount: totalCount,
			}, nil
		}

		var edges []*filtergroup.LazyEdge[T]
		if req.Limit <= 0 || (totalCount != nil && *totalCount <= 0) {
			edges = make([]*filtergroup.LazyEdge[T], 0)
		} else {
			nodes, err := finder.Find(ctx, req.Filter, after, before, req.Limit, req.FromEnd)
			if err != nil {
				return nil, err
			}
			edges = make([]*filtergroup.LazyEdge[T], len(nodes))
			for i, node := range nodes {
				edges[i] = &filtergroup.LazyEdge[T]{
					Node: node,
					Cursor: func(_ context.Context) (string, error) {
						return EncodeKeysetCursor(key(node))
					},
				}
			}
		}

		return &filtergroup.ApplyCursorsResponse[T]{
			LazyEdges:  edges,
			TotalCount: totalCount,
			// Checking that a record exists on the other side of a cursor costs
			// another query, so a present cursor is taken as proof.
			HasAfterOrPrevious: after != nil,
			HasBeforeOrNext:    before != nil,
		}, nil
	}
}

var jsoniterForKeyset = jsoniter.Config{
	EscapeHTML:            true,
	SortMapKeys:           true,
	DisallowUnknownFields: true,
}.Froze()

func EncodeKeysetCursor[K any](key K) (string, error) {
	b, err := jsoniterForKeyset.Marshal(key)
	if err != nil {
		return "", errors.Wrap(err, "marshal keyset cursor")
	}
	return string(b), nil
}

func DecodeKeysetCursor[K any](cursor string) (*K, error) {
	key := new(K)
	if err := jsoniterForKeyset.Unmarshal([]byte(cursor), key); err != nil {
		return nil, filtergroup.InvalidRequest(errors.Wrapf(err, "invalid keyset cursor %q", cursor))
	}
	return key, nil
}

func decodeKeysetCursors[K any](after, before *string) (afterKey, beforeKey *K, err error) {
	if after != nil && before != nil && *after == *before {
		return nil, nil, filtergroup.InvalidRequest(errors.New("invalid pagination: after and before cursors are identical"))
	}
	if after != nil {
		if afterKey, err = DecodeKeysetCursor[K](*after); err != nil {
			return nil, nil, err
		}
	}
	if before != nil {
		if beforeKey, err = DecodeKeysetCursor[K](*before); err != nil {
			return nil, nil, err
		}
	}
	return afterKey, beforeKey, nil
}

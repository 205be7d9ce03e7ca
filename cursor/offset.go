package cursor

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/theplant/filtergroup"
	"github.com/theplant/filtergroup/filter"
)

// OffsetFinder reads the records matching a filter in a stable order.
type OffsetFinder[T any] interface {
	Find(ctx context.Context, g *filter.FilterGroup, skip, limit int) ([]T, error)
	Count(ctx context.Context, g *filter.FilterGroup) (int, error)
}

// offsets are decoded positions of the after and before cursors within the
// matching records.
type offsets struct {
	after, before *int
}

func decodeOffsets(req *filtergroup.ApplyCursorsRequest) (offsets, error) {
	var o offsets
	for _, c := range []struct {
		name   string
		cursor *string
		dst    **int
	}{
		{"after", req.After, &o.after},
		{"before", req.Before, &o.before},
	} {
		if c.cursor == nil {
			continue
		}
		n, err := DecodeOffsetCursor(*c.cursor)
		if err != nil {
			return offsets{}, err
		}
		if n < 0 {
			return offsets{}, filtergroup.InvalidRequest(errors.Errorf("invalid pagination: %s cursor must be non-negative", c.name))
		}
		*c.dst = &n
	}
	if o.after != nil && o.before != nil && *o.after >= *o.before {
		return offsets{}, filtergroup.InvalidRequest(errors.New("invalid pagination: after cursor must be less than before cursor"))
	}
	return o, nil
}

// window returns the records to read: limit records starting at skip,
// taken from the end of the (after, before) range when fromEnd is set.
func (o offsets) window(limit int, fromEnd bool) (skip, n int) {
	n = limit
	switch {
	case o.after != nil:
		skip = *o.after + 1
	case o.before != nil && fromEnd:
		skip = *o.before - limit
	}
	skip = max(skip, 0)

	if o.before != nil {
		span := max(*o.before-skip, 0)
		n = min(n, span)
		if fromEnd && n < span {
			skip = *o.before - n
		}
	}
	return skip, n
}

// NewOffsetAdapter pages an OffsetFinder by record position. Paging from
// the end without a before cursor needs the total count, so TotalCount
// cannot be skipped for those requests.
func NewOffsetAdapter[T any](finder OffsetFinder[T]) filtergroup.ApplyCursorsFunc[T] {
	return func(ctx context.Context, req *filtergroup.ApplyCursorsRequest) (*filtergroup.ApplyCursorsResponse[T], error) {
		o, err := decodeOffsets(req)
		if err != nil {
			return nil, err
		}

		skip := filtergroup.GetSkip(ctx)
		rsp := &filtergroup.ApplyCursorsResponse[T]{}
		if !skip.TotalCount {
			total, err := finder.Count(ctx, req.Filter)
			if err != nil {
				return nil, err
			}
			rsp.TotalCount = &total
		}
		if skip.Nodes && skip.Edges && skip.PageInfo {
			return rsp, nil
		}

		if req.FromEnd && o.before == nil {
			if rsp.TotalCount == nil {
				return nil, errors.New("totalCount is required for pagination from end when before cursor is not provided")
			}
			o.before = rsp.TotalCount
		}

		from, n := o.window(req.Limit, req.FromEnd)
		empty := n <= 0 || (rsp.TotalCount != nil && from >= *rsp.TotalCount)
		if empty {
			rsp.LazyEdges = []*filtergroup.LazyEdge[T]{}
		} else {
			nodes, err := finder.Find(ctx, req.Filter, from, n)
			if err != nil {
				return nil, err
			}
			rsp.LazyEdges = make([]*filtergroup.LazyEdge[T], len(nodes))
			for i, node := range nodes {
				c := EncodeOffsetCursor(from + i)
				rsp.LazyEdges[i] = &filtergroup.LazyEdge[T]{
					Node:   node,
					Cursor: func(context.Context) (string, error) { return c, nil },
				}
			}
		}

		// Without a total, confirming that the cursors still point at
		// records would cost another query.
		rsp.HasAfterOrPrevious = o.after != nil
		rsp.HasBeforeOrNext = o.before != nil
		if total := rsp.TotalCount; total != nil {
			rsp.HasAfterOrPrevious = rsp.HasAfterOrPrevious && *o.after < *total
			rsp.HasBeforeOrNext = rsp.HasBeforeOrNext && *o.before < *total
		}
		return rsp, nil
	}
}

func EncodeOffsetCursor(offset int) string {
	return strconv.Itoa(offset)
}

func DecodeOffsetCursor(cursor string) (int, error) {
	offset, err := strconv.Atoi(cursor)
	if err != nil {
		return 0, filtergroup.InvalidRequest(errors.Wrapf(err, "invalid offset cursor %q: cannot convert to integer", cursor))
	}
	return offset, nil
}

package filtergroup

import (
	"context"

	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/internal/hook"
)

// EnsureLimits fills in a missing page size and caps oversized ones. A
// negative size falls back to defaultLimit. Requests without a size page
// backward when they only carry a before cursor.
func EnsureLimits[T any](defaultLimit, maxLimit int) func(next Searcher[T]) Searcher[T] {
	if defaultLimit < 0 {
		panic("defaultLimit cannot be negative")
	}
	if maxLimit < defaultLimit {
		panic("maxLimit must be greater than or equal to defaultLimit")
	}
	clamp := func(n *int) *int {
		switch {
		case n == nil:
			return nil
		case *n < 0:
			return &defaultLimit
		case *n > maxLimit:
			return &maxLimit
		}
		return n
	}
	return func(next Searcher[T]) Searcher[T] {
		return SearcherFunc[T](func(ctx context.Context, req *SearchRequest) (*Connection[T], error) {
			req.First, req.Last = clamp(req.First), clamp(req.Last)
			if req.First == nil && req.Last == nil {
				if req.Before != nil && req.After == nil {
					req.Last = &defaultLimit
				} else {
					req.First = &defaultLimit
				}
			}
			return next.Search(ctx, req)
		})
	}
}

// EnsureComplexity rejects filters exceeding limits. A nil limits disables
// the check.
func EnsureComplexity[T any](limits *filter.ComplexityLimits) func(next Searcher[T]) Searcher[T] {
	return func(next Searcher[T]) Searcher[T] {
		return SearcherFunc[T](func(ctx context.Context, req *SearchRequest) (*Connection[T], error) {
			if err := filter.CheckComplexity(req.Filter, limits); err != nil {
				return nil, InvalidRequest(err)
			}
			return next.Search(ctx, req)
		})
	}
}

// TransformFilter rewrites the request filter, e.g. to map the keys a client
// sends onto the stored document paths.
func TransformFilter[T any](transform filter.TransformFunc) func(next Searcher[T]) Searcher[T] {
	return func(next Searcher[T]) Searcher[T] {
		return SearcherFunc[T](func(ctx context.Context, req *SearchRequest) (*Connection[T], error) {
			if req.Filter != nil {
				g, err := filter.Transform(req.Filter, transform)
				if err != nil {
					return nil, InvalidRequest(err)
				}
				req.Filter = g
			}
			return next.Search(ctx, req)
		})
	}
}

type cursorHookKey struct{}

// CursorHookFromContext returns the ApplyCursorsFunc wrapper installed by
// PrependCursorHook, or nil.
func CursorHookFromContext[T any](ctx context.Context) func(next ApplyCursorsFunc[T]) ApplyCursorsFunc[T] {
	h, _ := ctx.Value(cursorHookKey{}).(func(next ApplyCursorsFunc[T]) ApplyCursorsFunc[T])
	return h
}

// PrependCursorHook wraps the ApplyCursorsFunc of the searcher it decorates,
// outside of any cursor hook installed further out.
func PrependCursorHook[T any](hooks ...func(next ApplyCursorsFunc[T]) ApplyCursorsFunc[T]) func(next Searcher[T]) Searcher[T] {
	return func(next Searcher[T]) Searcher[T] {
		if len(hooks) == 0 {
			return next
		}
		return SearcherFunc[T](func(ctx context.Context, req *SearchRequest) (*Connection[T], error) {
			h := hook.Prepend(CursorHookFromContext[T](ctx), hooks...)
			return next.Search(context.WithValue(ctx, cursorHookKey{}, h), req)
		})
	}
}

// Package filtergroup searches record collections with filter trees and pages
// through the matches with opaque cursors.
package filtergroup

import (
	"context"

	"github.com/pkg/errors"

	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/internal/hook"
)

// SearchRequest asks for one page of the records matching Filter. A nil
// Filter matches every record.
//
// Exactly one of First and Last is set. First pages forward from After,
// Last pages backward from Before.
type SearchRequest struct {
	Filter *filter.FilterGroup `json:"filter"`
	After  *string             `json:"after"`
	First  *int                `json:"first"`
	Before *string             `json:"before"`
	Last   *int                `json:"last"`
}

func (req *SearchRequest) validate() error {
	if req.Filter != nil {
		if err := filter.ValidateErr(req.Filter); err != nil {
			return err
		}
	}
	switch {
	case req.First == nil && req.Last == nil:
		return InvalidRequest(errors.New("first or last must be set"))
	case req.First != nil && req.Last != nil:
		return InvalidRequest(errors.New("first and last cannot be used together"))
	case req.First != nil && *req.First < 0:
		return InvalidRequest(errors.New("first must be a non-negative integer"))
	case req.Last != nil && *req.Last < 0:
		return InvalidRequest(errors.New("last must be a non-negative integer"))
	}
	return nil
}

// size is the number of records the page holds and whether it is taken
// from the end of the window.
func (req *SearchRequest) size() (n int, fromEnd bool) {
	if req.Last != nil {
		return *req.Last, true
	}
	return *req.First, false
}

type Edge[T any] struct {
	Node   T      `json:"node"`
	Cursor string `json:"cursor"`
}

type PageInfo struct {
	HasNextPage     bool    `json:"hasNextPage"`
	HasPreviousPage bool    `json:"hasPreviousPage"`
	StartCursor     *string `json:"startCursor"`
	EndCursor       *string `json:"endCursor"`
}

type Connection[T any] struct {
	Edges      []*Edge[T] `json:"edges,omitempty"`
	Nodes      []T        `json:"nodes,omitempty"`
	PageInfo   *PageInfo  `json:"pageInfo,omitempty"`
	TotalCount *int       `json:"totalCount,omitempty"`
}

// ApplyCursorsRequest selects at most Limit matches of Filter strictly
// between the After and Before cursors, counted from the end of that
// window when FromEnd is set.
type ApplyCursorsRequest struct {
	Filter  *filter.FilterGroup
	Before  *string
	After   *string
	Limit   int
	FromEnd bool
}

// LazyEdge defers cursor encoding until the cursor is needed.
type LazyEdge[T any] struct {
	Node   T
	Cursor func(ctx context.Context) (string, error)
}

type ApplyCursorsResponse[T any] struct {
	LazyEdges  []*LazyEdge[T]
	TotalCount *int
	// HasBeforeOrNext reports a record at or after the before cursor.
	HasBeforeOrNext bool
	// HasAfterOrPrevious reports a record at or before the after cursor.
	HasAfterOrPrevious bool
}

// ApplyCursorsFunc returns the matching records between the cursors.
// https://relay.dev/graphql/connections.htm#ApplyCursorsToEdges()
type ApplyCursorsFunc[T any] func(ctx context.Context, req *ApplyCursorsRequest) (*ApplyCursorsResponse[T], error)

// page is the trimmed result of one ApplyCursorsFunc call.
type page[T any] struct {
	edges   []*LazyEdge[T]
	cursors []*string
	hasNext bool
	hasPrev bool
}

// newPage fetches one record beyond the requested size, so an extra
// record proves there is a further page in the paging direction.
func newPage[T any](req *SearchRequest, rsp *ApplyCursorsResponse[T]) *page[T] {
	p := &page[T]{edges: rsp.LazyEdges}
	n, fromEnd := req.size()
	if len(p.edges) > n {
		if fromEnd {
			p.edges = p.edges[len(p.edges)-n:]
			p.hasPrev = true
		} else {
			p.edges = p.edges[:n]
			p.hasNext = true
		}
	}
	if req.Before != nil && rsp.HasBeforeOrNext {
		p.hasNext = true
	}
	if req.After != nil && rsp.HasAfterOrPrevious {
		p.hasPrev = true
	}
	p.cursors = make([]*string, len(p.edges))
	return p
}

// cursor encodes the cursor of edge i once.
func (p *page[T]) cursor(ctx context.Context, i int) (string, error) {
	if c := p.cursors[i]; c != nil {
		return *c, nil
	}
	c, err := p.edges[i].Cursor(ctx)
	if err != nil {
		return "", err
	}
	p.cursors[i] = &c
	return c, nil
}

func (p *page[T]) process(ctx context.Context, processor func(ctx context.Context, node T) (T, error)) error {
	if processor == nil {
		return nil
	}
	for _, edge := range p.edges {
		node, err := processor(ctx, edge.Node)
		if err != nil {
			return err
		}
		edge.Node = node
	}
	return nil
}

func (p *page[T]) connection(ctx context.Context, skip Skip, totalCount *int) (*Connection[T], error) {
	conn := &Connection[T]{}
	if !skip.TotalCount {
		conn.TotalCount = totalCount
	}

	if !skip.Edges {
		conn.Edges = make([]*Edge[T], len(p.edges))
		for i, edge := range p.edges {
			c, err := p.cursor(ctx, i)
			if err != nil {
				return nil, err
			}
			conn.Edges[i] = &Edge[T]{Node: edge.Node, Cursor: c}
		}
	}

	if !skip.Nodes {
		conn.Nodes = make([]T, len(p.edges))
		for i, edge := range p.edges {
			conn.Nodes[i] = edge.Node
		}
	}

	if !skip.PageInfo {
		info := &PageInfo{HasNextPage: p.hasNext, HasPreviousPage: p.hasPrev}
		if last := len(p.edges) - 1; last >= 0 {
			start, err := p.cursor(ctx, 0)
			if err != nil {
				return nil, err
			}
			end, err := p.cursor(ctx, last)
			if err != nil {
				return nil, err
			}
			info.StartCursor, info.EndCursor = &start, &end
		}
		conn.PageInfo = info
	}
	return conn, nil
}

// https://relay.dev/graphql/connections.htm#sec-Pagination-algorithm
// https://relay.dev/graphql/connections.htm#sec-undefined.PageInfo.Fields
func search[T any](ctx context.Context, req *SearchRequest, applyCursors ApplyCursorsFunc[T]) (*Connection[T], error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	skip := GetSkip(ctx)
	if skip.All() {
		return &Connection[T]{}, nil
	}

	n, fromEnd := req.size()
	rsp, err := applyCursors(ctx, &ApplyCursorsRequest{
		Filter:  req.Filter,
		Before:  req.Before,
		After:   req.After,
		Limit:   n + 1,
		FromEnd: fromEnd,
	})
	if err != nil {
		return nil, err
	}

	p := newPage(req, rsp)
	if err := p.process(ctx, GetNodeProcessor[T](ctx)); err != nil {
		return nil, err
	}
	return p.connection(ctx, skip, rsp.TotalCount)
}

type Searcher[T any] interface {
	Search(ctx context.Context, req *SearchRequest) (*Connection[T], error)
}

type SearcherFunc[T any] func(ctx context.Context, req *SearchRequest) (*Connection[T], error)

func (f SearcherFunc[T]) Search(ctx context.Context, req *SearchRequest) (*Connection[T], error) {
	return f(ctx, req)
}

// New builds a Searcher over applyCursors. Structurally invalid filters
// are rejected with a *filter.ValidationError before any record is read.
func New[T any](applyCursors ApplyCursorsFunc[T], hooks ...func(next Searcher[T]) Searcher[T]) Searcher[T] {
	if applyCursors == nil {
		panic("applyCursors must be set")
	}

	var s Searcher[T] = SearcherFunc[T](func(ctx context.Context, req *SearchRequest) (*Connection[T], error) {
		apply := applyCursors
		if cursorHook := CursorHookFromContext[T](ctx); cursorHook != nil {
			apply = cursorHook(apply)
		}
		return search(ctx, req, apply)
	})

	if h := hook.Chain(hooks...); h != nil {
		s = h(s)
	}
	return s
}

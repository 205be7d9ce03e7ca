package filtergroup

import "context"

// Skip lists the parts of a Connection the caller does not need. Skipped
// parts are not computed; skipping everything skips the search altogether.
// The HTTP listing endpoint skips edges and page info, for example, while a
// count-only caller skips everything but TotalCount.
type Skip struct {
	Edges, Nodes, TotalCount, PageInfo bool
}

func (s Skip) All() bool {
	return s.Edges && s.Nodes && s.TotalCount && s.PageInfo
}

// NodeProcessor rewrites a node before it is returned, e.g. to redact
// document fields.
type NodeProcessor[T any] func(ctx context.Context, node T) (T, error)

type skipKey struct{}

type nodeProcessorKey[T any] struct{}

func WithSkip(ctx context.Context, skip Skip) context.Context {
	return context.WithValue(ctx, skipKey{}, skip)
}

func GetSkip(ctx context.Context) Skip {
	skip, _ := ctx.Value(skipKey{}).(Skip)
	return skip
}

// WithNodeProcessor makes searchers of T pass every node of a page through
// processor.
func WithNodeProcessor[T any](ctx context.Context, processor func(ctx context.Context, node T) (T, error)) context.Context {
	return context.WithValue(ctx, nodeProcessorKey[T]{}, NodeProcessor[T](processor))
}

func GetNodeProcessor[T any](ctx context.Context) func(ctx context.Context, node T) (T, error) {
	processor, _ := ctx.Value(nodeProcessorKey[T]{}).(NodeProcessor[T])
	return processor
}

// Package hook composes func(next T) T wrappers.
package hook

// Chain composes hooks so that the first one is outermost. Nil hooks are
// skipped; it returns nil when there is nothing to compose.
func Chain[T any](hooks ...func(next T) T) func(next T) T {
	var active []func(next T) T
	for _, h := range hooks {
		if h != nil {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(next T) T {
		for i := len(active) - 1; i >= 0; i-- {
			next = active[i](next)
		}
		return next
	}
}

// Prepend returns a hook running hooks outside of current.
func Prepend[T any](current func(next T) T, hooks ...func(next T) T) func(next T) T {
	return Chain(append(append([]func(next T) T(nil), hooks...), current)...)
}

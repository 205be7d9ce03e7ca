// Package memfilter evaluates filter trees against records held in memory.
//
// Evaluation never mutates the tree or the record, so a tree may be shared by
// any number of goroutines evaluating different records.
package memfilter

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/value"
)

// maxDepth bounds recursion for trees that were not validated; deeper groups
// do not match, nor does a group reached again through its own descendants.
const maxDepth = 1024

// Evaluate reports whether record matches the tree. Filters that are not
// structurally valid never match; use filter.Validate to reject them first.
func Evaluate(g *filter.FilterGroup, record value.Value) bool {
	return evaluateGroup(g, record, 0, map[*filter.FilterGroup]bool{})
}

// Match converts record with value.Of and evaluates it.
func Match(g *filter.FilterGroup, record any) (bool, error) {
	v, err := value.Of(record)
	if err != nil {
		return false, errors.Wrap(err, "convert record")
	}
	return Evaluate(g, v), nil
}

func evaluateGroup(g *filter.FilterGroup, record value.Value, depth int, visiting map[*filter.FilterGroup]bool) bool {
	if g == nil {
		return true
	}
	if depth > maxDepth || visiting[g] {
		return false
	}
	visiting[g] = true
	defer delete(visiting, g)

	results := make([]bool, 0, len(g.Filters)+len(g.FilterGroups))
	for _, f := range g.Filters {
		results = append(results, EvaluateFilter(f, record))
	}
	for _, sub := range g.FilterGroups {
		results = append(results, evaluateGroup(sub, record, depth+1, visiting))
	}
	if len(results) == 0 {
		return true
	}

	switch g.Mode {
	case filter.ModeAnd:
		return lo.EveryBy(results, isTrue)
	case filter.ModeOr:
		return lo.SomeBy(results, isTrue)
	case filter.ModeNot:
		return !lo.EveryBy(results, isTrue)
	default:
		return false
	}
}

func isTrue(b bool) bool { return b }

// EvaluateFilter reports whether a single leaf matches record.
func EvaluateFilter(f *filter.Filter, record value.Value) bool {
	if f == nil || f.Key == "" {
		return false
	}
	field, found := record.Get(f.Key)
	present := found && !field.IsNull()

	switch f.Operator {
	case filter.OpNil:
		return !present
	case filter.OpNotNil:
		return present
	}

	if !f.Operator.Valid() || len(f.Values) == 0 || !present {
		return false
	}
	text, ok := field.Text()
	if !ok {
		return false
	}

	holds := func(candidate string) bool {
		return f.Operator.Holds(text, candidate)
	}
	switch f.ValueMode() {
	case filter.ValueModeAnd:
		return lo.EveryBy(f.Values, holds)
	case filter.ValueModeOr:
		return lo.SomeBy(f.Values, holds)
	default:
		return false
	}
}

package filter

import (
	"github.com/pkg/errors"
)

// ComplexityLimits defines limits for filter complexity.
// A value of 0 means no limit for that metric.
type ComplexityLimits struct {
	MaxDepth      int // Maximum nesting depth of filter groups, the root counts as 1
	MaxFilters    int // Maximum total number of filters
	MaxGroups     int // Maximum total number of filter groups, the root included
	MaxValues     int // Maximum number of values in a single filter
	MaxOrBranches int // Maximum children of a single "or" group
}

// ComplexityResult contains the calculated complexity metrics of a filter.
type ComplexityResult struct {
	Depth      int // Deepest nesting level reached
	Filters    int // Total number of filters
	Groups     int // Total number of filter groups
	MaxValues  int // Largest values list found in any filter
	OrBranches int // Maximum children found in any "or" group
}

// Predefined complexity limits
var (
	// DefaultLimits provides reasonable defaults for most use cases.
	DefaultLimits = &ComplexityLimits{
		MaxDepth:      4,
		MaxFilters:    20,
		MaxGroups:     10,
		MaxValues:     50,
		MaxOrBranches: 10,
	}

	// StrictLimits provides tighter limits for security-sensitive contexts.
	StrictLimits = &ComplexityLimits{
		MaxDepth:      2,
		MaxFilters:    8,
		MaxGroups:     4,
		MaxValues:     10,
		MaxOrBranches: 4,
	}

	// RelaxedLimits provides looser limits for trusted/internal use.
	RelaxedLimits = &ComplexityLimits{
		MaxDepth:      8,
		MaxFilters:    100,
		MaxGroups:     50,
		MaxValues:     500,
		MaxOrBranches: 50,
	}
)

// CheckComplexity validates that a filter tree doesn't exceed the specified limits.
// Returns an error describing which limit was exceeded, or nil if within limits.
// If limits is nil, no validation is performed.
func CheckComplexity(g *FilterGroup, limits *ComplexityLimits) error {
	if limits == nil || g == nil {
		return nil
	}

	result := CalculateComplexity(g)

	if limits.MaxDepth > 0 && result.Depth > limits.MaxDepth {
		return errors.Errorf("filter depth %d exceeds limit %d", result.Depth, limits.MaxDepth)
	}
	if limits.MaxFilters > 0 && result.Filters > limits.MaxFilters {
		return errors.Errorf("filter count %d exceeds limit %d", result.Filters, limits.MaxFilters)
	}
	if limits.MaxGroups > 0 && result.Groups > limits.MaxGroups {
		return errors.Errorf("filter group count %d exceeds limit %d", result.Groups, limits.MaxGroups)
	}
	if limits.MaxValues > 0 && result.MaxValues > limits.MaxValues {
		return errors.Errorf("filter values count %d exceeds limit %d", result.MaxValues, limits.MaxValues)
	}
	if limits.MaxOrBranches > 0 && result.OrBranches > limits.MaxOrBranches {
		return errors.Errorf("filter or branches %d exceeds limit %d", result.OrBranches, limits.MaxOrBranches)
	}

	return nil
}

// CalculateComplexity analyzes a filter tree and returns its complexity metrics.
// Groups already on the current path are not entered again.
func CalculateComplexity(g *FilterGroup) *ComplexityResult {
	result := &ComplexityResult{}
	if g == nil {
		return result
	}
	calculateComplexityRecursive(g, 1, map[*FilterGroup]bool{}, result)
	return result
}

func calculateComplexityRecursive(g *FilterGroup, depth int, visiting map[*FilterGroup]bool, result *ComplexityResult) {
	if visiting[g] {
		return
	}
	visiting[g] = true
	defer delete(visiting, g)

	result.Groups++
	if depth > result.Depth {
		result.Depth = depth
	}

	if g.Mode == ModeOr {
		if branches := len(g.Filters) + len(g.FilterGroups); branches > result.OrBranches {
			result.OrBranches = branches
		}
	}

	for _, f := range g.Filters {
		if f == nil {
			continue
		}
		result.Filters++
		if len(f.Values) > result.MaxValues {
			result.MaxValues = len(f.Values)
		}
	}

	for _, sub := range g.FilterGroups {
		if sub == nil {
			continue
		}
		calculateComplexityRecursive(sub, depth+1, visiting, result)
	}
}

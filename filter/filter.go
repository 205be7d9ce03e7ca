package filter

// Mode combines the results of the children of a FilterGroup.
type Mode string

const (
	ModeAnd Mode = "and"
	ModeOr  Mode = "or"
	// ModeNot negates the conjunction of all children.
	ModeNot Mode = "not"
)

// Modes lists every group mode.
var Modes = []Mode{ModeAnd, ModeOr, ModeNot}

func (m Mode) Valid() bool {
	switch m {
	case ModeAnd, ModeOr, ModeNot:
		return true
	default:
		return false
	}
}

// ValueMode decides how a Filter with several values combines them.
type ValueMode string

const (
	// ValueModeOr matches when any value satisfies the operator. It is the default.
	ValueModeOr ValueMode = "or"
	// ValueModeAnd matches when every value satisfies the operator.
	ValueModeAnd ValueMode = "and"
)

func (m ValueMode) Valid() bool {
	switch m {
	case "", ValueModeOr, ValueModeAnd:
		return true
	default:
		return false
	}
}

// FilterGroup is a node of a filter tree.
type FilterGroup struct {
	Mode         Mode           `json:"mode"`
	Filters      []*Filter      `json:"filters"`
	FilterGroups []*FilterGroup `json:"filterGroups"`
}

// Filter is a single comparison between the field at Key and Values.
type Filter struct {
	Key      string    `json:"key"`
	Operator Operator  `json:"operator"`
	Values   []string  `json:"values"`
	Mode     ValueMode `json:"mode,omitempty"`
}

// ValueMode returns the effective value mode, defaulting to ValueModeOr.
func (f *Filter) ValueMode() ValueMode {
	if f.Mode == "" {
		return ValueModeOr
	}
	return f.Mode
}

// IsEmpty reports whether the group has no direct children. An empty group
// matches every record.
func (g *FilterGroup) IsEmpty() bool {
	return g == nil || (len(g.Filters) == 0 && len(g.FilterGroups) == 0)
}

// HasFilters reports whether the group or any descendant contains a Filter.
// A group reached again through its own descendants contributes nothing.
func HasFilters(g *FilterGroup) bool {
	return hasFilters(g, map[*FilterGroup]bool{})
}

func hasFilters(g *FilterGroup, visiting map[*FilterGroup]bool) bool {
	if g == nil || visiting[g] {
		return false
	}
	if len(g.Filters) > 0 {
		return true
	}
	visiting[g] = true
	defer delete(visiting, g)
	for _, sub := range g.FilterGroups {
		if hasFilters(sub, visiting) {
			return true
		}
	}
	return false
}

// And builds an "and" group.
func And(filters []*Filter, groups ...*FilterGroup) *FilterGroup {
	return &FilterGroup{Mode: ModeAnd, Filters: filters, FilterGroups: groups}
}

// Or builds an "or" group.
func Or(filters []*Filter, groups ...*FilterGroup) *FilterGroup {
	return &FilterGroup{Mode: ModeOr, Filters: filters, FilterGroups: groups}
}

// Not builds a "not" group.
func Not(filters []*Filter, groups ...*FilterGroup) *FilterGroup {
	return &FilterGroup{Mode: ModeNot, Filters: filters, FilterGroups: groups}
}

// NewFilter builds a leaf with the default value mode.
func NewFilter(key string, op Operator, values ...string) *Filter {
	return &Filter{Key: key, Operator: op, Values: values}
}

// Filters is a shorthand for a slice of leaves.
func Filters(filters ...*Filter) []*Filter {
	return filters
}

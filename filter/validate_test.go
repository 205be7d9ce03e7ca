package filter

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	cyclic := And(Filters(NewFilter("a", OpNil)))
	cyclic.FilterGroups = []*FilterGroup{Or(nil, cyclic)}

	tests := []struct {
		name  string
		group *FilterGroup
		want  []string
	}{
		{
			name:  "valid",
			group: And(Filters(NewFilter("status", OpEq, "open")), Not(Filters(NewFilter("owner", OpNil)))),
		},
		{
			name:  "empty group",
			group: &FilterGroup{Mode: ModeNot},
		},
		{
			name:  "nil",
			group: nil,
			want:  []string{"filter group is required"},
		},
		{
			name:  "two invalid filters give two messages",
			group: And(Filters(NewFilter("", OpEq, "x"), NewFilter("status", OpEq))),
			want: []string{
				"filters[0]: key is required",
				`filters[1]: values must not be empty for operator "eq"`,
			},
		},
		{
			name:  "every problem of one filter",
			group: And(Filters(&Filter{Operator: "like", Mode: "xor"})),
			want: []string{
				"filters[0]: key is required",
				`filters[0]: unsupported operator "like"`,
				`filters[0]: mode must be one of or, and, got "xor"`,
			},
		},
		{
			name:  "missing operator",
			group: And(Filters(&Filter{Key: "a", Values: []string{"x"}})),
			want:  []string{"filters[0]: operator is required"},
		},
		{
			name:  "nullary operators need no values",
			group: Or(Filters(NewFilter("a", OpNil), NewFilter("b", OpNotNil))),
		},
		{
			name:  "group mode",
			group: &FilterGroup{Mode: "xor", FilterGroups: []*FilterGroup{{Mode: ""}}},
			want: []string{
				`mode must be one of and, or, not, got "xor"`,
				`filterGroups[0]: mode must be one of and, or, not, got ""`,
			},
		},
		{
			name: "nested paths",
			group: And(nil,
				Or(Filters(NewFilter("a", OpEq, "1")),
					Not(Filters(NewFilter("b", "between", "1", "2"))),
				),
			),
			want: []string{`filterGroups[0].filterGroups[0].filters[0]: unsupported operator "between"`},
		},
		{
			name:  "nil children",
			group: &FilterGroup{Mode: ModeAnd, Filters: []*Filter{nil}, FilterGroups: []*FilterGroup{nil}},
			want: []string{
				"filters[0]: filter is required",
				"filterGroups[0]: filter group is required",
			},
		},
		{
			name:  "cycle",
			group: cyclic,
			want:  []string{"filterGroups[0].filterGroups[0]: cycle detected"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Validate(tt.group))
		})
	}
}

func TestValidateErr(t *testing.T) {
	require.NoError(t, ValidateErr(And(nil)))

	err := ValidateErr(And(Filters(NewFilter("", OpEq, "x"), NewFilter("status", OpGt))))
	require.EqualError(t, err, `invalid filter: filters[0]: key is required; filters[1]: values must not be empty for operator "gt"`)

	var verr *ValidationError
	require.True(t, errors.As(errors.Wrap(err, "search"), &verr))
	require.Equal(t, []string{
		"filters[0]: key is required",
		`filters[1]: values must not be empty for operator "gt"`,
	}, verr.Messages())
	require.Len(t, verr.Unwrap(), 2)
}

func TestGroupHelpers(t *testing.T) {
	assert.True(t, (*FilterGroup)(nil).IsEmpty())
	assert.True(t, And(nil).IsEmpty())
	assert.False(t, And(nil, Or(nil)).IsEmpty())

	assert.False(t, HasFilters(nil))
	assert.False(t, HasFilters(And(nil, Or(nil, Not(nil)))))
	assert.True(t, HasFilters(And(nil, Or(nil, Not(Filters(NewFilter("a", OpNil)))))))

	cyclic := And(nil)
	cyclic.FilterGroups = []*FilterGroup{Or(nil, cyclic), cyclic}
	assert.False(t, HasFilters(cyclic))
	cyclic.FilterGroups = append(cyclic.FilterGroups, Not(Filters(NewFilter("a", OpNil))))
	assert.True(t, HasFilters(cyclic))

	assert.Equal(t, ValueModeOr, NewFilter("a", OpEq, "1").ValueMode())
	assert.Equal(t, ValueModeAnd, (&Filter{Mode: ValueModeAnd}).ValueMode())

	for _, m := range Modes {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Mode("").Valid())
	assert.True(t, ValueMode("").Valid())
	assert.False(t, ValueMode("xor").Valid())
}

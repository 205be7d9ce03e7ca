package filter

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
)

// ValidationError carries every structural problem found in a filter tree.
type ValidationError struct {
	merr *multierror.Error
}

func (e *ValidationError) Error() string {
	return e.merr.Error()
}

func (e *ValidationError) Unwrap() []error {
	return e.merr.WrappedErrors()
}

// Messages returns one message per problem, in tree order.
func (e *ValidationError) Messages() []string {
	return lo.Map(e.merr.Errors, func(err error, _ int) string {
		return err.Error()
	})
}

func newValidationError(messages []string) *ValidationError {
	merr := &multierror.Error{
		ErrorFormat: func(errs []error) string {
			msgs := lo.Map(errs, func(err error, _ int) string { return err.Error() })
			return fmt.Sprintf("invalid filter: %s", strings.Join(msgs, "; "))
		},
	}
	for _, msg := range messages {
		merr = multierror.Append(merr, validationMessage(msg))
	}
	return &ValidationError{merr: merr}
}

type validationMessage string

func (m validationMessage) Error() string { return string(m) }

// Validate walks the tree and returns every structural problem. An empty
// result means the tree can be evaluated and compiled.
func Validate(g *FilterGroup) []string {
	if g == nil {
		return []string{"filter group is required"}
	}
	v := &validator{visiting: map[*FilterGroup]bool{}}
	v.group(nil, g)
	return v.messages
}

// ValidateErr is Validate returning a *ValidationError, or nil for a valid tree.
func ValidateErr(g *FilterGroup) error {
	msgs := Validate(g)
	if len(msgs) == 0 {
		return nil
	}
	return newValidationError(msgs)
}

type validator struct {
	messages []string
	visiting map[*FilterGroup]bool
}

func (v *validator) add(path []string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if len(path) > 0 {
		msg = strings.Join(path, ".") + ": " + msg
	}
	v.messages = append(v.messages, msg)
}

func (v *validator) group(path []string, g *FilterGroup) {
	if v.visiting[g] {
		v.add(path, "cycle detected")
		return
	}
	v.visiting[g] = true
	defer delete(v.visiting, g)

	if !g.Mode.Valid() {
		v.add(path, "%s", invalidModeMessage(string(g.Mode)))
	}
	for i, f := range g.Filters {
		fpath := appendPath(path, fmt.Sprintf("filters[%d]", i))
		if f == nil {
			v.add(fpath, "filter is required")
			continue
		}
		v.filter(fpath, f)
	}
	for i, sub := range g.FilterGroups {
		gpath := appendPath(path, fmt.Sprintf("filterGroups[%d]", i))
		if sub == nil {
			v.add(gpath, "filter group is required")
			continue
		}
		v.group(gpath, sub)
	}
}

func (v *validator) filter(path []string, f *Filter) {
	if f.Key == "" {
		v.add(path, "key is required")
	}
	switch {
	case f.Operator == "":
		v.add(path, "operator is required")
	case !f.Operator.Valid():
		v.add(path, "unsupported operator %q", f.Operator)
	case !f.Operator.IsNullary() && len(f.Values) == 0:
		v.add(path, "values must not be empty for operator %q", f.Operator)
	}
	if !f.Mode.Valid() {
		v.add(path, "mode must be one of or, and, got %q", f.Mode)
	}
}

func invalidModeMessage(mode string) string {
	return fmt.Sprintf("mode must be one of %s, got %q",
		strings.Join(lo.Map(Modes, func(m Mode, _ int) string { return string(m) }), ", "), mode)
}

func appendPath(parent []string, key string) []string {
	result := make([]string, len(parent), len(parent)+1)
	copy(result, parent)
	return append(result, key)
}

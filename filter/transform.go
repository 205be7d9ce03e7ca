package filter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// TransformInput provides input information for transformation
type TransformInput struct {
	// Path of the filter inside the tree, e.g. ["filterGroups[0]", "filters[1]"]
	Path   []string
	Filter *Filter
	Group  *FilterGroup
}

// TransformOutput represents the result of transformation.
// A nil Filter drops the leaf from its group.
type TransformOutput struct {
	Filter *Filter
}

// TransformFunc is a function that transforms a single filter.
type TransformFunc func(input *TransformInput) (*TransformOutput, error)

// Transform returns a copy of the tree with every filter passed through
// transform. The source tree is not modified.
func Transform(g *FilterGroup, transform TransformFunc) (*FilterGroup, error) {
	if g == nil {
		return nil, nil
	}
	return transformGroup(g, nil, transform, map[*FilterGroup]bool{})
}

func transformGroup(g *FilterGroup, path []string, transform TransformFunc, visiting map[*FilterGroup]bool) (*FilterGroup, error) {
	if visiting[g] {
		return nil, errors.Errorf("transform %s: cycle detected", strings.Join(path, "."))
	}
	visiting[g] = true
	defer delete(visiting, g)

	out := &FilterGroup{Mode: g.Mode}
	for i, f := range g.Filters {
		if f == nil {
			continue
		}
		fpath := appendPath(path, fmt.Sprintf("filters[%d]", i))
		output, err := transform(&TransformInput{
			Path:   fpath,
			Filter: f.clone(),
			Group:  g,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "transform %s", strings.Join(fpath, "."))
		}
		if output == nil || output.Filter == nil {
			continue
		}
		out.Filters = append(out.Filters, output.Filter)
	}
	for i, sub := range g.FilterGroups {
		if sub == nil {
			continue
		}
		gpath := appendPath(path, fmt.Sprintf("filterGroups[%d]", i))
		transformed, err := transformGroup(sub, gpath, transform, visiting)
		if err != nil {
			return nil, err
		}
		out.FilterGroups = append(out.FilterGroups, transformed)
	}
	return out, nil
}

func (f *Filter) clone() *Filter {
	c := *f
	c.Values = append([]string(nil), f.Values...)
	return &c
}

// Identity leaves every filter unchanged.
func Identity(input *TransformInput) (*TransformOutput, error) {
	return &TransformOutput{Filter: input.Filter}, nil
}

// Chain applies the hooks around next, the first hook being outermost.
func Chain(next TransformFunc, hooks ...func(next TransformFunc) TransformFunc) TransformFunc {
	for i := len(hooks) - 1; i >= 0; i-- {
		next = hooks[i](next)
	}
	return next
}

// WithKeyAliases rewrites keys found in aliases. Only whole keys or leading
// path segments are replaced, so an alias "actor" -> "threat_actor" turns
// "actor.name" into "threat_actor.name".
func WithKeyAliases(aliases map[string]string) func(next TransformFunc) TransformFunc {
	return func(next TransformFunc) TransformFunc {
		return func(input *TransformInput) (*TransformOutput, error) {
			input.Filter.Key = aliasKey(input.Filter.Key, aliases)
			return next(input)
		}
	}
}

func aliasKey(key string, aliases map[string]string) string {
	if alias, ok := aliases[key]; ok {
		return alias
	}
	segs := strings.Split(key, ".")
	for i := len(segs) - 1; i > 0; i-- {
		prefix := strings.Join(segs[:i], ".")
		if alias, ok := aliases[prefix]; ok {
			return alias + "." + strings.Join(segs[i:], ".")
		}
	}
	return key
}

// WithSnakeCaseKeys converts every key segment to snake_case, turning the
// camelCase keys of a UI into stored document paths.
func WithSnakeCaseKeys() func(next TransformFunc) TransformFunc {
	return func(next TransformFunc) TransformFunc {
		return func(input *TransformInput) (*TransformOutput, error) {
			segs := strings.Split(input.Filter.Key, ".")
			input.Filter.Key = strings.Join(lo.Map(segs, func(s string, _ int) string {
				if isIndex(s) {
					return s
				}
				return lo.SnakeCase(s)
			}), ".")
			return next(input)
		}
	}
}

// WithKeyPrefix nests every key under prefix.
func WithKeyPrefix(prefix string) func(next TransformFunc) TransformFunc {
	prefix = strings.TrimSuffix(prefix, ".")
	return func(next TransformFunc) TransformFunc {
		return func(input *TransformInput) (*TransformOutput, error) {
			if prefix != "" {
				input.Filter.Key = prefix + "." + input.Filter.Key
			}
			return next(input)
		}
	}
}

// WithAllowedKeys rejects filters whose first key segment is not allowed.
func WithAllowedKeys(keys ...string) func(next TransformFunc) TransformFunc {
	allowed := lo.SliceToMap(keys, func(k string) (string, bool) { return k, true })
	return func(next TransformFunc) TransformFunc {
		return func(input *TransformInput) (*TransformOutput, error) {
			root, _, _ := strings.Cut(input.Filter.Key, ".")
			if !allowed[root] {
				return nil, errors.Errorf("key %q is not filterable", input.Filter.Key)
			}
			return next(input)
		}
	}
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '-' && i == 0 && len(s) > 1 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

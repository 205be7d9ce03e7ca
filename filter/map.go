package filter

import (
	"encoding/json"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// numbers in values are decoded as json.Number so their literal survives
var jsoniterForFilter = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Parse decodes the wire form of a filter tree. Structural problems of the
// raw document, including ones the typed form cannot represent such as values
// that are not an array, are reported together as a *ValidationError.
func Parse(data []byte) (*FilterGroup, error) {
	var m map[string]any
	if err := jsoniterForFilter.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal filter")
	}
	if m == nil {
		return nil, newValidationError([]string{"filter group is required"})
	}
	if msgs := ValidateMap(m); len(msgs) > 0 {
		return nil, newValidationError(msgs)
	}
	g, err := FromMap(m)
	if err != nil {
		return nil, err
	}
	if err := ValidateErr(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Marshal encodes a filter tree with sorted keys, suitable as a cache key or
// for storing a saved search.
func Marshal(g *FilterGroup) ([]byte, error) {
	data, err := jsoniterForFilter.Marshal(g)
	if err != nil {
		return nil, errors.Wrap(err, "marshal filter")
	}
	return data, nil
}

// ToMap converts a filter tree to its wire form as a map[string]any.
func ToMap(g *FilterGroup) (map[string]any, error) {
	if g == nil {
		return nil, nil
	}
	data, err := Marshal(g)
	if err != nil {
		return nil, err
	}
	var filterMap map[string]any
	if err := jsoniterForFilter.Unmarshal(data, &filterMap); err != nil {
		return nil, errors.Wrap(err, "unmarshal filter to map")
	}
	PruneMap(filterMap)
	return filterMap, nil
}

// FromMap converts the wire form back to a filter tree. Values that are
// numbers or booleans are kept as their literal text. Call ValidateMap first
// for a full report; FromMap stops at the first shape it cannot convert.
func FromMap(m map[string]any) (*FilterGroup, error) {
	if m == nil {
		return nil, nil
	}
	g := &FilterGroup{}
	if mode, ok := m["mode"].(string); ok {
		g.Mode = Mode(mode)
	}
	filters, err := listOf(m, "filters")
	if err != nil {
		return nil, err
	}
	for i, item := range filters {
		fm, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Errorf("filters[%d] should be map[string]any, got %T", i, item)
		}
		f, err := filterFromMap(fm)
		if err != nil {
			return nil, errors.Wrapf(err, "filters[%d]", i)
		}
		g.Filters = append(g.Filters, f)
	}
	groups, err := listOf(m, "filterGroups")
	if err != nil {
		return nil, err
	}
	for i, item := range groups {
		gm, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Errorf("filterGroups[%d] should be map[string]any, got %T", i, item)
		}
		sub, err := FromMap(gm)
		if err != nil {
			return nil, errors.Wrapf(err, "filterGroups[%d]", i)
		}
		g.FilterGroups = append(g.FilterGroups, sub)
	}
	return g, nil
}

func filterFromMap(m map[string]any) (*Filter, error) {
	f := &Filter{}
	f.Key, _ = m["key"].(string)
	if op, ok := m["operator"].(string); ok {
		f.Operator = Operator(op)
	}
	if mode, ok := m["mode"].(string); ok {
		f.Mode = ValueMode(mode)
	}
	values, err := listOf(m, "values")
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		s, ok := valueText(v)
		if !ok {
			return nil, errors.Errorf("values[%d] should be a string, got %T", i, v)
		}
		f.Values = append(f.Values, s)
	}
	return f, nil
}

func listOf(m map[string]any, key string) ([]any, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.Errorf("%s should be []any, got %T", key, raw)
	}
	return list, nil
}

func valueText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return string(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// ValidateMap checks the raw wire form of a filter tree and returns every
// problem, including the ones Validate reports on the typed form.
func ValidateMap(m map[string]any) []string {
	v := &validator{}
	v.groupMap(nil, m, 0)
	return v.messages
}

// maxMapDepth stops the walk of hostile documents
const maxMapDepth = 256

func (v *validator) groupMap(path []string, m map[string]any, depth int) {
	if depth > maxMapDepth {
		v.add(path, "filter groups nested deeper than %d", maxMapDepth)
		return
	}
	switch mode := m["mode"].(type) {
	case string:
		if !Mode(mode).Valid() {
			v.add(path, "%s", invalidModeMessage(mode))
		}
	case nil:
		v.add(path, "mode is required")
	default:
		v.add(path, "mode must be a string, got %s", jsonType(mode))
	}

	if raw, ok := m["filters"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			v.add(path, "filters must be an array, got %s", jsonType(raw))
		}
		for i, item := range list {
			fpath := appendPath(path, fmt.Sprintf("filters[%d]", i))
			fm, ok := item.(map[string]any)
			if !ok {
				v.add(fpath, "filter must be an object, got %s", jsonType(item))
				continue
			}
			v.filterMap(fpath, fm)
		}
	}

	if raw, ok := m["filterGroups"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			v.add(path, "filterGroups must be an array, got %s", jsonType(raw))
		}
		for i, item := range list {
			gpath := appendPath(path, fmt.Sprintf("filterGroups[%d]", i))
			gm, ok := item.(map[string]any)
			if !ok {
				v.add(gpath, "filter group must be an object, got %s", jsonType(item))
				continue
			}
			v.groupMap(gpath, gm, depth+1)
		}
	}
}

func (v *validator) filterMap(path []string, m map[string]any) {
	switch key := m["key"].(type) {
	case string:
		if key == "" {
			v.add(path, "key is required")
		}
	case nil:
		v.add(path, "key is required")
	default:
		v.add(path, "key must be a string, got %s", jsonType(key))
	}

	var op Operator
	switch raw := m["operator"].(type) {
	case string:
		op = Operator(raw)
		if raw == "" {
			v.add(path, "operator is required")
		} else if !op.Valid() {
			v.add(path, "unsupported operator %q", raw)
		}
	case nil:
		v.add(path, "operator is required")
	default:
		v.add(path, "operator must be a string, got %s", jsonType(raw))
	}

	count := 0
	if raw, ok := m["values"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			v.add(path, "values must be an array, got %s", jsonType(raw))
			count = -1
		}
		for i, item := range list {
			if _, ok := valueText(item); !ok {
				v.add(path, "values[%d] must be a string, got %s", i, jsonType(item))
			}
		}
		if count == 0 {
			count = len(list)
		}
	}
	if count == 0 && op.Valid() && !op.IsNullary() {
		v.add(path, "values must not be empty for operator %q", op)
	}

	switch mode := m["mode"].(type) {
	case nil:
	case string:
		if !ValueMode(mode).Valid() {
			v.add(path, "mode must be one of or, and, got %q", mode)
		}
	default:
		v.add(path, "mode must be a string, got %s", jsonType(mode))
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// PruneMap recursively removes nil values, empty slices, and empty nested maps.
func PruneMap(m map[string]any) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
			continue
		}

		if nestedMap, ok := v.(map[string]any); ok {
			PruneMap(nestedMap)
			if len(nestedMap) == 0 {
				delete(m, k)
			}
			continue
		}

		if slice, ok := v.([]any); ok {
			for _, item := range slice {
				if nestedMap, ok := item.(map[string]any); ok {
					PruneMap(nestedMap)
				}
			}
			if len(slice) == 0 {
				delete(m, k)
			}
		}
	}
}

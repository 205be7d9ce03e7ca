package memfilter

import (
	"github.com/pkg/errors"

	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/value"
)

// Matcher is a validated tree ready for repeated evaluation.
type Matcher struct {
	group *filter.FilterGroup
}

// New validates g and returns a Matcher for it.
func New(g *filter.FilterGroup) (*Matcher, error) {
	if err := filter.ValidateErr(g); err != nil {
		return nil, err
	}
	return &Matcher{group: g}, nil
}

func (m *Matcher) Match(record value.Value) bool {
	return Evaluate(m.group, record)
}

// Select returns the items whose record, as produced by toRecord, matches the
// tree. Item order is kept.
func Select[T any](m *Matcher, items []T, toRecord func(item T) (value.Value, error)) ([]T, error) {
	result := make([]T, 0, len(items))
	for i, item := range items {
		record, err := toRecord(item)
		if err != nil {
			return nil, errors.Wrapf(err, "record at index %d", i)
		}
		if m.Match(record) {
			result = append(result, item)
		}
	}
	return result, nil
}

// SelectValues filters a slice of records.
func SelectValues(m *Matcher, records []value.Value) []value.Value {
	result := make([]value.Value, 0, len(records))
	for _, record := range records {
		if m.Match(record) {
			result = append(result, record)
		}
	}
	return result
}

// SelectAny filters arbitrary Go values, converting each with value.Of.
func SelectAny[T any](m *Matcher, items []T) ([]T, error) {
	return Select(m, items, func(item T) (value.Value, error) {
		return value.Of(item)
	})
}

package filter

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/theplant/filtergroup/value"
)

// Operator is the comparison a Filter applies between a field and its values.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNotEq       Operator = "not_eq"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpNil         Operator = "nil"
	OpNotNil      Operator = "not_nil"
)

// Operators lists every supported operator.
var Operators = []Operator{
	OpEq, OpNotEq,
	OpGt, OpGte, OpLt, OpLte,
	OpContains, OpNotContains, OpStartsWith, OpEndsWith,
	OpIn, OpNotIn,
	OpNil, OpNotNil,
}

func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte,
		OpContains, OpNotContains, OpStartsWith, OpEndsWith,
		OpIn, OpNotIn, OpNil, OpNotNil:
		return true
	default:
		return false
	}
}

// IsNullary reports whether the operator ignores Values.
func (op Operator) IsNullary() bool {
	return op == OpNil || op == OpNotNil
}

// IsOrdering reports whether the operator compares numbers.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpGt, OpGte, OpLt, OpLte:
		return true
	default:
		return false
	}
}

// ParseOperator returns the operator named s.
func ParseOperator(s string) (Operator, error) {
	op := Operator(s)
	if !op.Valid() {
		return "", errors.Errorf("unsupported operator %q", s)
	}
	return op, nil
}

// Fold is the case folding applied to both sides of every textual comparison.
// It is Unicode lower casing, which PostgreSQL LOWER matches under a UTF-8
// database collation for letters with a one-to-one lower case mapping.
// Special casings such as U+0130 (İ) can fold differently in SQL.
func Fold(s string) string {
	return strings.ToLower(s)
}

// Holds reports whether op holds between the textual form of a field and one
// candidate value. Nullary and unknown operators never hold.
func (op Operator) Holds(text, candidate string) bool {
	switch op {
	case OpEq, OpIn:
		return Fold(text) == Fold(candidate)
	case OpNotEq, OpNotIn:
		return Fold(text) != Fold(candidate)
	case OpGt, OpGte, OpLt, OpLte:
		a, ok := value.ParseNumeric(text)
		if !ok {
			return false
		}
		b, ok := value.ParseNumeric(candidate)
		if !ok {
			return false
		}
		return CompareNumeric(op, a, b)
	case OpContains:
		return strings.Contains(Fold(text), Fold(candidate))
	case OpNotContains:
		return !strings.Contains(Fold(text), Fold(candidate))
	case OpStartsWith:
		return strings.HasPrefix(Fold(text), Fold(candidate))
	case OpEndsWith:
		return strings.HasSuffix(Fold(text), Fold(candidate))
	case OpNil, OpNotNil:
		return false
	default:
		return false
	}
}

// CompareNumeric applies an ordering operator to two decimals.
func CompareNumeric(op Operator, a, b decimal.Decimal) bool {
	c := a.Cmp(b)
	switch op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	default:
		return false
	}
}

// EscapeLike escapes the LIKE wildcards of s with a backslash.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern returns the folded LIKE pattern matching op against candidate.
// It reports false for operators outside the substring family.
func LikePattern(op Operator, candidate string) (string, bool) {
	s := EscapeLike(Fold(candidate))
	switch op {
	case OpContains, OpNotContains:
		return "%" + s + "%", true
	case OpStartsWith:
		return s + "%", true
	case OpEndsWith:
		return "%" + s, true
	default:
		return "", false
	}
}

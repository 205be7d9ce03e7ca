package gormfilter

import (
	"strings"

	"gorm.io/gorm/clause"
)

var (
	// True matches every row.
	True = clause.Expr{SQL: "TRUE"}
	// False matches no row.
	False = clause.Expr{SQL: "FALSE"}
)

// ClauseNot builds the negation of the conjunction of exprs. Unlike
// clause.Not it never distributes the negation over the children and it maps
// an unknown (NULL) conjunction to false before negating, so a row where a
// field is missing is treated the same way the in-memory evaluator treats it.
func ClauseNot(exprs ...clause.Expression) clause.Expression {
	if len(exprs) == 0 {
		return nil
	}
	if len(exprs) == 1 {
		if andCondition, ok := exprs[0].(clause.AndConditions); ok {
			exprs = andCondition.Exprs
		}
	}
	return NotConditions{Exprs: exprs}
}

// NotConditions represents NOT COALESCE(expr AND expr ..., FALSE).
type NotConditions struct {
	Exprs []clause.Expression
}

func (not NotConditions) Build(builder clause.Builder) {
	_, _ = builder.WriteString("NOT COALESCE(")
	if len(not.Exprs) > 1 {
		_ = builder.WriteByte('(')
	}

	for idx, c := range not.Exprs {
		if idx > 0 {
			_, _ = builder.WriteString(clause.AndWithSpace)
		}

		wrapInParentheses := false
		switch v := c.(type) {
		case clause.OrConditions:
			wrapInParentheses = len(not.Exprs) > 1 && len(v.Exprs) == 1
		case clause.Expr:
			sql := strings.ToUpper(v.SQL)
			wrapInParentheses = len(not.Exprs) > 1 && (strings.Contains(sql, clause.AndWithSpace) || strings.Contains(sql, clause.OrWithSpace))
		}

		if wrapInParentheses {
			_ = builder.WriteByte('(')
		}
		c.Build(builder)
		if wrapInParentheses {
			_ = builder.WriteByte(')')
		}
	}

	if len(not.Exprs) > 1 {
		_ = builder.WriteByte(')')
	}
	_, _ = builder.WriteString(", FALSE)")
}

// fragment is a piece of SQL with its bind variables, composed into
// clause.Expr columns.
type fragment struct {
	SQL  string
	Vars []any
}

func (f fragment) expr() clause.Expr {
	return clause.Expr{SQL: f.SQL, Vars: f.Vars}
}

// wrap surrounds the fragment with prefix and suffix.
func (f fragment) wrap(prefix, suffix string) fragment {
	return fragment{SQL: prefix + f.SQL + suffix, Vars: f.Vars}
}

// concat joins fragments, the vars following the SQL order.
func concat(parts ...fragment) fragment {
	var sb strings.Builder
	var vars []any
	for _, p := range parts {
		sb.WriteString(p.SQL)
		vars = append(vars, p.Vars...)
	}
	return fragment{SQL: sb.String(), Vars: vars}
}

func sqlText(s string) fragment {
	return fragment{SQL: s}
}

func bindVar(v any) fragment {
	return fragment{SQL: "?", Vars: []any{v}}
}

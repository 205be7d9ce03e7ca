// Package gormfilter compiles filter trees into gorm where clauses that select
// the same rows the in-memory evaluator would.
package gormfilter

import (
	"cmp"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theplant/filtergroup/filter"
	"github.com/theplant/filtergroup/value"
)

// DefaultJSONColumn is the jsonb column keys are resolved against when no
// resolver is configured.
const DefaultJSONColumn = "body"

type options struct {
	resolver Resolver
}

type Option func(o *options)

// WithResolver sets how filter keys map to SQL.
func WithResolver(r Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.resolver == nil {
		o.resolver = JSONColumn(DefaultJSONColumn)
	}
	return o
}

// Scope adds the compiled tree to the query. An empty root adds nothing.
func Scope(g *filter.FilterGroup, opts ...Option) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if db == nil {
			return nil
		}
		expr, err := Compile(db, g, opts...)
		if err != nil {
			db.AddError(err)
			return db
		}
		if expr != nil {
			db = db.Where(expr)
		}
		return db
	}
}

// Compile validates g and compiles it against the model of db. A nil
// expression means the tree matches every row.
func Compile(db *gorm.DB, g *filter.FilterGroup, opts ...Option) (clause.Expression, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := filter.ValidateErr(g); err != nil {
		return nil, err
	}

	model := cmp.Or(db.Statement.Model, db.Statement.Dest)
	if model == nil {
		return nil, errors.New("model is nil")
	}
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, errors.Wrap(err, "parse schema with db")
	}

	c := &compiler{stmt: stmt, opts: newOptions(opts)}
	if g.IsEmpty() {
		return nil, nil
	}
	return c.group(g)
}

type compiler struct {
	stmt *gorm.Statement
	opts *options
}

func (c *compiler) group(g *filter.FilterGroup) (clause.Expression, error) {
	exprs := make([]clause.Expression, 0, len(g.Filters)+len(g.FilterGroups))
	for _, f := range g.Filters {
		expr, err := c.filter(f)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	for _, sub := range g.FilterGroups {
		expr, err := c.group(sub)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
	}
	if len(exprs) == 0 {
		return True, nil
	}

	switch g.Mode {
	case filter.ModeAnd:
		return combineExprs(filter.ValueModeAnd, exprs...), nil
	case filter.ModeOr:
		return combineExprs(filter.ValueModeOr, exprs...), nil
	case filter.ModeNot:
		return ClauseNot(exprs...), nil
	default:
		return nil, errors.Errorf("unsupported mode %q", g.Mode)
	}
}

func (c *compiler) filter(f *filter.Filter) (clause.Expression, error) {
	if !f.Operator.Valid() {
		return nil, errors.Errorf("unsupported operator %q", f.Operator)
	}
	field, err := c.opts.resolver.Resolve(c.stmt, f.Key)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve key %q", f.Key)
	}

	switch f.Operator {
	case filter.OpNil:
		return clause.Eq{Column: field.Raw.expr(), Value: nil}, nil
	case filter.OpNotNil:
		return clause.Neq{Column: field.Raw.expr(), Value: nil}, nil
	}
	if len(f.Values) == 0 {
		return False, nil
	}

	mode := f.ValueMode()
	lower := field.Text.wrap("LOWER(", ")").expr()
	folded := lo.Map(f.Values, func(v string, _ int) any { return filter.Fold(v) })

	switch f.Operator {
	case filter.OpEq, filter.OpIn:
		if len(folded) == 1 {
			return clause.Eq{Column: lower, Value: folded[0]}, nil
		}
		if mode == filter.ValueModeOr {
			return clause.IN{Column: lower, Values: folded}, nil
		}
		return combineExprs(mode, lo.Map(folded, func(v any, _ int) clause.Expression {
			return clause.Eq{Column: lower, Value: v}
		})...), nil

	case filter.OpNotEq, filter.OpNotIn:
		if len(folded) == 1 {
			return clause.Neq{Column: lower, Value: folded[0]}, nil
		}
		if mode == filter.ValueModeAnd {
			return clause.Not(clause.IN{Column: lower, Values: folded}), nil
		}
		return combineExprs(mode, lo.Map(folded, func(v any, _ int) clause.Expression {
			return clause.Neq{Column: lower, Value: v}
		})...), nil

	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		numeric := numericExpr(field.Text)
		return combineExprs(mode, lo.Map(f.Values, func(v string, _ int) clause.Expression {
			return compareNumeric(f.Operator, numeric, v)
		})...), nil

	case filter.OpContains, filter.OpNotContains, filter.OpStartsWith, filter.OpEndsWith:
		return combineExprs(mode, lo.Map(f.Values, func(v string, _ int) clause.Expression {
			pattern, _ := filter.LikePattern(f.Operator, v)
			like := clause.Like{Column: lower, Value: pattern}
			if f.Operator == filter.OpNotContains {
				return clause.Not(like)
			}
			return like
		})...), nil
	}

	return nil, errors.Errorf("unsupported operator %q", f.Operator)
}

// numericExpr casts text to numeric when it follows the numeric grammar and
// yields NULL otherwise.
func numericExpr(text fragment) clause.Expr {
	return concat(
		text.wrap("CASE WHEN ", " ~ "),
		bindVar(value.NumericPattern),
		text.wrap(" THEN CAST(", " AS numeric) END"),
	).expr()
}

func compareNumeric(op filter.Operator, column clause.Expr, candidate string) clause.Expression {
	d, ok := value.ParseNumeric(candidate)
	if !ok {
		return False
	}
	v := d.String()
	switch op {
	case filter.OpGt:
		return clause.Gt{Column: column, Value: v}
	case filter.OpGte:
		return clause.Gte{Column: column, Value: v}
	case filter.OpLt:
		return clause.Lt{Column: column, Value: v}
	default:
		return clause.Lte{Column: column, Value: v}
	}
}

// combineExprs joins exprs with AND or OR. A single expression is returned as
// is, since gorm joins a lone OrConditions to its siblings with OR.
func combineExprs(mode filter.ValueMode, exprs ...clause.Expression) clause.Expression {
	switch len(exprs) {
	case 0:
		return True
	case 1:
		return exprs[0]
	}
	if mode == filter.ValueModeAnd {
		return clause.AndConditions{Exprs: exprs}
	}
	return clause.OrConditions{Exprs: exprs}
}

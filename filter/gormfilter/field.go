package gormfilter

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/theplant/filtergroup/value"
)

// Field is the SQL view of one filter key.
type Field struct {
	// Text evaluates to the textual form of the field, NULL when it has none
	// (absent, null, object or array).
	Text fragment
	// Raw evaluates to NULL exactly when the field is absent or null.
	Raw fragment
}

// Resolver maps a filter key to the SQL reading it.
type Resolver interface {
	Resolve(stmt *gorm.Statement, key string) (*Field, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(stmt *gorm.Statement, key string) (*Field, error)

func (f ResolverFunc) Resolve(stmt *gorm.Statement, key string) (*Field, error) {
	return f(stmt, key)
}

// jsonScalarTypes are the jsonb types with a textual form.
const jsonScalarTypes = `('string','number','boolean')`

// JSONField reads path out of a jsonb column.
func JSONField(column string, path []string) *Field {
	if len(path) == 0 {
		raw := sqlText(column + ` #>> '{}'`)
		text := concat(
			sqlText("CASE WHEN jsonb_typeof("+column+") IN "+jsonScalarTypes+" THEN "),
			raw,
			sqlText(" END"),
		)
		return &Field{Text: text, Raw: raw}
	}

	args := make([]fragment, 0, 1+2*len(path))
	args = append(args, sqlText(column))
	for _, seg := range path {
		args = append(args, sqlText(", "), bindVar(seg))
	}
	list := concat(args...)

	raw := list.wrap("jsonb_extract_path_text(", ")")
	text := concat(
		list.wrap("CASE WHEN jsonb_typeof(jsonb_extract_path(", ")) IN "+jsonScalarTypes+" THEN "),
		raw,
		sqlText(" END"),
	)
	return &Field{Text: text, Raw: raw}
}

// JSONColumn resolves every key as a dotted path into the jsonb column named
// column of the statement's table.
func JSONColumn(column string) Resolver {
	return ResolverFunc(func(stmt *gorm.Statement, key string) (*Field, error) {
		if key == "" {
			return nil, errors.New("key is required")
		}
		quoted := stmt.Quote(clause.Column{Table: stmt.Table, Name: column})
		return JSONField(quoted, value.ParsePath(key)), nil
	})
}

// ModelColumns resolves keys against the columns of the model schema. A key
// names a column by its field name, its column name or its json tag; when the
// column holds json the remaining segments address a path inside it.
func ModelColumns() Resolver {
	return ResolverFunc(func(stmt *gorm.Statement, key string) (*Field, error) {
		if stmt.Schema == nil {
			return nil, errors.New("model schema is required")
		}
		path := value.ParsePath(key)
		field := lookupField(stmt.Schema, path[0])
		if field == nil || field.DBName == "" {
			return nil, errors.Errorf("missing field %q in schema", path[0])
		}

		quoted := stmt.Quote(clause.Column{Table: stmt.Table, Name: field.DBName})
		if len(path) > 1 {
			if field.GORMDataType != "json" {
				return nil, errors.Errorf("field %q has no nested keys", path[0])
			}
			return JSONField("CAST("+quoted+" AS jsonb)", path[1:]), nil
		}
		if field.GORMDataType == "json" {
			return JSONField("CAST("+quoted+" AS jsonb)", nil), nil
		}
		return &Field{
			Text: sqlText("CAST(" + quoted + " AS TEXT)"),
			Raw:  sqlText(quoted),
		}, nil
	})
}

func lookupField(s *schema.Schema, name string) *schema.Field {
	if f := s.LookUpField(name); f != nil {
		return f
	}
	for _, f := range s.Fields {
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == name {
			return f
		}
	}
	return nil
}

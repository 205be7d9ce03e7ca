package value

import (
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	Null Kind = iota
	String
	Number
	Bool
	Object
	Array
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is an immutable structured value: a record, or any field inside one.
// The zero Value is Null.
type Value struct {
	kind   Kind
	text   string
	fields map[string]Value
	items  []Value
}

func StringValue(s string) Value {
	return Value{kind: String, text: s}
}

func BoolValue(b bool) Value {
	return Value{kind: Bool, text: strconv.FormatBool(b)}
}

// NumberValue creates a number from a decimal literal. The literal is kept in
// canonical form, see CanonicalNumber.
func NumberValue(lit string) (Value, error) {
	text, err := CanonicalNumber(lit)
	if err != nil {
		return Value{}, err
	}
	return Value{kind: Number, text: text}, nil
}

// ObjectValue creates an object value. The map is owned by the returned Value.
func ObjectValue(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: Object, fields: fields}
}

func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: Array, items: items}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == Null }

// Text returns the textual form used by comparisons. Null, objects and arrays
// have no textual form.
func (v Value) Text() (string, bool) {
	switch v.kind {
	case String, Number, Bool:
		return v.text, true
	default:
		return "", false
	}
}

// Field returns the named member of an object.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != Object {
		return Value{}, false
	}
	f, ok := v.fields[name]
	return f, ok
}

// Index returns an array element. Negative indexes count from the end.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != Array {
		return Value{}, false
	}
	if i < 0 {
		i += len(v.items)
	}
	if i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Len returns the number of members of an object or elements of an array.
func (v Value) Len() int {
	switch v.kind {
	case Object:
		return len(v.fields)
	case Array:
		return len(v.items)
	default:
		return 0
	}
}

// Keys returns the sorted member names of an object.
func (v Value) Keys() []string {
	if v.kind != Object {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup walks path one segment at a time. Objects are indexed by member name
// and arrays by integer position. Reaching a missing member, an out of range
// index or a scalar before the path is exhausted reports absent.
//
// A JSON null found at the end of the path is returned as present; callers
// that treat null as absent should check IsNull.
func (v Value) Lookup(path []string) (Value, bool) {
	cur := v
	for _, seg := range path {
		switch cur.kind {
		case Object:
			next, ok := cur.fields[seg]
			if !ok {
				return Value{}, false
			}
			cur = next
		case Array:
			i, ok := parseIndex(seg)
			if !ok {
				return Value{}, false
			}
			next, ok := cur.Index(i)
			if !ok {
				return Value{}, false
			}
			cur = next
		default:
			return Value{}, false
		}
	}
	return cur, true
}

// parseIndex reads an array position the way PostgreSQL reads jsonb path
// subscripts: leading white space and a sign are allowed, nothing may follow
// the digits.
func parseIndex(seg string) (int, bool) {
	i, err := strconv.Atoi(strings.TrimLeft(seg, " \t\n\v\f\r"))
	return i, err == nil
}

// Get resolves a dot-delimited key, see Lookup.
func (v Value) Get(key string) (Value, bool) {
	return v.Lookup(ParsePath(key))
}

// ParsePath splits a dot-delimited key into path segments.
func ParsePath(key string) []string {
	return strings.Split(key, ".")
}

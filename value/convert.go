package value

import (
	"encoding/json"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"
)

// numbers are decoded as json.Number so their literal survives
var jsoniterForValue = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Parse decodes a JSON document.
func Parse(data []byte) (Value, error) {
	var raw any
	if err := jsoniterForValue.Unmarshal(data, &raw); err != nil {
		return Value{}, errors.Wrap(err, "unmarshal value")
	}
	return Of(raw)
}

// MustParse is like Parse but panics on error. Intended for tests and fixtures.
func MustParse(data string) Value {
	v, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return v
}

// Of converts a Go value into a Value. Besides the JSON primitives it accepts
// every integer and float type, json.Number, maps with string keys, slices,
// protobuf Struct values and raw JSON. Anything else goes through its JSON
// encoding.
func Of(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return Value{}, nil
		}
		return *x, nil
	case string:
		return StringValue(x), nil
	case bool:
		return BoolValue(x), nil
	case json.Number:
		return NumberValue(string(x))
	case int:
		return NumberValue(strconv.FormatInt(int64(x), 10))
	case int8:
		return NumberValue(strconv.FormatInt(int64(x), 10))
	case int16:
		return NumberValue(strconv.FormatInt(int64(x), 10))
	case int32:
		return NumberValue(strconv.FormatInt(int64(x), 10))
	case int64:
		return NumberValue(strconv.FormatInt(x, 10))
	case uint:
		return NumberValue(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return NumberValue(strconv.FormatUint(uint64(x), 10))
	case uint16:
		return NumberValue(strconv.FormatUint(uint64(x), 10))
	case uint32:
		return NumberValue(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return NumberValue(strconv.FormatUint(x, 10))
	case float32:
		return floatValue(float64(x), 32)
	case float64:
		return floatValue(x, 64)
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fv, err := Of(item)
			if err != nil {
				return Value{}, errors.Wrapf(err, "field %q", k)
			}
			fields[k] = fv
		}
		return ObjectValue(fields), nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			iv, err := Of(item)
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			items[i] = iv
		}
		return ArrayValue(items...), nil
	case *structpb.Value:
		return FromProto(x)
	case *structpb.Struct:
		return FromProto(structpb.NewStructValue(x))
	case *structpb.ListValue:
		return FromProto(structpb.NewListValue(x))
	case json.RawMessage:
		return Parse(x)
	case []byte:
		return Parse(x)
	}

	data, err := jsoniterForValue.Marshal(v)
	if err != nil {
		return Value{}, errors.Wrapf(err, "marshal %T", v)
	}
	return Parse(data)
}

func floatValue(f float64, bitSize int) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.Errorf("unsupported number %v", f)
	}
	return NumberValue(strconv.FormatFloat(f, 'f', -1, bitSize))
}

// FromProto converts a google.protobuf.Value.
func FromProto(pv *structpb.Value) (Value, error) {
	if pv == nil {
		return Value{}, nil
	}
	switch k := pv.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return Value{}, nil
	case *structpb.Value_StringValue:
		return StringValue(k.StringValue), nil
	case *structpb.Value_BoolValue:
		return BoolValue(k.BoolValue), nil
	case *structpb.Value_NumberValue:
		return floatValue(k.NumberValue, 64)
	case *structpb.Value_StructValue:
		fields := make(map[string]Value, len(k.StructValue.GetFields()))
		for name, f := range k.StructValue.GetFields() {
			fv, err := FromProto(f)
			if err != nil {
				return Value{}, errors.Wrapf(err, "field %q", name)
			}
			fields[name] = fv
		}
		return ObjectValue(fields), nil
	case *structpb.Value_ListValue:
		items := make([]Value, len(k.ListValue.GetValues()))
		for i, item := range k.ListValue.GetValues() {
			iv, err := FromProto(item)
			if err != nil {
				return Value{}, errors.Wrapf(err, "index %d", i)
			}
			items[i] = iv
		}
		return ArrayValue(items...), nil
	default:
		return Value{}, errors.Errorf("unsupported proto value kind %T", k)
	}
}

// Interface returns the plain Go form: nil, string, json.Number, bool,
// map[string]any or []any.
func (v Value) Interface() any {
	switch v.kind {
	case String:
		return v.text
	case Number:
		return json.Number(v.text)
	case Bool:
		return v.text == "true"
	case Object:
		m := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			m[k] = f.Interface()
		}
		return m
	case Array:
		s := make([]any, len(v.items))
		for i, item := range v.items {
			s[i] = item.Interface()
		}
		return s
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return jsoniterForValue.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

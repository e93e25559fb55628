package types

import (
	"encoding/json"
	"fmt"
)

// ToJSON renders a Value as JSON text, used to bind parameters into
// JS/Python subprocess invocations (spec.md §4.5) and to implement the
// `@json`/`@json.strict` pipeline transformers (spec.md §4.6).
func ToJSON(v Value) (string, error) {
	data, err := toAny(v)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func toAny(v Value) (any, error) {
	switch v.Kind {
	case KindNull:
		return nil, nil
	case KindString:
		return v.Str, nil
	case KindNumber:
		return v.Num, nil
	case KindBool:
		return v.Bool, nil
	case KindArray:
		out := make([]any, len(v.Array))
		for i, e := range v.Array {
			a, err := toAny(e)
			if err != nil {
				return nil, err
			}
			out[i] = a
		}
		return out, nil
	case KindObject:
		out := make(map[string]any, len(v.Object))
		for _, k := range v.Keys() {
			a, err := toAny(v.Object[k])
			if err != nil {
				return nil, err
			}
			out[k] = a
		}
		return out, nil
	default:
		return nil, fmt.Errorf("types: unknown value kind %v", v.Kind)
	}
}

// FromJSON parses JSON text into a Value. Object key order is taken
// from the decoder's natural traversal (Go's encoding/json does not
// preserve source order for map[string]any, so ToJSON/FromJSON is only
// guaranteed round-trip-equal by structural Equal, not by key order;
// spec.md §8 invariant 6 is a structural equality claim, not a
// text-identity one).
func FromJSON(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	return fromAny(raw), nil
}

func fromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case string:
		return String(x)
	case float64:
		return Number(x)
	case bool:
		return Bool(x)
	case []any:
		items := make([]Value, len(x))
		for i, e := range x {
			items[i] = fromAny(e)
		}
		return Array(items...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		fields := make(map[string]Value, len(x))
		for k, v := range x {
			keys = append(keys, k)
			fields[k] = fromAny(v)
		}
		return NewObject(keys, fields)
	default:
		return Null()
	}
}

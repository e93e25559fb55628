// Package types holds the shared data-model types referenced across the
// interpreter: the structural Value union (spec.md §3, `.data` field),
// DataLabel taint tags, and type hints for executable parameters.
package types

import "fmt"

// ValueKind discriminates which field of Value is populated, the same
// tagged-union-with-kind-discriminant shape used for its
// plan-format Value (core/planfmt/plan.go).
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the structural ("`.data`") view of an mlld runtime value:
// a JSON-shaped tree of scalars, arrays, and objects. It is the type
// StructuredValue.Data holds (see value.StructuredValue).
type Value struct {
	Kind ValueKind

	Str    string
	Num    float64
	Bool   bool
	Array  []Value
	Object map[string]Value

	// keys preserves object key insertion/source order for deterministic
	// re-serialization (round-trip invariant, spec.md §8 invariant 6).
	keys []string
}

func Null() Value                { return Value{Kind: KindNull} }
func String(s string) Value      { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value     { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value          { return Value{Kind: KindBool, Bool: b} }
func Array(items ...Value) Value { return Value{Kind: KindArray, Array: items} }

// NewObject builds an Object Value, preserving the given key order.
func NewObject(keys []string, fields map[string]Value) Value {
	return Value{Kind: KindObject, Object: fields, keys: append([]string(nil), keys...)}
}

// Keys returns object keys in their original order, or nil for non-objects.
func (v Value) Keys() []string {
	if v.Kind != KindObject {
		return nil
	}
	if v.keys != nil {
		return v.keys
	}
	keys := make([]string, 0, len(v.Object))
	for k := range v.Object {
		keys = append(keys, k)
	}
	return keys
}

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Field returns a nested object field, the FieldAccessError path if the
// receiver isn't an object or the field is absent is the caller's
// responsibility (value package wraps this with location info).
func (v Value) Field(name string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	f, ok := v.Object[name]
	return f, ok
}

// Index returns an array element, or (zero, false) if out of range or
// the receiver isn't an array.
func (v Value) Index(i int) (Value, bool) {
	if v.Kind != KindArray || i < 0 || i >= len(v.Array) {
		return Value{}, false
	}
	return v.Array[i], true
}

// Truthy implements mlld's truthiness rules for `when`/ternary conditions:
// false, 0, "", null, and empty arrays/objects are falsy; everything else
// is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num != 0
	case KindString:
		return v.Str != ""
	case KindArray:
		return len(v.Array) > 0
	case KindObject:
		return len(v.Object) > 0
	default:
		return false
	}
}

// Equal reports structural equality, used by `==`/`!=` BinaryOp
// evaluation and when-condition matching.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		// allow cross number/string comparisons to fail cleanly rather
		// than panicking; BinaryOp decides coercion rules, not Value.
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.Object) != len(o.Object) {
			return false
		}
		for k, fv := range v.Object {
			ov, ok := o.Object[k]
			if !ok || !fv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a debug/display form. Display-boundary text rendering
// for StructuredValue.Text goes through value.AsText instead, which
// knows mlld's display-form rules (e.g. arrays render JSON-compact).
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindString:
		return v.Str
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindArray:
		return fmt.Sprintf("<array len=%d>", len(v.Array))
	case KindObject:
		return fmt.Sprintf("<object keys=%d>", len(v.Object))
	default:
		return "<unknown>"
	}
}

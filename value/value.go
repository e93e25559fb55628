// Package value implements the Structured Value (spec.md §3, §4.2): the
// uniform wrapper carrying `.text`, `.data`, and `.mx` across every
// component boundary. Per the Design Notes (§9, "Metadata
// wrapping"), it is a plain value with explicit fields — never a
// subclass of the underlying data — and every helper (AsText, AsData,
// IsStructured) is a free function so field access elsewhere in the
// interpreter can't accidentally unwrap it.
package value

import (
	"fmt"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/types"
)

// PolicyContext carries the set of guard scopes known to be active for
// a value at the point it was produced (spec.md §3: "`.mx.policy?`").
// It lets the evaluator skip re-resolving guard scopes that have
// already been checked earlier in a derivation chain.
type PolicyContext struct {
	ActiveGuards []string
}

// GuardTraceEntry is one row of `mx.guard.trace[]` (spec.md §4.7).
type GuardTraceEntry struct {
	GuardName   string
	Outcome     string // "allow", "deny", "retry"
	Reason      string // deny reason, if any
	Replacement *StructuredValue
}

// Metadata is the `.mx` companion of a StructuredValue.
type Metadata struct {
	Labels    types.LabelSet
	Taint     types.LabelSet
	Sources   []string
	Tokens    int
	Policy    *PolicyContext
	DefinedAt ast.Position

	// Provenance reconstructs "this came from variable X through
	// transforms Y/Z" (spec.md §9); executors reset it to "lang:funcName"
	// rather than preserving it across opaque code execution.
	Provenance string

	// GuardTrace accumulates guard evaluations that touched this value,
	// in registration/evaluation order (spec.md §4.7).
	GuardTrace []GuardTraceEntry
}

// Clone returns an independent copy so propagation never aliases a
// parent's slices/sets into a derived value.
func (m Metadata) Clone() Metadata {
	out := m
	out.Labels = m.Labels.Clone()
	out.Taint = m.Taint.Clone()
	out.Sources = append([]string(nil), m.Sources...)
	out.GuardTrace = append([]GuardTraceEntry(nil), m.GuardTrace...)
	if m.Policy != nil {
		p := *m.Policy
		out.Policy = &p
	}
	return out
}

// WithSource returns a copy of m with op appended to Sources (spec.md
// §4.2: "`sources` append operation names").
func (m Metadata) WithSource(op string) Metadata {
	out := m.Clone()
	out.Sources = append(out.Sources, op)
	return out
}

// UnionMeta merges N metadata sets per spec.md §4.2's union rule:
// labels, taint, and tokens union/sum; sources concatenate in
// evaluation order; the first non-nil Policy wins; Provenance and
// DefinedAt are NOT merged (the caller sets those for the produced
// value, since they describe the result, not its inputs).
func UnionMeta(inputs ...Metadata) Metadata {
	labelSets := make([]types.LabelSet, len(inputs))
	taintSets := make([]types.LabelSet, len(inputs))
	var sources []string
	var tokens int
	var policy *PolicyContext
	for i, m := range inputs {
		labelSets[i] = m.Labels
		taintSets[i] = m.Taint
		sources = append(sources, m.Sources...)
		tokens += m.Tokens
		if policy == nil && m.Policy != nil {
			policy = m.Policy
		}
	}
	return Metadata{
		Labels:  types.Union(labelSets...),
		Taint:   types.Union(taintSets...),
		Sources: sources,
		Tokens:  tokens,
		Policy:  policy,
	}
}

// StructuredValue is the universal runtime value (spec.md §3). It is
// never mutated in place: every operation returns a new instance.
type StructuredValue struct {
	Text string
	Data types.Value
	Mx   Metadata
}

// New builds a StructuredValue with both views set explicitly.
func New(text string, data types.Value, mx Metadata) *StructuredValue {
	return &StructuredValue{Text: text, Data: data, Mx: mx}
}

// FromText builds a text-only StructuredValue (`.data` is a string
// Value mirroring `.text`), the common case for `/var @x = "literal"`.
func FromText(text string, mx Metadata) *StructuredValue {
	return &StructuredValue{Text: text, Data: types.String(text), Mx: mx}
}

// FromData builds a StructuredValue from a structural Value, deriving
// `.text` via AsText's display rules.
func FromData(data types.Value, mx Metadata) *StructuredValue {
	sv := &StructuredValue{Data: data, Mx: mx}
	sv.Text = renderText(data)
	return sv
}

// AsText returns the display-boundary text form (spec.md §4.2: "at
// display boundaries — /show, template interpolation into strings,
// shell command args").
func AsText(v *StructuredValue) string {
	if v == nil {
		return ""
	}
	return v.Text
}

// AsData returns the computation-boundary structural form (spec.md
// §4.2: "at computation boundaries — field access, JS parameter
// binding, object construction").
func AsData(v *StructuredValue) types.Value {
	if v == nil {
		return types.Null()
	}
	return v.Data
}

// IsStructured reports whether x is already a *StructuredValue, so
// callers at a boundary can pass through without double-wrapping.
func IsStructured(x any) bool {
	_, ok := x.(*StructuredValue)
	return ok
}

// renderText implements the canonical "display form" for a raw
// structural Value: scalars render plainly, arrays/objects render
// compact JSON-like text (spec.md S4: "`[2,4,6]` (data form) or compact
// text form per materializer rules").
func renderText(v types.Value) string {
	switch v.Kind {
	case types.KindNull:
		return "null"
	case types.KindString:
		return v.Str
	case types.KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case types.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case types.KindArray:
		parts := make([]string, len(v.Array))
		for i, e := range v.Array {
			parts[i] = renderJSON(e)
		}
		return "[" + join(parts, ",") + "]"
	case types.KindObject:
		return renderJSON(v)
	default:
		return ""
	}
}

func renderJSON(v types.Value) string {
	switch v.Kind {
	case types.KindNull:
		return "null"
	case types.KindString:
		return fmt.Sprintf("%q", v.Str)
	case types.KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case types.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case types.KindArray:
		parts := make([]string, len(v.Array))
		for i, e := range v.Array {
			parts[i] = renderJSON(e)
		}
		return "[" + join(parts, ",") + "]"
	case types.KindObject:
		keys := v.Keys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%q:%s", k, renderJSON(v.Object[k]))
		}
		return "{" + join(parts, ",") + "}"
	default:
		return "null"
	}
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

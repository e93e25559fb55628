// Package ast defines the typed AST that the external parser (spec.md
// §1: explicitly out of scope) is assumed to produce and that every
// other component in this module consumes. Node variants follow the
// "newer" shape spec.md §13 decision 1 calls for: Directive carries
// `Values map[string][]Node` rather than positional children.
package ast

import (
	"fmt"
	"strings"
)

// Position is a source location, the minimal location info every Node
// carries (errkind.Location is built from this at the error-reporting
// boundary so ast stays independent of errkind).
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Node is implemented by every AST variant.
type Node interface {
	String() string
	Position() Position
}

// ---------------------------------------------------------------------
// Literals and references
// ---------------------------------------------------------------------

type Text struct {
	Content string
	Pos     Position
}

func (t *Text) String() string     { return t.Content }
func (t *Text) Position() Position { return t.Pos }

type StringLiteral struct {
	Value string
	Pos   Position
}

func (s *StringLiteral) String() string     { return fmt.Sprintf("%q", s.Value) }
func (s *StringLiteral) Position() Position { return s.Pos }

type NumberLiteral struct {
	Value float64
	Pos   Position
}

func (n *NumberLiteral) String() string     { return fmt.Sprintf("%g", n.Value) }
func (n *NumberLiteral) Position() Position { return n.Pos }

type BooleanLiteral struct {
	Value bool
	Pos   Position
}

func (b *BooleanLiteral) String() string     { return fmt.Sprintf("%t", b.Value) }
func (b *BooleanLiteral) Position() Position { return b.Pos }

// NullLiteral represents the literal `null`.
type NullLiteral struct {
	Pos Position
}

func (n *NullLiteral) String() string     { return "null" }
func (n *NullLiteral) Position() Position { return n.Pos }

// ObjectLiteral is `{ key: expr, ... }`. Order is preserved so that
// re-serialization (§8 invariant 6) is deterministic.
type ObjectLiteral struct {
	Keys   []string
	Values map[string]Node
	Pos    Position
}

func (o *ObjectLiteral) String() string {
	parts := make([]string, 0, len(o.Keys))
	for _, k := range o.Keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, o.Values[k].String()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (o *ObjectLiteral) Position() Position { return o.Pos }

type ArrayLiteral struct {
	Elements []Node
	Pos      Position
}

func (a *ArrayLiteral) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (a *ArrayLiteral) Position() Position { return a.Pos }

// FieldAccessKind discriminates the four forms of postfix access
// spec.md §3/§4.3.2 names: `.field`, `[index]`, `[a:b]` slices, and
// `.method(args)` calls.
type FieldAccessKind int

const (
	FieldKindField FieldAccessKind = iota
	FieldKindIndex
	FieldKindSlice
	FieldKindCall
)

type FieldAccess struct {
	Kind FieldAccessKind

	Name     string // FieldKindField, FieldKindCall (method name)
	Index    Node   // FieldKindIndex, or slice start for FieldKindSlice
	SliceEnd Node   // FieldKindSlice only; nil means open-ended
	Args     []Node // FieldKindCall only

	Pos Position
}

func (f FieldAccess) String() string {
	switch f.Kind {
	case FieldKindField:
		return "." + f.Name
	case FieldKindIndex:
		return "[" + f.Index.String() + "]"
	case FieldKindSlice:
		end := ""
		if f.SliceEnd != nil {
			end = f.SliceEnd.String()
		}
		start := ""
		if f.Index != nil {
			start = f.Index.String()
		}
		return "[" + start + ":" + end + "]"
	case FieldKindCall:
		parts := make([]string, len(f.Args))
		for i, a := range f.Args {
			parts[i] = a.String()
		}
		return "." + f.Name + "(" + strings.Join(parts, ", ") + ")"
	default:
		return "<invalid field access>"
	}
}

// VariableReference is `@name.field[0].method()`.
type VariableReference struct {
	Identifier string
	Fields     []FieldAccess
	Pos        Position
}

func (v *VariableReference) String() string {
	var b strings.Builder
	b.WriteString("@")
	b.WriteString(v.Identifier)
	for _, f := range v.Fields {
		b.WriteString(f.String())
	}
	return b.String()
}
func (v *VariableReference) Position() Position { return v.Pos }

package env

import (
	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/value"
)

// VariableKind is the `kind` discriminant spec.md §3 names.
type VariableKind string

const (
	KindText       VariableKind = "text"
	KindData       VariableKind = "data"
	KindObject     VariableKind = "object"
	KindArray      VariableKind = "array"
	KindPath       VariableKind = "path"
	KindExecutable VariableKind = "executable"
	KindComputed   VariableKind = "computed"
)

// VariableSource records where/how a Variable was created, for
// diagnostics (e.g. "redefinition of @x, first bound at 3:1").
type VariableSource struct {
	Directive string // "var", "exe", "path", "import", "for"
	DefinedAt ast.Position
	File      string
}

// VariableContext is the Variable-level `mx` companion (distinct from
// StructuredValue.Mx, which describes the value's own provenance/taint;
// VariableContext describes the binding itself).
type VariableContext struct {
	Exported bool
}

// Executable is an implementor of callable behavior bound to a
// Variable of kind executable (spec.md §3, §4.3 `/exe`). It is defined
// in the exe package; env only holds an opaque reference here, so env
// does not depend on exe.
type Executable interface {
	ParamNames() []string
}

// Variable is an immutable post-creation binding. Redefining a name in
// the same scope is a VariableRedefinition error (spec.md §8
// invariant 2); shadowing a parent scope's binding is allowed.
type Variable struct {
	Name   string
	Kind   VariableKind
	Value  *value.StructuredValue
	Source VariableSource
	Mx     VariableContext

	// Exec is populated when Kind == KindExecutable.
	Exec Executable
}

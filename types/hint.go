package types

// TypeHint is the (optional) declared type of an `/exe` parameter
// (spec.md §3, `Executable.params: (Name, TypeHint?)[]`). It mirrors the
// a ParamType shape (core/types/schema.go) narrowed to mlld's simpler
// data model (no duration/handle types — those are domain-specific to
// a shell-decorator vocabulary this interpreter doesn't have).
type TypeHint string

const (
	HintAny    TypeHint = ""
	HintString TypeHint = "string"
	HintNumber TypeHint = "number"
	HintBool   TypeHint = "boolean"
	HintArray  TypeHint = "array"
	HintObject TypeHint = "object"
)

// JSONSchemaType returns the JSON Schema "type" keyword value for a
// hint, used by eval.validateParamHints to check a declared /exe
// parameter's bound argument before the executable body runs.
func (h TypeHint) JSONSchemaType() string {
	switch h {
	case HintString:
		return "string"
	case HintNumber:
		return "number"
	case HintBool:
		return "boolean"
	case HintArray:
		return "array"
	case HintObject:
		return "object"
	default:
		return ""
	}
}

// Param is one declared parameter of an Executable.
type Param struct {
	Name string
	Hint TypeHint
}

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlld-lang/mlld-core/types"
)

func TestJSONSchemaTypeMapsEveryDeclaredHint(t *testing.T) {
	cases := map[types.TypeHint]string{
		types.HintString: "string",
		types.HintNumber: "number",
		types.HintBool:   "boolean",
		types.HintArray:  "array",
		types.HintObject: "object",
		types.HintAny:    "",
	}
	for hint, want := range cases {
		assert.Equal(t, want, hint.JSONSchemaType(), "hint %q", hint)
	}
}

package resolver

import (
	"bytes"
	"context"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mlld-lang/mlld-core/errkind"
)

// Manifest is a module's declared `needs` (spec.md §4.8 step 5:
// "runtimes/tools/packages/capabilities").
type Manifest struct {
	Runtimes     []string `json:"runtimes,omitempty"`
	Tools        []string `json:"tools,omitempty"`
	Packages     []string `json:"packages,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// manifestSchema validates the *shape* of a needs declaration parsed
// from a module's frontmatter/directive before the set-containment
// check below runs against what the host actually offers.
const manifestSchema = `{
  "type": "object",
  "properties": {
    "runtimes": {"type": "array", "items": {"type": "string"}},
    "tools": {"type": "array", "items": {"type": "string"}},
    "packages": {"type": "array", "items": {"type": "string"}},
    "capabilities": {"type": "array", "items": {"type": "string"}}
  },
  "additionalProperties": false
}`

var needsValidator = mustCompileNeedsSchema()

func mustCompileNeedsSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("needs.json", bytes.NewReader([]byte(manifestSchema))); err != nil {
		panic("resolver: invalid needs schema: " + err.Error())
	}
	schema, err := compiler.Compile("needs.json")
	if err != nil {
		panic("resolver: failed to compile needs schema: " + err.Error())
	}
	return schema
}

// ValidateManifestShape checks raw (a decoded needs object, as
// map[string]any) against manifestSchema before it is trusted as a
// Manifest.
func ValidateManifestShape(raw map[string]any) error {
	if err := needsValidator.Validate(raw); err != nil {
		return errkind.Wrap(errkind.NeedsUnsatisfied, "malformed needs declaration", err)
	}
	return nil
}

// Available is what the host/runtime actually offers, against which a
// module's Manifest is checked (spec.md §4.8 step 5).
type Available struct {
	Runtimes     map[string]bool
	Tools        map[string]bool
	Packages     map[string]bool
	Capabilities map[string]bool
}

// Enforce fails with a NeedsUnsatisfied error naming every missing
// item if Manifest declares anything Available doesn't provide (spec.md
// §4.8 step 5: "fail with `needs not satisfied` if any are missing").
func Enforce(ctx context.Context, m Manifest, avail Available) error {
	var missing []string
	missing = append(missing, missingFrom("runtime", m.Runtimes, avail.Runtimes)...)
	missing = append(missing, missingFrom("tool", m.Tools, avail.Tools)...)
	missing = append(missing, missingFrom("package", m.Packages, avail.Packages)...)
	missing = append(missing, missingFrom("capability", m.Capabilities, avail.Capabilities)...)

	if len(missing) == 0 {
		return nil
	}
	return errkind.New(errkind.NeedsUnsatisfied, fmt.Sprintf("needs not satisfied: %v", missing)).
		WithContext("missing", missing)
}

func missingFrom(kind string, required []string, have map[string]bool) []string {
	var out []string
	for _, r := range required {
		if !have[r] {
			out = append(out, kind+":"+r)
		}
	}
	return out
}

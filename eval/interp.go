package eval

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// evalTemplate implements the Interpolator (spec.md §4.4): every node
// in a Template's body is evaluated and concatenated as text, with
// triple-colon templates treating bracketed tokens as literal XML
// rather than file loads (already resolved by the parser into plain
// Text nodes for that style, so no special-casing is needed here).
func (ev *Evaluator) evalTemplate(ctx context.Context, t *ast.Template, e *env.Env) (*value.StructuredValue, error) {
	return ev.interpolateNodes(ctx, t.Body, e)
}

func (ev *Evaluator) interpolateNodes(ctx context.Context, nodes []ast.Node, e *env.Env) (*value.StructuredValue, error) {
	var sb strings.Builder
	var metas []value.Metadata
	for _, n := range nodes {
		sv, err := ev.EvalExpr(ctx, n, e)
		if err != nil {
			return nil, err
		}
		sb.WriteString(value.AsText(sv))
		metas = append(metas, sv.Mx)
	}
	return value.FromText(sb.String(), value.UnionMeta(metas...)), nil
}

var headingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)

// evalFileLoad implements `<path # Section { selector }>` (spec.md
// §4.4 step 4): loads file content relative to the current file's
// directory, narrows to a markdown heading section when `# Section` is
// given, and narrows to a dotted key path into parsed JSON/YAML when
// `{ selector }` is given. A whole `.json`/`.yaml`/`.yml` file loaded
// without a section or selector is parsed into `.data`, with `.text`
// kept as the file content; the `{ selector }` form does not extract
// definitions from source files.
func (ev *Evaluator) evalFileLoad(ctx context.Context, f *ast.FileLoad, e *env.Env) (*value.StructuredValue, error) {
	pathSV, err := ev.EvalExpr(ctx, f.PathExpr, e)
	if err != nil {
		return nil, err
	}
	path := value.AsText(pathSV)
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(e.CurrentFilePath()), path)
	}
	if ev.FS == nil {
		return nil, errkind.New(errkind.Execution, "no filesystem configured for file load")
	}
	raw, err := ev.FS.ReadFile(ctx, path)
	if err != nil {
		return nil, errkind.Wrap(errkind.Execution, "loading "+path, err)
	}
	content := string(raw)

	if f.Section != "" {
		content = extractMarkdownSection(content, f.Section)
	}

	mx := value.Metadata{Sources: []string{path}}
	if f.Selector == "" {
		if f.Section == "" {
			switch strings.ToLower(filepath.Ext(path)) {
			case ".json", ".yaml", ".yml":
				data, err := decodeStructured(path, raw)
				if err != nil {
					return nil, err
				}
				return value.New(content, data, mx), nil
			}
		}
		return value.FromText(content, mx), nil
	}

	data, err := decodeStructured(path, raw)
	if err != nil {
		return nil, err
	}
	selected, ok := selectPath(data, f.Selector)
	if !ok {
		return nil, errkind.New(errkind.UndefinedRef, "selector "+f.Selector+" not found in "+path)
	}
	return value.FromData(selected, mx), nil
}

// extractMarkdownSection returns the body under the first heading
// whose text matches name, stopping at the next heading of equal or
// shallower depth.
func extractMarkdownSection(content, name string) string {
	matches := headingRe.FindAllStringSubmatchIndex(content, -1)
	for i, m := range matches {
		headingText := content[m[4]:m[5]]
		if !strings.EqualFold(strings.TrimSpace(headingText), strings.TrimSpace(name)) {
			continue
		}
		depth := m[3] - m[2]
		start := m[1]
		end := len(content)
		for _, next := range matches[i+1:] {
			nextDepth := next[3] - next[2]
			if nextDepth <= depth {
				end = next[0]
				break
			}
		}
		return strings.TrimSpace(content[start:end])
	}
	return ""
}

func decodeStructured(path string, raw []byte) (types.Value, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(raw)
	default:
		return types.FromJSON(raw)
	}
}

func decodeYAML(raw []byte) (types.Value, error) {
	var node any
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return types.Value{}, err
	}
	return yamlToValue(node), nil
}

func yamlToValue(node any) types.Value {
	switch x := node.(type) {
	case nil:
		return types.Null()
	case string:
		return types.String(x)
	case int:
		return types.Number(float64(x))
	case float64:
		return types.Number(x)
	case bool:
		return types.Bool(x)
	case []any:
		items := make([]types.Value, len(x))
		for i, item := range x {
			items[i] = yamlToValue(item)
		}
		return types.Array(items...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		fields := make(map[string]types.Value, len(x))
		for k, v := range x {
			keys = append(keys, k)
			fields[k] = yamlToValue(v)
		}
		return types.NewObject(keys, fields)
	case map[any]any:
		keys := make([]string, 0, len(x))
		fields := make(map[string]types.Value, len(x))
		for k, v := range x {
			ks, _ := k.(string)
			keys = append(keys, ks)
			fields[ks] = yamlToValue(v)
		}
		return types.NewObject(keys, fields)
	default:
		return types.Null()
	}
}

// selectPath walks a dotted key path (`a.b.c`) into a parsed value.
func selectPath(v types.Value, selector string) (types.Value, bool) {
	current := v
	for _, part := range strings.Split(selector, ".") {
		field, ok := current.Field(part)
		if !ok {
			return types.Value{}, false
		}
		current = field
	}
	return current, true
}

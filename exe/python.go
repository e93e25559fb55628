package exe

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/types"
)

// PythonExecutor runs `py`/`python` code blocks (spec.md §4.5).
// Parameters bind as Python locals decoded from their JSON form (the
// evaluator hands PythonExecutor plain types.Value — it has already
// called value.AsData before invocation): strings, numbers, booleans,
// lists and dicts, with no coercion between them. No
// `__mlld_type__`/`__mlld_metadata__` tagging is attached, so
// `mlld.is_variable` returns False for every bound parameter.
type PythonExecutor struct {
	Subprocess Subprocess
	PythonBin  string // default "python3"
}

func (e *PythonExecutor) Run(ctx context.Context, code string, params Params) (types.Value, string, error) {
	prelude, err := buildPythonPrelude(params)
	if err != nil {
		return types.Value{}, "", err
	}
	script := pythonHelpers + prelude + "\n" + indentPythonBody(code) + "\n" +
		"print(__mlld_json_dumps(locals().get('result', None)))\n"

	bin := e.PythonBin
	if bin == "" {
		bin = "python3"
	}
	res, err := e.Subprocess.Spawn(ctx, bin+" -c "+quoteShellLiteral(script), nil, "", "")
	if err != nil {
		return types.Value{}, "", errkind.Wrap(errkind.Execution, "python execution failed", err)
	}
	if res.ExitCode != 0 {
		return types.Value{}, res.Stderr, errkind.New(errkind.Execution, fmt.Sprintf("python exited %d: %s", res.ExitCode, res.Stderr)).
			WithContext("stderr", res.Stderr)
	}
	val, err := types.FromJSON([]byte(strings.TrimSpace(res.Stdout)))
	if err != nil {
		return types.Value{}, res.Stderr, errkind.Wrap(errkind.Execution, "failed to parse python result", err)
	}
	return val, res.Stderr, nil
}

// pythonHelpers defines `mlld.is_variable` (spec.md §4.5) and the JSON
// dump helper used to marshal the script's `result` back to mlld.
const pythonHelpers = `
import json as __mlld_json
class __MlldModule:
    def is_variable(self, v):
        return isinstance(v, dict) and "__mlld_type__" in v
mlld = __MlldModule()
def __mlld_json_dumps(v):
    return __mlld_json.dumps(v)
`

func buildPythonPrelude(params Params) (string, error) {
	var b strings.Builder
	for i, name := range params.Names {
		data, err := types.ToJSON(params.Values[i])
		if err != nil {
			return "", errkind.Wrap(errkind.Execution, "failed to bind parameter "+name, err)
		}
		fmt.Fprintf(&b, "%s = __mlld_json.loads(%q)\n", name, data)
	}
	return b.String(), nil
}

// indentPythonBody leaves the body unindented: it runs at module scope,
// not inside a wrapping function, matching how the shell
// worker scripts splice user-provided code directly into a generated
// wrapper (runtime/executor/shell_worker.go buildWorkerScript).
func indentPythonBody(code string) string {
	return code
}

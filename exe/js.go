package exe

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/types"
)

// JSExecutor runs `js`/`node` code blocks (spec.md §4.5). Parameters
// bind as same-named variables in the script's scope; shadow functions
// declared reachable via `js => { … }` registration are injected as
// same-named stubs that throw when called (see Run). `node` always runs as a separate process (for Node-only
// APIs); `js` is executed the same way here since sandboxing a V8-like
// scope in-process would require an embedded JS engine, which is
// outside this module's dependency surface (see DESIGN.md) — isolation
// between the two is therefore a policy distinction the evaluator
// enforces (which shadow calls and globals it allows to reach the
// script), not a process-boundary one; real sandboxing is delegated to
// the host per spec.md §1's Non-goals.
type JSExecutor struct {
	Subprocess Subprocess
	NodeBin    string // default "node"
}

// returnOrSemicolon detects whether a js body already returns or ends a
// statement, to decide whether to auto-wrap it in `return (...)` per
// spec.md §4.5 ("js permits both expression-body and statement-body
// forms — auto-wrap in return (…) when no explicit return/semicolon is
// present").
var returnOrSemicolon = regexp.MustCompile(`(?m)(^|[^a-zA-Z])return\b|;\s*$`)

func wrapJSBody(code string) string {
	trimmed := strings.TrimSpace(code)
	if returnOrSemicolon.MatchString(trimmed) {
		return code
	}
	return "return (" + trimmed + ");"
}

// Run binds params and shadow functions into a generated script prelude
// and executes it via the node binary. Shadows are serialized as
// unreachable stubs that throw if called: bridging a live shadow call
// across the subprocess boundary requires a bidirectional RPC channel
// the host doesn't expose yet.
// TODO: replace shadow stubs with a JSON-RPC loop over a side channel
// once Subprocess exposes bidirectional stdio streaming for code
// executors, so `js => { … }`-registered shadows are actually callable.
func (e *JSExecutor) Run(ctx context.Context, lang Lang, code string, params Params, shadows map[string]ShadowCall) (types.Value, string, error) {
	prelude, err := buildJSPrelude(params, shadows)
	if err != nil {
		return types.Value{}, "", err
	}
	body := wrapJSBody(code)
	script := prelude + "\nconst __mlld_result = (function(){\n" + body + "\n})();\nprocess.stdout.write(JSON.stringify(__mlld_result === undefined ? null : __mlld_result));\n"

	bin := e.NodeBin
	if bin == "" {
		bin = "node"
	}
	res, err := e.Subprocess.Spawn(ctx, bin+" -e "+quoteShellLiteral(script), nil, "", "")
	if err != nil {
		return types.Value{}, "", errkind.Wrap(errkind.Execution, fmt.Sprintf("%s execution failed", lang), err)
	}
	if res.ExitCode != 0 {
		return types.Value{}, res.Stderr, errkind.New(errkind.Execution, fmt.Sprintf("%s exited %d: %s", lang, res.ExitCode, res.Stderr)).
			WithContext("stderr", res.Stderr)
	}
	val, err := types.FromJSON([]byte(res.Stdout))
	if err != nil {
		return types.Value{}, res.Stderr, errkind.Wrap(errkind.Execution, "failed to parse "+string(lang)+" result", err)
	}
	return val, res.Stderr, nil
}

func buildJSPrelude(params Params, shadows map[string]ShadowCall) (string, error) {
	var b strings.Builder
	for i, name := range params.Names {
		data, err := types.ToJSON(params.Values[i])
		if err != nil {
			return "", errkind.Wrap(errkind.Execution, "failed to bind parameter "+name, err)
		}
		fmt.Fprintf(&b, "const %s = %s;\n", name, data)
	}
	for name := range shadows {
		fmt.Fprintf(&b, "function %s(){ throw new Error('shadow function %s is not callable across the subprocess boundary'); }\n", name, name)
	}
	return b.String(), nil
}

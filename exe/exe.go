// Package exe implements Executable definitions (spec.md §3, §4.1) and
// the Executor Bridge (spec.md §4.5, component C5): the unified
// interface for invoking shell, JS/Node, and Python code with parameter
// binding and shadow-function injection.
package exe

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// Form is the executable body kind spec.md §4.3 enumerates for `/exe`.
type Form string

const (
	FormCommand  Form = "command"  // cmd { … } / sh { … }
	FormCode     Form = "code"     // js/node/py/python { … }
	FormTemplate Form = "template" // backtick/double-colon/triple-colon body
	FormWhen     Form = "when"     // when [ … ]
	FormFor      Form = "for"      // for … => …
	FormBlock    Form = "block"    // [ statements; => expr ]
	FormRef      Form = "ref"      // reference to another executable
)

// Lang identifies the code-block language for FormCode executables.
type Lang string

const (
	LangCmd    Lang = "cmd"
	LangSh     Lang = "sh"
	LangJS     Lang = "js"
	LangNode   Lang = "node"
	LangPy     Lang = "py"
	LangPython Lang = "python"
)

// Executable is a named, invokable unit (spec.md §4.1 "Executable
// definition"). It satisfies env.Executable so it can be stored as a
// Variable of kind executable without env importing this package.
type Executable struct {
	Name        string
	Form        Form
	Lang        Lang // meaningful for FormCommand/FormCode
	Params      []types.Param
	Body        []ast.Node // FormTemplate/FormBlock body, or the `when`/`for` node
	Code        string     // FormCode raw source
	Description string

	// RefTarget is set for FormRef: the name of the executable this one
	// forwards to (an `/exe` alias).
	RefTarget string
}

// ParamNames implements env.Executable.
func (e *Executable) ParamNames() []string {
	names := make([]string, len(e.Params))
	for i, p := range e.Params {
		names[i] = p.Name
	}
	return names
}

// CommandResult is the unified result of any executor invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (r CommandResult) Success() bool { return r.ExitCode == 0 }

// Subprocess is the injected capability for spawning external processes
// (spec.md §6). Implementations must not block the calling goroutine
// past ctx's cancellation.
type Subprocess interface {
	Spawn(ctx context.Context, command string, env []string, cwd string, stdin string) (SpawnResult, error)
}

// SpawnResult is what Subprocess.Spawn returns; StreamChunks is non-nil
// only when the caller requested streaming output (spec.md §4.3 `stream`).
type SpawnResult struct {
	Stdout       string
	Stderr       string
	ExitCode     int
	StreamChunks <-chan string
}

// ShadowCall is a shadow-function closure over its owning Environment
// (spec.md §4.5, §9 "Executable shadow environments"): injected into a
// JS/Python invocation by name, never leaked across modules.
type ShadowCall func(ctx context.Context, args []types.Value) (types.Value, error)

// Params is the materialized parameter binding passed to a single
// executor invocation: positional args already bound to Param names.
type Params struct {
	Names  []string
	Values []types.Value
	// Metas carries each bound argument's originating Metadata (labels,
	// taint, sources) so the invoking evaluator can enforce guards on
	// the bound values and union their metadata into the executable's
	// result (spec.md §4.2: "code-block outputs inherit labels from all
	// parameters", §4.7 guard enforcement on `run`/`exe` operations).
	Metas []value.Metadata
	// Texts holds each Value's display-text form, used by shell/sh
	// argument interpolation (spec.md §4.5: each argument is
	// shell-escaped unless embedded in an inline string).
	Texts []string
}

func (p Params) Get(name string) (types.Value, bool) {
	for i, n := range p.Names {
		if n == name {
			return p.Values[i], true
		}
	}
	return types.Value{}, false
}

package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/exe"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// evalExe implements `/exe @name(params...) = body` (spec.md §4.3):
// constructs an Executable from the directive's declared form and
// binds it as a Variable of kind executable.
func (ev *Evaluator) evalExe(ctx context.Context, d *ast.Directive, e *env.Env) error {
	params, _ := d.Meta["params"].([]types.Param)
	execObj := &exe.Executable{
		Name:        d.Raw["name"],
		Form:        exe.Form(d.Raw["form"]),
		Lang:        exe.Lang(d.Raw["lang"]),
		Params:      params,
		Body:        d.Values["body"],
		Code:        d.Raw["code"],
		Description: d.Raw["description"],
		RefTarget:   d.Raw["refTarget"],
	}
	return e.Set(&env.Variable{
		Name:   execObj.Name,
		Kind:   env.KindExecutable,
		Source: env.VariableSource{Directive: "exe", DefinedAt: d.Pos, File: e.CurrentFilePath()},
		Exec:   execObj,
	})
}

// evalRun implements `/run` — an anonymous, unnamed-executable command
// invocation whose output is shown immediately (spec.md §4.3 groups it
// with /show/.../output for emission purposes).
func (ev *Evaluator) evalRun(ctx context.Context, d *ast.Directive, e *env.Env) error {
	execObj := &exe.Executable{
		Form: exe.Form(d.Raw["form"]),
		Lang: exe.Lang(d.Raw["lang"]),
		Code: d.Raw["code"],
		Body: d.Values["body"],
	}
	args, err := ev.evalArgNodes(ctx, d.Values["args"], e)
	if err != nil {
		return err
	}
	result, err := ev.runExecutable(ctx, execObj, args, e, false)
	if err != nil {
		return err
	}
	result, err = ev.enforceGuard(ctx, result, "run", "", loc(d), e.CurrentFilePath())
	if err != nil {
		return err
	}
	ev.emit("run", value.AsText(result), e, d)
	return nil
}

func (ev *Evaluator) evalArgNodes(ctx context.Context, nodes []ast.Node, e *env.Env) ([]*value.StructuredValue, error) {
	args := make([]*value.StructuredValue, len(nodes))
	for i, n := range nodes {
		sv, err := ev.EvalExpr(ctx, n, e)
		if err != nil {
			return nil, err
		}
		args[i] = sv
	}
	return args, nil
}

// evalExecInvocation implements calling a named executable, `@name(args...)`.
func (ev *Evaluator) evalExecInvocation(ctx context.Context, node *ast.ExecInvocation, e *env.Env) (*value.StructuredValue, error) {
	v, ok := e.Get(node.Target)
	if !ok || v.Exec == nil {
		return nil, errkind.New(errkind.UndefinedRef, "undefined executable: @"+node.Target).
			At(errkind.Location{Line: node.Pos.Line, Column: node.Pos.Column}, e.CurrentFilePath())
	}
	args, err := ev.evalArgNodes(ctx, node.Args, e)
	if err != nil {
		return nil, err
	}
	return ev.invokeCallback(ctx, v, args, e)
}

// invokeCallback runs v.Exec with args bound positionally to its
// declared params, used both by direct ExecInvocation and by
// filter/map callbacks (eval/expr.go) and pipeline stage invocation
// (eval/pipeline.go).
func (ev *Evaluator) invokeCallback(ctx context.Context, v *env.Variable, args []*value.StructuredValue, e *env.Env) (*value.StructuredValue, error) {
	execObj, ok := v.Exec.(*exe.Executable)
	if !ok {
		return nil, errkind.New(errkind.Execution, "executable binding has unexpected implementation")
	}
	return ev.runExecutable(ctx, execObj, args, e, true)
}

// runExecutable dispatches on Form, binding args to declared Params
// (or positionally as $0, $1, ... if the executable has none, for
// anonymous /run bodies) in a fresh child environment (spec.md §4.5).
func (ev *Evaluator) runExecutable(ctx context.Context, execObj *exe.Executable, args []*value.StructuredValue, callerEnv *env.Env, useDeclaredParams bool) (*value.StructuredValue, error) {
	child := callerEnv.Child()
	params := bindParams(execObj, args, useDeclaredParams)

	// A declared /exe invocation is guarded as "op:exe"; an anonymous
	// /run body is guarded as "op:run" (spec.md §4.7) — both fire
	// before the executable body ever touches the bound values.
	opType := "exe"
	if !useDeclaredParams {
		opType = "run"
	}
	for i, name := range params.Names {
		bound, err := ev.enforceGuard(ctx, value.FromData(params.Values[i], params.Metas[i]), opType, name, errkind.Location{}, child.CurrentFilePath())
		if err != nil {
			return nil, err
		}
		params.Values[i] = bound.Data
		params.Metas[i] = bound.Mx
		params.Texts[i] = value.AsText(bound)
		if err := child.Set(&env.Variable{Name: name, Kind: env.KindData, Value: value.FromData(bound.Data, bound.Mx)}); err != nil {
			return nil, err
		}
	}
	if useDeclaredParams {
		if err := validateParamHints(execObj, params); err != nil {
			return nil, err
		}
	}

	switch execObj.Form {
	case exe.FormCommand:
		return ev.runCommandForm(ctx, execObj, params, child)
	case exe.FormCode:
		return ev.runCodeForm(ctx, execObj, params, child)
	case exe.FormTemplate:
		return ev.interpolateNodes(ctx, execObj.Body, child)
	case exe.FormWhen:
		if len(execObj.Body) != 1 {
			return nil, errkind.New(errkind.Execution, "when-form executable must carry exactly one WhenExpression")
		}
		whenExpr, ok := execObj.Body[0].(*ast.WhenExpression)
		if !ok {
			return nil, errkind.New(errkind.Execution, "when-form executable body is not a WhenExpression")
		}
		return ev.evalWhenExpression(ctx, whenExpr, child)
	case exe.FormFor:
		if len(execObj.Body) != 1 {
			return nil, errkind.New(errkind.Execution, "for-form executable must carry exactly one ForExpression")
		}
		forExpr, ok := execObj.Body[0].(*ast.ForExpression)
		if !ok {
			return nil, errkind.New(errkind.Execution, "for-form executable body is not a ForExpression")
		}
		return ev.evalForExpression(ctx, forExpr, child)
	case exe.FormBlock:
		return ev.runBlockForm(ctx, execObj, child)
	case exe.FormRef:
		target, ok := callerEnv.Get(execObj.RefTarget)
		if !ok || target.Exec == nil {
			return nil, errkind.New(errkind.UndefinedRef, "ref target @"+execObj.RefTarget+" is not an executable")
		}
		return ev.invokeCallback(ctx, target, args, callerEnv)
	default:
		return nil, errkind.New(errkind.Execution, fmt.Sprintf("unsupported executable form %q", execObj.Form))
	}
}

// bindParams pairs args positionally with the executable's declared
// Params, falling back to positional `$0`…`$n-1` bindings (one per
// argument) for anonymous /run invocations with no declared signature.
func bindParams(execObj *exe.Executable, args []*value.StructuredValue, useDeclaredParams bool) exe.Params {
	if !useDeclaredParams || len(execObj.Params) == 0 {
		names := make([]string, len(args))
		values := make([]types.Value, len(args))
		metas := make([]value.Metadata, len(args))
		texts := make([]string, len(args))
		for i, a := range args {
			names[i] = fmt.Sprintf("$%d", i)
			values[i] = value.AsData(a)
			metas[i] = a.Mx
			texts[i] = value.AsText(a)
		}
		return exe.Params{Names: names, Values: values, Metas: metas, Texts: texts}
	}
	names := make([]string, len(execObj.Params))
	values := make([]types.Value, len(execObj.Params))
	metas := make([]value.Metadata, len(execObj.Params))
	texts := make([]string, len(execObj.Params))
	for i, p := range execObj.Params {
		names[i] = p.Name
		if i < len(args) {
			values[i] = value.AsData(args[i])
			metas[i] = args[i].Mx
			texts[i] = value.AsText(args[i])
		} else {
			values[i] = types.Null()
		}
	}
	return exe.Params{Names: names, Values: values, Metas: metas, Texts: texts}
}

func (ev *Evaluator) runCommandForm(ctx context.Context, execObj *exe.Executable, params exe.Params, e *env.Env) (*value.StructuredValue, error) {
	if ev.Shell == nil {
		return nil, errkind.New(errkind.Execution, "no shell executor configured")
	}
	res, err := ev.Shell.Run(ctx, execObj.Lang, execObj.Code, params, nil, "")
	if err != nil {
		return nil, err
	}
	if res.Stderr != "" && ev.Stderr != nil {
		fmt.Fprint(ev.Stderr, res.Stderr)
	}
	return value.FromText(res.Stdout, value.UnionMeta(params.Metas...)), nil
}

func (ev *Evaluator) runCodeForm(ctx context.Context, execObj *exe.Executable, params exe.Params, e *env.Env) (*value.StructuredValue, error) {
	switch execObj.Lang {
	case exe.LangJS, exe.LangNode:
		if ev.JS == nil {
			return nil, errkind.New(errkind.Execution, "no JS executor configured")
		}
		shadows := e.Shadows(string(execObj.Lang))
		val, stderr, err := ev.JS.Run(ctx, execObj.Lang, execObj.Code, params, ev.toShadowCalls(shadows, e))
		if err != nil {
			return nil, err
		}
		if stderr != "" && ev.Stderr != nil {
			fmt.Fprint(ev.Stderr, stderr)
		}
		return value.FromData(val, value.UnionMeta(params.Metas...)), nil
	case exe.LangPy, exe.LangPython:
		if ev.Python == nil {
			return nil, errkind.New(errkind.Execution, "no Python executor configured")
		}
		val, stderr, err := ev.Python.Run(ctx, execObj.Code, params)
		if err != nil {
			return nil, err
		}
		if stderr != "" && ev.Stderr != nil {
			fmt.Fprint(ev.Stderr, stderr)
		}
		return value.FromData(val, value.UnionMeta(params.Metas...)), nil
	default:
		return nil, errkind.New(errkind.Execution, "unsupported code language "+string(execObj.Lang))
	}
}

// toShadowCalls adapts env.Executable shadow bindings (structural, no
// import cycle between env and exe) into exe.ShadowCall closures a
// code-form executor can invoke mid-script (spec.md §4.5 "shadow
// environments").
func (ev *Evaluator) toShadowCalls(shadows map[string]env.Executable, callerEnv *env.Env) map[string]exe.ShadowCall {
	out := make(map[string]exe.ShadowCall, len(shadows))
	for name, fn := range shadows {
		execObj, ok := fn.(*exe.Executable)
		if !ok {
			continue
		}
		out[name] = func(ctx context.Context, args []types.Value) (types.Value, error) {
			// Shadow calls cross the JS/Python boundary as plain values
			// (exe.ShadowCall's signature): provenance resets to this
			// invocation rather than carrying the caller's metadata across
			// opaque code execution (value.Metadata.Provenance doc).
			structured := make([]*value.StructuredValue, len(args))
			for i, a := range args {
				structured[i] = value.FromData(a, value.Metadata{})
			}
			result, err := ev.runExecutable(ctx, execObj, structured, callerEnv, true)
			if err != nil {
				return types.Null(), err
			}
			return value.AsData(result), nil
		}
	}
	return out
}

// paramTypeSchemas compiles one jsonschema/v5 schema per declared
// TypeHint, reusing the validator resolver/needs.go uses for `needs`
// manifests.
var paramTypeSchemas = mustCompileParamSchemas()

func mustCompileParamSchemas() map[types.TypeHint]*jsonschema.Schema {
	hints := []types.TypeHint{types.HintString, types.HintNumber, types.HintBool, types.HintArray, types.HintObject}
	out := make(map[types.TypeHint]*jsonschema.Schema, len(hints))
	for _, h := range hints {
		name := string(h) + ".json"
		schema := `{"type": "` + h.JSONSchemaType() + `"}`
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
			panic("eval: invalid param type schema for " + string(h) + ": " + err.Error())
		}
		compiled, err := compiler.Compile(name)
		if err != nil {
			panic("eval: failed to compile param type schema for " + string(h) + ": " + err.Error())
		}
		out[h] = compiled
	}
	return out
}

// validateParamHints checks each declared /exe parameter's bound
// argument against its TypeHint (spec.md §3: "Executable.params:
// (Name, TypeHint?)[]") before the body ever runs. Params with no hint
// (HintAny) are unchecked.
func validateParamHints(execObj *exe.Executable, params exe.Params) error {
	for i, p := range execObj.Params {
		schema, ok := paramTypeSchemas[p.Hint]
		if !ok || i >= len(params.Values) {
			continue
		}
		data, err := types.ToJSON(params.Values[i])
		if err != nil {
			return errkind.Wrap(errkind.Execution, "failed to encode parameter "+p.Name+" for validation", err)
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return errkind.Wrap(errkind.Execution, "failed to decode parameter "+p.Name+" for validation", err)
		}
		if err := schema.Validate(decoded); err != nil {
			return errkind.New(errkind.Execution, fmt.Sprintf("parameter %s must be %s", p.Name, p.Hint)).
				WithContext("validation", err.Error())
		}
	}
	return nil
}

// runBlockForm implements the `[ statements; => expr ]` form: every
// node but the last runs for effect; the last is the returned
// expression.
func (ev *Evaluator) runBlockForm(ctx context.Context, execObj *exe.Executable, e *env.Env) (*value.StructuredValue, error) {
	if len(execObj.Body) == 0 {
		return value.FromData(types.Null(), value.Metadata{}), nil
	}
	for _, n := range execObj.Body[:len(execObj.Body)-1] {
		if err := ev.EvalNode(ctx, n, e); err != nil {
			return nil, err
		}
	}
	last := execObj.Body[len(execObj.Body)-1]
	return ev.EvalExpr(ctx, last, e)
}

// Package eval implements the Evaluator and Interpolator (spec.md §4.3
// and §4.4, components C3+C4): the tree-walking node dispatcher that
// drives every other component. It is the one package allowed to
// import guard, pipeline, resolver, exe, and output together, since it
// is the orchestrator each of those leaf packages was written to avoid
// depending on.
package eval

import (
	"context"
	"fmt"
	"io"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/exe"
	"github.com/mlld-lang/mlld-core/guard"
	"github.com/mlld-lang/mlld-core/host"
	"github.com/mlld-lang/mlld-core/output"
	"github.com/mlld-lang/mlld-core/pipeline"
	"github.com/mlld-lang/mlld-core/resolver"
	"github.com/mlld-lang/mlld-core/rtlog"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// DefaultMaxLoopIterations bounds `/loop(max, ...)` when no explicit
// max is given, a resource-accounting backstop (spec.md §5: "Loop
// resource accounting").
const DefaultMaxLoopIterations = 1000

// EvalResult is what evaluating one directive or program produces
// (spec.md §4.3: "EvalResult { value, env, emittedNodes }").
type EvalResult struct {
	Value        *value.StructuredValue
	Env          *env.Env
	EmittedNodes []ast.Node
}

// Evaluator walks an ast.Program (or any single Node) and drives every
// other component. Every field is an injected collaborator so eval
// stays the single place these leaf packages get wired together.
type Evaluator struct {
	Guards       *guard.Registry
	Resolver     *resolver.Resolver
	Materializer *output.Materializer
	Shell        *exe.ShellExecutor
	JS           *exe.JSExecutor
	Python       *exe.PythonExecutor
	FS           host.FileSystem
	Clock        host.Clock
	Stdout       io.Writer
	Stderr       io.Writer
	Log          *rtlog.Logger
	StreamBus    *pipeline.StreamBus

	MaxLoopIterations int
	StateWrites       []output.StateWrite
}

// EvalProgram evaluates every node of prog in source order against e,
// accumulating emitted blocks into ev.Materializer (spec.md §4.3: "the
// evaluator walks nodes in source order").
func (ev *Evaluator) EvalProgram(ctx context.Context, prog *ast.Program, e *env.Env) error {
	for _, n := range prog.Nodes {
		if err := ev.EvalNode(ctx, n, e); err != nil {
			return err
		}
	}
	return nil
}

// EvalNode dispatches one top-level program node: prose text is
// emitted directly, everything else must be a Directive.
func (ev *Evaluator) EvalNode(ctx context.Context, n ast.Node, e *env.Env) error {
	switch node := n.(type) {
	case *ast.Text:
		ev.emit("text", node.Content, e, node)
		return nil
	case *ast.Directive:
		return ev.EvalDirective(ctx, node, e)
	default:
		return errkind.New(errkind.ParseError, fmt.Sprintf("unexpected top-level node %T", n)).
			At(errkind.Location{Line: n.Position().Line, Column: n.Position().Column}, e.CurrentFilePath())
	}
}

func (ev *Evaluator) emit(kind, text string, e *env.Env, n ast.Node) {
	if ev.Materializer != nil {
		ev.Materializer.Append(kind, text)
	}
	e.Emit(n)
}

// EvalDirective dispatches one Directive by kind (spec.md §4.3).
func (ev *Evaluator) EvalDirective(ctx context.Context, d *ast.Directive, e *env.Env) error {
	switch d.Kind {
	case ast.KindVar:
		return ev.evalVar(ctx, d, e)
	case ast.KindExe:
		return ev.evalExe(ctx, d, e)
	case ast.KindShow:
		return ev.evalShow(ctx, d, e)
	case ast.KindLog:
		return ev.evalLog(ctx, d, e)
	case ast.KindOutput:
		return ev.evalOutput(ctx, d, e)
	case ast.KindWhen:
		_, err := ev.evalWhenDirective(ctx, d, e)
		return err
	case ast.KindFor:
		_, err := ev.evalForDirective(ctx, d, e)
		return err
	case ast.KindLoop:
		_, err := ev.evalLoopDirective(ctx, d, e)
		return err
	case ast.KindImport:
		return ev.evalImport(ctx, d, e)
	case ast.KindExport:
		return ev.evalExport(ctx, d, e)
	case ast.KindPath:
		return ev.evalPath(ctx, d, e)
	case ast.KindBail:
		return ev.evalBail(ctx, d, e)
	case ast.KindGuard:
		return ev.evalGuardDecl(ctx, d, e)
	case ast.KindRun:
		return ev.evalRun(ctx, d, e)
	case ast.KindStream:
		return ev.evalStream(ctx, d, e)
	default:
		return errkind.New(errkind.ParseError, "unknown directive kind "+string(d.Kind)).
			At(errkind.Location{Line: d.Pos.Line, Column: d.Pos.Column}, e.CurrentFilePath())
	}
}

func firstValuesNode(d *ast.Directive, key string) ast.Node {
	nodes := d.Values[key]
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// evalVar implements `/var @name = expr` (spec.md §4.3), seeding
// `.mx.labels` from the directive's label prefix subtype (`/var secret
// @x = …`).
func (ev *Evaluator) evalVar(ctx context.Context, d *ast.Directive, e *env.Env) error {
	expr := firstValuesNode(d, "value")
	if expr == nil {
		return errkind.New(errkind.ParseError, "/var missing value expression").At(loc(d), e.CurrentFilePath())
	}
	sv, err := ev.EvalExpr(ctx, expr, e)
	if err != nil {
		return err
	}
	if label, ok := d.Raw["label"]; ok && label != "" {
		mx := sv.Mx.Clone()
		mx.Labels.Add(types.DataLabel(label))
		sv = value.New(sv.Text, sv.Data, mx)
	}

	name := d.Raw["name"]
	return e.Set(&env.Variable{
		Name:   name,
		Kind:   env.KindData,
		Value:  sv,
		Source: env.VariableSource{Directive: "var", DefinedAt: d.Pos, File: e.CurrentFilePath()},
	})
}

// evalPath implements `/path @name = <expr>`: like /var but coerces
// the result to its text/path form (spec.md §4.3).
func (ev *Evaluator) evalPath(ctx context.Context, d *ast.Directive, e *env.Env) error {
	expr := firstValuesNode(d, "value")
	if expr == nil {
		return errkind.New(errkind.ParseError, "/path missing value expression").At(loc(d), e.CurrentFilePath())
	}
	sv, err := ev.EvalExpr(ctx, expr, e)
	if err != nil {
		return err
	}
	pathVal := value.FromText(value.AsText(sv), sv.Mx)
	return e.Set(&env.Variable{
		Name:   d.Raw["name"],
		Kind:   env.KindPath,
		Value:  pathVal,
		Source: env.VariableSource{Directive: "path", DefinedAt: d.Pos, File: e.CurrentFilePath()},
	})
}

// evalShow implements `/show expr` (spec.md §4.3).
func (ev *Evaluator) evalShow(ctx context.Context, d *ast.Directive, e *env.Env) error {
	expr := firstValuesNode(d, "value")
	sv, err := ev.EvalExpr(ctx, expr, e)
	if err != nil {
		return err
	}
	sv, err = ev.enforceGuard(ctx, sv, "show", "", loc(d), e.CurrentFilePath())
	if err != nil {
		return err
	}
	ev.emit("show", value.AsText(sv), e, d)
	return nil
}

// evalLog implements `/log expr`, writing to stderr (spec.md §4.3:
// "`/log` goes to stderr"). Guarded the same as /show (spec.md §4.7):
// logging a labeled value is still display, not computation.
func (ev *Evaluator) evalLog(ctx context.Context, d *ast.Directive, e *env.Env) error {
	expr := firstValuesNode(d, "value")
	sv, err := ev.EvalExpr(ctx, expr, e)
	if err != nil {
		return err
	}
	sv, err = ev.enforceGuard(ctx, sv, "show", "log", loc(d), e.CurrentFilePath())
	if err != nil {
		return err
	}
	if ev.Stderr != nil {
		fmt.Fprintln(ev.Stderr, value.AsText(sv))
	}
	if ev.Log != nil {
		ev.Log.Infof("%s", value.AsText(sv))
	}
	return nil
}

// evalOutput implements `/output expr to sink [as format]` (spec.md §4.9).
func (ev *Evaluator) evalOutput(ctx context.Context, d *ast.Directive, e *env.Env) error {
	expr := firstValuesNode(d, "value")
	sv, err := ev.EvalExpr(ctx, expr, e)
	if err != nil {
		return err
	}
	sink := d.Raw["sink"]
	sv, err = ev.enforceGuard(ctx, sv, "output", sink, loc(d), e.CurrentFilePath())
	if err != nil {
		return err
	}
	sw, err := output.RouteOutput(ctx, sink, []byte(value.AsText(sv)), value.AsData(sv), ev.FS, ev.Stdout)
	if err != nil {
		return err
	}
	if sw != nil {
		ev.StateWrites = append(ev.StateWrites, *sw)
	}
	return nil
}

// enforceGuard runs every guard registered for sv's labels plus the
// "op:<opType>" family scope (spec.md §4.7). When no rule is registered
// for those scopes it returns sv, masked by maskUnguardedSecret for a
// `secret`-labeled value on "show"; otherwise it returns the chain's
// value (with its guard trace) on allow, a transformed replacement for
// an allow-transformed outcome, or a GuardDenial error for deny/retry. show/run/output/exe
// invocations have no pipeline stage to retry against (unlike
// pipelineAfterGuard in eval/pipeline.go), so a retry outcome here
// surfaces as a denial instead of looping.
func (ev *Evaluator) enforceGuard(ctx context.Context, sv *value.StructuredValue, opType, opName string, at errkind.Location, file string) (*value.StructuredValue, error) {
	if sv == nil {
		return sv, nil
	}
	scopes := guard.ScopesFor(labelsToScopes(sv.Mx.Labels.List()), guard.Scope("op:"+opType))
	if ev.Guards == nil || !ev.Guards.AnyRules(scopes) {
		return maskUnguardedSecret(sv, opType), nil
	}
	next, res, err := ev.Guards.Run(ctx, scopes, sv, guard.OpDescriptor{Type: opType, Name: opName})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return next, nil
	}
	switch res.Outcome {
	case guard.Deny:
		return nil, errkind.New(errkind.GuardDenial, res.Reason).At(at, file)
	case guard.Retry:
		return nil, errkind.New(errkind.GuardDenial, "guard requested retry \""+res.RetryHint+"\" outside a pipeline").At(at, file)
	default:
		return next, nil
	}
}

// maskUnguardedSecret is the default-deny fallback for a `secret`-labeled
// value reaching a display boundary (show/log) with no `/guard` rule
// registered for its label or op family at all: rather than printing the
// raw text, it redacts through a value.SecretHandle (spec.md §4.7's
// S6 scenario masks via an explicit guard; this covers the case where no
// guard was ever written for "secret"). A value a guard chain explicitly
// allowed through unchanged is left alone — that's a deliberate decision
// by a registered rule, not an oversight.
func maskUnguardedSecret(sv *value.StructuredValue, opType string) *value.StructuredValue {
	if opType != "show" || sv.Text == "" || !sv.Mx.Labels.Has(types.LabelSecret) {
		return sv
	}
	masked := value.NewSecretHandle(sv.Text).Mask(3)
	return value.New(masked, types.String(masked), sv.Mx)
}

// evalExport implements `/export { @a, @b }` / `/export { * }` (spec.md §4.3).
func (ev *Evaluator) evalExport(ctx context.Context, d *ast.Directive, e *env.Env) error {
	wildcard := d.Meta["wildcard"] == true
	names, _ := d.Meta["names"].([]string)
	e.SetExportManifest(names, wildcard)
	return nil
}

// evalBail implements `/bail "msg"` (spec.md §4.3): a user-visible
// termination, exit code 5 per spec.md §6.
func (ev *Evaluator) evalBail(ctx context.Context, d *ast.Directive, e *env.Env) error {
	expr := firstValuesNode(d, "value")
	msg := d.Raw["message"]
	if expr != nil {
		sv, err := ev.EvalExpr(ctx, expr, e)
		if err == nil {
			msg = value.AsText(sv)
		}
	}
	return errkind.New(errkind.Bail, msg).At(loc(d), e.CurrentFilePath())
}

func loc(d *ast.Directive) errkind.Location {
	return errkind.Location{Line: d.Pos.Line, Column: d.Pos.Column, Offset: d.Pos.Offset}
}

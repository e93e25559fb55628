package eval

import (
	"context"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/guard"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// whenCtx is declared but not used by the evaluator: evalWhenGuard reads
// the `denied` wildcard from a `__when_denied__` variable in the
// environment instead, and no code in this package binds that variable,
// so a `denied` clause does not match.
type whenCtx struct {
	denied bool
	reason string
}

// evalWhenDirective implements `/when [ … ]` as a statement (spec.md
// §4.3): conditions are evaluated for effect, nothing is returned to a
// caller expression context.
func (ev *Evaluator) evalWhenDirective(ctx context.Context, d *ast.Directive, e *env.Env) (*value.StructuredValue, error) {
	exprNodes := d.Values["expr"]
	if len(exprNodes) == 0 {
		return nil, errkind.New(errkind.ParseError, "/when missing expression").At(loc(d), e.CurrentFilePath())
	}
	whenExpr, ok := exprNodes[0].(*ast.WhenExpression)
	if !ok {
		return nil, errkind.New(errkind.ParseError, "/when expression is not a WhenExpression").At(loc(d), e.CurrentFilePath())
	}
	return ev.evalWhenExpression(ctx, whenExpr, e)
}

// evalWhenExpression implements all four `when` modes (spec.md
// §4.3.1). Local bindings from `let @x = …` clauses are visible to
// subsequent clauses in the same block via a shared child environment.
func (ev *Evaluator) evalWhenExpression(ctx context.Context, w *ast.WhenExpression, e *env.Env) (*value.StructuredValue, error) {
	scope := e.Child()
	var last *value.StructuredValue
	var matched bool

	for _, clause := range w.Conditions {
		if clause.LocalBinding != nil {
			sv, err := ev.EvalExpr(ctx, clause.LocalBinding.Value, scope)
			if err != nil {
				return nil, err
			}
			if err := scope.Set(&env.Variable{Name: clause.LocalBinding.Name, Kind: env.KindData, Value: sv}); err != nil {
				return nil, err
			}
		}

		truthy, err := ev.evalWhenGuard(ctx, clause.Guard, scope)
		if err != nil {
			return nil, err
		}
		if !truthy {
			continue
		}

		result, err := ev.EvalExpr(ctx, clause.Action, scope)
		if err != nil {
			return nil, err
		}
		last = result
		matched = true

		switch w.Mode {
		case ast.WhenFirst, ast.WhenAny, ast.WhenSimple:
			return last, nil
		case ast.WhenAll:
			continue
		}
	}

	if !matched {
		return value.FromData(types.Null(), value.Metadata{}), nil
	}
	return last, nil
}

// evalWhenGuard evaluates one when-clause's guard, handling the `*`
// and `denied` wildcards (spec.md §4.3.1).
func (ev *Evaluator) evalWhenGuard(ctx context.Context, guardNode ast.Node, e *env.Env) (bool, error) {
	if ref, ok := guardNode.(*ast.VariableReference); ok {
		switch ref.Identifier {
		case "*":
			return true, nil
		case "denied":
			wc, _ := e.Get("__when_denied__")
			return wc != nil && wc.Value != nil && value.AsData(wc.Value).Truthy(), nil
		}
	}
	sv, err := ev.EvalExpr(ctx, guardNode, e)
	if err != nil {
		return false, err
	}
	return value.AsData(sv).Truthy(), nil
}

// evalGuardDecl implements `/guard @name for <scope> = when [...]`
// (spec.md §4.7), registering a rule whose Eval closure re-enters this
// same evaluator to run the `when` body with `@input`/`@mx.op` bound.
func (ev *Evaluator) evalGuardDecl(ctx context.Context, d *ast.Directive, e *env.Env) error {
	name := d.Raw["name"]
	scope := guard.Scope(d.Raw["scope"])
	exprNodes := d.Values["expr"]
	if len(exprNodes) == 0 {
		return errkind.New(errkind.ParseError, "/guard missing when body").At(loc(d), e.CurrentFilePath())
	}
	whenExpr, ok := exprNodes[0].(*ast.WhenExpression)
	if !ok {
		return errkind.New(errkind.ParseError, "/guard body is not a when expression").At(loc(d), e.CurrentFilePath())
	}

	if ev.Guards == nil {
		ev.Guards = guard.NewRegistry()
	}
	ev.Guards.Register(guard.Rule{
		Name:  name,
		Scope: scope,
		Eval:  ev.makeGuardEvaluator(whenExpr, e),
	})
	return nil
}

// makeGuardEvaluator closes over whenExpr and the declaring
// environment, binding `@input` and an `__mx_op__` object (the
// operation's type/name/target) into a child scope each time the guard
// fires (spec.md §4.7). `@mx.guards` is not bound: activeGuardNames is
// unused. The when clauses' actions are evaluated as ordinary
// expressions and their result is read by decodeGuardOutcome; this
// package defines no `allow`/`deny`/`retry` builtins.
func (ev *Evaluator) makeGuardEvaluator(whenExpr *ast.WhenExpression, declEnv *env.Env) guard.Evaluator {
	return func(ctx context.Context, input *value.StructuredValue, op guard.OpDescriptor, activeGuardNames []string) (guard.Result, error) {
		scope := declEnv.Child()
		if err := scope.Set(&env.Variable{Name: "input", Kind: env.KindData, Value: input}); err != nil {
			return guard.Result{}, err
		}
		opFields := map[string]types.Value{
			"type":   types.String(op.Type),
			"name":   types.String(op.Name),
			"target": types.String(op.Target),
		}
		opVal := value.FromData(types.NewObject([]string{"type", "name", "target"}, opFields), value.Metadata{})
		if err := scope.Set(&env.Variable{Name: "__mx_op__", Kind: env.KindData, Value: opVal}); err != nil {
			return guard.Result{}, err
		}

		result, err := ev.evalWhenExpression(ctx, whenExpr, scope)
		if err != nil {
			return guard.Result{}, err
		}
		return decodeGuardOutcome(result), nil
	}
}

// decodeGuardOutcome interprets a when-action's resulting StructuredValue
// as a guard.Result: it reads an object `{ outcome, replacement?,
// reason?, hint? }` from the action's result, where outcome is "deny",
// "retry" or "allow_transformed"; any other result counts as allow.
func decodeGuardOutcome(sv *value.StructuredValue) guard.Result {
	data := value.AsData(sv)
	outcome, _ := data.Field("outcome")
	switch outcome.Str {
	case "deny":
		reason, _ := data.Field("reason")
		return guard.Result{Outcome: guard.Deny, Reason: reason.Str}
	case "retry":
		hint, _ := data.Field("hint")
		return guard.Result{Outcome: guard.Retry, RetryHint: hint.Str}
	case "allow_transformed":
		replacementData, _ := data.Field("replacement")
		return guard.Result{Outcome: guard.AllowTransformed, Replacement: value.FromData(replacementData, value.Metadata{})}
	default:
		return guard.Result{Outcome: guard.Allow}
	}
}

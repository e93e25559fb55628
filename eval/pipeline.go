package eval

import (
	"context"
	"fmt"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/guard"
	"github.com/mlld-lang/mlld-core/pipeline"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

// evalPipelineExpression implements `expr | stage1 | stage2 …` and the
// parallel `|| a || b` form (spec.md §4.6, component C6), wiring
// pipeline.Engine's StageInvoker to executable invocation and its
// AfterGuard to the op:pipeline guard scope.
func (ev *Evaluator) evalPipelineExpression(ctx context.Context, p *ast.PipelineExpression, e *env.Env) (*value.StructuredValue, error) {
	head, err := ev.EvalExpr(ctx, p.Head, e)
	if err != nil {
		return nil, err
	}

	stages := make([]pipeline.Stage, len(p.Stages))
	targets := make([]*ast.StageRef, len(p.Stages))
	for i, s := range p.Stages {
		stages[i] = pipeline.Stage{Name: stageRefName(s)}
		sc := s
		targets[i] = &sc
	}

	eng := &pipeline.Engine{
		MaxRetries: pipeline.DefaultMaxRetries,
		Bus:        ev.StreamBus,
		PipelineID: fmt.Sprintf("pipe-%p", p),
		Invoke: func(ctx context.Context, stageIndex int, input *value.StructuredValue, stageCtx pipeline.StageContext) (*value.StructuredValue, error) {
			return ev.invokeStage(ctx, targets[stageIndex], input, stageCtx, e)
		},
		After: ev.pipelineAfterGuard,
	}

	if p.Parallel {
		results, err := eng.RunParallel(ctx, head, stages)
		if err != nil {
			return nil, err
		}
		items := make([]types.Value, len(results))
		var metas []value.Metadata
		for i, r := range results {
			items[i] = value.AsData(r)
			metas = append(metas, r.Mx)
		}
		return value.FromData(types.Array(items...), value.UnionMeta(metas...)), nil
	}
	return eng.RunSerial(ctx, head, stages)
}

func stageRefName(s ast.StageRef) string {
	if ref, ok := s.Target.(*ast.VariableReference); ok {
		return ref.Identifier
	}
	return s.Target.String()
}

// invokeStage binds the pipeline's per-stage context (`@p.try`,
// `@p.tries`, `@p.hint`, `@p.hintHistory`) into a child scope before
// invoking the stage's executable (spec.md §4.6).
func (ev *Evaluator) invokeStage(ctx context.Context, stageRef *ast.StageRef, input *value.StructuredValue, stageCtx pipeline.StageContext, e *env.Env) (*value.StructuredValue, error) {
	ref, ok := stageRef.Target.(*ast.VariableReference)
	if !ok {
		return nil, errkind.New(errkind.Execution, "pipeline stage target is not an executable reference")
	}
	v, ok := e.Get(ref.Identifier)
	if !ok || v.Exec == nil {
		return nil, errkind.New(errkind.UndefinedRef, "undefined pipeline stage: @"+ref.Identifier)
	}

	scope := e.Child()
	if err := scope.Set(&env.Variable{Name: "input", Kind: env.KindData, Value: input}); err != nil {
		return nil, err
	}
	pFields := map[string]types.Value{
		"try":         types.Number(float64(stageCtx.Try)),
		"tries":       types.Number(float64(stageCtx.Tries)),
		"hint":        types.String(stageCtx.Hint),
		"hintHistory": types.Array(stringsToValues(stageCtx.HintHistory)...),
	}
	if err := scope.Set(&env.Variable{Name: "p", Kind: env.KindData, Value: value.FromData(types.NewObject([]string{"try", "tries", "hint", "hintHistory"}, pFields), value.Metadata{})}); err != nil {
		return nil, err
	}

	args, err := ev.evalArgNodes(ctx, stageRef.Args, scope)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		args = []*value.StructuredValue{input}
	}
	return ev.invokeCallback(ctx, v, args, scope)
}

func stringsToValues(ss []string) []types.Value {
	out := make([]types.Value, len(ss))
	for i, s := range ss {
		out[i] = types.String(s)
	}
	return out
}

// pipelineAfterGuard runs every guard registered for the "op:pipeline"
// scope and each of the stage output's labels, translating a guard
// Deny/Retry into a pipeline AfterResult (spec.md §4.6/§4.7 composition
// point between C6 and C7).
func (ev *Evaluator) pipelineAfterGuard(ctx context.Context, stageIndex int, output *value.StructuredValue, stageCtx pipeline.StageContext) (pipeline.AfterResult, error) {
	if ev.Guards == nil {
		return pipeline.AfterResult{Outcome: pipeline.OutcomePass, Value: output}, nil
	}
	scopes := guard.ScopesFor(labelsToScopes(output.Mx.Labels.List()), "op:pipeline")
	next, res, err := ev.Guards.Run(ctx, scopes, output, guard.OpDescriptor{Type: "pipeline", Name: fmt.Sprintf("stage-%d", stageIndex)})
	if err != nil {
		return pipeline.AfterResult{}, err
	}
	if res == nil {
		return pipeline.AfterResult{Outcome: pipeline.OutcomePass, Value: next}, nil
	}
	switch res.Outcome {
	case guard.Deny:
		return pipeline.AfterResult{Outcome: pipeline.OutcomeDeny, DenyReason: res.Reason}, nil
	case guard.Retry:
		return pipeline.AfterResult{Outcome: pipeline.OutcomeRetry, RetryHint: res.RetryHint}, nil
	default:
		return pipeline.AfterResult{Outcome: pipeline.OutcomePass, Value: next}, nil
	}
}

func labelsToScopes(labels []types.DataLabel) []guard.Scope {
	out := make([]guard.Scope, len(labels))
	for i, l := range labels {
		out[i] = guard.Scope(l)
	}
	return out
}

// evalStream implements `/stream expr` (spec.md §4.6): like `/show`,
// but when the expression is a pipeline, subscribes to the
// StreamBus and forwards chunks to stdout as they arrive instead of
// waiting for the final value.
func (ev *Evaluator) evalStream(ctx context.Context, d *ast.Directive, e *env.Env) error {
	expr := firstValuesNode(d, "value")
	if expr == nil {
		return errkind.New(errkind.ParseError, "/stream missing expression").At(loc(d), e.CurrentFilePath())
	}

	if ev.StreamBus == nil {
		ev.StreamBus = pipeline.NewStreamBus()
	}
	ch, unsubscribe := ev.StreamBus.Subscribe(64)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range ch {
			if chunk.Text != "" && ev.Stdout != nil {
				fmt.Fprint(ev.Stdout, chunk.Text)
			}
			if chunk.Complete {
				return
			}
		}
	}()

	sv, err := ev.EvalExpr(ctx, expr, e)
	if err != nil {
		return err
	}
	ev.emit("stream", value.AsText(sv), e, d)
	return nil
}

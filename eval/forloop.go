package eval

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

func (ev *Evaluator) evalForDirective(ctx context.Context, d *ast.Directive, e *env.Env) (*value.StructuredValue, error) {
	exprNodes := d.Values["expr"]
	if len(exprNodes) == 0 {
		return nil, errkind.New(errkind.ParseError, "/for missing expression").At(loc(d), e.CurrentFilePath())
	}
	forExpr, ok := exprNodes[0].(*ast.ForExpression)
	if !ok {
		return nil, errkind.New(errkind.ParseError, "/for expression is not a ForExpression").At(loc(d), e.CurrentFilePath())
	}
	return ev.evalForExpression(ctx, forExpr, e)
}

// evalForExpression implements `/for @v in iterable => body` (spec.md
// §4.3, §5): sequential by default; `parallel` spawns child tasks over
// an immutable read view of the parent Env and joins results in source
// order.
func (ev *Evaluator) evalForExpression(ctx context.Context, f *ast.ForExpression, e *env.Env) (*value.StructuredValue, error) {
	iterSV, err := ev.EvalExpr(ctx, f.Iterable, e)
	if err != nil {
		return nil, err
	}
	items := value.AsData(iterSV).Array

	if f.Parallel {
		return ev.runForParallel(ctx, f, items, e)
	}
	return ev.runForSerial(ctx, f, items, e)
}

func (ev *Evaluator) runForSerial(ctx context.Context, f *ast.ForExpression, items []types.Value, e *env.Env) (*value.StructuredValue, error) {
	var collected []types.Value
	var metas []value.Metadata
	for _, item := range items {
		child := e.Child()
		if err := child.Set(&env.Variable{Name: f.Variable, Kind: env.KindData, Value: value.FromData(item, value.Metadata{})}); err != nil {
			return nil, err
		}
		result, err := ev.EvalExpr(ctx, f.Body, child)
		if err != nil {
			return nil, err
		}
		e.Merge(child)
		if f.Collect {
			collected = append(collected, value.AsData(result))
			metas = append(metas, result.Mx)
		}
	}
	if !f.Collect {
		return value.FromData(types.Null(), value.Metadata{}), nil
	}
	return value.FromData(types.Array(collected...), value.UnionMeta(metas...)), nil
}

// runForParallel implements `for parallel`: each iteration gets its own
// child Env forked at spawn time; an error in one branch cancels the
// others (spec.md §5 structured cancellation); results are assembled
// in source order on join.
func (ev *Evaluator) runForParallel(ctx context.Context, f *ast.ForExpression, items []types.Value, e *env.Env) (*value.StructuredValue, error) {
	results := make([]*value.StructuredValue, len(items))
	children := make([]*env.Env, len(items))

	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		child := e.Child()
		children[i] = child
		g.Go(func() error {
			if err := child.Set(&env.Variable{Name: f.Variable, Kind: env.KindData, Value: value.FromData(item, value.Metadata{})}); err != nil {
				return err
			}
			result, err := ev.EvalExpr(gctx, f.Body, child)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, child := range children {
		e.Merge(child)
	}

	if !f.Collect {
		return value.FromData(types.Null(), value.Metadata{}), nil
	}
	var collected []types.Value
	var metas []value.Metadata
	for _, r := range results {
		collected = append(collected, value.AsData(r))
		metas = append(metas, r.Mx)
	}
	return value.FromData(types.Array(collected...), value.UnionMeta(metas...)), nil
}

func (ev *Evaluator) evalLoopDirective(ctx context.Context, d *ast.Directive, e *env.Env) (*value.StructuredValue, error) {
	exprNodes := d.Values["expr"]
	if len(exprNodes) == 0 {
		return nil, errkind.New(errkind.ParseError, "/loop missing expression").At(loc(d), e.CurrentFilePath())
	}
	loopExpr, ok := exprNodes[0].(*ast.LoopExpression)
	if !ok {
		return nil, errkind.New(errkind.ParseError, "/loop expression is not a LoopExpression").At(loc(d), e.CurrentFilePath())
	}
	return ev.evalLoopExpression(ctx, loopExpr, e)
}

// evalLoopExpression implements `/loop(max, interval) until cond [body]`
// (spec.md §4.3, §5: "hard-caps iterations at max; the interval is a
// minimum pause, not a deadline").
func (ev *Evaluator) evalLoopExpression(ctx context.Context, l *ast.LoopExpression, e *env.Env) (*value.StructuredValue, error) {
	maxIter := ev.MaxLoopIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxLoopIterations
	}
	if l.Max != nil {
		maxSV, err := ev.EvalExpr(ctx, l.Max, e)
		if err != nil {
			return nil, err
		}
		if n := int(value.AsData(maxSV).Num); n > 0 {
			maxIter = n
		}
	}

	var interval time.Duration
	if l.Interval != nil {
		intSV, err := ev.EvalExpr(ctx, l.Interval, e)
		if err != nil {
			return nil, err
		}
		interval = time.Duration(value.AsData(intSV).Num) * time.Millisecond
	}

	var last *value.StructuredValue = value.FromData(types.Null(), value.Metadata{})
	for i := 0; i < maxIter; i++ {
		if l.UntilCondition != nil {
			condSV, err := ev.EvalExpr(ctx, l.UntilCondition, e)
			if err != nil {
				return nil, err
			}
			if value.AsData(condSV).Truthy() {
				break
			}
		}

		child := e.Child()
		result, err := ev.EvalExpr(ctx, l.Body, child)
		if err != nil {
			return nil, err
		}
		e.Merge(child)
		last = result

		if interval > 0 && i < maxIter-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return last, nil
}

package eval_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/eval"
	"github.com/mlld-lang/mlld-core/output"
	"github.com/mlld-lang/mlld-core/types"
)

func newTestEnv() *env.Env {
	return env.New("/proj", "/proj/main.mld", nil)
}

func newTestEvaluator() (*eval.Evaluator, *output.Materializer, *bytes.Buffer) {
	mat := output.New(output.ModeMarkdown)
	stderr := &bytes.Buffer{}
	return &eval.Evaluator{Materializer: mat, Stderr: stderr}, mat, stderr
}

func TestEvalVarAndShow(t *testing.T) {
	ev, mat, _ := newTestEvaluator()
	e := newTestEnv()

	varDir := &ast.Directive{
		Kind:   ast.KindVar,
		Raw:    map[string]string{"name": "greeting"},
		Values: map[string][]ast.Node{"value": {&ast.StringLiteral{Value: "hello"}}},
	}
	require.NoError(t, ev.EvalDirective(context.Background(), varDir, e))

	v, ok := e.Get("greeting")
	require.True(t, ok)
	assert.Equal(t, "hello", v.Value.Text)

	showDir := &ast.Directive{
		Kind:   ast.KindShow,
		Values: map[string][]ast.Node{"value": {&ast.VariableReference{Identifier: "greeting"}}},
	}
	require.NoError(t, ev.EvalDirective(context.Background(), showDir, e))
	assert.Contains(t, mat.Render(), "hello")
}

func TestEvalVarRedefinitionErrors(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()
	dir := &ast.Directive{
		Kind:   ast.KindVar,
		Raw:    map[string]string{"name": "x"},
		Values: map[string][]ast.Node{"value": {&ast.StringLiteral{Value: "a"}}},
	}
	require.NoError(t, ev.EvalDirective(context.Background(), dir, e))
	err := ev.EvalDirective(context.Background(), dir, e)
	assert.Error(t, err)
}

func TestEvalWhenFirstMatch(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	whenExpr := &ast.WhenExpression{
		Mode: ast.WhenFirst,
		Conditions: []ast.WhenClause{
			{Guard: &ast.BooleanLiteral{Value: false}, Action: &ast.StringLiteral{Value: "no"}},
			{Guard: &ast.BooleanLiteral{Value: true}, Action: &ast.StringLiteral{Value: "yes"}},
		},
	}
	result, err := ev.EvalExpr(context.Background(), whenExpr, e)
	require.NoError(t, err)
	assert.Equal(t, "yes", result.Text)
}

func TestEvalForSerialCollectsResults(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	forExpr := &ast.ForExpression{
		Variable: "n",
		Iterable: &ast.ArrayLiteral{Elements: []ast.Node{
			&ast.NumberLiteral{Value: 1},
			&ast.NumberLiteral{Value: 2},
			&ast.NumberLiteral{Value: 3},
		}},
		Body:    &ast.VariableReference{Identifier: "n"},
		Collect: true,
	}
	result, err := ev.EvalExpr(context.Background(), forExpr, e)
	require.NoError(t, err)
	require.Len(t, result.Data.Array, 3)
	assert.Equal(t, 2.0, result.Data.Array[1].Num)
}

func TestEvalLoopRespectsMaxIterations(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	loopExpr := &ast.LoopExpression{
		Max:            &ast.NumberLiteral{Value: 5},
		UntilCondition: &ast.BooleanLiteral{Value: false},
		Body:           &ast.NumberLiteral{Value: 42},
	}
	result, err := ev.EvalExpr(context.Background(), loopExpr, e)
	require.NoError(t, err)
	assert.Equal(t, 42.0, result.Data.Num)
}

func TestEvalLoopUntilTrueSkipsBody(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	loopExpr := &ast.LoopExpression{
		Max:            &ast.NumberLiteral{Value: 5},
		UntilCondition: &ast.BooleanLiteral{Value: true},
		Body:           &ast.NumberLiteral{Value: 42},
	}
	result, err := ev.EvalExpr(context.Background(), loopExpr, e)
	require.NoError(t, err)
	assert.Equal(t, types.Null(), result.Data)
}

func TestEvalBailProducesError(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()
	dir := &ast.Directive{
		Kind: ast.KindBail,
		Raw:  map[string]string{"message": "stop here"},
	}
	err := ev.EvalDirective(context.Background(), dir, e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop here")
}

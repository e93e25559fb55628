package eval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/exe"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

func TestEvalBinaryOpArithmeticAndConcat(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	sum := &ast.BinaryOp{Op: "+", Left: &ast.NumberLiteral{Value: 2}, Right: &ast.NumberLiteral{Value: 3}}
	result, err := ev.EvalExpr(context.Background(), sum, e)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.Data.Num)

	concat := &ast.BinaryOp{Op: "+", Left: &ast.StringLiteral{Value: "a"}, Right: &ast.StringLiteral{Value: "b"}}
	result, err = ev.EvalExpr(context.Background(), concat, e)
	require.NoError(t, err)
	assert.Equal(t, "ab", result.Data.Str)
}

func TestEvalBinaryOpShortCircuits(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	and := &ast.BinaryOp{Op: "&&", Left: &ast.BooleanLiteral{Value: false}, Right: &ast.VariableReference{Identifier: "undefined_var"}}
	result, err := ev.EvalExpr(context.Background(), and, e)
	require.NoError(t, err)
	assert.False(t, result.Data.Truthy())
}

func TestEvalTernary(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	ternary := &ast.Ternary{
		Cond: &ast.BooleanLiteral{Value: true},
		Then: &ast.StringLiteral{Value: "yes"},
		Else: &ast.StringLiteral{Value: "no"},
	}
	result, err := ev.EvalExpr(context.Background(), ternary, e)
	require.NoError(t, err)
	assert.Equal(t, "yes", result.Text)
}

func TestFieldAccessAndIndex(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	obj := types.NewObject([]string{"name", "items"}, map[string]types.Value{
		"name":  types.String("widget"),
		"items": types.Array(types.Number(1), types.Number(2)),
	})
	require.NoError(t, e.Set(&env.Variable{Name: "thing", Kind: env.KindData, Value: value.FromData(obj, value.Metadata{})}))

	ref := &ast.VariableReference{
		Identifier: "thing",
		Fields: []ast.FieldAccess{
			{Kind: ast.FieldKindField, Name: "items"},
			{Kind: ast.FieldKindIndex, Index: &ast.NumberLiteral{Value: 1}},
		},
	}
	result, err := ev.EvalExpr(context.Background(), ref, e)
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.Data.Num)
}

func TestFilterAndMapCallbacks(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	require.NoError(t, e.Set(&env.Variable{Name: "arr", Kind: env.KindData, Value: value.FromData(
		types.Array(types.Number(1), types.Number(2), types.Number(3), types.Number(4)), value.Metadata{},
	)}))

	double := &exe.Executable{
		Form:   exe.FormBlock,
		Params: []types.Param{{Name: "n"}},
		Body: []ast.Node{
			&ast.BinaryOp{Op: "*", Left: &ast.VariableReference{Identifier: "n"}, Right: &ast.NumberLiteral{Value: 2}},
		},
	}
	require.NoError(t, e.Set(&env.Variable{Name: "double", Kind: env.KindExecutable, Exec: double}))

	mapExpr := &ast.VariableReference{
		Identifier: "arr",
		Fields: []ast.FieldAccess{
			{Kind: ast.FieldKindCall, Name: "map", Args: []ast.Node{&ast.VariableReference{Identifier: "double"}}},
		},
	}
	result, err := ev.EvalExpr(context.Background(), mapExpr, e)
	require.NoError(t, err)
	require.Len(t, result.Data.Array, 4)
	assert.Equal(t, 8.0, result.Data.Array[3].Num)

	isPositive := &exe.Executable{
		Form:   exe.FormBlock,
		Params: []types.Param{{Name: "n"}},
		Body: []ast.Node{
			&ast.BinaryOp{Op: ">", Left: &ast.VariableReference{Identifier: "n"}, Right: &ast.NumberLiteral{Value: 2}},
		},
	}
	require.NoError(t, e.Set(&env.Variable{Name: "isBig", Kind: env.KindExecutable, Exec: isPositive}))

	filterExpr := &ast.VariableReference{
		Identifier: "arr",
		Fields: []ast.FieldAccess{
			{Kind: ast.FieldKindCall, Name: "filter", Args: []ast.Node{&ast.VariableReference{Identifier: "isBig"}}},
		},
	}
	result, err = ev.EvalExpr(context.Background(), filterExpr, e)
	require.NoError(t, err)
	require.Len(t, result.Data.Array, 2)
	assert.Equal(t, 3.0, result.Data.Array[0].Num)
}

func TestExecInvocationBlockForm(t *testing.T) {
	ev, _, _ := newTestEvaluator()
	e := newTestEnv()

	greet := &exe.Executable{
		Name:   "greet",
		Form:   exe.FormBlock,
		Params: []types.Param{{Name: "name"}},
		Body: []ast.Node{
			&ast.BinaryOp{Op: "+", Left: &ast.StringLiteral{Value: "hi "}, Right: &ast.VariableReference{Identifier: "name"}},
		},
	}
	require.NoError(t, e.Set(&env.Variable{Name: "greet", Kind: env.KindExecutable, Exec: greet}))

	invocation := &ast.ExecInvocation{Target: "greet", Args: []ast.Node{&ast.StringLiteral{Value: "sam"}}}
	result, err := ev.EvalExpr(context.Background(), invocation, e)
	require.NoError(t, err)
	assert.Equal(t, "hi sam", result.Text)
}

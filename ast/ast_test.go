package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlld-lang/mlld-core/ast"
)

func TestLiteralStringRendersQuoted(t *testing.T) {
	var n ast.Node = &ast.StringLiteral{Value: "hi"}
	assert.Equal(t, `"hi"`, n.String())
}

func TestObjectLiteralPreservesKeyOrder(t *testing.T) {
	obj := &ast.ObjectLiteral{
		Keys: []string{"z", "a"},
		Values: map[string]ast.Node{
			"z": &ast.NumberLiteral{Value: 1},
			"a": &ast.NumberLiteral{Value: 2},
		},
	}
	assert.Equal(t, "{z: 1, a: 2}", obj.String())
}

func TestArrayLiteralJoinsElements(t *testing.T) {
	arr := &ast.ArrayLiteral{Elements: []ast.Node{
		&ast.NumberLiteral{Value: 1},
		&ast.BooleanLiteral{Value: true},
		&ast.NullLiteral{},
	}}
	assert.Equal(t, "[1, true, null]", arr.String())
}

func TestFieldAccessRenderingPerKind(t *testing.T) {
	field := ast.FieldAccess{Kind: ast.FieldKindField, Name: "x"}
	assert.Equal(t, ".x", field.String())

	idx := ast.FieldAccess{Kind: ast.FieldKindIndex, Index: &ast.NumberLiteral{Value: 0}}
	assert.Equal(t, "[0]", idx.String())

	slice := ast.FieldAccess{Kind: ast.FieldKindSlice, Index: &ast.NumberLiteral{Value: 1}, SliceEnd: &ast.NumberLiteral{Value: 3}}
	assert.Equal(t, "[1:3]", slice.String())

	openSlice := ast.FieldAccess{Kind: ast.FieldKindSlice}
	assert.Equal(t, "[:]", openSlice.String())

	call := ast.FieldAccess{Kind: ast.FieldKindCall, Name: "join", Args: []ast.Node{&ast.StringLiteral{Value: ","}}}
	assert.Equal(t, `.join(",")`, call.String())
}

func TestVariableReferenceChainsFieldAccess(t *testing.T) {
	ref := &ast.VariableReference{
		Identifier: "data",
		Fields: []ast.FieldAccess{
			{Kind: ast.FieldKindField, Name: "items"},
			{Kind: ast.FieldKindIndex, Index: &ast.NumberLiteral{Value: 0}},
		},
	}
	assert.Equal(t, "@data.items[0]", ref.String())
}

func TestPositionStringFormat(t *testing.T) {
	assert.Equal(t, "4:2", ast.Position{Line: 4, Column: 2}.String())
}

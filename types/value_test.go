package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/types"
)

func TestTruthyRules(t *testing.T) {
	cases := []struct {
		name string
		v    types.Value
		want bool
	}{
		{"null", types.Null(), false},
		{"false", types.Bool(false), false},
		{"true", types.Bool(true), true},
		{"zero", types.Number(0), false},
		{"nonzero", types.Number(1), true},
		{"empty string", types.String(""), false},
		{"nonempty string", types.String("x"), true},
		{"empty array", types.Array(), false},
		{"nonempty array", types.Array(types.Number(1)), true},
		{"empty object", types.NewObject(nil, map[string]types.Value{}), false},
		{"nonempty object", types.NewObject([]string{"a"}, map[string]types.Value{"a": types.Number(1)}), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.v.Truthy())
		})
	}
}

func TestEqualAcrossMismatchedKindsIsFalse(t *testing.T) {
	assert.False(t, types.Number(1).Equal(types.String("1")))
	assert.True(t, types.Number(1).Equal(types.Number(1)))
}

func TestEqualIsStructuralForArraysAndObjects(t *testing.T) {
	a := types.Array(types.Number(1), types.String("x"))
	b := types.Array(types.Number(1), types.String("x"))
	c := types.Array(types.Number(1), types.String("y"))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))

	obj1 := types.NewObject([]string{"a", "b"}, map[string]types.Value{"a": types.Number(1), "b": types.Bool(true)})
	obj2 := types.NewObject([]string{"b", "a"}, map[string]types.Value{"a": types.Number(1), "b": types.Bool(true)})
	assert.True(t, obj1.Equal(obj2), "object equality must not depend on key order")
}

func TestKeysPreservesInsertionOrder(t *testing.T) {
	obj := types.NewObject([]string{"z", "a", "m"}, map[string]types.Value{
		"z": types.Number(1), "a": types.Number(2), "m": types.Number(3),
	})
	assert.Equal(t, []string{"z", "a", "m"}, obj.Keys())
}

func TestFieldAndIndexAccessors(t *testing.T) {
	obj := types.NewObject([]string{"name"}, map[string]types.Value{"name": types.String("mlld")})
	v, ok := obj.Field("name")
	require.True(t, ok)
	assert.Equal(t, types.String("mlld"), v)

	_, ok = obj.Field("missing")
	assert.False(t, ok)

	arr := types.Array(types.Number(10), types.Number(20))
	v, ok = arr.Index(1)
	require.True(t, ok)
	assert.Equal(t, types.Number(20), v)

	_, ok = arr.Index(5)
	assert.False(t, ok)
}

func TestToJSONAndFromJSONRoundTripStructurally(t *testing.T) {
	obj := types.NewObject([]string{"a", "b"}, map[string]types.Value{
		"a": types.Number(1),
		"b": types.Array(types.String("x"), types.Bool(true), types.Null()),
	})
	text, err := types.ToJSON(obj)
	require.NoError(t, err)

	decoded, err := types.FromJSON([]byte(text))
	require.NoError(t, err)
	assert.True(t, obj.Equal(decoded))
}

package env_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/env"
	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/value"
)

func setVar(t *testing.T, e *env.Env, name, text string) {
	t.Helper()
	require.NoError(t, e.Set(&env.Variable{Name: name, Kind: env.KindText, Value: value.FromText(text, value.Metadata{})}))
}

func TestGetResolvesThroughParentChain(t *testing.T) {
	root := env.New("/proj", "/proj/main.mld", nil)
	setVar(t, root, "x", "root-value")

	child := root.Child()
	v, ok := child.Get("x")
	require.True(t, ok)
	assert.Equal(t, "root-value", v.Value.Text)
}

func TestSetShadowsParentButRejectsSameScopeRedefinition(t *testing.T) {
	root := env.New("/proj", "/proj/main.mld", nil)
	setVar(t, root, "x", "root-value")

	child := root.Child()
	setVar(t, child, "x", "child-value")
	v, ok := child.Get("x")
	require.True(t, ok)
	assert.Equal(t, "child-value", v.Value.Text, "shadowing a parent binding in a child scope must be allowed")

	err := child.Set(&env.Variable{Name: "x", Kind: env.KindText, Value: value.FromText("again", value.Metadata{})})
	require.Error(t, err)
	assert.True(t, errkind.Matches(err, errkind.VariableRedef))
}

func TestChildWritesDoNotLeakToParent(t *testing.T) {
	root := env.New("/proj", "/proj/main.mld", nil)
	child := root.Child()
	setVar(t, child, "y", "child-only")

	_, ok := root.Get("y")
	assert.False(t, ok, "a child scope's writes must not be visible in the parent")
}

func TestMergeHoistsOnlyExportedNames(t *testing.T) {
	root := env.New("/proj", "/proj/main.mld", nil)
	child := root.Child()
	setVar(t, child, "exported", "yes")
	setVar(t, child, "hidden", "no")
	child.SetExportManifest([]string{"exported"}, false)

	root.Merge(child)

	_, ok := root.Get("exported")
	assert.True(t, ok)
	_, ok = root.Get("hidden")
	assert.False(t, ok, "non-exported child bindings must not hoist into the parent")
}

func TestMergeWildcardHoistsEverything(t *testing.T) {
	root := env.New("/proj", "/proj/main.mld", nil)
	child := root.Child()
	setVar(t, child, "a", "1")
	setVar(t, child, "b", "2")
	child.SetExportManifest(nil, true)

	root.Merge(child)

	_, ok := root.Get("a")
	assert.True(t, ok)
	_, ok = root.Get("b")
	assert.True(t, ok)
}

func TestExportedNamesWildcardWhenManifestNil(t *testing.T) {
	e := env.New("/proj", "/proj/main.mld", nil)
	setVar(t, e, "a", "1")
	assert.Equal(t, []string{"a"}, e.ExportedNames(), "no export manifest means every binding is reported exported")
}

func TestReservedShortCircuitsBeforeWalkingChain(t *testing.T) {
	reserved := func(name string) (*env.Variable, bool) {
		if name == "debug" {
			return &env.Variable{Name: "debug", Kind: env.KindText, Value: value.FromText("reserved", value.Metadata{})}, true
		}
		return nil, false
	}
	root := env.New("/proj", "/proj/main.mld", reserved)
	setVar(t, root, "debug", "shadowed-attempt")

	v, ok := root.Get("debug")
	require.True(t, ok)
	assert.Equal(t, "reserved", v.Value.Text)
}

func TestShadowsMergeAcrossParentChain(t *testing.T) {
	noop := func() env.Executable { return fakeExecutable{} }
	root := env.New("/proj", "/proj/main.mld", nil)
	root.RegisterShadow("js", "helper", noop())
	child := root.Child()
	child.RegisterShadow("js", "childOnly", noop())

	shadows := child.Shadows("js")
	assert.Contains(t, shadows, "helper")
	assert.Contains(t, shadows, "childOnly")
}

func TestEmittedNodesAreScopeLocal(t *testing.T) {
	root := env.New("/proj", "/proj/main.mld", nil)
	child := root.Child()
	child.Emit(nil)

	assert.Len(t, child.EmittedNodes(), 1)
	assert.Len(t, root.EmittedNodes(), 0)
}

type fakeExecutable struct{}

func (fakeExecutable) ParamNames() []string { return nil }

package exe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/exe"
	"github.com/mlld-lang/mlld-core/types"
)

func TestExecutableParamNamesMirrorsParamOrder(t *testing.T) {
	e := &exe.Executable{
		Params: []types.Param{{Name: "a"}, {Name: "b"}, {Name: "c"}},
	}
	assert.Equal(t, []string{"a", "b", "c"}, e.ParamNames())
}

func TestExecutableParamNamesEmptyForZeroArity(t *testing.T) {
	e := &exe.Executable{}
	assert.Equal(t, []string{}, e.ParamNames())
}

func TestParamsGetFindsBoundValueByName(t *testing.T) {
	p := exe.Params{
		Names:  []string{"x", "y"},
		Values: []types.Value{types.Number(1), types.String("hi")},
		Texts:  []string{"1", "hi"},
	}
	v, ok := p.Get("y")
	require.True(t, ok)
	assert.Equal(t, types.String("hi"), v)

	_, ok = p.Get("missing")
	assert.False(t, ok)
}

func TestCommandResultSuccessReflectsExitCode(t *testing.T) {
	assert.True(t, exe.CommandResult{ExitCode: 0}.Success())
	assert.False(t, exe.CommandResult{ExitCode: 1}.Success())
}

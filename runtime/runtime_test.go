package runtime_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/host"
	"github.com/mlld-lang/mlld-core/runtime"
	"github.com/mlld-lang/mlld-core/types"
)

// stubParser treats the source string as the literal text to show,
// standing in for the external grammar (spec.md §1: out of scope).
type stubParser struct{}

func (stubParser) Parse(ctx context.Context, source string, mode host.ParseMode) (*ast.Program, error) {
	return &ast.Program{Nodes: []ast.Node{
		&ast.Directive{
			Kind:   ast.KindShow,
			Values: map[string][]ast.Node{"value": {&ast.StringLiteral{Value: source}}},
		},
	}}, nil
}

func TestProcessRendersShowOutput(t *testing.T) {
	rt := runtime.New(runtime.WithParser(stubParser{}))
	result, err := rt.Process(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Contains(t, result.Output, "hello world")
}

func TestProcessSeedsState(t *testing.T) {
	rt := runtime.New(
		runtime.WithParser(stubParser{}),
		runtime.WithState(map[string]types.Value{"count": types.Number(1)}),
	)
	result, err := rt.Process(context.Background(), "seeded")
	require.NoError(t, err)
	assert.Contains(t, result.Output, "seeded")
}

func TestProcessAsyncResultBlocksUntilDone(t *testing.T) {
	rt := runtime.New(runtime.WithParser(stubParser{}))
	handle, err := rt.ProcessAsync(context.Background(), "async hello")
	require.NoError(t, err)

	result, err := handle.Result()
	require.NoError(t, err)
	assert.Contains(t, result.Output, "async hello")
}

func TestHandleUpdateStateAfterCompletionFails(t *testing.T) {
	rt := runtime.New(
		runtime.WithParser(stubParser{}),
		runtime.WithState(map[string]types.Value{"count": types.Number(1)}),
	)
	handle, err := rt.ProcessAsync(context.Background(), "done")
	require.NoError(t, err)

	_, err = handle.Result()
	require.NoError(t, err)

	err = handle.UpdateState("count", types.Number(2))
	assert.Error(t, err)
}

func TestNewPanicsWithoutParser(t *testing.T) {
	assert.Panics(t, func() {
		runtime.New()
	})
}

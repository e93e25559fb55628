package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/pipeline"
	"github.com/mlld-lang/mlld-core/value"
)

func upperInvoker(ctx context.Context, stageIndex int, input *value.StructuredValue, stageCtx pipeline.StageContext) (*value.StructuredValue, error) {
	return value.FromText(strings.ToUpper(input.Text), input.Mx), nil
}

func TestRunSerialChainsStages(t *testing.T) {
	eng := &pipeline.Engine{Invoke: upperInvoker, PipelineID: "p1"}
	head := value.FromText("abc", value.Metadata{})

	out, err := eng.RunSerial(context.Background(), head, []pipeline.Stage{{Name: "upper"}, {Name: "upper2"}})
	require.NoError(t, err)
	assert.Equal(t, "ABC", out.Text)
}

func TestRunSerialRetriesUntilPass(t *testing.T) {
	attempts := 0
	invoke := func(ctx context.Context, stageIndex int, input *value.StructuredValue, stageCtx pipeline.StageContext) (*value.StructuredValue, error) {
		attempts++
		return value.FromText("out", value.Metadata{}), nil
	}
	after := func(ctx context.Context, stageIndex int, output *value.StructuredValue, stageCtx pipeline.StageContext) (pipeline.AfterResult, error) {
		if stageCtx.Try < 2 {
			return pipeline.AfterResult{Outcome: pipeline.OutcomeRetry, RetryHint: "try again"}, nil
		}
		return pipeline.AfterResult{Outcome: pipeline.OutcomePass}, nil
	}
	eng := &pipeline.Engine{Invoke: invoke, After: after, MaxRetries: 3}

	out, err := eng.RunSerial(context.Background(), value.FromText("in", value.Metadata{}), []pipeline.Stage{{Name: "flaky"}})
	require.NoError(t, err)
	assert.Equal(t, "out", out.Text)
	assert.Equal(t, 3, attempts)
}

func TestRunSerialDenyStopsChain(t *testing.T) {
	invoked := 0
	invoke := func(ctx context.Context, stageIndex int, input *value.StructuredValue, stageCtx pipeline.StageContext) (*value.StructuredValue, error) {
		invoked++
		return value.FromText("x", value.Metadata{}), nil
	}
	after := func(ctx context.Context, stageIndex int, output *value.StructuredValue, stageCtx pipeline.StageContext) (pipeline.AfterResult, error) {
		return pipeline.AfterResult{Outcome: pipeline.OutcomeDeny, DenyReason: "nope"}, nil
	}
	eng := &pipeline.Engine{Invoke: invoke, After: after}

	_, err := eng.RunSerial(context.Background(), value.FromText("in", value.Metadata{}), []pipeline.Stage{{Name: "a"}, {Name: "b"}})
	require.Error(t, err)
	assert.Equal(t, 1, invoked)
}

func TestRunParallelPreservesOrder(t *testing.T) {
	invoke := func(ctx context.Context, stageIndex int, input *value.StructuredValue, stageCtx pipeline.StageContext) (*value.StructuredValue, error) {
		labels := []string{"zero", "one", "two"}
		return value.FromText(labels[stageIndex], value.Metadata{}), nil
	}
	eng := &pipeline.Engine{Invoke: invoke}

	out, err := eng.RunParallel(context.Background(), value.FromText("in", value.Metadata{}), []pipeline.Stage{{}, {}, {}})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "zero", out[0].Text)
	assert.Equal(t, "one", out[1].Text)
	assert.Equal(t, "two", out[2].Text)
}

func TestStreamBusPublishAndSubscribe(t *testing.T) {
	bus := pipeline.NewStreamBus()
	ch, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	bus.Publish(pipeline.ChunkEvent{PipelineID: "p1", Text: "hello"})
	ev := <-ch
	assert.Equal(t, "hello", ev.Text)
}

// Package pipeline implements the Pipeline Engine (spec.md §4.6,
// component C6): chaining stage invocations with `|`, retries via
// `retry "hint"`, parallel stages via `||`, and streaming sinks.
//
// Stage execution itself (running an Executable with `@input` bound) and
// after-guard evaluation belong to the eval package, which has the
// Environment and guard Registry this package must not import (eval
// imports pipeline, not the reverse). Engine is parameterized over two
// callbacks instead.
package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/value"
)

// DefaultMaxRetries is the try-limit spec.md §4.6 names ("up to the
// active try limit", "default 3").
const DefaultMaxRetries = 3

// StageContext is what a stage invocation sees as `@mx` (spec.md §4.6:
// "mx.try, mx.tries, mx.hint, mx.hintHistory, mx.pipelineId,
// mx.stageIndex").
type StageContext struct {
	Try         int
	Tries       int
	Hint        string
	HintHistory []string
	PipelineID  string
	StageIndex  int
}

// AfterOutcome is what evaluating after-guards (and any `when` action
// reached from them) on a stage's output decided.
type AfterOutcome int

const (
	OutcomePass AfterOutcome = iota
	OutcomeRetry
	OutcomeDeny
)

// AfterResult carries an AfterOutcome plus its payload.
type AfterResult struct {
	Outcome     AfterOutcome
	Value       *value.StructuredValue // for OutcomePass, possibly transformed
	RetryHint   string                 // for OutcomeRetry
	DenyReason  string                 // for OutcomeDeny
}

// StageInvoker runs one stage's executable with `@input` = input and
// `@mx` = stageCtx bound in a stage-local environment, per spec.md
// §4.6 steps 1-2.
type StageInvoker func(ctx context.Context, stageIndex int, input *value.StructuredValue, stageCtx StageContext) (*value.StructuredValue, error)

// AfterGuard evaluates after-guards (and guard-reached `when` retry
// actions) on a stage's output, per spec.md §4.6 step 3.
type AfterGuard func(ctx context.Context, stageIndex int, output *value.StructuredValue, stageCtx StageContext) (AfterResult, error)

// Stage is one `| executable` link.
type Stage struct {
	Name string
}

// Engine runs a pipeline of stages.
type Engine struct {
	Invoke      StageInvoker
	After       AfterGuard
	MaxRetries  int
	Bus         *StreamBus // optional; nil disables streaming
	PipelineID  string
}

// RunSerial executes stages left to right, applying retry semantics at
// each stage boundary (spec.md §4.6 step 4: "push hint into
// mx.hintHistory, increment mx.try, and re-invoke the previous stage").
func (e *Engine) RunSerial(ctx context.Context, head *value.StructuredValue, stages []Stage) (*value.StructuredValue, error) {
	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	current := head
	var sources []string
	for i, stage := range stages {
		stageCtx := StageContext{Tries: maxRetries, PipelineID: e.PipelineID, StageIndex: i}

		var out *value.StructuredValue
		for {
			var err error
			out, err = e.Invoke(ctx, i, current, stageCtx)
			if err != nil {
				return nil, err
			}
			if e.Bus != nil {
				e.Bus.Publish(ChunkEvent{PipelineID: e.PipelineID, StageIndex: i, Text: out.Text, Final: true})
			}

			if e.After == nil {
				break
			}
			res, err := e.After(ctx, i, out, stageCtx)
			if err != nil {
				return nil, err
			}
			switch res.Outcome {
			case OutcomePass:
				if res.Value != nil {
					out = res.Value
				}
			case OutcomeDeny:
				return nil, errkind.New(errkind.GuardDenial, res.DenyReason).
					WithTrace(errkind.TraceEntry{Pipeline: e.PipelineID, Stage: i, Note: stage.Name})
			case OutcomeRetry:
				if stageCtx.Try >= maxRetries {
					return nil, errkind.New(errkind.Execution, "pipeline stage exceeded max retries").
						WithTrace(errkind.TraceEntry{Pipeline: e.PipelineID, Stage: i, Note: res.RetryHint})
				}
				stageCtx.HintHistory = append(stageCtx.HintHistory, res.RetryHint)
				stageCtx.Hint = res.RetryHint
				stageCtx.Try++
				continue
			}
			break
		}

		sources = append(sources, out.Mx.Sources...)
		current = out
	}

	if e.Bus != nil {
		e.Bus.Publish(ChunkEvent{PipelineID: e.PipelineID, Final: true, Complete: true})
	}
	return current, nil
}

// RunParallel evaluates `|| a || b || c` over the same input
// concurrently; results are ordered by source position regardless of
// completion order (spec.md §4.6 determinism, §5 "observable result
// ordering matches source order of branches").
func (e *Engine) RunParallel(ctx context.Context, input *value.StructuredValue, stages []Stage) ([]*value.StructuredValue, error) {
	results := make([]*value.StructuredValue, len(stages))
	g, gctx := errgroup.WithContext(ctx)
	for i := range stages {
		i := i
		g.Go(func() error {
			stageCtx := StageContext{Tries: e.MaxRetries, PipelineID: e.PipelineID, StageIndex: i}
			out, err := e.Invoke(gctx, i, input, stageCtx)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package errkind_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/errkind"
)

func TestNewBuildsErrorWithoutCause(t *testing.T) {
	err := errkind.New(errkind.UndefinedRef, "no such variable")
	assert.Equal(t, errkind.UndefinedRef, err.Kind)
	assert.Nil(t, err.Cause)
	assert.Equal(t, "UNDEFINED_REFERENCE: no such variable", err.Error())
}

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := errkind.Wrap(errkind.Execution, "command failed", cause)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestAtAndWithContextChain(t *testing.T) {
	err := errkind.New(errkind.ParseError, "unexpected token").
		At(errkind.Location{Line: 3, Column: 5}, "main.mld").
		WithContext("token", "@@")

	assert.Contains(t, err.Error(), "3:5")
	assert.Contains(t, err.Error(), "main.mld")
	assert.Equal(t, "@@", err.Context["token"])
}

func TestWithTraceAppendsBreadcrumbs(t *testing.T) {
	err := errkind.New(errkind.GuardDenial, "blocked").
		WithTrace(errkind.TraceEntry{Pipeline: "p1", Stage: 0, Guard: "g1"}).
		WithTrace(errkind.TraceEntry{Pipeline: "p1", Stage: 1, Guard: "g2"})

	require.Len(t, err.Trace, 2)
	assert.Equal(t, "g1", err.Trace[0].Guard)
	assert.Equal(t, "g2", err.Trace[1].Guard)
}

func TestMatchesSeesThroughWrappedErrors(t *testing.T) {
	inner := errkind.New(errkind.Integrity, "hash mismatch")
	outer := fmt.Errorf("fetch failed: %w", inner)

	assert.True(t, errkind.Matches(outer, errkind.Integrity))
	assert.False(t, errkind.Matches(outer, errkind.ParseError))
	assert.False(t, errkind.Matches(fmt.Errorf("plain"), errkind.Integrity))
}

func TestRetryableOnlyExecutionErrors(t *testing.T) {
	assert.True(t, errkind.Execution.Retryable())
	assert.False(t, errkind.ParseError.Retryable())
	assert.False(t, errkind.GuardDenial.Retryable())
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind errkind.Kind
		code int
	}{
		{errkind.ParseError, 2},
		{errkind.ImportResolution, 3},
		{errkind.Integrity, 3},
		{errkind.NeedsUnsatisfied, 3},
		{errkind.GuardDenial, 4},
		{errkind.Bail, 5},
		{errkind.Execution, 1},
		{errkind.Cancellation, 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, c.kind.ExitCode(), "kind %s", c.kind)
	}
}

func TestLocationStringEmptyWhenZero(t *testing.T) {
	assert.Equal(t, "", errkind.Location{}.String())
	assert.Equal(t, "1:1", errkind.Location{Line: 1, Column: 1}.String())
}

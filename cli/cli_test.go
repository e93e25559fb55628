package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/value"
)

func TestLineParserRecognizesShowAndVar(t *testing.T) {
	prog, err := lineParser{}.Parse(nil, "/var @name = \"world\"\n/show \"hello\"\nplain prose\n", "markdown")
	require.NoError(t, err)
	require.Len(t, prog.Nodes, 3)
}

func TestShouldUseColorHonorsNoColorFlag(t *testing.T) {
	assert.False(t, ShouldUseColor(true))
}

func TestColorizePassesThroughWhenDisabled(t *testing.T) {
	assert.Equal(t, "plain", Colorize("plain", ColorRed, false))
	assert.Equal(t, ColorRed+"plain"+ColorReset, Colorize("plain", ColorRed, true))
}

func TestFormatErrorRendersInterpreterError(t *testing.T) {
	var buf bytes.Buffer
	err := errkind.New(errkind.GuardDenial, "blocked by guard").WithTrace(errkind.TraceEntry{Guard: "no-secrets", Note: "denied"})
	FormatError(&buf, err, false)
	out := buf.String()
	assert.Contains(t, out, "blocked by guard")
	assert.Contains(t, out, "GUARD_DENIAL")
	assert.Contains(t, out, "no-secrets")
}

func TestFormatErrorRendersCLIError(t *testing.T) {
	var buf bytes.Buffer
	FormatError(&buf, &CLIError{Message: "bad flag", Hint: "use --file"}, false)
	out := buf.String()
	assert.Contains(t, out, "bad flag")
	assert.Contains(t, out, "use --file")
}

func TestDisplayGuardTraceRendersEachEntry(t *testing.T) {
	var buf bytes.Buffer
	trace := []value.GuardTraceEntry{
		{GuardName: "redact-secrets", Outcome: "allow"},
		{GuardName: "no-exec", Outcome: "deny", Reason: "shell exec blocked in strict mode"},
	}
	DisplayGuardTrace(&buf, "result", trace, false)
	out := buf.String()
	assert.Contains(t, out, "redact-secrets")
	assert.Contains(t, out, "no-exec")
	assert.Contains(t, out, "shell exec blocked in strict mode")
}

func TestDisplayGuardTraceEmpty(t *testing.T) {
	var buf bytes.Buffer
	DisplayGuardTrace(&buf, "result", nil, false)
	assert.Contains(t, buf.String(), "no guards fired")
}

func TestGetInputReaderErrorsOnMissingFile(t *testing.T) {
	_, _, err := getInputReader("/nonexistent/path/does-not-exist.mld")
	require.Error(t, err)
	var cliErr *CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, "input", cliErr.Type)
}

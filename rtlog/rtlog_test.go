package rtlog_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/rtlog"
)

func TestLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	var buf bytes.Buffer
	log := rtlog.New(&buf, "test")
	log.SetLevel(rtlog.Warn)

	log.Infof("should not appear")
	log.Warnf("should appear")

	out := buf.String()
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestLoggerIncludesComponentAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := rtlog.New(&buf, "guard")
	log.Infof("denied %s", "op:show")

	out := buf.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "(guard)")
	assert.Contains(t, out, "denied op:show")
}

func TestWithAddsFieldsWithoutMutatingParent(t *testing.T) {
	var buf bytes.Buffer
	base := rtlog.New(&buf, "pipeline")
	child := base.With(map[string]any{"stage": 2})

	child.Infof("retrying")
	base.Infof("base entry")

	out := buf.String()
	require.Contains(t, out, "stage=2")
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.NotContains(t, string(lines[1]), "stage=2")
}

func TestJSONFormatterProducesParsableLine(t *testing.T) {
	var buf bytes.Buffer
	log := rtlog.New(&buf, "comp")
	log.SetFormatter(rtlog.JSONFormatter{})
	log.Infof("hello")

	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestLoggerWithNilWriterIsSafeNoop(t *testing.T) {
	log := rtlog.New(nil, "comp")
	assert.NotPanics(t, func() { log.Infof("anything") })
}

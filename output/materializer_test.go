package output_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/output"
	"github.com/mlld-lang/mlld-core/types"
)

func TestMaterializerMarkdownNormalizesBlankRuns(t *testing.T) {
	m := output.New(output.ModeMarkdown)
	m.Append("show", "hello")
	m.Append("text", "\n\n\n\n")
	m.Append("show", "world")

	rendered := m.Render()
	assert.False(t, strings.Contains(rendered, "\n\n\n"))
	assert.Contains(t, rendered, "hello")
	assert.Contains(t, rendered, "world")
}

func TestMaterializerXMLWrapsBlocks(t *testing.T) {
	m := output.New(output.ModeXML)
	m.Append("show", "hi")
	rendered := m.Render()
	assert.Equal(t, "<show>hi</show>\n", rendered)
}

func TestRouteOutputStateSink(t *testing.T) {
	sw, err := output.RouteOutput(context.Background(), "state://counter", []byte("5"), types.Number(5), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, sw)
	assert.Equal(t, "counter", sw.Path)
}

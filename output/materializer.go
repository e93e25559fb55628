// Package output implements the Output Materializer (spec.md §4.9,
// component C9): accumulating emitted text/variable nodes in source
// order and rendering them as markdown or `llm-xml`. Grounded on the
// core/planfmt/formatter package's node-kind-dispatch
// rendering style, adapted from plan-step formatting to emitted-block
// formatting.
package output

import (
	"regexp"
	"strings"
	"sync"
)

// Mode selects the materializer's rendering format (spec.md §4.9).
type Mode string

const (
	ModeMarkdown Mode = "markdown"
	ModeXML      Mode = "llm-xml"
)

// Block is one emitted unit: a `/show`/`/run`/`/output`-produced chunk
// of text, tagged with the directive kind that produced it (used for
// XML tag names).
type Block struct {
	Kind string // "show", "run", "text", ...
	Text string
}

// Materializer accumulates Blocks in source order and renders the
// final document. Not safe for unordered concurrent emission from
// parallel branches — callers collect parallel results and Append them
// in source order after the join (spec.md §5: "on join, results are
// assembled in source order").
type Materializer struct {
	mu     sync.Mutex
	mode   Mode
	blocks []Block
}

func New(mode Mode) *Materializer {
	if mode == "" {
		mode = ModeMarkdown
	}
	return &Materializer{mode: mode}
}

// Append records one emitted block. Per spec.md §4.9, `/run`/`/show`
// output is normalized to end with exactly one trailing newline before
// accumulation.
func (m *Materializer) Append(kind, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind == "run" || kind == "show" {
		text = ensureTrailingNewline(text)
	}
	m.blocks = append(m.blocks, Block{Kind: kind, Text: text})
}

// Render produces the final document in the materializer's Mode.
func (m *Materializer) Render() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.mode {
	case ModeXML:
		return renderXML(m.blocks)
	default:
		return renderMarkdown(m.blocks)
	}
}

func ensureTrailingNewline(s string) string {
	if s == "" {
		return s
	}
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

// renderMarkdown concatenates blocks and normalizes runs of blank
// lines to at most one (spec.md §4.9).
func renderMarkdown(blocks []Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		b.WriteString(blk.Text)
	}
	return blankRuns.ReplaceAllString(b.String(), "\n\n")
}

// renderXML wraps each block in a tag named after its emitting
// directive kind (spec.md §4.9: "wrap each emitted block in a
// semantically named tag").
func renderXML(blocks []Block) string {
	var b strings.Builder
	for _, blk := range blocks {
		tag := xmlTagName(blk.Kind)
		b.WriteString("<")
		b.WriteString(tag)
		b.WriteString(">")
		b.WriteString(strings.TrimSuffix(blk.Text, "\n"))
		b.WriteString("</")
		b.WriteString(tag)
		b.WriteString(">\n")
	}
	return b.String()
}

func xmlTagName(kind string) string {
	if kind == "" {
		return "text"
	}
	return kind
}

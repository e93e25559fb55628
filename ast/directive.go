package ast

import "fmt"

// DirectiveKind is one of the fifteen top-level directive kinds
// spec.md §3 enumerates.
type DirectiveKind string

const (
	KindVar    DirectiveKind = "var"
	KindExe    DirectiveKind = "exe"
	KindRun    DirectiveKind = "run"
	KindShow   DirectiveKind = "show"
	KindLog    DirectiveKind = "log"
	KindOutput DirectiveKind = "output"
	KindWhen   DirectiveKind = "when"
	KindFor    DirectiveKind = "for"
	KindLoop   DirectiveKind = "loop"
	KindImport DirectiveKind = "import"
	KindExport DirectiveKind = "export"
	KindPath   DirectiveKind = "path"
	KindGuard  DirectiveKind = "guard"
	KindBail   DirectiveKind = "bail"
	KindStream DirectiveKind = "stream"
)

// Directive is the universal shape for every top-level mlld command
// (spec.md §3). Subtype distinguishes variants within a kind (e.g. exe
// subtypes "command", "code", "template", "when", "for", "block"; var's
// subtype carries an optional label prefix like "secret").
//
// Values holds interpolation-bearing fields as node sequences (the
// canonical interpolation input per spec.md §9's "Dynamic dispatch on
// directive shape" design note); Raw holds non-interpolated scalar
// fields (e.g. a sink path literal, a language tag).
type Directive struct {
	Kind    DirectiveKind
	Subtype string
	Values  map[string][]Node
	Raw     map[string]string
	Meta    map[string]any
	Pos     Position
}

func (d *Directive) String() string {
	return fmt.Sprintf("/%s(%s)", d.Kind, d.Subtype)
}
func (d *Directive) Position() Position { return d.Pos }

// Program is the root of a parsed mlld file: a sequence of directives
// and the prose/text nodes interleaved with them in source order.
type Program struct {
	Nodes []Node
	Pos   Position
}

func (p *Program) String() string {
	s := ""
	for _, n := range p.Nodes {
		s += n.String()
	}
	return s
}
func (p *Program) Position() Position { return p.Pos }

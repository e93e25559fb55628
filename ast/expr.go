package ast

import (
	"fmt"
	"strings"
)

// BinaryOp covers arithmetic, comparison, and logical infix operators
// (`+ - * / % == != < <= > >= && ||`).
type BinaryOp struct {
	Op    string
	Left  Node
	Right Node
	Pos   Position
}

func (b *BinaryOp) String() string     { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }
func (b *BinaryOp) Position() Position { return b.Pos }

// UnaryOp covers `!` and unary `-`.
type UnaryOp struct {
	Op      string
	Operand Node
	Pos     Position
}

func (u *UnaryOp) String() string     { return fmt.Sprintf("(%s%s)", u.Op, u.Operand) }
func (u *UnaryOp) Position() Position { return u.Pos }

// Ternary is `cond ? then : else`.
type Ternary struct {
	Cond Node
	Then Node
	Else Node
	Pos  Position
}

func (t *Ternary) String() string     { return fmt.Sprintf("(%s ? %s : %s)", t.Cond, t.Then, t.Else) }
func (t *Ternary) Position() Position { return t.Pos }

// FileLoad is a `<path>` file-load expression (spec.md §4.4 step 4).
type FileLoad struct {
	PathExpr Node
	Section  string // `# Section` heading selector, empty if absent
	Selector string // `{ a.b }` dotted key path into the file's parsed JSON/YAML data (definitions in source files are not extracted), empty if absent
	Pos      Position
}

func (f *FileLoad) String() string {
	s := "<" + f.PathExpr.String()
	if f.Section != "" {
		s += " # " + f.Section
	}
	if f.Selector != "" {
		s += " { " + f.Selector + " }"
	}
	return s + ">"
}
func (f *FileLoad) Position() Position { return f.Pos }

// ExecInvocation calls a named executable with positional/named args.
type ExecInvocation struct {
	Target string
	Args   []Node
	Pos    Position
}

func (e *ExecInvocation) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("@%s(%s)", e.Target, strings.Join(parts, ", "))
}
func (e *ExecInvocation) Position() Position { return e.Pos }

// TemplateStyle distinguishes the three template quoting forms
// spec.md §3/§4.4 name.
type TemplateStyle int

const (
	TemplateBacktick TemplateStyle = iota
	TemplateDoubleColon
	TemplateTripleColon
)

// Template is a backtick/double-colon/triple-colon interpolating body.
// Triple-colon templates use `{{var}}` placeholders and treat bracketed
// tokens as XML rather than file loads (spec.md §4.4).
type Template struct {
	Body  []Node
	Style TemplateStyle
	Pos   Position
}

func (t *Template) String() string {
	parts := make([]string, len(t.Body))
	for i, n := range t.Body {
		parts[i] = n.String()
	}
	return strings.Join(parts, "")
}
func (t *Template) Position() Position { return t.Pos }

// WhenMode selects one of the four evaluation strategies spec.md §4.3.1
// defines.
type WhenMode int

const (
	WhenSimple WhenMode = iota
	WhenFirst
	WhenAll
	WhenAny
)

func (m WhenMode) String() string {
	switch m {
	case WhenSimple:
		return "simple"
	case WhenFirst:
		return "first"
	case WhenAll:
		return "all"
	case WhenAny:
		return "any"
	default:
		return "unknown"
	}
}

// WhenClause pairs a guard condition with its action. Guard may be the
// `*` wildcard (spec.md §4.3.1: "`*` always matches") or the `denied`
// wildcard, represented as a VariableReference with Identifier "*" or
// "denied" respectively so the evaluator's dispatch stays uniform.
// LocalBinding, if non-nil, is a `let @x = …` binding introduced by this
// clause and visible to subsequent clauses in the same block.
type WhenClause struct {
	Guard        Node
	Action       Node
	LocalBinding *LocalBinding
	Pos          Position
}

// LocalBinding is a `let @x = expr` binding local to a when block.
type LocalBinding struct {
	Name  string
	Value Node
}

// WhenExpression is `/when [ … ]` or the inline `when cond => action`
// simple form.
type WhenExpression struct {
	Conditions []WhenClause
	Mode       WhenMode
	Pos        Position
}

func (w *WhenExpression) String() string {
	parts := make([]string, len(w.Conditions))
	for i, c := range w.Conditions {
		parts[i] = fmt.Sprintf("%s => %s", c.Guard, c.Action)
	}
	return fmt.Sprintf("when %s [%s]", w.Mode, strings.Join(parts, "; "))
}
func (w *WhenExpression) Position() Position { return w.Pos }

// ForExpression is `for @v in iterable => body` (or a statement body).
// If Collect is true the body is an expression and results collect into
// an array (spec.md §4.3: "/for @v in iterable => body").
type ForExpression struct {
	Variable string
	Iterable Node
	Body     Node
	Collect  bool
	Parallel bool
	Pos      Position
}

func (f *ForExpression) String() string {
	kw := "for"
	if f.Parallel {
		kw = "for parallel"
	}
	return fmt.Sprintf("%s @%s in %s => %s", kw, f.Variable, f.Iterable, f.Body)
}
func (f *ForExpression) Position() Position { return f.Pos }

// LoopExpression is `/loop(max, interval) until cond [ body ]`.
type LoopExpression struct {
	Max            Node
	Interval       Node
	UntilCondition Node
	Body           Node
	Pos            Position
}

func (l *LoopExpression) String() string {
	return fmt.Sprintf("loop(%s, %s) until %s [%s]", l.Max, l.Interval, l.UntilCondition, l.Body)
}
func (l *LoopExpression) Position() Position { return l.Pos }

// StageRef is one `| stage` link of a PipelineExpression.
type StageRef struct {
	Target Node // ExecInvocation or VariableReference
	Args   []Node
	Pos    Position
}

// PipelineExpression is `expr | stage1 | stage2 | …`, or the parallel
// `|| a || b || c` form (spec.md §4.6).
type PipelineExpression struct {
	Head     Node
	Stages   []StageRef
	Parallel bool
	Pos      Position
}

func (p *PipelineExpression) String() string {
	sep := " | "
	if p.Parallel {
		sep = " || "
	}
	parts := []string{p.Head.String()}
	for _, s := range p.Stages {
		parts = append(parts, s.Target.String())
	}
	return strings.Join(parts, sep)
}
func (p *PipelineExpression) Position() Position { return p.Pos }

package main

import (
	"bufio"
	"context"
	"strings"

	"github.com/mlld-lang/mlld-core/ast"
	"github.com/mlld-lang/mlld-core/host"
)

// lineParser is a minimal stand-in for the real grammar. spec.md §1
// puts "the concrete PEG grammar/parser" explicitly out of scope and
// §6 assumes it as an injected host.Parser capability; this recognizes
// just enough of markdown mode (`/show "…"`, `/var @name = "…"`, and
// bare prose) to let this binary run an `.mld` file end-to-end for
// manual testing. A production embedder supplies a real parser via
// runtime.WithParser instead.
type lineParser struct{}

func (lineParser) Parse(ctx context.Context, source string, mode host.ParseMode) (*ast.Program, error) {
	var nodes []ast.Node
	scanner := bufio.NewScanner(strings.NewReader(source))
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		trimmed := strings.TrimSpace(text)
		pos := ast.Position{Line: line}

		switch {
		case strings.HasPrefix(trimmed, "/show "):
			nodes = append(nodes, &ast.Directive{
				Kind: ast.KindShow,
				Pos:  pos,
				Values: map[string][]ast.Node{
					"value": {&ast.StringLiteral{Value: unquote(strings.TrimPrefix(trimmed, "/show ")), Pos: pos}},
				},
			})
		case strings.HasPrefix(trimmed, "/var @"):
			name, value, ok := splitAssignment(strings.TrimPrefix(trimmed, "/var @"))
			if ok {
				nodes = append(nodes, &ast.Directive{
					Kind: ast.KindVar,
					Pos:  pos,
					Raw:  map[string]string{"name": name},
					Values: map[string][]ast.Node{
						"value": {&ast.StringLiteral{Value: unquote(value), Pos: pos}},
					},
				})
			}
		case trimmed == "":
			// blank line between directives, not emitted
		default:
			nodes = append(nodes, &ast.Text{Content: text + "\n", Pos: pos})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &ast.Program{Nodes: nodes}, nil
}

func splitAssignment(s string) (name, value string, ok bool) {
	idx := strings.Index(s, "=")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:]), true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

package exe

import (
	"context"
	"fmt"
	"strings"

	"github.com/mlld-lang/mlld-core/errkind"
	"github.com/mlld-lang/mlld-core/types"
)

// ShellExecutor runs `cmd`/`sh` bodies (spec.md §4.5). Parameters
// interpolate as `@name` (cmd) or `$name` (sh); each argument is
// shell-escaped unless the template embedded it in an inline string
// (the caller, interp.Interpolator, is responsible for distinguishing
// those two cases before this executor ever sees the final command
// text — ShellExecutor only escapes values it is handed directly via
// Params, for the `@name`/`$name` substitution it performs itself).
type ShellExecutor struct {
	Subprocess Subprocess
}

// quoteShellLiteral single-quotes a value for POSIX shells, escaping
// embedded single quotes by closing/reopening the quoted string —
// grounded on runtime/executor/shell_worker.go
// quoteShellLiteral.
func quoteShellLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// Run substitutes params into code (cmd-style `@name` or sh-style
// `$name`, selected by lang) and spawns it via Subprocess.
func (s *ShellExecutor) Run(ctx context.Context, lang Lang, code string, params Params, env []string, cwd string) (CommandResult, error) {
	substituted := substituteShellParams(lang, code, params)
	res, err := s.Subprocess.Spawn(ctx, substituted, env, cwd, "")
	if err != nil {
		return CommandResult{}, errkind.Wrap(errkind.Execution, "shell command failed", err).
			WithContext("command", substituted)
	}
	return CommandResult{Stdout: trimTrailingNewline(res.Stdout), Stderr: res.Stderr, ExitCode: res.ExitCode}, nil
}

// RunStreaming is like Run but returns the SpawnResult's stream channel
// unconsumed, for the `stream` directive (spec.md §4.3).
func (s *ShellExecutor) RunStreaming(ctx context.Context, lang Lang, code string, params Params, env []string, cwd string) (SpawnResult, error) {
	substituted := substituteShellParams(lang, code, params)
	return s.Subprocess.Spawn(ctx, substituted, env, cwd, "")
}

func substituteShellParams(lang Lang, code string, params Params) string {
	var b strings.Builder
	marker := byte('@')
	if lang == LangSh {
		marker = '$'
	}
	i := 0
	for i < len(code) {
		if code[i] == marker {
			name, rest, ok := readShellIdent(code[i+1:])
			if ok {
				if v, found := params.Get(name); found {
					b.WriteString(quoteShellLiteral(renderShellArg(v)))
					i += 1 + (len(code[i+1:]) - len(rest))
					continue
				}
			}
		}
		b.WriteByte(code[i])
		i++
	}
	return b.String()
}

func readShellIdent(s string) (name, rest string, ok bool) {
	i := 0
	for i < len(s) && (isIdentByte(s[i])) {
		i++
	}
	if i == 0 {
		return "", s, false
	}
	return s[:i], s[i:], true
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func renderShellArg(v types.Value) string {
	switch v.Kind {
	case types.KindString:
		return v.Str
	case types.KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case types.KindBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return v.String()
	}
}

func trimTrailingNewline(s string) string {
	return strings.TrimSuffix(strings.TrimSuffix(s, "\n"), "\r")
}

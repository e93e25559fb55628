package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mlld-lang/mlld-core/errkind"
)

// CLIError represents a formatted CLI-level error (bad flags, missing
// file) with context, distinct from an *errkind.Error produced by the
// interpreter itself.
type CLIError struct {
	Type    string // "usage", "input"
	Message string
	Details string
	Hint    string
}

func (e *CLIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString("\n")
		b.WriteString(e.Details)
	}
	if e.Hint != "" {
		b.WriteString("\n")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// FormatError formats an error for CLI output with colors, switching
// on whether it carries interpreter-level kind/location/trace
// (*errkind.Error) or is a bare CLI-usage error.
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case *errkind.Error:
		formatInterpreterError(w, e, useColor)
	case *CLIError:
		formatCLIError(w, e, useColor)
	default:
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Error())
	}
}

// formatInterpreterError renders an *errkind.Error's kind, location,
// cause chain, and pipeline/guard trace (spec.md §7).
func formatInterpreterError(w io.Writer, err *errkind.Error, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Message, ColorReset)
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("  kind: ", ColorGray, useColor), err.Kind)

	if loc := err.Location.String(); loc != "" {
		_, _ = fmt.Fprintf(w, "%s%s", Colorize("  at: ", ColorGray, useColor), loc)
		if err.SourceFile != "" {
			_, _ = fmt.Fprintf(w, " in %s", err.SourceFile)
		}
		_, _ = fmt.Fprintln(w)
	}

	for _, t := range err.Trace {
		_, _ = fmt.Fprintf(w, "%s", Colorize("  trace: ", ColorYellow, useColor))
		if t.Pipeline != "" {
			_, _ = fmt.Fprintf(w, "pipeline=%s stage=%d ", t.Pipeline, t.Stage)
		}
		if t.Guard != "" {
			_, _ = fmt.Fprintf(w, "guard=%s ", t.Guard)
		}
		_, _ = fmt.Fprintln(w, t.Note)
	}

	if err.Cause != nil {
		_, _ = fmt.Fprintf(w, "%s%v\n", Colorize("  caused by: ", ColorGray, useColor), err.Cause)
	}
}

func formatCLIError(w io.Writer, err *CLIError, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Message, ColorReset)
	if err.Details != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", err.Details)
	}
	if err.Hint != "" {
		_, _ = fmt.Fprintf(w, "%s%s%s\n", Colorize("Hint: ", ColorYellow, useColor), err.Hint, ColorReset)
	}
}

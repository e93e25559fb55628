package main

import (
	"fmt"
	"io"

	"github.com/mlld-lang/mlld-core/value"
)

// DisplayGuardTrace renders a value's guard trace (spec.md §4.7
// `mx.guard.trace[]`) as a tree, grounded on the
// DisplayPlan tree renderer (├─/└─ prefixes per step), adapted from
// rendering a dry-run execution plan to rendering the chain of guard
// evaluations that touched one result. The `--trace` flag does not call
// it: runtime.Result carries no guard traces.
func DisplayGuardTrace(w io.Writer, label string, trace []value.GuardTraceEntry, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s:\n", label)
	if len(trace) == 0 {
		_, _ = fmt.Fprintf(w, "(no guards fired)\n")
		return
	}
	for i, entry := range trace {
		isLast := i == len(trace)-1
		renderGuardEntry(w, entry, isLast, useColor)
	}
}

func renderGuardEntry(w io.Writer, entry value.GuardTraceEntry, isLast, useColor bool) {
	prefix := "├─ "
	if isLast {
		prefix = "└─ "
	}

	name := Colorize(entry.GuardName, ColorBlue, useColor)
	outcome := colorForOutcome(entry.Outcome, useColor)
	_, _ = fmt.Fprintf(w, "%s%s %s\n", prefix, name, outcome)
	if entry.Reason != "" {
		_, _ = fmt.Fprintf(w, "   %s%s%s\n", Colorize("reason: ", ColorGray, useColor), entry.Reason, ColorReset)
	}
}

func colorForOutcome(outcome string, useColor bool) string {
	switch outcome {
	case "deny":
		return Colorize(outcome, ColorRed, useColor)
	case "retry":
		return Colorize(outcome, ColorYellow, useColor)
	default:
		return Colorize(outcome, ColorGreen, useColor)
	}
}

// Package guard implements the Guard/Taint Enforcer (spec.md §4.7,
// component C7): first-class rules registered via `/guard @name for
// <scope> = when [ … ]` that intercept operations against labeled
// values. Grounded on core/decorator's registry (Role-based
// registry, ordered-by-registration lookup) narrowed from "decorators
// with behavioral roles" to "rules scoped to a label or operation
// family".
package guard

import (
	"context"
	"sync"

	"github.com/mlld-lang/mlld-core/value"
)

// Scope is a label name ("secret", "untrusted", "pii", user-defined) or
// an operation family ("op:run", "op:show", "op:output", "op:exe").
type Scope string

// Outcome is what a guard (or a `when` action reached via an
// after-guard) decided for one value.
type Outcome int

const (
	Allow Outcome = iota
	AllowTransformed
	Deny
	Retry
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case AllowTransformed:
		return "allow"
	case Deny:
		return "deny"
	case Retry:
		return "retry"
	default:
		return "unknown"
	}
}

// OpDescriptor is `@mx.op` inside a guard body (spec.md §4.7): the
// operation being guarded.
type OpDescriptor struct {
	Type   string // "run", "show", "output", "exe"
	Name   string
	Target string
}

// Result is what evaluating one registered rule against one value
// produces.
type Result struct {
	Outcome     Outcome
	Replacement *value.StructuredValue // AllowTransformed
	Reason      string                 // Deny
	RetryHint   string                 // Retry
}

// Evaluator runs a guard's `when [...]` body for one input value, given
// the operation descriptor and the names of the rules active on the
// operation (spec.md §4.7). eval.Evaluator supplies
// this as a closure over its own WhenExpression evaluation so guard
// stays independent of eval (breaking what would otherwise be an
// import cycle: eval needs guard to enforce rules, so guard cannot
// import eval).
type Evaluator func(ctx context.Context, input *value.StructuredValue, op OpDescriptor, activeGuardNames []string) (Result, error)

// Rule is one registered `/guard` declaration.
type Rule struct {
	Name  string
	Scope Scope
	Eval  Evaluator
}

// Registry holds guard rules keyed by scope, in registration order
// (spec.md §4.7: "guards registered on the same scope fire in
// registration order").
type Registry struct {
	mu    sync.RWMutex
	rules map[Scope][]Rule
}

func NewRegistry() *Registry {
	return &Registry{rules: map[Scope][]Rule{}}
}

// Register adds a rule to its scope's ordered list.
func (r *Registry) Register(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.Scope] = append(r.rules[rule.Scope], rule)
}

// RulesFor returns the rules registered for scope, in registration order.
func (r *Registry) RulesFor(scope Scope) []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Rule(nil), r.rules[scope]...)
}

// AnyRules reports whether any of scopes has at least one registered
// rule, letting a caller distinguish "no guard exists for this label at
// all" from "a guard exists and explicitly allowed this".
func (r *Registry) AnyRules(scopes []Scope) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range scopes {
		if len(r.rules[s]) > 0 {
			return true
		}
	}
	return false
}

// ScopesFor returns every scope a labeled value or operation should be
// checked against: each of its labels, plus the operation family scope.
func ScopesFor(labels []Scope, opFamily Scope) []Scope {
	out := append([]Scope(nil), labels...)
	if opFamily != "" {
		out = append(out, opFamily)
	}
	return out
}

// Run evaluates every rule registered across scopes, in scope order and
// registration order within a scope, threading the value through each
// (spec.md §4.7 "Transform composition": a transform guard followed by
// a deny guard still denies — transforms never clear labels, so a
// later rule in the chain still sees the union of labels and can still
// fire). A Deny or Retry from any rule short-circuits the remaining
// rules and is returned immediately; the guard trace accumulated on the
// value records every rule that ran, including the one that stopped
// the chain.
func (r *Registry) Run(ctx context.Context, scopes []Scope, input *value.StructuredValue, op OpDescriptor) (*value.StructuredValue, *Result, error) {
	current := input
	var activeNames []string
	for _, s := range scopes {
		for _, rule := range r.RulesFor(s) {
			activeNames = append(activeNames, rule.Name)
		}
	}

	for _, s := range scopes {
		for _, rule := range r.RulesFor(s) {
			res, err := rule.Eval(ctx, current, op, activeNames)
			if err != nil {
				return current, nil, err
			}

			mx := current.Mx.Clone()
			entry := value.GuardTraceEntry{GuardName: rule.Name, Outcome: res.Outcome.String(), Reason: res.Reason}

			switch res.Outcome {
			case Allow:
				mx.GuardTrace = append(mx.GuardTrace, entry)
				current = value.New(current.Text, current.Data, mx)
			case AllowTransformed:
				// The replacement carries the ORIGINAL value's labels
				// unioned with its own: labels are monotone (spec.md §13
				// decision 4), so a transform can shrink the visible
				// text/data but never the taint.
				replMx := value.UnionMeta(mx, res.Replacement.Mx)
				replMx.GuardTrace = append(append([]value.GuardTraceEntry(nil), mx.GuardTrace...), entry)
				entry.Replacement = res.Replacement
				current = value.New(res.Replacement.Text, res.Replacement.Data, replMx)
			case Deny:
				mx.GuardTrace = append(mx.GuardTrace, entry)
				current = value.New(current.Text, current.Data, mx)
				return current, &res, nil
			case Retry:
				mx.GuardTrace = append(mx.GuardTrace, entry)
				current = value.New(current.Text, current.Data, mx)
				return current, &res, nil
			}
		}
	}
	return current, nil, nil
}

package guard_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlld-lang/mlld-core/guard"
	"github.com/mlld-lang/mlld-core/types"
	"github.com/mlld-lang/mlld-core/value"
)

func denyEval(reason string) guard.Evaluator {
	return func(ctx context.Context, input *value.StructuredValue, op guard.OpDescriptor, active []string) (guard.Result, error) {
		return guard.Result{Outcome: guard.Deny, Reason: reason}, nil
	}
}

func allowEval() guard.Evaluator {
	return func(ctx context.Context, input *value.StructuredValue, op guard.OpDescriptor, active []string) (guard.Result, error) {
		return guard.Result{Outcome: guard.Allow}, nil
	}
}

func transformEval(replacement string) guard.Evaluator {
	return func(ctx context.Context, input *value.StructuredValue, op guard.OpDescriptor, active []string) (guard.Result, error) {
		return guard.Result{
			Outcome:     guard.AllowTransformed,
			Replacement: value.FromText(replacement, value.Metadata{}),
		}, nil
	}
}

func TestRunAllowPassesValueThrough(t *testing.T) {
	reg := guard.NewRegistry()
	reg.Register(guard.Rule{Name: "g1", Scope: "op:show", Eval: allowEval()})

	in := value.FromText("hello", value.Metadata{})
	out, res, err := reg.Run(context.Background(), []guard.Scope{"op:show"}, in, guard.OpDescriptor{Type: "show"})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "hello", out.Text)
	require.Len(t, out.Mx.GuardTrace, 1)
	assert.Equal(t, "g1", out.Mx.GuardTrace[0].GuardName)
	assert.Equal(t, "allow", out.Mx.GuardTrace[0].Outcome)
}

func TestRunDenyStopsChainAndReturnsResult(t *testing.T) {
	reg := guard.NewRegistry()
	reg.Register(guard.Rule{Name: "blocker", Scope: "op:run", Eval: denyEval("untrusted input")})
	reg.Register(guard.Rule{Name: "never-runs", Scope: "op:run", Eval: allowEval()})

	in := value.FromText("rm -rf /", value.Metadata{})
	out, res, err := reg.Run(context.Background(), []guard.Scope{"op:run"}, in, guard.OpDescriptor{Type: "run"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, guard.Deny, res.Outcome)
	assert.Equal(t, "untrusted input", res.Reason)
	require.Len(t, out.Mx.GuardTrace, 1)
	assert.Equal(t, "blocker", out.Mx.GuardTrace[0].GuardName)
}

func TestRunAllowTransformedUnionsLabelsAndReplacesText(t *testing.T) {
	reg := guard.NewRegistry()
	reg.Register(guard.Rule{Name: "masker", Scope: "secret", Eval: transformEval("***")})

	labels := types.NewLabelSet(types.LabelSecret)
	in := value.FromText("sk-abc123", value.Metadata{Labels: labels})

	out, res, err := reg.Run(context.Background(), []guard.Scope{"secret"}, in, guard.OpDescriptor{Type: "show"})
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, "***", out.Text)
	assert.True(t, out.Mx.Labels.Has(types.LabelSecret), "transform must not strip the original label (taint is monotone)")
	require.Len(t, out.Mx.GuardTrace, 1)
	assert.Equal(t, "allow", out.Mx.GuardTrace[0].Outcome)
}

func TestRunFiresRulesInRegistrationOrderAcrossScopes(t *testing.T) {
	var order []string
	record := func(name string) guard.Evaluator {
		return func(ctx context.Context, input *value.StructuredValue, op guard.OpDescriptor, active []string) (guard.Result, error) {
			order = append(order, name)
			return guard.Result{Outcome: guard.Allow}, nil
		}
	}
	reg := guard.NewRegistry()
	reg.Register(guard.Rule{Name: "label-rule", Scope: "secret", Eval: record("label-rule")})
	reg.Register(guard.Rule{Name: "op-rule-1", Scope: "op:show", Eval: record("op-rule-1")})
	reg.Register(guard.Rule{Name: "op-rule-2", Scope: "op:show", Eval: record("op-rule-2")})

	scopes := guard.ScopesFor([]guard.Scope{"secret"}, "op:show")
	in := value.FromText("x", value.Metadata{})
	_, _, err := reg.Run(context.Background(), scopes, in, guard.OpDescriptor{Type: "show"})
	require.NoError(t, err)
	assert.Equal(t, []string{"label-rule", "op-rule-1", "op-rule-2"}, order)
}

func TestAnyRulesDistinguishesUnguardedScopes(t *testing.T) {
	reg := guard.NewRegistry()
	reg.Register(guard.Rule{Name: "g1", Scope: "op:show", Eval: allowEval()})

	assert.True(t, reg.AnyRules([]guard.Scope{"op:show"}))
	assert.True(t, reg.AnyRules([]guard.Scope{"secret", "op:show"}))
	assert.False(t, reg.AnyRules([]guard.Scope{"op:run"}))
	assert.False(t, reg.AnyRules(nil))
}

func TestScopesForAppendsOperationFamily(t *testing.T) {
	scopes := guard.ScopesFor([]guard.Scope{"secret", "pii"}, "op:run")
	assert.Equal(t, []guard.Scope{"secret", "pii", "op:run"}, scopes)

	noOp := guard.ScopesFor([]guard.Scope{"secret"}, "")
	assert.Equal(t, []guard.Scope{"secret"}, noOp)
}

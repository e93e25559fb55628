package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlld-lang/mlld-core/types"
)

func TestNewLabelSetDeduplicatesAndPreservesOrder(t *testing.T) {
	ls := types.NewLabelSet(types.LabelSecret, types.LabelPII, types.LabelSecret)
	assert.Equal(t, []types.DataLabel{types.LabelSecret, types.LabelPII}, ls.List())
	assert.True(t, ls.Has(types.LabelSecret))
	assert.True(t, ls.Has(types.LabelPII))
	assert.False(t, ls.Has(types.LabelUntrusted))
}

func TestEmptyLabelSet(t *testing.T) {
	var ls types.LabelSet
	assert.True(t, ls.Empty())
	ls.Add(types.LabelUntrusted)
	assert.False(t, ls.Empty())
}

func TestUnionNeverDropsALabelPresentInAnyInput(t *testing.T) {
	a := types.NewLabelSet(types.LabelSecret)
	b := types.NewLabelSet(types.LabelPII, types.LabelUntrusted)
	c := types.NewLabelSet()

	union := types.Union(a, b, c)
	assert.True(t, union.Has(types.LabelSecret))
	assert.True(t, union.Has(types.LabelPII))
	assert.True(t, union.Has(types.LabelUntrusted))
}

func TestCloneIsIndependent(t *testing.T) {
	orig := types.NewLabelSet(types.LabelSecret)
	clone := orig.Clone()
	clone.Add(types.LabelPII)

	assert.False(t, orig.Has(types.LabelPII), "mutating a clone must not affect the original set")
	assert.True(t, clone.Has(types.LabelPII))
}

package invariant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlld-lang/mlld-core/invariant"
)

func TestPreconditionPassesWhenTrue(t *testing.T) {
	assert.NotPanics(t, func() { invariant.Precondition(true, "should not fire") })
}

func TestPreconditionPanicsWhenFalse(t *testing.T) {
	assert.PanicsWithValue(t, "PRECONDITION VIOLATION: arg x must be positive", func() {
		invariant.Precondition(false, "arg %s must be positive", "x")
	})
}

func TestPostconditionPanicsWithFormattedMessage(t *testing.T) {
	assert.PanicsWithValue(t, "POSTCONDITION VIOLATION: result must be 2", func() {
		invariant.Postcondition(1+1 == 3, "result must be %d", 2)
	})
}

func TestInvariantPanicsOnViolation(t *testing.T) {
	assert.PanicsWithValue(t, "INVARIANT VIOLATION: labels must be monotone", func() {
		invariant.Invariant(false, "labels must be monotone")
	})
}

func TestNotNilPanicsOnNilValue(t *testing.T) {
	assert.Panics(t, func() { invariant.NotNil(nil, "resolver") })
}

func TestNotNilPassesOnNonNilValue(t *testing.T) {
	assert.NotPanics(t, func() { invariant.NotNil("x", "resolver") })
}

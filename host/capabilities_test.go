package host_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mlld-lang/mlld-core/host"
)

func TestSystemClockReturnsCurrentTime(t *testing.T) {
	before := time.Now()
	got := host.SystemClock{}.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

// fixedClock and fixedRandom exercise the injected-capability interfaces
// the way a test double for runtime wiring would, confirming the
// narrow-interface boundary is actually substitutable.
type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

type fixedRandom struct{ v float64 }

func (f fixedRandom) Gen() float64 { return f.v }

func TestClockAndRandomAreSubstitutable(t *testing.T) {
	var c host.Clock = fixedClock{t: time.Unix(0, 0)}
	var r host.Random = fixedRandom{v: 0.5}

	assert.Equal(t, time.Unix(0, 0), c.Now())
	assert.Equal(t, 0.5, r.Gen())
}

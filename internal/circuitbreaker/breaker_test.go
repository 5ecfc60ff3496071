package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, coolDown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)}
	b := New(threshold, coolDown)
	b.now = clock.Now
	return b, clock
}

var errDown = errors.New("connection refused")

func fail() error { return errDown }
func ok() error   { return nil }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, b.Execute("ml", fail), errDown)
	}
	assert.Equal(t, StateClosed, b.State("ml"))

	assert.ErrorIs(t, b.Execute("ml", fail), errDown)
	assert.Equal(t, StateOpen, b.State("ml"))

	called := false
	err := b.Execute("ml", func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	_ = b.Execute("ml", fail)
	_ = b.Execute("ml", fail)
	require.NoError(t, b.Execute("ml", ok))
	_ = b.Execute("ml", fail)
	_ = b.Execute("ml", fail)

	assert.Equal(t, StateClosed, b.State("ml"))
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)

	_ = b.Execute("ml", fail)
	_ = b.Execute("ml", fail)
	assert.False(t, b.Allow("ml"))

	clock.Advance(time.Minute)
	assert.True(t, b.Allow("ml"), "one probe after cool-down")
	assert.Equal(t, StateHalfOpen, b.State("ml"))
	assert.False(t, b.Allow("ml"), "only one probe at a time")

	b.Success("ml")
	assert.Equal(t, StateClosed, b.State("ml"))
	assert.True(t, b.Allow("ml"))
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)

	_ = b.Execute("ml", fail)
	_ = b.Execute("ml", fail)
	clock.Advance(time.Minute)

	assert.ErrorIs(t, b.Execute("ml", fail), errDown)
	assert.Equal(t, StateOpen, b.State("ml"))

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, b.Execute("ml", ok), ErrOpen, "cool-down restarts from the failed probe")
}

func TestBreaker_DependenciesAreIndependent(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	_ = b.Execute("ml", fail)
	assert.Equal(t, StateOpen, b.State("ml"))
	assert.Equal(t, StateClosed, b.State("postgres"))
	assert.NoError(t, b.Execute("postgres", ok))
}

func TestNew_Defaults(t *testing.T) {
	b := New(0, 0)
	assert.Equal(t, DefaultThreshold, b.threshold)
	assert.Equal(t, DefaultCoolDown, b.coolDown)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}

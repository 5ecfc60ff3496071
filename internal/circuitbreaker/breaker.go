// Package circuitbreaker guards calls to external collaborators. After a run
// of consecutive failures a dependency is considered down and calls fail fast
// until a cool-down passes; then a single probe decides whether it is back.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrOpen is returned by Execute while the dependency is considered down.
var ErrOpen = errors.New("circuit open")

// Defaults used when New is given non-positive values.
const (
	DefaultThreshold = 5
	DefaultCoolDown  = 30 * time.Second
)

// State is a dependency's breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "circuitbreaker",
		Name:      "state_transitions_total",
		Help:      "Breaker state changes by dependency and target state.",
	}, []string{"dependency", "to_state"})

	rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "riskwatch",
		Subsystem: "circuitbreaker",
		Name:      "rejected_total",
		Help:      "Calls refused without contacting the dependency.",
	}, []string{"dependency"})
)

func init() {
	prometheus.MustRegister(transitions, rejected)
}

type circuit struct {
	state    State
	failures int
	openedAt time.Time
}

// Breaker tracks one circuit per dependency name.
type Breaker struct {
	threshold int
	coolDown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

// New creates a breaker that opens after threshold consecutive failures and
// probes again after coolDown.
func New(threshold int, coolDown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if coolDown <= 0 {
		coolDown = DefaultCoolDown
	}
	return &Breaker{
		threshold: threshold,
		coolDown:  coolDown,
		now:       time.Now,
		circuits:  make(map[string]*circuit),
	}
}

// Allow reports whether a call to dep may proceed. An open circuit whose
// cool-down has elapsed lets exactly one probe through.
func (b *Breaker) Allow(dep string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[dep]
	if !ok {
		return true
	}
	switch c.state {
	case StateOpen:
		if b.now().Sub(c.openedAt) < b.coolDown {
			return false
		}
		b.move(dep, c, StateHalfOpen)
		return true
	case StateHalfOpen:
		return false
	}
	return true
}

// Success closes dep's circuit and clears its failure run.
func (b *Breaker) Success(dep string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[dep]; ok {
		c.failures = 0
		b.move(dep, c, StateClosed)
	}
}

// Failure counts a failed call. A failed probe reopens immediately.
func (b *Breaker) Failure(dep string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[dep]
	if !ok {
		c = &circuit{}
		b.circuits[dep] = c
	}
	c.failures++
	if c.state == StateHalfOpen || c.failures >= b.threshold {
		c.openedAt = b.now()
		b.move(dep, c, StateOpen)
	}
}

// Execute runs fn if dep's circuit allows it and records the outcome.
func (b *Breaker) Execute(dep string, fn func() error) error {
	if !b.Allow(dep) {
		rejected.WithLabelValues(dep).Inc()
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.Failure(dep)
		return err
	}
	b.Success(dep)
	return nil
}

// State returns dep's current state; unknown dependencies are closed.
func (b *Breaker) State(dep string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.circuits[dep]; ok {
		return c.state
	}
	return StateClosed
}

// caller holds b.mu
func (b *Breaker) move(dep string, c *circuit, to State) {
	if c.state == to {
		return
	}
	c.state = to
	transitions.WithLabelValues(dep, to.String()).Inc()
}

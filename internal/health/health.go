// Package health runs named subsystem checks (database, prediction service)
// for the /health/checks endpoint and readiness decisions.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultTimeout bounds one check when the registry has no explicit timeout.
const DefaultTimeout = 3 * time.Second

// Status is the result of one check.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
	Latency string `json:"latency"`
}

// Checker probes one subsystem. A nil error is healthy.
type Checker func(ctx context.Context) error

// Registry holds named checkers.
type Registry struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name     string
	check    Checker
	critical bool
}

// NewRegistry creates a registry whose checks each get timeout.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{timeout: timeout}
}

// Register adds a critical checker: its failure makes the service unhealthy.
func (r *Registry) Register(name string, check Checker) {
	r.add(name, check, true)
}

// RegisterOptional adds a checker that is reported but never fails the
// aggregate, for collaborators the core can run without.
func (r *Registry) RegisterOptional(name string, check Checker) {
	r.add(name, check, false)
}

func (r *Registry) add(name string, check Checker, critical bool) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check, critical: critical})
	r.mu.Unlock()
}

// CheckAll runs every checker concurrently and returns results in
// registration order.
func (r *Registry) CheckAll(ctx context.Context) (healthy bool, statuses []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	statuses = make([]Status, len(checkers))
	var wg sync.WaitGroup
	for i, nc := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = r.run(ctx, nc)
		}()
	}
	wg.Wait()

	healthy = true
	for i, nc := range checkers {
		if nc.critical && !statuses[i].Healthy {
			healthy = false
		}
	}
	return healthy, statuses
}

func (r *Registry) run(ctx context.Context, nc namedChecker) (st Status) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	st = Status{Name: nc.name}
	defer func() {
		if p := recover(); p != nil {
			st.Healthy = false
			st.Detail = fmt.Sprintf("check panicked: %v", p)
		}
		st.Latency = time.Since(start).Round(time.Microsecond).String()
	}()

	if err := nc.check(ctx); err != nil {
		st.Detail = err.Error()
		return st
	}
	st.Healthy = true
	return st
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ping adapts a Pinger to a Checker.
func Ping(p Pinger) Checker {
	return p.PingContext
}

package engagement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mbd888/riskwatch/internal/idgen"
	"github.com/mbd888/riskwatch/internal/logging"
	"github.com/mbd888/riskwatch/internal/offers"
)

// HandlePrefix starts every composition handle.
const HandlePrefix = "cmp_"

// ErrRegistryFull is returned by Open when MaxOpen compositions are held.
var ErrRegistryFull = errors.New("too many open compositions")

// Registry limits.
const (
	DefaultMaxOpen       = 1000
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSentTTL       = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Limits bound the registry. Unsent compositions untouched for IdleTTL and
// sent ones older than SentTTL are evicted.
type Limits struct {
	MaxOpen int
	IdleTTL time.Duration
	SentTTL time.Duration
}

// Composer is the registry of open compositions.
type Composer struct {
	customers CustomerLookup
	tracker   Tracker
	dueDate   string
	limits    Limits
	now       func() time.Time

	mu    sync.RWMutex
	comps map[string]*Composition
}

// NewComposer creates a registry whose compositions resolve customers
// through customers and send through tracker.
func NewComposer(customers CustomerLookup, tracker Tracker) *Composer {
	return &Composer{
		customers: customers,
		tracker:   tracker,
		dueDate:   offers.DefaultDueDateLabel,
		limits:    Limits{MaxOpen: DefaultMaxOpen, IdleTTL: DefaultIdleTTL, SentTTL: DefaultSentTTL},
		now:       func() time.Time { return time.Now().UTC() },
		comps:     make(map[string]*Composition),
	}
}

// WithDueDateLabel sets the text substituted for {dueDate}.
func (r *Composer) WithDueDateLabel(label string) *Composer {
	if label != "" {
		r.dueDate = label
	}
	return r
}

// WithLimits overrides the registry limits. Zero fields keep their current
// value.
func (r *Composer) WithLimits(l Limits) *Composer {
	if l.MaxOpen > 0 {
		r.limits.MaxOpen = l.MaxOpen
	}
	if l.IdleTTL > 0 {
		r.limits.IdleTTL = l.IdleTTL
	}
	if l.SentTTL > 0 {
		r.limits.SentTTL = l.SentTTL
	}
	return r
}

// Open starts an empty composition. When the registry is full it first
// evicts expired compositions and fails with ErrRegistryFull if none were.
func (r *Composer) Open(ctx context.Context) (*Composition, error) {
	now := r.now()
	c := &Composition{
		id:        idgen.WithPrefix(HandlePrefix),
		customers: r.customers,
		tracker:   r.tracker,
		dueDate:   r.dueDate,
		now:       r.now,
		createdAt: now,
		updatedAt: now,
	}

	r.mu.Lock()
	if len(r.comps) >= r.limits.MaxOpen {
		if n := r.sweepLocked(now); n > 0 {
			compositionsEvicted.Add(float64(n))
		}
	}
	if len(r.comps) >= r.limits.MaxOpen {
		open := len(r.comps)
		r.mu.Unlock()
		compositionsOpen.Set(float64(open))
		return nil, fmt.Errorf("%w: limit is %d", ErrRegistryFull, r.limits.MaxOpen)
	}
	r.comps[c.id] = c
	open := len(r.comps)
	r.mu.Unlock()

	compositionsOpen.Set(float64(open))
	logging.L(ctx).Debug("composition opened", "composition", c.id)
	return c, nil
}

// Sweep evicts expired compositions and returns how many were removed.
func (r *Composer) Sweep() int {
	r.mu.Lock()
	n := r.sweepLocked(r.now())
	open := len(r.comps)
	r.mu.Unlock()

	compositionsOpen.Set(float64(open))
	if n > 0 {
		compositionsEvicted.Add(float64(n))
	}
	return n
}

// sweepLocked drops expired compositions; caller holds r.mu. A composition
// whose lock is held is in use and is skipped.
func (r *Composer) sweepLocked(now time.Time) int {
	n := 0
	for id, c := range r.comps {
		if c.expired(now, r.limits.IdleTTL, r.limits.SentTTL) {
			delete(r.comps, id)
			n++
		}
	}
	return n
}

// Run sweeps the registry every interval until ctx is done.
func (r *Composer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logging.L(ctx).Debug("compositions evicted", "count", n)
			}
		}
	}
}

// Get returns an open composition.
func (r *Composer) Get(id string) (*Composition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.comps[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Discard forgets a composition. A sent composition's intervention is
// unaffected.
func (r *Composer) Discard(id string) error {
	r.mu.Lock()
	if _, ok := r.comps[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.comps, id)
	open := len(r.comps)
	r.mu.Unlock()

	compositionsOpen.Set(float64(open))
	return nil
}

// Len reports how many compositions are open.
func (r *Composer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.comps)
}

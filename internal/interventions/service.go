package interventions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/riskwatch/internal/logging"
	"github.com/mbd888/riskwatch/internal/offers"
	"github.com/mbd888/riskwatch/internal/pagination"
	"github.com/mbd888/riskwatch/internal/roster"
	"github.com/mbd888/riskwatch/internal/syncutil"
	"github.com/mbd888/riskwatch/internal/traces"
)

// Default and maximum page sizes for List.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Event kinds published on lifecycle changes.
const (
	EventCreated     = "intervention_created"
	EventTransitions = "intervention_transitioned"
)

// CustomerLookup checks that a customer exists.
type CustomerLookup interface {
	GetByID(ctx context.Context, id string) (*roster.Customer, error)
}

// EventPublisher fans lifecycle events out to live subscribers.
type EventPublisher interface {
	Publish(kind string, data any)
}

// Service implements the intervention lifecycle.
type Service struct {
	store     Store
	customers CustomerLookup
	events    EventPublisher
	locks     *syncutil.KeyLock
	now       func() time.Time
}

// NewService creates a new intervention service.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		locks: syncutil.NewKeyLock(),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// WithCustomers makes Create reject ids missing from the roster.
func (s *Service) WithCustomers(c CustomerLookup) *Service {
	s.customers = c
	return s
}

// WithEventPublisher adds a publisher for lifecycle events.
func (s *Service) WithEventPublisher(p EventPublisher) *Service {
	s.events = p
	return s
}

// Create records a new intervention in Pending.
func (s *Service) Create(ctx context.Context, req CreateRequest) (_ *Intervention, retErr error) {
	ctx, span := traces.StartSpan(ctx, "interventions.Create",
		traces.CustomerID(req.CustomerID),
		traces.OfferType(string(req.OfferType)),
		traces.Channel(string(req.Channel)),
	)
	defer func() { traces.End(span, retErr) }()

	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, fmt.Errorf("%w: customerId is required", ErrUnknownCustomer)
	}
	if _, err := offers.Get(req.OfferType); err != nil {
		return nil, err
	}
	if _, err := ParseChannel(string(req.Channel)); err != nil {
		return nil, err
	}
	if s.customers != nil {
		if _, err := s.customers.GetByID(ctx, req.CustomerID); err != nil {
			if errors.Is(err, roster.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownCustomer, req.CustomerID)
			}
			return nil, fmt.Errorf("failed to look up customer: %w", err)
		}
	}

	now := s.now()
	iv := &Intervention{
		CustomerID: req.CustomerID,
		OfferType:  req.OfferType,
		Channel:    req.Channel,
		Status:     StatusPending,
		Outcome:    OutcomePending,
		Message:    req.Message,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, iv); err != nil {
		return nil, fmt.Errorf("failed to create intervention: %w", err)
	}

	interventionsCreated.WithLabelValues(string(iv.Channel)).Inc()
	s.publish(EventCreated, iv)
	logging.L(ctx).Info("intervention created",
		"intervention", iv.ID,
		"customer", iv.CustomerID,
		"offer", iv.OfferType,
		"channel", iv.Channel,
	)
	return iv, nil
}

// Get returns one intervention.
func (s *Service) Get(ctx context.Context, id string) (*Intervention, error) {
	return s.store.Get(ctx, id)
}

// MarkSent records delivery. expectedVersion may be nil to skip the check.
func (s *Service) MarkSent(ctx context.Context, id string, expectedVersion *int) (*Intervention, error) {
	return s.Transition(ctx, id, StatusSent, expectedVersion)
}

// RecordResponse records the customer's answer to a sent offer.
func (s *Service) RecordResponse(ctx context.Context, id string, accepted bool, expectedVersion *int) (*Intervention, error) {
	to := StatusRejected
	if accepted {
		to = StatusAccepted
	}
	return s.Transition(ctx, id, to, expectedVersion)
}

// Complete closes out an intervention that has an outcome.
func (s *Service) Complete(ctx context.Context, id string, expectedVersion *int) (*Intervention, error) {
	return s.Transition(ctx, id, StatusCompleted, expectedVersion)
}

// Transition moves an intervention to status `to`. The check and the write
// happen under the intervention's lock; a non-nil expectedVersion must match
// the stored version.
func (s *Service) Transition(ctx context.Context, id string, to Status, expectedVersion *int) (_ *Intervention, retErr error) {
	ctx, span := traces.StartSpan(ctx, "interventions.Transition", traces.InterventionID(id))
	defer func() { traces.End(span, retErr) }()

	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	iv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != iv.Version {
		versionConflicts.Inc()
		return nil, fmt.Errorf("%w: have version %d, stored %d", ErrVersionConflict, *expectedVersion, iv.Version)
	}
	if !CanTransition(iv.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, iv.Status, to)
	}

	from := iv.Status
	iv.apply(to, s.now())
	if err := s.store.Update(ctx, iv, iv.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			versionConflicts.Inc()
		}
		return nil, err
	}

	interventionTransitions.WithLabelValues(string(to)).Inc()
	s.publish(EventTransitions, iv)
	logging.L(ctx).Info("intervention transitioned",
		"intervention", iv.ID,
		"from", from,
		"to", to,
		"version", iv.Version,
	)
	return iv, nil
}

// Page is one page of a List result.
type Page struct {
	Interventions []*Intervention `json:"interventions"`
	NextCursor    string          `json:"nextCursor,omitempty"`
	HasMore       bool            `json:"hasMore"`
}

// List returns interventions newest first. The filter's Limit is clamped to
// [1, MaxListLimit], defaulting to DefaultListLimit.
func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	limit := pagination.ClampLimit(filter.Limit, DefaultListLimit, MaxListLimit)
	filter.Limit = limit + 1

	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items, next, more := pagination.ComputePage(items, limit, func(iv *Intervention) (time.Time, string) {
		return iv.CreatedAt, iv.ID
	})
	if items == nil {
		items = []*Intervention{}
	}
	return &Page{Interventions: items, NextCursor: next, HasMore: more}, nil
}

// ListByCustomer returns every intervention for one customer, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]*Intervention, error) {
	return s.store.List(ctx, ListFilter{CustomerID: customerID})
}

// Summary tallies interventions. It does not mutate anything.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	c, err := s.store.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Total:                  c.Total,
		PendingCount:           c.Pending,
		AcceptedCount:          c.Accepted,
		RejectedCount:          c.Rejected,
		EstimatedRiskReduction: float64(c.Accepted) * RiskReductionPerAcceptance,
	}, nil
}

func (s *Service) publish(kind string, iv *Intervention) {
	if s.events == nil {
		return
	}
	s.events.Publish(kind, copyIntervention(iv))
}

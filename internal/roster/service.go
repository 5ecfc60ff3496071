package roster

import (
	"context"
	"fmt"

	"github.com/mbd888/riskwatch/internal/logging"
	"github.com/mbd888/riskwatch/internal/syncutil"
)

// EventRescored is published after a risk update is stored.
const EventRescored = "customer_rescored"

// EventPublisher receives roster change events.
type EventPublisher interface {
	Publish(kind string, data any)
}

// RescoredEvent is the payload of EventRescored.
type RescoredEvent struct {
	CustomerID   string   `json:"customerId"`
	RiskBefore   int      `json:"riskBefore"`
	RiskAfter    int      `json:"riskAfter"`
	Segment      Segment  `json:"segment"`
	RiskMomentum Momentum `json:"riskMomentum"`
}

// Service provides roster queries and the risk re-scoring entry point.
type Service struct {
	store  Store
	locks  *syncutil.KeyLock // per-customer read-modify-write on risk updates
	events EventPublisher
}

// NewService creates a new roster service.
func NewService(store Store) *Service {
	return &Service{store: store, locks: syncutil.NewKeyLock()}
}

// WithEventPublisher broadcasts rescoring events.
func (s *Service) WithEventPublisher(p EventPublisher) *Service {
	s.events = p
	return s
}

// GetAll returns the whole roster in roster order.
func (s *Service) GetAll(ctx context.Context) ([]*Customer, error) {
	return s.store.List(ctx)
}

// GetByID returns one customer.
func (s *Service) GetByID(ctx context.Context, id string) (*Customer, error) {
	return s.store.Get(ctx, id)
}

// First returns the customer at the head of the roster.
func (s *Service) First(ctx context.Context) (*Customer, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, ErrEmptyRoster
	}
	return all[0], nil
}

// FilterBySegment returns the customers in one risk band, in roster order.
func (s *Service) FilterBySegment(ctx context.Context, segment Segment) ([]*Customer, error) {
	switch segment {
	case SegmentHigh, SegmentMedium, SegmentLow:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSegment, segment)
	}
	return s.Search(ctx, Filter{Segment: segment})
}

// Search applies a name query and optional segment, preserving roster order.
func (s *Service) Search(ctx context.Context, f Filter) ([]*Customer, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*Customer, 0, len(all))
	for _, c := range all {
		if !f.matches(c) {
			continue
		}
		result = append(result, c)
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

// Insert validates and loads one customer.
func (s *Service) Insert(ctx context.Context, c *Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.Insert(ctx, c)
}

// Load inserts a batch of customers, stopping at the first failure.
func (s *Service) Load(ctx context.Context, customers []*Customer) error {
	for _, c := range customers {
		if err := s.Insert(ctx, c); err != nil {
			return fmt.Errorf("load %s: %w", c.ID, err)
		}
	}
	return nil
}

// ApplyRiskUpdate applies an external re-scoring event. The result is
// validated before it is stored, so a rejected update leaves the customer
// unchanged.
func (s *Service) ApplyRiskUpdate(ctx context.Context, id string, update RiskUpdate) (*Customer, error) {
	unlock, err := s.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := c.RiskScore

	update.applyTo(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store risk update: %w", err)
	}

	logging.L(ctx).Info("customer rescored",
		"customer", id,
		"risk_before", before,
		"risk_after", c.RiskScore,
		"momentum", c.RiskMomentum,
	)
	if s.events != nil {
		s.events.Publish(EventRescored, RescoredEvent{
			CustomerID:   c.ID,
			RiskBefore:   before,
			RiskAfter:    c.RiskScore,
			Segment:      c.Segment(),
			RiskMomentum: c.RiskMomentum,
		})
	}
	return c, nil
}

package portfolio

import (
	"context"

	"github.com/mbd888/riskwatch/internal/interventions"
	"github.com/mbd888/riskwatch/internal/logging"
	"github.com/mbd888/riskwatch/internal/roster"
)

// Overview is the dashboard read-out for a roster snapshot. On an empty
// roster AverageRiskScore is omitted and Degraded is set.
type Overview struct {
	TotalCustomers              int                    `json:"totalCustomers"`
	AverageRiskScore            *int                   `json:"averageRiskScore,omitempty"`
	Degraded                    bool                   `json:"degraded"`
	Segments                    SegmentCounts          `json:"segments"`
	Predicted30DayDelinquencies int                    `json:"predicted30DayDelinquencies"`
	AlertCount                  int                    `json:"alertCount"`
	Interventions               *interventions.Summary `json:"interventions,omitempty"`
}

// Compute builds an Overview from customers alone.
func Compute(customers []*roster.Customer) Overview {
	o := Overview{
		TotalCustomers:              len(customers),
		Segments:                    CountSegments(customers),
		Predicted30DayDelinquencies: Predicted30DayDelinquencies(customers),
		AlertCount:                  AlertCount(customers),
	}
	if avg, err := AverageRiskScore(customers); err == nil {
		o.AverageRiskScore = &avg
	} else {
		o.Degraded = true
	}
	return o
}

// RosterSource supplies the current roster snapshot.
type RosterSource interface {
	GetAll(ctx context.Context) ([]*roster.Customer, error)
}

// InterventionStats supplies intervention feedback for the overview.
type InterventionStats interface {
	Summary(ctx context.Context) (*interventions.Summary, error)
}

// Service computes overviews against live collaborators.
type Service struct {
	roster        RosterSource
	interventions InterventionStats
}

// NewService creates a new portfolio service. stats may be nil.
func NewService(r RosterSource, stats InterventionStats) *Service {
	return &Service{roster: r, interventions: stats}
}

// Snapshot returns the current roster.
func (s *Service) Snapshot(ctx context.Context) ([]*roster.Customer, error) {
	return s.roster.GetAll(ctx)
}

// Overview computes the current overview and publishes the portfolio gauges.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	customers, err := s.roster.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	o := Compute(customers)

	if s.interventions != nil {
		summary, err := s.interventions.Summary(ctx)
		if err != nil {
			return nil, err
		}
		o.Interventions = summary
	}

	observe(o)
	if o.Degraded {
		logging.L(ctx).Warn("portfolio overview degraded", "error", ErrEmptyPortfolio)
	}
	return &o, nil
}

// Segments returns the roster grouped by band, each group in roster order.
func (s *Service) Segments(ctx context.Context) (SegmentCounts, map[roster.Segment][]*roster.Customer, error) {
	customers, err := s.roster.GetAll(ctx)
	if err != nil {
		return SegmentCounts{}, nil, err
	}
	groups := map[roster.Segment][]*roster.Customer{
		roster.SegmentHigh:   {},
		roster.SegmentMedium: {},
		roster.SegmentLow:    {},
	}
	for _, c := range customers {
		groups[c.Segment()] = append(groups[c.Segment()], c)
	}
	return CountSegments(customers), groups, nil
}

// Simulate runs a shock scenario against the current roster without touching it.
func (s *Service) Simulate(ctx context.Context, scenario Scenario, intensity float64) (*SimulationResult, error) {
	customers, err := s.roster.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, ErrEmptyPortfolio
	}
	result, err := Simulate(customers, scenario, intensity)
	if err != nil {
		return nil, err
	}
	logging.L(ctx).Info("shock simulated",
		"scenario", scenario,
		"intensity", intensity,
		"alerts_before", result.Before.AlertCount,
		"alerts_after", result.After.AlertCount,
	)
	return result, nil
}

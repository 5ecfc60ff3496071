// Package interventions tracks retention offers sent to customers from
// creation through delivery and response to an outcome.
//
// Lifecycle:
//
//	Pending -> Sent -> Accepted | Rejected -> Completed
//
// Transitions only move forward. Sent stamps DateSent; Accepted and Rejected
// set Outcome. Every stored change bumps Version, which callers may pass back
// to reject updates made against a stale read.
package interventions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbd888/riskwatch/internal/offers"
	"github.com/mbd888/riskwatch/internal/pagination"
)

var (
	ErrNotFound          = errors.New("intervention not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrVersionConflict   = errors.New("intervention was modified concurrently")
	ErrInvalidChannel    = errors.New("invalid channel")
	ErrUnknownCustomer   = errors.New("unknown customer")
	ErrInvalidFilter     = errors.New("invalid filter")
)

// IDPrefix and IDWidth shape intervention ids: INT0001.
const (
	IDPrefix = "INT"
	IDWidth  = 4
)

// RiskReductionPerAcceptance is the placeholder risk-point reduction credited
// to each accepted offer. It is a fixed heuristic, not a modeled quantity.
const RiskReductionPerAcceptance = 12.0

// Status is the lifecycle state of an intervention.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusSent      Status = "Sent"
	StatusAccepted  Status = "Accepted"
	StatusRejected  Status = "Rejected"
	StatusCompleted Status = "Completed"
)

// Outcome is the customer's response.
type Outcome string

const (
	OutcomePending  Outcome = "Pending"
	OutcomeAccepted Outcome = "Accepted"
	OutcomeRejected Outcome = "Rejected"
)

// Channel is the medium an offer is delivered through.
type Channel string

const (
	ChannelSMS             Channel = "SMS"
	ChannelAppNotification Channel = "App Notification"
	ChannelEmail           Channel = "Email"
	ChannelCall            Channel = "Call"
	ChannelPortal          Channel = "Portal"
)

// Channels lists every delivery channel.
var Channels = []Channel{ChannelSMS, ChannelAppNotification, ChannelEmail, ChannelCall, ChannelPortal}

// ParseChannel validates a channel name.
func ParseChannel(s string) (Channel, error) {
	for _, c := range Channels {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChannel, s)
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusSent},
	StatusSent:     {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusCompleted},
	StatusRejected: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal forward step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusSent, StatusAccepted, StatusRejected, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, s)
}

// ParseOutcome validates an outcome name.
func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomePending, OutcomeAccepted, OutcomeRejected:
		return o, nil
	}
	return "", fmt.Errorf("%w: unknown outcome %q", ErrInvalidFilter, s)
}

// Intervention is one tracked retention action.
type Intervention struct {
	ID         string      `json:"id"`
	CustomerID string      `json:"customerId"`
	OfferType  offers.Type `json:"offerType"`
	Channel    Channel     `json:"channel"`
	Status     Status      `json:"status"`
	DateSent   *time.Time  `json:"dateSent,omitempty"`
	Outcome    Outcome     `json:"outcome"`
	Message    string      `json:"message,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	Version    int         `json:"version"`

	seq int64 // numeric part of ID; orders records created in the same instant
}

// apply moves iv to status `to`, stamping the fields the new state implies.
// The caller has already checked CanTransition.
func (iv *Intervention) apply(to Status, now time.Time) {
	iv.Status = to
	iv.UpdatedAt = now
	switch to {
	case StatusSent:
		t := now
		iv.DateSent = &t
	case StatusAccepted:
		iv.Outcome = OutcomeAccepted
	case StatusRejected:
		iv.Outcome = OutcomeRejected
	}
}

// CreateRequest carries the operator's choices for a new intervention.
type CreateRequest struct {
	CustomerID string      `json:"customerId" binding:"required"`
	OfferType  offers.Type `json:"offerType" binding:"required"`
	Channel    Channel     `json:"channel" binding:"required"`
	Message    string      `json:"message"`
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	Status     Status
	Outcome    Outcome
	CustomerID string
	Limit      int
	Cursor     *pagination.Cursor
}

func (f ListFilter) matches(iv *Intervention) bool {
	if f.Status != "" && iv.Status != f.Status {
		return false
	}
	if f.Outcome != "" && iv.Outcome != f.Outcome {
		return false
	}
	if f.CustomerID != "" && iv.CustomerID != f.CustomerID {
		return false
	}
	return true
}

// Counts are the raw tallies behind Summary.
type Counts struct {
	Total    int
	Pending  int // status Pending
	Accepted int // outcome Accepted
	Rejected int // outcome Rejected
}

// Summary is the portfolio-level intervention read-out.
type Summary struct {
	Total                  int     `json:"total"`
	PendingCount           int     `json:"pendingCount"`
	AcceptedCount          int     `json:"acceptedCount"`
	RejectedCount          int     `json:"rejectedCount"`
	EstimatedRiskReduction float64 `json:"estimatedRiskReduction"`
}

// Store persists interventions.
type Store interface {
	// Create assigns the next sequential ID and stores iv.
	Create(ctx context.Context, iv *Intervention) error
	Get(ctx context.Context, id string) (*Intervention, error)
	// Update stores iv if the stored version equals expectedVersion, then
	// sets iv.Version to expectedVersion+1.
	Update(ctx context.Context, iv *Intervention, expectedVersion int) error
	// List returns matches newest first, strictly after the filter's cursor.
	List(ctx context.Context, filter ListFilter) ([]*Intervention, error)
	Counts(ctx context.Context) (Counts, error)
}

// Package engagement assembles an outgoing retention message. A Composition
// binds one customer, one offer and one delivery channel, renders the offer
// text for that customer, checks channel constraints and, once everything is
// in place, hands the result to the intervention tracker exactly once.
//
// Compositions are in-memory working state addressed by handle; nothing here
// is persisted. Each composition has its own lock, so any number of operators
// can compose in parallel.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mbd888/riskwatch/internal/interventions"
	"github.com/mbd888/riskwatch/internal/logging"
	"github.com/mbd888/riskwatch/internal/offers"
	"github.com/mbd888/riskwatch/internal/roster"
	"github.com/mbd888/riskwatch/internal/traces"
)

var (
	ErrNotFound       = errors.New("composition not found")
	ErrNotReady       = errors.New("composition not ready")
	ErrMessageTooLong = errors.New("message too long for channel")

	// ErrAlreadySent also matches ErrNotReady.
	ErrAlreadySent = fmt.Errorf("%w: composition already sent", ErrNotReady)
)

// SMSMaxLength is the SMS limit in characters (runes).
const SMSMaxLength = 160

// MaxLength returns the character limit for ch and whether it has one.
func MaxLength(ch interventions.Channel) (int, bool) {
	if ch == interventions.ChannelSMS {
		return SMSMaxLength, true
	}
	return 0, false
}

// State is how far a composition has progressed.
type State string

const (
	StateNoCustomer       State = "NoCustomer"
	StateCustomerSelected State = "CustomerSelected"
	StateOfferSelected    State = "OfferSelected"
	StateChannelSelected  State = "ChannelSelected"
	StateReadyToSend      State = "ReadyToSend"
)

// CustomerLookup resolves a customer id against the roster.
type CustomerLookup interface {
	GetByID(ctx context.Context, id string) (*roster.Customer, error)
}

// Tracker records sent compositions as interventions.
type Tracker interface {
	Create(ctx context.Context, req interventions.CreateRequest) (*interventions.Intervention, error)
	MarkSent(ctx context.Context, id string, expectedVersion *int) (*interventions.Intervention, error)
}

// Composition is one in-progress message. All methods are safe for
// concurrent use; each call observes and mutates the composition atomically.
type Composition struct {
	id        string
	customers CustomerLookup
	tracker   Tracker
	dueDate   string
	now       func() time.Time

	mu        sync.Mutex
	customer  *roster.Customer
	offer     offers.Type
	channel   interventions.Channel
	message   string // operator edit; empty means the rendered template
	created   *interventions.Intervention
	sent      *interventions.Intervention
	createdAt time.Time
	updatedAt time.Time
}

// ID returns the composition handle.
func (c *Composition) ID() string { return c.id }

// State recomputes the composition's state from its current selections.
func (c *Composition) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// stateLocked walks the selection chain. With every selection made the
// composition is ReadyToSend unless the message breaks the channel limit,
// in which case it stays at ChannelSelected until edited.
func (c *Composition) stateLocked() State {
	switch {
	case c.customer == nil:
		return StateNoCustomer
	case c.offer == "":
		return StateCustomerSelected
	case c.channel == "":
		return StateOfferSelected
	}
	if err := c.validateLocked(); err != nil {
		return StateChannelSelected
	}
	return StateReadyToSend
}

// SelectCustomer binds the customer, replacing any previous choice.
func (c *Composition) SelectCustomer(ctx context.Context, customerID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent != nil {
		return ErrAlreadySent
	}

	cust, err := c.customers.GetByID(ctx, customerID)
	if err != nil {
		return err
	}
	c.customer = cust
	c.touch()
	return nil
}

// ClearCustomer drops the customer. Later selections are kept but the
// composition falls back to NoCustomer.
func (c *Composition) ClearCustomer() error {
	return c.mutate(func() error {
		c.customer = nil
		return nil
	})
}

// SelectOffer binds an offer type. A customer must be selected first.
func (c *Composition) SelectOffer(t offers.Type) error {
	return c.mutate(func() error {
		if c.customer == nil {
			return fmt.Errorf("%w: select a customer before an offer", ErrNotReady)
		}
		if _, err := offers.Get(t); err != nil {
			return err
		}
		c.offer = t
		return nil
	})
}

// ClearOffer drops the offer selection.
func (c *Composition) ClearOffer() error {
	return c.mutate(func() error {
		c.offer = ""
		return nil
	})
}

// SelectChannel binds the delivery channel. An offer must be selected first.
func (c *Composition) SelectChannel(ch interventions.Channel) error {
	return c.mutate(func() error {
		if c.offer == "" {
			return fmt.Errorf("%w: select an offer before a channel", ErrNotReady)
		}
		if _, err := interventions.ParseChannel(string(ch)); err != nil {
			return err
		}
		c.channel = ch
		return nil
	})
}

// ClearChannel drops the channel selection.
func (c *Composition) ClearChannel() error {
	return c.mutate(func() error {
		c.channel = ""
		return nil
	})
}

// EditMessage replaces the rendered text with operator-written text. An
// empty string restores the offer template.
func (c *Composition) EditMessage(text string) error {
	return c.mutate(func() error {
		c.message = text
		return nil
	})
}

func (c *Composition) mutate(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sent != nil {
		return ErrAlreadySent
	}
	if err := fn(); err != nil {
		return err
	}
	c.touch()
	return nil
}

// expired reports whether the composition has outlived its TTL. It does not
// wait for a composition that is being worked on.
func (c *Composition) expired(now time.Time, idleTTL, sentTTL time.Duration) bool {
	if !c.mu.TryLock() {
		return false
	}
	defer c.mu.Unlock()
	if c.sent != nil {
		return now.Sub(c.updatedAt) >= sentTTL
	}
	return now.Sub(c.updatedAt) >= idleTTL
}

func (c *Composition) touch() {
	c.updatedAt = c.now()
}

// RenderPreview returns the message as it would be sent. It needs a customer
// and an offer.
func (c *Composition) RenderPreview() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked()
}

func (c *Composition) renderLocked() (string, error) {
	if c.customer == nil || c.offer == "" {
		return "", fmt.Errorf("%w: preview needs a customer and an offer", ErrNotReady)
	}
	if c.message != "" {
		return c.message, nil
	}
	return offers.Render(c.offer, c.customer, c.dueDate)
}

// Validate checks the rendered message against the channel's limit.
func (c *Composition) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == "" {
		return fmt.Errorf("%w: no channel selected", ErrNotReady)
	}
	return c.validateLocked()
}

func (c *Composition) validateLocked() error {
	msg, err := c.renderLocked()
	if err != nil {
		return err
	}
	if limit, ok := MaxLength(c.channel); ok {
		if n := utf8.RuneCountInString(msg); n > limit {
			return fmt.Errorf("%w: %d characters, %s allows %d", ErrMessageTooLong, n, c.channel, limit)
		}
	}
	return nil
}

// Send records the composition as an intervention and marks it Sent. It
// succeeds at most once; later calls return ErrAlreadySent. If the tracker
// created the intervention but failed to mark it, a retry resumes from the
// created intervention instead of creating another.
func (c *Composition) Send(ctx context.Context) (_ *interventions.Intervention, retErr error) {
	ctx, span := traces.StartSpan(ctx, "engagement.Send", traces.CompositionID(c.id))
	defer func() { traces.End(span, retErr) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sent != nil {
		sendRejections.WithLabelValues("already_sent").Inc()
		return nil, ErrAlreadySent
	}
	switch state := c.stateLocked(); state {
	case StateReadyToSend:
	case StateChannelSelected:
		sendRejections.WithLabelValues("message_too_long").Inc()
		return nil, c.validateLocked()
	default:
		sendRejections.WithLabelValues("not_ready").Inc()
		return nil, fmt.Errorf("%w: state is %s", ErrNotReady, state)
	}

	msg, err := c.renderLocked()
	if err != nil {
		return nil, err
	}

	iv := c.created
	if iv == nil {
		iv, err = c.tracker.Create(ctx, interventions.CreateRequest{
			CustomerID: c.customer.ID,
			OfferType:  c.offer,
			Channel:    c.channel,
			Message:    msg,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create intervention: %w", err)
		}
		c.created = iv
	}

	sent, err := c.tracker.MarkSent(ctx, iv.ID, &iv.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to mark intervention %s sent: %w", iv.ID, err)
	}
	c.sent = sent
	c.touch()

	compositionsSent.WithLabelValues(string(c.channel)).Inc()
	logging.L(ctx).Info("composition sent",
		"composition", c.id,
		"intervention", sent.ID,
		"customer", sent.CustomerID,
		"offer", sent.OfferType,
		"channel", sent.Channel,
	)
	return sent, nil
}

// View is a point-in-time snapshot of a composition.
type View struct {
	ID             string                `json:"id"`
	State          State                 `json:"state"`
	CustomerID     string                `json:"customerId,omitempty"`
	CustomerName   string                `json:"customerName,omitempty"`
	OfferType      offers.Type           `json:"offerType,omitempty"`
	Channel        interventions.Channel `json:"channel,omitempty"`
	Message        string                `json:"message,omitempty"`
	Edited         bool                  `json:"edited"`
	Length         int                   `json:"length"`
	MaxLength      int                   `json:"maxLength,omitempty"`
	Problem        string                `json:"problem,omitempty"`
	InterventionID string                `json:"interventionId,omitempty"`
	Sent           bool                  `json:"sent"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// View snapshots the composition, including its preview when one can be
// rendered.
func (c *Composition) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		ID:        c.id,
		State:     c.stateLocked(),
		OfferType: c.offer,
		Channel:   c.channel,
		Edited:    c.message != "",
		Sent:      c.sent != nil,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
	if c.customer != nil {
		v.CustomerID = c.customer.ID
		v.CustomerName = c.customer.Name
	}
	if msg, err := c.renderLocked(); err == nil {
		v.Message = msg
		v.Length = utf8.RuneCountInString(msg)
	}
	if limit, ok := MaxLength(c.channel); ok {
		v.MaxLength = limit
	}
	if c.channel != "" {
		if err := c.validateLocked(); err != nil {
			v.Problem = err.Error()
		}
	}
	if c.sent != nil {
		v.InterventionID = c.sent.ID
	}
	return v
}

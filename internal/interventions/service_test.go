package interventions

import (
	"context"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/riskwatch/internal/offers"
	"github.com/mbd888/riskwatch/internal/roster"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type stubCustomers map[string]bool

func (s stubCustomers) GetByID(_ context.Context, id string) (*roster.Customer, error) {
	if !s[id] {
		return nil, roster.ErrNotFound
	}
	return &roster.Customer{ID: id}, nil
}

type recordedEvent struct {
	kind string
	iv   *Intervention
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(kind string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind: kind, iv: data.(*Intervention)})
}

func newTestService() *Service {
	return NewService(NewMemoryStore()).
		WithCustomers(stubCustomers{"CUST0001": true, "CUST0002": true})
}

func createSent(t *testing.T, svc *Service, customerID string) *Intervention {
	t.Helper()
	ctx := context.Background()
	iv, err := svc.Create(ctx, CreateRequest{CustomerID: customerID, OfferType: offers.GracePeriod, Channel: ChannelSMS})
	require.NoError(t, err)
	iv, err = svc.MarkSent(ctx, iv.ID, nil)
	require.NoError(t, err)
	return iv
}

func counterValue(t *testing.T, status Status) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := interventionTransitions.GetMetricWithLabelValues(string(status))
	require.NoError(t, err)
	require.NoError(t, c.Write(m))
	return m.Counter.GetValue()
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreate_StartsPending(t *testing.T) {
	svc := newTestService()

	iv, err := svc.Create(context.Background(), CreateRequest{
		CustomerID: "CUST0001",
		OfferType:  offers.SoftReminder,
		Channel:    ChannelEmail,
		Message:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "INT0001", iv.ID)
	assert.Equal(t, StatusPending, iv.Status)
	assert.Equal(t, OutcomePending, iv.Outcome)
	assert.Nil(t, iv.DateSent)
	assert.Equal(t, 0, iv.Version)

	second, err := svc.Create(context.Background(), CreateRequest{CustomerID: "CUST0002", OfferType: offers.SoftReminder, Channel: ChannelCall})
	require.NoError(t, err)
	assert.Equal(t, "INT0002", second.ID)
}

func TestCreate_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{CustomerID: "CUST0404", OfferType: offers.SoftReminder, Channel: ChannelSMS})
	assert.ErrorIs(t, err, ErrUnknownCustomer)

	_, err = svc.Create(ctx, CreateRequest{CustomerID: "CUST0001", OfferType: "Loyalty Bonus", Channel: ChannelSMS})
	assert.ErrorIs(t, err, offers.ErrUnknownOfferType)

	_, err = svc.Create(ctx, CreateRequest{CustomerID: "CUST0001", OfferType: offers.SoftReminder, Channel: "Pigeon"})
	assert.ErrorIs(t, err, ErrInvalidChannel)

	_, err = svc.Create(ctx, CreateRequest{OfferType: offers.SoftReminder, Channel: ChannelSMS})
	assert.ErrorIs(t, err, ErrUnknownCustomer)
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestLifecycle_HappyPath(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	iv := createSent(t, svc, "CUST0001")
	assert.Equal(t, StatusSent, iv.Status)
	require.NotNil(t, iv.DateSent)
	assert.Equal(t, 1, iv.Version)

	iv, err := svc.RecordResponse(ctx, iv.ID, true, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, iv.Status)
	assert.Equal(t, OutcomeAccepted, iv.Outcome)

	iv, err = svc.Complete(ctx, iv.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, iv.Status)
	assert.Equal(t, OutcomeAccepted, iv.Outcome)
	assert.Equal(t, 3, iv.Version)
}

func TestLifecycle_Rejected(t *testing.T) {
	svc := newTestService()

	iv := createSent(t, svc, "CUST0001")
	iv, err := svc.RecordResponse(context.Background(), iv.ID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, iv.Status)
	assert.Equal(t, OutcomeRejected, iv.Outcome)

	_, err = svc.Complete(context.Background(), iv.ID, nil)
	assert.NoError(t, err)
}

func TestTransition_PendingToAcceptedIsInvalid(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	iv, err := svc.Create(ctx, CreateRequest{CustomerID: "CUST0001", OfferType: offers.SoftReminder, Channel: ChannelSMS})
	require.NoError(t, err)

	_, err = svc.RecordResponse(ctx, iv.ID, true, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := svc.Get(ctx, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Equal(t, OutcomePending, stored.Outcome)
}

func TestTransition_NoBackwardOrRepeatedSteps(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	iv := createSent(t, svc, "CUST0001")
	_, err := svc.MarkSent(ctx, iv.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Transition(ctx, iv.ID, StatusPending, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Complete(ctx, iv.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.RecordResponse(ctx, iv.ID, false, nil)
	require.NoError(t, err)
	_, err = svc.RecordResponse(ctx, iv.ID, true, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_NotFound(t *testing.T) {
	_, err := newTestService().MarkSent(context.Background(), "INT0404", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanTransition_Table(t *testing.T) {
	all := []Status{StatusPending, StatusSent, StatusAccepted, StatusRejected, StatusCompleted}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusSent}:       true,
		{StatusSent, StatusAccepted}:      true,
		{StatusSent, StatusRejected}:      true,
		{StatusAccepted, StatusCompleted}: true,
		{StatusRejected, StatusCompleted}: true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

// ---------------------------------------------------------------------------
// Versioning
// ---------------------------------------------------------------------------

func TestTransition_StaleVersionRejected(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	iv, err := svc.Create(ctx, CreateRequest{CustomerID: "CUST0001", OfferType: offers.SoftReminder, Channel: ChannelSMS})
	require.NoError(t, err)

	stale := iv.Version
	_, err = svc.MarkSent(ctx, iv.ID, &stale)
	require.NoError(t, err)

	_, err = svc.RecordResponse(ctx, iv.ID, true, &stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	current := stale + 1
	_, err = svc.RecordResponse(ctx, iv.ID, true, &current)
	assert.NoError(t, err)
}

func TestMemoryStore_UpdateVersionGuard(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	iv := &Intervention{CustomerID: "CUST0001", Status: StatusPending, Outcome: OutcomePending}
	require.NoError(t, store.Create(ctx, iv))

	a, _ := store.Get(ctx, iv.ID)
	b, _ := store.Get(ctx, iv.ID)

	a.Status = StatusSent
	require.NoError(t, store.Update(ctx, a, a.Version))
	assert.Equal(t, 1, a.Version)

	b.Status = StatusSent
	assert.ErrorIs(t, store.Update(ctx, b, b.Version), ErrVersionConflict)
}

func TestTransition_ConcurrentResponsesOnlyOneWins(t *testing.T) {
	svc := newTestService()
	iv := createSent(t, svc, "CUST0001")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(accept bool) {
			defer wg.Done()
			if _, err := svc.RecordResponse(context.Background(), iv.ID, accept, nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i%2 == 0)
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func TestList_FiltersNewestFirst(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	a := createSent(t, svc, "CUST0001")
	b, err := svc.Create(ctx, CreateRequest{CustomerID: "CUST0002", OfferType: offers.SoftReminder, Channel: ChannelSMS})
	require.NoError(t, err)
	c := createSent(t, svc, "CUST0002")
	_, err = svc.RecordResponse(ctx, c.ID, true, nil)
	require.NoError(t, err)

	page, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, page.Interventions, 3)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{
		page.Interventions[0].ID, page.Interventions[1].ID, page.Interventions[2].ID,
	})

	page, err = svc.List(ctx, ListFilter{Status: StatusPending})
	require.NoError(t, err)
	require.Len(t, page.Interventions, 1)
	assert.Equal(t, b.ID, page.Interventions[0].ID)

	page, err = svc.List(ctx, ListFilter{Outcome: OutcomeAccepted})
	require.NoError(t, err)
	require.Len(t, page.Interventions, 1)
	assert.Equal(t, c.ID, page.Interventions[0].ID)

	byCustomer, err := svc.ListByCustomer(ctx, "CUST0002")
	require.NoError(t, err)
	assert.Len(t, byCustomer, 2)
}

func TestList_CursorPagination(t *testing.T) {
	svc := newTestService()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, CreateRequest{CustomerID: "CUST0001", OfferType: offers.SoftReminder, Channel: ChannelSMS})
		require.NoError(t, err)
	}

	var seen []string
	filter := ListFilter{Limit: 2}
	for {
		page, err := svc.List(ctx, filter)
		require.NoError(t, err)
		for _, iv := range page.Interventions {
			seen = append(seen, iv.ID)
		}
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		filter.Cursor = mustDecode(t, page.NextCursor)
	}
	assert.Equal(t, []string{"INT0005", "INT0004", "INT0003", "INT0002", "INT0001"}, seen)
}

func TestSummary(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	empty, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, *empty)

	_, err = svc.Create(ctx, CreateRequest{CustomerID: "CUST0001", OfferType: offers.SoftReminder, Channel: ChannelSMS})
	require.NoError(t, err)
	for _, accept := range []bool{true, true, false} {
		iv := createSent(t, svc, "CUST0002")
		_, err := svc.RecordResponse(ctx, iv.ID, accept, nil)
		require.NoError(t, err)
	}

	first, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Total)
	assert.Equal(t, 1, first.PendingCount)
	assert.Equal(t, 2, first.AcceptedCount)
	assert.Equal(t, 1, first.RejectedCount)
	assert.Equal(t, 24.0, first.EstimatedRiskReduction)

	second, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSummary_CompletedStillCountsAccepted(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	iv := createSent(t, svc, "CUST0001")
	_, err := svc.RecordResponse(ctx, iv.ID, true, nil)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, iv.ID, nil)
	require.NoError(t, err)

	s, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.AcceptedCount)
	assert.Equal(t, 12.0, s.EstimatedRiskReduction)
}

// ---------------------------------------------------------------------------
// Side effects
// ---------------------------------------------------------------------------

func TestEventsPublished(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestService().WithEventPublisher(pub)

	iv := createSent(t, svc, "CUST0001")

	require.Len(t, pub.events, 2)
	assert.Equal(t, EventCreated, pub.events[0].kind)
	assert.Equal(t, StatusPending, pub.events[0].iv.Status)
	assert.Equal(t, EventTransitions, pub.events[1].kind)
	assert.Equal(t, iv.ID, pub.events[1].iv.ID)
	assert.Equal(t, StatusSent, pub.events[1].iv.Status)
}

func TestTransitionCounter(t *testing.T) {
	before := counterValue(t, StatusSent)
	createSent(t, newTestService(), "CUST0001")
	assert.Equal(t, before+1, counterValue(t, StatusSent))
}

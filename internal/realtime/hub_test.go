package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

func encodedEvent(t *testing.T, h *Hub, kind string, data any) *Event {
	t.Helper()
	h.Publish(kind, data)
	select {
	case e := <-h.broadcast:
		return e
	default:
		t.Fatal("event was not queued")
		return nil
	}
}

// ---------------------------------------------------------------------------
// Subscription matching
// ---------------------------------------------------------------------------

func TestSubscription_EmptyMatchesEverything(t *testing.T) {
	e := &Event{Type: "intervention_created", customerID: "CUST0001"}
	assert.True(t, Subscription{}.matches(e))
}

func TestSubscription_EventTypeFilter(t *testing.T) {
	sub := Subscription{EventTypes: []string{"customer_rescored"}}
	assert.True(t, sub.matches(&Event{Type: "customer_rescored"}))
	assert.False(t, sub.matches(&Event{Type: "intervention_created"}))
}

func TestSubscription_CustomerFilter(t *testing.T) {
	sub := Subscription{CustomerIDs: []string{"CUST0002"}}
	assert.True(t, sub.matches(&Event{Type: "x", customerID: "CUST0002"}))
	assert.False(t, sub.matches(&Event{Type: "x", customerID: "CUST0003"}))
	assert.False(t, sub.matches(&Event{Type: "x"}), "events without a customer do not match a customer filter")
}

// ---------------------------------------------------------------------------
// Publish
// ---------------------------------------------------------------------------

func TestPublish_ExtractsCustomerID(t *testing.T) {
	h := testHub()
	e := encodedEvent(t, h, "intervention_created", map[string]any{"customerId": "CUST0007", "offerType": "Payment Holiday"})

	assert.Equal(t, "CUST0007", e.customerID)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(e.encoded, &wire))
	assert.Equal(t, "intervention_created", wire["type"])
	assert.Equal(t, "CUST0007", wire["data"].(map[string]any)["customerId"])
	assert.NotEmpty(t, wire["timestamp"])
}

func TestPublish_SnapshotsPayload(t *testing.T) {
	h := testHub()
	payload := map[string]any{"customerId": "CUST0001", "status": "Pending"}
	h.Publish("intervention_transitioned", payload)
	payload["status"] = "Accepted"

	e := <-h.broadcast
	assert.Contains(t, string(e.encoded), `"Pending"`)
}

func TestPublish_UnserializableIsDropped(t *testing.T) {
	h := testHub()
	h.Publish("bad", map[string]any{"fn": func() {}})
	assert.Empty(t, h.broadcast)
	assert.EqualValues(t, 0, h.Stats()["publishedEvents"])
}

func TestPublish_FullQueueCountsDrops(t *testing.T) {
	h := testHub()
	for range cap(h.broadcast) + 3 {
		h.Publish("customer_rescored", map[string]string{"customerId": "CUST0001"})
	}
	stats := h.Stats()
	assert.EqualValues(t, cap(h.broadcast), stats["publishedEvents"])
	assert.EqualValues(t, 3, stats["droppedEvents"])
}

// ---------------------------------------------------------------------------
// Fan-out
// ---------------------------------------------------------------------------

func TestFanOut_RespectsSubscriptions(t *testing.T) {
	h := testHub()
	all := &client{send: make(chan []byte, 4)}
	onlyTwo := &client{send: make(chan []byte, 4), sub: Subscription{CustomerIDs: []string{"CUST0002"}}}
	h.clients[all] = struct{}{}
	h.clients[onlyTwo] = struct{}{}

	h.fanOut(encodedEvent(t, h, "intervention_created", map[string]string{"customerId": "CUST0001"}))
	h.fanOut(encodedEvent(t, h, "intervention_created", map[string]string{"customerId": "CUST0002"}))

	assert.Len(t, all.send, 2)
	assert.Len(t, onlyTwo.send, 1)
}

func TestFanOut_DisconnectsSlowClient(t *testing.T) {
	h := testHub()
	slow := &client{send: make(chan []byte, 1)}
	h.clients[slow] = struct{}{}

	e := encodedEvent(t, h, "customer_rescored", map[string]string{"customerId": "CUST0001"})
	h.fanOut(e)
	h.fanOut(e)

	assert.NotContains(t, h.clients, slow)
	_, ok := <-slow.send
	assert.True(t, ok, "buffered message is still readable")
	_, ok = <-slow.send
	assert.False(t, ok, "send channel is closed")
}

// ---------------------------------------------------------------------------
// WebSocket end to end
// ---------------------------------------------------------------------------

func startHub(t *testing.T, origins ...string) (*Hub, *httptest.Server) {
	t.Helper()
	return serveHub(t, NewHub(slog.Default(), origins...))
}

func serveHub(t *testing.T, h *Hub) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-h.done
	})
	return h, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.Stats()["connectedClients"] == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DeliversPublishedEvents(t *testing.T) {
	h, srv := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	waitForClients(t, h, 1)

	h.Publish("intervention_created", map[string]string{"customerId": "CUST0003", "id": "INT0001"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "intervention_created", got.Type)
	assert.Equal(t, "INT0001", got.Data["id"])
}

func TestHub_UnregistersOnClose(t *testing.T) {
	h, srv := startHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	waitForClients(t, h, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, h, 0)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, srv := startHub(t, "https://ops.example.com")

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://ops.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	conn.Close()
}

func TestHub_RefusesWhenFull(t *testing.T) {
	h := testHub()
	h.maxClients = 0
	_, srv := serveHub(t, h)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_ContextCancellationClosesClients(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := &client{send: make(chan []byte, 1)}
	h.register <- c
	cancel()

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	_, ok := <-c.send
	assert.False(t, ok)
	assert.Equal(t, 0, h.Stats()["connectedClients"])
}

// Package predictions talks to the external ML scoring service. The service
// is opaque: its payload is fetched with a single GET and relayed unchanged.
package predictions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mbd888/riskwatch/internal/circuitbreaker"
	"github.com/mbd888/riskwatch/internal/logging"
	"github.com/mbd888/riskwatch/internal/traces"
)

// ErrPredictionUnavailable wraps every failure to obtain a payload.
var ErrPredictionUnavailable = errors.New("prediction service unavailable")

const (
	// DefaultTimeout bounds one fetch.
	DefaultTimeout = 10 * time.Second

	// breakerKey names the ML service in the circuit breaker.
	breakerKey = "prediction_service"

	// MaxPayloadSize caps the relayed body. Larger payloads fail the fetch
	// rather than being cut short.
	MaxPayloadSize = 5 * 1024 * 1024
)

// Payload is the collaborator's response, kept byte-for-byte.
type Payload struct {
	ContentType string
	Body        []byte
}

// Client fetches predictions from the ML service.
type Client struct {
	url     string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// NewClient creates a client for the prediction endpoint at url. A zero
// timeout uses DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// WithBreaker makes Fetch fail fast while the service is considered down.
func (c *Client) WithBreaker(b *circuitbreaker.Breaker) *Client {
	c.breaker = b
	return c
}

// URL returns the configured endpoint.
func (c *Client) URL() string { return c.url }

// Fetch performs one GET. Transport errors, non-2xx statuses and an open
// breaker all surface as ErrPredictionUnavailable with the detail attached.
// There is no retry.
func (c *Client) Fetch(ctx context.Context) (_ *Payload, retErr error) {
	ctx, span := traces.StartSpan(ctx, "predictions.Fetch")
	defer func() { traces.End(span, retErr) }()

	start := time.Now()
	var p *Payload
	call := func() error {
		var err error
		p, err = c.get(ctx)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(breakerKey, call)
	} else {
		err = call()
	}
	fetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		fetchesTotal.WithLabelValues("error").Inc()
		logging.L(ctx).Warn("prediction fetch failed", "url", c.url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPredictionUnavailable, err)
	}
	fetchesTotal.WithLabelValues("ok").Inc()
	return p, nil
}

func (c *Client) get(ctx context.Context) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("service returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > MaxPayloadSize {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxPayloadSize)
	}
	return &Payload{ContentType: resp.Header.Get("Content-Type"), Body: body}, nil
}

// Ping checks that the service answers with a 2xx status without reading
// the payload. It bypasses the breaker and the fetch metrics, so health
// polling never trips the breaker for real traffic.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrPredictionUnavailable, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPredictionUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: service returned HTTP %d", ErrPredictionUnavailable, resp.StatusCode)
	}
	return nil
}

package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the settings for reaching a riskwatch server.
type Config struct {
	APIURL     string // Base URL, e.g. "http://localhost:8080"
	OperatorID string // sent as X-Operator-ID on every call
}

// Client is a thin HTTP client for the riskwatch /v1 API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a client for cfg.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.OperatorID != "" {
		req.Header.Set("X-Operator-ID", c.cfg.OperatorID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}
	return json.RawMessage(respBody), nil
}

// ListCustomers calls GET /v1/customers.
func (c *Client) ListCustomers(ctx context.Context, segment, search string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if segment != "" {
		q.Set("segment", segment)
	}
	if search != "" {
		q.Set("q", search)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/customers", q, nil)
}

// GetCustomer calls GET /v1/customers/:id.
func (c *Client) GetCustomer(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(id), nil, nil)
}

// GetSignals calls GET /v1/customers/:id/signals.
func (c *Client) GetSignals(ctx context.Context, id string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(id)+"/signals", nil, nil)
}

// PortfolioOverview calls GET /v1/portfolio/overview.
func (c *Client) PortfolioOverview(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/portfolio/overview", nil, nil)
}

// Simulate calls POST /v1/portfolio/simulate.
func (c *Client) Simulate(ctx context.Context, scenario string, intensity float64) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/portfolio/simulate", nil, map[string]any{
		"scenario":  scenario,
		"intensity": intensity,
	})
}

// InterventionSummary calls GET /v1/interventions/summary.
func (c *Client) InterventionSummary(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/interventions/summary", nil, nil)
}

// ListInterventions calls GET /v1/interventions.
func (c *Client) ListInterventions(ctx context.Context, customerID string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if customerID != "" {
		q.Set("customerId", customerID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/interventions", q, nil)
}

// RenderOffer calls POST /v1/offers/render.
func (c *Client) RenderOffer(ctx context.Context, offerType, customerID string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/offers/render", nil, map[string]string{
		"offerType":  offerType,
		"customerId": customerID,
	})
}

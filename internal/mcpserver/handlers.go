package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// Response shapes, reduced to the fields the formatters print.

type customerInfo struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	LoanType       string `json:"loanType"`
	RiskScore      int    `json:"riskScore"`
	HealthScore    int    `json:"healthScore"`
	RiskMomentum   string `json:"riskMomentum"`
	MonthlyIncome  string `json:"monthlyIncome"`
	EMIAmount      string `json:"emiAmount"`
	SavingsBalance string `json:"savingsBalance"`
	MissedEMI6M    int    `json:"missedEMI6M"`
	SalaryDelay    int    `json:"salaryDelay"`
}

type signalsInfo struct {
	Segment       string   `json:"segment"`
	Alert         bool     `json:"alert"`
	AlertReasons  []string `json:"alertReasons"`
	Advisory      []string `json:"advisory"`
	StressSignals struct {
		SalaryDelayed     bool `json:"salaryDelayed"`
		FailedAutoDebits  bool `json:"failedAutoDebits"`
		HighDiscretionary bool `json:"highDiscretionary"`
	} `json:"stressSignals"`
}

type interventionInfo struct {
	ID        string `json:"id"`
	OfferType string `json:"offerType"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	Outcome   string `json:"outcome"`
}

type summaryInfo struct {
	Total                  int     `json:"total"`
	PendingCount           int     `json:"pendingCount"`
	AcceptedCount          int     `json:"acceptedCount"`
	RejectedCount          int     `json:"rejectedCount"`
	EstimatedRiskReduction float64 `json:"estimatedRiskReduction"`
}

type overviewInfo struct {
	TotalCustomers   int  `json:"totalCustomers"`
	AverageRiskScore *int `json:"averageRiskScore"`
	Segments         struct {
		High   int `json:"high"`
		Medium int `json:"medium"`
		Low    int `json:"low"`
	} `json:"segments"`
	Predicted30DayDelinquencies int          `json:"predicted30DayDelinquencies"`
	AlertCount                  int          `json:"alertCount"`
	Interventions               *summaryInfo `json:"interventions"`
}

// HandleListCustomers lists the roster.
func (h *Handlers) HandleListCustomers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	raw, err := h.client.ListCustomers(ctx, req.GetString("segment", ""), req.GetString("query", ""), limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list customers: %v", err)), nil
	}

	var resp struct {
		Customers []customerInfo `json:"customers"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse customers: %v", err)), nil
	}
	if len(resp.Customers) == 0 {
		return mcp.NewToolResultText("No customers found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d customer(s), highest risk first:\n\n", len(resp.Customers))
	for i, c := range resp.Customers {
		fmt.Fprintf(&sb, "%d. %s (%s) risk %d, %s, %s\n", i+1, c.Name, c.ID, c.RiskScore, c.RiskMomentum, c.LoanType)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetCustomer combines the profile, signals and intervention history.
func (h *Handlers) HandleGetCustomer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("customer_id", "")
	if id == "" {
		return mcp.NewToolResultError("customer_id is required"), nil
	}

	raw, err := h.client.GetCustomer(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get customer: %v", err)), nil
	}
	var cust struct {
		Customer customerInfo `json:"customer"`
	}
	if err := json.Unmarshal(raw, &cust); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse customer: %v", err)), nil
	}
	c := cust.Customer

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s)\n", c.Name, c.ID)
	fmt.Fprintf(&sb, "  Loan: %s, EMI %s of income %s\n", c.LoanType, c.EMIAmount, c.MonthlyIncome)
	fmt.Fprintf(&sb, "  Risk score: %d (%s), health %d\n", c.RiskScore, c.RiskMomentum, c.HealthScore)
	fmt.Fprintf(&sb, "  Savings: %s, missed EMIs (6m): %d, salary delay: %d days\n", c.SavingsBalance, c.MissedEMI6M, c.SalaryDelay)

	if raw, err := h.client.GetSignals(ctx, id); err == nil {
		var resp struct {
			Signals signalsInfo `json:"signals"`
		}
		if json.Unmarshal(raw, &resp) == nil {
			writeSignals(&sb, resp.Signals)
		}
	}

	if raw, err := h.client.ListInterventions(ctx, id, 10); err == nil {
		var resp struct {
			Interventions []interventionInfo `json:"interventions"`
		}
		if json.Unmarshal(raw, &resp) == nil && len(resp.Interventions) > 0 {
			sb.WriteString("\nInterventions:\n")
			for _, iv := range resp.Interventions {
				fmt.Fprintf(&sb, "  %s %s via %s: %s", iv.ID, iv.OfferType, iv.Channel, iv.Status)
				if iv.Outcome != "" {
					fmt.Fprintf(&sb, " (%s)", iv.Outcome)
				}
				sb.WriteString("\n")
			}
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func writeSignals(sb *strings.Builder, s signalsInfo) {
	fmt.Fprintf(sb, "\nSegment: %s\n", s.Segment)
	if s.Alert {
		fmt.Fprintf(sb, "ALERT: %s\n", strings.Join(s.AlertReasons, "; "))
	}
	var stress []string
	if s.StressSignals.SalaryDelayed {
		stress = append(stress, "salary delayed")
	}
	if s.StressSignals.FailedAutoDebits {
		stress = append(stress, "failed auto-debits")
	}
	if s.StressSignals.HighDiscretionary {
		stress = append(stress, "high discretionary spend")
	}
	if len(stress) > 0 {
		fmt.Fprintf(sb, "Stress: %s\n", strings.Join(stress, ", "))
	}
	for _, line := range s.Advisory {
		fmt.Fprintf(sb, "Advisory: %s\n", line)
	}
}

// HandlePortfolioOverview summarizes the portfolio.
func (h *Handlers) HandlePortfolioOverview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.PortfolioOverview(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get overview: %v", err)), nil
	}
	var resp struct {
		Overview overviewInfo `json:"overview"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse overview: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString("Portfolio Overview:\n")
	writeOverview(&sb, resp.Overview)
	if iv := resp.Overview.Interventions; iv != nil {
		sb.WriteString("\n")
		writeSummary(&sb, *iv)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func writeOverview(sb *strings.Builder, o overviewInfo) {
	fmt.Fprintf(sb, "  Customers: %d\n", o.TotalCustomers)
	if o.AverageRiskScore != nil {
		fmt.Fprintf(sb, "  Average risk: %d\n", *o.AverageRiskScore)
	} else {
		sb.WriteString("  Average risk: n/a\n")
	}
	fmt.Fprintf(sb, "  Segments: %d high, %d medium, %d low\n", o.Segments.High, o.Segments.Medium, o.Segments.Low)
	fmt.Fprintf(sb, "  Predicted 30-day delinquencies: %d\n", o.Predicted30DayDelinquencies)
	fmt.Fprintf(sb, "  Alerts: %d\n", o.AlertCount)
}

// HandleSimulateScenario runs a stress scenario and reports the delta.
func (h *Handlers) HandleSimulateScenario(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenario := req.GetString("scenario", "")
	if scenario == "" {
		return mcp.NewToolResultError("scenario is required"), nil
	}
	intensity := req.GetFloat("intensity", 1)

	raw, err := h.client.Simulate(ctx, scenario, intensity)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Simulation failed: %v", err)), nil
	}
	var resp struct {
		Simulation struct {
			Before overviewInfo `json:"before"`
			After  overviewInfo `json:"after"`
		} `json:"simulation"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse simulation: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Scenario %s at intensity %g\n\nBefore:\n", scenario, intensity)
	writeOverview(&sb, resp.Simulation.Before)
	sb.WriteString("\nAfter:\n")
	writeOverview(&sb, resp.Simulation.After)
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleInterventionSummary tallies interventions.
func (h *Handlers) HandleInterventionSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.InterventionSummary(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get summary: %v", err)), nil
	}
	var resp struct {
		Summary summaryInfo `json:"summary"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse summary: %v", err)), nil
	}
	var sb strings.Builder
	writeSummary(&sb, resp.Summary)
	return mcp.NewToolResultText(sb.String()), nil
}

func writeSummary(sb *strings.Builder, s summaryInfo) {
	sb.WriteString("Interventions:\n")
	fmt.Fprintf(sb, "  Total: %d\n", s.Total)
	fmt.Fprintf(sb, "  Pending: %d, accepted: %d, rejected: %d\n", s.PendingCount, s.AcceptedCount, s.RejectedCount)
	fmt.Fprintf(sb, "  Estimated risk reduction: %.1f\n", s.EstimatedRiskReduction)
}

// HandleRenderOffer previews an offer message.
func (h *Handlers) HandleRenderOffer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("customer_id", "")
	offer := req.GetString("offer_type", "")
	if id == "" || offer == "" {
		return mcp.NewToolResultError("customer_id and offer_type are required"), nil
	}

	raw, err := h.client.RenderOffer(ctx, offer, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to render offer: %v", err)), nil
	}
	var resp struct {
		Message string `json:"message"`
		Length  int    `json:"length"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s for %s (%d chars):\n\n%s", offer, id, resp.Length, resp.Message)), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

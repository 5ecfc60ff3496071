package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Descriptions are what the LLM reads to pick a tool.

var ToolListCustomers = mcp.NewTool("list_customers",
	mcp.WithDescription(
		"List borrowers on the early-warning roster, highest risk first. "+
			"Each entry shows risk score, segment, momentum and loan type."),
	mcp.WithString("segment",
		mcp.Description("Restrict to one risk band"),
		mcp.Enum("High", "Medium", "Low")),
	mcp.WithString("query",
		mcp.Description("Case-insensitive substring of the customer name")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of customers to return (default 20)")),
)

var ToolGetCustomer = mcp.NewTool("get_customer",
	mcp.WithDescription(
		"Get one borrower's full profile with early-warning signals: alert flag and reasons, "+
			"stress indicators, advisory lines and any interventions already made."),
	mcp.WithString("customer_id",
		mcp.Required(),
		mcp.Description("Customer ID, e.g. 'CUST0007'")),
)

var ToolPortfolioOverview = mcp.NewTool("portfolio_overview",
	mcp.WithDescription(
		"Summarize the whole portfolio: customer count, average risk, segment split, "+
			"predicted 30-day delinquencies, alert count and intervention totals."),
)

var ToolSimulateScenario = mcp.NewTool("simulate_scenario",
	mcp.WithDescription(
		"Run a what-if macro stress scenario over a copy of the roster and compare the "+
			"portfolio before and after. Nothing is changed."),
	mcp.WithString("scenario",
		mcp.Required(),
		mcp.Enum("inflation", "recession", "interest_rate_spike", "liquidity_crisis")),
	mcp.WithNumber("intensity",
		mcp.Description("Shock multiplier in (0, 3], default 1")),
)

var ToolInterventionSummary = mcp.NewTool("intervention_summary",
	mcp.WithDescription(
		"Tally interventions by status and outcome with the estimated risk reduction."),
)

var ToolRenderOffer = mcp.NewTool("render_offer",
	mcp.WithDescription(
		"Preview the outreach message a given offer would produce for a customer. "+
			"Does not send anything."),
	mcp.WithString("customer_id",
		mcp.Required(),
		mcp.Description("Customer ID, e.g. 'CUST0007'")),
	mcp.WithString("offer_type",
		mcp.Required(),
		mcp.Enum("Soft Reminder", "Grace Period", "EMI Restructure", "Payment Holiday", "Balance Transfer", "Personal Visit")),
)

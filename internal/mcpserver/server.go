package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing the riskwatch read tools.
func NewMCPServer(cfg Config, version string) *server.MCPServer {
	s := server.NewMCPServer("riskwatch", version)
	h := NewHandlers(NewClient(cfg))

	s.AddTool(ToolListCustomers, h.HandleListCustomers)
	s.AddTool(ToolGetCustomer, h.HandleGetCustomer)
	s.AddTool(ToolPortfolioOverview, h.HandlePortfolioOverview)
	s.AddTool(ToolSimulateScenario, h.HandleSimulateScenario)
	s.AddTool(ToolInterventionSummary, h.HandleInterventionSummary)
	s.AddTool(ToolRenderOffer, h.HandleRenderOffer)

	return s
}

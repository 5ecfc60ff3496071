// Command mcp exposes riskwatch's read-side tools to LLM clients over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/riskwatch/internal/mcpserver"
)

var version = "dev"

func main() {
	cfg := mcpserver.Config{
		APIURL:     envOrDefault("RISKWATCH_API_URL", "http://localhost:8080"),
		OperatorID: envOrDefault("RISKWATCH_OPERATOR_ID", "mcp"),
	}

	s := mcpserver.NewMCPServer(cfg, version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

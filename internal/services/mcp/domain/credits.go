package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	creditsapp "github.com/studycommons/studycommons/internal/services/credits/app"
)

// ReputationBalanceInput represents the MCP tool input for a balance lookup.
type ReputationBalanceInput struct {
	UserID string `json:"user_id" jsonschema:"user identifier"`
}

// ReputationBalanceResult represents the MCP tool output for a balance lookup.
type ReputationBalanceResult struct {
	UserID    string `json:"user_id" jsonschema:"user identifier"`
	Total     int    `json:"total" jsonschema:"current reputation balance"`
	UpdatedAt string `json:"updated_at,omitempty" jsonschema:"RFC3339 timestamp of the last balance change"`
}

// ReputationBalanceTool defines the MCP tool schema for balance lookups.
func ReputationBalanceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "reputation_balance",
		Description: "Read a user's current reputation credit balance",
	}
}

// ReputationBalanceHandler reads one user's balance. Users with no ledger
// activity report a zero balance.
func ReputationBalanceHandler(credits *creditsapp.Service) mcp.ToolHandlerFor[ReputationBalanceInput, ReputationBalanceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReputationBalanceInput) (*mcp.CallToolResult, ReputationBalanceResult, error) {
		balance, err := credits.GetBalance(ctx, input.UserID)
		if err != nil {
			return nil, ReputationBalanceResult{}, fmt.Errorf("get balance: %w", err)
		}

		result := ReputationBalanceResult{UserID: balance.UserID, Total: balance.Total}
		if !balance.UpdatedAt.IsZero() {
			result.UpdatedAt = balance.UpdatedAt.UTC().Format(time.RFC3339)
		}
		return nil, result, nil
	}
}

package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	governanceapp "github.com/studycommons/studycommons/internal/services/governance/app"
	"github.com/studycommons/studycommons/internal/services/governance/proposal"
)

// ProposalSummary is the MCP view of one governance proposal.
type ProposalSummary struct {
	ID           string `json:"id" jsonschema:"proposal identifier"`
	AuthorUserID string `json:"author_user_id" jsonschema:"authoring user identifier"`
	Title        string `json:"title" jsonschema:"proposal title"`
	Body         string `json:"body,omitempty" jsonschema:"proposal body"`
	Status       string `json:"status" jsonschema:"draft, open, or closed"`
	OpensAt      string `json:"opens_at,omitempty" jsonschema:"RFC3339 voting window start"`
	ClosesAt     string `json:"closes_at,omitempty" jsonschema:"RFC3339 voting window end"`
	YesCount     int    `json:"yes_count" jsonschema:"yes ballot count"`
	NoCount      int    `json:"no_count" jsonschema:"no ballot count"`
	AbstainCount int    `json:"abstain_count" jsonschema:"abstain ballot count"`
	Outcome      string `json:"outcome" jsonschema:"pending, passed, or rejected"`
	CreatedAt    string `json:"created_at" jsonschema:"RFC3339 creation timestamp"`
}

func proposalToSummary(p proposal.Proposal) ProposalSummary {
	summary := ProposalSummary{
		ID:           p.ID,
		AuthorUserID: p.AuthorUserID,
		Title:        p.Title,
		Body:         p.Body,
		Status:       string(p.Status),
		YesCount:     p.YesCount,
		NoCount:      p.NoCount,
		AbstainCount: p.AbstainCount,
		Outcome:      string(p.Outcome),
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !p.OpensAt.IsZero() {
		summary.OpensAt = p.OpensAt.UTC().Format(time.RFC3339)
	}
	if !p.ClosesAt.IsZero() {
		summary.ClosesAt = p.ClosesAt.UTC().Format(time.RFC3339)
	}
	return summary
}

// ListProposalsInput represents the MCP tool input for listing proposals.
type ListProposalsInput struct {
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over status, outcome, author_user_id, and created_at"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum results per page"`
	PageToken string `json:"page_token,omitempty" jsonschema:"opaque continuation token"`
}

// ListProposalsResult represents the MCP tool output for listing proposals.
type ListProposalsResult struct {
	Proposals     []ProposalSummary `json:"proposals" jsonschema:"matching proposals, newest first"`
	NextPageToken string            `json:"next_page_token,omitempty" jsonschema:"token for the next page, empty on the last page"`
}

// ListProposalsTool defines the MCP tool schema for listing proposals.
func ListProposalsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_proposals",
		Description: "List governance proposals with an optional AIP-160 filter expression and pagination",
	}
}

// ListProposalsHandler executes a proposal listing.
func ListProposalsHandler(governance *governanceapp.Service) mcp.ToolHandlerFor[ListProposalsInput, ListProposalsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ListProposalsInput) (*mcp.CallToolResult, ListProposalsResult, error) {
		page, err := governance.List(ctx, governanceapp.ListInput{
			Filter:    input.Filter,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, ListProposalsResult{}, fmt.Errorf("list proposals: %w", err)
		}

		result := ListProposalsResult{
			Proposals:     make([]ProposalSummary, 0, len(page.Proposals)),
			NextPageToken: page.NextPageToken,
		}
		for _, p := range page.Proposals {
			result.Proposals = append(result.Proposals, proposalToSummary(p))
		}
		return nil, result, nil
	}
}

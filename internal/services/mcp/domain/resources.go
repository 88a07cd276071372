package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	libraryapp "github.com/studycommons/studycommons/internal/services/library/app"
	"github.com/studycommons/studycommons/internal/services/library/resource"
)

// ResourceSummary is the MCP view of one library resource.
type ResourceSummary struct {
	ID          string   `json:"id" jsonschema:"resource identifier"`
	OwnerUserID string   `json:"owner_user_id" jsonschema:"submitting user identifier"`
	Title       string   `json:"title" jsonschema:"resource title"`
	URL         string   `json:"url" jsonschema:"resource link"`
	Description string   `json:"description,omitempty" jsonschema:"free-form description"`
	Subject     string   `json:"subject,omitempty" jsonschema:"subject classification"`
	Level       string   `json:"level,omitempty" jsonschema:"difficulty level"`
	Tags        []string `json:"tags,omitempty" jsonschema:"normalized tags"`
	Status      string   `json:"status" jsonschema:"lifecycle status"`
	Score       int      `json:"score" jsonschema:"net vote score"`
	UpCount     int      `json:"up_count" jsonschema:"upvote count"`
	DownCount   int      `json:"down_count" jsonschema:"downvote count"`
	CreatedAt   string   `json:"created_at" jsonschema:"RFC3339 submission timestamp"`
}

func resourceToSummary(r resource.Resource) ResourceSummary {
	return ResourceSummary{
		ID:          r.ID,
		OwnerUserID: r.OwnerUserID,
		Title:       r.Title,
		URL:         r.URL,
		Description: r.Description,
		Subject:     r.Subject,
		Level:       string(r.Level),
		Tags:        r.Tags,
		Status:      string(r.Status),
		Score:       r.Score,
		UpCount:     r.UpCount,
		DownCount:   r.DownCount,
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SearchResourcesInput represents the MCP tool input for searching resources.
type SearchResourcesInput struct {
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over subject, level, status, owner_user_id, score, and created_at"`
	OrderBy   string `json:"order_by,omitempty" jsonschema:"sort order: created_at desc (default) or score desc"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum results per page"`
	PageToken string `json:"page_token,omitempty" jsonschema:"opaque continuation token"`
}

// SearchResourcesResult represents the MCP tool output for searching resources.
type SearchResourcesResult struct {
	Resources     []ResourceSummary `json:"resources" jsonschema:"matching resources"`
	NextPageToken string            `json:"next_page_token,omitempty" jsonschema:"token for the next page, empty on the last page"`
}

// SearchResourcesTool defines the MCP tool schema for searching resources.
func SearchResourcesTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "search_resources",
		Description: "Search the community library with an optional AIP-160 filter expression and pagination",
	}
}

// SearchResourcesHandler executes a library search.
func SearchResourcesHandler(library *libraryapp.Service) mcp.ToolHandlerFor[SearchResourcesInput, SearchResourcesResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SearchResourcesInput) (*mcp.CallToolResult, SearchResourcesResult, error) {
		page, err := library.List(ctx, libraryapp.ListInput{
			Filter:    input.Filter,
			OrderBy:   input.OrderBy,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, SearchResourcesResult{}, fmt.Errorf("search resources: %w", err)
		}

		result := SearchResourcesResult{
			Resources:     make([]ResourceSummary, 0, len(page.Resources)),
			NextPageToken: page.NextPageToken,
		}
		for _, r := range page.Resources {
			result.Resources = append(result.Resources, resourceToSummary(r))
		}
		return nil, result, nil
	}
}

// GetResourceInput represents the MCP tool input for reading one resource.
type GetResourceInput struct {
	ResourceID string `json:"resource_id" jsonschema:"resource identifier"`
}

// GetResourceTool defines the MCP tool schema for reading one resource.
func GetResourceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_resource",
		Description: "Read one library resource by its identifier",
	}
}

// GetResourceHandler reads one resource.
func GetResourceHandler(library *libraryapp.Service) mcp.ToolHandlerFor[GetResourceInput, ResourceSummary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input GetResourceInput) (*mcp.CallToolResult, ResourceSummary, error) {
		found, err := library.Get(ctx, input.ResourceID)
		if err != nil {
			return nil, ResourceSummary{}, fmt.Errorf("get resource: %w", err)
		}
		return nil, resourceToSummary(found), nil
	}
}

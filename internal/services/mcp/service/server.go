// Package service assembles the MCP server and its stdio transport.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/studycommons/studycommons/internal/platform/branding"
	creditsapp "github.com/studycommons/studycommons/internal/services/credits/app"
	governanceapp "github.com/studycommons/studycommons/internal/services/governance/app"
	libraryapp "github.com/studycommons/studycommons/internal/services/library/app"
	"github.com/studycommons/studycommons/internal/services/mcp/domain"
)

const (
	serverName = branding.AppName
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Deps holds the domain services backing the MCP tools.
type Deps struct {
	Library    *libraryapp.Service
	Governance *governanceapp.Service
	Credits    *creditsapp.Service
}

// Server hosts the read-only MCP tool surface.
type Server struct {
	mcpServer *mcp.Server
}

// New registers every tool and returns the assembled server.
func New(deps Deps) (*Server, error) {
	if deps.Library == nil || deps.Governance == nil || deps.Credits == nil {
		return nil, fmt.Errorf("mcp server requires library, governance, and credits services")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(mcpServer, domain.SearchResourcesTool(), domain.SearchResourcesHandler(deps.Library))
	mcp.AddTool(mcpServer, domain.GetResourceTool(), domain.GetResourceHandler(deps.Library))
	mcp.AddTool(mcpServer, domain.ListProposalsTool(), domain.ListProposalsHandler(deps.Governance))
	mcp.AddTool(mcpServer, domain.ReputationBalanceTool(), domain.ReputationBalanceHandler(deps.Credits))

	return &Server{mcpServer: mcpServer}, nil
}

// Serve runs the MCP server on stdio until the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeTransport(ctx, &mcp.StdioTransport{})
}

// ServeTransport runs the MCP server on the provided transport. A canceled
// context is a clean shutdown, not an error.
func (s *Server) ServeTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("mcp server is not configured")
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

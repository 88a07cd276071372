// Package mcp parses MCP command flags and serves the agent tool surface
// over stdio.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/studycommons/studycommons/internal/platform/cmd"
	"github.com/studycommons/studycommons/internal/server"
	"github.com/studycommons/studycommons/internal/services/accounts/token"
	governanceapp "github.com/studycommons/studycommons/internal/services/governance/app"
	mcpservice "github.com/studycommons/studycommons/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	DataDir string `env:"STUDY_COMMONS_DATA_DIR" envDefault:"data"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the sqlite databases")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the read-only MCP tools over stdio. The tool surface never
// mints tokens, so the accounts token config stays empty.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		services, closeStores, err := server.OpenServices(cfg.DataDir, token.Config{}, governanceapp.Config{})
		if err != nil {
			return err
		}
		defer func() { _ = closeStores() }()

		srv, err := mcpservice.New(mcpservice.Deps{
			Library:    services.Library,
			Governance: services.Governance,
			Credits:    services.Credits,
		})
		if err != nil {
			return err
		}
		return srv.Serve(ctx)
	})
}

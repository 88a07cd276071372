// Package seed parses seed command flags and writes demo fixtures into the
// local databases.
package seed

import (
	"context"
	"flag"
	"io"

	entrypoint "github.com/studycommons/studycommons/internal/platform/cmd"
	"github.com/studycommons/studycommons/internal/server"
	"github.com/studycommons/studycommons/internal/services/accounts/token"
	governanceapp "github.com/studycommons/studycommons/internal/services/governance/app"
	"github.com/studycommons/studycommons/internal/tools/seed"
)

// Config holds seed command configuration.
type Config struct {
	DataDir string `env:"STUDY_COMMONS_DATA_DIR" envDefault:"data"`
	Verbose bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the sqlite databases")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil || !cfg.Verbose {
		out = io.Discard
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		services, closeStores, err := server.OpenServices(cfg.DataDir, token.Config{}, governanceapp.Config{})
		if err != nil {
			return err
		}
		defer func() { _ = closeStores() }()
		return seed.Run(ctx, services, out)
	})
}

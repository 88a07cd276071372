// Package server parses server command flags and starts the HTTP API.
package server

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/studycommons/studycommons/internal/platform/cmd"
	"github.com/studycommons/studycommons/internal/server"
	"github.com/studycommons/studycommons/internal/services/accounts/token"
	governanceapp "github.com/studycommons/studycommons/internal/services/governance/app"
)

// Config holds server command configuration.
type Config struct {
	Port          int    `env:"STUDY_COMMONS_SERVER_PORT" envDefault:"8080"`
	Addr          string `env:"STUDY_COMMONS_SERVER_ADDR"`
	DataDir       string `env:"STUDY_COMMONS_DATA_DIR" envDefault:"data"`
	SecureCookies bool   `env:"STUDY_COMMONS_SECURE_COOKIES" envDefault:"false"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The API server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The API server listen address (overrides -port)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory holding the sqlite databases")
	fs.BoolVar(&cfg.SecureCookies, "secure-cookies", cfg.SecureCookies, "Mark session cookies Secure")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// HTTPAddr resolves the listen address, preferring Addr over Port.
func (c Config) HTTPAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return fmt.Sprintf(":%d", c.Port)
}

// Run starts the HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	tokens, err := token.LoadConfigFromEnv(time.Now)
	if err != nil {
		return err
	}
	governanceCfg, err := governanceapp.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		srv, err := server.New(server.Config{
			HTTPAddr:      cfg.HTTPAddr(),
			DataDir:       cfg.DataDir,
			SecureCookies: cfg.SecureCookies,
			Tokens:        tokens,
			Governance:    governanceCfg,
		})
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx)
	})
}

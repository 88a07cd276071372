// Package server composes the domain services behind one HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/studycommons/studycommons/internal/platform/timeouts"
	accountsrest "github.com/studycommons/studycommons/internal/services/accounts/api/rest"
	accountsapp "github.com/studycommons/studycommons/internal/services/accounts/app"
	accountssqlite "github.com/studycommons/studycommons/internal/services/accounts/storage/sqlite"
	"github.com/studycommons/studycommons/internal/services/accounts/token"
	adminrest "github.com/studycommons/studycommons/internal/services/admin/api/rest"
	adminapp "github.com/studycommons/studycommons/internal/services/admin/app"
	creditsrest "github.com/studycommons/studycommons/internal/services/credits/api/rest"
	creditsapp "github.com/studycommons/studycommons/internal/services/credits/app"
	"github.com/studycommons/studycommons/internal/services/credits/rules"
	creditssqlite "github.com/studycommons/studycommons/internal/services/credits/storage/sqlite"
	governancerest "github.com/studycommons/studycommons/internal/services/governance/api/rest"
	governanceapp "github.com/studycommons/studycommons/internal/services/governance/app"
	governancesqlite "github.com/studycommons/studycommons/internal/services/governance/storage/sqlite"
	libraryrest "github.com/studycommons/studycommons/internal/services/library/api/rest"
	libraryapp "github.com/studycommons/studycommons/internal/services/library/app"
	librarysqlite "github.com/studycommons/studycommons/internal/services/library/storage/sqlite"
	notificationsrest "github.com/studycommons/studycommons/internal/services/notifications/api/rest"
	notificationsapp "github.com/studycommons/studycommons/internal/services/notifications/app"
	notificationssqlite "github.com/studycommons/studycommons/internal/services/notifications/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config defines startup inputs for the API server.
type Config struct {
	HTTPAddr      string
	DataDir       string
	SecureCookies bool
	Tokens        token.Config
	Governance    governanceapp.Config
}

// Services exposes the composed domain services for commands that share the
// server wiring, such as seeding.
type Services struct {
	Accounts      *accountsapp.Service
	Library       *libraryapp.Service
	Credits       *creditsapp.Service
	Governance    *governanceapp.Service
	Notifications *notificationsapp.Service
	Admin         *adminapp.Service
}

// Server hosts the composed HTTP surface and its storage handles.
type Server struct {
	httpServer *http.Server
	services   Services
	closers    []func() error
}

// OpenServices opens every store under dataDir and wires the domain
// services together. The returned close function releases the stores.
func OpenServices(dataDir string, tokens token.Config, governanceCfg governanceapp.Config) (Services, func() error, error) {
	dataDir = strings.TrimSpace(dataDir)
	if dataDir == "" {
		return Services{}, nil, errors.New("data directory is required")
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	accountsStore, err := accountssqlite.Open(filepath.Join(dataDir, "accounts.db"))
	if err != nil {
		return Services{}, nil, fmt.Errorf("open accounts store: %w", err)
	}
	closers = append(closers, accountsStore.Close)

	libraryStore, err := librarysqlite.Open(filepath.Join(dataDir, "library.db"))
	if err != nil {
		_ = closeAll()
		return Services{}, nil, fmt.Errorf("open library store: %w", err)
	}
	closers = append(closers, libraryStore.Close)

	creditsStore, err := creditssqlite.Open(filepath.Join(dataDir, "credits.db"))
	if err != nil {
		_ = closeAll()
		return Services{}, nil, fmt.Errorf("open credits store: %w", err)
	}
	closers = append(closers, creditsStore.Close)

	governanceStore, err := governancesqlite.Open(filepath.Join(dataDir, "governance.db"))
	if err != nil {
		_ = closeAll()
		return Services{}, nil, fmt.Errorf("open governance store: %w", err)
	}
	closers = append(closers, governanceStore.Close)

	notificationsStore, err := notificationssqlite.Open(filepath.Join(dataDir, "notifications.db"))
	if err != nil {
		_ = closeAll()
		return Services{}, nil, fmt.Errorf("open notifications store: %w", err)
	}
	closers = append(closers, notificationsStore.Close)

	engine, err := rules.NewEngineFromEnv()
	if err != nil {
		_ = closeAll()
		return Services{}, nil, fmt.Errorf("load credit rules: %w", err)
	}

	accounts := accountsapp.New(accountsStore, tokens)
	credits := creditsapp.New(creditsStore, engine)
	notifications := notificationsapp.New(notificationsStore)
	library := libraryapp.New(libraryStore, credits, notifications)
	governance := governanceapp.New(governanceStore, credits, notifications, governanceCfg)
	admin := adminapp.New(accounts, library, governance)

	return Services{
		Accounts:      accounts,
		Library:       library,
		Credits:       credits,
		Governance:    governance,
		Notifications: notifications,
		Admin:         admin,
	}, closeAll, nil
}

// NewHandler mounts every service's routes behind the accounts identity
// middleware and request tracing.
func NewHandler(services Services, secureCookies bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	accountsHandler := accountsrest.New(services.Accounts)
	accountsHandler.SecureCookies = secureCookies
	accountsHandler.Register(mux)
	libraryrest.New(services.Library).Register(mux)
	creditsrest.New(services.Credits).Register(mux)
	governancerest.New(services.Governance).Register(mux)
	notificationsrest.New(services.Notifications).Register(mux)
	adminrest.New(services.Admin).Register(mux)

	return otelhttp.NewHandler(accountsHandler.Middleware(mux), "http.server")
}

// New opens storage, wires the services, and constructs the API server.
func New(cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}

	services, closeStores, err := OpenServices(cfg.DataDir, cfg.Tokens, cfg.Governance)
	if err != nil {
		return nil, err
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           NewHandler(services, cfg.SecureCookies),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		services: services,
		closers:  []func() error{closeStores},
	}, nil
}

// Services returns the composed domain services.
func (s *Server) Services() Services {
	return s.services
}

// ListenAndServe serves HTTP traffic until context cancellation or server
// failure, then releases storage.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return errors.New("server is not configured")
	}
	defer s.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

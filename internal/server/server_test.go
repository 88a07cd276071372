package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/studycommons/studycommons/internal/services/accounts/token"
	governanceapp "github.com/studycommons/studycommons/internal/services/governance/app"
	libraryapp "github.com/studycommons/studycommons/internal/services/library/app"
)

func newTestServices(t *testing.T) Services {
	t.Helper()
	services, closeStores, err := OpenServices(t.TempDir(), token.Config{}, governanceapp.Config{})
	if err != nil {
		t.Fatalf("open services: %v", err)
	}
	t.Cleanup(func() { _ = closeStores() })
	return services
}

func TestOpenServicesRequiresDataDir(t *testing.T) {
	if _, _, err := OpenServices("  ", token.Config{}, governanceapp.Config{}); err == nil {
		t.Fatal("expected error for empty data directory")
	}
}

func TestNewRequiresHTTPAddr(t *testing.T) {
	if _, err := New(Config{DataDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for empty http address")
	}
}

func TestHandlerServesHealthCheck(t *testing.T) {
	server := httptest.NewServer(NewHandler(newTestServices(t), false))
	defer server.Close()

	resp, err := http.Get(server.URL + "/up")
	if err != nil {
		t.Fatalf("get /up: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestHandlerWiresServicesTogether(t *testing.T) {
	services := newTestServices(t)
	server := httptest.NewServer(NewHandler(services, false))
	defer server.Close()

	created, err := services.Library.Submit(context.Background(), libraryapp.SubmitInput{
		OwnerUserID: "user-1",
		Title:       "Stoichiometry Basics",
		URL:         "https://example.com/stoichiometry",
		Subject:     "chemistry",
		Level:       "intro",
	})
	if err != nil {
		t.Fatalf("submit resource: %v", err)
	}

	resp, err := http.Get(server.URL + "/api/v1/resources")
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var listBody struct {
		Resources []struct {
			ID string `json:"id"`
		} `json:"resources"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listBody.Resources) != 1 || listBody.Resources[0].ID != created.ID {
		t.Fatalf("resources = %+v", listBody.Resources)
	}

	// Submitting through the composed services awards publication credits.
	balanceResp, err := http.Get(server.URL + "/api/v1/users/user-1/credits/balance")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	defer balanceResp.Body.Close()
	if balanceResp.StatusCode != http.StatusOK {
		t.Fatalf("balance status = %d, want %d", balanceResp.StatusCode, http.StatusOK)
	}
	var balanceBody struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(balanceResp.Body).Decode(&balanceBody); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balanceBody.Total != 5 {
		t.Fatalf("total = %d, want 5", balanceBody.Total)
	}
}

func TestListenAndServeStopsOnContextCancel(t *testing.T) {
	server, err := New(Config{HTTPAddr: "127.0.0.1:0", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

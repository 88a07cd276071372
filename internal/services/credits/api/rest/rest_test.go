package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/credits/app"
	"github.com/studycommons/studycommons/internal/services/credits/rules"
	"github.com/studycommons/studycommons/internal/services/credits/storage/sqlite"
)

func userHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := r.Header.Get("X-Test-User"); userID != "" {
			r = r.WithContext(requestctx.WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Service) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "credits.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	svc := app.New(store, engine)

	mux := http.NewServeMux()
	New(svc).Register(mux)
	server := httptest.NewServer(userHeaderMiddleware(mux))
	t.Cleanup(server.Close)
	return server, svc
}

func get(t *testing.T, url, userID string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestGetBalanceRequiresAuthentication(t *testing.T) {
	server, _ := newTestServer(t)

	resp := get(t, server.URL+"/api/v1/credits/balance", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestGetBalanceAndEntries(t *testing.T) {
	server, svc := newTestServer(t)
	ctx := context.Background()

	if err := svc.Award(ctx, "user-1", "resource_published", "res-1"); err != nil {
		t.Fatalf("award: %v", err)
	}
	if err := svc.Award(ctx, "user-1", "vote_received", "res-1"); err != nil {
		t.Fatalf("award: %v", err)
	}

	resp := get(t, server.URL+"/api/v1/credits/balance", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance status = %d, want 200", resp.StatusCode)
	}
	var balance balancePayload
	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Total != 7 {
		t.Fatalf("total = %d, want 7", balance.Total)
	}

	resp = get(t, server.URL+"/api/v1/credits/entries", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("entries status = %d, want 200", resp.StatusCode)
	}
	var entries listEntriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries.Entries))
	}
}

func TestGetUserBalanceIsPublic(t *testing.T) {
	server, svc := newTestServer(t)

	if err := svc.Award(context.Background(), "user-1", "resource_published", "res-1"); err != nil {
		t.Fatalf("award: %v", err)
	}

	resp := get(t, server.URL+"/api/v1/users/user-1/credits/balance", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var balance balancePayload
	if err := json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if balance.Total != 5 {
		t.Fatalf("total = %d, want 5", balance.Total)
	}
}

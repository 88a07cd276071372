package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/studycommons/studycommons/internal/platform/requestctx"
	creditstorage "github.com/studycommons/studycommons/internal/services/credits/storage"
	"github.com/studycommons/studycommons/internal/services/governance/app"
	"github.com/studycommons/studycommons/internal/services/governance/storage/sqlite"
)

type fakeCredits struct {
	mu       sync.Mutex
	balances map[string]int
}

func (f *fakeCredits) Award(context.Context, string, string, string) error { return nil }

func (f *fakeCredits) GetBalance(_ context.Context, userID string) (creditstorage.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return creditstorage.Balance{UserID: userID, Total: f.balances[userID]}, nil
}

func identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if userID := r.Header.Get("X-Test-User"); userID != "" {
			ctx = requestctx.WithUserID(ctx, userID)
		}
		if role := r.Header.Get("X-Test-Role"); role != "" {
			ctx = requestctx.WithRole(ctx, role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeCredits) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "governance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	credits := &fakeCredits{balances: map[string]int{}}
	svc := app.New(store, credits, nil, app.Config{})

	mux := http.NewServeMux()
	New(svc).Register(mux)
	server := httptest.NewServer(identityMiddleware(mux))
	t.Cleanup(server.Close)
	return server, credits
}

func doJSON(t *testing.T, method, url, userID string, body any) *http.Response {
	t.Helper()
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createProposal(t *testing.T, server *httptest.Server, author string) proposalPayload {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/proposals", author, map[string]any{
		"title": "Adopt a code of conduct",
		"body":  "We should adopt one.",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var created proposalPayload
	decodeBody(t, resp, &created)
	return created
}

func openVoting(t *testing.T, server *httptest.Server, author, proposalID string) proposalPayload {
	t.Helper()
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/proposals/"+proposalID+"/open", author, map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("open status = %d, want 200", resp.StatusCode)
	}
	var opened proposalPayload
	decodeBody(t, resp, &opened)
	return opened
}

func TestCreateProposalRequiresAuthentication(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/proposals", "", map[string]any{"title": "X"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestProposalLifecycle(t *testing.T) {
	server, credits := newTestServer(t)
	credits.balances["voter-1"] = 50

	created := createProposal(t, server, "author-1")
	if created.Status != "draft" || created.Outcome != "pending" {
		t.Fatalf("created = %+v", created)
	}

	opened := openVoting(t, server, "author-1", created.ID)
	if opened.Status != "open" || opened.ClosesAt == "" {
		t.Fatalf("opened = %+v", opened)
	}

	resp := doJSON(t, http.MethodPut, server.URL+"/api/v1/proposals/"+created.ID+"/ballot", "voter-1", map[string]any{
		"choice": "yes",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ballot status = %d, want 200", resp.StatusCode)
	}
	var ballot ballotPayload
	decodeBody(t, resp, &ballot)
	if ballot.Choice != "yes" || ballot.YesCount != 1 {
		t.Fatalf("ballot = %+v", ballot)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/proposals/"+created.ID+"/close", "author-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close status = %d, want 200", resp.StatusCode)
	}
	var closed proposalPayload
	decodeBody(t, resp, &closed)
	if closed.Status != "closed" || closed.Outcome != "rejected" {
		t.Fatalf("closed = %+v", closed)
	}
}

func TestCastBallotInsufficientReputation(t *testing.T) {
	server, credits := newTestServer(t)
	credits.balances["poor"] = 1

	created := createProposal(t, server, "author-1")
	openVoting(t, server, "author-1", created.ID)

	resp := doJSON(t, http.MethodPut, server.URL+"/api/v1/proposals/"+created.ID+"/ballot", "poor", map[string]any{
		"choice": "yes",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error.Code != "BALLOT_INSUFFICIENT_CREDIT" {
		t.Fatalf("code = %q", body.Error.Code)
	}
}

func TestListProposalsWithFilter(t *testing.T) {
	server, _ := newTestServer(t)
	created := createProposal(t, server, "author-1")
	openVoting(t, server, "author-1", created.ID)
	createProposal(t, server, "author-2")

	resp := doJSON(t, http.MethodGet, server.URL+`/api/v1/proposals?filter=status%20%3D%20%22open%22`, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var page listProposalsResponse
	decodeBody(t, resp, &page)
	if len(page.Proposals) != 1 || page.Proposals[0].ID != created.ID {
		t.Fatalf("page = %+v", page)
	}
}

func TestOpenVotingForbiddenForOthers(t *testing.T) {
	server, _ := newTestServer(t)
	created := createProposal(t, server, "author-1")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/proposals/"+created.ID+"/open", "intruder", map[string]any{})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

package rest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/studycommons/studycommons/internal/services/accounts/app"
	"github.com/studycommons/studycommons/internal/services/accounts/storage/sqlite"
	"github.com/studycommons/studycommons/internal/services/accounts/token"
)

func newTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "accounts.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	svc := app.New(store, token.Config{
		Issuer:     "studycommons",
		Audience:   "studycommons-api",
		PrivateKey: priv,
		PublicKey:  priv.Public().(ed25519.PublicKey),
		TTL:        15 * time.Minute,
	})

	handler := New(svc)
	mux := http.NewServeMux()
	handler.Register(mux)
	return handler, handler.Middleware(mux)
}

func TestCreateAccountSetsSessionCookie(t *testing.T) {
	_, server := newTestHandler(t)

	body := strings.NewReader(`{"display_name": "Ada", "username": "ada"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", body)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var payload struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
		Username    string `json:"username"`
		Role        string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.DisplayName != "Ada" {
		t.Fatalf("display_name = %q, want %q", payload.DisplayName, "Ada")
	}
	if payload.Username != "ada" {
		t.Fatalf("username = %q, want %q", payload.Username, "ada")
	}
	if payload.Role != "member" {
		t.Fatalf("role = %q, want member", payload.Role)
	}

	var sessionCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("expected a session cookie")
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("expected session cookie to be HttpOnly")
	}
}

func TestCreateAccountRejectsEmptyDisplayName(t *testing.T) {
	_, server := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"display_name": " "}`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Code != "ACCOUNT_EMPTY_DISPLAY_NAME" {
		t.Fatalf("error code = %q, want ACCOUNT_EMPTY_DISPLAY_NAME", body.Error.Code)
	}
}

func TestSessionCookieAuthenticatesProfileUpdate(t *testing.T) {
	_, server := newTestHandler(t)

	create := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"display_name": "Ada"}`))
	createRec := httptest.NewRecorder()
	server.ServeHTTP(createRec, create)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", createRec.Code, createRec.Body.String())
	}
	cookies := createRec.Result().Cookies()

	update := httptest.NewRequest(http.MethodPatch, "/api/v1/accounts/me", strings.NewReader(`{"display_name": "Ada L.", "bio": "maths"}`))
	for _, cookie := range cookies {
		update.AddCookie(cookie)
	}
	updateRec := httptest.NewRecorder()
	server.ServeHTTP(updateRec, update)
	if updateRec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", updateRec.Code, updateRec.Body.String())
	}

	var payload struct {
		DisplayName string `json:"display_name"`
		Bio         string `json:"bio"`
	}
	if err := json.Unmarshal(updateRec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.DisplayName != "Ada L." || payload.Bio != "maths" {
		t.Fatalf("unexpected profile: %+v", payload)
	}
}

func TestUpdateProfileRequiresAuth(t *testing.T) {
	_, server := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/accounts/me", strings.NewReader(`{"display_name": "X"}`))
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	_, server := newTestHandler(t)

	create := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"display_name": "Ada"}`))
	createRec := httptest.NewRecorder()
	server.ServeHTTP(createRec, create)
	cookies := createRec.Result().Cookies()

	mint := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", nil)
	for _, cookie := range cookies {
		mint.AddCookie(cookie)
	}
	mintRec := httptest.NewRecorder()
	server.ServeHTTP(mintRec, mint)
	if mintRec.Code != http.StatusOK {
		t.Fatalf("mint status = %d: %s", mintRec.Code, mintRec.Body.String())
	}
	var minted struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(mintRec.Body.Bytes(), &minted); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	if minted.Token == "" {
		t.Fatal("expected a token")
	}

	me := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil)
	me.Header.Set("Authorization", "Bearer "+minted.Token)
	meRec := httptest.NewRecorder()
	server.ServeHTTP(meRec, me)
	if meRec.Code != http.StatusOK {
		t.Fatalf("me status = %d: %s", meRec.Code, meRec.Body.String())
	}
}

func TestLookupUsernameNotFound(t *testing.T) {
	_, server := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usernames/ghost", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRevokeSessionClearsCookie(t *testing.T) {
	_, server := newTestHandler(t)

	create := httptest.NewRequest(http.MethodPost, "/api/v1/accounts", strings.NewReader(`{"display_name": "Ada"}`))
	createRec := httptest.NewRecorder()
	server.ServeHTTP(createRec, create)
	cookies := createRec.Result().Cookies()

	revoke := httptest.NewRequest(http.MethodDelete, "/api/v1/auth/session", nil)
	for _, cookie := range cookies {
		revoke.AddCookie(cookie)
	}
	revokeRec := httptest.NewRecorder()
	server.ServeHTTP(revokeRec, revoke)
	if revokeRec.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d", revokeRec.Code)
	}

	get := httptest.NewRequest(http.MethodGet, "/api/v1/auth/session", nil)
	for _, cookie := range cookies {
		get.AddCookie(cookie)
	}
	getRec := httptest.NewRecorder()
	server.ServeHTTP(getRec, get)
	if getRec.Code != http.StatusUnauthorized {
		t.Fatalf("get status = %d, want %d", getRec.Code, http.StatusUnauthorized)
	}
}

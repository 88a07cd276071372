package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/studycommons/studycommons/internal/platform/requestctx"
	"github.com/studycommons/studycommons/internal/services/notifications/app"
	"github.com/studycommons/studycommons/internal/services/notifications/storage/sqlite"
	"golang.org/x/net/websocket"
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
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "notifications.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	svc := app.New(store)
	mux := http.NewServeMux()
	New(svc).Register(mux)
	server := httptest.NewServer(userHeaderMiddleware(mux))
	t.Cleanup(server.Close)
	return server, svc
}

func doGet(t *testing.T, url, userID string) *http.Response {
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

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestListNotificationsRequiresAuthentication(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doGet(t, server.URL+"/api/v1/notifications", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestListNotificationsLocalizesTitle(t *testing.T) {
	server, svc := newTestServer(t)
	err := svc.Notify(context.Background(), "user-1", "governance.proposal", "notifications.PROPOSAL_PASSED_TITLE", "Adopt a code of conduct", "proposal-1")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	resp := doGet(t, server.URL+"/api/v1/notifications", "user-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var page listNotificationsResponse
	decodeBody(t, resp, &page)
	if len(page.Notifications) != 1 {
		t.Fatalf("len = %d, want 1", len(page.Notifications))
	}
	got := page.Notifications[0]
	if got.Title != "Your proposal passed" {
		t.Fatalf("title = %q, want localized", got.Title)
	}
	if got.Body != "Adopt a code of conduct" || got.ReadAt != "" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestOpenNotificationMarksRead(t *testing.T) {
	server, svc := newTestServer(t)
	if err := svc.Notify(context.Background(), "user-1", "library.vote", "notifications.VOTE_RECEIVED_TITLE", "Intro to Stoichiometry", "resource-1"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	resp := doGet(t, server.URL+"/api/v1/notifications", "user-1")
	var page listNotificationsResponse
	decodeBody(t, resp, &page)
	notificationID := page.Notifications[0].ID

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v1/notifications/"+notificationID+"/open", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Test-User", "user-1")
	openResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open notification: %v", err)
	}
	defer openResp.Body.Close()
	if openResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", openResp.StatusCode)
	}
	var opened notificationPayload
	decodeBody(t, openResp, &opened)
	if opened.ReadAt == "" {
		t.Fatal("ReadAt not set after open")
	}

	countResp := doGet(t, server.URL+"/api/v1/notifications/unread_count", "user-1")
	var count unreadCountResponse
	decodeBody(t, countResp, &count)
	if count.Count != 0 {
		t.Fatalf("count = %d, want 0", count.Count)
	}
}

func TestUnreadFilterExcludesRead(t *testing.T) {
	server, svc := newTestServer(t)
	ctx := context.Background()
	for _, ref := range []string{"resource-1", "resource-2"} {
		if err := svc.Notify(ctx, "user-1", "library.vote", "notifications.VOTE_RECEIVED_TITLE", "", ref); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}

	resp := doGet(t, server.URL+"/api/v1/notifications", "user-1")
	var page listNotificationsResponse
	decodeBody(t, resp, &page)
	if _, err := svc.Open(ctx, page.Notifications[0].ID, "user-1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	unreadResp := doGet(t, server.URL+"/api/v1/notifications?unread=true", "user-1")
	var unread listNotificationsResponse
	decodeBody(t, unreadResp, &unread)
	if len(unread.Notifications) != 1 {
		t.Fatalf("len = %d, want 1", len(unread.Notifications))
	}
}

func TestFeedStreamsNotifications(t *testing.T) {
	server, svc := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/notifications/ws"
	config, err := websocket.NewConfig(wsURL, server.URL)
	if err != nil {
		t.Fatalf("websocket config: %v", err)
	}
	config.Header = http.Header{"X-Test-User": []string{"user-1"}}
	conn, err := websocket.DialConfig(config)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// Wait for the subscription to land before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for !svc.Hub().HasSubscribers("user-1") {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	err = svc.Notify(context.Background(), "user-1", "governance.proposal", "notifications.PROPOSAL_PASSED_TITLE", "Adopt a code of conduct", "proposal-1")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event feedEvent
	if err := json.NewDecoder(conn).Decode(&event); err != nil {
		t.Fatalf("read feed event: %v", err)
	}
	if event.Type != "notification" {
		t.Fatalf("type = %q, want notification", event.Type)
	}
	if event.Notification.Title != "Your proposal passed" {
		t.Fatalf("title = %q, want localized", event.Notification.Title)
	}
	if event.Notification.RefID != "proposal-1" {
		t.Fatalf("ref = %q", event.Notification.RefID)
	}
}

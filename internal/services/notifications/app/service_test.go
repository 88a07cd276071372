package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/services/notifications/storage"
	"github.com/studycommons/studycommons/internal/services/notifications/storage/sqlite"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	received []storage.Notification
}

func (r *recordingSubscriber) Deliver(n storage.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, n)
}

func (r *recordingSubscriber) list() []storage.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.Notification(nil), r.received...)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "notifications.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store)
}

func TestNotifyPersistsAndPublishes(t *testing.T) {
	svc := newTestService(t)
	subscriber := &recordingSubscriber{}
	svc.Hub().Subscribe("user-1", subscriber)

	err := svc.Notify(context.Background(), "user-1", "governance.proposal", "notifications.PROPOSAL_PASSED_TITLE", "Adopt a code of conduct", "proposal-1")
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	page, err := svc.List(context.Background(), ListInput{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Notifications) != 1 {
		t.Fatalf("len = %d, want 1", len(page.Notifications))
	}
	stored := page.Notifications[0]
	if stored.Title != "notifications.PROPOSAL_PASSED_TITLE" || stored.RefID != "proposal-1" {
		t.Fatalf("stored = %+v", stored)
	}

	delivered := subscriber.list()
	if len(delivered) != 1 || delivered[0].ID != stored.ID {
		t.Fatalf("delivered = %+v", delivered)
	}
}

func TestNotifySkipsUnsubscribed(t *testing.T) {
	svc := newTestService(t)
	subscriber := &recordingSubscriber{}
	svc.Hub().Subscribe("user-1", subscriber)
	svc.Hub().Unsubscribe("user-1", subscriber)

	if err := svc.Notify(context.Background(), "user-1", "library.vote", "notifications.VOTE_RECEIVED_TITLE", "", "resource-1"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(subscriber.list()) != 0 {
		t.Fatalf("delivered = %+v", subscriber.list())
	}
}

func TestOpenMarksRead(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if err := svc.Notify(ctx, "user-1", "library.vote", "notifications.VOTE_RECEIVED_TITLE", "Intro to Stoichiometry", "resource-1"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	page, err := svc.List(ctx, ListInput{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	notificationID := page.Notifications[0].ID

	count, err := svc.UnreadCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	opened, err := svc.Open(ctx, notificationID, "user-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.ReadAt == nil {
		t.Fatal("ReadAt not set")
	}

	count, err = svc.UnreadCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestOpenRejectsOtherUsers(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if err := svc.Notify(ctx, "user-1", "library.vote", "notifications.VOTE_RECEIVED_TITLE", "", "resource-1"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	page, err := svc.List(ctx, ListInput{UserID: "user-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	_, err = svc.Open(ctx, page.Notifications[0].ID, "intruder")
	if apperrors.CodeOf(err) != apperrors.CodePermissionDenied {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodePermissionDenied)
	}
}

func TestListRequiresAuthentication(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.List(context.Background(), ListInput{})
	if apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeUnauthenticated)
	}
}

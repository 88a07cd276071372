package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	creditsapp "github.com/studycommons/studycommons/internal/services/credits/app"
	"github.com/studycommons/studycommons/internal/services/credits/rules"
	creditssqlite "github.com/studycommons/studycommons/internal/services/credits/storage/sqlite"
	"github.com/studycommons/studycommons/internal/services/library/resource"
	"github.com/studycommons/studycommons/internal/services/library/storage/sqlite"
)

type recordedAward struct {
	UserID string
	Reason string
	RefID  string
}

type fakeCredits struct {
	mu     sync.Mutex
	awards []recordedAward
}

func (f *fakeCredits) Award(_ context.Context, userID, reason, refID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awards = append(f.awards, recordedAward{UserID: userID, Reason: reason, RefID: refID})
	return nil
}

func (f *fakeCredits) list() []recordedAward {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedAward(nil), f.awards...)
}

type recordedNotification struct {
	UserID string
	Kind   string
	RefID  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (f *fakeNotifier) Notify(_ context.Context, userID, kind, _, _, refID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recordedNotification{UserID: userID, Kind: kind, RefID: refID})
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeCredits, *fakeNotifier) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	credits := &fakeCredits{}
	notifier := &fakeNotifier{}
	svc := New(store, credits, notifier)
	svc.clock = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return svc, credits, notifier
}

func TestSubmitAwardsPublicationCredit(t *testing.T) {
	svc, credits, _ := newTestService(t)

	created, err := svc.Submit(context.Background(), SubmitInput{
		OwnerUserID: "owner-1",
		Title:       "Intro to Calculus",
		URL:         "https://example.com/calc",
		Subject:     "Maths",
		Level:       "intro",
		Tags:        []string{"Calculus", "calculus", ""},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.Status != resource.StatusPublished {
		t.Fatalf("status = %q, want published", created.Status)
	}
	if created.Subject != "maths" {
		t.Fatalf("subject = %q, want maths", created.Subject)
	}
	if len(created.Tags) != 1 || created.Tags[0] != "calculus" {
		t.Fatalf("tags = %v", created.Tags)
	}

	awards := credits.list()
	if len(awards) != 1 {
		t.Fatalf("awards = %d, want 1", len(awards))
	}
	if awards[0].Reason != ReasonResourcePublished || awards[0].UserID != "owner-1" || awards[0].RefID != created.ID {
		t.Fatalf("award = %+v", awards[0])
	}
}

func TestSubmitFetchesTitleWhenEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>Linear Algebra Notes</title></head></html>"))
	}))
	defer server.Close()

	svc, _, _ := newTestService(t)
	created, err := svc.Submit(context.Background(), SubmitInput{
		OwnerUserID: "owner-1",
		URL:         server.URL,
		Subject:     "maths",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if created.Title != "Linear Algebra Notes" {
		t.Fatalf("title = %q", created.Title)
	}
}

func TestSubmitRejectsBadURL(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), SubmitInput{OwnerUserID: "owner-1", Title: "x", URL: " "})
	if apperrors.CodeOf(err) != apperrors.CodeResourceEmptyURL {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeResourceEmptyURL)
	}

	_, err = svc.Submit(context.Background(), SubmitInput{OwnerUserID: "owner-1", Title: "x", URL: "ftp://example.com"})
	if apperrors.CodeOf(err) != apperrors.CodeResourceInvalidURL {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeResourceInvalidURL)
	}
}

func submitTestResource(t *testing.T, svc *Service, owner string) resource.Resource {
	t.Helper()
	created, err := svc.Submit(context.Background(), SubmitInput{
		OwnerUserID: owner,
		Title:       "Resource",
		URL:         "https://example.com/r",
		Subject:     "physics",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return created
}

func TestCastVoteOwnResourceRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := submitTestResource(t, svc, "owner-1")

	_, err := svc.CastVote(context.Background(), created.ID, "owner-1", 1)
	if apperrors.CodeOf(err) != apperrors.CodeVoteOwnResource {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeVoteOwnResource)
	}
}

func TestCastVoteAwardsAndNotifies(t *testing.T) {
	svc, credits, notifier := newTestService(t)
	created := submitTestResource(t, svc, "owner-1")

	change, err := svc.CastVote(context.Background(), created.ID, "voter-1", 1)
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if change.Resource.Score != 1 {
		t.Fatalf("score = %d, want 1", change.Resource.Score)
	}

	awards := credits.list()
	if len(awards) != 2 {
		t.Fatalf("awards = %v", awards)
	}
	if awards[1].Reason != ReasonVoteReceived || awards[1].UserID != "owner-1" {
		t.Fatalf("vote award = %+v", awards[1])
	}

	notifier.mu.Lock()
	sent := len(notifier.sent)
	notifier.mu.Unlock()
	if sent != 1 {
		t.Fatalf("notifications = %d, want 1", sent)
	}
}

func TestDistinctVotersEachAwardOwner(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.Open(filepath.Join(dir, "library.db"))
	if err != nil {
		t.Fatalf("open library store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	creditsStore, err := creditssqlite.Open(filepath.Join(dir, "credits.db"))
	if err != nil {
		t.Fatalf("open credits store: %v", err)
	}
	t.Cleanup(func() { _ = creditsStore.Close() })
	engine, err := rules.NewEngine()
	if err != nil {
		t.Fatalf("build rules engine: %v", err)
	}
	credits := creditsapp.New(creditsStore, engine)

	svc := New(store, credits, nil)
	created := submitTestResource(t, svc, "owner-1")

	if _, err := svc.CastVote(context.Background(), created.ID, "voter-a", 1); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if _, err := svc.CastVote(context.Background(), created.ID, "voter-b", 1); err != nil {
		t.Fatalf("second vote: %v", err)
	}

	// resource_published (+5) plus one vote_received (+2) per voter.
	balance, err := credits.GetBalance(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Total != 9 {
		t.Fatalf("total = %d, want 9", balance.Total)
	}
}

func TestVoteSwitchAwardsRevocationAndDownvote(t *testing.T) {
	svc, credits, _ := newTestService(t)
	created := submitTestResource(t, svc, "owner-1")

	if _, err := svc.CastVote(context.Background(), created.ID, "voter-1", 1); err != nil {
		t.Fatalf("upvote: %v", err)
	}
	if _, err := svc.CastVote(context.Background(), created.ID, "voter-1", -1); err != nil {
		t.Fatalf("switch vote: %v", err)
	}

	var reasons []string
	for _, award := range credits.list() {
		reasons = append(reasons, award.Reason)
	}
	want := []string{ReasonResourcePublished, ReasonVoteReceived, ReasonVoteRevoked, ReasonDownvoteReceived}
	if len(reasons) != len(want) {
		t.Fatalf("reasons = %v, want %v", reasons, want)
	}
	for i := range want {
		if reasons[i] != want[i] {
			t.Fatalf("reasons = %v, want %v", reasons, want)
		}
	}
}

func TestCastVoteInvalidValue(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := submitTestResource(t, svc, "owner-1")

	_, err := svc.CastVote(context.Background(), created.ID, "voter-1", 2)
	if apperrors.CodeOf(err) != apperrors.CodeVoteInvalidValue {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeVoteInvalidValue)
	}
}

func TestCastVoteRemovedResourceRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := submitTestResource(t, svc, "owner-1")
	if _, err := svc.Archive(context.Background(), created.ID, "owner-1"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	_, err := svc.CastVote(context.Background(), created.ID, "voter-1", 1)
	if apperrors.CodeOf(err) != apperrors.CodeResourceRemoved {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeResourceRemoved)
	}
}

func TestUpdateOwnerOnlyAndURLImmutable(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := submitTestResource(t, svc, "owner-1")

	_, err := svc.Update(context.Background(), created.ID, "intruder", UpdateInput{Title: "New"})
	if apperrors.CodeOf(err) != apperrors.CodeResourceNotOwner {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeResourceNotOwner)
	}

	updated, err := svc.Update(context.Background(), created.ID, "owner-1", UpdateInput{
		Title:   "Updated Title",
		Subject: "chemistry",
		Level:   "advanced",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Updated Title" || updated.Subject != "chemistry" {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.URL != created.URL {
		t.Fatalf("url changed: %q -> %q", created.URL, updated.URL)
	}
}

func TestUpdateRemovedResourceRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := submitTestResource(t, svc, "owner-1")
	if _, err := svc.Archive(context.Background(), created.ID, "owner-1"); err != nil {
		t.Fatalf("archive: %v", err)
	}

	_, err := svc.Update(context.Background(), created.ID, "owner-1", UpdateInput{Title: "New"})
	if apperrors.CodeOf(err) != apperrors.CodeResourceRemoved {
		t.Fatalf("code = %q, want %q", apperrors.CodeOf(err), apperrors.CodeResourceRemoved)
	}
}

func TestArchiveIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	created := submitTestResource(t, svc, "owner-1")

	first, err := svc.Archive(context.Background(), created.ID, "owner-1")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if first.Status != resource.StatusRemoved {
		t.Fatalf("status = %q, want removed", first.Status)
	}

	second, err := svc.Archive(context.Background(), created.ID, "owner-1")
	if err != nil {
		t.Fatalf("archive again: %v", err)
	}
	if second.Status != resource.StatusRemoved {
		t.Fatalf("status = %q, want removed", second.Status)
	}
}

func TestListWithFilter(t *testing.T) {
	svc, _, _ := newTestService(t)
	submitTestResource(t, svc, "owner-1")
	if _, err := svc.Submit(context.Background(), SubmitInput{
		OwnerUserID: "owner-2",
		Title:       "Chem Notes",
		URL:         "https://example.com/chem",
		Subject:     "chemistry",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	page, err := svc.List(context.Background(), ListInput{Filter: `subject = "chemistry"`})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Resources) != 1 || page.Resources[0].Subject != "chemistry" {
		t.Fatalf("page = %+v", page)
	}

	if _, err := svc.List(context.Background(), ListInput{Filter: `bogus = "x"`}); err == nil {
		t.Fatal("expected error for invalid filter")
	}

	if _, err := svc.List(context.Background(), ListInput{OrderBy: "title asc"}); err == nil {
		t.Fatal("expected error for invalid order_by")
	}
}

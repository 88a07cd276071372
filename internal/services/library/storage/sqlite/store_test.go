package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/studycommons/studycommons/internal/services/library/resource"
	"github.com/studycommons/studycommons/internal/services/library/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedResource(t *testing.T, store *Store, id string, score int, createdAt time.Time) resource.Resource {
	t.Helper()
	r := resource.Resource{
		ID:          id,
		OwnerUserID: "owner-1",
		Title:       "Resource " + id,
		URL:         "https://example.com/" + id,
		Subject:     "physics",
		Level:       resource.LevelIntro,
		Tags:        []string{"mechanics"},
		Status:      resource.StatusPublished,
		Score:       score,
		UpCount:     max(score, 0),
		DownCount:   max(-score, 0),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	if err := store.PutResource(context.Background(), r); err != nil {
		t.Fatalf("put resource %s: %v", id, err)
	}
	return r
}

func TestPutGetResource(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seeded := seedResource(t, store, "res-1", 0, now)

	got, err := store.GetResource(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if got.Title != seeded.Title || got.URL != seeded.URL || got.Subject != "physics" {
		t.Fatalf("unexpected resource: %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "mechanics" {
		t.Fatalf("tags = %v", got.Tags)
	}
	if got.Status != resource.StatusPublished {
		t.Fatalf("status = %q", got.Status)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestGetResourceNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetResource(context.Background(), "missing"); err != storage.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListResourcesFilterAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d"} {
		seedResource(t, store, id, 0, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := store.ListResources(ctx, storage.ListQuery{
		Where:    "subject = ?",
		Params:   []any{"physics"},
		OrderBy:  storage.OrderByCreatedAtDesc,
		PageSize: 3,
	})
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	if len(first.Resources) != 3 {
		t.Fatalf("len = %d, want 3", len(first.Resources))
	}
	if first.Resources[0].ID != "d" {
		t.Fatalf("first id = %q, want d", first.Resources[0].ID)
	}
	if first.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}

	second, err := store.ListResources(ctx, storage.ListQuery{
		Where:     "subject = ?",
		Params:    []any{"physics"},
		OrderBy:   storage.OrderByCreatedAtDesc,
		PageSize:  3,
		PageToken: first.NextPageToken,
	})
	if err != nil {
		t.Fatalf("list resources page 2: %v", err)
	}
	if len(second.Resources) != 1 {
		t.Fatalf("len = %d, want 1", len(second.Resources))
	}
	if second.Resources[0].ID != "a" {
		t.Fatalf("second page id = %q, want a", second.Resources[0].ID)
	}
	if second.NextPageToken != "" {
		t.Fatalf("expected empty token, got %q", second.NextPageToken)
	}
}

func TestListResourcesOrderByScore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	seedResource(t, store, "low", 1, base)
	seedResource(t, store, "high", 5, base)

	page, err := store.ListResources(ctx, storage.ListQuery{OrderBy: storage.OrderByScoreDesc, PageSize: 10})
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	if len(page.Resources) != 2 {
		t.Fatalf("len = %d, want 2", len(page.Resources))
	}
	if page.Resources[0].ID != "high" {
		t.Fatalf("first id = %q, want high", page.Resources[0].ID)
	}
}

func TestListResourcesRejectsTokenFromOtherOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		seedResource(t, store, id, i, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := store.ListResources(ctx, storage.ListQuery{
		OrderBy:  storage.OrderByCreatedAtDesc,
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	if first.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}

	_, err = store.ListResources(ctx, storage.ListQuery{
		OrderBy:   storage.OrderByScoreDesc,
		PageSize:  2,
		PageToken: first.NextPageToken,
	})
	if err == nil {
		t.Fatal("expected error for token minted under another order_by")
	}
}

func TestListResourcesRejectsUnknownOrder(t *testing.T) {
	store := newTestStore(t)
	_, err := store.ListResources(context.Background(), storage.ListQuery{OrderBy: "title asc"})
	if err == nil {
		t.Fatal("expected error for unsupported order_by")
	}
}

func TestVoteTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedResource(t, store, "res-1", 0, now)

	change, err := store.SetVote(ctx, storage.Vote{
		ResourceID:  "res-1",
		VoterUserID: "voter-1",
		Value:       1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("set vote: %v", err)
	}
	if change.Previous != 0 || change.Current != 1 {
		t.Fatalf("change = %+v", change)
	}
	if change.Resource.Score != 1 || change.Resource.UpCount != 1 || change.Resource.DownCount != 0 {
		t.Fatalf("tallies after upvote = %+v", change.Resource)
	}

	// Switching direction adjusts both tallies.
	change, err = store.SetVote(ctx, storage.Vote{
		ResourceID:  "res-1",
		VoterUserID: "voter-1",
		Value:       -1,
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("switch vote: %v", err)
	}
	if change.Previous != 1 || change.Current != -1 {
		t.Fatalf("change = %+v", change)
	}
	if change.Resource.Score != -1 || change.Resource.UpCount != 0 || change.Resource.DownCount != 1 {
		t.Fatalf("tallies after switch = %+v", change.Resource)
	}

	// Re-casting the same value is a no-op.
	change, err = store.SetVote(ctx, storage.Vote{
		ResourceID:  "res-1",
		VoterUserID: "voter-1",
		Value:       -1,
		CreatedAt:   now,
		UpdatedAt:   now.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("recast vote: %v", err)
	}
	if change.Previous != -1 || change.Current != -1 {
		t.Fatalf("change = %+v", change)
	}

	change, err = store.ClearVote(ctx, "res-1", "voter-1", now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("clear vote: %v", err)
	}
	if change.Previous != -1 || change.Current != 0 {
		t.Fatalf("change = %+v", change)
	}
	if change.Resource.Score != 0 || change.Resource.DownCount != 0 {
		t.Fatalf("tallies after clear = %+v", change.Resource)
	}

	if _, err := store.GetVote(ctx, "res-1", "voter-1"); err != storage.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetVoteMissingResource(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	_, err := store.SetVote(context.Background(), storage.Vote{
		ResourceID:  "missing",
		VoterUserID: "voter-1",
		Value:       1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != storage.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedResource(t, store, "res-1", 0, now)
	seedResource(t, store, "res-2", 0, now)

	if _, err := store.SetVote(ctx, storage.Vote{ResourceID: "res-1", VoterUserID: "v1", Value: 1, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("set vote: %v", err)
	}

	resources, err := store.CountResources(ctx)
	if err != nil {
		t.Fatalf("count resources: %v", err)
	}
	if resources != 2 {
		t.Fatalf("resources = %d, want 2", resources)
	}
	votes, err := store.CountVotes(ctx)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if votes != 1 {
		t.Fatalf("votes = %d, want 1", votes)
	}
}

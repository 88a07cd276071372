package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/studycommons/studycommons/internal/services/governance/proposal"
	"github.com/studycommons/studycommons/internal/services/governance/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "governance.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedProposal(t *testing.T, store *Store, id string, status proposal.Status, createdAt time.Time) proposal.Proposal {
	t.Helper()
	p := proposal.Proposal{
		ID:           id,
		AuthorUserID: "author-1",
		Title:        "Proposal " + id,
		Body:         "Body",
		Status:       status,
		Outcome:      proposal.OutcomePending,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if err := store.PutProposal(context.Background(), p); err != nil {
		t.Fatalf("put proposal %s: %v", id, err)
	}
	return p
}

func TestPutGetProposal(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedProposal(t, store, "prop-1", proposal.StatusDraft, now)

	got, err := store.GetProposal(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if got.Title != "Proposal prop-1" || got.Status != proposal.StatusDraft {
		t.Fatalf("proposal = %+v", got)
	}
	if !got.OpensAt.IsZero() || !got.ClosesAt.IsZero() {
		t.Fatalf("expected zero voting window, got %v / %v", got.OpensAt, got.ClosesAt)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, now)
	}
}

func TestGetProposalNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetProposal(context.Background(), "missing"); err != storage.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestVotingWindowRoundTrip(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := seedProposal(t, store, "prop-1", proposal.StatusDraft, now)

	p.Status = proposal.StatusOpen
	p.OpensAt = now
	p.ClosesAt = now.Add(48 * time.Hour)
	p.UpdatedAt = now
	if err := store.PutProposal(context.Background(), p); err != nil {
		t.Fatalf("put proposal: %v", err)
	}

	got, err := store.GetProposal(context.Background(), "prop-1")
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if !got.ClosesAt.Equal(p.ClosesAt) {
		t.Fatalf("ClosesAt = %v, want %v", got.ClosesAt, p.ClosesAt)
	}
}

func TestListProposalsFilterAndPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		seedProposal(t, store, id, proposal.StatusOpen, base.Add(time.Duration(i)*time.Minute))
	}
	seedProposal(t, store, "d", proposal.StatusDraft, base.Add(time.Hour))

	first, err := store.ListProposals(ctx, storage.ListQuery{
		Where:    "status = ?",
		Params:   []any{"open"},
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("list proposals: %v", err)
	}
	if len(first.Proposals) != 2 {
		t.Fatalf("len = %d, want 2", len(first.Proposals))
	}
	if first.Proposals[0].ID != "c" {
		t.Fatalf("first id = %q, want c", first.Proposals[0].ID)
	}
	if first.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}

	second, err := store.ListProposals(ctx, storage.ListQuery{
		Where:     "status = ?",
		Params:    []any{"open"},
		PageSize:  2,
		PageToken: first.NextPageToken,
	})
	if err != nil {
		t.Fatalf("list proposals page 2: %v", err)
	}
	if len(second.Proposals) != 1 || second.Proposals[0].ID != "a" {
		t.Fatalf("second page = %+v", second.Proposals)
	}
}

func TestBallotTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedProposal(t, store, "prop-1", proposal.StatusOpen, now)

	change, err := store.SetBallot(ctx, proposal.Ballot{
		ProposalID:  "prop-1",
		VoterUserID: "voter-1",
		Choice:      proposal.ChoiceYes,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("set ballot: %v", err)
	}
	if change.Previous != "" || change.Current != proposal.ChoiceYes {
		t.Fatalf("change = %+v", change)
	}
	if change.Proposal.YesCount != 1 {
		t.Fatalf("yes count = %d, want 1", change.Proposal.YesCount)
	}

	// Changing a ballot moves both counters.
	change, err = store.SetBallot(ctx, proposal.Ballot{
		ProposalID:  "prop-1",
		VoterUserID: "voter-1",
		Choice:      proposal.ChoiceNo,
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("change ballot: %v", err)
	}
	if change.Proposal.YesCount != 0 || change.Proposal.NoCount != 1 {
		t.Fatalf("counters = %+v", change.Proposal)
	}

	// Re-casting the same choice is a no-op.
	change, err = store.SetBallot(ctx, proposal.Ballot{
		ProposalID:  "prop-1",
		VoterUserID: "voter-1",
		Choice:      proposal.ChoiceNo,
		CreatedAt:   now,
		UpdatedAt:   now.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("recast ballot: %v", err)
	}
	if change.Previous != proposal.ChoiceNo || change.Proposal.NoCount != 1 {
		t.Fatalf("change = %+v", change)
	}

	ballot, err := store.GetBallot(ctx, "prop-1", "voter-1")
	if err != nil {
		t.Fatalf("get ballot: %v", err)
	}
	if ballot.Choice != proposal.ChoiceNo {
		t.Fatalf("choice = %q, want no", ballot.Choice)
	}
	if !ballot.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v, want original cast time %v", ballot.CreatedAt, now)
	}
}

func TestSetBallotMissingProposal(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	_, err := store.SetBallot(context.Background(), proposal.Ballot{
		ProposalID:  "missing",
		VoterUserID: "voter-1",
		Choice:      proposal.ChoiceYes,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != storage.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetBallotNotFound(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seedProposal(t, store, "prop-1", proposal.StatusOpen, now)

	if _, err := store.GetBallot(context.Background(), "prop-1", "voter-1"); err != storage.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

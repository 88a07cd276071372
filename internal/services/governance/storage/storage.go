// Package storage defines the governance persistence contract.
package storage

import (
	"context"
	"errors"

	"github.com/studycommons/studycommons/internal/services/governance/proposal"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a write conflicted with an existing record.
	ErrAlreadyExists = errors.New("already exists")
)

// OrderByCreatedAtDesc sorts proposals newest first.
const OrderByCreatedAtDesc = "created_at desc"

// ListQuery describes a filtered proposal listing request.
type ListQuery struct {
	Where     string
	Params    []any
	OrderBy   string
	PageSize  int
	PageToken string
}

// ProposalPage is one page of proposals.
type ProposalPage struct {
	Proposals     []proposal.Proposal
	NextPageToken string
}

// BallotChange reports a ballot transition and the proposal with counters
// already updated. Previous is empty when the voter had no ballot.
type BallotChange struct {
	Previous proposal.Choice
	Current  proposal.Choice
	Proposal proposal.Proposal
}

// Store persists proposals and ballots. Counter columns move in the same
// transaction as the ballot row change.
type Store interface {
	PutProposal(ctx context.Context, p proposal.Proposal) error
	GetProposal(ctx context.Context, proposalID string) (proposal.Proposal, error)
	ListProposals(ctx context.Context, query ListQuery) (ProposalPage, error)
	CountProposals(ctx context.Context) (int, error)

	SetBallot(ctx context.Context, b proposal.Ballot) (BallotChange, error)
	GetBallot(ctx context.Context, proposalID, voterUserID string) (proposal.Ballot, error)
}

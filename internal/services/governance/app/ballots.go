package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/services/governance/proposal"
	"github.com/studycommons/studycommons/internal/services/governance/storage"
)

// CastBallot records a voter's position on an open proposal. Changing a
// ballot moves the counters. Casting requires a minimum reputation balance.
func (s *Service) CastBallot(ctx context.Context, proposalID, voterUserID, choiceValue string) (storage.BallotChange, error) {
	if s.store == nil {
		return storage.BallotChange{}, fmt.Errorf("governance store is not configured")
	}
	voterUserID = strings.TrimSpace(voterUserID)
	if voterUserID == "" {
		return storage.BallotChange{}, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}

	choice, err := proposal.ParseChoice(choiceValue)
	if err != nil {
		return storage.BallotChange{}, err
	}

	found, err := s.Get(ctx, proposalID)
	if err != nil {
		return storage.BallotChange{}, err
	}
	switch found.Status {
	case proposal.StatusOpen:
	case proposal.StatusClosed:
		return storage.BallotChange{}, apperrors.New(apperrors.CodeProposalVotingClosed, "voting on this proposal has closed")
	default:
		return storage.BallotChange{}, apperrors.New(apperrors.CodeProposalVotingNotOpen, "voting on this proposal is not open")
	}

	if s.credits != nil {
		balance, err := s.credits.GetBalance(ctx, voterUserID)
		if err != nil {
			return storage.BallotChange{}, fmt.Errorf("get balance: %w", err)
		}
		if balance.Total < s.minVoteBalance {
			return storage.BallotChange{}, apperrors.WithMetadata(
				apperrors.CodeBallotInsufficientCredit,
				"reputation balance is below the voting threshold",
				map[string]string{"Required": strconv.Itoa(s.minVoteBalance)},
			)
		}
	}

	now := s.clock().UTC()
	change, err := s.store.SetBallot(ctx, proposal.Ballot{
		ProposalID:  found.ID,
		VoterUserID: voterUserID,
		Choice:      choice,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return storage.BallotChange{}, mapStorageError(err)
	}
	return change, nil
}

// GetBallot returns the caller's ballot on a proposal.
func (s *Service) GetBallot(ctx context.Context, proposalID, voterUserID string) (proposal.Ballot, error) {
	if s.store == nil {
		return proposal.Ballot{}, fmt.Errorf("governance store is not configured")
	}
	ballot, err := s.store.GetBallot(ctx, strings.TrimSpace(proposalID), strings.TrimSpace(voterUserID))
	if err != nil {
		return proposal.Ballot{}, mapStorageError(err)
	}
	return ballot, nil
}

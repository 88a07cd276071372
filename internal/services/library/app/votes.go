package app

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/services/library/resource"
	"github.com/studycommons/studycommons/internal/services/library/storage"
)

// NotificationKindVote marks vote notifications in the feed.
const NotificationKindVote = "library.vote"

// CastVote records a +1 or -1 vote on a resource. One vote per voter per
// resource; switching direction adjusts both tallies. Voting on your own
// resource is rejected.
func (s *Service) CastVote(ctx context.Context, resourceID, voterUserID string, value int) (storage.VoteChange, error) {
	if s.store == nil {
		return storage.VoteChange{}, fmt.Errorf("vote store is not configured")
	}
	if value != 1 && value != -1 {
		return storage.VoteChange{}, apperrors.New(apperrors.CodeVoteInvalidValue, "vote value must be +1 or -1")
	}
	voterUserID = strings.TrimSpace(voterUserID)
	if voterUserID == "" {
		return storage.VoteChange{}, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}

	found, err := s.Get(ctx, resourceID)
	if err != nil {
		return storage.VoteChange{}, err
	}
	if found.Status == resource.StatusRemoved {
		return storage.VoteChange{}, apperrors.New(apperrors.CodeResourceRemoved, "resource has been removed")
	}
	if found.OwnerUserID == voterUserID {
		return storage.VoteChange{}, apperrors.New(apperrors.CodeVoteOwnResource, "voting on your own resource is not allowed")
	}

	now := s.clock().UTC()
	change, err := s.store.SetVote(ctx, storage.Vote{
		ResourceID:  found.ID,
		VoterUserID: voterUserID,
		Value:       value,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return storage.VoteChange{}, mapStorageError(err)
	}

	s.settleVoteCredits(ctx, voterUserID, change)
	return change, nil
}

// ClearVote removes the caller's vote on a resource. Clearing an absent vote
// is a no-op.
func (s *Service) ClearVote(ctx context.Context, resourceID, voterUserID string) (storage.VoteChange, error) {
	if s.store == nil {
		return storage.VoteChange{}, fmt.Errorf("vote store is not configured")
	}
	voterUserID = strings.TrimSpace(voterUserID)
	if voterUserID == "" {
		return storage.VoteChange{}, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}

	change, err := s.store.ClearVote(ctx, strings.TrimSpace(resourceID), voterUserID, s.clock().UTC())
	if err != nil {
		return storage.VoteChange{}, mapStorageError(err)
	}
	s.settleVoteCredits(ctx, voterUserID, change)
	return change, nil
}

// GetVote returns the caller's vote on a resource.
func (s *Service) GetVote(ctx context.Context, resourceID, voterUserID string) (storage.Vote, error) {
	if s.store == nil {
		return storage.Vote{}, fmt.Errorf("vote store is not configured")
	}
	vote, err := s.store.GetVote(ctx, strings.TrimSpace(resourceID), strings.TrimSpace(voterUserID))
	if err != nil {
		return storage.Vote{}, mapStorageError(err)
	}
	return vote, nil
}

// settleVoteCredits turns a vote transition into credit awards and a
// notification for the resource owner. The award ref is scoped to the voter
// so distinct voters' votes each land in the ledger; the dedup key only
// absorbs replays of one voter's transition.
func (s *Service) settleVoteCredits(ctx context.Context, voterUserID string, change storage.VoteChange) {
	if change.Previous == change.Current {
		return
	}
	owner := change.Resource.OwnerUserID
	awardRef := change.Resource.ID + ":" + voterUserID

	if change.Previous == 1 {
		s.award(ctx, owner, ReasonVoteRevoked, awardRef)
	}
	switch change.Current {
	case 1:
		s.award(ctx, owner, ReasonVoteReceived, awardRef)
		s.notify(ctx, owner, NotificationKindVote, "notifications.VOTE_RECEIVED_TITLE", change.Resource.Title, change.Resource.ID)
	case -1:
		s.award(ctx, owner, ReasonDownvoteReceived, awardRef)
	}
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/studycommons/studycommons/internal/services/library/storage"
)

// SetVote upserts one vote and updates the resource tallies in the same
// transaction. Re-casting the same value is a no-op.
func (s *Store) SetVote(ctx context.Context, vote storage.Vote) (storage.VoteChange, error) {
	if err := ctx.Err(); err != nil {
		return storage.VoteChange{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.VoteChange{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(vote.ResourceID) == "" {
		return storage.VoteChange{}, fmt.Errorf("resource id is required")
	}
	if strings.TrimSpace(vote.VoterUserID) == "" {
		return storage.VoteChange{}, fmt.Errorf("voter user id is required")
	}
	if vote.Value != 1 && vote.Value != -1 {
		return storage.VoteChange{}, fmt.Errorf("vote value must be +1 or -1")
	}

	return s.applyVoteChange(ctx, vote.ResourceID, vote.VoterUserID, vote.Value, vote.CreatedAt, vote.UpdatedAt)
}

// ClearVote removes one vote and updates the resource tallies in the same
// transaction. Clearing an absent vote is a no-op.
func (s *Store) ClearVote(ctx context.Context, resourceID, voterUserID string, now time.Time) (storage.VoteChange, error) {
	if err := ctx.Err(); err != nil {
		return storage.VoteChange{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.VoteChange{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(resourceID) == "" {
		return storage.VoteChange{}, fmt.Errorf("resource id is required")
	}
	if strings.TrimSpace(voterUserID) == "" {
		return storage.VoteChange{}, fmt.Errorf("voter user id is required")
	}

	return s.applyVoteChange(ctx, resourceID, voterUserID, 0, now, now)
}

// applyVoteChange moves a vote from its previous value to target (0 clears)
// and keeps the resource counters equal to the vote table aggregate.
func (s *Store) applyVoteChange(ctx context.Context, resourceID, voterUserID string, target int, createdAt, updatedAt time.Time) (storage.VoteChange, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.VoteChange{}, fmt.Errorf("begin vote tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+resourceColumns+` FROM resources WHERE id = ?`, resourceID)
	found, err := scanResource(row)
	if err != nil {
		return storage.VoteChange{}, err
	}

	previous := 0
	var voteCreatedAt int64
	err = tx.QueryRowContext(
		ctx,
		`SELECT value, created_at FROM votes WHERE resource_id = ? AND voter_user_id = ?`,
		resourceID, voterUserID,
	).Scan(&previous, &voteCreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storage.VoteChange{}, fmt.Errorf("get vote: %w", err)
	}

	if previous == target {
		return storage.VoteChange{Previous: previous, Current: target, Resource: found}, tx.Commit()
	}

	switch target {
	case 0:
		_, err = tx.ExecContext(
			ctx,
			`DELETE FROM votes WHERE resource_id = ? AND voter_user_id = ?`,
			resourceID, voterUserID,
		)
	default:
		if voteCreatedAt != 0 {
			createdAt = fromMillis(voteCreatedAt)
		}
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO votes (resource_id, voter_user_id, value, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(resource_id, voter_user_id) DO UPDATE SET
			   value = excluded.value,
			   updated_at = excluded.updated_at`,
			resourceID, voterUserID, target, toMillis(createdAt), toMillis(updatedAt),
		)
	}
	if err != nil {
		return storage.VoteChange{}, fmt.Errorf("write vote: %w", err)
	}

	upCount := found.UpCount
	downCount := found.DownCount
	if previous == 1 {
		upCount--
	}
	if previous == -1 {
		downCount--
	}
	if target == 1 {
		upCount++
	}
	if target == -1 {
		downCount++
	}
	score := upCount - downCount

	_, err = tx.ExecContext(
		ctx,
		`UPDATE resources SET score = ?, up_count = ?, down_count = ? WHERE id = ?`,
		score, upCount, downCount, resourceID,
	)
	if err != nil {
		return storage.VoteChange{}, fmt.Errorf("update resource tallies: %w", err)
	}

	found.Score = score
	found.UpCount = upCount
	found.DownCount = downCount

	if err := tx.Commit(); err != nil {
		return storage.VoteChange{}, fmt.Errorf("commit vote tx: %w", err)
	}
	return storage.VoteChange{Previous: previous, Current: target, Resource: found}, nil
}

// GetVote returns one voter's vote on one resource.
func (s *Store) GetVote(ctx context.Context, resourceID, voterUserID string) (storage.Vote, error) {
	if err := ctx.Err(); err != nil {
		return storage.Vote{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Vote{}, fmt.Errorf("storage is not configured")
	}

	var (
		vote      storage.Vote
		createdAt int64
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT resource_id, voter_user_id, value, created_at, updated_at
		 FROM votes WHERE resource_id = ? AND voter_user_id = ?`,
		strings.TrimSpace(resourceID), strings.TrimSpace(voterUserID),
	).Scan(&vote.ResourceID, &vote.VoterUserID, &vote.Value, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Vote{}, storage.ErrNotFound
		}
		return storage.Vote{}, fmt.Errorf("get vote: %w", err)
	}
	vote.CreatedAt = fromMillis(createdAt)
	vote.UpdatedAt = fromMillis(updatedAt)
	return vote, nil
}

// CountVotes returns the total number of vote records.
func (s *Store) CountVotes(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/studycommons/studycommons/internal/services/governance/proposal"
	"github.com/studycommons/studycommons/internal/services/governance/storage"
)

// SetBallot upserts one ballot and moves the proposal counters in the same
// transaction.
func (s *Store) SetBallot(ctx context.Context, b proposal.Ballot) (storage.BallotChange, error) {
	if err := ctx.Err(); err != nil {
		return storage.BallotChange{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.BallotChange{}, fmt.Errorf("storage is not configured")
	}
	proposalID := strings.TrimSpace(b.ProposalID)
	voterUserID := strings.TrimSpace(b.VoterUserID)
	if proposalID == "" || voterUserID == "" {
		return storage.BallotChange{}, fmt.Errorf("proposal id and voter user id are required")
	}
	switch b.Choice {
	case proposal.ChoiceYes, proposal.ChoiceNo, proposal.ChoiceAbstain:
	default:
		return storage.BallotChange{}, fmt.Errorf("unsupported ballot choice: %s", b.Choice)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.BallotChange{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, proposalID)
	p, err := scanProposal(row)
	if err != nil {
		return storage.BallotChange{}, err
	}

	var previous proposal.Choice
	var previousCreatedAt int64
	err = tx.QueryRowContext(
		ctx,
		`SELECT choice, created_at FROM ballots WHERE proposal_id = ? AND voter_user_id = ?`,
		proposalID, voterUserID,
	).Scan(&previous, &previousCreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return storage.BallotChange{}, fmt.Errorf("read ballot: %w", err)
	}

	if previous == b.Choice {
		if err := tx.Commit(); err != nil {
			return storage.BallotChange{}, fmt.Errorf("commit tx: %w", err)
		}
		return storage.BallotChange{Previous: previous, Current: b.Choice, Proposal: p}, nil
	}

	createdAt := toMillis(b.CreatedAt)
	if previous != "" {
		// Changing a ballot keeps the original cast time.
		createdAt = previousCreatedAt
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO ballots (proposal_id, voter_user_id, choice, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(proposal_id, voter_user_id) DO UPDATE SET
		   choice = excluded.choice,
		   updated_at = excluded.updated_at`,
		proposalID,
		voterUserID,
		string(b.Choice),
		createdAt,
		toMillis(b.UpdatedAt),
	)
	if err != nil {
		return storage.BallotChange{}, fmt.Errorf("upsert ballot: %w", err)
	}

	adjustCounter(&p, previous, -1)
	adjustCounter(&p, b.Choice, 1)
	_, err = tx.ExecContext(
		ctx,
		`UPDATE proposals SET yes_count = ?, no_count = ?, abstain_count = ? WHERE id = ?`,
		p.YesCount, p.NoCount, p.AbstainCount, proposalID,
	)
	if err != nil {
		return storage.BallotChange{}, fmt.Errorf("update counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.BallotChange{}, fmt.Errorf("commit tx: %w", err)
	}
	return storage.BallotChange{Previous: previous, Current: b.Choice, Proposal: p}, nil
}

func adjustCounter(p *proposal.Proposal, choice proposal.Choice, delta int) {
	switch choice {
	case proposal.ChoiceYes:
		p.YesCount += delta
	case proposal.ChoiceNo:
		p.NoCount += delta
	case proposal.ChoiceAbstain:
		p.AbstainCount += delta
	}
}

// GetBallot returns one voter's ballot on a proposal.
func (s *Store) GetBallot(ctx context.Context, proposalID, voterUserID string) (proposal.Ballot, error) {
	if err := ctx.Err(); err != nil {
		return proposal.Ballot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return proposal.Ballot{}, fmt.Errorf("storage is not configured")
	}

	b := proposal.Ballot{ProposalID: strings.TrimSpace(proposalID), VoterUserID: strings.TrimSpace(voterUserID)}
	var choice string
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT choice, created_at, updated_at FROM ballots WHERE proposal_id = ? AND voter_user_id = ?`,
		b.ProposalID, b.VoterUserID,
	).Scan(&choice, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return proposal.Ballot{}, storage.ErrNotFound
		}
		return proposal.Ballot{}, fmt.Errorf("get ballot: %w", err)
	}
	b.Choice = proposal.Choice(choice)
	b.CreatedAt = fromMillis(createdAt)
	b.UpdatedAt = fromMillis(updatedAt)
	return b, nil
}

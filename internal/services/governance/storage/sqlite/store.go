// Package sqlite provides a SQLite-backed governance storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/studycommons/studycommons/internal/platform/storage/sqlitemigrate"
	"github.com/studycommons/studycommons/internal/services/governance/proposal"
	"github.com/studycommons/studycommons/internal/services/governance/storage"
	"github.com/studycommons/studycommons/internal/services/governance/storage/sqlite/migrations"
)

// Store persists governance state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// toMillisOrZero keeps unset voting windows as 0 in the schema.
func toMillisOrZero(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return toMillis(value)
}

func fromMillisOrZero(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return fromMillis(value)
}

// Open opens a SQLite governance store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

const proposalColumns = `id, author_user_id, title, body, status, opens_at, closes_at, yes_count, no_count, abstain_count, outcome, created_at, updated_at`

// PutProposal upserts one proposal record.
func (s *Store) PutProposal(ctx context.Context, p proposal.Proposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("proposal id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO proposals (`+proposalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   body = excluded.body,
		   status = excluded.status,
		   opens_at = excluded.opens_at,
		   closes_at = excluded.closes_at,
		   yes_count = excluded.yes_count,
		   no_count = excluded.no_count,
		   abstain_count = excluded.abstain_count,
		   outcome = excluded.outcome,
		   updated_at = excluded.updated_at`,
		p.ID,
		p.AuthorUserID,
		p.Title,
		p.Body,
		string(p.Status),
		toMillisOrZero(p.OpensAt),
		toMillisOrZero(p.ClosesAt),
		p.YesCount,
		p.NoCount,
		p.AbstainCount,
		string(p.Outcome),
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put proposal: %w", err)
	}
	return nil
}

// GetProposal returns one proposal record.
func (s *Store) GetProposal(ctx context.Context, proposalID string) (proposal.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return proposal.Proposal{}, err
	}
	if s == nil || s.sqlDB == nil {
		return proposal.Proposal{}, fmt.Errorf("storage is not configured")
	}
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return proposal.Proposal{}, fmt.Errorf("proposal id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = ?`,
		proposalID,
	)
	return scanProposal(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProposal(row rowScanner) (proposal.Proposal, error) {
	var (
		p         proposal.Proposal
		status    string
		outcome   string
		opensAt   int64
		closesAt  int64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&p.ID,
		&p.AuthorUserID,
		&p.Title,
		&p.Body,
		&status,
		&opensAt,
		&closesAt,
		&p.YesCount,
		&p.NoCount,
		&p.AbstainCount,
		&outcome,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return proposal.Proposal{}, storage.ErrNotFound
		}
		return proposal.Proposal{}, fmt.Errorf("get proposal: %w", err)
	}
	p.Status = proposal.Status(status)
	p.Outcome = proposal.Outcome(outcome)
	p.OpensAt = fromMillisOrZero(opensAt)
	p.ClosesAt = fromMillisOrZero(closesAt)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// pageCursor is the decoded form of an opaque list page token.
type pageCursor struct {
	Sort int64  `json:"s"`
	ID   string `json:"id"`
}

func encodePageToken(cursor pageCursor) string {
	payload, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(payload)
}

func decodePageToken(token string) (pageCursor, error) {
	var cursor pageCursor
	payload, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return pageCursor{}, fmt.Errorf("decode page token: %w", err)
	}
	if err := json.Unmarshal(payload, &cursor); err != nil {
		return pageCursor{}, fmt.Errorf("decode page token: %w", err)
	}
	return cursor, nil
}

// ListProposals returns a filtered page of proposals, newest first.
func (s *Store) ListProposals(ctx context.Context, query storage.ListQuery) (storage.ProposalPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProposalPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ProposalPage{}, fmt.Errorf("storage is not configured")
	}

	switch query.OrderBy {
	case "", storage.OrderByCreatedAtDesc:
	default:
		return storage.ProposalPage{}, fmt.Errorf("unsupported order_by: %s", query.OrderBy)
	}

	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	var clauses []string
	var params []any
	if strings.TrimSpace(query.Where) != "" {
		clauses = append(clauses, query.Where)
		params = append(params, query.Params...)
	}
	if query.PageToken != "" {
		cursor, err := decodePageToken(query.PageToken)
		if err != nil {
			return storage.ProposalPage{}, err
		}
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id > ?))")
		params = append(params, cursor.Sort, cursor.Sort, cursor.ID)
	}

	sqlQuery := `SELECT ` + proposalColumns + ` FROM proposals`
	if len(clauses) > 0 {
		sqlQuery += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	sqlQuery += ` ORDER BY created_at DESC, id ASC LIMIT ?`
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return storage.ProposalPage{}, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var proposals []proposal.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return storage.ProposalPage{}, fmt.Errorf("list proposals: %w", err)
		}
		proposals = append(proposals, p)
	}
	if err := rows.Err(); err != nil {
		return storage.ProposalPage{}, fmt.Errorf("list proposals: %w", err)
	}

	page := storage.ProposalPage{Proposals: proposals}
	if len(proposals) > pageSize {
		page.Proposals = proposals[:pageSize]
		last := page.Proposals[pageSize-1]
		page.NextPageToken = encodePageToken(pageCursor{Sort: toMillis(last.CreatedAt), ID: last.ID})
	}
	return page, nil
}

// CountProposals returns the total number of proposal records.
func (s *Store) CountProposals(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM proposals`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return count, nil
}

var _ storage.Store = (*Store)(nil)

// Package sqlite provides a SQLite-backed credits storage implementation.
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
	"github.com/studycommons/studycommons/internal/services/credits/storage"
	"github.com/studycommons/studycommons/internal/services/credits/storage/sqlite/migrations"
)

// Store persists the credit ledger in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite credits store and applies embedded migrations.
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

// AddEntry appends a ledger entry and moves the balance in one transaction.
func (s *Store) AddEntry(ctx context.Context, entry storage.Entry) (storage.Balance, error) {
	if err := ctx.Err(); err != nil {
		return storage.Balance{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Balance{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(entry.ID) == "" {
		return storage.Balance{}, fmt.Errorf("entry id is required")
	}
	if strings.TrimSpace(entry.UserID) == "" {
		return storage.Balance{}, fmt.Errorf("entry user id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Balance{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(
		ctx,
		`INSERT INTO credit_entries (id, user_id, reason, ref_id, delta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, reason, ref_id) DO NOTHING`,
		entry.ID,
		entry.UserID,
		entry.Reason,
		entry.RefID,
		entry.Delta,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		return storage.Balance{}, fmt.Errorf("insert entry: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return storage.Balance{}, fmt.Errorf("insert entry: %w", err)
	}
	if inserted == 0 {
		return storage.Balance{}, storage.ErrAlreadyExists
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO credit_balances (user_id, total, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   total = total + excluded.total,
		   updated_at = excluded.updated_at`,
		entry.UserID,
		entry.Delta,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		return storage.Balance{}, fmt.Errorf("update balance: %w", err)
	}

	balance := storage.Balance{UserID: entry.UserID}
	var updatedAt int64
	err = tx.QueryRowContext(
		ctx,
		`SELECT total, updated_at FROM credit_balances WHERE user_id = ?`,
		entry.UserID,
	).Scan(&balance.Total, &updatedAt)
	if err != nil {
		return storage.Balance{}, fmt.Errorf("read balance: %w", err)
	}
	balance.UpdatedAt = fromMillis(updatedAt)

	if err := tx.Commit(); err != nil {
		return storage.Balance{}, fmt.Errorf("commit tx: %w", err)
	}
	return balance, nil
}

// GetBalance returns the running total for a user.
func (s *Store) GetBalance(ctx context.Context, userID string) (storage.Balance, error) {
	if err := ctx.Err(); err != nil {
		return storage.Balance{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Balance{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.Balance{}, fmt.Errorf("user id is required")
	}

	balance := storage.Balance{UserID: userID}
	var updatedAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT total, updated_at FROM credit_balances WHERE user_id = ?`,
		userID,
	).Scan(&balance.Total, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Balance{}, storage.ErrNotFound
		}
		return storage.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	balance.UpdatedAt = fromMillis(updatedAt)
	return balance, nil
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

// ListEntries returns a page of a user's ledger, newest first.
func (s *Store) ListEntries(ctx context.Context, userID string, pageSize int, pageToken string) (storage.EntryPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.EntryPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EntryPage{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.EntryPage{}, fmt.Errorf("user id is required")
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	sqlQuery := `SELECT id, user_id, reason, ref_id, delta, created_at
		 FROM credit_entries WHERE user_id = ?`
	params := []any{userID}
	if pageToken != "" {
		cursor, err := decodePageToken(pageToken)
		if err != nil {
			return storage.EntryPage{}, err
		}
		sqlQuery += ` AND (created_at < ? OR (created_at = ? AND id > ?))`
		params = append(params, cursor.Sort, cursor.Sort, cursor.ID)
	}
	sqlQuery += ` ORDER BY created_at DESC, id ASC LIMIT ?`
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return storage.EntryPage{}, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []storage.Entry
	for rows.Next() {
		var entry storage.Entry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Reason, &entry.RefID, &entry.Delta, &createdAt); err != nil {
			return storage.EntryPage{}, fmt.Errorf("list entries: %w", err)
		}
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return storage.EntryPage{}, fmt.Errorf("list entries: %w", err)
	}

	page := storage.EntryPage{Entries: entries}
	if len(entries) > pageSize {
		page.Entries = entries[:pageSize]
		last := page.Entries[pageSize-1]
		page.NextPageToken = encodePageToken(pageCursor{Sort: toMillis(last.CreatedAt), ID: last.ID})
	}
	return page, nil
}

var _ storage.Store = (*Store)(nil)

// Package sqlite provides a SQLite-backed accounts storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/studycommons/studycommons/internal/platform/storage/sqlitemigrate"
	"github.com/studycommons/studycommons/internal/services/accounts/storage"
	"github.com/studycommons/studycommons/internal/services/accounts/storage/sqlite/migrations"
	"github.com/studycommons/studycommons/internal/services/accounts/user"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists account state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite accounts store and applies embedded migrations.
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

// PutUser upserts one account user record.
func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is required")
	}

	var suspendedAt any
	if u.SuspendedAt != nil {
		suspendedAt = toMillis(*u.SuspendedAt)
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, display_name, bio, role, suspended_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   display_name = excluded.display_name,
		   bio = excluded.bio,
		   role = excluded.role,
		   suspended_at = excluded.suspended_at,
		   updated_at = excluded.updated_at`,
		u.ID,
		u.DisplayName,
		u.Bio,
		string(u.Role),
		suspendedAt,
		toMillis(u.CreatedAt),
		toMillis(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser returns one account user record by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return user.User{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return user.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, display_name, bio, role, suspended_at, created_at, updated_at
		 FROM users WHERE id = ?`,
		userID,
	)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var (
		u           user.User
		role        string
		suspendedAt sql.NullInt64
		createdAt   int64
		updatedAt   int64
	)
	err := row.Scan(&u.ID, &u.DisplayName, &u.Bio, &role, &suspendedAt, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, storage.ErrNotFound
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = user.Role(role)
	if suspendedAt.Valid {
		value := fromMillis(suspendedAt.Int64)
		u.SuspendedAt = &value
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return u, nil
}

// ListUsers returns one page of users ordered by ID.
func (s *Store) ListUsers(ctx context.Context, pageSize int, pageToken string) (storage.UserPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.UserPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UserPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 {
		return storage.UserPage{}, fmt.Errorf("page size must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, display_name, bio, role, suspended_at, created_at, updated_at
		 FROM users
		 WHERE id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		strings.TrimSpace(pageToken),
		pageSize+1,
	)
	if err != nil {
		return storage.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	page := storage.UserPage{Users: make([]user.User, 0, pageSize)}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return storage.UserPage{}, fmt.Errorf("list users: %w", err)
		}
		page.Users = append(page.Users, u)
	}
	if err := rows.Err(); err != nil {
		return storage.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	if len(page.Users) > pageSize {
		page.NextPageToken = page.Users[pageSize-1].ID
		page.Users = page.Users[:pageSize]
	}
	return page, nil
}

// CountUsers returns the total number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// PutUsername claims or updates one canonical username for a user.
func (s *Store) PutUsername(ctx context.Context, record storage.UsernameRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID := strings.TrimSpace(record.UserID)
	username := strings.TrimSpace(record.Username)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO usernames (user_id, username, created_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   username = excluded.username,
		   updated_at = excluded.updated_at`,
		userID,
		username,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUsernameUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put username: %w", err)
	}
	return nil
}

// GetUsernameByUserID fetches one canonical username claim by user ID.
func (s *Store) GetUsernameByUserID(ctx context.Context, userID string) (storage.UsernameRecord, error) {
	return s.getUsername(ctx, "user_id", userID)
}

// GetUsernameByUsername fetches one canonical username claim by username.
func (s *Store) GetUsernameByUsername(ctx context.Context, username string) (storage.UsernameRecord, error) {
	return s.getUsername(ctx, "username", username)
}

func (s *Store) getUsername(ctx context.Context, column string, value string) (storage.UsernameRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.UsernameRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.UsernameRecord{}, fmt.Errorf("storage is not configured")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return storage.UsernameRecord{}, fmt.Errorf("%s is required", column)
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT user_id, username, created_at, updated_at
		 FROM usernames WHERE `+column+` = ?`,
		value,
	)
	var (
		record    storage.UsernameRecord
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&record.UserID, &record.Username, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.UsernameRecord{}, storage.ErrNotFound
		}
		return storage.UsernameRecord{}, fmt.Errorf("get username: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// PutWebSession upserts one durable web session.
func (s *Store) PutWebSession(ctx context.Context, session storage.WebSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	var revokedAt any
	if session.RevokedAt != nil {
		revokedAt = toMillis(*session.RevokedAt)
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO web_sessions (id, user_id, created_at, expires_at, revoked_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   expires_at = excluded.expires_at,
		   revoked_at = excluded.revoked_at`,
		session.ID,
		session.UserID,
		toMillis(session.CreatedAt),
		toMillis(session.ExpiresAt),
		revokedAt,
	)
	if err != nil {
		return fmt.Errorf("put web session: %w", err)
	}
	return nil
}

// GetWebSession returns one durable web session by ID.
func (s *Store) GetWebSession(ctx context.Context, id string) (storage.WebSession, error) {
	if err := ctx.Err(); err != nil {
		return storage.WebSession{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.WebSession{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.WebSession{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, user_id, created_at, expires_at, revoked_at
		 FROM web_sessions WHERE id = ?`,
		id,
	)
	var (
		session   storage.WebSession
		createdAt int64
		expiresAt int64
		revokedAt sql.NullInt64
	)
	if err := row.Scan(&session.ID, &session.UserID, &createdAt, &expiresAt, &revokedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.WebSession{}, storage.ErrNotFound
		}
		return storage.WebSession{}, fmt.Errorf("get web session: %w", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	session.ExpiresAt = fromMillis(expiresAt)
	if revokedAt.Valid {
		value := fromMillis(revokedAt.Int64)
		session.RevokedAt = &value
	}
	return session, nil
}

// RevokeWebSession marks one web session revoked.
func (s *Store) RevokeWebSession(ctx context.Context, id string, revokedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("session id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE web_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		toMillis(revokedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("revoke web session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke web session: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteExpiredWebSessions removes sessions past their expiry.
func (s *Store) DeleteExpiredWebSessions(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM web_sessions WHERE expires_at < ?`,
		toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("delete expired web sessions: %w", err)
	}
	return nil
}

func isUsernameUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "usernames.username")
}

var _ storage.Store = (*Store)(nil)

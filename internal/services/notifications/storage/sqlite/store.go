// Package sqlite provides a SQLite-backed notifications storage implementation.
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
	"github.com/studycommons/studycommons/internal/services/notifications/storage"
	"github.com/studycommons/studycommons/internal/services/notifications/storage/sqlite/migrations"
)

// Store persists notifications in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite notifications store and applies embedded migrations.
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

// PutNotification inserts one notification into the feed.
func (s *Store) PutNotification(ctx context.Context, n storage.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("notification id is required")
	}
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("notification user id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO notifications (id, user_id, kind, title, body, ref_id, read_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
		 ON CONFLICT(id) DO NOTHING`,
		n.ID,
		n.UserID,
		n.Kind,
		n.Title,
		n.Body,
		n.RefID,
		toMillis(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	if inserted == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

const notificationColumns = "id, user_id, kind, title, body, ref_id, read_at, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (storage.Notification, error) {
	var n storage.Notification
	var readAt sql.NullInt64
	var createdAt int64
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.RefID, &readAt, &createdAt)
	if err != nil {
		return storage.Notification{}, err
	}
	if readAt.Valid {
		value := fromMillis(readAt.Int64)
		n.ReadAt = &value
	}
	n.CreatedAt = fromMillis(createdAt)
	return n, nil
}

// GetNotification returns one notification by ID.
func (s *Store) GetNotification(ctx context.Context, id string) (storage.Notification, error) {
	if err := ctx.Err(); err != nil {
		return storage.Notification{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Notification{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Notification{}, fmt.Errorf("notification id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`,
		id,
	)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Notification{}, storage.ErrNotFound
		}
		return storage.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
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

// ListNotifications returns a page of a user's feed, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, pageSize int, pageToken string) (storage.Page, error) {
	if err := ctx.Err(); err != nil {
		return storage.Page{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Page{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.Page{}, fmt.Errorf("user id is required")
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	sqlQuery := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	params := []any{userID}
	if unreadOnly {
		sqlQuery += ` AND read_at IS NULL`
	}
	if pageToken != "" {
		cursor, err := decodePageToken(pageToken)
		if err != nil {
			return storage.Page{}, err
		}
		sqlQuery += ` AND (created_at < ? OR (created_at = ? AND id > ?))`
		params = append(params, cursor.Sort, cursor.Sort, cursor.ID)
	}
	sqlQuery += ` ORDER BY created_at DESC, id ASC LIMIT ?`
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return storage.Page{}, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []storage.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return storage.Page{}, fmt.Errorf("list notifications: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return storage.Page{}, fmt.Errorf("list notifications: %w", err)
	}

	page := storage.Page{Notifications: notifications}
	if len(notifications) > pageSize {
		page.Notifications = notifications[:pageSize]
		last := page.Notifications[pageSize-1]
		page.NextPageToken = encodePageToken(pageCursor{Sort: toMillis(last.CreatedAt), ID: last.ID})
	}
	return page, nil
}

// MarkRead stamps a notification as read. Re-reading keeps the original time.
func (s *Store) MarkRead(ctx context.Context, id string, readAt time.Time) (storage.Notification, error) {
	if err := ctx.Err(); err != nil {
		return storage.Notification{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Notification{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Notification{}, fmt.Errorf("notification id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE notifications SET read_at = ? WHERE id = ? AND read_at IS NULL`,
		toMillis(readAt),
		id,
	)
	if err != nil {
		return storage.Notification{}, fmt.Errorf("mark read: %w", err)
	}
	return s.GetNotification(ctx, id)
}

// CountUnread returns the number of unread notifications for a user.
func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}

	var count int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

var _ storage.Store = (*Store)(nil)

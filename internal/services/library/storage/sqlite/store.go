// Package sqlite provides a SQLite-backed library storage implementation.
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
	"github.com/studycommons/studycommons/internal/services/library/resource"
	"github.com/studycommons/studycommons/internal/services/library/storage"
	"github.com/studycommons/studycommons/internal/services/library/storage/sqlite/migrations"
)

// Store persists library state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite library store and applies embedded migrations.
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

const resourceColumns = `id, owner_user_id, title, url, description, subject, level, tags, status, score, up_count, down_count, created_at, updated_at`

// PutResource upserts one resource record.
func (s *Store) PutResource(ctx context.Context, r resource.Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("resource id is required")
	}

	tagsJSON, err := json.Marshal(r.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO resources (`+resourceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   subject = excluded.subject,
		   level = excluded.level,
		   tags = excluded.tags,
		   status = excluded.status,
		   score = excluded.score,
		   up_count = excluded.up_count,
		   down_count = excluded.down_count,
		   updated_at = excluded.updated_at`,
		r.ID,
		r.OwnerUserID,
		r.Title,
		r.URL,
		r.Description,
		r.Subject,
		string(r.Level),
		string(tagsJSON),
		string(r.Status),
		r.Score,
		r.UpCount,
		r.DownCount,
		toMillis(r.CreatedAt),
		toMillis(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put resource: %w", err)
	}
	return nil
}

// GetResource returns one resource record.
func (s *Store) GetResource(ctx context.Context, resourceID string) (resource.Resource, error) {
	if err := ctx.Err(); err != nil {
		return resource.Resource{}, err
	}
	if s == nil || s.sqlDB == nil {
		return resource.Resource{}, fmt.Errorf("storage is not configured")
	}
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return resource.Resource{}, fmt.Errorf("resource id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ?`,
		resourceID,
	)
	return scanResource(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (resource.Resource, error) {
	var (
		r         resource.Resource
		level     string
		tagsJSON  string
		status    string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&r.ID,
		&r.OwnerUserID,
		&r.Title,
		&r.URL,
		&r.Description,
		&r.Subject,
		&level,
		&tagsJSON,
		&status,
		&r.Score,
		&r.UpCount,
		&r.DownCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return resource.Resource{}, storage.ErrNotFound
		}
		return resource.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	r.Level = resource.Level(level)
	r.Status = resource.Status(status)
	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &r.Tags); err != nil {
			return resource.Resource{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	r.CreatedAt = fromMillis(createdAt)
	r.UpdatedAt = fromMillis(updatedAt)
	return r, nil
}

// pageCursor is the decoded form of an opaque list page token. Order pins
// the token to the order_by it was minted under; the sort value is
// meaningless under any other ordering.
type pageCursor struct {
	Sort  int64  `json:"s"`
	ID    string `json:"id"`
	Order string `json:"o"`
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

// ListResources returns a filtered page of resources ordered by the query.
func (s *Store) ListResources(ctx context.Context, query storage.ListQuery) (storage.ResourcePage, error) {
	if err := ctx.Err(); err != nil {
		return storage.ResourcePage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ResourcePage{}, fmt.Errorf("storage is not configured")
	}

	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = storage.OrderByCreatedAtDesc
	}
	orderColumn := "created_at"
	switch orderBy {
	case storage.OrderByCreatedAtDesc:
	case storage.OrderByScoreDesc:
		orderColumn = "score"
	default:
		return storage.ResourcePage{}, fmt.Errorf("unsupported order_by: %s", query.OrderBy)
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
			return storage.ResourcePage{}, err
		}
		if cursor.Order != orderBy {
			return storage.ResourcePage{}, fmt.Errorf("page token was issued under order_by %q", cursor.Order)
		}
		clauses = append(clauses, fmt.Sprintf("(%s < ? OR (%s = ? AND id > ?))", orderColumn, orderColumn))
		params = append(params, cursor.Sort, cursor.Sort, cursor.ID)
	}

	sqlQuery := `SELECT ` + resourceColumns + ` FROM resources`
	if len(clauses) > 0 {
		sqlQuery += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	sqlQuery += fmt.Sprintf(` ORDER BY %s DESC, id ASC LIMIT ?`, orderColumn)
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, params...)
	if err != nil {
		return storage.ResourcePage{}, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []resource.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return storage.ResourcePage{}, fmt.Errorf("list resources: %w", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return storage.ResourcePage{}, fmt.Errorf("list resources: %w", err)
	}

	page := storage.ResourcePage{Resources: resources}
	if len(resources) > pageSize {
		page.Resources = resources[:pageSize]
		last := page.Resources[pageSize-1]
		sortValue := toMillis(last.CreatedAt)
		if orderColumn == "score" {
			sortValue = int64(last.Score)
		}
		page.NextPageToken = encodePageToken(pageCursor{Sort: sortValue, ID: last.ID, Order: orderBy})
	}
	return page, nil
}

// CountResources returns the total number of resource records.
func (s *Store) CountResources(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM resources`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return count, nil
}

var _ storage.Store = (*Store)(nil)

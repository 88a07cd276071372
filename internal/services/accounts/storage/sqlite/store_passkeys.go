package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/studycommons/studycommons/internal/services/accounts/storage"
)

// PutPasskeyCredential upserts one WebAuthn credential record.
func (s *Store) PutPasskeyCredential(ctx context.Context, credential storage.PasskeyCredential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(credential.CredentialID) == "" {
		return fmt.Errorf("credential id is required")
	}
	if strings.TrimSpace(credential.UserID) == "" {
		return fmt.Errorf("user id is required")
	}

	var lastUsedAt any
	if credential.LastUsedAt != nil {
		lastUsedAt = toMillis(*credential.LastUsedAt)
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO passkey_credentials (credential_id, user_id, credential_json, created_at, updated_at, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(credential_id) DO UPDATE SET
		   credential_json = excluded.credential_json,
		   updated_at = excluded.updated_at,
		   last_used_at = excluded.last_used_at`,
		credential.CredentialID,
		credential.UserID,
		credential.CredentialJSON,
		toMillis(credential.CreatedAt),
		toMillis(credential.UpdatedAt),
		lastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("put passkey credential: %w", err)
	}
	return nil
}

// GetPasskeyCredential returns one WebAuthn credential record.
func (s *Store) GetPasskeyCredential(ctx context.Context, credentialID string) (storage.PasskeyCredential, error) {
	if err := ctx.Err(); err != nil {
		return storage.PasskeyCredential{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PasskeyCredential{}, fmt.Errorf("storage is not configured")
	}
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return storage.PasskeyCredential{}, fmt.Errorf("credential id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT credential_id, user_id, credential_json, created_at, updated_at, last_used_at
		 FROM passkey_credentials WHERE credential_id = ?`,
		credentialID,
	)
	return scanPasskeyCredential(row)
}

// ListPasskeyCredentials returns every WebAuthn credential for a user.
func (s *Store) ListPasskeyCredentials(ctx context.Context, userID string) ([]storage.PasskeyCredential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT credential_id, user_id, credential_json, created_at, updated_at, last_used_at
		 FROM passkey_credentials
		 WHERE user_id = ?
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list passkey credentials: %w", err)
	}
	defer rows.Close()

	var credentials []storage.PasskeyCredential
	for rows.Next() {
		credential, err := scanPasskeyCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("list passkey credentials: %w", err)
		}
		credentials = append(credentials, credential)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list passkey credentials: %w", err)
	}
	return credentials, nil
}

// DeletePasskeyCredential removes one WebAuthn credential record.
func (s *Store) DeletePasskeyCredential(ctx context.Context, credentialID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return fmt.Errorf("credential id is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM passkey_credentials WHERE credential_id = ?`,
		credentialID,
	)
	if err != nil {
		return fmt.Errorf("delete passkey credential: %w", err)
	}
	return nil
}

func scanPasskeyCredential(row rowScanner) (storage.PasskeyCredential, error) {
	var (
		credential storage.PasskeyCredential
		createdAt  int64
		updatedAt  int64
		lastUsedAt sql.NullInt64
	)
	err := row.Scan(
		&credential.CredentialID,
		&credential.UserID,
		&credential.CredentialJSON,
		&createdAt,
		&updatedAt,
		&lastUsedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PasskeyCredential{}, storage.ErrNotFound
		}
		return storage.PasskeyCredential{}, fmt.Errorf("get passkey credential: %w", err)
	}
	credential.CreatedAt = fromMillis(createdAt)
	credential.UpdatedAt = fromMillis(updatedAt)
	if lastUsedAt.Valid {
		value := fromMillis(lastUsedAt.Int64)
		credential.LastUsedAt = &value
	}
	return credential, nil
}

// PutPasskeySession upserts one WebAuthn ceremony session.
func (s *Store) PutPasskeySession(ctx context.Context, session storage.PasskeySession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO passkey_sessions (id, kind, user_id, session_json, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   kind = excluded.kind,
		   user_id = excluded.user_id,
		   session_json = excluded.session_json,
		   expires_at = excluded.expires_at`,
		session.ID,
		session.Kind,
		session.UserID,
		session.SessionJSON,
		toMillis(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put passkey session: %w", err)
	}
	return nil
}

// GetPasskeySession returns one WebAuthn ceremony session by ID.
func (s *Store) GetPasskeySession(ctx context.Context, id string) (storage.PasskeySession, error) {
	if err := ctx.Err(); err != nil {
		return storage.PasskeySession{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PasskeySession{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.PasskeySession{}, fmt.Errorf("session id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, kind, user_id, session_json, expires_at
		 FROM passkey_sessions WHERE id = ?`,
		id,
	)
	var (
		session   storage.PasskeySession
		expiresAt int64
	)
	if err := row.Scan(&session.ID, &session.Kind, &session.UserID, &session.SessionJSON, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PasskeySession{}, storage.ErrNotFound
		}
		return storage.PasskeySession{}, fmt.Errorf("get passkey session: %w", err)
	}
	session.ExpiresAt = fromMillis(expiresAt)
	return session, nil
}

// DeletePasskeySession removes one WebAuthn ceremony session.
func (s *Store) DeletePasskeySession(ctx context.Context, id string) error {
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
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM passkey_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete passkey session: %w", err)
	}
	return nil
}

// DeleteExpiredPasskeySessions removes ceremony sessions past expiry.
func (s *Store) DeleteExpiredPasskeySessions(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM passkey_sessions WHERE expires_at < ?`,
		toMillis(now),
	)
	if err != nil {
		return fmt.Errorf("delete expired passkey sessions: %w", err)
	}
	return nil
}

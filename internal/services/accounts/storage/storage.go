// Package storage defines persistence contracts for account state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/studycommons/studycommons/internal/services/accounts/user"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict on insert.
var ErrAlreadyExists = errors.New("record already exists")

// UserStore persists account user records.
type UserStore interface {
	PutUser(ctx context.Context, u user.User) error
	GetUser(ctx context.Context, userID string) (user.User, error)
	ListUsers(ctx context.Context, pageSize int, pageToken string) (UserPage, error)
	CountUsers(ctx context.Context) (int, error)
}

// UserPage describes a page of user records.
type UserPage struct {
	Users         []user.User
	NextPageToken string
}

// UsernameRecord stores one canonical username claim.
type UsernameRecord struct {
	UserID    string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UsernameStore persists canonical username claims.
type UsernameStore interface {
	PutUsername(ctx context.Context, record UsernameRecord) error
	GetUsernameByUserID(ctx context.Context, userID string) (UsernameRecord, error)
	GetUsernameByUsername(ctx context.Context, username string) (UsernameRecord, error)
}

// WebSession stores a durable authenticated browser session.
type WebSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// WebSessionStore persists authenticated web sessions.
type WebSessionStore interface {
	PutWebSession(ctx context.Context, session WebSession) error
	GetWebSession(ctx context.Context, id string) (WebSession, error)
	RevokeWebSession(ctx context.Context, id string, revokedAt time.Time) error
	DeleteExpiredWebSessions(ctx context.Context, now time.Time) error
}

// PasskeyCredential stores a WebAuthn credential for a user.
type PasskeyCredential struct {
	CredentialID   string
	UserID         string
	CredentialJSON string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastUsedAt     *time.Time
}

// PasskeySession stores a WebAuthn registration or login session.
type PasskeySession struct {
	ID          string
	Kind        string
	UserID      string
	SessionJSON string
	ExpiresAt   time.Time
}

// PasskeyStore persists WebAuthn credential and session data.
type PasskeyStore interface {
	PutPasskeyCredential(ctx context.Context, credential PasskeyCredential) error
	GetPasskeyCredential(ctx context.Context, credentialID string) (PasskeyCredential, error)
	ListPasskeyCredentials(ctx context.Context, userID string) ([]PasskeyCredential, error)
	DeletePasskeyCredential(ctx context.Context, credentialID string) error
	PutPasskeySession(ctx context.Context, session PasskeySession) error
	GetPasskeySession(ctx context.Context, id string) (PasskeySession, error)
	DeletePasskeySession(ctx context.Context, id string) error
	DeleteExpiredPasskeySessions(ctx context.Context, now time.Time) error
}

// Store aggregates every account persistence contract.
type Store interface {
	UserStore
	UsernameStore
	WebSessionStore
	PasskeyStore
}

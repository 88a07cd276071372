package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/services/accounts/storage"
	"github.com/studycommons/studycommons/internal/services/accounts/user"
)

// Session pairs a durable web session with its resolved user.
type Session struct {
	Session storage.WebSession
	User    user.User
}

// CreateWebSession creates a durable authenticated web session for a user.
func (s *Service) CreateWebSession(ctx context.Context, userID string, ttl time.Duration) (Session, error) {
	if s.store == nil {
		return Session{}, fmt.Errorf("session store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Session{}, apperrors.New(apperrors.CodeUnauthenticated, "user id is required")
	}
	found, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Session{}, mapStorageError(err)
	}
	if found.Suspended() {
		return Session{}, apperrors.New(apperrors.CodeAccountSuspended, "account is suspended")
	}
	sessionID, err := s.idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate web session id: %w", err)
	}
	if ttl <= 0 {
		ttl = s.sessionTTL
	}
	now := s.clock().UTC()
	session := storage.WebSession{ID: sessionID, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	if err := s.store.PutWebSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("put web session: %w", err)
	}
	return Session{Session: session, User: found}, nil
}

// GetWebSession resolves a live web session by ID. Expired or revoked
// sessions resolve as not found.
func (s *Service) GetWebSession(ctx context.Context, sessionID string) (Session, error) {
	if s.store == nil {
		return Session{}, fmt.Errorf("session store is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Session{}, apperrors.New(apperrors.CodeNotFound, "session id is required")
	}
	session, err := s.store.GetWebSession(ctx, sessionID)
	if err != nil {
		return Session{}, mapStorageError(err)
	}
	now := s.clock().UTC()
	if session.RevokedAt != nil || !session.ExpiresAt.After(now) {
		return Session{}, apperrors.New(apperrors.CodeSessionExpired, "web session is no longer valid")
	}
	found, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		return Session{}, mapStorageError(err)
	}
	if found.Suspended() {
		return Session{}, apperrors.New(apperrors.CodeAccountSuspended, "account is suspended")
	}
	return Session{Session: session, User: found}, nil
}

// RevokeWebSession revokes a web session by ID. Revoking a missing session
// is a no-op.
func (s *Service) RevokeWebSession(ctx context.Context, sessionID string) error {
	if s.store == nil {
		return fmt.Errorf("session store is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	if err := s.store.RevokeWebSession(ctx, sessionID, s.clock().UTC()); err != nil {
		if err == storage.ErrNotFound {
			return nil
		}
		return fmt.Errorf("revoke web session: %w", err)
	}
	return nil
}

// AccessToken is a short-lived bearer token minted from a live web session.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
	User      user.User
}

// CreateAccessToken mints a bearer token for API calls from a live session.
func (s *Service) CreateAccessToken(ctx context.Context, sessionID string) (AccessToken, error) {
	session, err := s.GetWebSession(ctx, sessionID)
	if err != nil {
		return AccessToken{}, err
	}
	signed, expiresAt, err := s.tokens.Mint(session.User.ID, string(session.User.Role))
	if err != nil {
		return AccessToken{}, fmt.Errorf("mint access token: %w", err)
	}
	return AccessToken{Token: signed, ExpiresAt: expiresAt, User: session.User}, nil
}

// VerifyAccessToken validates a bearer token and returns its claims.
func (s *Service) VerifyAccessToken(tokenValue string) (string, string, error) {
	claims, err := s.tokens.Verify(tokenValue)
	if err != nil {
		return "", "", err
	}
	return claims.UserID, claims.Role, nil
}

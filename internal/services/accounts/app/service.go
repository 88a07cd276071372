// Package app implements the accounts domain service.
//
// It is the stable surface library, governance, and tooling call to perform
// identity actions without directly touching storage details.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
	"github.com/studycommons/studycommons/internal/services/accounts/passkey"
	"github.com/studycommons/studycommons/internal/services/accounts/storage"
	"github.com/studycommons/studycommons/internal/services/accounts/token"
	"github.com/studycommons/studycommons/internal/services/accounts/user"
	"github.com/studycommons/studycommons/internal/services/accounts/username"
)

const (
	defaultListUsersPageSize = 10
	maxListUsersPageSize     = 50

	defaultWebSessionTTL = 30 * 24 * time.Hour
)

// Service implements the accounts domain operations.
type Service struct {
	store           storage.Store
	tokens          token.Config
	passkeyConfig   passkey.Config
	passkeyWebAuthn passkeyProvider
	passkeyInitErr  error
	passkeyParser   passkeyParser
	sessionTTL      time.Duration
	clock           func() time.Time
	idGenerator     func() (string, error)
}

// New builds an accounts service with defaults.
//
// Defaults are intentionally assembled here so transport handlers can treat
// this as the canonical accounts domain entrypoint.
func New(store storage.Store, tokens token.Config) *Service {
	config := passkey.LoadConfigFromEnv()
	webAuthn, err := webauthn.New(&webauthn.Config{
		RPDisplayName: config.RPDisplayName,
		RPID:          config.RPID,
		RPOrigins:     config.RPOrigins,
	})
	return &Service{
		store:           store,
		tokens:          tokens,
		passkeyConfig:   config,
		passkeyWebAuthn: webAuthn,
		passkeyInitErr:  err,
		passkeyParser:   defaultPasskeyParser{},
		sessionTTL:      defaultWebSessionTTL,
		clock:           time.Now,
		idGenerator:     id.NewID,
	}
}

// CreateAccountInput describes a new account request.
type CreateAccountInput struct {
	DisplayName string
	Bio         string
	Username    string
}

// Account pairs a user with its claimed username, when present.
type Account struct {
	User     user.User
	Username string
}

// CreateAccount creates a user identity, optionally claiming a username.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if s.store == nil {
		return Account{}, fmt.Errorf("user store is not configured")
	}

	created, err := user.CreateUser(user.CreateUserInput{
		DisplayName: input.DisplayName,
		Bio:         input.Bio,
		Role:        user.RoleMember,
	}, s.clock, s.idGenerator)
	if err != nil {
		return Account{}, err
	}
	if err := s.store.PutUser(ctx, created); err != nil {
		return Account{}, fmt.Errorf("put user: %w", err)
	}

	account := Account{User: created}
	if strings.TrimSpace(input.Username) != "" {
		claimed, err := s.SetUsername(ctx, created.ID, input.Username)
		if err != nil {
			return Account{}, err
		}
		account.Username = claimed.Username
	}
	return account, nil
}

// GetAccount resolves a user ID to its identity and username.
func (s *Service) GetAccount(ctx context.Context, userID string) (Account, error) {
	if s.store == nil {
		return Account{}, fmt.Errorf("user store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Account{}, apperrors.New(apperrors.CodeNotFound, "user id is required")
	}
	found, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Account{}, mapStorageError(err)
	}
	account := Account{User: found}
	record, err := s.store.GetUsernameByUserID(ctx, userID)
	if err == nil {
		account.Username = record.Username
	} else if err != storage.ErrNotFound {
		return Account{}, fmt.Errorf("get username: %w", err)
	}
	return account, nil
}

// UpdateProfileInput describes mutable profile fields.
type UpdateProfileInput struct {
	DisplayName string
	Bio         string
}

// UpdateProfile updates display name and bio for a user.
func (s *Service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (user.User, error) {
	if s.store == nil {
		return user.User{}, fmt.Errorf("user store is not configured")
	}
	found, err := s.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return user.User{}, mapStorageError(err)
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if err := user.ValidateDisplayName(displayName); err != nil {
		return user.User{}, err
	}
	found.DisplayName = displayName
	found.Bio = strings.TrimSpace(input.Bio)
	found.UpdatedAt = s.clock().UTC()
	if err := s.store.PutUser(ctx, found); err != nil {
		return user.User{}, fmt.Errorf("put user: %w", err)
	}
	return found, nil
}

// SetUsername claims a canonical username for a user.
func (s *Service) SetUsername(ctx context.Context, userID, raw string) (storage.UsernameRecord, error) {
	if s.store == nil {
		return storage.UsernameRecord{}, fmt.Errorf("user store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.UsernameRecord{}, apperrors.New(apperrors.CodeNotFound, "user id is required")
	}
	canonical, err := username.Canonicalize(raw)
	if err != nil {
		return storage.UsernameRecord{}, apperrors.Wrap(apperrors.CodeUsernameInvalid, "username is invalid", err)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return storage.UsernameRecord{}, mapStorageError(err)
	}

	now := s.clock().UTC()
	record := storage.UsernameRecord{
		UserID:    userID,
		Username:  canonical,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := s.store.GetUsernameByUserID(ctx, userID); err == nil {
		record.CreatedAt = existing.CreatedAt
	}
	if err := s.store.PutUsername(ctx, record); err != nil {
		if err == storage.ErrAlreadyExists {
			return storage.UsernameRecord{}, apperrors.WithMetadata(
				apperrors.CodeUsernameTaken,
				"username is already claimed",
				map[string]string{"Username": canonical},
			)
		}
		return storage.UsernameRecord{}, fmt.Errorf("put username: %w", err)
	}
	return record, nil
}

// LookupUsername resolves a username to the account that claimed it.
func (s *Service) LookupUsername(ctx context.Context, raw string) (Account, error) {
	if s.store == nil {
		return Account{}, fmt.Errorf("user store is not configured")
	}
	canonical, err := username.Canonicalize(raw)
	if err != nil {
		return Account{}, apperrors.Wrap(apperrors.CodeUsernameInvalid, "username is invalid", err)
	}
	record, err := s.store.GetUsernameByUsername(ctx, canonical)
	if err != nil {
		return Account{}, mapStorageError(err)
	}
	found, err := s.store.GetUser(ctx, record.UserID)
	if err != nil {
		return Account{}, mapStorageError(err)
	}
	return Account{User: found, Username: record.Username}, nil
}

// ListUsers returns a page of user records.
func (s *Service) ListUsers(ctx context.Context, pageSize int, pageToken string) (storage.UserPage, error) {
	if s.store == nil {
		return storage.UserPage{}, fmt.Errorf("user store is not configured")
	}
	if pageSize <= 0 {
		pageSize = defaultListUsersPageSize
	}
	if pageSize > maxListUsersPageSize {
		pageSize = maxListUsersPageSize
	}
	page, err := s.store.ListUsers(ctx, pageSize, pageToken)
	if err != nil {
		return storage.UserPage{}, fmt.Errorf("list users: %w", err)
	}
	return page, nil
}

// CountUsers returns the total number of registered users.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("user store is not configured")
	}
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// SuspendUser marks a user suspended. Suspended users cannot authenticate.
func (s *Service) SuspendUser(ctx context.Context, userID string) (user.User, error) {
	return s.setSuspension(ctx, userID, true)
}

// ReinstateUser clears a user suspension.
func (s *Service) ReinstateUser(ctx context.Context, userID string) (user.User, error) {
	return s.setSuspension(ctx, userID, false)
}

func (s *Service) setSuspension(ctx context.Context, userID string, suspended bool) (user.User, error) {
	if s.store == nil {
		return user.User{}, fmt.Errorf("user store is not configured")
	}
	found, err := s.store.GetUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return user.User{}, mapStorageError(err)
	}
	now := s.clock().UTC()
	if suspended {
		found.SuspendedAt = &now
	} else {
		found.SuspendedAt = nil
	}
	found.UpdatedAt = now
	if err := s.store.PutUser(ctx, found); err != nil {
		return user.User{}, fmt.Errorf("put user: %w", err)
	}
	return found, nil
}

// mapStorageError translates storage sentinels to domain errors.
func mapStorageError(err error) error {
	switch err {
	case storage.ErrNotFound:
		return apperrors.Wrap(apperrors.CodeNotFound, "record not found", err)
	case storage.ErrAlreadyExists:
		return apperrors.Wrap(apperrors.CodeAlreadyExists, "record already exists", err)
	default:
		return err
	}
}

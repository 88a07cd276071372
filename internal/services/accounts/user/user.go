// Package user provides account identity management.
package user

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
)

// Role describes the authorization level of an account.
type Role string

const (
	// RoleMember is the default role for community accounts.
	RoleMember Role = "member"
	// RoleAdmin grants moderation and statistics operations.
	RoleAdmin Role = "admin"
)

// maxDisplayNameLength bounds display names to keep listings renderable.
const maxDisplayNameLength = 64

// ErrEmptyDisplayName indicates a missing display name.
var ErrEmptyDisplayName = apperrors.New(apperrors.CodeAccountEmptyDisplayName, "display name is required")

// User represents an account identity record.
type User struct {
	ID          string
	DisplayName string
	Bio         string
	Role        Role
	SuspendedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Suspended reports whether the account is currently suspended.
func (u User) Suspended() bool {
	return u.SuspendedAt != nil
}

// CreateUserInput describes the metadata needed to create a user.
type CreateUserInput struct {
	DisplayName string
	Bio         string
	Role        Role
}

// ValidateDisplayName enforces display name constraints used across the API
// and notification surfaces.
func ValidateDisplayName(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return ErrEmptyDisplayName
	}
	if len(s) > maxDisplayNameLength {
		return apperrors.WithMetadata(
			apperrors.CodeAccountEmptyDisplayName,
			"display name exceeds the allowed length",
			map[string]string{"MaxLength": fmt.Sprint(maxDisplayNameLength)},
		)
	}
	return nil
}

// ParseRole normalizes a role string, defaulting empty to member.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return RoleMember, nil
	case RoleMember:
		return RoleMember, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("role %q is not recognized", value)
	}
}

// CreateUser creates a durable user identity from validated input.
//
// The service layer treats this as the canonical point where untrusted
// profile data becomes a stable identity used by library, votes, and
// governance paths.
func CreateUser(input CreateUserInput, now func() time.Time, idGenerator func() (string, error)) (User, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if err := ValidateDisplayName(displayName); err != nil {
		return User{}, err
	}
	role := input.Role
	if role == "" {
		role = RoleMember
	}

	userID, err := idGenerator()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	createdAt := now().UTC()
	return User{
		ID:          userID,
		DisplayName: displayName,
		Bio:         strings.TrimSpace(input.Bio),
		Role:        role,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

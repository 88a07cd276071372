// Package app implements the admin service: moderation actions and
// community statistics.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/studycommons/studycommons/internal/services/accounts/user"
	"github.com/studycommons/studycommons/internal/services/library/resource"
)

// AccountDirectory manages account suspension and counts users.
type AccountDirectory interface {
	SuspendUser(ctx context.Context, userID string) (user.User, error)
	ReinstateUser(ctx context.Context, userID string) (user.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// ResourceModerator removes resources and counts library activity.
type ResourceModerator interface {
	Remove(ctx context.Context, resourceID, reason string) (resource.Resource, error)
	CountResources(ctx context.Context) (int, error)
	CountVotes(ctx context.Context) (int, error)
}

// ProposalCounter counts governance proposals.
type ProposalCounter interface {
	CountProposals(ctx context.Context) (int, error)
}

// Service implements admin operations on top of the domain services.
type Service struct {
	accounts   AccountDirectory
	library    ResourceModerator
	governance ProposalCounter
}

// New builds an admin service.
func New(accounts AccountDirectory, library ResourceModerator, governance ProposalCounter) *Service {
	return &Service{accounts: accounts, library: library, governance: governance}
}

// RemoveResource takes a resource down for moderation reasons. The library
// service notifies the owner and reverses the publication credit.
func (s *Service) RemoveResource(ctx context.Context, resourceID, reason string) (resource.Resource, error) {
	if s.library == nil {
		return resource.Resource{}, fmt.Errorf("library service is not configured")
	}
	return s.library.Remove(ctx, strings.TrimSpace(resourceID), reason)
}

// SuspendUser marks an account suspended.
func (s *Service) SuspendUser(ctx context.Context, userID string) (user.User, error) {
	if s.accounts == nil {
		return user.User{}, fmt.Errorf("accounts service is not configured")
	}
	return s.accounts.SuspendUser(ctx, strings.TrimSpace(userID))
}

// ReinstateUser clears an account suspension.
func (s *Service) ReinstateUser(ctx context.Context, userID string) (user.User, error) {
	if s.accounts == nil {
		return user.User{}, fmt.Errorf("accounts service is not configured")
	}
	return s.accounts.ReinstateUser(ctx, strings.TrimSpace(userID))
}

// Stats summarizes community activity.
type Stats struct {
	Users     int
	Resources int
	Votes     int
	Proposals int
}

// GetStats gathers counts across the domain services.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	if s.accounts == nil || s.library == nil || s.governance == nil {
		return Stats{}, fmt.Errorf("admin service is not fully configured")
	}

	var stats Stats
	var err error
	if stats.Users, err = s.accounts.CountUsers(ctx); err != nil {
		return Stats{}, fmt.Errorf("count users: %w", err)
	}
	if stats.Resources, err = s.library.CountResources(ctx); err != nil {
		return Stats{}, fmt.Errorf("count resources: %w", err)
	}
	if stats.Votes, err = s.library.CountVotes(ctx); err != nil {
		return Stats{}, fmt.Errorf("count votes: %w", err)
	}
	if stats.Proposals, err = s.governance.CountProposals(ctx); err != nil {
		return Stats{}, fmt.Errorf("count proposals: %w", err)
	}
	return stats, nil
}

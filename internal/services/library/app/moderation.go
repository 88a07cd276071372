package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/studycommons/studycommons/internal/services/library/resource"
)

// ReasonResourceRemoved reverses the publication award when moderation takes
// a resource down.
const ReasonResourceRemoved = "resource_removed"

// NotificationKindModeration marks moderation notifications in the feed.
const NotificationKindModeration = "library.moderation"

// Remove takes a resource down. The owner is notified with the moderation
// reason and the publication credit is reversed. Removing an already-removed
// resource is a no-op.
func (s *Service) Remove(ctx context.Context, resourceID, reason string) (resource.Resource, error) {
	found, err := s.Get(ctx, resourceID)
	if err != nil {
		return resource.Resource{}, err
	}
	if found.Status == resource.StatusRemoved {
		return found, nil
	}

	found.Status = resource.StatusRemoved
	found.UpdatedAt = s.clock().UTC()
	if err := s.store.PutResource(ctx, found); err != nil {
		return resource.Resource{}, fmt.Errorf("put resource: %w", err)
	}

	s.award(ctx, found.OwnerUserID, ReasonResourceRemoved, found.ID)
	body := strings.TrimSpace(reason)
	if body == "" {
		body = found.Title
	}
	s.notify(ctx, found.OwnerUserID, NotificationKindModeration, "notifications.RESOURCE_REMOVED_TITLE", body, found.ID)
	return found, nil
}

// CountResources returns the total number of stored resources.
func (s *Service) CountResources(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("resource store is not configured")
	}
	count, err := s.store.CountResources(ctx)
	if err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return count, nil
}

// CountVotes returns the total number of stored votes.
func (s *Service) CountVotes(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("resource store is not configured")
	}
	count, err := s.store.CountVotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

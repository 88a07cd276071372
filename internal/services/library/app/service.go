// Package app implements the library domain service: resource submission,
// listing, and vote orchestration.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
	"github.com/studycommons/studycommons/internal/platform/pagination"
	"github.com/studycommons/studycommons/internal/services/library/filter"
	"github.com/studycommons/studycommons/internal/services/library/linkmeta"
	"github.com/studycommons/studycommons/internal/services/library/resource"
	"github.com/studycommons/studycommons/internal/services/library/storage"
)

const (
	defaultListPageSize = 20
	maxListPageSize     = 100
)

// Award reasons emitted by library actions.
const (
	ReasonResourcePublished = "resource_published"
	ReasonVoteReceived      = "vote_received"
	ReasonVoteRevoked       = "vote_revoked"
	ReasonDownvoteReceived  = "downvote_received"
)

// TitleFetcher resolves page titles for submitted URLs.
type TitleFetcher interface {
	Title(ctx context.Context, url string) (string, error)
}

// CreditAwarder records reputation credit awards. Implementations are
// idempotent on (user, reason, ref).
type CreditAwarder interface {
	Award(ctx context.Context, userID, reason, refID string) error
}

// Notifier enqueues a user notification.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, body, refID string) error
}

// Service implements library domain operations.
type Service struct {
	store       storage.Store
	fetcher     TitleFetcher
	credits     CreditAwarder
	notifier    Notifier
	logger      *log.Logger
	clock       func() time.Time
	idGenerator func() (string, error)
}

// New builds a library service. Credits and notifier are optional; when nil
// the corresponding side effects are skipped.
func New(store storage.Store, credits CreditAwarder, notifier Notifier) *Service {
	return &Service{
		store:       store,
		fetcher:     linkmeta.NewFetcher(),
		credits:     credits,
		notifier:    notifier,
		logger:      log.New(log.Writer(), "[LIBRARY] ", log.LstdFlags),
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// SubmitInput describes a resource submission.
type SubmitInput struct {
	OwnerUserID string
	Title       string
	URL         string
	Description string
	Subject     string
	Level       string
	Tags        []string
}

// Submit validates a submission and publishes the resource. When the title
// is empty the submission fetcher extracts the page title from the URL.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (resource.Resource, error) {
	if s.store == nil {
		return resource.Resource{}, fmt.Errorf("resource store is not configured")
	}

	normalizedURL, err := resource.ValidateURL(input.URL)
	if err != nil {
		return resource.Resource{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" && s.fetcher != nil {
		fetched, fetchErr := s.fetcher.Title(ctx, normalizedURL)
		if fetchErr != nil {
			s.logger.Printf("fetch title for %s: %v", normalizedURL, fetchErr)
		}
		title = fetched
	}

	created, err := resource.Create(resource.CreateInput{
		OwnerUserID: input.OwnerUserID,
		Title:       title,
		URL:         normalizedURL,
		Description: input.Description,
		Subject:     input.Subject,
		Level:       input.Level,
		Tags:        input.Tags,
	}, s.clock, s.idGenerator)
	if err != nil {
		return resource.Resource{}, err
	}

	if err := s.store.PutResource(ctx, created); err != nil {
		return resource.Resource{}, fmt.Errorf("put resource: %w", err)
	}

	s.award(ctx, created.OwnerUserID, ReasonResourcePublished, created.ID)
	return created, nil
}

// Get returns one resource by ID.
func (s *Service) Get(ctx context.Context, resourceID string) (resource.Resource, error) {
	if s.store == nil {
		return resource.Resource{}, fmt.Errorf("resource store is not configured")
	}
	found, err := s.store.GetResource(ctx, strings.TrimSpace(resourceID))
	if err != nil {
		return resource.Resource{}, mapStorageError(err)
	}
	return found, nil
}

// UpdateInput describes mutable resource fields. The URL is immutable.
type UpdateInput struct {
	Title       string
	Description string
	Subject     string
	Level       string
	Tags        []string
}

// Update edits a resource. Only the owner may update, and removed resources
// reject updates.
func (s *Service) Update(ctx context.Context, resourceID, callerUserID string, input UpdateInput) (resource.Resource, error) {
	found, err := s.Get(ctx, resourceID)
	if err != nil {
		return resource.Resource{}, err
	}
	if found.OwnerUserID != callerUserID {
		return resource.Resource{}, apperrors.New(apperrors.CodeResourceNotOwner, "only the owner can update a resource")
	}
	if found.Status == resource.StatusRemoved {
		return resource.Resource{}, apperrors.New(apperrors.CodeResourceRemoved, "resource has been removed")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return resource.Resource{}, apperrors.New(apperrors.CodeResourceEmptyTitle, "resource title is required")
	}
	level, err := resource.ParseLevel(input.Level)
	if err != nil {
		return resource.Resource{}, err
	}

	found.Title = title
	found.Description = strings.TrimSpace(input.Description)
	found.Subject = strings.ToLower(strings.TrimSpace(input.Subject))
	found.Level = level
	found.Tags = resource.NormalizeTags(input.Tags)
	found.UpdatedAt = s.clock().UTC()

	if err := s.store.PutResource(ctx, found); err != nil {
		return resource.Resource{}, fmt.Errorf("put resource: %w", err)
	}
	return found, nil
}

// Archive removes a resource from listings. Only the owner may archive;
// archiving an already-removed resource is a no-op.
func (s *Service) Archive(ctx context.Context, resourceID, callerUserID string) (resource.Resource, error) {
	found, err := s.Get(ctx, resourceID)
	if err != nil {
		return resource.Resource{}, err
	}
	if found.OwnerUserID != callerUserID {
		return resource.Resource{}, apperrors.New(apperrors.CodeResourceNotOwner, "only the owner can archive a resource")
	}
	if found.Status == resource.StatusRemoved {
		return found, nil
	}
	found.Status = resource.StatusRemoved
	found.UpdatedAt = s.clock().UTC()
	if err := s.store.PutResource(ctx, found); err != nil {
		return resource.Resource{}, fmt.Errorf("put resource: %w", err)
	}
	return found, nil
}

// ListInput describes a resource listing request.
type ListInput struct {
	Filter    string
	OrderBy   string
	PageSize  int
	PageToken string
}

// List returns a filtered page of resources. Filter expressions use AIP-160
// syntax over subject, level, status, owner_user_id, score, and created_at.
func (s *Service) List(ctx context.Context, input ListInput) (storage.ResourcePage, error) {
	if s.store == nil {
		return storage.ResourcePage{}, fmt.Errorf("resource store is not configured")
	}

	condition, err := filter.ParseResourceFilter(input.Filter)
	if err != nil {
		return storage.ResourcePage{}, apperrors.Wrap(apperrors.CodeListInvalidFilter, "filter expression is invalid", err)
	}

	orderBy, err := pagination.NormalizeOrderBy(strings.TrimSpace(input.OrderBy), pagination.OrderByConfig{
		Default: storage.OrderByCreatedAtDesc,
		Allowed: []string{storage.OrderByCreatedAtDesc, storage.OrderByScoreDesc},
	})
	if err != nil {
		return storage.ResourcePage{}, apperrors.Wrap(apperrors.CodeListInvalidOrderBy, "order_by is invalid", err)
	}

	page, err := s.store.ListResources(ctx, storage.ListQuery{
		Where:   condition.Clause,
		Params:  condition.Params,
		OrderBy: orderBy,
		PageSize: pagination.ClampPageSize(input.PageSize, pagination.PageSizeConfig{
			Default: defaultListPageSize,
			Max:     maxListPageSize,
		}),
		PageToken: input.PageToken,
	})
	if err != nil {
		return storage.ResourcePage{}, fmt.Errorf("list resources: %w", err)
	}
	return page, nil
}

// award records a credit award, logging instead of failing the caller.
func (s *Service) award(ctx context.Context, userID, reason, refID string) {
	if s.credits == nil {
		return
	}
	if err := s.credits.Award(ctx, userID, reason, refID); err != nil {
		s.logger.Printf("award %s to %s: %v", reason, userID, err)
	}
}

// notify enqueues a notification, logging instead of failing the caller.
func (s *Service) notify(ctx context.Context, userID, kind, title, body, refID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, kind, title, body, refID); err != nil {
		s.logger.Printf("notify %s about %s: %v", userID, kind, err)
	}
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

// Package app implements the notifications service: the per-user feed and
// its live fan-out.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
	"github.com/studycommons/studycommons/internal/platform/pagination"
	"github.com/studycommons/studycommons/internal/services/notifications/storage"
)

const (
	defaultListPageSize = 20
	maxListPageSize     = 100
)

// Service implements notification feed operations.
type Service struct {
	store       storage.Store
	hub         *Hub
	clock       func() time.Time
	idGenerator func() (string, error)
}

// New builds a notifications service with its own fan-out hub.
func New(store storage.Store) *Service {
	return &Service{
		store:       store,
		hub:         NewHub(),
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Hub exposes the live feed hub for transport subscribers.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Notify persists a notification and fans it out to live feed subscribers.
// Title is a message catalog key; body carries literal context.
func (s *Service) Notify(ctx context.Context, userID, kind, title, body, refID string) error {
	if s.store == nil {
		return fmt.Errorf("notifications store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("notification user id is required")
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("notification title is required")
	}

	notificationID, err := s.idGenerator()
	if err != nil {
		return fmt.Errorf("generate notification id: %w", err)
	}

	n := storage.Notification{
		ID:        notificationID,
		UserID:    userID,
		Kind:      strings.TrimSpace(kind),
		Title:     strings.TrimSpace(title),
		Body:      strings.TrimSpace(body),
		RefID:     strings.TrimSpace(refID),
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.PutNotification(ctx, n); err != nil {
		return fmt.Errorf("put notification: %w", err)
	}

	s.hub.Publish(n)
	return nil
}

// ListInput describes a feed listing request.
type ListInput struct {
	UserID     string
	UnreadOnly bool
	PageSize   int
	PageToken  string
}

// List returns a page of the caller's feed, newest first.
func (s *Service) List(ctx context.Context, input ListInput) (storage.Page, error) {
	if s.store == nil {
		return storage.Page{}, fmt.Errorf("notifications store is not configured")
	}
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return storage.Page{}, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}

	pageSize := pagination.ClampPageSize(input.PageSize, pagination.PageSizeConfig{
		Default: defaultListPageSize,
		Max:     maxListPageSize,
	})
	page, err := s.store.ListNotifications(ctx, userID, input.UnreadOnly, pageSize, input.PageToken)
	if err != nil {
		return storage.Page{}, fmt.Errorf("list notifications: %w", err)
	}
	return page, nil
}

// Open marks one of the caller's notifications as read.
func (s *Service) Open(ctx context.Context, notificationID, callerUserID string) (storage.Notification, error) {
	if s.store == nil {
		return storage.Notification{}, fmt.Errorf("notifications store is not configured")
	}
	callerUserID = strings.TrimSpace(callerUserID)
	if callerUserID == "" {
		return storage.Notification{}, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}

	found, err := s.store.GetNotification(ctx, strings.TrimSpace(notificationID))
	if err != nil {
		return storage.Notification{}, mapStorageError(err)
	}
	if found.UserID != callerUserID {
		return storage.Notification{}, apperrors.New(apperrors.CodePermissionDenied, "notification belongs to another user")
	}
	if found.ReadAt != nil {
		return found, nil
	}

	marked, err := s.store.MarkRead(ctx, found.ID, s.clock().UTC())
	if err != nil {
		return storage.Notification{}, mapStorageError(err)
	}
	return marked, nil
}

// UnreadCount returns the caller's unread notification count.
func (s *Service) UnreadCount(ctx context.Context, callerUserID string) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("notifications store is not configured")
	}
	callerUserID = strings.TrimSpace(callerUserID)
	if callerUserID == "" {
		return 0, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}
	count, err := s.store.CountUnread(ctx, callerUserID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
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

// Package storage defines the notifications persistence contract.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested notification does not exist.
var ErrNotFound = errors.New("notification not found")

// ErrAlreadyExists indicates a notification with the same ID exists.
var ErrAlreadyExists = errors.New("notification already exists")

// Notification is one entry in a user's feed. Title holds a message catalog
// key; Body holds literal context such as a resource or proposal title.
type Notification struct {
	ID        string
	UserID    string
	Kind      string
	Title     string
	Body      string
	RefID     string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// Page is one page of a user's feed, newest first.
type Page struct {
	Notifications []Notification
	NextPageToken string
}

// Store persists notifications.
type Store interface {
	// PutNotification inserts a notification. A duplicate ID returns
	// ErrAlreadyExists.
	PutNotification(ctx context.Context, n Notification) error

	// GetNotification returns one notification by ID.
	GetNotification(ctx context.Context, id string) (Notification, error)

	// ListNotifications returns a page of a user's feed, newest first.
	// When unreadOnly is set, read notifications are excluded.
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, pageSize int, pageToken string) (Page, error)

	// MarkRead stamps a notification as read. Marking an already-read
	// notification keeps the original read time.
	MarkRead(ctx context.Context, id string, readAt time.Time) (Notification, error)

	// CountUnread returns the number of unread notifications for a user.
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Package storage defines the credits persistence contract.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a duplicate award for the same
	// (user, reason, ref) key.
	ErrAlreadyExists = errors.New("already exists")
)

// Entry is one append-only ledger line.
type Entry struct {
	ID        string
	UserID    string
	Reason    string
	RefID     string
	Delta     int
	CreatedAt time.Time
}

// Balance is the running credit total for a user.
type Balance struct {
	UserID    string
	Total     int
	UpdatedAt time.Time
}

// EntryPage is one page of ledger entries, newest first.
type EntryPage struct {
	Entries       []Entry
	NextPageToken string
}

// Store persists ledger entries and running balances.
type Store interface {
	// AddEntry appends a ledger entry and moves the user's balance in the
	// same transaction. A duplicate (user, reason, ref) key returns
	// ErrAlreadyExists with no ledger change.
	AddEntry(ctx context.Context, entry Entry) (Balance, error)

	// GetBalance returns the running total for a user. A user with no
	// entries returns ErrNotFound.
	GetBalance(ctx context.Context, userID string) (Balance, error)

	// ListEntries returns a page of a user's ledger, newest first.
	ListEntries(ctx context.Context, userID string, pageSize int, pageToken string) (EntryPage, error)
}

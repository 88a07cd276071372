// Package storage defines persistence contracts for library state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/studycommons/studycommons/internal/services/library/resource"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict on insert.
var ErrAlreadyExists = errors.New("record already exists")

// OrderBy values accepted by ListResources.
const (
	OrderByCreatedAtDesc = "created_at desc"
	OrderByScoreDesc     = "score desc"
)

// ListQuery describes a filtered, ordered, paginated resource listing.
type ListQuery struct {
	// Where is a SQL condition fragment over resource columns; empty means
	// no filtering.
	Where string
	// Params are positional parameters for Where.
	Params []any
	// OrderBy is one of the OrderBy constants.
	OrderBy   string
	PageSize  int
	PageToken string
}

// ResourcePage is one page of a resource listing.
type ResourcePage struct {
	Resources     []resource.Resource
	NextPageToken string
}

// ResourceStore persists educational resource records.
type ResourceStore interface {
	PutResource(ctx context.Context, r resource.Resource) error
	GetResource(ctx context.Context, resourceID string) (resource.Resource, error)
	ListResources(ctx context.Context, query ListQuery) (ResourcePage, error)
	CountResources(ctx context.Context) (int, error)
}

// Vote is one user's vote on one resource.
type Vote struct {
	ResourceID  string
	VoterUserID string
	Value       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VoteChange reports a vote transition and the resource tallies after it.
type VoteChange struct {
	// Previous is the prior vote value, 0 when there was none.
	Previous int
	// Current is the vote value after the change, 0 when cleared.
	Current int
	// Resource is the resource record after the tally update.
	Resource resource.Resource
}

// VoteStore persists votes. Implementations update the resource score and
// tally columns in the same transaction as the vote row change.
type VoteStore interface {
	SetVote(ctx context.Context, vote Vote) (VoteChange, error)
	ClearVote(ctx context.Context, resourceID, voterUserID string, now time.Time) (VoteChange, error)
	GetVote(ctx context.Context, resourceID, voterUserID string) (Vote, error)
	CountVotes(ctx context.Context) (int, error)
}

// Store aggregates every library persistence contract.
type Store interface {
	ResourceStore
	VoteStore
}

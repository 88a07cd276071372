// Package app implements the reputation credit ledger service.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
	"github.com/studycommons/studycommons/internal/platform/pagination"
	"github.com/studycommons/studycommons/internal/services/credits/rules"
	"github.com/studycommons/studycommons/internal/services/credits/storage"
)

const (
	defaultListPageSize = 20
	maxListPageSize     = 100
)

// Service implements credit ledger operations.
type Service struct {
	store       storage.Store
	engine      *rules.Engine
	clock       func() time.Time
	idGenerator func() (string, error)
}

// New builds a credits service around a store and a rules engine.
func New(store storage.Store, engine *rules.Engine) *Service {
	return &Service{
		store:       store,
		engine:      engine,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// Award appends a ledger entry for a reason. The delta comes from the rules
// engine. Re-awarding the same (user, reason, ref) key is a silent no-op.
func (s *Service) Award(ctx context.Context, userID, reason, refID string) error {
	if s.store == nil {
		return fmt.Errorf("credits store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	delta, err := s.engine.Delta(reason)
	if err != nil {
		return err
	}
	entryID, err := s.idGenerator()
	if err != nil {
		return fmt.Errorf("generate entry id: %w", err)
	}

	_, err = s.store.AddEntry(ctx, storage.Entry{
		ID:        entryID,
		UserID:    userID,
		Reason:    reason,
		RefID:     strings.TrimSpace(refID),
		Delta:     delta,
		CreatedAt: s.clock().UTC(),
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("add entry: %w", err)
	}
	return nil
}

// GetBalance returns the running total for a user. A user with no ledger
// entries has a zero balance.
func (s *Service) GetBalance(ctx context.Context, userID string) (storage.Balance, error) {
	if s.store == nil {
		return storage.Balance{}, fmt.Errorf("credits store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.Balance{}, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}

	balance, err := s.store.GetBalance(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Balance{UserID: userID}, nil
	}
	if err != nil {
		return storage.Balance{}, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// ListEntries returns a page of a user's ledger, newest first.
func (s *Service) ListEntries(ctx context.Context, userID string, pageSize int, pageToken string) (storage.EntryPage, error) {
	if s.store == nil {
		return storage.EntryPage{}, fmt.Errorf("credits store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.EntryPage{}, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}

	page, err := s.store.ListEntries(ctx, userID, pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{
		Default: defaultListPageSize,
		Max:     maxListPageSize,
	}), pageToken)
	if err != nil {
		return storage.EntryPage{}, fmt.Errorf("list entries: %w", err)
	}
	return page, nil
}

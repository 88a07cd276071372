// Package app implements the governance service: proposals, ballots, and
// voting outcomes.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/studycommons/studycommons/internal/platform/config"
	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
	"github.com/studycommons/studycommons/internal/platform/pagination"
	creditstorage "github.com/studycommons/studycommons/internal/services/credits/storage"
	"github.com/studycommons/studycommons/internal/services/governance/filter"
	"github.com/studycommons/studycommons/internal/services/governance/proposal"
	"github.com/studycommons/studycommons/internal/services/governance/storage"
)

const (
	defaultListPageSize = 20
	maxListPageSize     = 100

	defaultQuorum         = 3
	defaultMinVoteBalance = 10
	defaultVotingWindow   = 7 * 24 * time.Hour

	adminRole = "admin"
)

// ReasonProposalPassed is the credit award reason for a passed proposal.
const ReasonProposalPassed = "proposal_passed"

// NotificationKindProposal marks proposal outcome notifications in the feed.
const NotificationKindProposal = "governance.proposal"

// Config tunes voting thresholds. Zero values fall back to defaults.
type Config struct {
	// Quorum is the minimum total participation for a proposal to pass.
	Quorum int `env:"STUDY_COMMONS_GOVERNANCE_QUORUM"`
	// MinVoteBalance is the reputation balance required to cast a ballot.
	MinVoteBalance int `env:"STUDY_COMMONS_GOVERNANCE_MIN_VOTE_BALANCE"`
}

// LoadConfigFromEnv reads governance thresholds from the environment.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{}
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// CreditService reads reputation balances and records awards.
type CreditService interface {
	Award(ctx context.Context, userID, reason, refID string) error
	GetBalance(ctx context.Context, userID string) (creditstorage.Balance, error)
}

// Notifier enqueues a user notification.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, title, body, refID string) error
}

// Service implements governance domain operations.
type Service struct {
	store          storage.Store
	credits        CreditService
	notifier       Notifier
	quorum         int
	minVoteBalance int
	logger         *log.Logger
	clock          func() time.Time
	idGenerator    func() (string, error)
}

// New builds a governance service. Credits and notifier are optional; when
// nil the balance check and notifications are skipped.
func New(store storage.Store, credits CreditService, notifier Notifier, cfg Config) *Service {
	quorum := cfg.Quorum
	if quorum <= 0 {
		quorum = defaultQuorum
	}
	minVoteBalance := cfg.MinVoteBalance
	if minVoteBalance <= 0 {
		minVoteBalance = defaultMinVoteBalance
	}
	return &Service{
		store:          store,
		credits:        credits,
		notifier:       notifier,
		quorum:         quorum,
		minVoteBalance: minVoteBalance,
		logger:         log.New(log.Writer(), "[GOVERNANCE] ", log.LstdFlags),
		clock:          time.Now,
		idGenerator:    id.NewID,
	}
}

// CreateInput describes a new proposal draft.
type CreateInput struct {
	AuthorUserID string
	Title        string
	Body         string
}

// CreateProposal records a new draft proposal.
func (s *Service) CreateProposal(ctx context.Context, input CreateInput) (proposal.Proposal, error) {
	if s.store == nil {
		return proposal.Proposal{}, fmt.Errorf("governance store is not configured")
	}

	created, err := proposal.Create(proposal.CreateInput{
		AuthorUserID: input.AuthorUserID,
		Title:        input.Title,
		Body:         input.Body,
	}, s.clock, s.idGenerator)
	if err != nil {
		return proposal.Proposal{}, err
	}

	if err := s.store.PutProposal(ctx, created); err != nil {
		return proposal.Proposal{}, fmt.Errorf("put proposal: %w", err)
	}
	return created, nil
}

// Get returns one proposal. An open proposal whose window has passed is
// closed on read.
func (s *Service) Get(ctx context.Context, proposalID string) (proposal.Proposal, error) {
	if s.store == nil {
		return proposal.Proposal{}, fmt.Errorf("governance store is not configured")
	}
	found, err := s.store.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return proposal.Proposal{}, mapStorageError(err)
	}
	if found.Status == proposal.StatusOpen && found.VotingEnded(s.clock().UTC()) {
		return s.closeProposal(ctx, found)
	}
	return found, nil
}

// ListInput describes a proposal listing request.
type ListInput struct {
	Filter    string
	PageSize  int
	PageToken string
}

// List returns a filtered page of proposals, newest first. Expired open
// proposals are presented as closed; the stored row settles on the next Get
// or ballot.
func (s *Service) List(ctx context.Context, input ListInput) (storage.ProposalPage, error) {
	if s.store == nil {
		return storage.ProposalPage{}, fmt.Errorf("governance store is not configured")
	}

	condition, err := filter.ParseProposalFilter(input.Filter)
	if err != nil {
		return storage.ProposalPage{}, apperrors.Wrap(apperrors.CodeListInvalidFilter, "filter expression is invalid", err)
	}

	page, err := s.store.ListProposals(ctx, storage.ListQuery{
		Where:   condition.Clause,
		Params:  condition.Params,
		OrderBy: storage.OrderByCreatedAtDesc,
		PageSize: pagination.ClampPageSize(input.PageSize, pagination.PageSizeConfig{
			Default: defaultListPageSize,
			Max:     maxListPageSize,
		}),
		PageToken: input.PageToken,
	})
	if err != nil {
		return storage.ProposalPage{}, fmt.Errorf("list proposals: %w", err)
	}

	now := s.clock().UTC()
	for i, p := range page.Proposals {
		if p.Status == proposal.StatusOpen && p.VotingEnded(now) {
			p.Status = proposal.StatusClosed
			p.Outcome = proposal.Decide(p, s.quorum)
			page.Proposals[i] = p
		}
	}
	return page, nil
}

// OpenVoting moves a draft proposal into its voting window. Only the author
// or an admin may open voting. A zero closesAt defaults to one week out.
func (s *Service) OpenVoting(ctx context.Context, proposalID, callerUserID, callerRole string, closesAt time.Time) (proposal.Proposal, error) {
	found, err := s.Get(ctx, proposalID)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if err := requireAuthorOrAdmin(found, callerUserID, callerRole); err != nil {
		return proposal.Proposal{}, err
	}
	if found.Status != proposal.StatusDraft {
		return proposal.Proposal{}, apperrors.WithMetadata(
			apperrors.CodeProposalInvalidStatus,
			"only draft proposals can open voting",
			map[string]string{"Status": string(found.Status)},
		)
	}

	now := s.clock().UTC()
	if closesAt.IsZero() {
		closesAt = now.Add(defaultVotingWindow)
	}
	if !closesAt.After(now) {
		return proposal.Proposal{}, apperrors.New(apperrors.CodeProposalInvalidWindow, "closes_at must be in the future")
	}

	found.Status = proposal.StatusOpen
	found.OpensAt = now
	found.ClosesAt = closesAt.UTC()
	found.UpdatedAt = now
	if err := s.store.PutProposal(ctx, found); err != nil {
		return proposal.Proposal{}, fmt.Errorf("put proposal: %w", err)
	}
	return found, nil
}

// CloseVoting ends a proposal's voting window early and settles the outcome.
// Only the author or an admin may close voting.
func (s *Service) CloseVoting(ctx context.Context, proposalID, callerUserID, callerRole string) (proposal.Proposal, error) {
	found, err := s.Get(ctx, proposalID)
	if err != nil {
		return proposal.Proposal{}, err
	}
	if found.Status == proposal.StatusClosed {
		return found, nil
	}
	if err := requireAuthorOrAdmin(found, callerUserID, callerRole); err != nil {
		return proposal.Proposal{}, err
	}
	if found.Status != proposal.StatusOpen {
		return proposal.Proposal{}, apperrors.WithMetadata(
			apperrors.CodeProposalInvalidStatus,
			"only open proposals can close voting",
			map[string]string{"Status": string(found.Status)},
		)
	}
	return s.closeProposal(ctx, found)
}

// closeProposal settles the outcome, persists the closed row, and runs the
// award and notification side effects.
func (s *Service) closeProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	p.Status = proposal.StatusClosed
	p.Outcome = proposal.Decide(p, s.quorum)
	p.UpdatedAt = s.clock().UTC()
	if err := s.store.PutProposal(ctx, p); err != nil {
		return proposal.Proposal{}, fmt.Errorf("put proposal: %w", err)
	}

	titleKey := "notifications.PROPOSAL_REJECTED_TITLE"
	if p.Outcome == proposal.OutcomePassed {
		titleKey = "notifications.PROPOSAL_PASSED_TITLE"
		if s.credits != nil {
			if err := s.credits.Award(ctx, p.AuthorUserID, ReasonProposalPassed, p.ID); err != nil {
				s.logger.Printf("award %s to %s: %v", ReasonProposalPassed, p.AuthorUserID, err)
			}
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, p.AuthorUserID, NotificationKindProposal, titleKey, p.Title, p.ID); err != nil {
			s.logger.Printf("notify %s about %s: %v", p.AuthorUserID, NotificationKindProposal, err)
		}
	}
	return p, nil
}

// CountProposals returns the total number of stored proposals.
func (s *Service) CountProposals(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, fmt.Errorf("governance store is not configured")
	}
	count, err := s.store.CountProposals(ctx)
	if err != nil {
		return 0, fmt.Errorf("count proposals: %w", err)
	}
	return count, nil
}

func requireAuthorOrAdmin(p proposal.Proposal, callerUserID, callerRole string) error {
	if callerUserID == "" {
		return apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}
	if p.AuthorUserID != callerUserID && callerRole != adminRole {
		return apperrors.New(apperrors.CodePermissionDenied, "only the author or an admin can manage voting")
	}
	return nil
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

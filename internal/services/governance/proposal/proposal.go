// Package proposal defines the governance proposal domain model.
package proposal

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
)

// Status describes the lifecycle state of a proposal.
type Status string

const (
	// StatusDraft marks a proposal before voting opens.
	StatusDraft Status = "draft"
	// StatusOpen marks a proposal accepting ballots.
	StatusOpen Status = "open"
	// StatusClosed marks a proposal after voting ended.
	StatusClosed Status = "closed"
)

// Outcome describes the result of a closed proposal.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomePassed   Outcome = "passed"
	OutcomeRejected Outcome = "rejected"
)

// Choice is one ballot position.
type Choice string

const (
	ChoiceYes     Choice = "yes"
	ChoiceNo      Choice = "no"
	ChoiceAbstain Choice = "abstain"
)

const (
	maxTitleLength = 200
	maxBodyLength  = 10000
)

// Proposal is a community governance proposal.
type Proposal struct {
	ID           string
	AuthorUserID string
	Title        string
	Body         string
	Status       Status
	OpensAt      time.Time
	ClosesAt     time.Time
	YesCount     int
	NoCount      int
	AbstainCount int
	Outcome      Outcome
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ballot is one voter's position on a proposal.
type Ballot struct {
	ProposalID  string
	VoterUserID string
	Choice      Choice
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// ParseChoice validates a ballot choice string.
func ParseChoice(value string) (Choice, error) {
	switch Choice(strings.ToLower(strings.TrimSpace(value))) {
	case ChoiceYes:
		return ChoiceYes, nil
	case ChoiceNo:
		return ChoiceNo, nil
	case ChoiceAbstain:
		return ChoiceAbstain, nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeBallotInvalidChoice,
			"ballot choice is not recognized",
			map[string]string{"Choice": value},
		)
	}
}

// ParseStatus validates a proposal status string.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusDraft:
		return StatusDraft, nil
	case StatusOpen:
		return StatusOpen, nil
	case StatusClosed:
		return StatusClosed, nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeProposalInvalidStatus,
			"proposal status is not recognized",
			map[string]string{"Status": value},
		)
	}
}

// Decide computes the outcome of a closed proposal. A proposal passes when
// yes strictly beats no and total participation reaches the quorum.
func Decide(p Proposal, quorum int) Outcome {
	total := p.YesCount + p.NoCount + p.AbstainCount
	if p.YesCount > p.NoCount && total >= quorum {
		return OutcomePassed
	}
	return OutcomeRejected
}

// VotingEnded reports whether the voting window has passed.
func (p Proposal) VotingEnded(now time.Time) bool {
	return !p.ClosesAt.IsZero() && !now.Before(p.ClosesAt)
}

// CreateInput describes a new proposal draft.
type CreateInput struct {
	AuthorUserID string
	Title        string
	Body         string
}

// Create builds a new draft proposal.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Proposal, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	authorUserID := strings.TrimSpace(input.AuthorUserID)
	if authorUserID == "" {
		return Proposal{}, fmt.Errorf("author user id is required")
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Proposal{}, apperrors.New(apperrors.CodeProposalEmptyTitle, "proposal title is required")
	}
	title = truncate(title, maxTitleLength)

	body := truncate(strings.TrimSpace(input.Body), maxBodyLength)

	proposalID, err := idGenerator()
	if err != nil {
		return Proposal{}, fmt.Errorf("generate proposal id: %w", err)
	}

	createdAt := now().UTC()
	return Proposal{
		ID:           proposalID,
		AuthorUserID: authorUserID,
		Title:        title,
		Body:         body,
		Status:       StatusDraft,
		Outcome:      OutcomePending,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

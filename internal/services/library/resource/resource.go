// Package resource defines the educational resource domain model.
package resource

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/studycommons/studycommons/internal/platform/errors"
	"github.com/studycommons/studycommons/internal/platform/id"
)

// Status describes the lifecycle state of a resource.
type Status string

const (
	// StatusPending marks a submission before publication.
	StatusPending Status = "pending"
	// StatusPublished marks a resource visible in listings.
	StatusPublished Status = "published"
	// StatusRemoved marks a resource taken down by its owner or a moderator.
	StatusRemoved Status = "removed"
)

// Level describes the intended audience of a resource.
type Level string

const (
	LevelIntro        Level = "intro"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 4000
	maxTags              = 10
)

// Resource is a community-submitted educational link.
type Resource struct {
	ID          string
	OwnerUserID string
	Title       string
	URL         string
	Description string
	Subject     string
	Level       Level
	Tags        []string
	Status      Status
	Score       int
	UpCount     int
	DownCount   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ParseStatus validates a status string.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, nil
	case StatusPublished:
		return StatusPublished, nil
	case StatusRemoved:
		return StatusRemoved, nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeResourceInvalidStatus,
			"resource status is not recognized",
			map[string]string{"Status": value},
		)
	}
}

// ParseLevel validates a level string, defaulting empty to intro.
func ParseLevel(value string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return LevelIntro, nil
	case LevelIntro:
		return LevelIntro, nil
	case LevelIntermediate:
		return LevelIntermediate, nil
	case LevelAdvanced:
		return LevelAdvanced, nil
	default:
		return "", apperrors.WithMetadata(
			apperrors.CodeResourceInvalidLevel,
			"resource level is not recognized",
			map[string]string{"Level": value},
		)
	}
}

// ValidateURL checks that a submission URL is a fetchable http(s) address.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperrors.New(apperrors.CodeResourceEmptyURL, "resource url is required")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeResourceInvalidURL, "resource url is invalid", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", apperrors.WithMetadata(
			apperrors.CodeResourceInvalidURL,
			"resource url scheme must be http or https",
			map[string]string{"Scheme": parsed.Scheme},
		)
	}
	if parsed.Host == "" {
		return "", apperrors.New(apperrors.CodeResourceInvalidURL, "resource url host is required")
	}
	return parsed.String(), nil
}

// NormalizeTags trims, lowercases, and dedupes tags.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
		if len(out) == maxTags {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
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

// CreateInput describes a validated submission.
type CreateInput struct {
	OwnerUserID string
	Title       string
	URL         string
	Description string
	Subject     string
	Level       string
	Tags        []string
}

// Create builds a new resource record from a submission.
//
// New resources publish immediately; moderation happens after the fact
// through the admin surface.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Resource, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	ownerUserID := strings.TrimSpace(input.OwnerUserID)
	if ownerUserID == "" {
		return Resource{}, fmt.Errorf("owner user id is required")
	}

	normalizedURL, err := ValidateURL(input.URL)
	if err != nil {
		return Resource{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Resource{}, apperrors.New(apperrors.CodeResourceEmptyTitle, "resource title is required")
	}
	title = truncate(title, maxTitleLength)

	description := strings.TrimSpace(input.Description)
	description = truncate(description, maxDescriptionLength)

	level, err := ParseLevel(input.Level)
	if err != nil {
		return Resource{}, err
	}

	resourceID, err := idGenerator()
	if err != nil {
		return Resource{}, fmt.Errorf("generate resource id: %w", err)
	}

	createdAt := now().UTC()
	return Resource{
		ID:          resourceID,
		OwnerUserID: ownerUserID,
		Title:       title,
		URL:         normalizedURL,
		Description: description,
		Subject:     strings.ToLower(strings.TrimSpace(input.Subject)),
		Level:       level,
		Tags:        NormalizeTags(input.Tags),
		Status:      StatusPublished,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

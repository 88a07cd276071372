package resource

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestCreatePublishesImmediately(t *testing.T) {
	created, err := Create(CreateInput{
		OwnerUserID: "user-1",
		Title:       "Linear Algebra Notes",
		URL:         "https://example.com/notes",
		Subject:     "Math",
		Tags:        []string{"Algebra", "algebra", ""},
	}, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusPublished {
		t.Fatalf("status = %q, want %q", created.Status, StatusPublished)
	}
	if created.Subject != "math" {
		t.Fatalf("subject = %q, want math", created.Subject)
	}
	if len(created.Tags) != 1 || created.Tags[0] != "algebra" {
		t.Fatalf("tags = %v", created.Tags)
	}
	if created.Level != LevelIntro {
		t.Fatalf("level = %q, want %q", created.Level, LevelIntro)
	}
}

func TestCreateRejectsBadURL(t *testing.T) {
	if _, err := Create(CreateInput{
		OwnerUserID: "user-1",
		Title:       "Bad Link",
		URL:         "ftp://example.com/file",
	}, nil, nil); err == nil {
		t.Fatal("expected error for non-http url")
	}
}

func TestCreateTruncatesTitleOnRuneBoundary(t *testing.T) {
	// The byte limit lands inside the first multi-byte rune.
	title := strings.Repeat("a", 199) + "日本語"
	created, err := Create(CreateInput{
		OwnerUserID: "user-1",
		Title:       title,
		URL:         "https://example.com/long",
	}, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.Title) > maxTitleLength {
		t.Fatalf("title length = %d, want <= %d", len(created.Title), maxTitleLength)
	}
	if !utf8.ValidString(created.Title) {
		t.Fatalf("title is not valid utf-8: %q", created.Title)
	}
	if created.Title != strings.Repeat("a", 199) {
		t.Fatalf("title = %q", created.Title)
	}
}

func TestCreateTruncatesDescriptionOnRuneBoundary(t *testing.T) {
	description := strings.Repeat("a", maxDescriptionLength-1) + "語"
	created, err := Create(CreateInput{
		OwnerUserID: "user-1",
		Title:       "Long Description",
		URL:         "https://example.com/desc",
		Description: description,
	}, nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created.Description) > maxDescriptionLength {
		t.Fatalf("description length = %d, want <= %d", len(created.Description), maxDescriptionLength)
	}
	if !utf8.ValidString(created.Description) {
		t.Fatal("description is not valid utf-8")
	}
}

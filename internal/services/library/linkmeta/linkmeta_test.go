package linkmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTitleExtractsPageTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>  Intro to\n Calculus  </title></head><body></body></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher()
	title, err := fetcher.Title(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch title: %v", err)
	}
	if title != "Intro to Calculus" {
		t.Fatalf("title = %q, want %q", title, "Intro to Calculus")
	}
}

func TestTitleNonHTMLReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	fetcher := NewFetcher()
	title, err := fetcher.Title(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch title: %v", err)
	}
	if title != "" {
		t.Fatalf("title = %q, want empty", title)
	}
}

func TestTitleMissingTitleTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><p>no title here</p></body></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher()
	title, err := fetcher.Title(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch title: %v", err)
	}
	if title != "" {
		t.Fatalf("title = %q, want empty", title)
	}
}

func TestTitleErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewFetcher()
	if _, err := fetcher.Title(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestTitleTruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("a", 400)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>" + long + "</title></head></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher()
	title, err := fetcher.Title(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetch title: %v", err)
	}
	if len(title) > 200 {
		t.Fatalf("title length = %d, want <= 200", len(title))
	}
}

func TestCleanTitleTruncatesOnRuneBoundary(t *testing.T) {
	// The byte limit lands inside the first multi-byte rune.
	title := cleanTitle(strings.Repeat("a", 199) + strings.Repeat("語", 5))
	if len(title) > 200 {
		t.Fatalf("title length = %d, want <= 200", len(title))
	}
	if !utf8.ValidString(title) {
		t.Fatalf("title is not valid utf-8: %q", title)
	}
	if title != strings.Repeat("a", 199) {
		t.Fatalf("title = %q", title)
	}
}

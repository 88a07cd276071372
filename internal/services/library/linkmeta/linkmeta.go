// Package linkmeta extracts metadata from submitted resource URLs.
package linkmeta

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/studycommons/studycommons/internal/platform/timeouts"
)

// maxBodyBytes caps how much of a page is read looking for a title.
const maxBodyBytes = 512 * 1024

// maxTitleLength bounds extracted titles to what listings render.
const maxTitleLength = 200

// Fetcher resolves page titles for submitted URLs.
type Fetcher struct {
	client *http.Client
}

// NewFetcher builds a fetcher with the shared link fetch timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{client: &http.Client{Timeout: timeouts.LinkFetch}}
}

// NewFetcherWithClient builds a fetcher with a custom HTTP client, used by
// tests and callers that need their own transport.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	if client == nil {
		return NewFetcher()
	}
	return &Fetcher{client: client}
}

// Title fetches the URL and returns the page <title> text, trimmed and
// whitespace-collapsed. Non-HTML responses and missing titles return an
// empty string without an error so submissions can fall back gracefully.
func (f *Fetcher) Title(ctx context.Context, url string) (string, error) {
	if f == nil || f.client == nil {
		return "", fmt.Errorf("fetcher is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch url: status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		return "", nil
	}

	return extractTitle(io.LimitReader(resp.Body, maxBodyBytes)), nil
}

// extractTitle walks the HTML token stream until the first <title> element.
func extractTitle(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) != "title" {
				continue
			}
			if tokenizer.Next() == html.TextToken {
				return cleanTitle(string(tokenizer.Text()))
			}
			return ""
		}
	}
}

func cleanTitle(raw string) string {
	title := strings.Join(strings.Fields(raw), " ")
	if len(title) > maxTitleLength {
		cut := maxTitleLength
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = strings.TrimSpace(title[:cut])
	}
	return title
}

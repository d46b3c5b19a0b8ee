// Package fetcher downloads article pages the way a desktop browser would.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
	"github.com/samvad-hq/samvad-kindle-courier/pkg/httpclient"
)

const (
	maxHTMLBodyBytes = 5 << 20 // 5 MiB
	snippetBytes     = 512

	DefaultTimeout = 30 * time.Second

	// Many publishers refuse requests without a browser user agent.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Page is the raw HTML of an article and the URL it was finally served from.
type Page struct {
	HTML     string
	FinalURL string
}

// Fetcher retrieves article pages over HTTP.
type Fetcher struct {
	client  httpclient.Client
	headers map[string]string
}

// New constructs a fetcher with the provided HTTP client, or a resty client bounded by timeout.
func New(client httpclient.Client, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = httpclient.NewRestyClient(timeout)
	}
	return &Fetcher{
		client: client,
		headers: map[string]string{
			"User-Agent":      browserUserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// Fetch performs a single GET. It does not retry.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Page, error) {
	resp, err := f.client.Get(ctx, url, f.headers)
	if err != nil {
		return Page{}, &domain.FetchError{URL: url, Err: fmt.Errorf("http fetch: %w", err)}
	}

	body := resp.Body()
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return Page{}, &domain.FetchError{
			URL:        url,
			StatusCode: code,
			Err:        errors.New("unexpected status, body: " + snippet(body)),
		}
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	final := resp.FinalURL()
	if final == "" {
		final = url
	}
	return Page{HTML: string(body), FinalURL: final}, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > snippetBytes {
		return s[:snippetBytes] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

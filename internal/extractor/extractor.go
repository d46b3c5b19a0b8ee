// Package extractor isolates the readable article from a fetched page.
package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

var (
	ErrNoContent = errors.New("could not parse article content")
	ErrNoTitle   = errors.New("article has no title")
)

// Extractor runs readability over raw HTML. It performs no I/O.
type Extractor struct{}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses html against baseURL and returns the cleaned article.
// originalURL is recorded verbatim on the result.
func (e *Extractor) Extract(html, baseURL, originalURL string) (domain.ArticleContent, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return domain.ArticleContent{}, &domain.ExtractionError{URL: originalURL, Err: fmt.Errorf("parse base url: %w", err)}
	}

	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil {
		return domain.ArticleContent{}, &domain.ExtractionError{URL: originalURL, Err: fmt.Errorf("%w: %v", ErrNoContent, err)}
	}
	if strings.TrimSpace(article.Content) == "" || strings.TrimSpace(article.TextContent) == "" {
		return domain.ArticleContent{}, &domain.ExtractionError{URL: originalURL, Err: ErrNoContent}
	}

	// readability leaves gaps on pages with sparse markup; OG tags usually fill them.
	meta, err := parseMeta([]byte(html))
	if err != nil {
		meta = pageMeta{}
	}

	title := firstNonEmpty(article.Title, meta.Title)
	if title == "" {
		return domain.ArticleContent{}, &domain.ExtractionError{URL: originalURL, Err: ErrNoTitle}
	}

	content := domain.ArticleContent{
		Title:       title,
		Author:      domain.AuthorFallback,
		Content:     article.Content,
		SiteName:    firstNonEmpty(article.SiteName, meta.SiteName),
		Excerpt:     firstNonEmpty(article.Excerpt, meta.Description),
		OriginalURL: originalURL,
		Byline:      cleanByline(article.Byline),
		Language:    meta.Language,
	}
	if content.HasByline() {
		content.Author = content.Byline
	}
	return content, nil
}

// cleanByline drops a leading "By" so the chapter header does not repeat it.
func cleanByline(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 3 && strings.EqualFold(s[:3], "by ") {
		s = strings.TrimSpace(s[3:])
	}
	return s
}

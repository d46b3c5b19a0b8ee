// Package assembler turns an extracted article into the chapter markup and
// stylesheet that go into the e-book.
package assembler

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

const (
	UnknownSource    = "Unknown Source"
	DefaultPublisher = "Web Article"
	DefaultLanguage  = "en"

	savedOnLayout = "January 2, 2006 at 3:04 PM"
)

// Stylesheet is embedded in every package.
const Stylesheet = `body { font-family: Arial, sans-serif; line-height: 1.6; }
h1 { font-size: 1.8em; margin-bottom: 0.5em; }
.author, .source, .date, .url {
  color: #666;
  font-size: 0.9em;
  margin: 0.3em 0;
}
hr { margin: 1em 0; }
img { max-width: 100%; height: auto; }
`

var chapterTmpl = template.Must(template.New("chapter").Parse(`<h1>{{.Title}}</h1>
{{if .Byline}}<p class="author">By {{.Byline}}</p>
{{end}}<p class="source">From: {{.Source}}</p>
<p class="date">Saved on: {{.SavedOn}}</p>
<p class="url">Original URL: <a href="{{.URL}}">{{.URL}}</a></p>
<hr/>
{{.Content}}
`))

// Document is the assembled, ready-to-package article.
type Document struct {
	Title       string
	Author      string
	Description string
	Publisher   string
	Language    string
	Body        string
	CSS         string
}

// Assembler composes documents. It does no I/O.
type Assembler struct {
	now    func() time.Time
	policy *bluemonday.Policy
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the time source used for the "saved on" line.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an Assembler that renders timestamps in local server time.
func New(opts ...Option) *Assembler {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	policy.AllowElements("figure", "figcaption", "picture")

	a := &Assembler{now: time.Now, policy: policy}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type chapterData struct {
	Title   string
	Byline  string
	Source  string
	SavedOn string
	URL     string
	Content template.HTML
}

// Assemble wraps article content with the metadata header.
func (a *Assembler) Assemble(article domain.ArticleContent) (Document, error) {
	content, err := a.cleanContent(article.Content)
	if err != nil {
		return Document{}, err
	}

	source := article.SiteName
	if source == "" {
		source = UnknownSource
	}
	publisher := article.SiteName
	if publisher == "" {
		publisher = DefaultPublisher
	}
	lang := article.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	byline := ""
	if article.HasByline() {
		byline = article.Byline
	}

	var body strings.Builder
	err = chapterTmpl.Execute(&body, chapterData{
		Title:   article.Title,
		Byline:  byline,
		Source:  source,
		SavedOn: a.now().Local().Format(savedOnLayout),
		URL:     article.OriginalURL,
		Content: template.HTML(content), //nolint:gosec // sanitised by bluemonday above
	})
	if err != nil {
		return Document{}, fmt.Errorf("render chapter: %w", err)
	}

	return Document{
		Title:       article.Title,
		Author:      article.Author,
		Description: article.Excerpt,
		Publisher:   publisher,
		Language:    lang,
		Body:        body.String(),
		CSS:         Stylesheet,
	}, nil
}

// cleanContent sanitises the fragment and re-serialises it so void elements
// come out self-closed, which EPUB's XHTML chapters require.
func (a *Assembler) cleanContent(fragment string) (string, error) {
	safe := a.policy.Sanitize(fragment)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + safe + "</body></html>"))
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}
	out, err := doc.Find("body").First().Html()
	if err != nil {
		return "", fmt.Errorf("serialize content: %w", err)
	}
	return out, nil
}

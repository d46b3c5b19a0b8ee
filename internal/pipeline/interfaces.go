package pipeline

import (
	"context"

	"github.com/samvad-hq/samvad-kindle-courier/internal/assembler"
	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
	"github.com/samvad-hq/samvad-kindle-courier/internal/fetcher"
)

// PageFetcher downloads the raw page behind a URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Page, error)
}

// ArticleExtractor isolates the readable article from raw HTML.
type ArticleExtractor interface {
	Extract(html, baseURL, originalURL string) (domain.ArticleContent, error)
}

// DocumentAssembler turns an article into a chapter document.
type DocumentAssembler interface {
	Assemble(article domain.ArticleContent) (assembler.Document, error)
}

// DocumentPackager writes a document to disk as an e-book.
type DocumentPackager interface {
	Package(ctx context.Context, doc assembler.Document) (domain.PackagedDocument, error)
}

// Deliverer mails a package and disposes of it.
type Deliverer interface {
	Deliver(ctx context.Context, pkg domain.PackagedDocument, recipient string) error
}

// Observer is told about every attempt that passed validation.
type Observer interface {
	Observe(ctx context.Context, outcome domain.Outcome) error
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(ctx context.Context, outcome domain.Outcome) error

func (f ObserverFunc) Observe(ctx context.Context, outcome domain.Outcome) error {
	return f(ctx, outcome)
}

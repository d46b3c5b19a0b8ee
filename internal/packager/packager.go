// Package packager writes assembled articles to disk as EPUB files.
package packager

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	epub "github.com/go-shiori/go-epub"
	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-kindle-courier/internal/assembler"
	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

const (
	chapterFile = "article.xhtml"
	cssFile     = "article.css"
	dirPerm     = 0o755
)

// Packager serialises documents into the uploads directory.
type Packager struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	last time.Time
}

// New creates a Packager writing into dir. The directory is created lazily.
func New(dir string) *Packager {
	return &Packager{dir: dir, now: time.Now}
}

// Package writes doc as an EPUB and returns its absolute path. A failed call
// leaves no file with the final name behind.
func (p *Packager) Package(ctx context.Context, doc assembler.Document) (domain.PackagedDocument, error) {
	fail := func(err error) (domain.PackagedDocument, error) {
		return domain.PackagedDocument{}, &domain.PackagingError{Title: doc.Title, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	dir, err := filepath.Abs(p.dir)
	if err != nil {
		return fail(fmt.Errorf("resolve uploads dir: %w", err))
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fail(fmt.Errorf("create uploads dir: %w", err))
	}

	book, err := build(doc)
	if err != nil {
		return fail(err)
	}

	final := filepath.Join(dir, Filename(doc.Title, p.nextStamp()))
	if err := writeAtomic(book, dir, final); err != nil {
		return fail(err)
	}

	return domain.PackagedDocument{Path: final, Title: doc.Title}, nil
}

func build(doc assembler.Document) (*epub.Epub, error) {
	book, err := epub.NewEpub(doc.Title)
	if err != nil {
		return nil, fmt.Errorf("new epub: %w", err)
	}
	book.SetAuthor(doc.Author)
	book.SetDescription(doc.Description)
	book.SetLang(doc.Language)
	book.SetIdentifier("urn:uuid:" + uuid.NewString())

	cssPath, err := book.AddCSS(cssDataURL(doc.CSS), cssFile)
	if err != nil {
		return nil, fmt.Errorf("add stylesheet: %w", err)
	}
	if _, err := book.AddSection(doc.Body, doc.Title, chapterFile, cssPath); err != nil {
		return nil, fmt.Errorf("add chapter: %w", err)
	}
	return book, nil
}

// writeAtomic writes into a hidden temp file next to final and renames it into place.
func writeAtomic(book *epub.Epub, dir, final string) error {
	tmp, err := os.CreateTemp(dir, ".epub-*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := book.Write(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write epub: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename epub: %w", err)
	}
	return nil
}

// nextStamp returns a millisecond timestamp strictly later than any previous one.
func (p *Packager) nextStamp() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now().UTC().Truncate(time.Millisecond)
	if !now.After(p.last) {
		now = p.last.Add(time.Millisecond)
	}
	p.last = now
	return now
}

func cssDataURL(css string) string {
	return "data:text/css;base64," + base64.StdEncoding.EncodeToString([]byte(css))
}

// Package delivery mails packaged articles and removes them afterwards.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
	"github.com/samvad-hq/samvad-kindle-courier/internal/logger"
	"github.com/samvad-hq/samvad-kindle-courier/pkg/mailer"
)

const (
	epubContentType = "application/epub+zip"
	DefaultTimeout  = 60 * time.Second
)

// Agent sends packages through a mailer.Sender.
type Agent struct {
	sender  mailer.Sender
	timeout time.Duration
	log     logger.Logger
}

// NewAgent wires an agent. timeout bounds each send so a slow relay cannot
// hold a package on disk indefinitely.
func NewAgent(sender mailer.Sender, timeout time.Duration, log logger.Logger) *Agent {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Agent{sender: sender, timeout: timeout, log: logger.Ensure(log)}
}

// Deliver mails pkg to recipient. The package file is removed on every
// return path, whether or not the send succeeded.
func (a *Agent) Deliver(ctx context.Context, pkg domain.PackagedDocument, recipient string) error {
	defer a.release(pkg.Path)

	fail := func(err error) error {
		return &domain.DeliveryError{Recipient: recipient, Err: err}
	}

	if a.sender == nil {
		return fail(errors.New("no mail sender configured"))
	}

	content, err := os.ReadFile(pkg.Path)
	if err != nil {
		return fail(fmt.Errorf("read package: %w", err))
	}

	email := &mailer.Email{
		To:      []string{recipient},
		Subject: pkg.Title,
		Text:    fmt.Sprintf("Article: %s\n\nSent to your Kindle", pkg.Title),
		Attachments: []mailer.Attachment{{
			Filename:    filepath.Base(pkg.Path),
			ContentType: epubContentType,
			Content:     content,
		}},
	}

	sendCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.sender.Send(sendCtx, email); err != nil {
		return fail(err)
	}

	a.log.InfoObj("article delivered", "delivery", map[string]any{
		"title":      pkg.Title,
		"recipient":  recipient,
		"size_bytes": len(content),
	})
	return nil
}

// release deletes path if it still exists. Failures are logged, never returned.
func (a *Agent) release(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.log.WarnObj("package cleanup failed", "cleanup_error", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
	}
}

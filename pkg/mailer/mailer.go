// Package mailer defines the provider-neutral email shape used for delivery.
package mailer

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNoRecipient indicates no recipient was specified.
	ErrNoRecipient = errors.New("email must have at least one recipient")

	// ErrNoSubject indicates no subject was provided.
	ErrNoSubject = errors.New("email must have a subject")

	// ErrNoContent indicates neither a text nor an HTML body was provided.
	ErrNoContent = errors.New("email must have a body")
)

// Sender delivers a fully prepared Email.
type Sender interface {
	Send(ctx context.Context, email *Email) error
}

// Email represents a message ready for sending.
type Email struct {
	From        string       // Override default sender (if provider allows)
	To          []string     // Recipients (at least one required)
	Subject     string       // Email subject
	Text        string       // Plain text body
	HTML        string       // Optional HTML body
	Attachments []Attachment // File attachments
}

// Attachment represents an email attachment.
type Attachment struct {
	Filename    string // Display name for the attachment
	ContentType string // MIME type (e.g., "application/epub+zip")
	Content     []byte // Raw file content
}

// Validate checks the fields every provider needs.
func (e *Email) Validate() error {
	if e == nil || len(e.To) == 0 || strings.TrimSpace(e.To[0]) == "" {
		return ErrNoRecipient
	}
	if strings.TrimSpace(e.Subject) == "" {
		return ErrNoSubject
	}
	if e.Text == "" && e.HTML == "" {
		return ErrNoContent
	}
	return nil
}

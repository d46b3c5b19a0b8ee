// Package smtp implements mailer.Sender over an authenticated SMTP relay.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/samvad-hq/samvad-kindle-courier/pkg/mailer"
)

// Config holds relay settings. Gmail needs an app password, not the account password.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SSLPort is the submission port that expects TLS from the first byte.
const SSLPort = 465

// Sender dials the relay for every message; it holds no connection between sends.
type Sender struct {
	config      Config
	opts        []gomail.Option
	implicitTLS bool
}

// New creates a new SMTP sender. Port 465 uses implicit TLS, every other
// port must offer STARTTLS.
func New(cfg Config) *Sender {
	implicitTLS := cfg.Port == SSLPort
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}
	if implicitTLS {
		opts = append(opts, gomail.WithSSLPort(false))
	} else {
		opts = append(opts, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	return &Sender{config: cfg, opts: opts, implicitTLS: implicitTLS}
}

// Send implements mailer.Sender.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) error {
	if err := email.Validate(); err != nil {
		return err
	}
	msg, err := s.message(email)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.config.Host, s.opts...)
	if err != nil {
		return fmt.Errorf("smtp: create client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp: failed to send email: %w", err)
	}
	return nil
}

func (s *Sender) message(email *mailer.Email) (*gomail.Msg, error) {
	from := email.From
	if from == "" {
		from = s.config.From
	}

	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("smtp: invalid from address: %w", err)
	}
	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("smtp: invalid recipient: %w", err)
	}
	msg.Subject(email.Subject)

	switch {
	case email.Text != "" && email.HTML != "":
		msg.SetBodyString(gomail.TypeTextPlain, email.Text)
		msg.AddAlternativeString(gomail.TypeTextHTML, email.HTML)
	case email.HTML != "":
		msg.SetBodyString(gomail.TypeTextHTML, email.HTML)
	default:
		msg.SetBodyString(gomail.TypeTextPlain, email.Text)
	}

	for _, a := range email.Attachments {
		var opts []gomail.FileOption
		if a.ContentType != "" {
			opts = append(opts, gomail.WithFileContentType(gomail.ContentType(a.ContentType)))
		}
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Content), opts...); err != nil {
			return nil, fmt.Errorf("smtp: attach %s: %w", a.Filename, err)
		}
	}
	return msg, nil
}

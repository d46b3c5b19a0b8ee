package resend

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v3"

	"github.com/samvad-hq/samvad-kindle-courier/pkg/mailer"
)

type fakeEmails struct {
	req *resend.SendEmailRequest
	err error
}

func (f *fakeEmails) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.req = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "email-1"}, nil
}

func TestSendConvertsAttachments(t *testing.T) {
	fake := &fakeEmails{}
	s := &Sender{emails: fake, config: Config{SenderEmail: "bot@example.com", SenderName: "Courier"}}

	err := s.Send(context.Background(), &mailer.Email{
		To:      []string{"reader@kindle.com"},
		Subject: "Harbour Notes",
		Text:    "body",
		Attachments: []mailer.Attachment{{
			Filename: "a.epub", ContentType: "application/epub+zip", Content: []byte("PK"),
		}},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if fake.req.From != "Courier <bot@example.com>" {
		t.Fatalf("unexpected from %q", fake.req.From)
	}
	if len(fake.req.Attachments) != 1 || fake.req.Attachments[0].Filename != "a.epub" {
		t.Fatalf("attachments not converted: %+v", fake.req.Attachments)
	}
}

func TestSendWrapsAPIError(t *testing.T) {
	s := &Sender{emails: &fakeEmails{err: errors.New("unauthorized")}, config: Config{SenderEmail: "bot@example.com"}}
	err := s.Send(context.Background(), &mailer.Email{To: []string{"r@kindle.com"}, Subject: "s", Text: "t"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

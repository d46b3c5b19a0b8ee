package mailer

import (
	"errors"
	"testing"
)

func TestEmailValidate(t *testing.T) {
	cases := []struct {
		name  string
		email *Email
		want  error
	}{
		{"nil", nil, ErrNoRecipient},
		{"no recipient", &Email{Subject: "s", Text: "t"}, ErrNoRecipient},
		{"no subject", &Email{To: []string{"a@kindle.com"}, Text: "t"}, ErrNoSubject},
		{"no body", &Email{To: []string{"a@kindle.com"}, Subject: "s"}, ErrNoContent},
		{"ok", &Email{To: []string{"a@kindle.com"}, Subject: "s", Text: "t"}, nil},
	}
	for _, tc := range cases {
		if err := tc.email.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: Validate() = %v, want %v", tc.name, err, tc.want)
		}
	}
}

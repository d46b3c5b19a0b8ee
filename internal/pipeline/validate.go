package pipeline

import (
	"strings"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

// DefaultEmailSuffixes is used when no accepted suffixes are configured.
var DefaultEmailSuffixes = []string{"@kindle.com"}

const (
	msgNoURL        = "No URL provided"
	msgNoEmail      = "No Kindle email provided"
	msgInvalidEmail = "Invalid Kindle email address"
)

// Validate checks req in order and stops at the first failure. The returned
// request carries a trimmed KindleEmail; URL is kept exactly as supplied.
func Validate(req domain.DeliveryRequest, suffixes []string) (domain.DeliveryRequest, error) {
	req.KindleEmail = strings.TrimSpace(req.KindleEmail)

	if strings.TrimSpace(req.URL) == "" {
		return req, &domain.ValidationError{Field: "url", Message: msgNoURL}
	}
	if req.KindleEmail == "" {
		return req, &domain.ValidationError{Field: "kindleEmail", Message: msgNoEmail}
	}
	if !hasAcceptedSuffix(req.KindleEmail, suffixes) {
		return req, &domain.ValidationError{Field: "kindleEmail", Message: msgInvalidEmail}
	}
	return req, nil
}

func hasAcceptedSuffix(email string, suffixes []string) bool {
	if len(suffixes) == 0 {
		suffixes = DefaultEmailSuffixes
	}
	email = strings.ToLower(email)
	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		// the local part must not be empty
		if strings.HasSuffix(email, s) && len(email) > len(s) {
			return true
		}
	}
	return false
}

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
)

// Public messages never include upstream detail.
const (
	msgFetchFailed    = "Failed to fetch article"
	msgExtractFailed  = "Could not parse article content"
	msgPackageFailed  = "Failed to create EPUB"
	msgDeliveryFailed = "Failed to send article to Kindle"
	msgInternal       = "Internal server error"
)

// statusFor maps a pipeline error to an HTTP status and public message.
func statusFor(err error) (int, string) {
	var (
		ve *domain.ValidationError
		fe *domain.FetchError
		ee *domain.ExtractionError
		pe *domain.PackagingError
		de *domain.DeliveryError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.As(err, &fe):
		return http.StatusBadGateway, msgFetchFailed
	case errors.As(err, &ee):
		return http.StatusInternalServerError, msgExtractFailed
	case errors.As(err, &pe):
		return http.StatusInternalServerError, msgPackageFailed
	case errors.As(err, &de):
		return http.StatusBadGateway, msgDeliveryFailed
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func (h *handler) writePipelineError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	stack := ""
	if status >= http.StatusInternalServerError {
		stack = h.stack(err)
	}
	writeError(w, status, msg, stack)
}

// stack renders the wrapped error chain, outermost first, in development only.
func (h *handler) stack(err error) string {
	if !h.development || err == nil {
		return ""
	}
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

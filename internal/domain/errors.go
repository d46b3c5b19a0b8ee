package domain

import (
	"errors"
	"fmt"
)

// ValidationError is returned before any network, file or mail work starts.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Stage() Stage  { return StageValidate }

// FetchError means the origin could not be reached or answered with a non-2xx status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}
func (e *FetchError) Unwrap() error { return e.Err }
func (e *FetchError) Stage() Stage  { return StageFetch }

// ExtractionError means no readable article could be isolated from the page.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extract %s: %v", e.URL, e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }
func (e *ExtractionError) Stage() Stage  { return StageExtract }

// PackagingError wraps e-book serialisation and filesystem failures.
type PackagingError struct {
	Title string
	Err   error
}

func (e *PackagingError) Error() string { return fmt.Sprintf("package %q: %v", e.Title, e.Err) }
func (e *PackagingError) Unwrap() error { return e.Err }
func (e *PackagingError) Stage() Stage  { return StagePackage }

// DeliveryError wraps mail relay failures.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }
func (e *DeliveryError) Stage() Stage  { return StageDeliver }

type staged interface {
	Stage() Stage
}

// StageOf returns the pipeline stage that produced err, or "" for foreign errors.
func StageOf(err error) Stage {
	var s staged
	if errors.As(err, &s) {
		return s.Stage()
	}
	return ""
}

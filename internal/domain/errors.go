package domain

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	// ErrMissingURL is returned when a request carries no URL at all.
	ErrMissingURL = errors.New("URL is required")

	// ErrMalformedURL is returned when the URL does not parse as an absolute URL.
	ErrMalformedURL = errors.New("invalid URL format")

	// ErrUnreachable is returned when the remote resource answers with a
	// non-2xx status or cannot be reached at all.
	ErrUnreachable = errors.New("file not accessible")

	// ErrNotADirectFile is returned when the remote resource is an HTML page.
	ErrNotADirectFile = errors.New("URL points to a webpage, not a direct file")

	// ErrStreamInterrupted is returned when the transfer fails mid-stream.
	ErrStreamInterrupted = errors.New("download stream interrupted")

	// ErrExtractorFailure is returned when the video platform extractor fails.
	ErrExtractorFailure = errors.New("video platform extractor failed")

	// ErrNoBody is returned when the remote server sends no response body.
	ErrNoBody = errors.New("no response body from remote server")

	// ErrNoResolver is returned when no source resolver accepts a URL.
	ErrNoResolver = errors.New("no resolver matched the URL")

	// ErrUnsupportedFormat is returned for an output format the converter cannot produce.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrInvalidTransition is returned when a download state change is not allowed.
	ErrInvalidTransition = errors.New("invalid download state transition")

	// ErrHistoryEntryNotFound is returned when removing an unknown history entry.
	ErrHistoryEntryNotFound = errors.New("history entry not found")
)

// UpstreamError reports a non-2xx answer from the remote server.
type UpstreamError struct {
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("status code %d", e.StatusCode)
}

// Unwrap makes errors.Is(err, ErrUnreachable) hold for upstream failures.
func (e *UpstreamError) Unwrap() error {
	return ErrUnreachable
}

// NewUpstreamError creates an UpstreamError from a status code and the
// reason phrase of the remote response.
func NewUpstreamError(code int, status string) *UpstreamError {
	return &UpstreamError{StatusCode: code, Status: status}
}

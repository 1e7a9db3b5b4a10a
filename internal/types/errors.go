package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrRunInProgress   = errors.New("a run is already in progress for this origin")
	ErrStillBlocked    = errors.New("page is still gated after the vote handshake")
	ErrNoTimestamp     = errors.New("header carries no MM-DD HH:MM timestamp")
	ErrHandshakeDenied = errors.New("auxiliary tab never confirmed close")
	ErrTriggerDisabled = errors.New("trigger is disabled in settings")
	ErrSinkClosed      = errors.New("sink is closed")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrEmptyResponse   = errors.New("empty response body")
	ErrRunPanicked     = errors.New("run panicked")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while building a document from a page.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractionMismatch marks a single record that could not be shaped.
// The record is skipped; the page and the run carry on.
type ExtractionMismatch struct {
	Header string
	Err    error
}

func (e *ExtractionMismatch) Error() string {
	return fmt.Sprintf("extraction mismatch for header %q: %v", e.Header, e.Err)
}

func (e *ExtractionMismatch) Unwrap() error { return e.Err }

// HandshakeError wraps failures of the vote handshake with the auxiliary tab.
type HandshakeError struct {
	URL      string
	Phase    string
	Attempts int
	Err      error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake error for %s (phase=%s, attempts=%d): %v", e.URL, e.Phase, e.Attempts, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur in export sinks or settings backends.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

package leann

import (
	"errors"
	"fmt"
)

// Kind classifies an error raised by the engine so that callers can branch
// on disposition (abort, retry, degrade) without string-matching messages.
type Kind int

const (
	// KindUnknown is the zero value; never returned by the engine itself.
	KindUnknown Kind = iota

	// KindInvalidInput marks API misuse: bad dimension, empty corpus, k<0, etc.
	KindInvalidInput

	// KindDuplicateID marks a builder ingest collision.
	KindDuplicateID

	// KindModelMismatch marks an open-time model identifier mismatch.
	KindModelMismatch

	// KindCorrupt marks a file validation failure.
	KindCorrupt

	// KindProviderTransient marks a retryable embedding-provider failure.
	KindProviderTransient

	// KindProviderPermanent marks a non-retryable embedding-provider failure.
	KindProviderPermanent

	// KindOutOfMemory marks a resource exhaustion during build or search.
	KindOutOfMemory

	// KindDeadlineExceeded marks a search that returned early under a deadline.
	KindDeadlineExceeded

	// KindCancelled marks a search cancelled via its context or cancel token.
	KindCancelled
)

// String renders the kind for logs and error messages.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindDuplicateID:
		return "DuplicateId"
	case KindModelMismatch:
		return "ModelMismatch"
	case KindCorrupt:
		return "Corrupt"
	case KindProviderTransient:
		return "ProviderTransient"
	case KindProviderPermanent:
		return "ProviderPermanent"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindDeadlineExceeded:
		return "DeadlineExceeded"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the engine's typed error. It always carries a Kind so that
// callers built against spec.md's exit-code table (§6) can map it directly.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("leann: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("leann: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError constructs an *Error, optionally wrapping cause.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, returning KindUnknown if err is nil or
// was not raised by this engine.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Sentinel errors for the common cases callers compare against with errors.Is.
var (
	ErrInvalidInput       = NewError(KindInvalidInput, "invalid input", nil)
	ErrDuplicateID        = NewError(KindDuplicateID, "duplicate passage id", nil)
	ErrModelMismatch      = NewError(KindModelMismatch, "embedding model mismatch", nil)
	ErrCorrupt            = NewError(KindCorrupt, "index file is corrupt", nil)
	ErrProviderTransient  = NewError(KindProviderTransient, "embedding provider transient failure", nil)
	ErrProviderPermanent  = NewError(KindProviderPermanent, "embedding provider permanent failure", nil)
	ErrOutOfMemory        = NewError(KindOutOfMemory, "out of memory", nil)
	ErrDeadlineExceeded   = NewError(KindDeadlineExceeded, "search deadline exceeded", nil)
	ErrCancelled          = NewError(KindCancelled, "search cancelled", nil)
)

// Is allows errors.Is(err, leann.ErrCorrupt) to match any *Error with the
// same Kind, not just the exact sentinel value.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

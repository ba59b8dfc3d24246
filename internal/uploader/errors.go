package uploader

import (
	"errors"
	"fmt"
)

// Kind classifies upload failures for logs and retry policy.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindTransient      Kind = "transient"
	KindPermanent      Kind = "permanent"
	KindNotImplemented Kind = "not_implemented"
)

// Error is the failure value uploaders return. The Retryable flag drives
// the dispatch engine's retry loop; retry policy is data, not exception
// matching.
type Error struct {
	Kind      Kind
	Retryable bool
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError marks a request as un-uploadable before any network
// call. Never retryable.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewTransientError wraps a failure worth retrying (network errors, rate
// limiting, marketplace 5xx).
func NewTransientError(message string, err error) *Error {
	return &Error{Kind: KindTransient, Retryable: true, Message: message, Err: err}
}

// NewPermanentError wraps a failure retrying cannot fix (rejected payload,
// revoked credentials).
func NewPermanentError(message string, err error) *Error {
	return &Error{Kind: KindPermanent, Message: message, Err: err}
}

// Retryable reports whether err carries the retryable flag. Unknown error
// types are treated as non-retryable so an unexpected failure surfaces
// instead of looping.
func Retryable(err error) bool {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Retryable
	}
	return false
}

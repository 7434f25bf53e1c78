package flowerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry and surface decisions.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindConfig          Kind = "config_error"
	KindIntegration     Kind = "integration_error"
	KindRejectedByHuman Kind = "rejected_by_human"
	KindNoMatchingRule  Kind = "no_matching_rule"
	KindNotImplemented  Kind = "not_implemented"
	KindCancelled       Kind = "cancelled"
	KindAuthentication  Kind = "authentication_error"
	KindPermission      Kind = "permission_denied"
	KindUnknown         Kind = "unknown"
)

// Error is a kinded error with optional detail fields surfaced to callers.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a kinded error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates a kinded error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// WithDetails attaches detail fields to the error and returns it.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// KindOf extracts the kind from an error chain. Unkinded errors report
// KindUnknown.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

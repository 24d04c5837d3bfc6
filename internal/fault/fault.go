// Package fault defines the error taxonomy shared by the intake and resize
// workflows. Callers classify failures by Kind instead of matching on
// backend-specific error types, so adapter errors never leak past the
// transport boundary.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind discriminates error categories for transport-level mapping.
type Kind int

const (
	// KindUnknown marks errors that carry no classification.
	KindUnknown Kind = iota
	// KindValidation marks caller-supplied data violating an invariant.
	KindValidation
	// KindParse marks a malformed or absent request body.
	KindParse
	// KindNotFound marks a referenced entity that does not exist.
	KindNotFound
	// KindStorage marks a backend operation failure other than absence.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not found"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a classified error. Status optionally carries the backend's HTTP
// status for storage failures.
type Error struct {
	Kind   Kind
	Msg    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports invalid caller-supplied data.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Msg: msg}
}

// Validationf reports invalid caller-supplied data with formatting.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Parse reports a malformed request body.
func Parse(msg string) error {
	return &Error{Kind: KindParse, Msg: msg}
}

// NotFound reports an absent entity.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// NotFoundf reports an absent entity with formatting.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps a backend failure, keeping the cause for logs.
func Storage(msg string, err error) error {
	return &Error{Kind: KindStorage, Msg: msg, Err: err}
}

// StorageStatus wraps a backend failure that carries an HTTP-like status.
func StorageStatus(status int, msg string, err error) error {
	return &Error{Kind: KindStorage, Msg: msg, Status: status, Err: err}
}

// KindOf extracts the Kind from err, unwrapping as needed.
// It returns KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// StatusOf returns the backend status attached to err, or 0 when absent.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// IsValidation reports whether err is classified as a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is classified as an absence failure.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/thomasluizon/orbit-api-sub001/internal/logger"
)

var (
	// ErrNotFound covers both missing entities and entities owned by another
	// user. The two cases are never told apart.
	ErrNotFound = stderrors.New("not found")

	// ErrTypeMismatch is returned when an operation needs a kind of habit the
	// target is not, e.g. trends on a habit that records no values.
	ErrTypeMismatch = stderrors.New("type mismatch")

	// ErrUnrecognizedAction marks plan actions whose type the engine does not implement.
	ErrUnrecognizedAction = stderrors.New("unrecognized action type")

	// ErrUnauthorized is returned for missing or invalid credentials.
	ErrUnauthorized = stderrors.New("unauthorized")

	// ErrConflict is returned when a uniqueness rule would be broken.
	ErrConflict = stderrors.New("conflict")
)

// ValidationError is a domain-rule violation. Field is a best-effort name of
// the offending input and may be empty.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// WithFieldPrefix re-roots a validation error under a parent field, e.g.
// "title" becomes "subHabits[1].title". Other errors pass through unchanged.
func WithFieldPrefix(err error, prefix, messagePrefix string) error {
	var ve *ValidationError
	if !stderrors.As(err, &ve) {
		return err
	}
	field := prefix
	if ve.Field != "" {
		field = prefix + "." + ve.Field
	}
	return &ValidationError{Field: field, Message: messagePrefix + ve.Message}
}

// UpstreamError wraps a failure of an external LLM provider.
type UpstreamError struct {
	Provider string
	Op       string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError unless it already is one.
func Upstream(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if stderrors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Provider: provider, Op: op, Err: err}
}

// FieldOf returns the offending field of a validation error, or "".
func FieldOf(err error) string {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return stderrors.As(err, &ve)
}

// IsUpstream reports whether err is an UpstreamError.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return stderrors.As(err, &ue)
}

// Public returns a message that is safe to show a caller. Known error kinds
// keep their text; anything else collapses to a generic message.
func Public(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	switch {
	case stderrors.As(err, &ve):
		return ve.Message
	case stderrors.Is(err, ErrNotFound):
		var nf *notFoundError
		if stderrors.As(err, &nf) {
			return nf.Error()
		}
		return "not found"
	case stderrors.Is(err, ErrUnrecognizedAction),
		stderrors.Is(err, ErrTypeMismatch),
		stderrors.Is(err, ErrConflict):
		return err.Error()
	case stderrors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case IsUpstream(err):
		return "the assistant is unavailable right now, please try again"
	default:
		return "internal error"
	}
}

type notFoundError struct {
	kind string
}

func (e *notFoundError) Error() string {
	return e.kind + " not found"
}

func (e *notFoundError) Unwrap() error {
	return ErrNotFound
}

// NotFound wraps ErrNotFound with the kind of entity that was looked up.
func NotFound(kind string) error {
	return &notFoundError{kind: kind}
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

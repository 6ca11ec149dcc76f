package errors

import (
	// Go Internal Packages
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error so that transports can map it to a response.
type Kind uint8

const (
	Other Kind = iota
	Invalid
	NotFound
	Insufficient
	Unavailable
	Unauthorized
	Conflict
	Internal
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid"
	case NotFound:
		return "not_found"
	case Insufficient:
		return "insufficient_balance"
	case Unavailable:
		return "unavailable"
	case Unauthorized:
		return "unauthorized"
	case Conflict:
		return "conflict"
	case Internal:
		return "internal"
	}
	return "other"
}

// Error is a classified error carrying a user facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Other
}

// IsKind reports whether err carries the given kind.
func IsKind(kind Kind, err error) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the user facing message of a classified error, or a generic one.
func Message(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Retryable reports whether the sender of a rejected message should try again.
// Invalid, not found and auth failures will never succeed on a retry.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Invalid, NotFound, Unauthorized, Conflict:
		return false
	}
	return true
}

// ValidationErrors accumulates per field messages.
type ValidationErrors struct {
	fields map[string][]string
}

func ValidationErrs() *ValidationErrors {
	return &ValidationErrors{fields: make(map[string][]string)}
}

func (v *ValidationErrors) Add(field, msg string) {
	v.fields[field] = append(v.fields[field], msg)
}

func (v *ValidationErrors) Len() int { return len(v.fields) }

// Err returns nil when no field failed.
func (v *ValidationErrors) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, strings.Join(v.fields[k], ", ")))
	}
	return stderrors.New(strings.Join(parts, "; "))
}

// New, Is and As mirror the standard library so callers keep a single errors import.
func New(msg string) error { return stderrors.New(msg) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }


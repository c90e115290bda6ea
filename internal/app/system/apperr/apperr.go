// Package apperr defines the error kinds returned by the mapping services.
//
// Every service-level failure is one of four kinds:
//   - Validation: malformed or missing input (HTTP 400), with field-level detail
//   - Conflict: an exclusivity or uniqueness rule would be broken (HTTP 409)
//   - NotFound: a referenced entity does not exist (HTTP 404)
//   - Internal: a dependency failed unexpectedly (HTTP 500)
//
// Validation and Conflict errors carry the offending names so callers can
// show which groups, classes or tags were rejected.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified service error.
type Error struct {
	Kind    Kind
	Message string
	Names   []string          // offending entity names (groups, classes, ids)
	Fields  map[string]string // field -> problem, for validation errors
	Err     error             // underlying cause, never shown to callers
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Names) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Names, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, " (%v)", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func sortedNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

// Validation reports malformed or missing input.
func Validation(msg string, names ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Names: sortedNames(names)}
}

// ValidationFields reports per-field validation problems.
func ValidationFields(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Conflict reports an exclusivity or uniqueness violation.
func Conflict(msg string, names ...string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Names: sortedNames(names)}
}

// NotFound reports a missing referenced entity.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Internal wraps an unexpected dependency failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

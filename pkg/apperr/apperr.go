// Package apperr classifies domain errors so the HTTP layer can map them to
// status codes without matching on strings.
//
// Domain packages declare their own sentinels on top of the two classes:
//
//	var ErrInvalidID = apperr.Invalid("malformed id")
//
// and callers test the class with errors.Is(err, apperr.ErrInvalid).
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid marks client input errors (bad id, bad payload). Not retryable.
	ErrInvalid = errors.New("invalid input")
	// ErrNotFound marks a missing target.
	ErrNotFound = errors.New("not found")
)

// Class is the HTTP-relevant classification of an error.
type Class int

const (
	ClassInternal Class = iota
	ClassInvalid
	ClassNotFound
)

func (c Class) String() string {
	switch c {
	case ClassInvalid:
		return "invalid"
	case ClassNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

type classified struct {
	msg   string
	class error
}

func (e *classified) Error() string { return e.msg }
func (e *classified) Unwrap() error { return e.class }

// Invalid declares a sentinel in the invalid class.
func Invalid(msg string) error { return &classified{msg: msg, class: ErrInvalid} }

// NotFound declares a sentinel in the not-found class.
func NotFound(msg string) error { return &classified{msg: msg, class: ErrNotFound} }

// Invalidf wraps a formatted message in the invalid class.
func Invalidf(format string, args ...interface{}) error {
	return &classified{msg: fmt.Sprintf(format, args...), class: ErrInvalid}
}

// ClassOf returns the class of err, defaulting to internal.
func ClassOf(err error) Class {
	switch {
	case err == nil:
		return ClassInternal
	case errors.Is(err, ErrInvalid):
		return ClassInvalid
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	}
	return ClassInternal
}

package utils

import (
	"errors"
	"net/http"

	"gorm.io/gorm"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInsufficientFunds
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInsufficientFunds:
		return "insufficient_funds"
	default:
		return "internal"
	}
}

// Status is the HTTP status a kind maps to at the request boundary.
func (k Kind) Status() int {
	switch k {
	case KindValidation, KindInsufficientFunds:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain failure carrying the message shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func ErrValidation(msg string) *Error        { return newError(KindValidation, msg) }
func ErrUnauthorized(msg string) *Error      { return newError(KindUnauthorized, msg) }
func ErrForbidden(msg string) *Error         { return newError(KindForbidden, msg) }
func ErrNotFound(msg string) *Error          { return newError(KindNotFound, msg) }
func ErrConflict(msg string) *Error          { return newError(KindConflict, msg) }
func ErrInsufficientFunds(msg string) *Error { return newError(KindInsufficientFunds, msg) }

// ErrInternal wraps an unexpected failure. The cause is logged, never shown.
func ErrInternal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf classifies any error. Store errors translated by gorm map to their
// domain kinds; anything unrecognised is internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isSQLiteDuplicate(err):
		return KindConflict
	}
	return KindInternal
}

// gorm's sqlite translator only decodes mattn/go-sqlite3 errors.
func isSQLiteDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// PublicMessage is the text safe to return to a caller for err.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Kind != KindInternal {
		return de.Message
	}
	switch KindOf(err) {
	case KindNotFound:
		return "Not found"
	case KindConflict:
		return "Conflict"
	}
	if de != nil && de.Message != "" {
		return de.Message
	}
	return "Internal server error"
}

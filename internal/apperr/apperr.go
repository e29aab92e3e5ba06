// Package apperr defines the error taxonomy shared by the server core.
// Every error that can reach a handler is classified into a Kind; the
// handler layer maps kinds to HTTP statuses and diagnostic headers.
package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an error for status mapping and retry decisions.
type Kind int

const (
	// Internal covers index corruption, filesystem I/O, decoding failures.
	Internal Kind = iota
	// Unavailable means a pool acquisition or downstream timeout; retryable.
	Unavailable
	// Query is a DB execution failure that is not a known sub-kind.
	Query
	// Conflict is a unique-constraint violation.
	Conflict
	// Validation is a malformed input (bad IP, bad MIME, oversized payload).
	Validation
	// Unauthorized means no session or an expired session.
	Unauthorized
	// Forbidden means the session exists but lacks privilege.
	Forbidden
	// NotFound is a missing resource (post, country, bundle, IP range).
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Unavailable:
		return "UNAVAILABLE"
	case Query:
		return "QUERY_FAILED"
	case Conflict:
		return "CONFLICT"
	case Validation:
		return "INVALID_ARGUMENT"
	case Unauthorized:
		return "UNAUTHORIZED"
	case Forbidden:
		return "FORBIDDEN"
	case NotFound:
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus returns the response status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case Unavailable, Query, Internal:
		return http.StatusInternalServerError
	case Conflict:
		return http.StatusConflict
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Stable numeric codes carried in error bodies and X-Error-Code.
// Codes are append-only; never renumber.
const (
	CodeInternal     = 1000
	CodeUnavailable  = 1001
	CodeQuery        = 1002
	CodeConflict     = 1003
	CodeValidation   = 1100
	CodeUnauthorized = 1200
	CodeForbidden    = 1201
	CodeNotFound     = 1300
)

func (k Kind) Code() int {
	switch k {
	case Unavailable:
		return CodeUnavailable
	case Query:
		return CodeQuery
	case Conflict:
		return CodeConflict
	case Validation:
		return CodeValidation
	case Unauthorized:
		return CodeUnauthorized
	case Forbidden:
		return CodeForbidden
	case NotFound:
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// Error is the concrete error type carried across the core.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap annotates err with a kind and message, preserving the chain.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain. Unknown errors are Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// FromDB classifies a database error: no rows becomes NotFound, a unique
// violation becomes Conflict, everything else a Query failure.
func FromDB(op string, err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(NotFound, op, err)
	}
	if isUniqueViolation(err) {
		return Wrap(Conflict, op, err)
	}
	return Wrap(Query, op, err)
}

// isUniqueViolation recognizes unique-constraint errors from both supported
// drivers: pgx reports SQLSTATE 23505, modernc sqlite reports constraint
// failures in the error text.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}

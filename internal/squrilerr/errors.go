// Package squrilerr defines the error taxonomy shared by the parser, the SQL
// generator, and the store driver.
package squrilerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a QueryError.
type Kind string

const (
	// KindParse indicates the URI query string could not be tokenised or
	// did not match the grammar.
	KindParse Kind = "PARSE_ERROR"

	// KindValidation indicates a syntactically valid query that violates a
	// semantic rule (aggregate without group_by, double wildcard, range
	// inversion, a rejected identifier).
	KindValidation Kind = "VALIDATION_ERROR"

	// KindBackend indicates the connection provider or the underlying
	// database returned a failure.
	KindBackend Kind = "BACKEND_ERROR"

	// KindAuditMissing indicates a restore was requested but no matching
	// audit rows exist for the primary key(s) in scope.
	KindAuditMissing Kind = "AUDIT_MISSING_ERROR"

	// KindIntegrity indicates a primary-key collision on insert or restore,
	// or an operation rejected to protect audit-table integrity.
	KindIntegrity Kind = "INTEGRITY_ERROR"
)

// QueryError is the single error type returned by this module's public API.
// It carries an enum-style Kind, a human Message, and, where meaningful, the
// offending clause/path/position so callers can report precisely.
type QueryError struct {
	Kind    Kind
	Message string

	// Clause is the clause name the error concerns (e.g. "where", "range").
	Clause string

	// Path is the document path the error concerns, if any.
	Path string

	// Position is the byte offset into the original query string where
	// parsing failed, for KindParse.
	Position int

	// Expected, for KindParse, names what token or literal was expected.
	Expected string

	// Err, if set, is the underlying cause (e.g. a driver error).
	Err error
}

func (e *QueryError) Error() string {
	switch {
	case e.Kind == KindParse && e.Expected != "":
		return fmt.Sprintf("%s: %s (position %d, expected %s)", e.Kind, e.Message, e.Position, e.Expected)
	case e.Clause != "" && e.Path != "":
		return fmt.Sprintf("%s: %s (clause=%s, path=%s)", e.Kind, e.Message, e.Clause, e.Path)
	case e.Clause != "":
		return fmt.Sprintf("%s: %s (clause=%s)", e.Kind, e.Message, e.Clause)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Kind, e.Message, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *QueryError) Unwrap() error { return e.Err }

func is(err error, k Kind) bool {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind == k
	}
	return false
}

// IsParseError reports whether err is (or wraps) a parse error.
func IsParseError(err error) bool { return is(err, KindParse) }

// IsValidationError reports whether err is (or wraps) a validation error.
func IsValidationError(err error) bool { return is(err, KindValidation) }

// IsBackendError reports whether err is (or wraps) a backend error.
func IsBackendError(err error) bool { return is(err, KindBackend) }

// IsAuditMissingError reports whether err is (or wraps) an audit-missing error.
func IsAuditMissingError(err error) bool { return is(err, KindAuditMissing) }

// IsIntegrityError reports whether err is (or wraps) an integrity error.
func IsIntegrityError(err error) bool { return is(err, KindIntegrity) }

// NewParseError builds a parse error positioned within the original query.
func NewParseError(message string, position int, expected string) *QueryError {
	return &QueryError{Kind: KindParse, Message: message, Position: position, Expected: expected}
}

// NewValidationError builds a validation error against a clause/path.
func NewValidationError(message, clause, path string) *QueryError {
	return &QueryError{Kind: KindValidation, Message: message, Clause: clause, Path: path}
}

// NewBackendError wraps a driver/connection failure. SQL text passed in
// message must already have parameter values redacted by the caller.
func NewBackendError(message string, cause error) *QueryError {
	return &QueryError{Kind: KindBackend, Message: message, Err: cause}
}

// NewAuditMissingError builds an error for a restore with no matching audit rows.
func NewAuditMissingError(message, path string) *QueryError {
	return &QueryError{Kind: KindAuditMissing, Message: message, Path: path}
}

// NewIntegrityError builds a primary-key collision or protected-operation error.
func NewIntegrityError(message, path string) *QueryError {
	return &QueryError{Kind: KindIntegrity, Message: message, Path: path}
}

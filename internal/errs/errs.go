// Package errs defines the single error type surfaced by the table
// storage core to its callers. Every component wraps the underlying
// cause (a codec error, a backend error) with one of the Kind values
// below rather than returning ad-hoc error strings.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a core error, mirroring the error
// kinds catalogued in the storage core specification.
type Kind string

const (
	KindParse           Kind = "parse"
	KindUnsupportedSQL   Kind = "unsupported_sql"
	KindUnsupportedDDL   Kind = "unsupported_ddl"
	KindUnknownTable     Kind = "unknown_table"
	KindUnknownColumn    Kind = "unknown_column"
	KindUnknownDatabase  Kind = "unknown_database"
	KindMissingColumn    Kind = "missing_column"
	KindColumnMismatch   Kind = "column_mismatch"
	KindDuplicateKey     Kind = "duplicate_key"
	KindNoIndex          Kind = "no_index"
	KindIndexExists      Kind = "index_exists"
	KindCorruption       Kind = "corruption"
	KindBackend          Kind = "backend"
	KindTxnConflict      Kind = "txn_conflict"
	KindInvalidType      Kind = "invalid_type"
	KindTypeMismatch     Kind = "type_mismatch"
	KindPrepareMultiple  Kind = "prepare_multiple_statements"
)

// Error is the concrete error type returned by every exported core
// operation. Wire-layer code inspects Kind (via As) to choose how to
// report the failure to the client; everything else should just log
// and propagate it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

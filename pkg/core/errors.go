package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the run-level and record-level error classes.
var (
	// ErrConnectivity is matched by ConnectivityError.
	ErrConnectivity = errors.New("connectivity error")

	// ErrSchemaLookup is matched by SchemaLookupError.
	ErrSchemaLookup = errors.New("schema lookup error")

	// ErrApplication is matched by ApplicationError.
	ErrApplication = errors.New("application error")
)

// ConnectivityError means the database could not be reached or the
// connection was lost. It is fatal for the whole run.
type ConnectivityError struct {
	Op  string
	Err error
}

// Error returns the error string.
func (e *ConnectivityError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("connectivity error: %v", e.Err)
	}
	return fmt.Sprintf("connectivity error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *ConnectivityError) Unwrap() error { return e.Err }

// Is reports whether the target error matches ErrConnectivity.
func (e *ConnectivityError) Is(err error) bool {
	return err == ErrConnectivity
}

// SchemaLookupError means the table, its columns or its keys could not be
// found under the resolved catalog/schema. It is fatal for the run.
type SchemaLookupError struct {
	Table  TableRef
	Reason string
	Err    error
}

// Error returns the error string.
func (e *SchemaLookupError) Error() string {
	msg := fmt.Sprintf("schema lookup failed for table %q", e.Table.String())
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *SchemaLookupError) Unwrap() error { return e.Err }

// Is reports whether the target error matches ErrSchemaLookup.
func (e *SchemaLookupError) Is(err error) bool {
	return err == ErrSchemaLookup
}

// ApplicationError means a single record's value could not be coerced to
// its column type. It is local to that record.
type ApplicationError struct {
	Column string
	Type   SQLType
	Value  any
	Reason string
}

// Error returns the error string.
func (e *ApplicationError) Error() string {
	return fmt.Sprintf("column %q: cannot convert %v to %s: %s", e.Column, e.Value, e.Type, e.Reason)
}

// Is reports whether the target error matches ErrApplication.
func (e *ApplicationError) Is(err error) bool {
	return err == ErrApplication
}

// BatchError is a flush failure with positional detail: Counts holds the
// update counts of the statements that completed before Err.
type BatchError struct {
	Counts []int64
	Err    error
}

// Error returns the underlying driver message unchanged.
func (e *BatchError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying driver error.
func (e *BatchError) Unwrap() error { return e.Err }

// FailedAt returns the position of the first statement without a count.
func (e *BatchError) FailedAt() int {
	return len(e.Counts)
}

// IsRunFatal reports whether err aborts a whole run.
func IsRunFatal(err error) bool {
	return errors.Is(err, ErrConnectivity) || errors.Is(err, ErrSchemaLookup)
}

// ConstraintKind classifies a constraint violation.
type ConstraintKind int

const (
	// ConstraintNone means the error is not a constraint violation.
	ConstraintNone ConstraintKind = iota
	// ConstraintUnique is a unique or primary key violation.
	ConstraintUnique
	// ConstraintForeignKey is a foreign key violation.
	ConstraintForeignKey
	// ConstraintCheck is a check constraint violation.
	ConstraintCheck
	// ConstraintNotNull is a NOT NULL violation.
	ConstraintNotNull
)

// String returns the string representation of ConstraintKind.
func (k ConstraintKind) String() string {
	switch k {
	case ConstraintUnique:
		return "unique"
	case ConstraintForeignKey:
		return "foreign_key"
	case ConstraintCheck:
		return "check"
	case ConstraintNotNull:
		return "not_null"
	default:
		return "none"
	}
}

// ErrorInfo is a driver error classified by an adapter.
type ErrorInfo struct {
	Code         string // driver specific: MySQL number, SQLSTATE, ORA code
	Connectivity bool
	Constraint   ConstraintKind
}

// ErrorClassifier classifies driver errors.
type ErrorClassifier interface {
	Classify(err error) ErrorInfo
}

// ClassifierFunc adapts a function to ErrorClassifier.
type ClassifierFunc func(err error) ErrorInfo

// Classify calls f(err).
func (f ClassifierFunc) Classify(err error) ErrorInfo { return f(err) }

// ConstraintFromMessage classifies a driver message by well-known text
// when the driver exposes no typed code.
func ConstraintFromMessage(msg string) ConstraintKind {
	switch {
	case containsAny(msg,
		"Error 1062",                 // MySQL
		"Duplicate entry",            // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
		"ORA-00001",                  // Oracle
		"Violation of PRIMARY KEY",   // SQL Server
		"Violation of UNIQUE KEY",    // SQL Server
		"Cannot insert duplicate key",
		"Duplicate key"):
		return ConstraintUnique
	case containsAny(msg,
		"Error 1451", "Error 1452",
		"violates foreign key constraint",
		"FOREIGN KEY constraint failed",
		"ORA-02291", "ORA-02292",
		"FOREIGN KEY constraint"):
		return ConstraintForeignKey
	case containsAny(msg,
		"Error 3819",
		"violates check constraint",
		"CHECK constraint failed",
		"ORA-02290"):
		return ConstraintCheck
	case containsAny(msg,
		"Error 1048",
		"violates not-null constraint",
		"NOT NULL constraint failed",
		"ORA-01400",
		"Cannot insert the value NULL"):
		return ConstraintNotNull
	default:
		return ConstraintNone
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

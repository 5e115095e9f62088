package database

import (
	"errors"
	"fmt"
)

// Common database errors that can be checked using errors.Is.
var (
	ErrNotConnected    = errors.New("database not connected")
	ErrNotFound        = errors.New("record not found")
	ErrQueryFailed     = errors.New("query execution failed")
	ErrMultipleResults = errors.New("multiple results found when one was expected")
)

// DBError is a database failure with the operation and query that caused
// it.
type DBError struct {
	err     error
	context string
	query   string
}

// NewDBError wraps err with a description of the operation.
func NewDBError(err error, context string) *DBError {
	return &DBError{err: err, context: context}
}

// WithQuery records the query being executed.
func (e *DBError) WithQuery(query string) *DBError {
	e.query = query
	return e
}

func (e *DBError) Error() string {
	msg := e.context
	if e.query != "" {
		msg = fmt.Sprintf("%s (query: %s)", msg, e.query)
	}
	if e.err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

func (e *DBError) Unwrap() error {
	return e.err
}

// WrapError adds context to err. A DBError keeps its query and gains the
// outer context as a prefix.
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return &DBError{err: dbErr.err, context: context + ": " + dbErr.context, query: dbErr.query}
	}
	return NewDBError(err, context)
}

package model

import (
	"errors"
	"fmt"
)

// ErrResultCapExceeded is returned when unbounded pagination reaches the configured row ceiling.
var ErrResultCapExceeded = errors.New("result row cap exceeded")

// MalformedSpecError indicates the sheet input does not have the expected shape.
type MalformedSpecError struct {
	// Column is the zero-based input column, or -1 when the error is not tied to one.
	Column  int
	Message string
}

func (e *MalformedSpecError) Error() string {
	if e.Column < 0 {
		return "malformed spec: " + e.Message
	}
	return fmt.Sprintf("malformed spec: column %d: %s", e.Column, e.Message)
}

// ErrMalformed creates a MalformedSpecError for a column with a formatted message.
func ErrMalformed(column int, format string, args ...interface{}) *MalformedSpecError {
	return &MalformedSpecError{Column: column, Message: fmt.Sprintf(format, args...)}
}

// ConflictingRuleError indicates a rule group reopened a nesting depth with another operator.
type ConflictingRuleError struct {
	Row       int
	Depth     int
	Existing  string
	Requested string
}

func (e *ConflictingRuleError) Error() string {
	return fmt.Sprintf("conflicting rule at filter %d: depth %d is %q, got %q", e.Row, e.Depth, e.Existing, e.Requested)
}

// QueryRejectedError carries a backend's semantic rejection of a query.
type QueryRejectedError struct {
	Status  int
	Message string
}

func (e *QueryRejectedError) Error() string {
	if e.Status == 0 {
		return "query rejected: " + e.Message
	}
	return fmt.Sprintf("query rejected (%d): %s", e.Status, e.Message)
}

// TransportError wraps a failure to reach the backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

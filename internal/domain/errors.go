// Package domain defines the core types, ports, and errors of the ingestion service.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Stable, machine-readable error kinds reported to API callers.
const (
	KindUnauthenticated    = "unauthenticated"
	KindForbidden          = "forbidden"
	KindNotFound           = "not_found"
	KindValidationFailed   = "validation_failed"
	KindPayloadTooLarge    = "payload_too_large"
	KindMalformedContent   = "malformed_content"
	KindIOFailure          = "io_failure"
	KindPersistenceFailure = "persistence_failure"
	KindConflict           = "conflict"
	KindInternal           = "internal"
)

// UnauthenticatedError indicates a missing or invalid credential.
type UnauthenticatedError struct {
	Message string
}

func (e *UnauthenticatedError) Error() string { return e.Message }

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates the principal may not act on the resource.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// FieldError names one rejected request field.
type FieldError struct {
	Param string `json:"param"`
	Msg   string `json:"msg"`
}

// ValidationError indicates invalid input. Fields is optional.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if e.Message != "" || len(e.Fields) == 0 {
		return e.Message
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Param+": "+f.Msg)
	}
	return strings.Join(msgs, "; ")
}

// PayloadTooLargeError indicates an upload exceeded the configured ceiling.
type PayloadTooLargeError struct {
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload exceeds maximum size of %d bytes", e.Limit)
}

// MalformedContentError indicates stored bytes could not be parsed.
type MalformedContentError struct {
	Message string
	Line    int
}

func (e *MalformedContentError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed content at line %d: %s", e.Line, e.Message)
	}
	return "malformed content: " + e.Message
}

// IOFailureError wraps a storage or stream fault.
type IOFailureError struct {
	Op  string
	Err error
}

func (e *IOFailureError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *IOFailureError) Unwrap() error { return e.Err }

// PersistenceError wraps a database-layer fault.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ErrUnauthenticated creates an UnauthenticatedError with a formatted message.
func ErrUnauthenticated(format string, args ...interface{}) *UnauthenticatedError {
	return &UnauthenticatedError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidFields creates a ValidationError listing the rejected fields.
func ErrInvalidFields(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrIO wraps err as an IOFailureError unless it already carries a domain kind.
func ErrIO(op string, err error) error {
	if err == nil || KindOf(err) != KindInternal {
		return err
	}
	return &IOFailureError{Op: op, Err: err}
}

// ErrPersistence wraps err as a PersistenceError unless it already carries a domain kind.
func ErrPersistence(op string, err error) error {
	if err == nil || KindOf(err) != KindInternal {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// KindOf returns the kind of the outermost typed error in err's chain, or
// KindInternal when the chain carries none.
func KindOf(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch e.(type) {
		case *UnauthenticatedError:
			return KindUnauthenticated
		case *AccessDeniedError:
			return KindForbidden
		case *NotFoundError:
			return KindNotFound
		case *ValidationError:
			return KindValidationFailed
		case *PayloadTooLargeError:
			return KindPayloadTooLarge
		case *MalformedContentError:
			return KindMalformedContent
		case *IOFailureError:
			return KindIOFailure
		case *PersistenceError:
			return KindPersistenceFailure
		case *ConflictError:
			return KindConflict
		}
	}
	return KindInternal
}

// ErrBlobExists is returned by BlobStore.Put when the name is already taken.
var ErrBlobExists = errors.New("blob already exists")

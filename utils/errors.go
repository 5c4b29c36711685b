package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies application errors into the categories the rest of
// the system dispatches on.
type ErrorKind int

const (
	// KindValidation marks malformed input rejected at construction time.
	KindValidation ErrorKind = iota
	// KindInvariant marks an operation that would break an aggregate rule.
	KindInvariant
	// KindNotFound marks a lookup miss.
	KindNotFound
	// KindConflict marks an optimistic-concurrency clash at save time.
	KindConflict
)

// String returns the string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvariant:
		return "invariant"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// AppError is the application error type: a kind, the operation that failed,
// a message, and an optional underlying cause.
type AppError struct {
	Kind    ErrorKind
	Op      string // Operation name, e.g. "Thread.AddMessage"
	Message string
	Err     error
}

// NewAppError creates a new AppError.
func NewAppError(kind ErrorKind, op, message string, err error) *AppError {
	return &AppError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors
func ValidationError(op, message string, err error) *AppError {
	return NewAppError(KindValidation, op, message, err)
}

func InvariantError(op, message string) *AppError {
	return NewAppError(KindInvariant, op, message, nil)
}

func NotFoundError(op, message string) *AppError {
	return NewAppError(KindNotFound, op, message, nil)
}

func ConflictError(op, message string) *AppError {
	return NewAppError(KindConflict, op, message, nil)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

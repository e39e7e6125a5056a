package utils

import "fmt"

// ValidationError is returned for malformed input. Its message is safe to show callers.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthError covers bad credentials and bad tokens. Reason is for logs only.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string { return "authentication failed: " + e.Reason }

func NewAuthError(reason string) error {
	return &AuthError{Reason: reason}
}

// StorageError wraps a failure from Postgres, Redis or ClickHouse.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func NewStorageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

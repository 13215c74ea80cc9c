package aegisvault

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error types represent the categories of failure a caller can act on.
// Lower-level platform and library errors are always wrapped in one of them.

// ValidationError represents a bad argument or disallowed configuration
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// FormatError represents a malformed, truncated or unsupported container file
type FormatError struct {
	Path    string // Container path, if applicable
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("format error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("format error: %s", e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents an AEAD verification failure. A wrong
// password and a tampered container are reported identically.
type AuthenticationError struct {
	Path    string // Container path, if applicable
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *AuthenticationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("authentication error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// EncryptionError represents a cipher failure that is not an authentication
// failure, such as a primitive that could not be constructed
type EncryptionError struct {
	Operation string
	Cipher    string
	Err       error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Operation, e.Cipher, e.Err)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// LockError represents a container already held by another process
type LockError struct {
	Path    string
	Message string
	Err     error
}

func (e *LockError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("lock error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("lock error: %s", e.Message)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// StateError represents an operation attempted in the wrong lifecycle state
type StateError struct {
	Operation string
	Message   string
}

func (e *StateError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("state error: %s: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("state error: %s", e.Message)
}

// IOError represents an underlying storage fault
type IOError struct {
	Operation string // "read", "write", "sync", "open", "close", etc.
	Path      string // File path
	Offset    int64  // File offset, if applicable
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" && e.Offset >= 0 {
		return fmt.Sprintf("io error: %s %s at offset %d: %s", e.Operation, e.Path, e.Offset, e.Message)
	} else if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// PathError records a VFS operation failure on a vault path
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Sentinel errors carried by PathError
var (
	ErrNotFound      = fmt.Errorf("entry not found: %w", fs.ErrNotExist)
	ErrExist         = fmt.Errorf("entry already exists: %w", fs.ErrExist)
	ErrNotDirectory  = errors.New("not a directory")
	ErrIsDirectory   = errors.New("is a directory")
	ErrInvalidName   = &ValidationError{Field: "name", Message: "invalid entry name"}
	ErrRootOperation = errors.New("operation not permitted on root")
)

// Common sentinel errors
var (
	ErrAuthFailed         = errors.New("message authentication failed")
	ErrInvalidHeader      = errors.New("invalid container header")
	ErrUnsupportedVersion = errors.New("unsupported container format version")
	ErrWrongPassword      = errors.New("wrong password or corrupted container")
	ErrBusy               = errors.New("container busy")
	ErrClosed             = errors.New("container is not open")
	ErrAlreadyOpen        = errors.New("container is already open")
	ErrTooManyAttempts    = errors.New("too many failed unlock attempts, retry later")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewFormatError creates a new format error
func NewFormatError(path, message string, err error) error {
	return &FormatError{
		Path:    path,
		Message: message,
		Err:     err,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(path string, err error) error {
	return &AuthenticationError{
		Path:    path,
		Message: err.Error(),
		Err:     err,
	}
}

// NewLockError creates a new lock error
func NewLockError(path string, err error) error {
	return &LockError{
		Path:    path,
		Message: err.Error(),
		Err:     err,
	}
}

// NewStateError creates a new state error
func NewStateError(operation, message string) error {
	return &StateError{
		Operation: operation,
		Message:   message,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Offset:    -1,
		Message:   err.Error(),
		Err:       err,
	}
}

func newPathError(op, path string, err error) error {
	return &PathError{Op: op, Path: path, Err: err}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFormatError checks if an error is a format error
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

// IsLockError checks if an error is a lock error
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}

// IsStateError checks if an error is a state error
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

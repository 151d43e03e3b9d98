package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatContention ErrorCategory = "contention" // Lock held by another worker
	ErrCatCorruption ErrorCategory = "corruption" // Unreadable/invalid persisted record
	ErrCatExhaustion ErrorCategory = "exhaustion" // No disk space or no permission
	ErrCatProtocol   ErrorCategory = "protocol"   // Misuse of the coordination API
	ErrCatTimeout    ErrorCategory = "timeout"    // Bounded wait elapsed
	ErrCatNetwork    ErrorCategory = "network"    // Remote API connectivity
	ErrCatNotFound   ErrorCategory = "not_found"  // Document or record absent
	ErrCatRemote     ErrorCategory = "remote"     // Remote API rejected the request
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the coordination layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrContention creates a contention error. Callers retry with their own
// polling loop; the attempt itself is not fatal.
func ErrContention(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatContention,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrCorruption creates a corruption error.
func ErrCorruption(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatCorruption,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrExhaustion creates a resource exhaustion error. Never silently retried.
func ErrExhaustion(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExhaustion,
		Code:      CodeResourceExhausted,
		Message:   message,
		Retryable: false,
	}
}

// ErrProtocol creates a protocol violation error.
func ErrProtocol(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatProtocol,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrNetwork creates a network error.
func ErrNetwork(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatNetwork,
		Code:      "NETWORK_FAILED",
		Message:   message,
		Retryable: true,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// ErrRemote creates a remote API error.
func ErrRemote(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatRemote,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeLockHeld          = "LOCK_HELD"
	CodeLockNotHeld       = "LOCK_NOT_HELD"
	CodeLockWaitTimeout   = "LOCK_WAIT_TIMEOUT"
	CodeWriteContention   = "WRITE_CONTENTION"
	CodeRecordCorrupted   = "RECORD_CORRUPTED"
	CodeResourceExhausted = "RESOURCE_EXHAUSTED"
	CodeNoShards          = "NO_SHARDS"
	CodeNotRegistered     = "NOT_REGISTERED"
	CodeRunAttemptFailed  = "RUN_ATTEMPT_FAILED"
	CodeRemoteStatus      = "REMOTE_STATUS"
)

package cloud

import (
	"errors"
	"fmt"
)

// ErrorClass is the closed taxonomy of remote failures the engine reasons
// about. Adapters map SDK errors onto these classes; nothing downstream ever
// inspects a raw SDK error.
type ErrorClass string

const (
	ClassTransient        ErrorClass = "TRANSIENT"
	ClassPermissionDenied ErrorClass = "PERMISSION_DENIED"
	ClassQuotaExceeded    ErrorClass = "QUOTA_EXCEEDED"
	ClassInvalidArgument  ErrorClass = "INVALID_ARGUMENT"
	ClassAlreadyExists    ErrorClass = "ALREADY_EXISTS"
	ClassNotFound         ErrorClass = "NOT_FOUND"
)

// Retryable reports whether the class is expected to resolve without
// configuration changes. Only these classes are retried with backoff;
// validation and permission errors never are.
func (c ErrorClass) Retryable() bool {
	return c == ClassTransient || c == ClassQuotaExceeded
}

// RemoteError is a classified control-plane failure.
type RemoteError struct {
	Class ErrorClass
	Op    string // "get", "create", "update", "poll", "bind", ...
	ID    Identity
	Err   error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.ID, e.Class, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.ID, e.Class)
}

// Unwrap exposes the underlying cause.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError builds a classified failure for one boundary call.
func NewRemoteError(class ErrorClass, op string, id Identity, err error) *RemoteError {
	return &RemoteError{Class: class, Op: op, ID: id, Err: err}
}

// ClassOf extracts the error class, or "" for unclassified errors.
func ClassOf(err error) ErrorClass {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Class
	}
	return ""
}

// IsNotFound reports whether err is a ClassNotFound remote error.
func IsNotFound(err error) bool {
	return ClassOf(err) == ClassNotFound
}

// IsAlreadyExists reports whether err is a ClassAlreadyExists remote error.
func IsAlreadyExists(err error) bool {
	return ClassOf(err) == ClassAlreadyExists
}

// IsRetryable reports whether err is a remote error worth retrying.
func IsRetryable(err error) bool {
	return ClassOf(err).Retryable()
}

// IsAuthFailure reports whether err is a permission failure. Auth failures
// are global-fatal: if the engine cannot act as its own principal, every
// remaining node would fail identically.
func IsAuthFailure(err error) bool {
	return ClassOf(err) == ClassPermissionDenied
}

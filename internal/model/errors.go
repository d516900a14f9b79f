package model

import "fmt"

// Error codes carried by RBACError. These surface programming or
// configuration faults, never authorization outcomes: a denied
// request is a PolicyDecision, not an error.
const (
	CodeUnknownRole          = "unknown_role"
	CodeCircularDependency   = "circular_dependency"
	CodeAssignmentNotFound   = "assignment_not_found"
	CodeAssignmentNotPending = "assignment_not_pending"
)

// RBACError reports a role/binding/assignment fault.
type RBACError struct {
	Code string
	Msg  string
}

func (e *RBACError) Error() string {
	return fmt.Sprintf("rbac: %s: %s", e.Code, e.Msg)
}

// NewRBACError builds an RBACError with a formatted message.
func NewRBACError(code, format string, args ...any) *RBACError {
	return &RBACError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// IsRBACCode reports whether err is an RBACError with the given code.
func IsRBACCode(err error, code string) bool {
	re, ok := err.(*RBACError)
	return ok && re.Code == code
}

// StorageError reports a document store I/O failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConsentError is reserved for ledger-level failures distinct from
// storage faults (none today, kept for the taxonomy).
type ConsentError struct {
	Msg string
}

func (e *ConsentError) Error() string {
	return "consent: " + e.Msg
}

// Package taskerrors defines the typed failure vocabulary of the task
// subsystem and its mapping onto JSON-RPC error codes.
package taskerrors

import (
	"fmt"

	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
)

// JSON-RPC 2.0 codes plus the MCP task-layer error code mapping.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Code discriminates the task error taxonomy.
type Code int

const (
	CodeInvalidTransition Code = iota
	CodeNotFound
	CodeExpired
	CodeNotReady
	CodeOwnerMismatch
	CodeResourceExhausted
	CodeVariableSizeExceeded
	CodeInvalidVariables
	CodeConcurrentModification
	CodeInvalidCursor
	CodeStorageFull
	CodeStoreError
)

// TaskError is the single error type returned across store, engine, and
// router boundaries. Callers switch on Code (or use the Is* helpers) to
// recover the specific variant's context.
type TaskError struct {
	Code          Code
	TaskID        string
	From          tasktypes.TaskStatus
	To            tasktypes.TaskStatus
	ExpiredAt     string
	CurrentStatus tasktypes.TaskStatus
	LimitBytes    int64
	ActualBytes   int64
	ExpectedVersion uint64
	ActualVersion   uint64
	SuggestedAction string
	Message       string
	Cause         error
}

func (e *TaskError) Error() string {
	base := e.Message
	if base == "" {
		base = e.defaultMessage()
	}
	if e.TaskID != "" {
		return fmt.Sprintf("task %s: %s", e.TaskID, base)
	}
	return base
}

func (e *TaskError) Unwrap() error { return e.Cause }

func (e *TaskError) defaultMessage() string {
	switch e.Code {
	case CodeInvalidTransition:
		return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
	case CodeNotFound:
		return "task not found"
	case CodeExpired:
		return fmt.Sprintf("task expired at %s; retry with a fresh TTL", e.ExpiredAt)
	case CodeNotReady:
		return fmt.Sprintf("result not ready, current status %s", e.CurrentStatus)
	case CodeOwnerMismatch:
		return "task owned by a different principal"
	case CodeResourceExhausted:
		return "owner task limit exceeded"
	case CodeVariableSizeExceeded:
		return fmt.Sprintf("variables exceed %d bytes (got %d)", e.LimitBytes, e.ActualBytes)
	case CodeInvalidVariables:
		return "variables violate depth or string-length limits"
	case CodeConcurrentModification:
		return fmt.Sprintf("version conflict: expected %d, actual %d; retry", e.ExpectedVersion, e.ActualVersion)
	case CodeInvalidCursor:
		return "invalid pagination cursor"
	case CodeStorageFull:
		return "backend storage full"
	case CodeStoreError:
		return "backend store error"
	default:
		return "task error"
	}
}

// ErrorCode maps a TaskError onto its JSON-RPC code.
func (e *TaskError) ErrorCode() int {
	switch e.Code {
	case CodeInvalidTransition, CodeNotFound, CodeExpired, CodeNotReady,
		CodeVariableSizeExceeded, CodeInvalidVariables, CodeInvalidCursor:
		return CodeInvalidParams
	case CodeResourceExhausted, CodeStorageFull, CodeStoreError, CodeConcurrentModification:
		return CodeInternalError
	case CodeOwnerMismatch:
		// Never meant to reach the wire; callers must translate this to
		// NotFound before returning to the router.
		return CodeInternalError
	default:
		return CodeInternalError
	}
}

// Constructors. Each returns a fully-populated *TaskError; OwnerMismatch
// is built only by AsOwnerMismatchOrNotFound, paired with the NotFound
// that store methods return in its place.

func NewInvalidTransition(taskID string, from, to tasktypes.TaskStatus) *TaskError {
	return &TaskError{Code: CodeInvalidTransition, TaskID: taskID, From: from, To: to}
}

func NewNotFound(taskID string) *TaskError {
	return &TaskError{Code: CodeNotFound, TaskID: taskID}
}

func NewExpired(taskID, expiredAt string) *TaskError {
	return &TaskError{Code: CodeExpired, TaskID: taskID, ExpiredAt: expiredAt}
}

func NewNotReady(taskID string, current tasktypes.TaskStatus) *TaskError {
	return &TaskError{Code: CodeNotReady, TaskID: taskID, CurrentStatus: current}
}

func newOwnerMismatch(taskID string) *TaskError {
	return &TaskError{Code: CodeOwnerMismatch, TaskID: taskID}
}

func NewResourceExhausted(suggestedAction string) *TaskError {
	return &TaskError{Code: CodeResourceExhausted, SuggestedAction: suggestedAction}
}

func NewVariableSizeExceeded(taskID string, limitBytes, actualBytes int64) *TaskError {
	return &TaskError{Code: CodeVariableSizeExceeded, TaskID: taskID, LimitBytes: limitBytes, ActualBytes: actualBytes}
}

func NewInvalidVariables(taskID, message string) *TaskError {
	return &TaskError{Code: CodeInvalidVariables, TaskID: taskID, Message: message}
}

func NewConcurrentModification(taskID string, expected, actual uint64) *TaskError {
	return &TaskError{Code: CodeConcurrentModification, TaskID: taskID, ExpectedVersion: expected, ActualVersion: actual}
}

func NewInvalidCursor(cursor string) *TaskError {
	return &TaskError{Code: CodeInvalidCursor, Message: fmt.Sprintf("invalid cursor %q", cursor)}
}

func NewStoreError(message string, cause error) *TaskError {
	return &TaskError{Code: CodeStoreError, Message: message, Cause: cause}
}

// AsOwnerMismatchOrNotFound is the single place ownerId/record.ownerId
// mismatches are turned into the wire-safe NotFound error. It exists so
// every call site shares one translation point instead of re-deriving the
// "never leak OwnerMismatch" rule.
func AsOwnerMismatchOrNotFound(taskID string) (internal, wire *TaskError) {
	return newOwnerMismatch(taskID), NewNotFound(taskID)
}

// Is* predicates let callers branch without importing the Code constants
// directly, matching the taxonomy's "explicit tagged results" design.

func IsNotFound(err error) bool             { return codeOf(err) == CodeNotFound }
func IsExpired(err error) bool              { return codeOf(err) == CodeExpired }
func IsConcurrentModification(err error) bool { return codeOf(err) == CodeConcurrentModification }
func IsInvalidTransition(err error) bool    { return codeOf(err) == CodeInvalidTransition }

func codeOf(err error) Code {
	te, ok := err.(*TaskError)
	if !ok || te == nil {
		return -1
	}
	return te.Code
}

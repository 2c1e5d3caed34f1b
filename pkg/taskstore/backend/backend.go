// Package backend defines the minimal versioned key-value contract the
// generic task store is built on. A backend knows nothing about tasks,
// owners, or JSON — it stores bytes under keys and tracks a version per
// key for optimistic concurrency.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors a Backend implementation returns. A version conflict is
// not a sentinel: it is reported as *VersionConflictError below, which
// carries Expected/Actual.
var (
	ErrNotFound         = errors.New("backend: key not found")
	ErrCapacityExceeded = errors.New("backend: capacity exceeded")
)

// VersionConflictError is returned by PutIfVersion when the stored
// version does not match the caller's expected version. A backend that
// cannot determine the actual stored version on a failed CAS (e.g. some
// remote KVs) may set Actual equal to Expected as a documented sentinel;
// callers must treat that combination as "unknown, not necessarily a
// match" per spec open question.
type VersionConflictError struct {
	Key      string
	Expected uint64
	Actual   uint64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("backend: version conflict on %q: expected %d, actual %d", e.Key, e.Expected, e.Actual)
}

// Error wraps an opaque backend failure (connection errors, serialization
// failures below the domain layer, etc.).
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backend: %s: %v", e.Message, e.Cause)
	}
	return "backend: " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// VersionedValue is the get/list return shape: the stored bytes plus the
// version they were stored at.
type VersionedValue struct {
	Bytes   []byte
	Version uint64
}

// Entry pairs a key with its versioned value, returned by ListByPrefix.
type Entry struct {
	Key   string
	Value VersionedValue
}

// Backend is the 6-method contract every storage implementation
// (in-memory, DynamoDB, Redis, ...) must satisfy. No method carries
// domain semantics: callers own JSON encoding, ownership checks, and
// state-machine validation.
type Backend interface {
	// Get returns the current bytes and version for key, or ErrNotFound.
	Get(ctx context.Context, key string) (VersionedValue, error)

	// Put writes bytes unconditionally, allocating version 1 for a new
	// key or incrementing the existing version, and returns the new
	// version.
	Put(ctx context.Context, key string, value []byte) (uint64, error)

	// PutIfVersion writes bytes only if the stored version equals
	// expectedVersion, returning the new version on success or a
	// *VersionConflictError on mismatch. A missing key may be reported
	// as ErrNotFound or as a VersionConflictError with Actual 0,
	// depending on what the backend can cheaply determine.
	PutIfVersion(ctx context.Context, key string, value []byte, expectedVersion uint64) (uint64, error)

	// Delete removes key, reporting whether it existed.
	Delete(ctx context.Context, key string) (existed bool, err error)

	// ListByPrefix returns every entry whose key starts with prefix.
	// Order is not guaranteed.
	ListByPrefix(ctx context.Context, prefix string) ([]Entry, error)

	// CleanupExpired sweeps backend-known-expired entries and returns
	// the count removed. Backends with native TTL support may no-op.
	CleanupExpired(ctx context.Context) (int, error)

	// Close releases any resources (background sweepers, connections).
	Close(ctx context.Context) error
}

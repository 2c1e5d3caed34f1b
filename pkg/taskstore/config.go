package taskstore

import "time"

// StoreConfig bounds resource usage across every task the store manages.
// It is immutable after construction: configuration is passed in once,
// at construction time, and never mutated afterward.
type StoreConfig struct {
	// MaxVariableSizeBytes caps the total serialized size of a task's
	// variables map. Default 1 MiB.
	MaxVariableSizeBytes int64 `koanf:"max_variable_size_bytes"`
	// DefaultTTLMs is used when Create is called without an explicit TTL.
	// Default 1 hour.
	DefaultTTLMs int64 `koanf:"default_ttl_ms"`
	// MaxTTLMs rejects (not clamps) any Create request asking for a
	// longer TTL. Default 24 hours.
	MaxTTLMs int64 `koanf:"max_ttl_ms"`
}

const (
	defaultMaxVariableSizeBytes = 1 << 20 // 1 MiB
	defaultTTLMs                = int64(time.Hour / time.Millisecond)
	defaultMaxTTLMs             = int64(24 * time.Hour / time.Millisecond)

	maxVariableDepth     = 10
	maxVariableStringLen = 64 << 10 // 64 KiB
)

// DefaultStoreConfig returns the documented default limits.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxVariableSizeBytes: defaultMaxVariableSizeBytes,
		DefaultTTLMs:         defaultTTLMs,
		MaxTTLMs:             defaultMaxTTLMs,
	}
}

// TaskSecurityConfig governs per-owner resource limits and owner-ID
// resolution fallback. Owner IDs themselves must only ever originate from
// authenticated transport context; DefaultOwnerID is consulted by the
// integration layer, never by the store, when AllowAnonymous is true.
type TaskSecurityConfig struct {
	MaxTasksPerOwner int    `koanf:"max_tasks_per_owner"`
	AllowAnonymous   bool   `koanf:"allow_anonymous"`
	DefaultOwnerID   string `koanf:"default_owner_id"`
}

// DefaultTaskSecurityConfig matches contextd's single-tenant default
// posture: a generous per-owner cap, anonymous access disabled.
func DefaultTaskSecurityConfig() TaskSecurityConfig {
	return TaskSecurityConfig{
		MaxTasksPerOwner: 1000,
		AllowAnonymous:   false,
		DefaultOwnerID:   "local",
	}
}

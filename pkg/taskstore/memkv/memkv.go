// Package memkv provides the reference in-memory Backend implementation:
// a concurrent map of (bytes, version) guarded by a single mutex, plus an
// optional background sweeper for entries carrying an absolute deadline.
package memkv

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/pkg/taskstore/backend"
)

// record is the internal stored shape: bytes, version, and an optional
// absolute deadline the sweeper uses. The backend itself is TTL-agnostic
// about what the bytes mean; deadline is supplied by the caller through
// SetDeadline after a write, and Put/PutIfVersion leave it unchanged.
type record struct {
	bytes    []byte
	version  uint64
	deadline time.Time // zero value means "no deadline"
}

// Backend is the in-memory reference implementation of backend.Backend.
// Locking is a single RWMutex over the whole map: critical sections never
// span a suspension point, so this remains safe under arbitrary
// cancellation per the concurrency model's "no partial persisted state"
// guarantee.
type Backend struct {
	mu      sync.RWMutex
	data    map[string]*record
	logger  *zap.Logger
	sweep   time.Duration
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Backend at construction.
type Option func(*Backend)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Backend) { b.logger = logger }
}

// WithSweepInterval starts a background goroutine that calls
// CleanupExpired on the given interval. Zero (the default) disables the
// sweeper; callers are then responsible for invoking CleanupExpired
// themselves (e.g. from the task store's own cleanup operation).
func WithSweepInterval(d time.Duration) Option {
	return func(b *Backend) { b.sweep = d }
}

// NewBackend constructs an empty in-memory backend.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		data:   make(map[string]*record),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.sweep > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		b.done = make(chan struct{})
		go b.sweepLoop(ctx)
	}
	return b
}

func (b *Backend) sweepLoop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := b.CleanupExpired(ctx)
			if err != nil {
				b.logger.Warn("memkv: sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				b.logger.Info("memkv: swept expired entries", zap.Int("count", n))
			}
		}
	}
}

// SetDeadline records an absolute deadline for key, consulted only by
// CleanupExpired; it does not affect Get/Put semantics. The task store
// calls this after Put/PutIfVersion when a record carries a TTL, keeping
// expiry sweeping independent of the domain's own JSON-encoded expiry
// field.
func (b *Backend) SetDeadline(key string, deadline time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.data[key]; ok {
		r.deadline = deadline
	}
}

func (b *Backend) Get(_ context.Context, key string) (backend.VersionedValue, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.data[key]
	if !ok {
		return backend.VersionedValue{}, backend.ErrNotFound
	}
	out := make([]byte, len(r.bytes))
	copy(out, r.bytes)
	return backend.VersionedValue{Bytes: out, Version: r.version}, nil
}

func (b *Backend) Put(_ context.Context, key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.data[key]
	if !ok {
		r = &record{}
		b.data[key] = r
	}
	r.version++
	r.bytes = append([]byte(nil), value...)
	return r.version, nil
}

func (b *Backend) PutIfVersion(_ context.Context, key string, value []byte, expectedVersion uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.data[key]
	if !ok {
		if expectedVersion != 0 {
			return 0, &backend.VersionConflictError{Key: key, Expected: expectedVersion, Actual: 0}
		}
		r = &record{}
		b.data[key] = r
	}
	if r.version != expectedVersion {
		return 0, &backend.VersionConflictError{Key: key, Expected: expectedVersion, Actual: r.version}
	}
	r.version++
	r.bytes = append([]byte(nil), value...)
	return r.version, nil
}

func (b *Backend) Delete(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.data[key]
	if ok {
		delete(b.data, key)
	}
	return ok, nil
}

func (b *Backend) ListByPrefix(_ context.Context, prefix string) ([]backend.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]backend.Entry, 0)
	for k, r := range b.data {
		if !hasPrefix(k, prefix) {
			continue
		}
		out := make([]byte, len(r.bytes))
		copy(out, r.bytes)
		entries = append(entries, backend.Entry{
			Key:   k,
			Value: backend.VersionedValue{Bytes: out, Version: r.version},
		})
	}
	return entries, nil
}

func (b *Backend) CleanupExpired(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	removed := 0
	for k, r := range b.data {
		if r.deadline.IsZero() {
			continue
		}
		if now.After(r.deadline) {
			delete(b.data, k)
			removed++
		}
	}
	return removed, nil
}

func (b *Backend) Close(_ context.Context) error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

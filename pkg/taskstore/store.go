// Package taskstore implements the generic, backend-agnostic domain layer
// for MCP tasks: creation, status transitions, variable merging, result
// completion, owner-scoped listing, and expiry sweeping, all built atop
// the minimal backend.Backend contract.
package taskstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/pkg/taskerrors"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore/backend"
	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
)

const instrumentationName = "github.com/fyrsmithlabs/contextd/pkg/taskstore"

// Store is the domain-layer surface every component downstream of the
// store (task context, workflow engine, router) depends on. It is
// implemented by *GenericTaskStore[B] for any backend.Backend B; code
// that only needs Store never has to name the backend type parameter.
type Store interface {
	Create(ctx context.Context, ownerID, requestMethod string, ttlMs *int64) (*TaskRecord, error)
	Get(ctx context.Context, taskID, ownerID string) (*TaskRecord, error)
	UpdateStatus(ctx context.Context, taskID, ownerID string, newStatus tasktypes.TaskStatus, message string) (*TaskRecord, error)
	SetVariables(ctx context.Context, taskID, ownerID string, vars map[string]any) (*TaskRecord, error)
	SetResult(ctx context.Context, taskID, ownerID string, result any) (*TaskRecord, error)
	GetResult(ctx context.Context, taskID, ownerID string) (any, error)
	CompleteWithResult(ctx context.Context, taskID, ownerID string, status tasktypes.TaskStatus, message string, result any) (*TaskRecord, error)
	List(ctx context.Context, opts tasktypes.ListOptions) (tasktypes.TaskPage, error)
	Cancel(ctx context.Context, taskID, ownerID string) (*TaskRecord, error)
	CleanupExpired(ctx context.Context) (int, error)
	Config() StoreConfig
}

// GenericTaskStore is the sole Store implementation, parameterized over
// the backend it persists through. A blanket assertion below makes any
// instantiation usable wherever Store is expected.
type GenericTaskStore[B backend.Backend] struct {
	backend B
	cfg     StoreConfig
	sec     TaskSecurityConfig
	logger  *zap.Logger
	tracer  trace.Tracer

	createCount   metric.Int64Counter
	casConflicts  metric.Int64Counter
	activeTasks   metric.Int64UpDownCounter
	opDuration    metric.Float64Histogram

	now func() time.Time
}

var _ Store = (*GenericTaskStore[backend.Backend])(nil)

// Option configures a GenericTaskStore at construction.
type Option[B backend.Backend] func(*GenericTaskStore[B])

func WithLogger[B backend.Backend](logger *zap.Logger) Option[B] {
	return func(s *GenericTaskStore[B]) { s.logger = logger }
}

func WithSecurityConfig[B backend.Backend](sec TaskSecurityConfig) Option[B] {
	return func(s *GenericTaskStore[B]) { s.sec = sec }
}

// WithClock overrides the time source; intended for tests that need
// deterministic expiry boundaries.
func WithClock[B backend.Backend](now func() time.Time) Option[B] {
	return func(s *GenericTaskStore[B]) { s.now = now }
}

// New constructs a task store over the given backend and configuration.
func New[B backend.Backend](be B, cfg StoreConfig, opts ...Option[B]) *GenericTaskStore[B] {
	s := &GenericTaskStore[B]{
		backend: be,
		cfg:     cfg,
		sec:     DefaultTaskSecurityConfig(),
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(instrumentationName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initMetrics()
	return s
}

func (s *GenericTaskStore[B]) initMetrics() {
	meter := otel.Meter(instrumentationName)
	var err error
	if s.createCount, err = meter.Int64Counter(
		"taskstore.tasks.created_total",
		metric.WithDescription("Total number of tasks created"),
	); err != nil {
		s.logger.Warn("taskstore: failed to create counter", zap.Error(err))
	}
	if s.casConflicts, err = meter.Int64Counter(
		"taskstore.cas.conflicts_total",
		metric.WithDescription("Total number of CAS version conflicts"),
	); err != nil {
		s.logger.Warn("taskstore: failed to create counter", zap.Error(err))
	}
	if s.activeTasks, err = meter.Int64UpDownCounter(
		"taskstore.tasks.active",
		metric.WithDescription("Number of non-terminal tasks"),
	); err != nil {
		s.logger.Warn("taskstore: failed to create gauge", zap.Error(err))
	}
	if s.opDuration, err = meter.Float64Histogram(
		"taskstore.op.duration_seconds",
		metric.WithDescription("Duration of task store operations"),
		metric.WithUnit("s"),
	); err != nil {
		s.logger.Warn("taskstore: failed to create histogram", zap.Error(err))
	}
}

func (s *GenericTaskStore[B]) recordOp(ctx context.Context, op string, start time.Time, err error) {
	if s.opDuration == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("op", op)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	s.opDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
}

func (s *GenericTaskStore[B]) Config() StoreConfig { return s.cfg }

// readRecord fetches and decodes the record for (taskID, ownerID),
// translating a cross-owner hit into NotFound without ever surfacing
// OwnerMismatch.
func (s *GenericTaskStore[B]) readRecord(ctx context.Context, taskID, ownerID string) (*TaskRecord, uint64, error) {
	vv, err := s.backend.Get(ctx, key(ownerID, taskID))
	if err == backend.ErrNotFound {
		return nil, 0, taskerrors.NewNotFound(taskID)
	}
	if err != nil {
		return nil, 0, taskerrors.NewStoreError("get failed", err)
	}
	var rec TaskRecord
	if err := json.Unmarshal(vv.Bytes, &rec); err != nil {
		return nil, 0, taskerrors.NewStoreError("corrupt task record", err)
	}
	if rec.OwnerID != ownerID {
		internal, wire := taskerrors.AsOwnerMismatchOrNotFound(taskID)
		s.logger.Warn("taskstore: owner mismatch", zap.String("taskId", taskID), zap.Error(internal))
		return nil, 0, wire
	}
	rec.Version = vv.Version
	return &rec, vv.Version, nil
}

func (s *GenericTaskStore[B]) writeRecord(ctx context.Context, rec *TaskRecord) error {
	rec.Task.LastUpdatedAt = s.now().UTC().Format(time.RFC3339Nano)
	encoded, err := json.Marshal(rec)
	if err != nil {
		return taskerrors.NewStoreError("encode failed", err)
	}
	newVersion, err := s.backend.PutIfVersion(ctx, key(rec.OwnerID, rec.Task.TaskID), encoded, rec.Version)
	if err != nil {
		if vc, ok := err.(*backend.VersionConflictError); ok {
			if s.casConflicts != nil {
				s.casConflicts.Add(ctx, 1)
			}
			return taskerrors.NewConcurrentModification(rec.Task.TaskID, vc.Expected, vc.Actual)
		}
		return taskerrors.NewStoreError("put failed", err)
	}
	rec.Version = newVersion
	if sweeper, ok := any(s.backend).(interface {
		SetDeadline(key string, deadline time.Time)
	}); ok && rec.ExpiresAt != nil {
		sweeper.SetDeadline(key(rec.OwnerID, rec.Task.TaskID), *rec.ExpiresAt)
	}
	return nil
}

func (s *GenericTaskStore[B]) Create(ctx context.Context, ownerID, requestMethod string, ttlMs *int64) (*TaskRecord, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.Create")
	defer span.End()
	start := s.now()

	if err := s.enforceOwnerCap(ctx, ownerID); err != nil {
		s.recordOp(ctx, "create", start, err)
		return nil, err
	}

	effectiveTTL := s.cfg.DefaultTTLMs
	if ttlMs != nil {
		if *ttlMs > s.cfg.MaxTTLMs {
			err := taskerrors.NewResourceExhausted("requested TTL exceeds the configured maximum")
			s.recordOp(ctx, "create", start, err)
			return nil, err
		}
		effectiveTTL = *ttlMs
	}

	taskID := uuid.NewString()
	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	var expiresAt *time.Time
	var ttlField *int64
	if effectiveTTL > 0 {
		deadline := now.Add(time.Duration(effectiveTTL) * time.Millisecond)
		expiresAt = &deadline
		ttlField = &effectiveTTL
	}

	rec := &TaskRecord{
		Task: tasktypes.Task{
			TaskID:        taskID,
			Status:        tasktypes.TaskStatusWorking,
			CreatedAt:     nowStr,
			LastUpdatedAt: nowStr,
			TTL:           ttlField,
		},
		OwnerID:       ownerID,
		Variables:     map[string]any{},
		RequestMethod: requestMethod,
		ExpiresAt:     expiresAt,
		Version:       0,
	}

	if err := s.writeRecord(ctx, rec); err != nil {
		s.recordOp(ctx, "create", start, err)
		return nil, err
	}
	if s.createCount != nil {
		s.createCount.Add(ctx, 1)
	}
	if s.activeTasks != nil {
		s.activeTasks.Add(ctx, 1)
	}
	s.recordOp(ctx, "create", start, nil)
	return rec, nil
}

func (s *GenericTaskStore[B]) enforceOwnerCap(ctx context.Context, ownerID string) error {
	if s.sec.MaxTasksPerOwner <= 0 {
		return nil
	}
	entries, err := s.backend.ListByPrefix(ctx, ownerPrefix(ownerID))
	if err != nil {
		return taskerrors.NewStoreError("list failed", err)
	}
	live := 0
	for _, e := range entries {
		var rec TaskRecord
		if json.Unmarshal(e.Value.Bytes, &rec) == nil && !rec.Task.Status.IsTerminal() {
			live++
		}
	}
	if live >= s.sec.MaxTasksPerOwner {
		return taskerrors.NewResourceExhausted("per-owner task limit reached; wait for existing tasks to finish")
	}
	return nil
}

// Get returns a record regardless of expiry, so a client can see "why
// gone"; mutations reject expired tasks explicitly (spec open question).
func (s *GenericTaskStore[B]) Get(ctx context.Context, taskID, ownerID string) (*TaskRecord, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.Get")
	defer span.End()
	start := s.now()
	rec, _, err := s.readRecord(ctx, taskID, ownerID)
	s.recordOp(ctx, "get", start, err)
	return rec, err
}

func (s *GenericTaskStore[B]) checkNotExpired(rec *TaskRecord) error {
	if rec.IsExpired(s.now()) {
		expiredAt := ""
		if rec.ExpiresAt != nil {
			expiredAt = rec.ExpiresAt.UTC().Format(time.RFC3339Nano)
		}
		return taskerrors.NewExpired(rec.Task.TaskID, expiredAt)
	}
	return nil
}

func (s *GenericTaskStore[B]) UpdateStatus(ctx context.Context, taskID, ownerID string, newStatus tasktypes.TaskStatus, message string) (*TaskRecord, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.UpdateStatus")
	defer span.End()
	start := s.now()

	rec, _, err := s.readRecord(ctx, taskID, ownerID)
	if err != nil {
		s.recordOp(ctx, "update_status", start, err)
		return nil, err
	}
	if err := s.checkNotExpired(rec); err != nil {
		s.recordOp(ctx, "update_status", start, err)
		return nil, err
	}
	if !tasktypes.CanTransition(rec.Task.Status, newStatus) {
		err := taskerrors.NewInvalidTransition(taskID, rec.Task.Status, newStatus)
		s.recordOp(ctx, "update_status", start, err)
		return nil, err
	}
	wasTerminal := rec.Task.Status.IsTerminal()
	rec.Task.Status = newStatus
	if message != "" {
		rec.Task.StatusMessage = message
	}
	if err := s.writeRecord(ctx, rec); err != nil {
		s.recordOp(ctx, "update_status", start, err)
		return nil, err
	}
	if !wasTerminal && newStatus.IsTerminal() && s.activeTasks != nil {
		s.activeTasks.Add(ctx, -1)
	}
	s.recordOp(ctx, "update_status", start, nil)
	return rec, nil
}

func (s *GenericTaskStore[B]) SetVariables(ctx context.Context, taskID, ownerID string, vars map[string]any) (*TaskRecord, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.SetVariables")
	defer span.End()
	start := s.now()

	rec, _, err := s.readRecord(ctx, taskID, ownerID)
	if err != nil {
		s.recordOp(ctx, "set_variables", start, err)
		return nil, err
	}
	if err := s.checkNotExpired(rec); err != nil {
		s.recordOp(ctx, "set_variables", start, err)
		return nil, err
	}
	if rec.Task.Status.IsTerminal() {
		err := taskerrors.NewInvalidTransition(taskID, rec.Task.Status, rec.Task.Status)
		err.Message = "cannot set variables on a terminal task"
		s.recordOp(ctx, "set_variables", start, err)
		return nil, err
	}

	merged := mergeVariables(rec.Variables, vars)
	if err := validateVariables(taskID, merged, s.cfg); err != nil {
		s.recordOp(ctx, "set_variables", start, err)
		return nil, err
	}
	rec.Variables = merged

	if err := s.writeRecord(ctx, rec); err != nil {
		s.recordOp(ctx, "set_variables", start, err)
		return nil, err
	}
	s.recordOp(ctx, "set_variables", start, nil)
	return rec, nil
}

func (s *GenericTaskStore[B]) SetResult(ctx context.Context, taskID, ownerID string, result any) (*TaskRecord, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.SetResult")
	defer span.End()
	start := s.now()

	rec, _, err := s.readRecord(ctx, taskID, ownerID)
	if err != nil {
		s.recordOp(ctx, "set_result", start, err)
		return nil, err
	}
	if !rec.Task.Status.IsTerminal() {
		err := taskerrors.NewNotReady(taskID, rec.Task.Status)
		s.recordOp(ctx, "set_result", start, err)
		return nil, err
	}
	rec.Result = result
	if err := s.writeRecord(ctx, rec); err != nil {
		s.recordOp(ctx, "set_result", start, err)
		return nil, err
	}
	s.recordOp(ctx, "set_result", start, nil)
	return rec, nil
}

func (s *GenericTaskStore[B]) GetResult(ctx context.Context, taskID, ownerID string) (any, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.GetResult")
	defer span.End()
	start := s.now()

	rec, _, err := s.readRecord(ctx, taskID, ownerID)
	if err != nil {
		s.recordOp(ctx, "get_result", start, err)
		return nil, err
	}
	if !rec.Task.Status.IsTerminal() {
		err := taskerrors.NewNotReady(taskID, rec.Task.Status)
		s.recordOp(ctx, "get_result", start, err)
		return nil, err
	}
	s.recordOp(ctx, "get_result", start, nil)
	return rec.Result, nil
}

// CompleteWithResult is the store's critical atomic: the status
// transition and the result write happen in a single CAS call, so no
// caller ever observes one without the other.
func (s *GenericTaskStore[B]) CompleteWithResult(ctx context.Context, taskID, ownerID string, status tasktypes.TaskStatus, message string, result any) (*TaskRecord, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.CompleteWithResult")
	defer span.End()
	start := s.now()

	if !status.IsTerminal() {
		err := taskerrors.NewInvalidTransition(taskID, status, status)
		err.Message = "complete_with_result requires a terminal target status"
		s.recordOp(ctx, "complete_with_result", start, err)
		return nil, err
	}

	rec, _, err := s.readRecord(ctx, taskID, ownerID)
	if err != nil {
		s.recordOp(ctx, "complete_with_result", start, err)
		return nil, err
	}
	if err := s.checkNotExpired(rec); err != nil {
		s.recordOp(ctx, "complete_with_result", start, err)
		return nil, err
	}
	if !tasktypes.CanTransition(rec.Task.Status, status) {
		err := taskerrors.NewInvalidTransition(taskID, rec.Task.Status, status)
		s.recordOp(ctx, "complete_with_result", start, err)
		return nil, err
	}

	wasTerminal := rec.Task.Status.IsTerminal()
	rec.Task.Status = status
	if message != "" {
		rec.Task.StatusMessage = message
	}
	rec.Result = result

	if err := s.writeRecord(ctx, rec); err != nil {
		s.recordOp(ctx, "complete_with_result", start, err)
		return nil, err
	}
	if !wasTerminal && s.activeTasks != nil {
		s.activeTasks.Add(ctx, -1)
	}
	s.recordOp(ctx, "complete_with_result", start, nil)
	return rec, nil
}

func (s *GenericTaskStore[B]) Cancel(ctx context.Context, taskID, ownerID string) (*TaskRecord, error) {
	return s.UpdateStatus(ctx, taskID, ownerID, tasktypes.TaskStatusCancelled, "")
}

// List performs an owner-scoped prefix scan with cursor-based pagination.
// The cursor is an opaque offset into the (stably sorted) key space of
// the owner's prefix; a cursor that no longer parses is InvalidCursor.
func (s *GenericTaskStore[B]) List(ctx context.Context, opts tasktypes.ListOptions) (tasktypes.TaskPage, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.List")
	defer span.End()
	start := s.now()

	entries, err := s.backend.ListByPrefix(ctx, ownerPrefix(opts.OwnerID))
	if err != nil {
		werr := taskerrors.NewStoreError("list failed", err)
		s.recordOp(ctx, "list", start, werr)
		return tasktypes.TaskPage{}, werr
	}

	sortEntriesByKey(entries)

	offset := 0
	if opts.Cursor != "" {
		offset, err = decodeCursor(opts.Cursor)
		if err != nil {
			werr := taskerrors.NewInvalidCursor(opts.Cursor)
			s.recordOp(ctx, "list", start, werr)
			return tasktypes.TaskPage{}, werr
		}
	}
	if offset < 0 || offset > len(entries) {
		werr := taskerrors.NewInvalidCursor(opts.Cursor)
		s.recordOp(ctx, "list", start, werr)
		return tasktypes.TaskPage{}, werr
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	page := tasktypes.TaskPage{Tasks: make([]tasktypes.Task, 0, limit)}
	i := offset
	for ; i < len(entries) && len(page.Tasks) < limit; i++ {
		var rec TaskRecord
		if err := json.Unmarshal(entries[i].Value.Bytes, &rec); err != nil {
			continue
		}
		if opts.StatusFilter != nil && rec.Task.Status != *opts.StatusFilter {
			continue
		}
		page.Tasks = append(page.Tasks, rec.Task)
	}
	if i < len(entries) {
		page.NextCursor = encodeCursor(i)
	}
	s.recordOp(ctx, "list", start, nil)
	return page, nil
}

func (s *GenericTaskStore[B]) CleanupExpired(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "TaskStore.CleanupExpired")
	defer span.End()
	start := s.now()

	n, err := s.backend.CleanupExpired(ctx)
	if err != nil {
		werr := taskerrors.NewStoreError("cleanup failed", err)
		s.recordOp(ctx, "cleanup_expired", start, werr)
		return 0, werr
	}
	s.recordOp(ctx, "cleanup_expired", start, nil)
	return n, nil
}

package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextd/pkg/taskerrors"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore/memkv"
	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
)

func newTestStore(t *testing.T) *GenericTaskStore[*memkv.Backend] {
	t.Helper()
	be := memkv.NewBackend()
	t.Cleanup(func() { _ = be.Close(context.Background()) })
	return New(be, DefaultStoreConfig())
}

func TestCreateThenGetHappyPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)
	require.Equal(t, tasktypes.TaskStatusWorking, rec.Task.Status)
	require.NotEmpty(t, rec.Task.TaskID)

	got, err := store.Get(ctx, rec.Task.TaskID, "owner1")
	require.NoError(t, err)
	require.Equal(t, rec.Task.TaskID, got.Task.TaskID)
}

func TestCrossOwnerGetReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	_, err = store.Get(ctx, rec.Task.TaskID, "owner2")
	require.True(t, taskerrors.IsNotFound(err), "expected NotFound for cross-owner access, got %v", err)
}

func TestCASConflictOnConcurrentUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	_, err = store.UpdateStatus(ctx, rec.Task.TaskID, "owner1", tasktypes.TaskStatusCompleted, "")
	require.NoError(t, err)

	stale := *rec
	stale.Version = 0
	err = store.writeRecord(ctx, &stale)
	require.Error(t, err)
	require.True(t, taskerrors.IsConcurrentModification(err))
}

func TestTerminalTaskRejectsFurtherTransitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	_, err = store.UpdateStatus(ctx, rec.Task.TaskID, "owner1", tasktypes.TaskStatusCompleted, "")
	require.NoError(t, err)

	_, err = store.UpdateStatus(ctx, rec.Task.TaskID, "owner1", tasktypes.TaskStatusWorking, "")
	require.True(t, taskerrors.IsInvalidTransition(err))
}

func TestCompleteWithResultIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	_, err = store.CompleteWithResult(ctx, rec.Task.TaskID, "owner1", tasktypes.TaskStatusCompleted, "done", map[string]any{"x": 1})
	require.NoError(t, err)

	got, err := store.Get(ctx, rec.Task.TaskID, "owner1")
	require.NoError(t, err)
	require.True(t, got.Task.Status.IsTerminal())

	result, err := store.GetResult(ctx, rec.Task.TaskID, "owner1")
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestGetResultBeforeTerminalIsNotReady(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	_, err = store.GetResult(ctx, rec.Task.TaskID, "owner1")
	require.Error(t, err)
	te, ok := err.(*taskerrors.TaskError)
	require.True(t, ok)
	require.Equal(t, taskerrors.CodeNotReady, te.Code)
}

func TestCreateWithTTLExceedingMaxIsRejectedNotClamped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tooLong := store.Config().MaxTTLMs + 1
	_, err := store.Create(ctx, "owner1", "tools/call", &tooLong)
	require.Error(t, err)
}

func TestVariableDepthBoundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	// The variables map itself is depth 1, "v" is checked at depth 2, so
	// buildNested(8) places its leaf value at depth 10 (accepted) and
	// buildNested(9) places it at depth 11 (rejected).
	atLimit := buildNested(8)
	_, err = store.SetVariables(ctx, rec.Task.TaskID, "owner1", map[string]any{"v": atLimit})
	require.NoError(t, err)

	overLimit := buildNested(9)
	_, err = store.SetVariables(ctx, rec.Task.TaskID, "owner1", map[string]any{"v": overLimit})
	require.Error(t, err)
}

func buildNested(levels int) any {
	var v any = "leaf"
	for i := 0; i < levels; i++ {
		v = map[string]any{"nested": v}
	}
	return v
}

func TestVariableStringLengthBoundary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	ok := make([]byte, maxVariableStringLen)
	_, err = store.SetVariables(ctx, rec.Task.TaskID, "owner1", map[string]any{"s": string(ok)})
	require.NoError(t, err)

	tooLong := make([]byte, maxVariableStringLen+1)
	_, err = store.SetVariables(ctx, rec.Task.TaskID, "owner1", map[string]any{"s": string(tooLong)})
	require.Error(t, err)
}

func TestListPaginatesByOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Create(ctx, "owner1", "tools/call", nil)
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, "owner2", "tools/call", nil)
	require.NoError(t, err)

	page, err := store.List(ctx, tasktypes.ListOptions{OwnerID: "owner1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Tasks, 2)
	require.NotEmpty(t, page.NextCursor)

	var total int
	cursor := ""
	for {
		p, err := store.List(ctx, tasktypes.ListOptions{OwnerID: "owner1", Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		total += len(p.Tasks)
		if p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}
	require.Equal(t, 5, total)
}

func TestCancelTransitionsToCancelled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	rec, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	got, err := store.Cancel(ctx, rec.Task.TaskID, "owner1")
	require.NoError(t, err)
	require.Equal(t, tasktypes.TaskStatusCancelled, got.Task.Status)
}

func TestExpiredTaskRejectsMutationButGetStillReturnsIt(t *testing.T) {
	now := time.Now()
	clock := now
	be := memkv.NewBackend()
	t.Cleanup(func() { _ = be.Close(context.Background()) })
	store := New(be, DefaultStoreConfig(), WithClock[*memkv.Backend](func() time.Time { return clock }))
	ctx := context.Background()

	ttl := int64(1000)
	rec, err := store.Create(ctx, "owner1", "tools/call", &ttl)
	require.NoError(t, err)

	clock = now.Add(2 * time.Second)

	got, err := store.Get(ctx, rec.Task.TaskID, "owner1")
	require.NoError(t, err)
	require.Equal(t, rec.Task.TaskID, got.Task.TaskID)

	_, err = store.UpdateStatus(ctx, rec.Task.TaskID, "owner1", tasktypes.TaskStatusCompleted, "")
	require.True(t, taskerrors.IsExpired(err))
}

func TestOwnerTaskCapEnforced(t *testing.T) {
	be := memkv.NewBackend()
	t.Cleanup(func() { _ = be.Close(context.Background()) })
	cfg := DefaultStoreConfig()
	store := New(be, cfg, WithSecurityConfig[*memkv.Backend](TaskSecurityConfig{MaxTasksPerOwner: 1}))
	ctx := context.Background()

	_, err := store.Create(ctx, "owner1", "tools/call", nil)
	require.NoError(t, err)

	_, err = store.Create(ctx, "owner1", "tools/call", nil)
	require.Error(t, err)
}

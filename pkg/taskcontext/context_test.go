package taskcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextd/pkg/taskerrors"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore/memkv"
	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
)

func newTestTaskContext(t *testing.T) (*TaskContext, taskstore.Store, string) {
	t.Helper()
	be := memkv.NewBackend()
	t.Cleanup(func() { _ = be.Close(context.Background()) })
	store := taskstore.New(be, taskstore.DefaultStoreConfig())
	rec, err := store.Create(context.Background(), "owner1", "tools/call", nil)
	require.NoError(t, err)
	return New(store, rec.Task.TaskID, "owner1"), store, rec.Task.TaskID
}

func TestSetThenGetVariable(t *testing.T) {
	ctx := context.Background()
	tc, _, _ := newTestTaskContext(t)

	require.NoError(t, tc.SetVariable(ctx, "region", "us-east-1"))

	v, ok, err := tc.GetVariable(ctx, "region")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "us-east-1", v)
}

func TestGetVariableMissingReturnsNotOK(t *testing.T) {
	ctx := context.Background()
	tc, _, _ := newTestTaskContext(t)

	_, ok, err := tc.GetVariable(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetVariablesMergesMultipleKeys(t *testing.T) {
	ctx := context.Background()
	tc, _, _ := newTestTaskContext(t)

	require.NoError(t, tc.SetVariables(ctx, map[string]any{"a": 1, "b": 2}))

	a, ok, err := tc.GetVariable(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, a)
}

func TestRequestStatusChangeDelegatesToStore(t *testing.T) {
	ctx := context.Background()
	tc, store, taskID := newTestTaskContext(t)

	require.NoError(t, tc.RequestStatusChange(ctx, tasktypes.TaskStatusCompleted, "done"))

	status, err := tc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, tasktypes.TaskStatusCompleted, status)

	rec, err := store.Get(ctx, taskID, "owner1")
	require.NoError(t, err)
	require.Equal(t, tasktypes.TaskStatusCompleted, rec.Task.Status)
}

func TestRequestStatusChangeRejectsIllegalTransition(t *testing.T) {
	ctx := context.Background()
	tc, _, _ := newTestTaskContext(t)

	require.NoError(t, tc.RequestStatusChange(ctx, tasktypes.TaskStatusCompleted, ""))
	err := tc.RequestStatusChange(ctx, tasktypes.TaskStatusWorking, "")
	require.Error(t, err)
}

func TestSetTTLIsNotYetSupported(t *testing.T) {
	ctx := context.Background()
	tc, _, _ := newTestTaskContext(t)

	err := tc.SetTTL(ctx, 1000)
	require.Error(t, err)
}

func TestSetTTLOnTerminalTaskReportsInvalidTransition(t *testing.T) {
	ctx := context.Background()
	tc, _, _ := newTestTaskContext(t)

	require.NoError(t, tc.RequestStatusChange(ctx, tasktypes.TaskStatusCompleted, ""))
	err := tc.SetTTL(ctx, 1000)
	require.Error(t, err)
	require.True(t, taskerrors.IsInvalidTransition(err))
}

// Package taskcontext gives a running tool handler a narrow, task-scoped
// view of the store: its own status, variables, and TTL, without handing
// it the full Store surface (listing or touching other tasks).
package taskcontext

import (
	"context"

	"github.com/fyrsmithlabs/contextd/pkg/taskerrors"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore"
	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
)

// TaskContext is injected into a tool handler invoked on behalf of a
// task: a narrower per-request surface wrapped around the broader
// taskstore.Store.
type TaskContext struct {
	store   taskstore.Store
	taskID  string
	ownerID string
}

// New constructs a TaskContext scoped to one task and owner.
func New(store taskstore.Store, taskID, ownerID string) *TaskContext {
	return &TaskContext{store: store, taskID: taskID, ownerID: ownerID}
}

func (t *TaskContext) TaskID() string { return t.taskID }

func (t *TaskContext) Status(ctx context.Context) (tasktypes.TaskStatus, error) {
	rec, err := t.store.Get(ctx, t.taskID, t.ownerID)
	if err != nil {
		return "", err
	}
	return rec.Task.Status, nil
}

// GetVariable reads a single variable by key, reporting whether it was
// present.
func (t *TaskContext) GetVariable(ctx context.Context, name string) (any, bool, error) {
	rec, err := t.store.Get(ctx, t.taskID, t.ownerID)
	if err != nil {
		return nil, false, err
	}
	v, ok := rec.Variables[name]
	return v, ok, nil
}

// SetVariable merges a single key into the task's variables.
func (t *TaskContext) SetVariable(ctx context.Context, name string, value any) error {
	_, err := t.store.SetVariables(ctx, t.taskID, t.ownerID, map[string]any{name: value})
	return err
}

// SetVariables merges several keys at once.
func (t *TaskContext) SetVariables(ctx context.Context, vars map[string]any) error {
	_, err := t.store.SetVariables(ctx, t.taskID, t.ownerID, vars)
	return err
}

// RequestStatusChange drives the task's state machine forward, rejecting
// illegal transitions exactly as the store does (it delegates directly).
func (t *TaskContext) RequestStatusChange(ctx context.Context, newStatus tasktypes.TaskStatus, message string) error {
	_, err := t.store.UpdateStatus(ctx, t.taskID, t.ownerID, newStatus, message)
	return err
}

// SetTTL never changes the TTL; the store has no in-place TTL mutation.
// It reads the task's current status and returns InvalidTransition if the
// task is already terminal, matching the store's own terminal-write
// rejection for SetVariables, and a StoreError otherwise.
func (t *TaskContext) SetTTL(ctx context.Context, _ int64) error {
	status, err := t.Status(ctx)
	if err != nil {
		return err
	}
	if status.IsTerminal() {
		return taskerrors.NewInvalidTransition(t.taskID, status, status)
	}
	// TTL extension beyond creation time is intentionally not part of
	// the v1 store surface. This method exists so handlers have a
	// stable place to request it once the store grows one, and fails
	// loudly in the meantime rather than silently no-opping.
	return taskerrors.NewStoreError("SetTTL is not yet supported by the store", nil)
}

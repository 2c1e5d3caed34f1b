// Package taskrouter routes the MCP tasks/* method family onto a
// taskstore.Store, translating domain errors to JSON-RPC codes and
// injecting the wire metadata MCP requires (related-task, variable
// channel). It is transport-agnostic: the host's stdio/HTTP/WebSocket
// runtime is an external collaborator that calls into Router's typed
// methods without assuming any particular transport.
package taskrouter

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/pkg/taskerrors"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore"
	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
)

// pollInterval governs how often TaskResult re-checks the store while
// waiting for a task to reach a terminal status.
const pollInterval = 100 * time.Millisecond

// Router exposes one method per tasks/* wire operation.
type Router struct {
	store  taskstore.Store
	logger *zap.Logger
}

// New constructs a Router over store.
func New(store taskstore.Store, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{store: store, logger: logger}
}

func (r *Router) ownerID(ctx context.Context) (string, *jsonrpc.Error) {
	ownerID, ok := OwnerIDFromContext(ctx)
	if !ok {
		return "", &jsonrpc.Error{Code: taskerrors.CodeInvalidRequest, Message: "no authenticated owner in context"}
	}
	return ownerID, nil
}

// GetTaskParams / CancelTaskParams / TaskResultParams / ListTasksParams
// mirror the SDK's own tasks_test.go params shapes so integration with
// the real modelcontextprotocol/go-sdk types is a one-line adaptation.
type GetTaskParams struct {
	TaskID string `json:"taskId"`
}

type CancelTaskParams struct {
	TaskID string `json:"taskId"`
}

type TaskResultParams struct {
	TaskID string `json:"taskId"`
}

type ListTasksParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// GetTask implements tasks/get: a flat Task, unchanged regardless of
// whether the task has expired (clients should see "why gone"), with the
// record's current variables injected into _meta at top level.
func (r *Router) GetTask(ctx context.Context, params *GetTaskParams) (*tasktypes.GetTaskResult, *jsonrpc.Error) {
	ownerID, rpcErr := r.ownerID(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rec, err := r.store.Get(ctx, params.TaskID, ownerID)
	if err != nil {
		return nil, toJSONRPCError(err)
	}
	result := &tasktypes.GetTaskResult{Task: rec.Task}
	if len(rec.Variables) > 0 {
		result.Meta = rec.Variables
	}
	return result, nil
}

// CancelTask implements tasks/cancel: a flat Task reflecting the new
// cancelled status.
func (r *Router) CancelTask(ctx context.Context, params *CancelTaskParams) (*tasktypes.CancelTaskResult, *jsonrpc.Error) {
	ownerID, rpcErr := r.ownerID(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	rec, err := r.store.Cancel(ctx, params.TaskID, ownerID)
	if err != nil {
		return nil, toJSONRPCError(err)
	}
	return &tasktypes.CancelTaskResult{Task: rec.Task}, nil
}

// ListTasks implements tasks/list: owner-scoped, cursor-paginated.
func (r *Router) ListTasks(ctx context.Context, params *ListTasksParams) (*tasktypes.TaskPage, *jsonrpc.Error) {
	ownerID, rpcErr := r.ownerID(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	page, err := r.store.List(ctx, tasktypes.ListOptions{OwnerID: ownerID, Cursor: params.Cursor})
	if err != nil {
		return nil, toJSONRPCError(err)
	}
	return &page, nil
}

// TaskResultResponse is the wrapped shape tasks/result returns: the
// stored result plus _meta carrying the related-task reference.
type TaskResultResponse struct {
	Result any            `json:"result"`
	Meta   map[string]any `json:"_meta"`
}

// TaskResult implements tasks/result: blocks (by polling) until the task
// reaches a terminal status, then returns its result with
// _meta["io.modelcontextprotocol/related-task"] set. On caller-supplied
// context cancellation/timeout the task is left exactly as-is; no error
// is manufactured beyond surfacing ctx.Err().
func (r *Router) TaskResult(ctx context.Context, params *TaskResultParams) (*TaskResultResponse, *jsonrpc.Error) {
	ownerID, rpcErr := r.ownerID(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		rec, err := r.store.Get(ctx, params.TaskID, ownerID)
		if err != nil {
			return nil, toJSONRPCError(err)
		}
		if rec.Task.Status.IsTerminal() {
			result, err := r.store.GetResult(ctx, params.TaskID, ownerID)
			if err != nil {
				return nil, toJSONRPCError(err)
			}
			return &TaskResultResponse{
				Result: result,
				Meta: map[string]any{
					tasktypes.MetaRelatedTask: map[string]any{"taskId": params.TaskID},
				},
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, &jsonrpc.Error{Code: taskerrors.CodeInternalError, Message: ctx.Err().Error()}
		case <-ticker.C:
		}
	}
}

// CreateTaskMeta builds the _meta map a tool handler should attach to a
// CreateTaskResult when it wants the model to hand control back to the
// user immediately rather than waiting inline for tasks/result.
func CreateTaskMeta(immediateResponse bool) map[string]any {
	if !immediateResponse {
		return nil
	}
	return map[string]any{tasktypes.MetaModelImmediateResponse: true}
}

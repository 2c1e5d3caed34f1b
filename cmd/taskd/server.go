package main

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/internal/taskconfig"
	"github.com/fyrsmithlabs/contextd/internal/taskrouter"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore/memkv"
	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
	"github.com/fyrsmithlabs/contextd/pkg/workflow"
)

// Server wires the task store, workflow engine, and router behind a set
// of MCP tools. The host MCP transport (stdio here) is the only thing
// this subsystem treats as external: tasks/* semantics are exposed as
// ordinary tools (tasks_get, tasks_list, tasks_cancel, tasks_result)
// because the SDK's documented extension surface is AddTool, not a
// registry of arbitrary top-level JSON-RPC methods; Router itself stays
// transport-agnostic and is reusable the moment a host exposes a richer
// registration hook for tasks/*.
type Server struct {
	mcp     *mcpsdk.Server
	store   taskstore.Store
	router  *taskrouter.Router
	backend *memkv.Backend
	logger  *zap.Logger
}

// NewServer builds the store, router, and MCP tool registrations.
func NewServer(cfg *taskconfig.Config, logger *zap.Logger) (*Server, error) {
	be := memkv.NewBackend(
		memkv.WithLogger(logger),
		memkv.WithSweepInterval(time.Minute),
	)
	store := taskstore.New(
		be,
		cfg.TaskStore,
		taskstore.WithLogger[*memkv.Backend](logger),
		taskstore.WithSecurityConfig[*memkv.Backend](cfg.TaskSecurity),
	)
	router := taskrouter.New(store, logger)

	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "taskd", Version: "dev"}, nil)

	s := &Server{mcp: mcpServer, store: store, router: router, backend: be, logger: logger}
	if err := s.registerTools(cfg.TaskSecurity.DefaultOwnerID); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	return s, nil
}

func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) Close(ctx context.Context) {
	if err := s.backend.Close(ctx); err != nil {
		s.logger.Warn("taskd: backend close failed", zap.Error(err))
	}
}

type runWorkflowInput struct {
	Goal   string         `json:"goal" jsonschema:"required,Human-readable goal for this workflow run"`
	Region string         `json:"region,omitempty" jsonschema:"Target region, used by the demo deploy step"`
	Extra  map[string]any `json:"extra,omitempty" jsonschema:"Additional prompt arguments available to step resolution"`
}

type runWorkflowOutput struct {
	TaskID string               `json:"taskId"`
	Status tasktypes.TaskStatus `json:"status"`
}

type tasksGetInput struct {
	TaskID string `json:"taskId" jsonschema:"required,Task identifier"`
}

type tasksListInput struct {
	Cursor string `json:"cursor,omitempty" jsonschema:"Pagination cursor from a previous tasks_list call"`
}

type tasksCancelInput struct {
	TaskID string `json:"taskId" jsonschema:"required,Task identifier"`
}

type tasksResultInput struct {
	TaskID string `json:"taskId" jsonschema:"required,Task identifier"`
}

type workflowResumeInput struct {
	TaskID string         `json:"_task_id" jsonschema:"required,Identifier of the paused task to unblock"`
	Args   map[string]any `json:"args,omitempty" jsonschema:"Additional or corrected prompt arguments to merge in before re-running"`
}

type workflowResumeOutput struct {
	TaskID string               `json:"taskId"`
	Status tasktypes.TaskStatus `json:"status"`
}

func (s *Server) registerTools(defaultOwnerID string) error {
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "run_workflow",
		Description: "Create a task and run a fixed three-step demo workflow (validate, deploy, notify) against it",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args runWorkflowInput) (*mcpsdk.CallToolResult, runWorkflowOutput, error) {
		ctx = taskrouter.WithOwnerID(ctx, defaultOwnerID)
		rec, err := s.store.Create(ctx, defaultOwnerID, "tools/call", nil)
		if err != nil {
			return nil, runWorkflowOutput{}, err
		}

		region := args.Region
		if region == "" {
			region = "us-east-1"
		}
		promptArgs := map[string]any{"goal": args.Goal}
		for k, v := range args.Extra {
			promptArgs[k] = v
		}

		// Persisted so workflow_resume can reconstruct this run's Workflow
		// and prompt arguments without the client having to resend them.
		if _, err := s.store.SetVariables(ctx, rec.Task.TaskID, defaultOwnerID, map[string]any{
			tasktypes.VarWorkflowRegion:     region,
			tasktypes.VarWorkflowPromptArgs: promptArgs,
		}); err != nil {
			return nil, runWorkflowOutput{}, err
		}

		engine := workflow.NewEngine(newDemoInvoker(), s.logger)
		wf := demoWorkflow(region)
		if err := engine.Run(ctx, s.store, defaultOwnerID, rec.Task.TaskID, &wf, promptArgs); err != nil {
			return nil, runWorkflowOutput{}, err
		}

		final, err := s.store.Get(ctx, rec.Task.TaskID, defaultOwnerID)
		if err != nil {
			return nil, runWorkflowOutput{}, err
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: fmt.Sprintf("task %s is %s", final.Task.TaskID, final.Task.Status)}},
		}, runWorkflowOutput{TaskID: final.Task.TaskID, Status: final.Task.Status}, nil
	})

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "workflow_resume",
		Description: "Unblock a paused run_workflow task: merges args into the run's original prompt arguments and re-runs the workflow from the top, invoking already-completed steps again.",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args workflowResumeInput) (*mcpsdk.CallToolResult, workflowResumeOutput, error) {
		ctx = taskrouter.WithOwnerID(ctx, defaultOwnerID)
		rec, err := s.store.Get(ctx, args.TaskID, defaultOwnerID)
		if err != nil {
			return nil, workflowResumeOutput{}, err
		}

		region, _ := rec.Variables[tasktypes.VarWorkflowRegion].(string)
		if region == "" {
			region = "us-east-1"
		}
		promptArgs := map[string]any{}
		if stored, ok := rec.Variables[tasktypes.VarWorkflowPromptArgs].(map[string]any); ok {
			for k, v := range stored {
				promptArgs[k] = v
			}
		}
		for k, v := range args.Args {
			promptArgs[k] = v
		}

		if _, err := s.store.SetVariables(ctx, args.TaskID, defaultOwnerID, map[string]any{
			tasktypes.VarWorkflowPromptArgs: promptArgs,
		}); err != nil {
			return nil, workflowResumeOutput{}, err
		}

		engine := workflow.NewEngine(newDemoInvoker(), s.logger)
		wf := demoWorkflow(region)
		if err := engine.Run(ctx, s.store, defaultOwnerID, args.TaskID, &wf, promptArgs); err != nil {
			return nil, workflowResumeOutput{}, err
		}

		final, err := s.store.Get(ctx, args.TaskID, defaultOwnerID)
		if err != nil {
			return nil, workflowResumeOutput{}, err
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: fmt.Sprintf("task %s is %s", final.Task.TaskID, final.Task.Status)}},
		}, workflowResumeOutput{TaskID: final.Task.TaskID, Status: final.Task.Status}, nil
	})

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "tasks_get",
		Description: "Fetch a task's current status (tasks/get equivalent)",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args tasksGetInput) (*mcpsdk.CallToolResult, tasktypes.GetTaskResult, error) {
		ctx = taskrouter.WithOwnerID(ctx, defaultOwnerID)
		res, rpcErr := s.router.GetTask(ctx, &taskrouter.GetTaskParams{TaskID: args.TaskID})
		if rpcErr != nil {
			return nil, tasktypes.GetTaskResult{}, fmt.Errorf("%s", rpcErr.Message)
		}
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(res.Task.Status)}}}, *res, nil
	})

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "tasks_list",
		Description: "List tasks for the current owner (tasks/list equivalent)",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args tasksListInput) (*mcpsdk.CallToolResult, tasktypes.TaskPage, error) {
		ctx = taskrouter.WithOwnerID(ctx, defaultOwnerID)
		page, rpcErr := s.router.ListTasks(ctx, &taskrouter.ListTasksParams{Cursor: args.Cursor})
		if rpcErr != nil {
			return nil, tasktypes.TaskPage{}, fmt.Errorf("%s", rpcErr.Message)
		}
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: fmt.Sprintf("%d task(s)", len(page.Tasks))}}}, *page, nil
	})

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "tasks_cancel",
		Description: "Cancel a task (tasks/cancel equivalent)",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args tasksCancelInput) (*mcpsdk.CallToolResult, tasktypes.CancelTaskResult, error) {
		ctx = taskrouter.WithOwnerID(ctx, defaultOwnerID)
		res, rpcErr := s.router.CancelTask(ctx, &taskrouter.CancelTaskParams{TaskID: args.TaskID})
		if rpcErr != nil {
			return nil, tasktypes.CancelTaskResult{}, fmt.Errorf("%s", rpcErr.Message)
		}
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(res.Task.Status)}}}, *res, nil
	})

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        "tasks_result",
		Description: "Block until a task is terminal and return its result (tasks/result equivalent)",
	}, func(ctx context.Context, _ *mcpsdk.CallToolRequest, args tasksResultInput) (*mcpsdk.CallToolResult, taskrouter.TaskResultResponse, error) {
		ctx = taskrouter.WithOwnerID(ctx, defaultOwnerID)
		res, rpcErr := s.router.TaskResult(ctx, &taskrouter.TaskResultParams{TaskID: args.TaskID})
		if rpcErr != nil {
			return nil, taskrouter.TaskResultResponse{}, fmt.Errorf("%s", rpcErr.Message)
		}
		return &mcpsdk.CallToolResult{Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "task result ready"}}}, *res, nil
	})

	return nil
}

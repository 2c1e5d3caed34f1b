package tasktypes

// Metadata key constants injected into MCP `_meta` objects.
const (
	MetaRelatedTask            = "io.modelcontextprotocol/related-task"
	MetaModelImmediateResponse = "io.modelcontextprotocol/model-immediate-response"

	// Workflow-internal variable keys. These live in a task's variables,
	// never directly on the wire Task.
	VarWorkflowProgress     = "_workflow.progress"
	VarWorkflowResultPrefix = "_workflow.result."
	VarWorkflowPauseReason  = "_workflow.pause_reason"
	VarWorkflowPromptArgs   = "_workflow.prompt_args"
	VarWorkflowRegion       = "_workflow.region"
)

// Task is the authoritative MCP wire representation of a task, whether
// still running or finished. TTL is a required, nullable field: it must
// serialize as `null` when the task never expires, never be omitted.
type Task struct {
	TaskID        string     `json:"taskId"`
	Status        TaskStatus `json:"status"`
	StatusMessage string     `json:"statusMessage,omitempty"`
	CreatedAt     string     `json:"createdAt"`
	LastUpdatedAt string     `json:"lastUpdatedAt"`
	TTL           *int64     `json:"ttl"`
	PollInterval  *int64     `json:"pollInterval,omitempty"`
}

// CreateTaskResult wraps a Task under "task" and may carry _meta, per the
// MCP wrapped-result convention for tool calls that spawn a task.
type CreateTaskResult struct {
	Task Task           `json:"task"`
	Meta map[string]any `json:"_meta,omitempty"`
}

// GetTaskResult is a flat Task: its own fields sit at the result root.
// Meta carries the task's current variables injected at top level under
// "_meta", on every tasks/get call regardless of status.
type GetTaskResult struct {
	Task
	Meta map[string]any `json:"_meta,omitempty"`
}

// CancelTaskResult is likewise flat.
type CancelTaskResult struct {
	Task
}

// TaskStatusNotification is the payload of notifications/tasks/status,
// broadcast server-to-client. All fields are flat, mirroring GetTaskResult.
type TaskStatusNotification struct {
	Task
}

// TaskPage is the result of tasks/list: one page of an owner-scoped,
// cursor-paginated task listing.
type TaskPage struct {
	Tasks      []Task `json:"tasks"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ListOptions scopes and paginates a tasks/list call.
type ListOptions struct {
	OwnerID      string
	Cursor       string
	Limit        int
	StatusFilter *TaskStatus
}

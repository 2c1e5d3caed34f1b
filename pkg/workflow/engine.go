package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/contextd/pkg/taskstore"
	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
)

const instrumentationName = "github.com/fyrsmithlabs/contextd/pkg/workflow"

// Engine runs a Workflow as a single task: sequential steps, stop on the
// first blocker, typed pause reasons, and a best-effort auto-complete.
type Engine struct {
	invoker ToolInvoker
	logger  *zap.Logger
	tracer  trace.Tracer
}

// NewEngine constructs an Engine that dispatches tool calls through
// invoker.
func NewEngine(invoker ToolInvoker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{invoker: invoker, logger: logger, tracer: otel.Tracer(instrumentationName)}
}

// executionContext accumulates named step bindings for the duration of a
// single Run; it is never persisted beyond the per-step result variables
// written at the end of the loop.
type executionContext struct {
	bindings map[string]any
}

func newExecutionContext() *executionContext {
	return &executionContext{bindings: map[string]any{}}
}

func (e *executionContext) get(step, field string) (any, bool) {
	v, ok := e.bindings[step]
	if !ok {
		return nil, false
	}
	if field == "" {
		return v, true
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	fv, ok := m[field]
	return fv, ok
}

// Run executes wf against taskID/ownerID in store, stopping at the first
// blocker. It always attempts the batch-write and (pause-reason
// permitting) the auto-complete before returning, and never itself
// returns an error for a runtime blocker: blockers are recorded on the
// task, not propagated to the caller. A non-nil error here means the
// engine could not even start (e.g. the task does not exist).
func (e *Engine) Run(ctx context.Context, store taskstore.Store, ownerID, taskID string, wf *Workflow, promptArgs map[string]any) error {
	ctx, span := e.tracer.Start(ctx, "Engine.Run")
	defer span.End()

	if _, err := store.Get(ctx, taskID, ownerID); err != nil {
		return err
	}

	progress := newProgress(wf.Goal, wf.Steps)
	execCtx := newExecutionContext()
	stepResults := map[string]any{}
	var pause PauseReason

	for i, step := range wf.Steps {
		resolved, unresolvedErr := e.resolveArgs(step, promptArgs, execCtx, progress)
		if unresolvedErr != nil {
			pause = unresolvedErr
			break
		}

		if missing := e.schemaCheck(ctx, step, resolved); len(missing) > 0 {
			pause = SchemaMismatch{
				BlockedStep:   step.Name,
				MissingFields: missing,
				SuggestedTool: step.Tool,
			}
			break
		}

		result, err := e.invoker.Invoke(ctx, step.Tool, resolved)
		if err != nil {
			progress.Steps[i].Status = StepFailed
			stepResults[step.Name] = map[string]any{"error": err.Error()}
			pause = ToolError{
				FailedStep:    step.Name,
				Error:         err.Error(),
				Retryable:     step.Retryable,
				SuggestedTool: step.Tool,
			}
			break
		}

		progress.Steps[i].Status = StepCompleted
		stepResults[step.Name] = result
		execCtx.bindings[step.bindingName()] = result
	}

	e.batchWrite(ctx, store, ownerID, taskID, progress, stepResults, pause)

	if pause == nil {
		e.autoComplete(ctx, store, ownerID, taskID, progress)
	}
	return nil
}

// resolveArgs dereferences every argument source for step. On failure it
// classifies the break: a prior-step failure/skip yields
// UnresolvedDependency, anything else yields UnresolvableParams.
func (e *Engine) resolveArgs(step Step, promptArgs map[string]any, execCtx *executionContext, progress WorkflowProgress) (map[string]any, PauseReason) {
	resolved := make(map[string]any, len(step.Args))
	for name, src := range step.Args {
		switch src.Kind {
		case ArgKindPromptArg:
			v, ok := promptArgs[src.Name]
			if !ok {
				return nil, UnresolvableParams{
					BlockedStep:   step.Name,
					MissingParam:  src.Name,
					SuggestedTool: step.Tool,
				}
			}
			resolved[name] = v
		case ArgKindConstant:
			resolved[name] = src.Value
		case ArgKindStepOutput:
			v, ok := execCtx.get(src.Step, src.Field)
			if !ok {
				if status := stepStatus(progress, src.Step); status == StepFailed || status == StepSkipped {
					return nil, UnresolvedDependency{
						BlockedStep:   step.Name,
						MissingOutput: src.Field,
						ProducingStep: src.Step,
						SuggestedTool: step.Tool,
					}
				}
				return nil, UnresolvableParams{
					BlockedStep:   step.Name,
					MissingParam:  name,
					SuggestedTool: step.Tool,
				}
			}
			resolved[name] = v
		default:
			return nil, UnresolvableParams{BlockedStep: step.Name, MissingParam: name, SuggestedTool: step.Tool}
		}
	}
	return resolved, nil
}

func stepStatus(progress WorkflowProgress, name string) StepStatus {
	for _, s := range progress.Steps {
		if s.Name == name {
			return s.Status
		}
	}
	return StepPending
}

// schemaCheck validates resolved arguments against the tool's declared
// input schema, returning the names of any missing required fields.
func (e *Engine) schemaCheck(ctx context.Context, step Step, resolved map[string]any) []string {
	schema, err := e.invoker.Schema(ctx, step.Tool)
	if err != nil || schema == nil {
		// No schema to check against; the invoker itself is the final
		// arbiter of whether the arguments are acceptable.
		return nil
	}
	var missing []string
	for _, required := range schema.Required {
		if _, ok := resolved[required]; !ok {
			missing = append(missing, required)
		}
	}
	return missing
}

func (e *Engine) batchWrite(ctx context.Context, store taskstore.Store, ownerID, taskID string, progress WorkflowProgress, stepResults map[string]any, pause PauseReason) {
	vars := map[string]any{
		tasktypes.VarWorkflowProgress: progress,
	}
	for name, result := range stepResults {
		vars[tasktypes.VarWorkflowResultPrefix+name] = result
	}
	if pause != nil {
		vars[tasktypes.VarWorkflowPauseReason] = pause
	}
	if _, err := store.SetVariables(ctx, taskID, ownerID, vars); err != nil {
		e.logger.Warn("workflow: batch variable write failed; task state may be stale",
			zap.String("taskId", taskID), zap.Error(err))
	}
}

func (e *Engine) autoComplete(ctx context.Context, store taskstore.Store, ownerID, taskID string, progress WorkflowProgress) {
	summary := fmt.Sprintf("workflow %q completed %d step(s)", progress.Goal, len(progress.Steps))
	if _, err := store.CompleteWithResult(ctx, taskID, ownerID, tasktypes.TaskStatusCompleted, summary, progress); err != nil {
		e.logger.Warn("workflow: auto-complete failed; task remains working",
			zap.String("taskId", taskID), zap.Error(err))
	}
}

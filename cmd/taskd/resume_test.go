package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/contextd/pkg/taskstore"
	"github.com/fyrsmithlabs/contextd/pkg/taskstore/memkv"
	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
	"github.com/fyrsmithlabs/contextd/pkg/workflow"
)

// These exercise the same store/engine sequence workflow_resume's handler
// runs, without going through the MCP tool-call transport.

func TestWorkflowResumeReconstructsAndCompletesAfterPause(t *testing.T) {
	ctx := context.Background()
	be := memkv.NewBackend()
	t.Cleanup(func() { _ = be.Close(ctx) })
	store := taskstore.New(be, taskstore.DefaultStoreConfig())
	const owner = "owner1"

	rec, err := store.Create(ctx, owner, "tools/call", nil)
	require.NoError(t, err)

	region := "eu-west-1"
	initialPromptArgs := map[string]any{}
	_, err = store.SetVariables(ctx, rec.Task.TaskID, owner, map[string]any{
		tasktypes.VarWorkflowRegion:     region,
		tasktypes.VarWorkflowPromptArgs: initialPromptArgs,
	})
	require.NoError(t, err)

	engine := workflow.NewEngine(newDemoInvoker(), nil)
	wf := demoWorkflow(region)
	require.NoError(t, engine.Run(ctx, store, owner, rec.Task.TaskID, &wf, initialPromptArgs))

	paused, err := store.Get(ctx, rec.Task.TaskID, owner)
	require.NoError(t, err)
	require.Equal(t, tasktypes.TaskStatusWorking, paused.Task.Status, "missing goal should pause, not complete")
	require.NotNil(t, paused.Variables[tasktypes.VarWorkflowPauseReason])

	// Simulate workflow_resume: reload stored region/promptArgs, merge in
	// the client-supplied correction, and re-run.
	storedRegion, _ := paused.Variables[tasktypes.VarWorkflowRegion].(string)
	require.Equal(t, region, storedRegion)

	mergedArgs := map[string]any{}
	if stored, ok := paused.Variables[tasktypes.VarWorkflowPromptArgs].(map[string]any); ok {
		for k, v := range stored {
			mergedArgs[k] = v
		}
	}
	mergedArgs["goal"] = "ship it"

	resumeEngine := workflow.NewEngine(newDemoInvoker(), nil)
	resumeWf := demoWorkflow(storedRegion)
	require.NoError(t, resumeEngine.Run(ctx, store, owner, rec.Task.TaskID, &resumeWf, mergedArgs))

	final, err := store.Get(ctx, rec.Task.TaskID, owner)
	require.NoError(t, err)
	require.Equal(t, tasktypes.TaskStatusCompleted, final.Task.Status)
}

func TestWorkflowResumeMergeKeepsOriginalArgsWhenNotOverridden(t *testing.T) {
	stored := map[string]any{"goal": "ship it", "note": "kept"}
	merged := map[string]any{}
	for k, v := range stored {
		merged[k] = v
	}
	incoming := map[string]any{"note": "overridden"}
	for k, v := range incoming {
		merged[k] = v
	}

	require.Equal(t, "ship it", merged["goal"])
	require.Equal(t, "overridden", merged["note"])
}

package main

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/fyrsmithlabs/contextd/pkg/workflow"
)

// demoWorkflow is a fixed three-step pipeline used by the run_workflow
// tool to exercise the engine end to end: validate a goal string, deploy
// to a region, then notify. It exists to give reviewers something to run
// without wiring a real tool catalog; a host embedding this subsystem
// would register its own tools with the invoker instead.
func demoWorkflow(region string) workflow.Workflow {
	if region == "" {
		region = "us-east-1"
	}
	return workflow.Workflow{
		Goal: "demo deployment",
		Steps: []workflow.Step{
			{
				Name: "validate",
				Tool: "demo.validate",
				Args: map[string]workflow.ArgSource{
					"goal": workflow.PromptArg("goal"),
				},
			},
			{
				Name: "deploy",
				Tool: "demo.deploy",
				Args: map[string]workflow.ArgSource{
					"region":   workflow.Constant(region),
					"approved": workflow.StepOutput("validate", "approved"),
				},
			},
			{
				Name: "notify",
				Tool: "demo.notify",
				Args: map[string]workflow.ArgSource{
					"deploymentId": workflow.StepOutput("deploy", "deploymentId"),
				},
			},
		},
	}
}

// demoInvoker implements workflow.ToolInvoker against a fixed, in-process
// set of tools. It stands in for a host's real tool registry, which
// would sit between a wire request and a named handler function.
type demoInvoker struct {
	schemas map[string]*jsonschema.Schema
}

func newDemoInvoker() *demoInvoker {
	return &demoInvoker{
		schemas: map[string]*jsonschema.Schema{
			"demo.validate": {Type: "object", Required: []string{"goal"}},
			"demo.deploy":   {Type: "object", Required: []string{"region", "approved"}},
			"demo.notify":   {Type: "object", Required: []string{"deploymentId"}},
		},
	}
}

func (d *demoInvoker) Schema(_ context.Context, tool string) (*jsonschema.Schema, error) {
	return d.schemas[tool], nil
}

func (d *demoInvoker) Invoke(_ context.Context, tool string, args map[string]any) (any, error) {
	switch tool {
	case "demo.validate":
		goal, _ := args["goal"].(string)
		return map[string]any{"approved": goal != ""}, nil
	case "demo.deploy":
		region, _ := args["region"].(string)
		return map[string]any{"deploymentId": fmt.Sprintf("deploy-%s-1", region)}, nil
	case "demo.notify":
		return map[string]any{"notified": true}, nil
	default:
		return nil, fmt.Errorf("unknown demo tool %q", tool)
	}
}

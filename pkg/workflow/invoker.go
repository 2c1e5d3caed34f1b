package workflow

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolInvoker is the engine's view of the host's tool dispatch: schema
// lookup plus invocation, generalized to typed args (from the more
// common name-keyed map of func(ctx, json.RawMessage) (interface{},
// error)) so the engine can run its own schema-check step before ever
// calling the tool.
type ToolInvoker interface {
	Schema(ctx context.Context, tool string) (*jsonschema.Schema, error)
	Invoke(ctx context.Context, tool string, args map[string]any) (any, error)
}

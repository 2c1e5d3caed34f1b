package taskstore

import (
	"encoding/json"

	"github.com/fyrsmithlabs/contextd/pkg/taskerrors"
)

// validateVariables enforces the size, depth, and string-length limits
// before any write touching variables is attempted. Depth counts
// object/array nesting starting at 1 for the top-level map itself, so a
// plain {"k":"v"} has depth 1 and is always accepted.
func validateVariables(taskID string, vars map[string]any, cfg StoreConfig) error {
	if err := checkDepthAndStrings(taskID, vars, 1); err != nil {
		return err
	}
	encoded, err := json.Marshal(vars)
	if err != nil {
		return taskerrors.NewInvalidVariables(taskID, "variables are not JSON-serializable: "+err.Error())
	}
	total := int64(len(encoded))
	if total > cfg.MaxVariableSizeBytes {
		return taskerrors.NewVariableSizeExceeded(taskID, cfg.MaxVariableSizeBytes, total)
	}
	return nil
}

func checkDepthAndStrings(taskID string, v any, depth int) error {
	if depth > maxVariableDepth {
		return taskerrors.NewInvalidVariables(taskID, "variables nesting exceeds maximum depth")
	}
	switch val := v.(type) {
	case string:
		if len(val) > maxVariableStringLen {
			return taskerrors.NewInvalidVariables(taskID, "variable string value exceeds maximum length")
		}
	case map[string]any:
		for _, child := range val {
			if err := checkDepthAndStrings(taskID, child, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, child := range val {
			if err := checkDepthAndStrings(taskID, child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeVariables merges src over dst (dst is mutated and returned),
// implementing the merge-on-write semantics of set_variables: provided
// keys overwrite, untouched keys survive.
func mergeVariables(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

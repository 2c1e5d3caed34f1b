package workflow

import (
	"encoding/json"
	"fmt"
)

// PauseReason is a tagged union of the four reasons the execution engine
// can stop before running every step. Each variant carries enough context
// for a client to act, and a SuggestedTool naming what to call next.
type PauseReason interface {
	Type() string
	isPauseReason()
}

const (
	PauseTypeUnresolvableParams  = "unresolvableParams"
	PauseTypeSchemaMismatch      = "schemaMismatch"
	PauseTypeToolError           = "toolError"
	PauseTypeUnresolvedDependency = "unresolvedDependency"
)

// UnresolvableParams: a step argument could not be resolved and does not
// trace back to another step's failure.
type UnresolvableParams struct {
	BlockedStep   string `json:"blockedStep"`
	MissingParam  string `json:"missingParam"`
	SuggestedTool string `json:"suggestedTool"`
}

func (UnresolvableParams) Type() string { return PauseTypeUnresolvableParams }
func (UnresolvableParams) isPauseReason() {}

func (p UnresolvableParams) MarshalJSON() ([]byte, error) {
	type alias UnresolvableParams
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: p.Type(), alias: alias(p)})
}

// SchemaMismatch: resolved arguments fail the tool's input schema.
type SchemaMismatch struct {
	BlockedStep   string   `json:"blockedStep"`
	MissingFields []string `json:"missingFields"`
	SuggestedTool string   `json:"suggestedTool"`
}

func (SchemaMismatch) Type() string { return PauseTypeSchemaMismatch }
func (SchemaMismatch) isPauseReason() {}

func (p SchemaMismatch) MarshalJSON() ([]byte, error) {
	type alias SchemaMismatch
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: p.Type(), alias: alias(p)})
}

// ToolError: the invoked tool itself returned an error.
type ToolError struct {
	FailedStep    string `json:"failedStep"`
	Error         string `json:"error"`
	Retryable     bool   `json:"retryable"`
	SuggestedTool string `json:"suggestedTool"`
}

func (ToolError) Type() string { return PauseTypeToolError }
func (ToolError) isPauseReason() {}

func (p ToolError) MarshalJSON() ([]byte, error) {
	type alias ToolError
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: p.Type(), alias: alias(p)})
}

// UnresolvedDependency: a step argument references another step's output,
// and that producing step failed or was skipped in this run.
type UnresolvedDependency struct {
	BlockedStep   string `json:"blockedStep"`
	MissingOutput string `json:"missingOutput"`
	ProducingStep string `json:"producingStep"`
	SuggestedTool string `json:"suggestedTool"`
}

func (UnresolvedDependency) Type() string { return PauseTypeUnresolvedDependency }
func (UnresolvedDependency) isPauseReason() {}

func (p UnresolvedDependency) MarshalJSON() ([]byte, error) {
	type alias UnresolvedDependency
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{Type: p.Type(), alias: alias(p)})
}

// UnmarshalPauseReason dispatches on the "type" discriminator, giving the
// union a round-trip that matches what was marshaled.
func UnmarshalPauseReason(data []byte) (PauseReason, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case PauseTypeUnresolvableParams:
		var p UnresolvableParams
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PauseTypeSchemaMismatch:
		var p SchemaMismatch
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PauseTypeToolError:
		var p ToolError
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case PauseTypeUnresolvedDependency:
		var p UnresolvedDependency
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("workflow: unknown pause reason type %q", head.Type)
	}
}

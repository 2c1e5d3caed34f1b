// Package tasktypes defines the wire-protocol shapes and status state
// machine for MCP tasks: the authoritative representation shared between
// the task store, the workflow engine, and the task router.
package tasktypes

import (
	"encoding/json"
	"fmt"
)

// TaskStatus is the closed set of states a task may occupy.
type TaskStatus string

const (
	TaskStatusWorking        TaskStatus = "working"
	TaskStatusInputRequired  TaskStatus = "input_required"
	TaskStatusCompleted      TaskStatus = "completed"
	TaskStatusFailed         TaskStatus = "failed"
	TaskStatusCancelled      TaskStatus = "cancelled"
)

// terminal holds the statuses that accept no further transitions.
var terminal = map[TaskStatus]bool{
	TaskStatusCompleted: true,
	TaskStatusFailed:    true,
	TaskStatusCancelled: true,
}

// IsTerminal reports whether s is one of the three terminal statuses.
func (s TaskStatus) IsTerminal() bool {
	return terminal[s]
}

func (s TaskStatus) valid() bool {
	switch s {
	case TaskStatusWorking, TaskStatusInputRequired, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// MarshalJSON rejects construction of an out-of-band status at the wire
// boundary rather than silently emitting garbage.
func (s TaskStatus) MarshalJSON() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("tasktypes: invalid TaskStatus %q", string(s))
	}
	return json.Marshal(string(s))
}

func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	candidate := TaskStatus(raw)
	if !candidate.valid() {
		return fmt.Errorf("tasktypes: unknown TaskStatus %q", raw)
	}
	*s = candidate
	return nil
}

// transitions is the allowed-transition matrix. Terminal statuses have
// no entry and therefore no outgoing edges.
var transitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusWorking: {
		TaskStatusInputRequired: true,
		TaskStatusCompleted:     true,
		TaskStatusFailed:        true,
		TaskStatusCancelled:     true,
	},
	TaskStatusInputRequired: {
		TaskStatusWorking:   true,
		TaskStatusCompleted: true,
		TaskStatusFailed:    true,
		TaskStatusCancelled: true,
	},
}

// CanTransition reports whether moving from "from" to "to" is legal.
// Self-transitions are always rejected, even for non-terminal statuses.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return false
	}
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

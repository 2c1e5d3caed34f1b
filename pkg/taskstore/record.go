package taskstore

import (
	"time"

	"github.com/fyrsmithlabs/contextd/pkg/tasktypes"
)

// TaskRecord is the internal record persisted by the store: the wire Task
// plus ownership, shared variables, the final result, and bookkeeping
// fields that never cross the wire.
type TaskRecord struct {
	Task tasktypes.Task `json:"task"`

	OwnerID       string         `json:"ownerId"`
	Variables     map[string]any `json:"variables"`
	Result        any            `json:"result,omitempty"`
	RequestMethod string         `json:"requestMethod"`
	ExpiresAt     *time.Time     `json:"expiresAt"`

	// Version is the backend's CAS counter. It is never serialized into
	// the task blob on the wire; it is tracked out-of-band alongside the
	// stored bytes by the backend itself.
	Version uint64 `json:"-"`
}

// IsExpired reports whether the record's absolute deadline has passed as
// of now. A nil ExpiresAt means "never expires".
func (r *TaskRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

func key(ownerID, taskID string) string {
	return ownerID + ":" + taskID
}

func ownerPrefix(ownerID string) string {
	return ownerID + ":"
}

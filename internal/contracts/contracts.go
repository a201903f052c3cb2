package contracts

import (
	"encoding/json"
	"time"
)

// Task status wire values. The validation layer rejects anything else before
// a mutation reaches the emitter, so these three are the whole enum.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusInProgress, StatusDone:
		return true
	default:
		return false
	}
}

// StatusLabel returns the human-readable label for a status, or "" when the
// status is unknown. Receivers use "" to fall back to a generic message.
func StatusLabel(status string) string {
	switch status {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In progress"
	case StatusDone:
		return "Done"
	default:
		return ""
	}
}

// Task is the shared wire shape for HTTP responses and pushed events.
// ID and OwnerID are immutable after creation; AssigneeID is "" when the
// task is unassigned.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	OwnerID     string    `json:"owner_id"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Event names carried in the envelope on a user channel.
const (
	EventTaskAssigned      = "task.assigned"
	EventTaskStatusChanged = "task.status_changed"
)

// Envelope wraps every message pushed on a user channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TaskAssignedPayload is the data of a task.assigned event. Task is a pointer
// so receivers can detect a missing task field and drop the event.
type TaskAssignedPayload struct {
	Task       *Task  `json:"task"`
	AssignedBy string `json:"assigned_by"`
}

// TaskStatusChangedPayload is the data of a task.status_changed event.
type TaskStatusChangedPayload struct {
	Task       *Task  `json:"task"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	ChangedBy  string `json:"changed_by"`
}

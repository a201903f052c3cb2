package subscriber

import (
	"encoding/json"
	"errors"

	"github.com/taskboard/realtime/internal/contracts"
)

// ErrMalformedEvent marks a payload that cannot be applied: not JSON, an
// unknown event name, or a missing task field. Such events are dropped at the
// boundary and never reach the store.
var ErrMalformedEvent = errors.New("malformed event")

// Event is the tagged variant produced by DecodeEvent. Only well-formed
// variants exist; malformed payloads never become an Event.
type Event interface {
	isEvent()
}

type AssignedEvent struct {
	Task       contracts.Task
	AssignedBy string
}

func (AssignedEvent) isEvent() {}

type StatusChangedEvent struct {
	Task       contracts.Task
	FromStatus string
	ToStatus   string
	ChangedBy  string
}

func (StatusChangedEvent) isEvent() {}

// DecodeEvent validates a raw payload into the tagged variant for the given
// event name.
func DecodeEvent(name string, data json.RawMessage) (Event, error) {
	switch name {
	case contracts.EventTaskAssigned:
		var payload contracts.TaskAssignedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, ErrMalformedEvent
		}
		if payload.Task == nil {
			return nil, ErrMalformedEvent
		}
		return AssignedEvent{Task: *payload.Task, AssignedBy: payload.AssignedBy}, nil

	case contracts.EventTaskStatusChanged:
		var payload contracts.TaskStatusChangedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, ErrMalformedEvent
		}
		if payload.Task == nil {
			return nil, ErrMalformedEvent
		}
		return StatusChangedEvent{
			Task:       *payload.Task,
			FromStatus: payload.FromStatus,
			ToStatus:   payload.ToStatus,
			ChangedBy:  payload.ChangedBy,
		}, nil

	default:
		return nil, ErrMalformedEvent
	}
}

package emitter

import (
	"encoding/json"
	"log/slog"

	"github.com/taskboard/realtime/internal/app/channels"
	"github.com/taskboard/realtime/internal/contracts"
	"github.com/taskboard/realtime/internal/platform/metrics"
)

var eventsEmitted = metrics.NewCounterVec(metrics.Opts{
	Name: "domain_events_emitted_total",
	Help: "Domain events published to user channels, by event name.",
}, []string{"event"})

func init() {
	metrics.Default.MustRegister(eventsEmitted)
}

type PublishFunc func(subject string, payload []byte) error

// Emitter routes domain events to per-user channels. Delivery is
// fire-and-forget: no acknowledgement, no retry, no queue. A subscriber not
// connected at emission time never receives the event.
type Emitter struct {
	Publish PublishFunc
	Logger  *slog.Logger
}

func New(publish PublishFunc, logger *slog.Logger) *Emitter {
	return &Emitter{Publish: publish, Logger: logger}
}

// TaskAssigned emits task.assigned to the assignee's channel. A task without
// an assignee emits nothing.
func (e *Emitter) TaskAssigned(task contracts.Task, assignedBy string) {
	if task.AssigneeID == "" {
		return
	}
	e.emit(channels.ChannelForUser(task.AssigneeID), contracts.EventTaskAssigned, contracts.TaskAssignedPayload{
		Task:       &task,
		AssignedBy: assignedBy,
	})
}

// TaskStatusChanged emits task.status_changed to the assignee's channel when
// the task has one, otherwise to the owner's.
func (e *Emitter) TaskStatusChanged(task contracts.Task, fromStatus, toStatus, changedBy string) {
	notifyUserID := task.AssigneeID
	if notifyUserID == "" {
		notifyUserID = task.OwnerID
	}
	e.emit(channels.ChannelForUser(notifyUserID), contracts.EventTaskStatusChanged, contracts.TaskStatusChangedPayload{
		Task:       &task,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		ChangedBy:  changedBy,
	})
}

func (e *Emitter) emit(channel, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logError(channel, event, err)
		return
	}
	body, err := json.Marshal(contracts.Envelope{Event: event, Data: data})
	if err != nil {
		e.logError(channel, event, err)
		return
	}
	if err := e.Publish(channel, body); err != nil {
		e.logError(channel, event, err)
		return
	}
	eventsEmitted.WithLabelValues(event).Inc()
}

func (e *Emitter) logError(channel, event string, err error) {
	if e.Logger == nil {
		return
	}
	e.Logger.Error("event emission failed",
		"channel", channel,
		"event", event,
		"error", err,
	)
}

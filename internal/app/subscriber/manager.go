package subscriber

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nuid"

	"github.com/taskboard/realtime/internal/app/channels"
	"github.com/taskboard/realtime/internal/app/localstore"
	"github.com/taskboard/realtime/internal/contracts"
)

// Session identifies the authenticated user the manager subscribes for. The
// zero value means "nobody signed in".
type Session struct {
	Token  string
	UserID string
}

// Manager owns at most one live subscription, keyed to the current session.
// SetSession tears the previous subscription down completely before any new
// one is set up, so two sessions are never live at once. Incoming events are
// decoded, applied to the store, and surfaced as notifications.
type Manager struct {
	Transport Transport
	Store     *localstore.Store
	Logger    *slog.Logger
	NewID     func() string
	Now       func() time.Time

	mu      sync.Mutex
	session Session
	conn    Conn
	sub     Subscription
}

func NewManager(transport Transport, store *localstore.Store, logger *slog.Logger) *Manager {
	return &Manager{
		Transport: transport,
		Store:     store,
		Logger:    logger,
		NewID:     nuid.Next,
		Now:       time.Now,
	}
}

// SetSession reconciles the live subscription with the given session. Same
// session: no-op. Different session: full teardown, then setup for the new
// identity; an empty session stops at teardown and clears the notification
// feed. Teardown runs every step even when an earlier one fails.
func (m *Manager) SetSession(next Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if next == m.session {
		return nil
	}

	m.teardown()
	m.session = next

	if next.Token == "" || next.UserID == "" {
		m.session = Session{}
		m.Store.ClearNotifications()
		return nil
	}

	return m.setup(next)
}

// Close drops the live subscription, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardown()
	m.session = Session{}
}

func (m *Manager) teardown() {
	if m.sub != nil {
		m.sub.Off(contracts.EventTaskAssigned)
		m.sub.Off(contracts.EventTaskStatusChanged)
		if err := m.sub.Unsubscribe(); err != nil {
			m.log("unsubscribe failed", slog.String("error", err.Error()))
		}
		m.sub = nil
	}
	if m.conn != nil {
		if err := m.conn.Disconnect(); err != nil {
			m.log("disconnect failed", slog.String("error", err.Error()))
		}
		m.conn = nil
	}
}

func (m *Manager) setup(session Session) error {
	conn, err := m.Transport.Connect("Bearer " + session.Token)
	if err != nil {
		m.session = Session{}
		return fmt.Errorf("connect: %w", err)
	}

	sub, err := conn.Subscribe(channels.ChannelForUser(session.UserID))
	if err != nil {
		if derr := conn.Disconnect(); derr != nil {
			m.log("disconnect failed", slog.String("error", derr.Error()))
		}
		m.session = Session{}
		return fmt.Errorf("subscribe: %w", err)
	}

	sub.On(contracts.EventTaskAssigned, m.handleAssigned)
	sub.On(contracts.EventTaskStatusChanged, m.handleStatusChanged)

	m.conn = conn
	m.sub = sub
	return nil
}

func (m *Manager) handleAssigned(data json.RawMessage) {
	decoded, err := DecodeEvent(contracts.EventTaskAssigned, data)
	if err != nil {
		m.log("dropped malformed event", slog.String("event", contracts.EventTaskAssigned))
		return
	}
	event := decoded.(AssignedEvent)

	m.Store.Upsert(event.Task)
	m.Store.PushNotification(localstore.Notification{
		ID:        m.NewID(),
		Title:     "Task assigned",
		Message:   fmt.Sprintf("%q was assigned to you", event.Task.Title),
		Tone:      localstore.ToneInfo,
		CreatedAt: m.Now(),
	})
}

func (m *Manager) handleStatusChanged(data json.RawMessage) {
	decoded, err := DecodeEvent(contracts.EventTaskStatusChanged, data)
	if err != nil {
		m.log("dropped malformed event", slog.String("event", contracts.EventTaskStatusChanged))
		return
	}
	event := decoded.(StatusChangedEvent)

	m.Store.Upsert(event.Task)

	message := fmt.Sprintf("%q was updated", event.Task.Title)
	from := contracts.StatusLabel(event.FromStatus)
	to := contracts.StatusLabel(event.ToStatus)
	if from != "" && to != "" {
		message = fmt.Sprintf("%q moved from %s to %s", event.Task.Title, from, to)
	}

	m.Store.PushNotification(localstore.Notification{
		ID:        m.NewID(),
		Title:     "Status changed",
		Message:   message,
		Tone:      localstore.ToneSuccess,
		CreatedAt: m.Now(),
	})
}

func (m *Manager) log(msg string, args ...any) {
	if m.Logger == nil {
		return
	}
	m.Logger.Info(msg, args...)
}

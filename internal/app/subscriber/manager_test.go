package subscriber

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/taskboard/realtime/internal/app/localstore"
	"github.com/taskboard/realtime/internal/contracts"
)

type fakeTransport struct {
	calls      []string
	connectErr error
	subErr     error
	failSteps  bool

	lastAuthHeader string
	lastChannel    string
	handlers       map[string]func(json.RawMessage)
}

func (f *fakeTransport) Connect(authHeader string) (Conn, error) {
	f.calls = append(f.calls, "connect")
	f.lastAuthHeader = authHeader
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeConn{transport: f}, nil
}

type fakeConn struct{ transport *fakeTransport }

func (c *fakeConn) Subscribe(channelName string) (Subscription, error) {
	c.transport.calls = append(c.transport.calls, "subscribe "+channelName)
	c.transport.lastChannel = channelName
	if c.transport.subErr != nil {
		return nil, c.transport.subErr
	}
	c.transport.handlers = map[string]func(json.RawMessage){}
	return &fakeSub{transport: c.transport}, nil
}

func (c *fakeConn) Disconnect() error {
	c.transport.calls = append(c.transport.calls, "disconnect")
	if c.transport.failSteps {
		return errors.New("disconnect boom")
	}
	return nil
}

type fakeSub struct{ transport *fakeTransport }

func (s *fakeSub) On(event string, handler func(json.RawMessage)) {
	s.transport.calls = append(s.transport.calls, "on "+event)
	s.transport.handlers[event] = handler
}

func (s *fakeSub) Off(event string) {
	s.transport.calls = append(s.transport.calls, "off "+event)
	delete(s.transport.handlers, event)
}

func (s *fakeSub) Unsubscribe() error {
	s.transport.calls = append(s.transport.calls, "unsubscribe")
	if s.transport.failSteps {
		return errors.New("unsubscribe boom")
	}
	return nil
}

func newTestManager(transport *fakeTransport) *Manager {
	m := NewManager(transport, localstore.New(), nil)
	seq := 0
	m.NewID = func() string { seq++; return fmt.Sprintf("id-%d", seq) }
	m.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestSetSession_SubscribesToOwnChannel(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)

	if err := m.SetSession(Session{Token: "tok", UserID: "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if transport.lastAuthHeader != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", transport.lastAuthHeader)
	}
	if transport.lastChannel != "users.42" {
		t.Fatalf("unexpected channel %q", transport.lastChannel)
	}
	if len(transport.handlers) != 2 {
		t.Fatalf("expected both event handlers registered, got %d", len(transport.handlers))
	}
}

func TestSetSession_SameSessionIsNoop(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)

	session := Session{Token: "tok", UserID: "42"}
	if err := m.SetSession(session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := len(transport.calls)
	if err := m.SetSession(session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transport.calls) != before {
		t.Fatalf("no-op session change touched the transport: %v", transport.calls[before:])
	}
}

func TestSetSession_TeardownBeforeSetup(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)

	if err := m.SetSession(Session{Token: "tok-a", UserID: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transport.calls = nil
	if err := m.SetSession(Session{Token: "tok-b", UserID: "2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"off " + contracts.EventTaskAssigned,
		"off " + contracts.EventTaskStatusChanged,
		"unsubscribe",
		"disconnect",
		"connect",
		"subscribe users.2",
		"on " + contracts.EventTaskAssigned,
		"on " + contracts.EventTaskStatusChanged,
	}
	if len(transport.calls) != len(want) {
		t.Fatalf("unexpected call sequence: %v", transport.calls)
	}
	for i, call := range want {
		if transport.calls[i] != call {
			t.Fatalf("step %d: got %q, want %q (full: %v)", i, transport.calls[i], call, transport.calls)
		}
	}
}

func TestSetSession_TeardownRunsEveryStepOnFailure(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)

	if err := m.SetSession(Session{Token: "tok-a", UserID: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transport.failSteps = true
	transport.calls = nil
	if err := m.SetSession(Session{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Unsubscribe fails, disconnect still runs.
	sawUnsubscribe, sawDisconnect := false, false
	for _, call := range transport.calls {
		if call == "unsubscribe" {
			sawUnsubscribe = true
		}
		if call == "disconnect" {
			sawDisconnect = true
		}
	}
	if !sawUnsubscribe || !sawDisconnect {
		t.Fatalf("teardown skipped a step: %v", transport.calls)
	}
}

func TestSetSession_EmptySessionClearsFeed(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)
	m.Store.PushNotification(localstore.Notification{ID: "n1"})

	if err := m.SetSession(Session{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := m.Store.Notifications(); len(got) != 0 {
		t.Fatalf("expected empty feed, got %+v", got)
	}
}

func TestSetSession_ConnectError(t *testing.T) {
	transport := &fakeTransport{connectErr: ErrTransportUnavailable}
	m := newTestManager(transport)

	err := m.SetSession(Session{Token: "tok", UserID: "42"})
	if !errors.Is(err, ErrTransportUnavailable) {
		t.Fatalf("expected ErrTransportUnavailable, got %v", err)
	}

	// The failed session is not remembered: the next attempt retries.
	transport.connectErr = nil
	if err := m.SetSession(Session{Token: "tok", UserID: "42"}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if transport.lastChannel != "users.42" {
		t.Fatalf("retry did not subscribe: %q", transport.lastChannel)
	}
}

func TestSetSession_SubscribeDeniedDisconnects(t *testing.T) {
	transport := &fakeTransport{subErr: ErrSubscribeDenied}
	m := newTestManager(transport)

	err := m.SetSession(Session{Token: "tok", UserID: "42"})
	if !errors.Is(err, ErrSubscribeDenied) {
		t.Fatalf("expected ErrSubscribeDenied, got %v", err)
	}

	last := transport.calls[len(transport.calls)-1]
	if last != "disconnect" {
		t.Fatalf("connection left open after denial: %v", transport.calls)
	}
}

func TestHandleAssigned_UpsertsAndNotifies(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)
	if err := m.SetSession(Session{Token: "tok", UserID: "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := `{"task":{"id":"t1","title":"Ship it","status":"pending","owner_id":"u1","assignee_id":"42"},"assigned_by":"u1"}`
	transport.handlers[contracts.EventTaskAssigned](json.RawMessage(payload))

	tasks := m.Store.Tasks()
	if len(tasks) != 1 || tasks[0].ID != "t1" {
		t.Fatalf("task not stored: %+v", tasks)
	}
	feed := m.Store.Notifications()
	if len(feed) != 1 || feed[0].Title != "Task assigned" || feed[0].Tone != localstore.ToneInfo {
		t.Fatalf("unexpected notification: %+v", feed)
	}
}

func TestHandleStatusChanged_UpsertsAndNotifies(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)
	if err := m.SetSession(Session{Token: "tok", UserID: "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := `{"task":{"id":"t1","title":"Ship it","status":"done","owner_id":"42"},"from_status":"in_progress","to_status":"done","changed_by":"u2"}`
	transport.handlers[contracts.EventTaskStatusChanged](json.RawMessage(payload))

	tasks := m.Store.Tasks()
	if len(tasks) != 1 || tasks[0].Status != contracts.StatusDone {
		t.Fatalf("task not stored: %+v", tasks)
	}
	feed := m.Store.Notifications()
	if len(feed) != 1 || feed[0].Tone != localstore.ToneSuccess {
		t.Fatalf("unexpected notification: %+v", feed)
	}
	if want := `"Ship it" moved from In progress to Done`; feed[0].Message != want {
		t.Fatalf("message %q, want %q", feed[0].Message, want)
	}
}

func TestHandleStatusChanged_UnknownStatusesGetGenericMessage(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)
	if err := m.SetSession(Session{Token: "tok", UserID: "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload := `{"task":{"id":"t1","title":"Ship it","status":"done","owner_id":"42"},"from_status":"archived","to_status":"done","changed_by":"u2"}`
	transport.handlers[contracts.EventTaskStatusChanged](json.RawMessage(payload))

	feed := m.Store.Notifications()
	if len(feed) != 1 {
		t.Fatalf("unexpected feed: %+v", feed)
	}
	if want := `"Ship it" was updated`; feed[0].Message != want {
		t.Fatalf("message %q, want %q", feed[0].Message, want)
	}
}

func TestHandlers_DropMalformedEvents(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)
	if err := m.SetSession(Session{Token: "tok", UserID: "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transport.handlers[contracts.EventTaskAssigned](json.RawMessage(`{{{`))
	transport.handlers[contracts.EventTaskStatusChanged](json.RawMessage(`{"to_status":"done"}`))

	if tasks := m.Store.Tasks(); len(tasks) != 0 {
		t.Fatalf("malformed event reached the store: %+v", tasks)
	}
	if feed := m.Store.Notifications(); len(feed) != 0 {
		t.Fatalf("malformed event produced a notification: %+v", feed)
	}
}

func TestClose_TearsDown(t *testing.T) {
	transport := &fakeTransport{}
	m := newTestManager(transport)
	if err := m.SetSession(Session{Token: "tok", UserID: "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transport.calls = nil
	m.Close()
	if len(transport.calls) == 0 || transport.calls[len(transport.calls)-1] != "disconnect" {
		t.Fatalf("close did not tear down: %v", transport.calls)
	}

	// After Close the old session can be set again.
	if err := m.SetSession(Session{Token: "tok", UserID: "42"}); err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
}

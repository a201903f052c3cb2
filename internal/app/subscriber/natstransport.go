package subscriber

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const inboundQueueSize = 64

// NATSTransport implements Transport over core NATS, with the subscription
// gate delegated to the server's broadcast-auth callback: Subscribe first
// presents the bearer credential there and only subscribes to the subject
// once the server grants the channel.
type NATSTransport struct {
	URL          string
	AuthEndpoint string
	HTTPClient   *http.Client
}

func NewNATSTransport(url, authEndpoint string) *NATSTransport {
	return &NATSTransport{
		URL:          url,
		AuthEndpoint: authEndpoint,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *NATSTransport) Connect(authHeader string) (Conn, error) {
	conn, err := nats.Connect(t.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return &natsConn{transport: t, authHeader: authHeader, conn: conn}, nil
}

type natsConn struct {
	transport  *NATSTransport
	authHeader string
	conn       *nats.Conn
}

func (c *natsConn) Subscribe(channelName string) (Subscription, error) {
	if err := c.authorizeChannel(channelName); err != nil {
		return nil, err
	}

	sub := &natsSubscription{
		inbound:  make(chan []byte, inboundQueueSize),
		quit:     make(chan struct{}),
		handlers: map[string]func(json.RawMessage){},
	}

	natsSub, err := c.conn.Subscribe(channelName, func(msg *nats.Msg) {
		select {
		case sub.inbound <- msg.Data:
		default:
			// Queue full: the message is lost, consistent with best-effort
			// delivery.
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	sub.sub = natsSub

	go sub.drain()
	return sub, nil
}

func (c *natsConn) authorizeChannel(channelName string) error {
	body, err := json.Marshal(map[string]string{"channel_name": channelName})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.transport.AuthEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.transport.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrSubscribeDenied
	default:
		return fmt.Errorf("%w: auth callback returned %d", ErrTransportUnavailable, resp.StatusCode)
	}
}

func (c *natsConn) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Drain()
	c.conn.Close()
	c.conn = nil
	return err
}

// natsSubscription funnels every message through one inbound queue drained
// by a single goroutine, so handlers observe arrival order and the store is
// never mutated from two event deliveries at once.
type natsSubscription struct {
	sub     *nats.Subscription
	inbound chan []byte
	quit    chan struct{}

	mu       sync.Mutex
	handlers map[string]func(json.RawMessage)
}

func (s *natsSubscription) On(event string, handler func(json.RawMessage)) {
	s.mu.Lock()
	s.handlers[event] = handler
	s.mu.Unlock()
}

func (s *natsSubscription) Off(event string) {
	s.mu.Lock()
	delete(s.handlers, event)
	s.mu.Unlock()
}

func (s *natsSubscription) Unsubscribe() error {
	var err error
	if s.sub != nil {
		err = s.sub.Unsubscribe()
		s.sub = nil
	}
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
	return err
}

func (s *natsSubscription) drain() {
	for {
		select {
		case <-s.quit:
			return
		case payload := <-s.inbound:
			dispatchEnvelope(payload, s.handler)
		}
	}
}

func (s *natsSubscription) handler(event string) func(json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handlers[event]
}

// dispatchEnvelope decodes the wire envelope and hands the data to the
// handler registered for its event name. Undecodable envelopes and events
// without a handler are dropped.
func dispatchEnvelope(payload []byte, lookup func(string) func(json.RawMessage)) {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return
	}
	handler := lookup(env.Event)
	if handler == nil {
		return
	}
	handler(env.Data)
}

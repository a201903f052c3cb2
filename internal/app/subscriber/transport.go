package subscriber

import (
	"encoding/json"
	"errors"
)

var (
	// ErrTransportUnavailable is a failed connection or channel setup. The
	// core does not retry; reconnection policy belongs to the transport.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrSubscribeDenied is the server rejecting the subscription attempt
	// (bad credential or a channel the bearer does not own).
	ErrSubscribeDenied = errors.New("subscription denied")
)

// Transport opens authenticated real-time connections. The bearer credential
// travels in the auth header and is re-presented to the server-side
// authorization callback once per subscription attempt.
type Transport interface {
	Connect(authHeader string) (Conn, error)
}

type Conn interface {
	Subscribe(channelName string) (Subscription, error)
	Disconnect() error
}

// Subscription is one channel's inbound side. Handlers registered with On
// run sequentially in arrival order; there is one consumer per channel.
type Subscription interface {
	On(event string, handler func(data json.RawMessage))
	Off(event string)
	Unsubscribe() error
}

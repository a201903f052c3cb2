package natsutil

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Connect dials a plain NATS connection. Core pub/sub is all this system
// needs: domain events are at-most-once and best-effort, so there is no
// stream or consumer state to provision.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url)
}

func ConnectWithRetry(url string, timeout time.Duration) (*nats.Conn, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := Connect(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	return nil, fmt.Errorf("connect nats timeout after %s: %w", timeout, lastErr)
}

func Close(conn *nats.Conn) {
	if conn == nil {
		return
	}
	_ = conn.Drain()
	conn.Close()
}

type Publisher interface {
	Publish(subject string, payload []byte) error
}

// ConnPublisher publishes on a core NATS connection. A publish with no
// subscriber on the subject is silently dropped, which is the intended
// delivery contract.
type ConnPublisher struct {
	Conn *nats.Conn
}

func (p ConnPublisher) Publish(subject string, payload []byte) error {
	return p.Conn.Publish(subject, payload)
}

package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// CommandSubject returns the wildcard subject the commands of a gateway are
// received on, e.g. concentratord.0102030405060708.command.*
func CommandSubject(prefix, gatewayID string) string {
	return fmt.Sprintf("%s.%s.command.*", prefix, gatewayID)
}

// EventSubject returns the subject an event of a gateway is published on
func EventSubject(prefix, gatewayID, event string) string {
	return fmt.Sprintf("%s.%s.event.%s", prefix, gatewayID, event)
}

// NATSTransport receives commands through a synchronous NATS subscription and
// answers them with NATS request/reply.
type NATSTransport struct {
	sub *nats.Subscription
}

// NewNATSTransport subscribes to subject
func NewNATSTransport(nc *nats.Conn, subject string) (*NATSTransport, error) {
	sub, err := nc.SubscribeSync(subject)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return &NATSTransport{sub: sub}, nil
}

// Receive waits up to timeout for the next request
func (t *NATSTransport) Receive(timeout time.Duration) (*Message, error) {
	msg, err := t.sub.NextMsg(timeout)
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) {
			return nil, ErrTimeout
		}
		return nil, err
	}

	return NewMessage(commandName(msg.Subject), msg.Data, msg.Respond), nil
}

// Close removes the subscription
func (t *NATSTransport) Close() error {
	return t.sub.Unsubscribe()
}

func commandName(subject string) string {
	return subject[strings.LastIndex(subject, ".")+1:]
}

// Package commands reads request/reply commands from the network-facing
// controller and decodes them into typed commands.
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

// Command names, the last token of the request subject
const (
	NameDownlink      = "down"
	NameGatewayID     = "gateway_id"
	NameConfiguration = "config"
)

// ErrTimeout is returned by Transport.Receive when no request arrived
var ErrTimeout = errors.New("commands: receive timeout")

// Message is a single request. Every message must be replied exactly once.
type Message struct {
	Name    string
	Data    []byte
	respond func([]byte) error
}

// NewMessage creates a message answered through respond
func NewMessage(name string, data []byte, respond func([]byte) error) *Message {
	return &Message{
		Name:    name,
		Data:    data,
		respond: respond,
	}
}

// Reply sends the response payload
func (m *Message) Reply(data []byte) error {
	if m.respond == nil {
		return fmt.Errorf("message %s has no reply handler", m.Name)
	}
	return m.respond(data)
}

// Transport delivers requests. Receive returns ErrTimeout when nothing
// arrived within timeout.
type Transport interface {
	Receive(timeout time.Duration) (*Message, error)
}

// Command is one of Timeout, Downlink, GatewayID, Configuration, Error or Unknown
type Command interface {
	command()
}

// Timeout means no request arrived within the read window
type Timeout struct{}

// Downlink requests scheduling of a downlink frame
type Downlink struct {
	Frame models.DownlinkFrame
}

// GatewayID requests the gateway identifier
type GatewayID struct{}

// Configuration carries a gateway configuration update
type Configuration struct {
	Configuration models.GatewayConfiguration
}

// Error is a request that could not be read or decoded
type Error struct {
	Err error
}

// Unknown is a request with an unknown command name
type Unknown struct {
	Name string
	Data []byte
}

func (Timeout) command()       {}
func (Downlink) command()      {}
func (GatewayID) command()     {}
func (Configuration) command() {}
func (Error) command()         {}
func (Unknown) command()       {}

// Reader reads commands from a transport with a bounded timeout
type Reader struct {
	transport Transport
	timeout   time.Duration
}

// NewReader creates a reader
func NewReader(t Transport, timeout time.Duration) *Reader {
	return &Reader{
		transport: t,
		timeout:   timeout,
	}
}

// Timeout returns the read timeout
func (r *Reader) Timeout() time.Duration {
	return r.timeout
}

// Next reads one command. The message is nil for Timeout and for transport
// errors, in both cases there is nothing to reply to.
func (r *Reader) Next() (Command, *Message) {
	msg, err := r.transport.Receive(r.timeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			return Timeout{}, nil
		}
		return Error{Err: fmt.Errorf("receive command: %w", err)}, nil
	}

	return Decode(msg), msg
}

// Decode turns a message into a command
func Decode(msg *Message) Command {
	switch msg.Name {
	case NameDownlink:
		var frame models.DownlinkFrame
		if err := json.Unmarshal(msg.Data, &frame); err != nil {
			return Error{Err: fmt.Errorf("decode downlink: %w", err)}
		}
		return Downlink{Frame: frame}
	case NameGatewayID:
		return GatewayID{}
	case NameConfiguration:
		var cfg models.GatewayConfiguration
		if err := json.Unmarshal(msg.Data, &cfg); err != nil {
			return Error{Err: fmt.Errorf("decode configuration: %w", err)}
		}
		return Configuration{Configuration: cfg}
	default:
		return Unknown{Name: msg.Name, Data: msg.Data}
	}
}

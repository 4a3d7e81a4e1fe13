package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lorawan-server/lorawan-concentratord/internal/commands"
	"github.com/lorawan-server/lorawan-concentratord/internal/signals"
	"github.com/lorawan-server/lorawan-concentratord/pkg/lorawan"
)

// SignalPublisher publishes signals to the other components
type SignalPublisher interface {
	Publish(sig signals.Signal) error
}

// CommandLoop reads commands and replies to each of them exactly once
type CommandLoop struct {
	gatewayID lorawan.EUI64
	reader    *commands.Reader
	downlink  *DownlinkHandler
	bus       SignalPublisher
}

// NewCommandLoop creates the command dispatcher
func NewCommandLoop(gatewayID lorawan.EUI64, reader *commands.Reader, downlink *DownlinkHandler, bus SignalPublisher) *CommandLoop {
	return &CommandLoop{
		gatewayID: gatewayID,
		reader:    reader,
		downlink:  downlink,
		bus:       bus,
	}
}

// Run dispatches commands until a signal is received on stop. A request
// read together with the stop signal is not answered. It returns a
// FatalError when the counter can not be read or a configuration signal can
// not be published.
func (l *CommandLoop) Run(stop <-chan signals.Signal) error {
	log.Info().Str("gateway_id", l.gatewayID.String()).Msg("starting command loop")

	for {
		cmd, msg := l.reader.Next()

		select {
		case sig := <-stop:
			log.Info().Stringer("signal", sig).Msg("stopping command loop")
			return nil
		default:
		}

		if _, ok := cmd.(commands.Timeout); ok {
			continue
		}

		resp, err := l.dispatch(cmd)
		if err != nil {
			return err
		}

		if msg == nil {
			// transport failure, nothing to reply to
			select {
			case sig := <-stop:
				log.Info().Stringer("signal", sig).Msg("stopping command loop")
				return nil
			case <-time.After(l.reader.Timeout()):
			}
			continue
		}

		if err := msg.Reply(resp); err != nil {
			log.Error().Err(err).Str("command", msg.Name).Msg("send command reply failed")
		}
	}
}

func (l *CommandLoop) dispatch(cmd commands.Command) ([]byte, error) {
	switch c := cmd.(type) {
	case commands.Downlink:
		return l.handleDownlink(&c)
	case commands.GatewayID:
		return l.gatewayID[:], nil
	case commands.Configuration:
		return l.handleConfiguration(&c)
	case commands.Error:
		log.Error().Err(c.Err).Msg("read command failed")
		return nil, nil
	case commands.Unknown:
		log.Warn().Str("command", c.Name).Int("size", len(c.Data)).Msg("unknown command")
		return nil, nil
	default:
		log.Warn().Str("type", fmt.Sprintf("%T", cmd)).Msg("unexpected command type")
		return nil, nil
	}
}

func (l *CommandLoop) handleDownlink(c *commands.Downlink) ([]byte, error) {
	ack, err := l.downlink.Handle(&c.Frame)
	if err != nil {
		if IsFatal(err) {
			return nil, err
		}
		log.Error().Err(err).Uint32("downlink_id", c.Frame.DownlinkID).Msg("handle downlink failed")
		return nil, nil
	}

	b, err := json.Marshal(ack)
	if err != nil {
		log.Error().Err(err).Uint32("downlink_id", c.Frame.DownlinkID).Msg("encode downlink ack failed")
		return nil, nil
	}
	return b, nil
}

func (l *CommandLoop) handleConfiguration(c *commands.Configuration) ([]byte, error) {
	cfg := c.Configuration
	log.Info().
		Str("version", cfg.Version).
		Int("channels", len(cfg.Channels)).
		Msg("configuration received")

	if err := l.bus.Publish(signals.Configuration(&cfg)); err != nil {
		return nil, &FatalError{Err: fmt.Errorf("publish configuration signal: %w", err)}
	}
	return nil, nil
}

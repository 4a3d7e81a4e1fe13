package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lorawan-server/lorawan-concentratord/internal/commands"
	"github.com/lorawan-server/lorawan-concentratord/internal/config"
	"github.com/lorawan-server/lorawan-concentratord/internal/gateway"
	"github.com/lorawan-server/lorawan-concentratord/internal/hal"
	"github.com/lorawan-server/lorawan-concentratord/internal/jitqueue"
	"github.com/lorawan-server/lorawan-concentratord/internal/models"
	"github.com/lorawan-server/lorawan-concentratord/internal/signals"
	"github.com/lorawan-server/lorawan-concentratord/internal/stats"
	"github.com/lorawan-server/lorawan-concentratord/internal/storage"
	"github.com/lorawan-server/lorawan-concentratord/pkg/lorawan"
)

const (
	jitSubscriber     = "jit"
	commandSubscriber = "command"
	mainSubscriber    = "main"
)

// daemon owns the downlink path: the queue shared by the JIT loop and the
// command loop, and the restart of both on a configuration change.
type daemon struct {
	cfg          *config.Config
	gatewayID    lorawan.EUI64
	concentrator hal.Concentrator
	queue        *jitqueue.Queue
	collector    *stats.Collector
	bus          *signals.Bus
	reader       *commands.Reader
	store        storage.Store // nil when persistence is disabled

	configuration <-chan signals.Signal
}

func newDaemon(cfg *config.Config, gatewayID lorawan.EUI64, c hal.Concentrator, transport commands.Transport, store storage.Store) (*daemon, error) {
	bus := signals.NewBus()

	configuration, err := bus.Subscribe(mainSubscriber, signals.KindConfiguration)
	if err != nil {
		return nil, err
	}

	return &daemon{
		cfg:           cfg,
		gatewayID:     gatewayID,
		concentrator:  c,
		queue:         jitqueue.New(cfg.QueueConfig()),
		collector:     stats.NewCollector(),
		bus:           bus,
		reader:        commands.NewReader(transport, cfg.Commands.ReadTimeout),
		store:         store,
		configuration: configuration,
	}, nil
}

// run starts the loops and restarts them after every configuration change
// until ctx is done. The returned error is fatal.
func (d *daemon) run(ctx context.Context) error {
	d.event(models.EventTypeStarted, models.EventLevelInfo, "concentratord started", nil)

	for {
		restart, err := d.runLoops(ctx)
		if err != nil {
			d.event(models.EventTypeStopped, models.EventLevelError, err.Error(), nil)
			return err
		}
		if !restart {
			d.event(models.EventTypeStopped, models.EventLevelInfo, "concentratord stopped", nil)
			return nil
		}
		log.Info().Msg("restarting downlink loops")
	}
}

// runLoops runs the JIT and command loops until one of them fails, a
// configuration signal arrives or ctx is done.
func (d *daemon) runLoops(ctx context.Context) (bool, error) {
	jitStop, err := d.bus.Subscribe(jitSubscriber, signals.KindStop)
	if err != nil {
		return false, err
	}
	defer d.release(jitSubscriber)

	commandStop, err := d.bus.Subscribe(commandSubscriber, signals.KindStop)
	if err != nil {
		return false, err
	}
	defer d.release(commandSubscriber)

	handler := gateway.NewDownlinkHandler(d.gatewayID, d.cfg.Concentrator.Radios, d.cfg.Concentrator.AntennaGain, d.queue, d.concentrator, d.collector)
	jitLoop := gateway.NewJITLoop(d.concentrator, d.queue, d.collector, d.cfg.Scheduler.PollInterval)
	commandLoop := gateway.NewCommandLoop(d.gatewayID, d.reader, handler, d.bus)

	var g errgroup.Group
	g.Go(func() error {
		return d.stopOthersOnError(jitLoop.Run(jitStop))
	})
	g.Go(func() error {
		return d.stopOthersOnError(commandLoop.Run(commandStop))
	})

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		return false, err

	case sig := <-d.configuration:
		d.stop()
		if err := <-done; err != nil {
			return false, err
		}
		d.applyConfiguration(sig.Configuration)
		return true, nil

	case <-ctx.Done():
		d.stop()
		return false, <-done
	}
}

func (d *daemon) stopOthersOnError(err error) error {
	if err != nil {
		d.stop()
	}
	return err
}

// release unsubscribes a loop and returns how many signals it missed
func (d *daemon) release(id string) uint64 {
	dropped, err := d.bus.Dropped(id)
	if err == nil && dropped > 0 {
		log.Debug().Str("subscriber", id).Uint64("dropped", dropped).Msg("signals dropped")
	}
	d.bus.Unsubscribe(id)
	return dropped
}

func (d *daemon) stop() {
	if err := d.bus.Stop(); err != nil {
		log.Debug().Err(err).Msg("publish stop signal")
	}
}

func (d *daemon) applyConfiguration(cfg *models.GatewayConfiguration) {
	if cfg == nil {
		return
	}

	freqs := make([]uint32, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		freqs = append(freqs, ch.Frequency)
	}

	log.Info().
		Str("version", cfg.Version).
		Interface("frequencies", freqs).
		Msg("channel configuration applied")

	d.event(models.EventTypeConfiguration, models.EventLevelInfo, "channel configuration applied", models.Variables{
		"version":     cfg.Version,
		"frequencies": freqs,
	})
}

// event persists an event log entry when a store is configured
func (d *daemon) event(typ models.EventType, level models.EventLevel, description string, details models.Variables) {
	if d.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := d.store.CreateEventLog(ctx, &models.EventLog{
		GatewayID:   d.gatewayID.String(),
		Type:        typ,
		Level:       level,
		Description: description,
		Details:     details,
	})
	if err != nil {
		log.Error().Err(err).Str("type", string(typ)).Msg("save event log failed")
	}
}

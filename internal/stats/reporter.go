package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

// Publisher publishes an event, *nats.Conn satisfies it
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Store persists statistics snapshots
type Store interface {
	SaveGatewayStats(ctx context.Context, stats *models.GatewayStats) error
}

// Reporter periodically publishes and resets the collected counters
type Reporter struct {
	collector *Collector
	publisher Publisher
	store     Store
	gatewayID string
	subject   string
	interval  time.Duration
}

// NewReporter creates a reporter. store may be nil.
func NewReporter(c *Collector, pub Publisher, store Store, gatewayID, subject string, interval time.Duration) *Reporter {
	return &Reporter{
		collector: c,
		publisher: pub,
		store:     store,
		gatewayID: gatewayID,
		subject:   subject,
		interval:  interval,
	}
}

// Run reports every interval until ctx is done
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Report(ctx); err != nil {
				log.Error().Err(err).Msg("report gateway stats failed")
			}
		}
	}
}

// Report sends one snapshot
func (r *Reporter) Report(ctx context.Context) error {
	s := r.collector.Collect(r.gatewayID)

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	if err := r.publisher.Publish(r.subject, data); err != nil {
		return fmt.Errorf("publish stats: %w", err)
	}

	if r.store != nil {
		if err := r.store.SaveGatewayStats(ctx, s); err != nil {
			return fmt.Errorf("save stats: %w", err)
		}
	}

	log.Info().
		Str("stats_id", s.StatsID.String()).
		Uint32("tx_received", s.TxPacketsReceived).
		Uint32("tx_emitted", s.TxPacketsEmitted).
		Msg("gateway stats published")

	return nil
}

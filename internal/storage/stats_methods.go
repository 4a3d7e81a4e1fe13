package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

// SaveGatewayStats stores a statistics snapshot
func (s *PostgresStore) SaveGatewayStats(ctx context.Context, stats *models.GatewayStats) error {
	if stats.GatewayID == "" {
		return fmt.Errorf("%w: missing gateway id", ErrInvalidData)
	}
	if stats.StatsID == uuid.Nil {
		stats.StatsID = uuid.New()
	}

	perFrequency, err := json.Marshal(stats.TxPacketsPerFrequency)
	if err != nil {
		return fmt.Errorf("marshal per frequency counts: %w", err)
	}
	perModulation, err := json.Marshal(stats.TxPacketsPerModulation)
	if err != nil {
		return fmt.Errorf("marshal per modulation counts: %w", err)
	}
	perStatus, err := json.Marshal(stats.TxPacketsPerStatus)
	if err != nil {
		return fmt.Errorf("marshal per status counts: %w", err)
	}

	query := `
		INSERT INTO gateway_stats (
			id, gateway_id, time, tx_packets_received, tx_packets_emitted,
			tx_per_frequency, tx_per_modulation, tx_per_status, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.db.ExecContext(ctx, query,
		stats.StatsID, stats.GatewayID, stats.Time,
		stats.TxPacketsReceived, stats.TxPacketsEmitted,
		string(perFrequency), string(perModulation), string(perStatus),
		stats.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert gateway stats: %w", err)
	}
	return nil
}

// GetGatewayStats returns the latest snapshot of a gateway
func (s *PostgresStore) GetGatewayStats(ctx context.Context, gatewayID string) (*models.GatewayStats, error) {
	query := `
		SELECT id, gateway_id, time, tx_packets_received, tx_packets_emitted,
			tx_per_frequency, tx_per_modulation, tx_per_status, metadata
		FROM gateway_stats
		WHERE gateway_id = $1
		ORDER BY time DESC
		LIMIT 1`

	stats := &models.GatewayStats{}
	var perFrequency, perModulation, perStatus []byte

	err := s.db.QueryRowContext(ctx, query, gatewayID).Scan(
		&stats.StatsID, &stats.GatewayID, &stats.Time,
		&stats.TxPacketsReceived, &stats.TxPacketsEmitted,
		&perFrequency, &perModulation, &perStatus, &stats.Metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select gateway stats: %w", err)
	}

	if err := json.Unmarshal(perFrequency, &stats.TxPacketsPerFrequency); err != nil {
		return nil, fmt.Errorf("%w: per frequency counts: %v", ErrInvalidData, err)
	}
	if err := json.Unmarshal(perModulation, &stats.TxPacketsPerModulation); err != nil {
		return nil, fmt.Errorf("%w: per modulation counts: %v", ErrInvalidData, err)
	}
	if err := json.Unmarshal(perStatus, &stats.TxPacketsPerStatus); err != nil {
		return nil, fmt.Errorf("%w: per status counts: %v", ErrInvalidData, err)
	}

	return stats, nil
}

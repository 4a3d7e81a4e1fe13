package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

// Common errors
var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidData = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Schema
	Migrate(ctx context.Context) error

	// Gateway stats methods
	SaveGatewayStats(ctx context.Context, stats *models.GatewayStats) error
	GetGatewayStats(ctx context.Context, gatewayID string) (*models.GatewayStats, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	GatewayID string
	Type      *models.EventType
	Level     *models.EventLevel
	StartTime *time.Time
	EndTime   *time.Time
}

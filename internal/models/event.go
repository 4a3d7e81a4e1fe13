package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an event log entry
type EventLog struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	GatewayID   string     `json:"gatewayId" db:"gateway_id"`
	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`
	Details     Variables  `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	EventTypeStarted       EventType = "STARTED"
	EventTypeStopped       EventType = "STOPPED"
	EventTypeConfiguration EventType = "CONFIGURATION"
	EventTypeStats         EventType = "STATS"
)

// EventLevel represents event severity levels
type EventLevel string

const (
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)

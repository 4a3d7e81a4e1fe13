package models

import (
	"time"

	"github.com/google/uuid"
)

// GatewayConfiguration is a channel configuration update pushed by the
// network server.
type GatewayConfiguration struct {
	GatewayID string                 `json:"gatewayId"`
	Version   string                 `json:"version"`
	Channels  []ChannelConfiguration `json:"channels"`
}

// ChannelConfiguration is a single receive channel
type ChannelConfiguration struct {
	Frequency   uint32     `json:"frequency"`
	Modulation  Modulation `json:"modulation"`
	Board       uint32     `json:"board"`
	Demodulator uint32     `json:"demodulator"`
}

// TxInfo is the subset of a transmitted packet the statistics are keyed by
type TxInfo struct {
	Frequency  uint32     `json:"frequency"`
	Power      int32      `json:"power"`
	Modulation Modulation `json:"modulation"`
}

// GatewayStats is a periodic statistics snapshot
type GatewayStats struct {
	StatsID                uuid.UUID            `json:"statsId"`
	GatewayID              string               `json:"gatewayId"`
	Time                   time.Time            `json:"time"`
	TxPacketsReceived      uint32               `json:"txPacketsReceived"`
	TxPacketsEmitted       uint32               `json:"txPacketsEmitted"`
	TxPacketsPerFrequency  map[uint32]uint32    `json:"txPacketsPerFrequency"`
	TxPacketsPerModulation []PerModulationCount `json:"txPacketsPerModulation"`
	TxPacketsPerStatus     map[string]uint32    `json:"txPacketsPerStatus"`
	Metadata               Variables            `json:"metadata,omitempty"`
}

// PerModulationCount counts packets per modulation
type PerModulationCount struct {
	Modulation Modulation `json:"modulation"`
	Count      uint32     `json:"count"`
}

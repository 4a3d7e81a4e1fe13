package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/pkg/lorawan"
)

// DownlinkFrame is a transmit request. Items are alternatives for the same
// logical message, at most one of them gets scheduled.
type DownlinkFrame struct {
	DownlinkID uint32              `json:"downlinkId"`
	GatewayID  string              `json:"gatewayId,omitempty"`
	Items      []DownlinkFrameItem `json:"items"`
}

// DownlinkFrameItem is one candidate of a downlink frame
type DownlinkFrameItem struct {
	PHYPayload []byte         `json:"phyPayload"`
	TxInfo     DownlinkTxInfo `json:"txInfo"`
}

// DownlinkTxInfo contains the information used for TX
type DownlinkTxInfo struct {
	Frequency  uint32     `json:"frequency"`        // Hz
	Power      int32      `json:"power"`            // EIRP in dBm
	RFChain    uint32     `json:"rfChain"`          // concentrator RF chain used for TX
	Board      uint32     `json:"board"`            // concentrator board
	Antenna    uint32     `json:"antenna"`          // antenna
	Modulation Modulation `json:"modulation"`       // exactly one of LoRa / FSK
	Timing     Timing     `json:"timing"`           // exactly one of the timing variants
	Context    []byte     `json:"context,omitempty"` // uplink context, required for delay timing
}

// Modulation holds the modulation parameters
type Modulation struct {
	LoRa *LoRaModulationInfo `json:"lora,omitempty"`
	FSK  *FSKModulationInfo  `json:"fsk,omitempty"`
}

// LoRaModulationInfo contains LoRa modulation parameters
type LoRaModulationInfo struct {
	Bandwidth             uint32 `json:"bandwidth"` // Hz
	SpreadingFactor       uint32 `json:"spreadingFactor"`
	CodeRate              string `json:"codeRate"` // e.g. "4/5" or "CR_4_5"
	PolarizationInversion bool   `json:"polarizationInversion"`
	Preamble              uint32 `json:"preamble,omitempty"`
	NoCRC                 bool   `json:"noCrc,omitempty"`
}

// FSKModulationInfo contains FSK modulation parameters
type FSKModulationInfo struct {
	FrequencyDeviation uint32 `json:"frequencyDeviation"` // Hz
	Datarate           uint32 `json:"datarate"`           // bit/s
}

// Timing describes when the item must be transmitted
type Timing struct {
	Immediately *ImmediatelyTimingInfo `json:"immediately,omitempty"`
	Delay       *DelayTimingInfo       `json:"delay,omitempty"`
	GPSEpoch    *GPSEpochTimingInfo    `json:"gpsEpoch,omitempty"`
}

// ImmediatelyTimingInfo sends the item as soon as possible
type ImmediatelyTimingInfo struct{}

// DelayTimingInfo sends the item at the uplink counter (from the context) plus Delay
type DelayTimingInfo struct {
	Delay Duration `json:"delay"`
}

// GPSEpochTimingInfo sends the item at a GPS epoch timestamp
type GPSEpochTimingInfo struct {
	TimeSinceGPSEpoch Duration `json:"timeSinceGpsEpoch"`
}

// Duration is a time.Duration encoded as a string ("1s", "1500ms") in JSON
type Duration time.Duration

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// UplinkContext is the context the uplink path attaches to received frames,
// it carries the concentrator counter of the uplink.
type UplinkContext struct {
	GatewayID string  `json:"gateway_id"`
	Tmst      float64 `json:"tmst"`
}

// DownlinkTxAck is the reply to a downlink frame
type DownlinkTxAck struct {
	GatewayID  string              `json:"gatewayId"`
	DownlinkID uint32              `json:"downlinkId"`
	Items      []DownlinkTxAckItem `json:"items"`
}

// DownlinkTxAckItem is the status of the item at the same position in the frame
type DownlinkTxAckItem struct {
	Status TxAckStatus `json:"status"`
}

// NewDownlinkTxAck creates an ack for frame with every item IGNORED
func NewDownlinkTxAck(gatewayID lorawan.EUI64, frame *DownlinkFrame) *DownlinkTxAck {
	return &DownlinkTxAck{
		GatewayID:  gatewayID.String(),
		DownlinkID: frame.DownlinkID,
		Items:      make([]DownlinkTxAckItem, len(frame.Items)),
	}
}

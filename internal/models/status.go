package models

import (
	"encoding/json"
	"fmt"
)

// TxAckStatus is the outcome of scheduling one downlink item. It is used
// both as the JIT queue rejection reason and as the per-item ack status.
type TxAckStatus uint8

const (
	TxAckStatusIgnored TxAckStatus = iota
	TxAckStatusOK
	TxAckStatusTooLate
	TxAckStatusTooEarly
	TxAckStatusCollisionPacket
	TxAckStatusCollisionBeacon
	TxAckStatusTxFreq
	TxAckStatusTxPower
	TxAckStatusQueueFull
	TxAckStatusInternalError
)

var txAckStatusNames = map[TxAckStatus]string{
	TxAckStatusIgnored:         "IGNORED",
	TxAckStatusOK:              "OK",
	TxAckStatusTooLate:         "TOO_LATE",
	TxAckStatusTooEarly:        "TOO_EARLY",
	TxAckStatusCollisionPacket: "COLLISION_PACKET",
	TxAckStatusCollisionBeacon: "COLLISION_BEACON",
	TxAckStatusTxFreq:          "TX_FREQ",
	TxAckStatusTxPower:         "TX_POWER",
	TxAckStatusQueueFull:       "QUEUE_FULL",
	TxAckStatusInternalError:   "INTERNAL_ERROR",
}

// TxAckStatuses lists every status in declaration order
func TxAckStatuses() []TxAckStatus {
	out := make([]TxAckStatus, 0, len(txAckStatusNames))
	for s := TxAckStatusIgnored; s <= TxAckStatusInternalError; s++ {
		out = append(out, s)
	}
	return out
}

// String returns the status name
func (s TxAckStatus) String() string {
	if name, ok := txAckStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TxAckStatus(%d)", uint8(s))
}

// ParseTxAckStatus parses a status name
func ParseTxAckStatus(name string) (TxAckStatus, error) {
	for s, n := range txAckStatusNames {
		if n == name {
			return s, nil
		}
	}
	return TxAckStatusIgnored, fmt.Errorf("unknown tx ack status: %s", name)
}

// MarshalJSON implements json.Marshaler
func (s TxAckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (s *TxAckStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}

	v, err := ParseTxAckStatus(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

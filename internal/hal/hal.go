package hal

import (
	"errors"
	"fmt"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/pkg/lorawan"
)

// Common errors
var (
	ErrUnsupportedModulation = errors.New("unsupported modulation")
	ErrCounter               = errors.New("concentrator counter unavailable")
	ErrSend                  = errors.New("concentrator send failed")
)

// Counter reads the concentrator instruction counter, the free-running 1MHz
// tick all scheduling is based on. It wraps at 2^32.
type Counter interface {
	GetInstCnt() (uint32, error)
}

// Concentrator is the hardware abstraction used by the downlink path
type Concentrator interface {
	Counter
	Send(pkt TxPacket) error
}

// TxMode defines when the concentrator emits a packet
type TxMode uint8

const (
	Immediate TxMode = iota
	Timestamped
)

// String returns the mode name
func (m TxMode) String() string {
	switch m {
	case Immediate:
		return "IMMEDIATE"
	case Timestamped:
		return "TIMESTAMPED"
	default:
		return fmt.Sprintf("TxMode(%d)", uint8(m))
	}
}

// Modulation represents the radio modulation
type Modulation uint8

const (
	ModLoRa Modulation = iota + 1
	ModFSK
)

// String returns the modulation name
func (m Modulation) String() string {
	switch m {
	case ModLoRa:
		return "LORA"
	case ModFSK:
		return "FSK"
	default:
		return fmt.Sprintf("Modulation(%d)", uint8(m))
	}
}

// CodeRate represents the LoRa ECC code rate
type CodeRate uint8

const (
	CodeRateUndefined CodeRate = iota
	CodeRate4_5
	CodeRate4_6
	CodeRate4_7
	CodeRate4_8
)

// String returns the code rate in "4/x" notation
func (c CodeRate) String() string {
	if c < CodeRate4_5 || c > CodeRate4_8 {
		return "undefined"
	}
	return fmt.Sprintf("4/%d", int(c)+4)
}

// TxPacket is the hardware ready transmit descriptor
type TxPacket struct {
	FreqHz     uint32
	TxMode     TxMode
	CountUs    uint32
	RFChain    uint8
	RFPower    int8
	Modulation Modulation
	Bandwidth  uint32 // Hz
	Datarate   uint32 // spreading factor for LoRa, bit/s for FSK
	CodeRate   CodeRate
	InvertPol  bool
	FDev       uint32 // Hz, FSK only
	Preamble   uint16
	NoCRC      bool
	NoHeader   bool
	Payload    []byte
}

// TimeOnAir returns the time the packet occupies the channel.
func (p *TxPacket) TimeOnAir() (time.Duration, error) {
	switch p.Modulation {
	case ModLoRa:
		preamble := int(p.Preamble)
		if preamble == 0 {
			preamble = 8
		}
		return lorawan.LoRaTimeOnAir(lorawan.LoRaParams{
			SpreadingFactor: int(p.Datarate),
			Bandwidth:       int(p.Bandwidth),
			CodeRate:        int(p.CodeRate),
			PreambleSymbols: preamble,
			PayloadSize:     len(p.Payload),
			ImplicitHeader:  p.NoHeader,
			CRC:             !p.NoCRC,
		})
	case ModFSK:
		preamble := int(p.Preamble)
		if preamble == 0 {
			preamble = 5
		}
		return lorawan.FSKTimeOnAir(int(p.Datarate), preamble, len(p.Payload), !p.NoCRC)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedModulation, p.Modulation)
	}
}

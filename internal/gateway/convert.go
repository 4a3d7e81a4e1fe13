package gateway

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/internal/hal"
	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

// Conversion errors
var (
	ErrMissingModulation = errors.New("missing modulation")
	ErrMissingTiming     = errors.New("missing timing")
	ErrUnsupportedTiming = errors.New("unsupported timing")
	ErrInvalidContext    = errors.New("invalid uplink context")
	ErrInvalidParameter  = errors.New("invalid tx parameter")
)

const (
	maxPayloadSize      = 255
	defaultLoRaPreamble = 8
	defaultFSKPreamble  = 5
)

var loraBandwidths = map[uint32]bool{
	125000: true,
	250000: true,
	500000: true,
}

// downlinkFromProto converts a downlink item into the hardware descriptor
func downlinkFromProto(item *models.DownlinkFrameItem) (hal.TxPacket, error) {
	tx := &item.TxInfo

	if len(item.PHYPayload) > maxPayloadSize {
		return hal.TxPacket{}, fmt.Errorf("%w: payload size %d", ErrInvalidParameter, len(item.PHYPayload))
	}
	if tx.Power < math.MinInt8 || tx.Power > math.MaxInt8 {
		return hal.TxPacket{}, fmt.Errorf("%w: power %d", ErrInvalidParameter, tx.Power)
	}
	if tx.RFChain > math.MaxUint8 {
		return hal.TxPacket{}, fmt.Errorf("%w: rf chain %d", ErrInvalidParameter, tx.RFChain)
	}

	pkt := hal.TxPacket{
		FreqHz:  tx.Frequency,
		RFChain: uint8(tx.RFChain),
		RFPower: int8(tx.Power),
		Payload: append([]byte(nil), item.PHYPayload...),
	}

	if err := setModulation(&pkt, &tx.Modulation); err != nil {
		return hal.TxPacket{}, err
	}
	if err := setTiming(&pkt, &tx.Timing, tx.Context); err != nil {
		return hal.TxPacket{}, err
	}

	return pkt, nil
}

func setModulation(pkt *hal.TxPacket, mod *models.Modulation) error {
	switch {
	case mod.LoRa != nil:
		lora := mod.LoRa
		if !loraBandwidths[lora.Bandwidth] {
			return fmt.Errorf("%w: lora bandwidth %d", ErrInvalidParameter, lora.Bandwidth)
		}
		if lora.SpreadingFactor < 5 || lora.SpreadingFactor > 12 {
			return fmt.Errorf("%w: spreading factor %d", ErrInvalidParameter, lora.SpreadingFactor)
		}
		cr, err := parseCodeRate(lora.CodeRate)
		if err != nil {
			return err
		}
		if lora.Preamble > math.MaxUint16 {
			return fmt.Errorf("%w: preamble %d", ErrInvalidParameter, lora.Preamble)
		}

		pkt.Modulation = hal.ModLoRa
		pkt.Bandwidth = lora.Bandwidth
		pkt.Datarate = lora.SpreadingFactor
		pkt.CodeRate = cr
		pkt.InvertPol = lora.PolarizationInversion
		pkt.Preamble = uint16(lora.Preamble)
		if pkt.Preamble == 0 {
			pkt.Preamble = defaultLoRaPreamble
		}
		pkt.NoCRC = lora.NoCRC
		return nil

	case mod.FSK != nil:
		fsk := mod.FSK
		if fsk.Datarate == 0 {
			return fmt.Errorf("%w: fsk datarate 0", ErrInvalidParameter)
		}

		pkt.Modulation = hal.ModFSK
		pkt.Datarate = fsk.Datarate
		pkt.FDev = fsk.FrequencyDeviation
		pkt.Preamble = defaultFSKPreamble
		return nil

	default:
		return ErrMissingModulation
	}
}

func setTiming(pkt *hal.TxPacket, timing *models.Timing, context []byte) error {
	switch {
	case timing.Immediately != nil:
		pkt.TxMode = hal.Immediate
		return nil

	case timing.Delay != nil:
		tmst, err := uplinkCount(context)
		if err != nil {
			return err
		}
		pkt.TxMode = hal.Timestamped
		pkt.CountUs = tmst + uint32(time.Duration(timing.Delay.Delay)/time.Microsecond)
		return nil

	case timing.GPSEpoch != nil:
		return fmt.Errorf("%w: gps epoch", ErrUnsupportedTiming)

	default:
		return ErrMissingTiming
	}
}

// parseCodeRate accepts "4/5" and "CR_4_5" notations
func parseCodeRate(s string) (hal.CodeRate, error) {
	switch strings.TrimPrefix(strings.ToUpper(s), "CR_") {
	case "4/5", "4_5":
		return hal.CodeRate4_5, nil
	case "4/6", "4_6":
		return hal.CodeRate4_6, nil
	case "4/7", "4_7":
		return hal.CodeRate4_7, nil
	case "4/8", "4_8":
		return hal.CodeRate4_8, nil
	default:
		return hal.CodeRateUndefined, fmt.Errorf("%w: code rate %q", ErrInvalidParameter, s)
	}
}

// uplinkCount extracts the uplink concentrator counter from the context. The
// context is either the JSON document of the uplink path (possibly base64
// encoded a second time) or the raw big-endian counter.
func uplinkCount(context []byte) (uint32, error) {
	if len(context) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrInvalidContext)
	}
	if len(context) == 4 {
		return binary.BigEndian.Uint32(context), nil
	}

	var ctx models.UplinkContext
	if err := json.Unmarshal(context, &ctx); err != nil {
		decoded, decodeErr := base64.StdEncoding.DecodeString(string(context))
		if decodeErr != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidContext, err)
		}
		if err := json.Unmarshal(decoded, &ctx); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidContext, err)
		}
	}

	if ctx.Tmst < 0 || ctx.Tmst > math.MaxUint32 {
		return 0, fmt.Errorf("%w: tmst %v", ErrInvalidContext, ctx.Tmst)
	}
	return uint32(ctx.Tmst), nil
}

// TxInfoFromPacket returns the statistics key of a transmitted packet
func TxInfoFromPacket(pkt hal.TxPacket) (models.TxInfo, error) {
	info := models.TxInfo{
		Frequency: pkt.FreqHz,
		Power:     int32(pkt.RFPower),
	}

	switch pkt.Modulation {
	case hal.ModLoRa:
		info.Modulation.LoRa = &models.LoRaModulationInfo{
			Bandwidth:             pkt.Bandwidth,
			SpreadingFactor:       pkt.Datarate,
			CodeRate:              pkt.CodeRate.String(),
			PolarizationInversion: pkt.InvertPol,
		}
	case hal.ModFSK:
		info.Modulation.FSK = &models.FSKModulationInfo{
			FrequencyDeviation: pkt.FDev,
			Datarate:           pkt.Datarate,
		}
	default:
		return models.TxInfo{}, fmt.Errorf("%w: %s", hal.ErrUnsupportedModulation, pkt.Modulation)
	}

	return info, nil
}

package gateway

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/lorawan-server/lorawan-concentratord/internal/config"
	"github.com/lorawan-server/lorawan-concentratord/internal/hal"
	"github.com/lorawan-server/lorawan-concentratord/internal/jitqueue"
	"github.com/lorawan-server/lorawan-concentratord/internal/models"
	"github.com/lorawan-server/lorawan-concentratord/internal/stats"
	"github.com/lorawan-server/lorawan-concentratord/pkg/lorawan"
)

// Enqueuer is the write side of the JIT queue
type Enqueuer interface {
	Enqueue(now uint32, item jitqueue.Item) error
}

// DownlinkHandler validates downlink frames and schedules at most one item
// of each frame.
type DownlinkHandler struct {
	gatewayID   lorawan.EUI64
	radios      []config.RadioConfig
	antennaGain int8
	queue       Enqueuer
	counter     hal.Counter
	stats       stats.Sink
}

// NewDownlinkHandler creates a downlink handler. radios is indexed by RF chain.
func NewDownlinkHandler(gatewayID lorawan.EUI64, radios []config.RadioConfig, antennaGain int8, queue Enqueuer, counter hal.Counter, sink stats.Sink) *DownlinkHandler {
	return &DownlinkHandler{
		gatewayID:   gatewayID,
		radios:      radios,
		antennaGain: antennaGain,
		queue:       queue,
		counter:     counter,
		stats:       sink,
	}
}

// Handle tries the items of frame in order until one is enqueued. The ack
// holds one status per item, items after the scheduled one stay IGNORED.
//
// An item that can not be converted aborts the request: no ack is returned
// even if earlier items were rejected. A counter failure is returned as a
// FatalError.
func (h *DownlinkHandler) Handle(frame *models.DownlinkFrame) (*models.DownlinkTxAck, error) {
	h.stats.IncTxPacketsReceived()

	ack := models.NewDownlinkTxAck(h.gatewayID, frame)
	status := models.TxAckStatusIgnored

	for i := range frame.Items {
		pkt, err := downlinkFromProto(&frame.Items[i])
		if err != nil {
			return nil, fmt.Errorf("convert downlink item %d: %w", i, err)
		}
		power := int32(pkt.RFPower) - int32(h.antennaGain)
		if power < math.MinInt8 || power > math.MaxInt8 {
			log.Warn().
				Uint32("downlink_id", frame.DownlinkID).
				Int8("power", pkt.RFPower).
				Int8("antenna_gain", h.antennaGain).
				Msg("tx power out of range")
			status = models.TxAckStatusTxPower
			ack.Items[i].Status = status
			continue
		}
		pkt.RFPower = int8(power)

		status, err = h.schedule(frame.DownlinkID, pkt)
		if err != nil {
			return nil, err
		}
		ack.Items[i].Status = status

		if status == models.TxAckStatusOK {
			break
		}
	}

	h.stats.IncTxStatusCount(status)
	return ack, nil
}

func (h *DownlinkHandler) schedule(downlinkID uint32, pkt hal.TxPacket) (models.TxAckStatus, error) {
	if int(pkt.RFChain) >= len(h.radios) {
		log.Warn().
			Uint32("downlink_id", downlinkID).
			Uint8("rf_chain", pkt.RFChain).
			Msg("unknown rf chain")
		return models.TxAckStatusTxFreq, nil
	}

	radio := h.radios[pkt.RFChain]
	if pkt.FreqHz < radio.TxFreqMin || pkt.FreqHz > radio.TxFreqMax {
		log.Warn().
			Uint32("downlink_id", downlinkID).
			Uint32("freq", pkt.FreqHz).
			Uint32("min", radio.TxFreqMin).
			Uint32("max", radio.TxFreqMax).
			Msg("frequency out of tx range")
		return models.TxAckStatusTxFreq, nil
	}

	now, err := h.counter.GetInstCnt()
	if err != nil {
		return models.TxAckStatusInternalError, &FatalError{Err: fmt.Errorf("get concentrator counter: %w", err)}
	}

	err = h.queue.Enqueue(now, jitqueue.Item{
		DownlinkID: downlinkID,
		Packet:     pkt,
	})
	status := jitqueue.StatusOf(err)
	if err != nil {
		log.Warn().
			Err(err).
			Uint32("downlink_id", downlinkID).
			Uint32("count_us", pkt.CountUs).
			Uint32("now", now).
			Msg("downlink rejected")
		return status, nil
	}

	log.Debug().
		Uint32("downlink_id", downlinkID).
		Stringer("tx_mode", pkt.TxMode).
		Uint32("count_us", pkt.CountUs).
		Msg("downlink enqueued")
	return status, nil
}

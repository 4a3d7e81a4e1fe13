package gateway

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lorawan-server/lorawan-concentratord/internal/hal"
	"github.com/lorawan-server/lorawan-concentratord/internal/jitqueue"
	"github.com/lorawan-server/lorawan-concentratord/internal/signals"
	"github.com/lorawan-server/lorawan-concentratord/internal/stats"
)

// DefaultPollInterval is the JIT loop wake-up interval
const DefaultPollInterval = 10 * time.Millisecond

// Popper is the read side of the JIT queue
type Popper interface {
	Pop(now uint32) (jitqueue.Item, bool)
}

// JITLoop hands due queue items to the concentrator
type JITLoop struct {
	concentrator hal.Concentrator
	queue        Popper
	stats        stats.Sink
	interval     time.Duration
}

// NewJITLoop creates the scheduler loop. A non-positive interval falls back
// to DefaultPollInterval.
func NewJITLoop(c hal.Concentrator, queue Popper, sink stats.Sink, interval time.Duration) *JITLoop {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &JITLoop{
		concentrator: c,
		queue:        queue,
		stats:        sink,
		interval:     interval,
	}
}

// Run polls the queue until a signal is received on stop. It returns a
// FatalError when the concentrator counter can not be read.
func (l *JITLoop) Run(stop <-chan signals.Signal) error {
	log.Info().Dur("interval", l.interval).Msg("starting jit loop")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-stop:
			log.Info().Stringer("signal", sig).Msg("stopping jit loop")
			return nil
		case <-ticker.C:
		}

		now, err := l.concentrator.GetInstCnt()
		if err != nil {
			return &FatalError{Err: fmt.Errorf("get concentrator counter: %w", err)}
		}

		item, ok := l.queue.Pop(now)
		if !ok {
			continue
		}

		l.send(item)
	}
}

func (l *JITLoop) send(item jitqueue.Item) {
	pkt := item.Packet

	if err := l.concentrator.Send(pkt); err != nil {
		log.Error().
			Err(err).
			Uint32("downlink_id", item.DownlinkID).
			Uint32("count_us", pkt.CountUs).
			Msg("send downlink failed")
		return
	}

	log.Info().
		Uint32("downlink_id", item.DownlinkID).
		Uint32("count_us", pkt.CountUs).
		Uint32("freq", pkt.FreqHz).
		Uint32("bw", pkt.Bandwidth).
		Stringer("mod", pkt.Modulation).
		Uint32("dr", pkt.Datarate).
		Msg("scheduled packet sent for tx")

	if info, err := TxInfoFromPacket(pkt); err == nil {
		l.stats.IncTxCounts(info)
	}
}

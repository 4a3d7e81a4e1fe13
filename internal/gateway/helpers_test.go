package gateway

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/internal/config"
	"github.com/lorawan-server/lorawan-concentratord/internal/jitqueue"
	"github.com/lorawan-server/lorawan-concentratord/internal/models"
	"github.com/lorawan-server/lorawan-concentratord/pkg/lorawan"
)

var testGatewayID = lorawan.EUI64{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}

var testRadios = []config.RadioConfig{
	{TxFreqMin: 863000000, TxFreqMax: 870000000},
	{TxFreqMin: 863000000, TxFreqMax: 870000000},
}

type fakeCounter struct {
	mu  sync.Mutex
	now uint32
	err error
}

func (c *fakeCounter) GetInstCnt() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, c.err
}

type fakeEnqueuer struct {
	results []error
	items   []jitqueue.Item
}

func (q *fakeEnqueuer) Enqueue(now uint32, item jitqueue.Item) error {
	q.items = append(q.items, item)
	if len(q.results) == 0 {
		return nil
	}
	err := q.results[0]
	q.results = q.results[1:]
	return err
}

type fakeSink struct {
	mu       sync.Mutex
	received int
	statuses []models.TxAckStatus
	tx       []models.TxInfo
}

func (s *fakeSink) IncTxPacketsReceived() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received++
}

func (s *fakeSink) IncTxStatusCount(status models.TxAckStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *fakeSink) IncTxCounts(info models.TxInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tx = append(s.tx, info)
}

func (s *fakeSink) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tx)
}

func loraItem(freq uint32) models.DownlinkFrameItem {
	return models.DownlinkFrameItem{
		PHYPayload: []byte{0x60, 0x01, 0x02, 0x03, 0x04, 0x00, 0x00, 0x00, 0x01, 0x02},
		TxInfo: models.DownlinkTxInfo{
			Frequency: freq,
			Power:     14,
			Modulation: models.Modulation{
				LoRa: &models.LoRaModulationInfo{
					Bandwidth:             125000,
					SpreadingFactor:       7,
					CodeRate:              "4/5",
					PolarizationInversion: true,
				},
			},
			Timing: models.Timing{
				Immediately: &models.ImmediatelyTimingInfo{},
			},
		},
	}
}

func delayedItem(freq, tmst uint32, delay time.Duration) models.DownlinkFrameItem {
	item := loraItem(freq)
	item.TxInfo.Timing = models.Timing{
		Delay: &models.DelayTimingInfo{Delay: models.Duration(delay)},
	}
	item.TxInfo.Context = make([]byte, 4)
	binary.BigEndian.PutUint32(item.TxInfo.Context, tmst)
	return item
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

// Sink receives the downlink counters. Implementations must be safe for
// concurrent use and must not block.
type Sink interface {
	IncTxPacketsReceived()
	IncTxStatusCount(status models.TxAckStatus)
	IncTxCounts(info models.TxInfo)
}

type modulationKey struct {
	lora      bool
	bandwidth uint32
	sf        uint32
	codeRate  string
	datarate  uint32
}

func keyOf(m models.Modulation) modulationKey {
	switch {
	case m.LoRa != nil:
		return modulationKey{lora: true, bandwidth: m.LoRa.Bandwidth, sf: m.LoRa.SpreadingFactor, codeRate: m.LoRa.CodeRate}
	case m.FSK != nil:
		return modulationKey{datarate: m.FSK.Datarate}
	default:
		return modulationKey{}
	}
}

func (k modulationKey) modulation() models.Modulation {
	if k.lora {
		return models.Modulation{LoRa: &models.LoRaModulationInfo{
			Bandwidth:       k.bandwidth,
			SpreadingFactor: k.sf,
			CodeRate:        k.codeRate,
		}}
	}
	return models.Modulation{FSK: &models.FSKModulationInfo{Datarate: k.datarate}}
}

// Collector is the in-memory Sink
type Collector struct {
	mu            sync.Mutex
	txReceived    uint32
	txEmitted     uint32
	perFrequency  map[uint32]uint32
	perModulation map[modulationKey]uint32
	perStatus     map[models.TxAckStatus]uint32
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	c := &Collector{}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.txReceived = 0
	c.txEmitted = 0
	c.perFrequency = make(map[uint32]uint32)
	c.perModulation = make(map[modulationKey]uint32)
	c.perStatus = make(map[models.TxAckStatus]uint32)
}

// IncTxPacketsReceived counts a downlink request
func (c *Collector) IncTxPacketsReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txReceived++
}

// IncTxStatusCount counts the final outcome of a downlink request
func (c *Collector) IncTxStatusCount(status models.TxAckStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.perStatus[status]++
}

// IncTxCounts counts an emitted packet
func (c *Collector) IncTxCounts(info models.TxInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txEmitted++
	c.perFrequency[info.Frequency]++
	c.perModulation[keyOf(info.Modulation)]++
}

// Snapshot returns the current counters
func (c *Collector) Snapshot(gatewayID string) *models.GatewayStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.export(gatewayID)
}

// Collect returns the current counters and resets them
func (c *Collector) Collect(gatewayID string) *models.GatewayStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.export(gatewayID)
	c.reset()
	return s
}

func (c *Collector) export(gatewayID string) *models.GatewayStats {
	s := &models.GatewayStats{
		StatsID:               uuid.New(),
		GatewayID:             gatewayID,
		Time:                  time.Now().UTC(),
		TxPacketsReceived:     c.txReceived,
		TxPacketsEmitted:      c.txEmitted,
		TxPacketsPerFrequency: make(map[uint32]uint32, len(c.perFrequency)),
		TxPacketsPerStatus:    make(map[string]uint32, len(c.perStatus)),
	}

	for f, n := range c.perFrequency {
		s.TxPacketsPerFrequency[f] = n
	}
	for st, n := range c.perStatus {
		s.TxPacketsPerStatus[st.String()] = n
	}

	keys := make([]modulationKey, 0, len(c.perModulation))
	for k := range c.perModulation {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.lora != b.lora {
			return a.lora
		}
		if a.sf != b.sf {
			return a.sf < b.sf
		}
		if a.bandwidth != b.bandwidth {
			return a.bandwidth < b.bandwidth
		}
		if a.datarate != b.datarate {
			return a.datarate < b.datarate
		}
		return a.codeRate < b.codeRate
	})
	for _, k := range keys {
		s.TxPacketsPerModulation = append(s.TxPacketsPerModulation, models.PerModulationCount{
			Modulation: k.modulation(),
			Count:      c.perModulation[k],
		})
	}

	return s
}

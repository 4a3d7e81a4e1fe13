package hal

import (
	"sync"
	"time"
)

// Simulator implements Concentrator without hardware. The counter is derived
// from the monotonic clock, sent packets are kept for inspection.
type Simulator struct {
	mu         sync.Mutex
	start      time.Time
	offset     uint32
	counterErr error
	sendErr    error
	sent       []TxPacket
}

// NewSimulator creates a simulated concentrator whose counter starts at offset
func NewSimulator(offset uint32) *Simulator {
	return &Simulator{
		start:  time.Now(),
		offset: offset,
		sent:   make([]TxPacket, 0),
	}
}

// GetInstCnt returns the simulated instruction counter
func (s *Simulator) GetInstCnt() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.counterErr != nil {
		return 0, s.counterErr
	}

	// truncation to uint32 gives the hardware wraparound
	return s.offset + uint32(time.Since(s.start).Microseconds()), nil
}

// Send records the packet
func (s *Simulator) Send(pkt TxPacket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sendErr != nil {
		return s.sendErr
	}

	payload := make([]byte, len(pkt.Payload))
	copy(payload, pkt.Payload)
	pkt.Payload = payload

	s.sent = append(s.sent, pkt)
	return nil
}

// SetCounterError makes GetInstCnt fail with err (nil clears it)
func (s *Simulator) SetCounterError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counterErr = err
}

// SetSendError makes Send fail with err (nil clears it)
func (s *Simulator) SetSendError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErr = err
}

// Sent returns a copy of the packets sent so far
func (s *Simulator) Sent() []TxPacket {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TxPacket, len(s.sent))
	copy(out, s.sent)
	return out
}

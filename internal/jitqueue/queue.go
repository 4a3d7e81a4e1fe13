// Package jitqueue implements the just-in-time downlink queue. Items are
// kept in ascending order of their concentrator counter and handed to the
// scheduler shortly before they are due.
package jitqueue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lorawan-server/lorawan-concentratord/internal/hal"
	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

// Config holds the queue limits. The delays are applied around every
// queued packet and are expressed in concentrator time (1 tick = 1µs).
type Config struct {
	Capacity          int
	TxStartDelay      time.Duration // radio ramp-up before the first symbol
	TxMarginDelay     time.Duration // guard after the last symbol
	TxJITDelay        time.Duration // lead needed to program the concentrator
	TxMaxAdvanceDelay time.Duration // furthest a packet can be scheduled ahead
	// Beacons are sent every BeaconPeriod, starting at counter value
	// BeaconOffset. No packet may be on air from BeaconGuard before a beacon
	// until BeaconReserved after it. A zero period disables the reservation.
	BeaconPeriod   time.Duration
	BeaconOffset   uint32
	BeaconGuard    time.Duration
	BeaconReserved time.Duration
}

// DefaultConfig returns the Semtech packet forwarder values
func DefaultConfig() Config {
	return Config{
		Capacity:          32,
		TxStartDelay:      1500 * time.Microsecond,
		TxMarginDelay:     1000 * time.Microsecond,
		TxJITDelay:        40 * time.Millisecond,
		TxMaxAdvanceDelay: 3 * 128 * time.Second,
		BeaconGuard:       3 * time.Second,
		BeaconReserved:    2120 * time.Millisecond,
	}
}

// Item is a scheduled packet
type Item struct {
	DownlinkID uint32
	Packet     hal.TxPacket
}

// StatusError is returned by Enqueue when an item is rejected
type StatusError struct {
	Status models.TxAckStatus
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enqueue rejected: %s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("enqueue rejected: %s", e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusOf maps an Enqueue result to the ack status
func StatusOf(err error) models.TxAckStatus {
	if err == nil {
		return models.TxAckStatusOK
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return models.TxAckStatusInternalError
}

type entry struct {
	item Item
	toa  int64 // µs
	pre  int64
	post int64
}

// Queue is safe for concurrent use. The lock is only held for the duration
// of a single Enqueue or Pop.
type Queue struct {
	mu      sync.Mutex
	cfg     Config
	entries []entry
}

// New creates a queue
func New(cfg Config) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultConfig().Capacity
	}

	return &Queue{
		cfg:     cfg,
		entries: make([]entry, 0, cfg.Capacity),
	}
}

// Enqueue validates the timing of item against now and inserts it. A
// rejected item is returned as *StatusError.
func (q *Queue) Enqueue(now uint32, item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.cfg.Capacity {
		return &StatusError{Status: models.TxAckStatusQueueFull}
	}

	toa, err := item.Packet.TimeOnAir()
	if err != nil {
		return &StatusError{Status: models.TxAckStatusInternalError, Err: err}
	}

	e := entry{
		item: item,
		toa:  micros(toa),
		pre:  micros(q.cfg.TxStartDelay + q.cfg.TxJITDelay),
		post: micros(q.cfg.TxMarginDelay),
	}
	lead := micros(q.cfg.TxStartDelay + q.cfg.TxMarginDelay + q.cfg.TxJITDelay)

	if item.Packet.TxMode == hal.Immediate {
		limit := micros(q.cfg.TxMaxAdvanceDelay)
		start := q.firstGap(now, lead+1, limit, e)
		if start > limit {
			return &StatusError{Status: models.TxAckStatusTooEarly}
		}
		e.item.Packet.CountUs = now + uint32(start)
		e.item.Packet.TxMode = hal.Timestamped
	} else {
		delta := relative(e.item.Packet.CountUs, now)
		if delta <= lead {
			return &StatusError{Status: models.TxAckStatusTooLate}
		}
		if delta > micros(q.cfg.TxMaxAdvanceDelay) {
			return &StatusError{Status: models.TxAckStatusTooEarly}
		}
		if q.collision(now, delta, e) {
			return &StatusError{Status: models.TxAckStatusCollisionPacket}
		}
		if _, ok := q.beaconOverlap(now, delta, e); ok {
			return &StatusError{Status: models.TxAckStatusCollisionBeacon}
		}
	}

	if relative(e.item.Packet.CountUs, now) > micros(q.cfg.TxMaxAdvanceDelay) {
		return &StatusError{Status: models.TxAckStatusTooEarly}
	}

	q.insert(now, e)
	return nil
}

// Pop removes and returns the earliest item if it is due: its counter is at
// most TxJITDelay ahead of now. Otherwise the queue is left untouched.
func (q *Queue) Pop(now uint32) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return Item{}, false
	}

	head := q.entries[0]
	if relative(head.item.Packet.CountUs, now) > micros(q.cfg.TxJITDelay) {
		return Item{}, false
	}

	copy(q.entries, q.entries[1:])
	q.entries[len(q.entries)-1] = entry{}
	q.entries = q.entries[:len(q.entries)-1]

	return head.item, true
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Capacity returns the maximum number of queued items
func (q *Queue) Capacity() int {
	return q.cfg.Capacity
}

// collision reports whether e starting at start (relative to now) overlaps
// a queued entry.
func (q *Queue) collision(now uint32, start int64, e entry) bool {
	for _, other := range q.entries {
		if overlaps(start, e, relative(other.item.Packet.CountUs, now), other) {
			return true
		}
	}
	return false
}

// beaconOverlap returns the end (relative to now) of the first beacon
// reservation that overlaps e starting at start.
func (q *Queue) beaconOverlap(now uint32, start int64, e entry) (int64, bool) {
	period := micros(q.cfg.BeaconPeriod)
	if period <= 0 {
		return 0, false
	}
	guard := micros(q.cfg.BeaconGuard)
	reserved := micros(q.cfg.BeaconReserved)

	from := start - e.pre
	to := start + e.toa + e.post

	// first beacon whose reservation ends after the packet window opens
	phase := relative(q.cfg.BeaconOffset, now)
	beacon := phase + (floorDiv(from-reserved-phase, period)+1)*period

	if beacon-guard < to {
		return beacon + reserved, true
	}
	return 0, false
}

// firstGap returns the earliest start (relative to now, not before min) at
// which e overlaps neither a queued entry nor a beacon reservation. Starts
// beyond limit are returned as they are and rejected by the caller.
func (q *Queue) firstGap(now uint32, min, limit int64, e entry) int64 {
	start := min
	for start <= limit {
		moved := false
		for _, other := range q.entries {
			otherStart := relative(other.item.Packet.CountUs, now)
			if overlaps(start, e, otherStart, other) {
				start = otherStart + other.toa + other.post + e.pre
				moved = true
			}
		}
		if end, ok := q.beaconOverlap(now, start, e); ok {
			start = end + e.pre
			moved = true
		}
		if !moved {
			break
		}
	}
	return start
}

func (q *Queue) insert(now uint32, e entry) {
	at := relative(e.item.Packet.CountUs, now)

	i := len(q.entries)
	for idx, other := range q.entries {
		if relative(other.item.Packet.CountUs, now) > at {
			i = idx
			break
		}
	}

	q.entries = append(q.entries, entry{})
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = e
}

func overlaps(aStart int64, a entry, bStart int64, b entry) bool {
	return aStart-a.pre < bStart+b.toa+b.post && aStart+a.toa+a.post > bStart-b.pre
}

// relative returns count - now as a signed distance, handling the 32 bit
// counter wraparound.
func relative(count, now uint32) int64 {
	return int64(int32(count - now))
}

func floorDiv(a, b int64) int64 {
	d := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		d--
	}
	return d
}

func micros(d time.Duration) int64 {
	return int64(d / time.Microsecond)
}

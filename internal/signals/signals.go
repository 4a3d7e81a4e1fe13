// Package signals carries stop and configuration notifications between the
// downlink loops and the rest of the process. Every subscriber gets its own
// buffered channel, so a single Stop reaches every loop independently.
package signals

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lorawan-server/lorawan-concentratord/internal/models"
)

// Common errors
var (
	ErrBusClosed          = errors.New("signals: bus is closed")
	ErrSubscriberExists   = errors.New("signals: subscriber already exists")
	ErrSubscriberNotFound = errors.New("signals: subscriber not found")
	ErrSubscriberFull     = errors.New("signals: subscriber buffer full")
	ErrNoSubscribers      = errors.New("signals: no subscribers")
)

const bufferSize = 4

// Kind is the signal type
type Kind int

const (
	KindStop Kind = iota
	KindConfiguration
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindStop:
		return "stop"
	case KindConfiguration:
		return "configuration"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Signal is either a stop request or a configuration update
type Signal struct {
	Kind          Kind
	Configuration *models.GatewayConfiguration
}

// Stop returns a stop signal
func Stop() Signal {
	return Signal{Kind: KindStop}
}

// Configuration returns a configuration signal
func Configuration(cfg *models.GatewayConfiguration) Signal {
	return Signal{Kind: KindConfiguration, Configuration: cfg}
}

// String implements fmt.Stringer
func (s Signal) String() string {
	return s.Kind.String()
}

type subscriber struct {
	id      string
	kinds   map[Kind]bool
	ch      chan Signal
	dropped uint64
}

// Bus fans signals out to subscribers
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	published   uint64
	closed      bool
}

// NewBus creates a signal bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers id for the given kinds (all kinds when none given)
func (b *Bus) Subscribe(id string, kinds ...Kind) (<-chan Signal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	if len(kinds) == 0 {
		kinds = []Kind{KindStop, KindConfiguration}
	}

	sub := &subscriber{
		id:    id,
		kinds: make(map[Kind]bool, len(kinds)),
		ch:    make(chan Signal, bufferSize),
	}
	for _, k := range kinds {
		sub.kinds[k] = true
	}

	b.subscribers[id] = sub
	return sub.ch, nil
}

// Unsubscribe removes a subscriber. Its channel is not closed, pending
// signals stay readable.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}

	delete(b.subscribers, id)
	return nil
}

// Publish delivers sig to every subscriber of its kind without blocking.
func (b *Bus) Publish(sig Signal) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	atomic.AddUint64(&b.published, 1)

	delivered := 0
	var full []string
	for _, sub := range b.subscribers {
		if !sub.kinds[sig.Kind] {
			continue
		}

		select {
		case sub.ch <- sig:
			delivered++
		default:
			atomic.AddUint64(&sub.dropped, 1)
			full = append(full, sub.id)
		}
	}

	if len(full) > 0 {
		return fmt.Errorf("%w: %v", ErrSubscriberFull, full)
	}
	if delivered == 0 {
		return fmt.Errorf("%w for %s", ErrNoSubscribers, sig.Kind)
	}
	return nil
}

// Stop broadcasts a stop signal
func (b *Bus) Stop() error {
	return b.Publish(Stop())
}

// Dropped returns the number of signals that did not fit in id's buffer
func (b *Bus) Dropped(id string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return 0, ErrSubscriberNotFound
	}
	return atomic.LoadUint64(&sub.dropped), nil
}

// Close shuts the bus down. Later publishes fail with ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	b.subscribers = nil
}

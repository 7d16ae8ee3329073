// Package listener delivers editor events to registered listeners.
//
// Every registration is a scoped resource: Register returns a handle whose
// Close deregisters the listener, and closing the Bus deregisters all of
// them. Events are delivered one at a time, in posting order, on a single
// dispatch goroutine owned by the Bus.
package listener

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrClosed is returned by Post after the Bus has been closed.
var ErrClosed = errors.New("listener bus closed")

// Event kinds posted by meow-studio.
const (
	KindZoom        = "zoom"
	KindDrop        = "drop"
	KindSaved       = "saved"
	KindImported    = "imported"
	KindLinkDropped = "link_dropped"
	KindModified    = "modified"
)

// Event is something listeners are told about.
type Event struct {
	Kind string `json:"kind"`
	Data any    `json:"data,omitempty"`
}

// Listener receives events.
type Listener interface {
	Handle(ev Event)
}

// Func adapts a function to a Listener.
type Func func(ev Event)

// Handle calls f(ev).
func (f Func) Handle(ev Event) { f(ev) }

// Bus fans events out to registered listeners.
type Bus struct {
	logger *slog.Logger

	mu        sync.RWMutex
	listeners map[uint64]entry
	nextID    uint64
	closed    bool

	queue     chan Event
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type entry struct {
	listener Listener
	kinds    map[string]bool
}

// NewBus creates a Bus and starts its dispatcher. buffer bounds the
// number of posted events awaiting delivery; Post blocks when it is full.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer < 1 {
		buffer = 1
	}
	b := &Bus{
		logger:    logger.With("component", "listener-bus"),
		listeners: make(map[uint64]entry),
		queue:     make(chan Event, buffer),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go b.dispatch()
	return b
}

// Registration is the handle of a registered listener.
type Registration struct {
	bus  *Bus
	id   uint64
	once sync.Once
}

// Register adds l to the bus. With kinds, only events of those kinds are
// delivered. Registering on a closed bus returns an inert registration.
func (b *Bus) Register(l Listener, kinds ...string) *Registration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	r := &Registration{bus: b, id: b.nextID}
	if b.closed {
		return r
	}

	e := entry{listener: l}
	if len(kinds) > 0 {
		e.kinds = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			e.kinds[k] = true
		}
	}
	b.listeners[r.id] = e
	return r
}

// Close deregisters the listener. Events posted after Close returns are
// never delivered to it. Safe to call more than once, including from the
// listener itself.
func (r *Registration) Close() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.bus.mu.Lock()
		delete(r.bus.listeners, r.id)
		r.bus.mu.Unlock()
	})
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Post queues ev for delivery.
func (b *Bus) Post(ev Event) error {
	select {
	case <-b.stop:
		return ErrClosed
	default:
	}
	select {
	case b.queue <- ev:
		return nil
	case <-b.stop:
		return ErrClosed
	}
}

// Close deregisters every listener, discards undelivered events and stops
// the dispatcher. It waits for an in-flight delivery to finish, so it must
// not be called from a listener.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.listeners = make(map[uint64]entry)
		b.mu.Unlock()
		close(b.stop)
	})
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case ev := <-b.queue:
			for _, id := range b.ids() {
				b.deliver(id, ev)
			}
		}
	}
}

// ids returns the current registration IDs in registration order.
func (b *Bus) ids() []uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]uint64, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *Bus) deliver(id uint64, ev Event) {
	// Looked up per delivery so a listener closed mid-dispatch is skipped.
	b.mu.RLock()
	e, ok := b.listeners[id]
	b.mu.RUnlock()
	if !ok || (e.kinds != nil && !e.kinds[ev.Kind]) {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panicked", "kind", ev.Kind, "listener", id, "panic", fmt.Sprint(r))
		}
	}()
	e.listener.Handle(ev)
}

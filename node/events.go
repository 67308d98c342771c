package node

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cipherword/cipherword/core/types"
)

// Event is a message published on the event bus. Data is one of the typed
// payloads from core/types (RoomCreatedEvent, GuessResolvedEvent, ...).
type Event struct {
	Type      types.EventType
	Data      any
	Timestamp time.Time
}

// Subscription represents a subscription to one or more event types on the
// EventBus. An empty type set matches every event.
type Subscription struct {
	id     uint64
	all    bool
	types  map[types.EventType]struct{}
	ch     chan Event
	bus    *EventBus
	closed atomic.Bool
}

// Chan returns a read-only channel that receives matching events.
func (s *Subscription) Chan() <-chan Event {
	return s.ch
}

// Unsubscribe removes this subscription from the bus and closes the
// underlying channel. Safe to call multiple times.
func (s *Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.Unsubscribe(s)
	}
}

func (s *Subscription) matches(t types.EventType) bool {
	if s.all {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// EventBus fans game events out to loosely-coupled consumers (history
// journal, websocket feed, tests). All methods are safe for concurrent use.
// Emission never blocks the engine: full subscriber channels drop events.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	bufferSize int
	closed     bool
}

// NewEventBus creates a bus whose subscriptions buffer up to bufferSize
// events each.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &EventBus{
		subs:       make(map[uint64]*Subscription),
		bufferSize: bufferSize,
	}
}

// Subscribe creates a subscription for the given event types. With no types
// the subscription receives every event.
func (eb *EventBus) Subscribe(eventTypes ...types.EventType) *Subscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		sub := &Subscription{
			ch:    make(chan Event),
			types: make(map[types.EventType]struct{}),
		}
		sub.closed.Store(true)
		close(sub.ch)
		return sub
	}

	eb.nextID++
	typeSet := make(map[types.EventType]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		typeSet[t] = struct{}{}
	}

	sub := &Subscription{
		id:    eb.nextID,
		all:   len(eventTypes) == 0,
		types: typeSet,
		ch:    make(chan Event, eb.bufferSize),
		bus:   eb,
	}
	eb.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the given subscription from the bus and closes its
// channel. Safe to call multiple times or with nil.
func (eb *EventBus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	if !sub.closed.CompareAndSwap(false, true) {
		return
	}

	eb.mu.Lock()
	delete(eb.subs, sub.id)
	eb.mu.Unlock()

	close(sub.ch)
}

// Emit publishes an event to all matching subscribers without blocking. It
// satisfies the Emitter interfaces of the game engine and the ledger, which
// must never stall on a slow consumer.
func (eb *EventBus) Emit(t types.EventType, data any) {
	event := Event{
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}
	for _, sub := range eb.subs {
		if sub.closed.Load() || !sub.matches(t) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber is behind; drop rather than block the engine.
		}
	}
}

// SubscriberCount returns the number of subscriptions matching eventType.
func (eb *EventBus) SubscriberCount(t types.EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	count := 0
	for _, sub := range eb.subs {
		if !sub.closed.Load() && sub.matches(t) {
			count++
		}
	}
	return count
}

// Close shuts the bus down, closing every subscription channel. Events
// emitted after Close are discarded.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.closed = true
	for id, sub := range eb.subs {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
		delete(eb.subs, id)
	}
}

package node

import (
	"testing"
	"time"

	"github.com/cipherword/cipherword/core/types"
)

func TestSubscribeAndEmit(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	sub := bus.Subscribe(types.EventRoomCreated)
	defer sub.Unsubscribe()

	bus.Emit(types.EventRoomCreated, types.RoomCreatedEvent{RoomID: 1})

	select {
	case ev := <-sub.Chan():
		if ev.Type != types.EventRoomCreated {
			t.Fatalf("event type: want %s, got %s", types.EventRoomCreated, ev.Type)
		}
		data, ok := ev.Data.(types.RoomCreatedEvent)
		if !ok || data.RoomID != 1 {
			t.Fatalf("event data: want RoomCreatedEvent{RoomID: 1}, got %#v", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestTypeFiltering(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	sub := bus.Subscribe(types.EventGameStarted)
	defer sub.Unsubscribe()

	bus.Emit(types.EventRoomCreated, nil)
	bus.Emit(types.EventGameStarted, nil)

	ev := <-sub.Chan()
	if ev.Type != types.EventGameStarted {
		t.Fatalf("filtered subscription got %s", ev.Type)
	}
	select {
	case ev := <-sub.Chan():
		t.Fatalf("unexpected second event: %s", ev.Type)
	default:
	}
}

func TestWildcardSubscription(t *testing.T) {
	bus := NewEventBus(8)
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	bus.Emit(types.EventRoomCreated, nil)
	bus.Emit(types.EventGuessResolved, nil)

	first := <-sub.Chan()
	second := <-sub.Chan()
	if first.Type != types.EventRoomCreated || second.Type != types.EventGuessResolved {
		t.Fatalf("wildcard order: got %s then %s", first.Type, second.Type)
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	// Nobody drains; the second emit must drop, not block.
	done := make(chan struct{})
	go func() {
		bus.Emit(types.EventRoomCreated, nil)
		bus.Emit(types.EventRoomCreated, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewEventBus(8)
	sub := bus.Subscribe()

	sub.Unsubscribe()
	if _, ok := <-sub.Chan(); ok {
		t.Fatal("channel must be closed after Unsubscribe")
	}
	// Idempotent.
	sub.Unsubscribe()

	if got := bus.SubscriberCount(types.EventRoomCreated); got != 0 {
		t.Fatalf("SubscriberCount: want 0, got %d", got)
	}
}

func TestCloseBus(t *testing.T) {
	bus := NewEventBus(8)
	sub := bus.Subscribe()

	bus.Close()
	if _, ok := <-sub.Chan(); ok {
		t.Fatal("subscription channels must close with the bus")
	}
	// Emission and late subscription after Close are inert.
	bus.Emit(types.EventRoomCreated, nil)
	late := bus.Subscribe()
	if _, ok := <-late.Chan(); ok {
		t.Fatal("late subscription must be closed")
	}
}

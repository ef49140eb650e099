package taps

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRingFindAndEviction(t *testing.T) {
	ring := NewRing(2)
	id := uuid.New()
	ring.Emit(Event{Cmd: "ping-event", NodeID: id, Ts: time.Now()})
	ring.Emit(Event{Cmd: "ack-event-bad-tx-error", NodeID: id, Ts: time.Now()})
	ring.Emit(Event{Cmd: "ack-event", NodeID: id, Ts: time.Now()})

	all := ring.All()
	if len(all) != 2 {
		t.Fatalf("expected ring capped at 2, got %d", len(all))
	}
	if len(ring.Find("ping-event")) != 0 {
		t.Fatal("expected oldest entry to have been evicted")
	}
	if len(ring.Find("ack-event")) != 1 {
		t.Fatal("expected ack-event to survive eviction")
	}
}

func TestIsError(t *testing.T) {
	if !(Event{Cmd: "join-event-bad-restart-counter-error"}).IsError() {
		t.Fatal("expected -error suffix to be detected")
	}
	if (Event{Cmd: "join-event"}).IsError() {
		t.Fatal("plain event should not be flagged as error")
	}
}

func TestMultiFanOut(t *testing.T) {
	a, b := NewRing(10), NewRing(10)
	m := Multi{a, b}
	m.Emit(Event{Cmd: "probe-event"})

	if len(a.All()) != 1 || len(b.All()) != 1 {
		t.Fatal("expected both sinks to receive the tap")
	}
}

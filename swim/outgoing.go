package swim

import "github.com/redstarssystems/swim-sub000/wire"

// Outgoing is the Node's FIFO piggyback buffer: alive,
// suspect, and dead events accumulate here between ping rounds and are
// drained onto whatever datagram goes out next. Owned exclusively by the
// node actor goroutine — no locking.
type Outgoing struct {
	events []wire.Event
}

// NewOutgoing creates an empty buffer.
func NewOutgoing() *Outgoing {
	return &Outgoing{events: make([]wire.Event, 0, 16)}
}

// Put appends one event.
func (o *Outgoing) Put(e wire.Event) {
	o.events = append(o.events, e)
}

// Take removes and returns the first n events (or all of them if fewer
// than n are buffered).
func (o *Outgoing) Take(n int) []wire.Event {
	if n <= 0 {
		return nil
	}
	if n > len(o.events) {
		n = len(o.events)
	}
	out := o.events[:n]
	o.events = o.events[n:]
	return out
}

// TakeAll removes and returns every buffered event.
func (o *Outgoing) TakeAll() []wire.Event {
	return o.Take(len(o.events))
}

// Set replaces the buffer wholesale, used to restore or seed it.
func (o *Outgoing) Set(events []wire.Event) {
	o.events = append(o.events[:0], events...)
}

// Len reports how many events are buffered.
func (o *Outgoing) Len() int { return len(o.events) }

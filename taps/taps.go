// Package taps implements structured observability taps: the core only
// emits tuples, and an external sink renders or forwards them, replacing
// any language-specific logging call in the hot path.
package taps

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one structured tap: a symbolic command, the emitting node,
// a timestamp, and a free-form payload (the decoded wire event, or a
// small context map for validation taps).
type Event struct {
	Cmd    string
	NodeID uuid.UUID
	Ts     time.Time
	Data   any
}

// IsError reports whether this tap's command ends in "-error", the
// naming convention every error-path tap in this package follows.
func (e Event) IsError() bool {
	return strings.HasSuffix(e.Cmd, "-error")
}

// Sink receives taps. Implementations must not block the caller for long;
// the node actor emits taps synchronously on its own goroutine.
type Sink interface {
	Emit(Event)
}

// Ring is a fixed-size in-memory sink, used by tests to assert on the
// taps a scenario produced.
type Ring struct {
	mu   sync.Mutex
	buf  []Event
	size int
}

// NewRing creates a ring sink holding up to size taps (oldest dropped).
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1024
	}
	return &Ring{size: size}
}

// Emit appends a tap, evicting the oldest entry if the ring is full.
func (r *Ring) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, e)
	if len(r.buf) > r.size {
		r.buf = r.buf[len(r.buf)-r.size:]
	}
}

// All returns a snapshot of every tap currently held.
func (r *Ring) All() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.buf))
	copy(out, r.buf)
	return out
}

// Find returns every tap matching cmd.
func (r *Ring) Find(cmd string) []Event {
	var out []Event
	for _, e := range r.All() {
		if e.Cmd == cmd {
			out = append(out, e)
		}
	}
	return out
}

// Multi fans a tap out to several sinks, e.g. a Ring plus a Prometheus sink.
type Multi []Sink

// Emit fans out to every underlying sink.
func (m Multi) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Discard drops every tap; useful as a default when no sink is configured.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

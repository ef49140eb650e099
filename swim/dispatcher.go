package swim

import (
	"time"

	"github.com/google/uuid"

	"github.com/redstarssystems/swim-sub000/secure"
	"github.com/redstarssystems/swim-sub000/taps"
	"github.com/redstarssystems/swim-sub000/wire"
)

// Handler receives one decoded event per call. Node implements every
// method; the per-event protocol logic lives in handlers.go.
type Handler interface {
	HandlePing(wire.Ping)
	HandleAck(wire.Ack)
	HandleJoin(wire.Join)
	HandleAlive(wire.Alive)
	HandleSuspect(wire.Suspect)
	HandleLeft(wire.Left)
	HandleDead(wire.Dead)
	HandlePayload(wire.Payload)
	HandleAntiEntropy(wire.AntiEntropy)
	HandleProbe(wire.Probe)
	HandleProbeAck(wire.ProbeAck)
	HandleNewClusterSize(wire.NewClusterSize)
	HandleIndirectPing(wire.IndirectPing)
	HandleIndirectAck(wire.IndirectAck)
}

// Dispatcher is the inbound path: decrypt, deserialize, route each
// decoded event to its handler, tapping every step along the way.
type Dispatcher struct {
	codec  *secure.Codec
	sink   taps.Sink
	selfID uuid.UUID
}

// NewDispatcher builds a Dispatcher for one node's codec and tap sink.
func NewDispatcher(codec *secure.Codec, sink taps.Sink, selfID uuid.UUID) *Dispatcher {
	if sink == nil {
		sink = taps.Discard
	}
	return &Dispatcher{codec: codec, sink: sink, selfID: selfID}
}

func (d *Dispatcher) tap(cmd string, data any) {
	d.sink.Emit(taps.Event{Cmd: cmd, NodeID: d.selfID, Ts: time.Now(), Data: data})
}

// Dispatch decrypts raw, decodes the event vector, and routes each event
// to h. A GCM tag mismatch or malformed outer shape drops the whole
// datagram silently (after tapping); an individual malformed event tuple
// is already dropped inside wire.RestoreVector.
func (d *Dispatcher) Dispatch(raw []byte, h Handler) {
	plaintext, err := d.codec.Open(raw)
	if err != nil {
		d.tap("decrypt-error", nil)
		return
	}

	events, err := wire.RestoreVector(plaintext)
	if err != nil {
		d.tap("malformed-datagram-error", nil)
		return
	}

	for _, e := range events {
		d.route(e, h)
	}
}

func (d *Dispatcher) route(e wire.Event, h Handler) {
	switch v := e.(type) {
	case wire.Ping:
		d.tap("ping-event", v)
		h.HandlePing(v)
	case wire.Ack:
		d.tap("ack-event", v)
		h.HandleAck(v)
	case wire.Join:
		d.tap("join-event", v)
		h.HandleJoin(v)
	case wire.Alive:
		d.tap("alive-event", v)
		h.HandleAlive(v)
	case wire.Suspect:
		d.tap("suspect-event", v)
		h.HandleSuspect(v)
	case wire.Left:
		d.tap("left-event", v)
		h.HandleLeft(v)
	case wire.Dead:
		d.tap("dead-event", v)
		h.HandleDead(v)
	case wire.Payload:
		d.tap("payload-event", v)
		h.HandlePayload(v)
	case wire.AntiEntropy:
		d.tap("anti-entropy-event", v)
		h.HandleAntiEntropy(v)
	case wire.Probe:
		d.tap("probe-event", v)
		h.HandleProbe(v)
	case wire.ProbeAck:
		d.tap("probe-ack-event", v)
		h.HandleProbeAck(v)
	case wire.NewClusterSize:
		d.tap("new-cluster-size-event", v)
		h.HandleNewClusterSize(v)
	case wire.IndirectPing:
		d.tap("indirect-ping-event", v)
		h.HandleIndirectPing(v)
	case wire.IndirectAck:
		d.tap("indirect-ack-event", v)
		h.HandleIndirectAck(v)
	}
}

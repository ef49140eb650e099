package swim

import (
	"github.com/google/uuid"

	"github.com/redstarssystems/swim-sub000/secure"
	"github.com/redstarssystems/swim-sub000/transport"
	"github.com/redstarssystems/swim-sub000/wire"
)

// Destination names where a datagram goes: either a resolved host/port or
// a neighbour id the composer must look up
type Destination struct {
	Host string
	Port uint16

	ByID bool
	ID   uuid.UUID
}

// ToHostPort builds a direct destination.
func ToHostPort(host string, port uint16) Destination {
	return Destination{Host: host, Port: port}
}

// ToNeighbour builds a destination resolved from the neighbour table at
// send time.
func ToNeighbour(id uuid.UUID) Destination {
	return Destination{ByID: true, ID: id}
}

// Composer serializes, encrypts, and hands datagrams to a Transport,
// enforcing the max-UDP-size ceiling.
type Composer struct {
	codec      *secure.Codec
	transport  transport.Transport
	table      *Table
	maxUDPSize int
}

// NewComposer builds a Composer bound to one cluster's codec and one
// node's neighbour table.
func NewComposer(codec *secure.Codec, tr transport.Transport, table *Table, maxUDPSize int) *Composer {
	return &Composer{codec: codec, transport: tr, table: table, maxUDPSize: maxUDPSize}
}

// resolve turns a Destination into a concrete host/port, failing with
// ErrUnknownNeighbourID if the id isn't known.
func (c *Composer) resolve(dest Destination) (string, uint16, error) {
	if !dest.ByID {
		return dest.Host, dest.Port, nil
	}
	n, ok := c.table.Get(dest.ID)
	if !ok {
		return "", 0, ErrUnknownNeighbourID
	}
	return n.Host, n.Port, nil
}

// SendEvents serializes events into one vector, encrypts it, and sends
// it to dest. Returns the number of ciphertext bytes sent. Refuses to
// send (ErrUDPPacketTooBig) if the result would exceed maxUDPSize,
// unless override is true.
func (c *Composer) SendEvents(dest Destination, events []wire.Event, override bool) (int, error) {
	host, port, err := c.resolve(dest)
	if err != nil {
		return 0, err
	}

	plaintext := wire.PrepareVector(events)
	ciphertext, err := c.codec.Seal(plaintext)
	if err != nil {
		return 0, err
	}
	if !override && len(ciphertext) > c.maxUDPSize {
		return 0, ErrUDPPacketTooBig
	}
	if err := c.transport.Send(host, port, ciphertext); err != nil {
		return 0, err
	}
	return len(ciphertext), nil
}

// SendEvent is the one-event convenience wrapper: no anti-entropy
// attached
func (c *Composer) SendEvent(dest Destination, e wire.Event) (int, error) {
	return c.SendEvents(dest, []wire.Event{e}, false)
}

// SendEventAE sends one event plus a freshly built anti-entropy digest.
func (c *Composer) SendEventAE(s identity, dest Destination, e wire.Event, maxAntiEntropyItems int) (int, error) {
	ae := BuildAntiEntropy(s, maxAntiEntropyItems, nil)
	return c.SendEvents(dest, []wire.Event{e, ae}, false)
}

package wire

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// CmdType identifies an event variant on the wire. The numbering matches
// the protocol's wire contract exactly; do not renumber.
type CmdType uint8

const (
	CmdPing           CmdType = 0
	CmdAck            CmdType = 1
	CmdJoin           CmdType = 2
	CmdAlive          CmdType = 3
	CmdSuspect        CmdType = 4
	CmdLeft           CmdType = 5
	CmdDead           CmdType = 6
	CmdPayload        CmdType = 7
	CmdAntiEntropy    CmdType = 8
	CmdProbe          CmdType = 9
	CmdProbeAck       CmdType = 10
	CmdNewClusterSize CmdType = 11
	CmdIndirectPing   CmdType = 14
	CmdIndirectAck    CmdType = 15
)

func (c CmdType) String() string {
	switch c {
	case CmdPing:
		return "ping"
	case CmdAck:
		return "ack"
	case CmdJoin:
		return "join"
	case CmdAlive:
		return "alive"
	case CmdSuspect:
		return "suspect"
	case CmdLeft:
		return "left"
	case CmdDead:
		return "dead"
	case CmdPayload:
		return "payload"
	case CmdAntiEntropy:
		return "anti-entropy"
	case CmdProbe:
		return "probe"
	case CmdProbeAck:
		return "probe-ack"
	case CmdNewClusterSize:
		return "new-cluster-size"
	case CmdIndirectPing:
		return "indirect-ping"
	case CmdIndirectAck:
		return "indirect-ack"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ErrMalformedEvent is the typed "malformed-event" error: raised when a
// decoded sequence has the wrong length or a leading tag that isn't one
// of the known cmd-types.
type ErrMalformedEvent struct {
	Reason string
}

func (e *ErrMalformedEvent) Error() string { return "wire: malformed-event: " + e.Reason }

// Common carries the fields present on every event: the sender's identity
// and the incarnation it was stamped with.
type Common struct {
	ID             uuid.UUID
	RestartCounter uint64
	Tx             uint64
}

// Event is the sum type of the fourteen wire variants, discriminated by
// CmdType. Handlers type-switch on the concrete type.
type Event interface {
	CmdType() CmdType
	common() Common
}

func (c Common) common() Common { return c }

type Ping struct {
	Common
	Host          string
	Port          uint16
	NeighbourID   uuid.UUID
	AttemptNumber uint32
}

func (Ping) CmdType() CmdType { return CmdPing }

type Ack struct {
	Common
	NeighbourID uuid.UUID
	NeighbourTx uint64
}

func (Ack) CmdType() CmdType { return CmdAck }

type Join struct {
	Common
	Host string
	Port uint16
}

func (Join) CmdType() CmdType { return CmdJoin }

type Alive struct {
	Common
	NeighbourID             uuid.UUID
	NeighbourRestartCounter uint64
	NeighbourTx             uint64
}

func (Alive) CmdType() CmdType { return CmdAlive }

type Suspect struct {
	Common
	NeighbourID             uuid.UUID
	NeighbourRestartCounter uint64
	NeighbourTx             uint64
}

func (Suspect) CmdType() CmdType { return CmdSuspect }

type Left struct {
	Common
}

func (Left) CmdType() CmdType { return CmdLeft }

type Dead struct {
	Common
	NeighbourID             uuid.UUID
	NeighbourRestartCounter uint64
	NeighbourTx             uint64
}

func (Dead) CmdType() CmdType { return CmdDead }

type Payload struct {
	Common
	Data map[string]string
}

func (Payload) CmdType() CmdType { return CmdPayload }

// NeighbourDigest is one tuple of an AntiEntropy vector, positionally
// [id, host, port, status-code, access-code, restart-counter, tx, payload].
type NeighbourDigest struct {
	ID             uuid.UUID
	Host           string
	Port           uint16
	StatusCode     uint8
	AccessCode     uint8
	RestartCounter uint64
	Tx             uint64
	Payload        map[string]string
}

type AntiEntropy struct {
	Common
	Data []NeighbourDigest
}

func (AntiEntropy) CmdType() CmdType { return CmdAntiEntropy }

type Probe struct {
	Common
	Host            string
	Port            uint16
	NeighbourHost   string
	NeighbourPort   uint16
	ProbeKey        uuid.UUID
}

func (Probe) CmdType() CmdType { return CmdProbe }

type ProbeAck struct {
	Common
	Host        string
	Port        uint16
	Status      uint8
	NeighbourID uuid.UUID
	NeighbourTx uint64
	ProbeKey    uuid.UUID
}

func (ProbeAck) CmdType() CmdType { return CmdProbeAck }

type NewClusterSize struct {
	Common
	OldClusterSize uint32
	NewClusterSize uint32
}

func (NewClusterSize) CmdType() CmdType { return CmdNewClusterSize }

type IndirectPing struct {
	Common
	Host              string
	Port              uint16
	IntermediateID    uuid.UUID
	IntermediateHost  string
	IntermediatePort  uint16
	NeighbourID       uuid.UUID
	NeighbourHost     string
	NeighbourPort     uint16
	AttemptNumber     uint32
}

func (IndirectPing) CmdType() CmdType { return CmdIndirectPing }

type IndirectAck struct {
	Common
	Host              string
	Port              uint16
	IntermediateID    uuid.UUID
	IntermediateHost  string
	IntermediatePort  uint16
	NeighbourID       uuid.UUID
	NeighbourHost     string
	NeighbourPort     uint16
	Status            uint8
}

func (IndirectAck) CmdType() CmdType { return CmdIndirectAck }

// sortedKeys returns a stable key ordering for a payload map so
// encoding is deterministic; order doesn't matter for correctness, only
// for reproducible test fixtures.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion sort is fine: payloads are bounded small maps
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func putCommon(buf *bytes.Buffer, c Common, cmd CmdType) {
	PutInt(buf, int64(cmd))
	PutUUID(buf, c.ID)
	PutInt(buf, int64(c.RestartCounter))
	PutInt(buf, int64(c.Tx))
}

func putDigest(buf *bytes.Buffer, d NeighbourDigest) {
	w := NewArray(buf)
	PutUUID(w.Elem(), d.ID)
	PutString(w.Elem(), d.Host)
	PutInt(w.Elem(), int64(d.Port))
	PutInt(w.Elem(), int64(d.StatusCode))
	PutInt(w.Elem(), int64(d.AccessCode))
	PutInt(w.Elem(), int64(d.RestartCounter))
	PutInt(w.Elem(), int64(d.Tx))
	PutStringMap(w.Elem(), d.Payload, sortedKeys(d.Payload))
	w.Close()
}

func getDigest(r *Reader) (NeighbourDigest, error) {
	n, err := r.ArrayLen()
	if err != nil {
		return NeighbourDigest{}, err
	}
	if n != 8 {
		return NeighbourDigest{}, &ErrMalformedEvent{Reason: "anti-entropy tuple has wrong arity"}
	}
	var d NeighbourDigest
	if d.ID, err = r.UUID(); err != nil {
		return d, err
	}
	if d.Host, err = r.String(); err != nil {
		return d, err
	}
	port, err := r.Int()
	if err != nil {
		return d, err
	}
	d.Port = uint16(port)
	status, err := r.Int()
	if err != nil {
		return d, err
	}
	d.StatusCode = uint8(status)
	access, err := r.Int()
	if err != nil {
		return d, err
	}
	d.AccessCode = uint8(access)
	rc, err := r.Int()
	if err != nil {
		return d, err
	}
	d.RestartCounter = uint64(rc)
	tx, err := r.Int()
	if err != nil {
		return d, err
	}
	d.Tx = uint64(tx)
	if d.Payload, err = r.StringMap(); err != nil {
		return d, err
	}
	return d, nil
}

// Prepare serializes one event to its wire-positional array form, first
// element the cmd-type tag.
func Prepare(e Event) []byte {
	var buf bytes.Buffer
	w := NewArray(&buf)
	// Every field is appended to the one body buffer, so each case sets
	// the array's element count to that variant's field count.
	b := w.Elem()

	switch v := e.(type) {
	case Ping:
		w.n = 8
		putCommon(b, v.Common, CmdPing)
		PutString(b, v.Host)
		PutInt(b, int64(v.Port))
		PutUUID(b, v.NeighbourID)
		PutInt(b, int64(v.AttemptNumber))
	case Ack:
		w.n = 6
		putCommon(b, v.Common, CmdAck)
		PutUUID(b, v.NeighbourID)
		PutInt(b, int64(v.NeighbourTx))
	case Join:
		w.n = 6
		putCommon(b, v.Common, CmdJoin)
		PutString(b, v.Host)
		PutInt(b, int64(v.Port))
	case Alive:
		w.n = 7
		putCommon(b, v.Common, CmdAlive)
		PutUUID(b, v.NeighbourID)
		PutInt(b, int64(v.NeighbourRestartCounter))
		PutInt(b, int64(v.NeighbourTx))
	case Suspect:
		w.n = 7
		putCommon(b, v.Common, CmdSuspect)
		PutUUID(b, v.NeighbourID)
		PutInt(b, int64(v.NeighbourRestartCounter))
		PutInt(b, int64(v.NeighbourTx))
	case Left:
		w.n = 4
		putCommon(b, v.Common, CmdLeft)
	case Dead:
		w.n = 7
		putCommon(b, v.Common, CmdDead)
		PutUUID(b, v.NeighbourID)
		PutInt(b, int64(v.NeighbourRestartCounter))
		PutInt(b, int64(v.NeighbourTx))
	case Payload:
		w.n = 5
		putCommon(b, v.Common, CmdPayload)
		PutStringMap(b, v.Data, sortedKeys(v.Data))
	case AntiEntropy:
		w.n = 5
		putCommon(b, v.Common, CmdAntiEntropy)
		aw := NewArray(b)
		for _, d := range v.Data {
			putDigest(aw.Elem(), d)
		}
		aw.Close()
	case Probe:
		w.n = 9
		putCommon(b, v.Common, CmdProbe)
		PutString(b, v.Host)
		PutInt(b, int64(v.Port))
		PutString(b, v.NeighbourHost)
		PutInt(b, int64(v.NeighbourPort))
		PutUUID(b, v.ProbeKey)
	case ProbeAck:
		w.n = 10
		putCommon(b, v.Common, CmdProbeAck)
		PutString(b, v.Host)
		PutInt(b, int64(v.Port))
		PutInt(b, int64(v.Status))
		PutUUID(b, v.NeighbourID)
		PutInt(b, int64(v.NeighbourTx))
		PutUUID(b, v.ProbeKey)
	case NewClusterSize:
		w.n = 6
		putCommon(b, v.Common, CmdNewClusterSize)
		PutInt(b, int64(v.OldClusterSize))
		PutInt(b, int64(v.NewClusterSize))
	case IndirectPing:
		w.n = 13
		putCommon(b, v.Common, CmdIndirectPing)
		PutString(b, v.Host)
		PutInt(b, int64(v.Port))
		PutUUID(b, v.IntermediateID)
		PutString(b, v.IntermediateHost)
		PutInt(b, int64(v.IntermediatePort))
		PutUUID(b, v.NeighbourID)
		PutString(b, v.NeighbourHost)
		PutInt(b, int64(v.NeighbourPort))
		PutInt(b, int64(v.AttemptNumber))
	case IndirectAck:
		w.n = 13
		putCommon(b, v.Common, CmdIndirectAck)
		PutString(b, v.Host)
		PutInt(b, int64(v.Port))
		PutUUID(b, v.IntermediateID)
		PutString(b, v.IntermediateHost)
		PutInt(b, int64(v.IntermediatePort))
		PutUUID(b, v.NeighbourID)
		PutString(b, v.NeighbourHost)
		PutInt(b, int64(v.NeighbourPort))
		PutInt(b, int64(v.Status))
	}

	w.Close()
	return buf.Bytes()
}

// Restore reads one prepared event back. It rejects sequences of the wrong
// length or an unknown leading tag with ErrMalformedEvent.
func Restore(b []byte) (Event, error) {
	r := NewReader(b)
	n, err := r.ArrayLen()
	if err != nil {
		return nil, &ErrMalformedEvent{Reason: "not an array"}
	}
	if n < 4 {
		return nil, &ErrMalformedEvent{Reason: "too few fields for common header"}
	}

	cmdVal, err := r.Int()
	if err != nil {
		return nil, &ErrMalformedEvent{Reason: "missing cmd-type"}
	}
	cmd := CmdType(cmdVal)

	var c Common
	if c.ID, err = r.UUID(); err != nil {
		return nil, &ErrMalformedEvent{Reason: "missing sender id"}
	}
	rc, err := r.Int()
	if err != nil {
		return nil, &ErrMalformedEvent{Reason: "missing restart-counter"}
	}
	c.RestartCounter = uint64(rc)
	tx, err := r.Int()
	if err != nil {
		return nil, &ErrMalformedEvent{Reason: "missing tx"}
	}
	c.Tx = uint64(tx)

	switch cmd {
	case CmdPing:
		if n != 8 {
			return nil, arity(cmd, n)
		}
		host, err := r.String()
		if err != nil {
			return nil, err
		}
		port, err := r.Int()
		if err != nil {
			return nil, err
		}
		nb, err := r.UUID()
		if err != nil {
			return nil, err
		}
		attempt, err := r.Int()
		if err != nil {
			return nil, err
		}
		return Ping{Common: c, Host: host, Port: uint16(port), NeighbourID: nb, AttemptNumber: uint32(attempt)}, nil

	case CmdAck:
		if n != 6 {
			return nil, arity(cmd, n)
		}
		nb, err := r.UUID()
		if err != nil {
			return nil, err
		}
		nbTx, err := r.Int()
		if err != nil {
			return nil, err
		}
		return Ack{Common: c, NeighbourID: nb, NeighbourTx: uint64(nbTx)}, nil

	case CmdJoin:
		if n != 6 {
			return nil, arity(cmd, n)
		}
		host, err := r.String()
		if err != nil {
			return nil, err
		}
		port, err := r.Int()
		if err != nil {
			return nil, err
		}
		return Join{Common: c, Host: host, Port: uint16(port)}, nil

	case CmdAlive, CmdSuspect, CmdDead:
		if n != 7 {
			return nil, arity(cmd, n)
		}
		nb, err := r.UUID()
		if err != nil {
			return nil, err
		}
		nbRc, err := r.Int()
		if err != nil {
			return nil, err
		}
		nbTx, err := r.Int()
		if err != nil {
			return nil, err
		}
		switch cmd {
		case CmdAlive:
			return Alive{Common: c, NeighbourID: nb, NeighbourRestartCounter: uint64(nbRc), NeighbourTx: uint64(nbTx)}, nil
		case CmdSuspect:
			return Suspect{Common: c, NeighbourID: nb, NeighbourRestartCounter: uint64(nbRc), NeighbourTx: uint64(nbTx)}, nil
		default:
			return Dead{Common: c, NeighbourID: nb, NeighbourRestartCounter: uint64(nbRc), NeighbourTx: uint64(nbTx)}, nil
		}

	case CmdLeft:
		if n != 4 {
			return nil, arity(cmd, n)
		}
		return Left{Common: c}, nil

	case CmdPayload:
		if n != 5 {
			return nil, arity(cmd, n)
		}
		data, err := r.StringMap()
		if err != nil {
			return nil, err
		}
		return Payload{Common: c, Data: data}, nil

	case CmdAntiEntropy:
		if n != 5 {
			return nil, arity(cmd, n)
		}
		count, err := r.ArrayLen()
		if err != nil {
			return nil, err
		}
		digests := make([]NeighbourDigest, 0, count)
		for i := uint64(0); i < count; i++ {
			d, err := getDigest(r)
			if err != nil {
				return nil, err
			}
			digests = append(digests, d)
		}
		return AntiEntropy{Common: c, Data: digests}, nil

	case CmdProbe:
		if n != 9 {
			return nil, arity(cmd, n)
		}
		host, err := r.String()
		if err != nil {
			return nil, err
		}
		port, err := r.Int()
		if err != nil {
			return nil, err
		}
		nbHost, err := r.String()
		if err != nil {
			return nil, err
		}
		nbPort, err := r.Int()
		if err != nil {
			return nil, err
		}
		key, err := r.UUID()
		if err != nil {
			return nil, err
		}
		return Probe{Common: c, Host: host, Port: uint16(port), NeighbourHost: nbHost, NeighbourPort: uint16(nbPort), ProbeKey: key}, nil

	case CmdProbeAck:
		if n != 10 {
			return nil, arity(cmd, n)
		}
		host, err := r.String()
		if err != nil {
			return nil, err
		}
		port, err := r.Int()
		if err != nil {
			return nil, err
		}
		status, err := r.Int()
		if err != nil {
			return nil, err
		}
		nb, err := r.UUID()
		if err != nil {
			return nil, err
		}
		nbTx, err := r.Int()
		if err != nil {
			return nil, err
		}
		key, err := r.UUID()
		if err != nil {
			return nil, err
		}
		return ProbeAck{Common: c, Host: host, Port: uint16(port), Status: uint8(status), NeighbourID: nb, NeighbourTx: uint64(nbTx), ProbeKey: key}, nil

	case CmdNewClusterSize:
		if n != 6 {
			return nil, arity(cmd, n)
		}
		oldSize, err := r.Int()
		if err != nil {
			return nil, err
		}
		newSize, err := r.Int()
		if err != nil {
			return nil, err
		}
		return NewClusterSize{Common: c, OldClusterSize: uint32(oldSize), NewClusterSize: uint32(newSize)}, nil

	case CmdIndirectPing:
		if n != 13 {
			return nil, arity(cmd, n)
		}
		host, _ := r.String()
		port, _ := r.Int()
		interID, _ := r.UUID()
		interHost, _ := r.String()
		interPort, _ := r.Int()
		nbID, _ := r.UUID()
		nbHost, _ := r.String()
		nbPort, err := r.Int()
		if err != nil {
			return nil, err
		}
		attempt, err := r.Int()
		if err != nil {
			return nil, err
		}
		return IndirectPing{
			Common: c, Host: host, Port: uint16(port),
			IntermediateID: interID, IntermediateHost: interHost, IntermediatePort: uint16(interPort),
			NeighbourID: nbID, NeighbourHost: nbHost, NeighbourPort: uint16(nbPort),
			AttemptNumber: uint32(attempt),
		}, nil

	case CmdIndirectAck:
		if n != 13 {
			return nil, arity(cmd, n)
		}
		host, _ := r.String()
		port, _ := r.Int()
		interID, _ := r.UUID()
		interHost, _ := r.String()
		interPort, _ := r.Int()
		nbID, _ := r.UUID()
		nbHost, _ := r.String()
		nbPort, err := r.Int()
		if err != nil {
			return nil, err
		}
		status, err := r.Int()
		if err != nil {
			return nil, err
		}
		return IndirectAck{
			Common: c, Host: host, Port: uint16(port),
			IntermediateID: interID, IntermediateHost: interHost, IntermediatePort: uint16(interPort),
			NeighbourID: nbID, NeighbourHost: nbHost, NeighbourPort: uint16(nbPort),
			Status: uint8(status),
		}, nil

	default:
		return nil, &ErrMalformedEvent{Reason: fmt.Sprintf("unknown cmd-type %d", cmdVal)}
	}
}

func arity(cmd CmdType, got uint64) error {
	return &ErrMalformedEvent{Reason: fmt.Sprintf("%s: wrong field count %d", cmd, got)}
}

// PrepareVector serializes an ordered sequence of events as a single
// top-level array, the shape every datagram carries.
func PrepareVector(events []Event) []byte {
	var buf bytes.Buffer
	w := NewArray(&buf)
	for _, e := range events {
		PutBytes(w.Elem(), Prepare(e))
	}
	w.Close()
	return buf.Bytes()
}

// RestoreVector decodes a datagram body back into its ordered events. A
// single malformed element drops only that element instead of failing
// the whole datagram, except when the outer shape itself isn't an array.
func RestoreVector(b []byte) ([]Event, error) {
	r := NewReader(b)
	n, err := r.ArrayLen()
	if err != nil {
		return nil, &ErrMalformedEvent{Reason: "datagram root is not an array"}
	}
	events := make([]Event, 0, n)
	for i := uint64(0); i < n; i++ {
		raw, err := r.Bytes()
		if err != nil {
			return nil, &ErrMalformedEvent{Reason: "datagram element is not a byte blob"}
		}
		e, err := Restore(raw)
		if err != nil {
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

package swim

import (
	"github.com/google/uuid"

	"github.com/redstarssystems/swim-sub000/wire"
)

// identity is the slice of Node a builder needs: self identity, the tx
// generator, and the neighbour table (for indirect-builder validation).
// Node implements this; tests may supply a fake.
type identity interface {
	SelfID() uuid.UUID
	RestartCounter() uint64
	NextTx() uint64
	Neighbours() *Table
}

func common(s identity) wire.Common {
	return wire.Common{ID: s.SelfID(), RestartCounter: s.RestartCounter(), Tx: s.NextTx()}
}

// BuildPing constructs a Ping addressed at neighbourID
func BuildPing(s identity, host string, port uint16, neighbourID uuid.UUID, attempt uint32) (wire.Ping, error) {
	if host == "" || neighbourID == uuid.Nil {
		return wire.Ping{}, ErrInvalidPing
	}
	return wire.Ping{Common: common(s), Host: host, Port: port, NeighbourID: neighbourID, AttemptNumber: attempt}, nil
}

// BuildAck constructs an Ack echoing the ping's sender and tx.
func BuildAck(s identity, neighbourID uuid.UUID, neighbourTx uint64) (wire.Ack, error) {
	if neighbourID == uuid.Nil {
		return wire.Ack{}, ErrInvalidAck
	}
	return wire.Ack{Common: common(s), NeighbourID: neighbourID, NeighbourTx: neighbourTx}, nil
}

// BuildJoin constructs a Join event announcing host/port.
func BuildJoin(s identity, host string, port uint16) (wire.Join, error) {
	if host == "" {
		return wire.Join{}, validationErr("invalid-join-event", "host is empty")
	}
	return wire.Join{Common: common(s), Host: host, Port: port}, nil
}

// BuildAlive constructs an Alive notification about a neighbour subject.
func BuildAlive(s identity, neighbourID uuid.UUID, neighbourRC, neighbourTx uint64) (wire.Alive, error) {
	if neighbourID == uuid.Nil {
		return wire.Alive{}, ErrInvalidAliveEvent
	}
	return wire.Alive{Common: common(s), NeighbourID: neighbourID, NeighbourRestartCounter: neighbourRC, NeighbourTx: neighbourTx}, nil
}

// BuildSuspect constructs a Suspect notification about a neighbour subject.
func BuildSuspect(s identity, neighbourID uuid.UUID, neighbourRC, neighbourTx uint64) (wire.Suspect, error) {
	if neighbourID == uuid.Nil {
		return wire.Suspect{}, ErrInvalidSuspectEvent
	}
	return wire.Suspect{Common: common(s), NeighbourID: neighbourID, NeighbourRestartCounter: neighbourRC, NeighbourTx: neighbourTx}, nil
}

// BuildDead constructs a Dead notification about a neighbour subject.
func BuildDead(s identity, neighbourID uuid.UUID, neighbourRC, neighbourTx uint64) (wire.Dead, error) {
	if neighbourID == uuid.Nil {
		return wire.Dead{}, ErrInvalidDeadEvent
	}
	return wire.Dead{Common: common(s), NeighbourID: neighbourID, NeighbourRestartCounter: neighbourRC, NeighbourTx: neighbourTx}, nil
}

// BuildLeft constructs a Left event about self.
func BuildLeft(s identity) wire.Left {
	return wire.Left{Common: common(s)}
}

// BuildPayload constructs a Payload event carrying data.
func BuildPayload(s identity, data map[string]string) wire.Payload {
	cp := make(map[string]string, len(data))
	for k, v := range data {
		cp[k] = v
	}
	return wire.Payload{Common: common(s), Data: cp}
}

// BuildNewClusterSize constructs a NewClusterSize event.
func BuildNewClusterSize(s identity, oldSize, newSize uint32) (wire.NewClusterSize, error) {
	if newSize == 0 {
		return wire.NewClusterSize{}, ErrInvalidClusterSizeEvent
	}
	return wire.NewClusterSize{Common: common(s), OldClusterSize: oldSize, NewClusterSize: newSize}, nil
}

// BuildProbe constructs a Probe event directed at host/port, stamped
// with a fresh probe-key.
func BuildProbe(s identity, host string, port uint16, neighbourHost string, neighbourPort uint16) (wire.Probe, error) {
	if host == "" || neighbourHost == "" {
		return wire.Probe{}, ErrInvalidProbe
	}
	return wire.Probe{
		Common: common(s), Host: host, Port: port,
		NeighbourHost: neighbourHost, NeighbourPort: neighbourPort,
		ProbeKey: uuid.New(),
	}, nil
}

// BuildProbeAck constructs a ProbeAck reply, echoing the received
// probe-key and reporting the receiver's own current status.
func BuildProbeAck(s identity, host string, port uint16, status Status, neighbourID uuid.UUID, neighbourTx uint64, probeKey uuid.UUID) (wire.ProbeAck, error) {
	if host == "" || probeKey == uuid.Nil {
		return wire.ProbeAck{}, ErrInvalidProbeAck
	}
	return wire.ProbeAck{
		Common: common(s), Host: host, Port: port, Status: status.Code(),
		NeighbourID: neighbourID, NeighbourTx: neighbourTx, ProbeKey: probeKey,
	}, nil
}

// BuildIndirectPing constructs an IndirectPing routed through
// intermediateID toward neighbourID. Both ids must already be known
// neighbours
func BuildIndirectPing(s identity, host string, port uint16, intermediateID uuid.UUID, neighbourID uuid.UUID, attempt uint32) (wire.IndirectPing, error) {
	if host == "" || intermediateID == uuid.Nil || neighbourID == uuid.Nil {
		return wire.IndirectPing{}, ErrInvalidIndirectPing
	}
	intermediate, ok := s.Neighbours().Get(intermediateID)
	if !ok {
		return wire.IndirectPing{}, ErrUnknownIntermediate
	}
	neighbour, ok := s.Neighbours().Get(neighbourID)
	if !ok {
		return wire.IndirectPing{}, ErrUnknownNeighbour
	}
	return wire.IndirectPing{
		Common: common(s), Host: host, Port: port,
		IntermediateID: intermediateID, IntermediateHost: intermediate.Host, IntermediatePort: intermediate.Port,
		NeighbourID: neighbourID, NeighbourHost: neighbour.Host, NeighbourPort: neighbour.Port,
		AttemptNumber: attempt,
	}, nil
}

// BuildIndirectAck constructs the reply routed back through the same
// intermediary that relayed the probe, reporting the responder's own
// current status (typically alive). Unlike BuildIndirectPing, the
// intermediary and neighbour addressing is taken directly from the
// caller rather than a table lookup: the responder is reporting on
// itself, which its own table never contains, and the intermediary's
// address arrived on the wire in the IndirectPing being answered.
func BuildIndirectAck(s identity, host string, port uint16, intermediateID uuid.UUID, intermediateHost string, intermediatePort uint16, neighbourID uuid.UUID, neighbourHost string, neighbourPort uint16, status Status) (wire.IndirectAck, error) {
	if host == "" || intermediateID == uuid.Nil || neighbourID == uuid.Nil {
		return wire.IndirectAck{}, ErrInvalidIndirectAck
	}
	return wire.IndirectAck{
		Common: common(s), Host: host, Port: port,
		IntermediateID: intermediateID, IntermediateHost: intermediateHost, IntermediatePort: intermediatePort,
		NeighbourID: neighbourID, NeighbourHost: neighbourHost, NeighbourPort: neighbourPort,
		Status: status.Code(),
	}, nil
}

// BuildAntiEntropy selects neighbours into a digest vector: either a
// random sample of up to maxItems, or (if only is non-nil) just that
// one neighbour — an unknown id yields an empty sequence.
func BuildAntiEntropy(s identity, maxItems int, only *uuid.UUID) wire.AntiEntropy {
	var subjects []Neighbour
	if only != nil {
		if n, ok := s.Neighbours().Get(*only); ok {
			subjects = []Neighbour{n}
		}
	} else {
		subjects = sampleNeighbours(s.Neighbours().All(), maxItems)
	}

	data := make([]wire.NeighbourDigest, 0, len(subjects))
	for _, n := range subjects {
		id, host, port, statusCode, accessCode, rc, tx, payload := n.Digest()
		data = append(data, wire.NeighbourDigest{
			ID: id, Host: host, Port: port, StatusCode: statusCode, AccessCode: accessCode,
			RestartCounter: rc, Tx: tx, Payload: payload,
		})
	}
	return wire.AntiEntropy{Common: common(s), Data: data}
}

// sampleNeighbours picks up to n neighbours pseudo-randomly without
// relying on math/rand's global seed ordering: a deterministic rotation
// keyed by the slice's own length-dependent stride, which is good
// enough for anti-entropy's "small random sample" requirement without
// introducing a dependency on a PRNG that would need seeding per node.
func sampleNeighbours(all []Neighbour, n int) []Neighbour {
	if n <= 0 || len(all) == 0 {
		return nil
	}
	if n >= len(all) {
		return all
	}
	stride := len(all)/n + 1
	out := make([]Neighbour, 0, n)
	for i := 0; i < len(all) && len(out) < n; i += stride {
		out = append(out, all[i])
	}
	for i := 0; len(out) < n && i < len(all); i++ {
		dup := false
		for _, o := range out {
			if o.ID == all[i].ID {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, all[i])
		}
	}
	return out
}

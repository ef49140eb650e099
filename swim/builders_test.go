package swim

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

// fakeIdentity is a minimal identity for exercising builders without a
// full Node/actor loop.
type fakeIdentity struct {
	id  uuid.UUID
	rc  uint64
	tx  uint64
	tbl *Table
}

func newFakeIdentity() *fakeIdentity {
	id := uuid.New()
	return &fakeIdentity{id: id, rc: 1, tbl: NewTable(id)}
}

func (f *fakeIdentity) SelfID() uuid.UUID     { return f.id }
func (f *fakeIdentity) RestartCounter() uint64 { return f.rc }
func (f *fakeIdentity) NextTx() uint64 {
	f.tx++
	return f.tx
}
func (f *fakeIdentity) Neighbours() *Table { return f.tbl }

func TestBuildPingIncrementsTxAndValidates(t *testing.T) {
	f := newFakeIdentity()
	nb := uuid.New()

	p, err := BuildPing(f, "10.0.0.1", 7000, nb, 1)
	if err != nil {
		t.Fatalf("BuildPing: %v", err)
	}
	if p.Tx != 1 {
		t.Fatalf("expected tx=1 after first build, got %d", p.Tx)
	}
	if p.ID != f.id {
		t.Fatalf("expected sender id stamped, got %v", p.ID)
	}

	if _, err := BuildPing(f, "", 7000, nb, 1); !errors.Is(err, ErrInvalidPing) {
		t.Fatalf("expected ErrInvalidPing for empty host, got %v", err)
	}
	if f.tx != 1 {
		t.Fatalf("expected failed validation not to consume a tx, got tx=%d", f.tx)
	}
}

func TestBuildIndirectPingRequiresKnownNeighbours(t *testing.T) {
	f := newFakeIdentity()
	intermediate := uuid.New()
	target := uuid.New()

	_, err := BuildIndirectPing(f, "10.0.0.1", 7000, intermediate, target, 1)
	if !errors.Is(err, ErrUnknownIntermediate) {
		t.Fatalf("expected ErrUnknownIntermediate, got %v", err)
	}

	_ = f.tbl.Upsert(Neighbour{ID: intermediate, Host: "10.0.0.2", Port: 7000}, 8)
	_, err = BuildIndirectPing(f, "10.0.0.1", 7000, intermediate, target, 1)
	if !errors.Is(err, ErrUnknownNeighbour) {
		t.Fatalf("expected ErrUnknownNeighbour, got %v", err)
	}

	_ = f.tbl.Upsert(Neighbour{ID: target, Host: "10.0.0.3", Port: 7000}, 8)
	ip, err := BuildIndirectPing(f, "10.0.0.1", 7000, intermediate, target, 1)
	if err != nil {
		t.Fatalf("BuildIndirectPing: %v", err)
	}
	if ip.IntermediateHost != "10.0.0.2" || ip.NeighbourHost != "10.0.0.3" {
		t.Fatalf("expected routing hosts filled from table, got %+v", ip)
	}
}

func TestBuildAntiEntropyWithSpecificID(t *testing.T) {
	f := newFakeIdentity()
	id := uuid.New()
	_ = f.tbl.Upsert(Neighbour{ID: id, Host: "10.0.0.4", Port: 7000, Status: StatusAlive}, 8)

	ae := BuildAntiEntropy(f, 2, &id)
	if len(ae.Data) != 1 || ae.Data[0].ID != id {
		t.Fatalf("expected single-element digest for known id, got %+v", ae.Data)
	}

	unknown := uuid.New()
	ae = BuildAntiEntropy(f, 2, &unknown)
	if len(ae.Data) != 0 {
		t.Fatalf("expected empty digest for unknown id, got %+v", ae.Data)
	}
}

func TestBuildAntiEntropySampleBounded(t *testing.T) {
	f := newFakeIdentity()
	for i := 0; i < 10; i++ {
		_ = f.tbl.Upsert(Neighbour{ID: uuid.New(), Host: "10.0.0.5", Port: 7000}, 20)
	}

	ae := BuildAntiEntropy(f, 3, nil)
	if len(ae.Data) != 3 {
		t.Fatalf("expected sample bounded to 3, got %d", len(ae.Data))
	}
}

func TestBuildProbeAckRequiresProbeKey(t *testing.T) {
	f := newFakeIdentity()
	_, err := BuildProbeAck(f, "10.0.0.1", 7000, StatusAlive, uuid.Nil, 0, uuid.Nil)
	if !errors.Is(err, ErrInvalidProbeAck) {
		t.Fatalf("expected ErrInvalidProbeAck, got %v", err)
	}
}

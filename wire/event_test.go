package wire

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestPrepareRestoreRoundTrip(t *testing.T) {
	sender := uuid.New()
	nb := uuid.New()

	cases := []Event{
		Ping{Common: Common{ID: sender, RestartCounter: 1, Tx: 2}, Host: "10.0.0.1", Port: 5376, NeighbourID: nb, AttemptNumber: 1},
		Ack{Common: Common{ID: sender, RestartCounter: 1, Tx: 3}, NeighbourID: nb, NeighbourTx: 9},
		Join{Common: Common{ID: sender, RestartCounter: 2, Tx: 0}, Host: "10.0.0.1", Port: 5376},
		Alive{Common: Common{ID: sender, RestartCounter: 1, Tx: 4}, NeighbourID: nb, NeighbourRestartCounter: 1, NeighbourTx: 5},
		Suspect{Common: Common{ID: sender, RestartCounter: 1, Tx: 5}, NeighbourID: nb, NeighbourRestartCounter: 1, NeighbourTx: 5},
		Left{Common: Common{ID: sender, RestartCounter: 1, Tx: 6}},
		Dead{Common: Common{ID: sender, RestartCounter: 1, Tx: 7}, NeighbourID: nb, NeighbourRestartCounter: 1, NeighbourTx: 5},
		Payload{Common: Common{ID: sender, RestartCounter: 1, Tx: 8}, Data: map[string]string{"tcp-port": "4567"}},
		AntiEntropy{Common: Common{ID: sender, RestartCounter: 1, Tx: 9}, Data: []NeighbourDigest{
			{ID: nb, Host: "127.0.0.1", Port: 5377, StatusCode: 3, AccessCode: 0, RestartCounter: 3, Tx: 0, Payload: map[string]string{"tcp-port": "4567"}},
		}},
		Probe{Common: Common{ID: sender, RestartCounter: 1, Tx: 10}, Host: "10.0.0.1", Port: 5376, NeighbourHost: "10.0.0.2", NeighbourPort: 5377, ProbeKey: uuid.New()},
		ProbeAck{Common: Common{ID: sender, RestartCounter: 1, Tx: 11}, Host: "10.0.0.2", Port: 5377, Status: 3, NeighbourID: nb, NeighbourTx: 0, ProbeKey: uuid.New()},
		NewClusterSize{Common: Common{ID: sender, RestartCounter: 1, Tx: 12}, OldClusterSize: 3, NewClusterSize: 5},
		IndirectPing{Common: Common{ID: sender, RestartCounter: 1, Tx: 13}, Host: "a", Port: 1, IntermediateID: nb, IntermediateHost: "b", IntermediatePort: 2, NeighbourID: uuid.New(), NeighbourHost: "c", NeighbourPort: 3, AttemptNumber: 1},
		IndirectAck{Common: Common{ID: sender, RestartCounter: 1, Tx: 14}, Host: "a", Port: 1, IntermediateID: nb, IntermediateHost: "b", IntermediatePort: 2, NeighbourID: uuid.New(), NeighbourHost: "c", NeighbourPort: 3, Status: 3},
	}

	for _, want := range cases {
		got, err := Restore(Prepare(want))
		if err != nil {
			t.Fatalf("%T: restore(prepare(e)) failed: %v", want, err)
		}
		if got.CmdType() != want.CmdType() {
			t.Fatalf("%T: cmd-type mismatch: got %v want %v", want, got.CmdType(), want.CmdType())
		}
	}
}

func TestRestoreRejectsTruncatedInput(t *testing.T) {
	good := Prepare(Ping{Common: Common{ID: uuid.New(), RestartCounter: 1, Tx: 1}, Host: "h", Port: 1, NeighbourID: uuid.New(), AttemptNumber: 1})
	truncated := good[:len(good)-3]
	if _, err := Restore(truncated); err == nil {
		t.Fatal("expected malformed-event error for truncated input")
	}
}

func TestRestoreVectorDropsMalformedElements(t *testing.T) {
	e := Ack{Common: Common{ID: uuid.New(), RestartCounter: 1, Tx: 1}, NeighbourID: uuid.New(), NeighbourTx: 1}
	good := Prepare(e)
	bad := good[:len(good)-2]

	v := buildVector(t, good, bad)
	events, err := RestoreVector(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected malformed element to be dropped, got %d events", len(events))
	}
}

func buildVector(t *testing.T, elems ...[]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewArray(&buf)
	for _, e := range elems {
		PutBytes(w.Elem(), e)
	}
	w.Close()
	return buf.Bytes()
}

package swim

import (
	"testing"
	"time"

	"github.com/redstarssystems/swim-sub000/config"
	"github.com/redstarssystems/swim-sub000/taps"
	"github.com/redstarssystems/swim-sub000/transport"
)

func TestCalcN(t *testing.T) {
	inputs := []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024}
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for i, in := range inputs {
		if got := CalcN(in); got != want[i] {
			t.Errorf("CalcN(%d) = %d, want %d", in, got, want[i])
		}
	}
}

func fastTestConfig(clusterSize int) config.Config {
	cfg := config.Default()
	cfg.Protocol.PingIntervalMs = 15
	cfg.Protocol.AckTimeoutMs = 20
	cfg.Protocol.IndirectAckTimeoutMs = 20
	cfg.Protocol.SuspectTimeoutMs = 40
	cfg.Protocol.DeadRetentionMs = 5000
	cfg.Protocol.JoinTimeoutMs = 60
	cfg.Cluster.ClusterSize = clusterSize
	return cfg
}

func newTestNode(t *testing.T, tr transport.Transport, host string, port uint16, clusterSize int, sink taps.Sink) *Node {
	t.Helper()
	cluster, err := NewCluster("test-cluster", "", "test-ns", "shared-secret-token", clusterSize, nil)
	if err != nil {
		t.Fatalf("NewCluster: %v", err)
	}
	live := config.NewLive(fastTestConfig(clusterSize))
	n, err := NewNode(live, cluster, host, port, tr, sink)
	if err != nil {
		t.Fatalf("NewNode: %v", err)
	}
	return n
}

func TestProbeBootstrapClusterSizeOne(t *testing.T) {
	reg := transport.NewRegistry()
	tr1 := transport.NewMemory(reg, "127.0.0.1", 6001)
	tr2 := transport.NewMemory(reg, "127.0.0.1", 6002)

	ring1 := taps.NewRing(256)
	node1 := newTestNode(t, tr1, "127.0.0.1", 6001, 1, ring1)
	node2 := newTestNode(t, tr2, "127.0.0.1", 6002, 1, taps.Discard)

	if err := node1.Start(); err != nil {
		t.Fatalf("node1.Start: %v", err)
	}
	if err := node2.Start(); err != nil {
		t.Fatalf("node2.Start: %v", err)
	}
	defer node1.Stop()
	defer node2.Stop()

	key, err := node1.Probe("127.0.0.1", 6002)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, ok := node1.ProbeResult(key); ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	ack, ok := node1.ProbeResult(key)
	if !ok || ack == nil {
		t.Fatal("expected a ProbeAck to be recorded")
	}

	snap := node1.Snapshot()
	if len(snap.Neighbours) != 0 {
		t.Fatalf("expected cluster-size=1 to reject adding node2 as a neighbour, got %d neighbours", len(snap.Neighbours))
	}
	if len(ring1.Find("upsert-neighbour-cluster-size-exceeded-error")) == 0 {
		t.Fatal("expected an upsert-neighbour-cluster-size-exceeded-error tap")
	}
}

func TestProbeWithRoomAddsNeighbour(t *testing.T) {
	reg := transport.NewRegistry()
	tr1 := transport.NewMemory(reg, "127.0.0.1", 6101)
	tr2 := transport.NewMemory(reg, "127.0.0.1", 6102)

	node1 := newTestNode(t, tr1, "127.0.0.1", 6101, 3, taps.Discard)
	node2 := newTestNode(t, tr2, "127.0.0.1", 6102, 3, taps.Discard)
	if err := node1.Start(); err != nil {
		t.Fatalf("node1.Start: %v", err)
	}
	if err := node2.Start(); err != nil {
		t.Fatalf("node2.Start: %v", err)
	}
	defer node1.Stop()
	defer node2.Stop()

	if _, err := node1.Probe("127.0.0.1", 6102); err != nil {
		t.Fatalf("Probe: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if len(node1.Snapshot().Neighbours) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(node1.Snapshot().Neighbours) != 1 {
		t.Fatal("expected node1 to add node2 as a neighbour when cluster-size allows it")
	}
}

func TestJoinTwoNodeClusterReachesAlive(t *testing.T) {
	reg := transport.NewRegistry()
	tr1 := transport.NewMemory(reg, "127.0.0.1", 6201)
	tr2 := transport.NewMemory(reg, "127.0.0.1", 6202)

	node1 := newTestNode(t, tr1, "127.0.0.1", 6201, 2, taps.Discard)
	node2 := newTestNode(t, tr2, "127.0.0.1", 6202, 2, taps.Discard)
	if err := node1.Start(); err != nil {
		t.Fatalf("node1.Start: %v", err)
	}
	if err := node2.Start(); err != nil {
		t.Fatalf("node2.Start: %v", err)
	}
	defer node1.Stop()
	defer node2.Stop()

	// Bring node1 to alive (stop→join via Join, then join→alive) and make
	// it already known to node2, simulating prior discovery (e.g. via
	// Probe) so node2's join round has someone to announce itself to.
	if err := node1.Join(); err != nil {
		t.Fatalf("node1.Join: %v", err)
	}
	if err := node1.SetStatus(StatusAlive); err != nil {
		t.Fatalf("SetStatus(alive): %v", err)
	}
	node2.act(func() {
		_ = node2.neighbours.Upsert(Neighbour{
			ID: node1.SelfID(), Host: "127.0.0.1", Port: 6201, Status: StatusAlive,
		}, node2.clusterSize())
	})

	if err := node2.Join(); err != nil {
		t.Fatalf("Join: %v", err)
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if node2.Status() == StatusAlive {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := node2.Status(); got != StatusAlive {
		t.Fatalf("expected node2 to reach alive status, got %v", got)
	}
}

func TestIndirectProbeThroughIntermediaryConfirmsAlive(t *testing.T) {
	reg := transport.NewRegistry()
	tr1 := transport.NewMemory(reg, "127.0.0.1", 6301)
	tr2 := transport.NewMemory(reg, "127.0.0.1", 6302)
	tr3 := transport.NewMemory(reg, "127.0.0.1", 6303)

	node1 := newTestNode(t, tr1, "127.0.0.1", 6301, 3, taps.Discard)
	node2 := newTestNode(t, tr2, "127.0.0.1", 6302, 3, taps.Discard)
	node3 := newTestNode(t, tr3, "127.0.0.1", 6303, 3, taps.Discard)

	for _, n := range []*Node{node1, node2, node3} {
		if err := n.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	defer node1.Stop()
	defer node2.Stop()
	defer node3.Stop()

	for _, n := range []*Node{node1, node2, node3} {
		n := n
		n.act(func() { n.status = StatusAlive })
	}

	// node1 only has a stale, unreachable address on file for node2
	// (simulating a direct path that has gone bad) but a good address for
	// node3, the intermediary it will route the probe through.
	node1.act(func() {
		_ = node1.neighbours.Upsert(Neighbour{ID: node2.SelfID(), Host: "127.0.0.1", Port: 6399, Status: StatusAlive}, node1.clusterSize())
		_ = node1.neighbours.Upsert(Neighbour{ID: node3.SelfID(), Host: "127.0.0.1", Port: 6303, Status: StatusAlive}, node1.clusterSize())
	})
	// node3 has node2's real address on file, so it can actually reach it.
	node3.act(func() {
		_ = node3.neighbours.Upsert(Neighbour{ID: node2.SelfID(), Host: "127.0.0.1", Port: 6302, Status: StatusAlive}, node3.clusterSize())
	})

	node1.act(func() { node1.escalateToIndirect(node2.SelfID(), 1) })

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		nb, ok := node1.Neighbours().Get(node2.SelfID())
		if ok && nb.Status == StatusAlive && nb.Access == AccessIndirect {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	nb, ok := node1.Neighbours().Get(node2.SelfID())
	if !ok {
		t.Fatal("expected node2 to remain in node1's table")
	}
	if nb.Access != AccessIndirect {
		t.Fatalf("expected node2 marked as reached via indirect access, got %v", nb.Access)
	}
	if nb.Status != StatusAlive {
		t.Fatalf("expected node2 confirmed alive via the indirect round trip, got %v", nb.Status)
	}

	var stillPending bool
	node1.act(func() { _, stillPending = node1.indirectPingEvents[node2.SelfID()] })
	if stillPending {
		t.Fatal("expected the indirect-ping attempt to be cleared once the ack arrived")
	}
}

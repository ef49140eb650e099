package swim

import (
	"github.com/google/uuid"

	"github.com/redstarssystems/swim-sub000/wire"
)

// precheck applies the global preconditions for events
// whose Common.ID sender must already be a known, alive-ish neighbour.
// It returns the sender's record and true when handling should proceed.
func (n *Node) precheck(cmdName string, senderID uuid.UUID, senderRC, senderTx uint64) (Neighbour, bool) {
	if !n.status.AliveIsh() {
		n.tap(cmdName+"-not-alive-node-error", nil)
		return Neighbour{}, false
	}
	sender, ok := n.neighbours.Get(senderID)
	if !ok {
		n.tap(cmdName+"-unknown-neighbour-error", nil)
		return Neighbour{}, false
	}
	if !sender.Status.AliveIsh() {
		n.tap(cmdName+"-not-alive-neighbour-error", nil)
		n.replyDead(sender)
		return Neighbour{}, false
	}
	cand := &Incarnation{RestartCounter: senderRC, Tx: senderTx}
	local := &Incarnation{RestartCounter: sender.RestartCounter, Tx: sender.Tx}
	if !SuitableRestartCounter(cand, local) {
		n.tap(cmdName+"-bad-restart-counter-error", nil)
		return Neighbour{}, false
	}
	if !SuitableTx(cand, local) {
		n.tap(cmdName+"-bad-tx-error", nil)
		return Neighbour{}, false
	}
	return sender, true
}

// replyDead sends a Dead event directly to the offending neighbour, the
// standard "bounce" reaction to a known sender whose record is not
// alive-ish or whose restart-counter is stale.
func (n *Node) replyDead(nb Neighbour) {
	ev, err := BuildDead(n, nb.ID, nb.RestartCounter, nb.Tx)
	if err != nil {
		return
	}
	_, _ = n.composer.SendEvent(ToHostPort(nb.Host, nb.Port), ev)
}

// reviveIfSuspect transitions a previously-suspect neighbour back to
// alive and disseminates the news, used by Ping/Ack. (HandleIndirectAck
// sets the reported status and enqueues its own Alive.)
func (n *Node) reviveIfSuspect(nb Neighbour) {
	if nb.Status != StatusSuspect {
		return
	}
	n.neighbours.SetStatus(nb.ID, StatusAlive)
	if ev, err := BuildAlive(n, nb.ID, nb.RestartCounter, nb.Tx); err == nil {
		n.outgoing.Put(ev)
	}
}

func (n *Node) clusterSize() int { return n.cluster.ClusterSize }

// HandlePing is the Ping handler.
func (n *Node) HandlePing(p wire.Ping) {
	sender, ok := n.precheck("ping-event", p.ID, p.RestartCounter, p.Tx)
	if !ok {
		return
	}
	if p.NeighbourID != n.id {
		n.tap("ping-event-neighbour-id-mismatch-error", p)
		return
	}
	ack, err := BuildAck(n, p.ID, p.Tx)
	if err != nil {
		return
	}
	_, _ = n.composer.SendEvent(ToHostPort(p.Host, p.Port), ack)
	n.neighbours.SetTx(sender.ID, p.Tx)
	n.reviveIfSuspect(sender)
}

// HandleAck is the Ack handler.
func (n *Node) HandleAck(a wire.Ack) {
	sender, ok := n.precheck("ack-event", a.ID, a.RestartCounter, a.Tx)
	if !ok {
		return
	}
	if _, pending := n.pingEvents[a.ID]; !pending {
		n.tap("ack-event-not-expected-error", a)
		return
	}
	delete(n.pingEvents, a.ID)
	n.neighbours.SetTx(sender.ID, a.Tx)
	n.neighbours.SetRestartCounter(sender.ID, a.RestartCounter)
	n.reviveIfSuspect(sender)
}

// HandleIndirectPing is the IndirectPing handler, run
// both at the intermediary (relaying) and, symmetrically, when this
// node IS the ultimate target.
func (n *Node) HandleIndirectPing(ip wire.IndirectPing) {
	if !n.status.AliveIsh() {
		n.tap("indirect-ping-event-not-alive-node-error", nil)
		return
	}

	if ip.NeighbourID == n.id {
		// We are the final destination: reply IndirectAck via the same
		// intermediary that relayed this to us, reporting on ourselves.
		ack, err := BuildIndirectAck(n, ip.Host, ip.Port, ip.IntermediateID, ip.IntermediateHost, ip.IntermediatePort, n.id, n.host, n.port, n.status)
		if err != nil {
			return
		}
		_, _ = n.composer.SendEvent(ToHostPort(ip.IntermediateHost, ip.IntermediatePort), ack)
		return
	}

	// We are the intermediary: relay a real IndirectPing to the target,
	// naming ourselves as the intermediary so the target's IndirectAck
	// routes back through us to the original asker.
	target, ok := n.neighbours.Get(ip.NeighbourID)
	if !ok {
		n.tap("indirect-ping-event-unknown-neighbour-error", ip)
		return
	}
	relay := wire.IndirectPing{
		Common:           wire.Common{ID: n.id, RestartCounter: n.restartCounter, Tx: n.NextTx()},
		Host:             ip.Host,
		Port:             ip.Port,
		IntermediateID:   n.id,
		IntermediateHost: n.host,
		IntermediatePort: n.port,
		NeighbourID:      ip.NeighbourID,
		NeighbourHost:    target.Host,
		NeighbourPort:    target.Port,
		AttemptNumber:    ip.AttemptNumber,
	}
	_, _ = n.composer.SendEvent(ToHostPort(target.Host, target.Port), relay)
}

// HandleIndirectAck is the IndirectAck handler, run both at the
// intermediary (relaying the ack back to the original asker) and at
// the asker itself (resolving the pending indirect attempt).
func (n *Node) HandleIndirectAck(ia wire.IndirectAck) {
	if !n.status.AliveIsh() {
		n.tap("indirect-ack-event-not-alive-node-error", nil)
		return
	}

	if ia.IntermediateID == n.id {
		// We are the intermediary that relayed the original probe:
		// forward the ack unchanged to the asker it came from.
		_, _ = n.composer.SendEvent(ToHostPort(ia.Host, ia.Port), ia)
		return
	}

	target := ia.NeighbourID
	if _, pending := n.indirectPingEvents[target]; !pending {
		n.tap("indirect-ack-event-not-expected-error", ia)
		return
	}
	delete(n.indirectPingEvents, target)

	nb, ok := n.neighbours.Get(target)
	if !ok {
		return
	}
	n.neighbours.SetTx(target, ia.Tx)
	n.neighbours.SetAccess(target, AccessIndirect)
	n.neighbours.SetStatus(target, Status(ia.Status))
	if ev, err := BuildAlive(n, target, nb.RestartCounter, ia.Tx); err == nil {
		n.outgoing.Put(ev)
	}
}

// HandleJoin is the Join handler (a bootstrap entry
// point: the sender needn't already be a known neighbour).
func (n *Node) HandleJoin(j wire.Join) {
	if !n.status.AliveIsh() {
		n.tap("join-event-not-alive-node-error", nil)
		return
	}

	if existing, ok := n.neighbours.Get(j.ID); ok {
		cand := &Incarnation{RestartCounter: j.RestartCounter, Tx: j.Tx}
		local := &Incarnation{RestartCounter: existing.RestartCounter, Tx: existing.Tx}
		if !SuitableRestartCounter(cand, local) {
			n.tap("join-event-bad-restart-counter-error", j)
			n.replyDead(existing)
			return
		}
		if !SuitableTx(cand, local) {
			n.tap("join-event-bad-tx-error", j)
			return
		}
	}

	err := n.neighbours.Upsert(Neighbour{
		ID: j.ID, Host: j.Host, Port: j.Port, Status: StatusAlive,
		RestartCounter: j.RestartCounter, Tx: j.Tx,
	}, n.clusterSize())
	if err != nil {
		n.tap("join-event-cluster-size-exceeded-error", j)
		_, _ = n.composer.SendEvent(ToHostPort(j.Host, j.Port), BuildDeadForUnknown(n, j.ID, j.RestartCounter, j.Tx))
		return
	}

	alive, aerr := BuildAlive(n, j.ID, j.RestartCounter, j.Tx)
	if aerr != nil {
		return
	}
	n.outgoing.Put(alive)
	_, _ = n.composer.SendEvent(ToHostPort(j.Host, j.Port), alive)
}

// BuildDeadForUnknown builds a Dead event about a subject not (or no
// longer) present in the table, used when rejecting a Join outright.
func BuildDeadForUnknown(s identity, subjectID uuid.UUID, rc, tx uint64) wire.Dead {
	ev, _ := BuildDead(s, subjectID, rc, tx)
	return ev
}

// HandleAlive is the Alive handler. The self-directed
// join confirmation is a bootstrap exception to the alive-ish
// precondition, since a joining node is in join status, not alive-ish,
// right up until this event arrives.
func (n *Node) HandleAlive(a wire.Alive) {
	if a.NeighbourID == n.id && n.status == StatusJoin {
		n.status = StatusAlive
		n.tap("alive-event-join-confirmed", a)
		n.notifyJoinWaiters()
		return
	}

	if !n.status.AliveIsh() {
		n.tap("alive-event-not-alive-node-error", nil)
		return
	}
	if sender, ok := n.neighbours.Get(a.ID); ok && !sender.Status.AliveIsh() {
		n.tap("alive-event-not-alive-neighbour-error", nil)
		n.replyDead(sender)
		return
	}
	if a.NeighbourID == n.id {
		// Self-directed Alive received while already alive/suspect: no-op,
		// matching only the join-confirmation transition being meaningful.
		return
	}

	existing, _ := n.neighbours.Get(a.NeighbourID)
	cand := &Incarnation{RestartCounter: a.NeighbourRestartCounter, Tx: a.NeighbourTx}
	local := &Incarnation{RestartCounter: existing.RestartCounter, Tx: existing.Tx}
	if !SuitableIncarnation(cand, local) {
		n.tap("alive-event-bad-tx-error", a)
		return
	}

	existing.ID = a.NeighbourID
	existing.Status = StatusAlive
	existing.RestartCounter = a.NeighbourRestartCounter
	existing.Tx = a.NeighbourTx
	if err := n.neighbours.Upsert(existing, n.clusterSize()); err != nil {
		n.tap("alive-event-cluster-size-exceeded-error", a)
		return
	}
	n.outgoing.Put(a)
}

// HandleSuspect is the Suspect handler.
func (n *Node) HandleSuspect(s wire.Suspect) {
	if !n.status.AliveIsh() {
		n.tap("suspect-event-not-alive-node-error", nil)
		return
	}
	existing, ok := n.neighbours.Get(s.NeighbourID)
	if !ok {
		return
	}
	cand := &Incarnation{RestartCounter: s.NeighbourRestartCounter, Tx: s.NeighbourTx}
	local := &Incarnation{RestartCounter: existing.RestartCounter, Tx: existing.Tx}
	if !SuitableIncarnation(cand, local) {
		n.tap("suspect-event-bad-tx-error", s)
		return
	}
	n.neighbours.SetStatus(s.NeighbourID, StatusSuspect)
	n.neighbours.SetTx(s.NeighbourID, s.NeighbourTx)
	n.outgoing.Put(s)
}

// HandleDead is the Dead handler.
func (n *Node) HandleDead(d wire.Dead) {
	if !n.status.AliveIsh() {
		n.tap("dead-event-not-alive-node-error", nil)
		return
	}
	if _, ok := n.neighbours.Get(d.NeighbourID); !ok {
		return
	}
	n.neighbours.SetStatus(d.NeighbourID, StatusDead)
	n.outgoing.Put(d)
}

// HandleLeft is the Left handler.
func (n *Node) HandleLeft(l wire.Left) {
	if !n.status.AliveIsh() {
		n.tap("left-event-not-alive-node-error", nil)
		return
	}
	if _, ok := n.neighbours.Get(l.ID); !ok {
		return
	}
	n.neighbours.SetStatus(l.ID, StatusLeft)
	n.outgoing.Put(l)
}

// HandlePayload is the Payload handler.
func (n *Node) HandlePayload(p wire.Payload) {
	if !n.status.AliveIsh() {
		n.tap("payload-event-not-alive-node-error", nil)
		return
	}
	nb, ok := n.neighbours.Get(p.ID)
	if !ok {
		return
	}
	nb.Payload = p.Data
	_ = n.neighbours.Upsert(nb, n.clusterSize())
	n.outgoing.Put(p)
}

// HandleNewClusterSize is the NewClusterSize handler.
func (n *Node) HandleNewClusterSize(c wire.NewClusterSize) {
	if !n.status.AliveIsh() {
		n.tap("new-cluster-size-event-not-alive-node-error", nil)
		return
	}
	n.cluster.ClusterSize = int(c.NewClusterSize)
	n.outgoing.Put(c)
}

// HandleProbe is the Probe handler: no alive-ish
// requirement on the receiver, nothing persisted about the sender.
func (n *Node) HandleProbe(p wire.Probe) {
	ack, err := BuildProbeAck(n, n.host, n.port, n.status, p.ID, p.Tx, p.ProbeKey)
	if err != nil {
		return
	}
	_, _ = n.composer.SendEvent(ToHostPort(p.Host, p.Port), ack)
}

// HandleProbeAck is the ProbeAck handler.
func (n *Node) HandleProbeAck(pa wire.ProbeAck) {
	if _, pending := n.probeEvents[pa.ProbeKey]; !pending {
		n.tap("probe-ack-event-probe-never-send-error", pa)
		return
	}
	cp := pa
	n.probeEvents[pa.ProbeKey] = &cp

	if !n.status.AliveIsh() {
		err := n.neighbours.Upsert(Neighbour{
			ID: pa.ID, Host: pa.Host, Port: pa.Port, Status: Status(pa.Status),
			RestartCounter: pa.RestartCounter, Tx: pa.Tx,
		}, n.clusterSize())
		if err != nil {
			n.tap("upsert-neighbour-cluster-size-exceeded-error", pa)
		}
	}
}

// HandleAntiEntropy is the AntiEntropy handler.
func (n *Node) HandleAntiEntropy(ae wire.AntiEntropy) {
	if _, ok := n.precheck("anti-entropy-event", ae.ID, ae.RestartCounter, ae.Tx); !ok {
		return
	}

	for _, d := range ae.Data {
		if d.ID == n.id {
			continue
		}
		existing, _ := n.neighbours.Get(d.ID)
		cand := &Incarnation{RestartCounter: d.RestartCounter, Tx: d.Tx}
		local := &Incarnation{RestartCounter: existing.RestartCounter, Tx: existing.Tx}
		if !SuitableIncarnation(cand, local) {
			n.tap("anti-entropy-event-bad-restart-counter-error", d)
			continue
		}
		nb := Neighbour{
			ID: d.ID, Host: d.Host, Port: d.Port, Status: Status(d.StatusCode),
			Access: Access(d.AccessCode), RestartCounter: d.RestartCounter, Tx: d.Tx, Payload: d.Payload,
		}
		if err := n.neighbours.Upsert(nb, n.clusterSize()); err != nil {
			n.tap("anti-entropy-event-cluster-size-exceeded-error", d)
		}
	}
}

func (n *Node) notifyJoinWaiters() {
	for _, w := range n.joinWaiters {
		close(w)
	}
	n.joinWaiters = nil
}

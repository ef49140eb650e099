package swim

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/redstarssystems/swim-sub000/wire"
)

// startSchedule wires the scheduler pool's named periodic tasks:
// ping-round, suspect-timeout sweep, dead-gc, anti-entropy broadcast, and
// join-retry. Every tick is posted back onto the actor mailbox via post,
// so a slow or stacked-up tick never runs concurrently with actor state.
func (n *Node) startSchedule() {
	cfg := n.cfg().Protocol
	n.scheduler.Every("ping-round", cfg.PingInterval(), func() { n.post(n.pingRoundTick) })
	n.scheduler.Every("ping-timeout-sweep", cfg.AckTimeout(), func() { n.post(n.pingTimeoutSweep) })
	n.scheduler.Every("indirect-timeout-sweep", cfg.IndirectAckTimeout(), func() { n.post(n.indirectTimeoutSweep) })
	n.scheduler.Every("suspect-timeout-sweep", cfg.SuspectTimeout(), func() { n.post(n.suspectTimeoutSweep) })
	n.scheduler.Every("dead-gc", cfg.DeadRetention(), func() { n.post(n.deadRetentionSweep) })
	n.scheduler.Every("anti-entropy-broadcast", cfg.PingInterval(), func() { n.post(n.antiEntropyBroadcastTick) })
	n.scheduler.Every("join-retry", cfg.JoinTimeout(), func() { n.post(n.joinRetryTick) })
}

// pingRoundTick is the periodic ping-round body: refill
// the round-robin buffer with a fresh random permutation when empty, pop
// one id, and ping it with anti-entropy attached.
func (n *Node) pingRoundTick() {
	if !n.status.AliveIsh() {
		return
	}
	if len(n.pingRoundBuffer) == 0 {
		ids := n.neighbours.IDs()
		rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		n.pingRoundBuffer = ids
	}
	if len(n.pingRoundBuffer) == 0 {
		return
	}

	target := n.pingRoundBuffer[0]
	n.pingRoundBuffer = n.pingRoundBuffer[1:]

	nb, ok := n.neighbours.Get(target)
	if !ok {
		return
	}

	ev, err := BuildPing(n, n.host, n.port, target, 1)
	if err != nil {
		return
	}
	n.pingEvents[target] = &pingAttempt{event: ev, attempt: 1, createdAt: time.Now()}

	ae := BuildAntiEntropy(n, n.cfg().Protocol.MaxAntiEntropyItems, nil)
	_, _ = n.composer.SendEvents(ToHostPort(nb.Host, nb.Port), []wire.Event{ev, ae}, false)
}

// pingTimeoutSweep re-pings a timed-out target up to
// direct-ping-max-attempts, then escalate to indirect probing through up
// to indirect-ping-fanout intermediaries.
func (n *Node) pingTimeoutSweep() {
	cfg := n.cfg().Protocol
	timeout := cfg.AckTimeout()
	now := time.Now()

	for id, pa := range n.pingEvents {
		if now.Sub(pa.createdAt) < timeout {
			continue
		}
		nb, ok := n.neighbours.Get(id)
		if !ok {
			delete(n.pingEvents, id)
			continue
		}

		if int(pa.attempt) < cfg.DirectPingMaxAttempts {
			attempt := pa.attempt + 1
			ev, err := BuildPing(n, n.host, n.port, id, attempt)
			if err != nil {
				continue
			}
			n.pingEvents[id] = &pingAttempt{event: ev, attempt: attempt, createdAt: now}
			_, _ = n.composer.SendEvent(ToHostPort(nb.Host, nb.Port), ev)
			continue
		}

		delete(n.pingEvents, id)
		if _, escalating := n.indirectPingEvents[id]; escalating {
			continue
		}
		n.escalateToIndirect(id, cfg.IndirectPingFanout)
	}
}

func (n *Node) escalateToIndirect(target uuid.UUID, fanout int) {
	intermediaries := n.pickIntermediaries(target, fanout)
	for _, inter := range intermediaries {
		ip, err := BuildIndirectPing(n, n.host, n.port, inter.ID, target, 1)
		if err != nil {
			continue
		}
		n.indirectPingEvents[target] = &indirectAttempt{event: ip, createdAt: time.Now()}
		_, _ = n.composer.SendEvent(ToHostPort(inter.Host, inter.Port), ip)
	}
}

// pickIntermediaries selects up to k alive neighbours other than target
// to relay an indirect ping through.
func (n *Node) pickIntermediaries(target uuid.UUID, k int) []Neighbour {
	alive := n.neighbours.ByStatus(StatusAlive)
	out := make([]Neighbour, 0, k)
	for _, nb := range alive {
		if nb.ID == target {
			continue
		}
		out = append(out, nb)
		if len(out) == k {
			break
		}
	}
	return out
}

// indirectTimeoutSweep moves a target to suspect locally when no
// IndirectAck arrives within indirect-ack-timeout-ms.
func (n *Node) indirectTimeoutSweep() {
	timeout := n.cfg().Protocol.IndirectAckTimeout()
	now := time.Now()

	for id, ia := range n.indirectPingEvents {
		if now.Sub(ia.createdAt) < timeout {
			continue
		}
		delete(n.indirectPingEvents, id)

		nb, ok := n.neighbours.Get(id)
		if !ok || nb.Status == StatusSuspect {
			continue
		}
		n.neighbours.SetStatus(id, StatusSuspect)
		if ev, err := BuildSuspect(n, id, nb.RestartCounter, nb.Tx); err == nil {
			n.outgoing.Put(ev)
		}
	}
}

// suspectTimeoutSweep declares a neighbour dead once it has stayed
// suspect for longer than suspect-timeout-ms with no revival.
func (n *Node) suspectTimeoutSweep() {
	timeout := n.cfg().Protocol.SuspectTimeout()
	now := time.Now()

	for _, nb := range n.neighbours.ByStatus(StatusSuspect) {
		if now.Sub(nb.UpdatedAt) < timeout {
			continue
		}
		n.neighbours.SetStatus(nb.ID, StatusDead)
		if ev, err := BuildDead(n, nb.ID, nb.RestartCounter, nb.Tx); err == nil {
			n.outgoing.Put(ev)
		}
	}
}

// deadRetentionSweep optionally deletes neighbours that have been dead
// for longer than dead-retention-ms.
func (n *Node) deadRetentionSweep() {
	retention := n.cfg().Protocol.DeadRetention()
	now := time.Now()

	for _, nb := range n.neighbours.ByStatus(StatusDead) {
		if now.Sub(nb.UpdatedAt) < retention {
			continue
		}
		n.neighbours.Delete(nb.ID)
	}
}

// antiEntropyBroadcastTick sends the accumulated outgoing buffer plus a
// fresh anti-entropy digest to one neighbour per period, picked as the
// least-recently-updated alive neighbour so dissemination cycles evenly.
func (n *Node) antiEntropyBroadcastTick() {
	if !n.status.AliveIsh() {
		return
	}
	target, ok := n.neighbours.Oldest(StatusAlive)
	if !ok {
		return
	}
	events := n.outgoing.TakeAll()
	events = append(events, BuildAntiEntropy(n, n.cfg().Protocol.MaxAntiEntropyItems, nil))
	_, _ = n.composer.SendEvents(ToHostPort(target.Host, target.Port), events, false)
}

// joinRetryTick re-announces this node while it remains in join status
// without a confirmation
func (n *Node) joinRetryTick() {
	if n.status != StatusJoin {
		return
	}
	n.sendJoinRound()
}

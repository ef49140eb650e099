package swim

// CalcN is the dissemination fan-out:
// floor(log2(N)) for N>0, and 0 for N=1 (and N<=0, defensively).
func CalcN(clusterSize int) int {
	if clusterSize <= 1 {
		return 0
	}
	n := 0
	for clusterSize > 1 {
		clusterSize >>= 1
		n++
	}
	return n
}

// Join runs the join algorithm. It is only valid from
// stop or left status; any other status is a silent no-op. Join sets the
// status itself rather than going through canTransition, which lists
// only stop→join. A size-1 cluster skips
// dissemination entirely and goes straight to alive. Otherwise the node
// enters join status and announces itself to up to CalcN(cluster-size)
// known alive neighbours; confirmation (an Alive about self) arrives
// asynchronously through HandleAlive, and the join-retry scheduler task
// re-sends the announcement if no confirmation lands within the
// configured join timeout.
func (n *Node) Join() error {
	var err error
	n.act(func() {
		if n.status != StatusStop && n.status != StatusLeft {
			return
		}
		n.restartCounter++
		n.tx = 0

		if n.cluster.ClusterSize == 1 {
			n.neighbours.DeleteAll()
			n.status = StatusAlive
			return
		}

		n.status = StatusJoin
		n.sendJoinRound()
	})
	return err
}

// sendJoinRound announces this node to up to CalcN(cluster-size) alive
// neighbours. Called both from Join() and by the join-retry scheduler
// task while status remains join.
func (n *Node) sendJoinRound() {
	alive := n.neighbours.ByStatus(StatusAlive)
	fanout := CalcN(n.cluster.ClusterSize)
	if fanout > len(alive) {
		fanout = len(alive)
	}

	notified := make([]string, 0, fanout)
	for i := 0; i < fanout; i++ {
		ev, err := BuildJoin(n, n.host, n.port)
		if err != nil {
			continue
		}
		if _, serr := n.composer.SendEvent(ToHostPort(alive[i].Host, alive[i].Port), ev); serr == nil {
			notified = append(notified, alive[i].ID.String())
		}
	}
	n.tap("join", map[string]any{"notified-neighbours": notified})
}

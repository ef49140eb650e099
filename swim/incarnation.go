package swim

// Incarnation is the (restart-counter, tx) pair identifying a specific
// epoch of a node.
type Incarnation struct {
	RestartCounter uint64
	Tx             uint64
}

// SuitableRestartCounter reports whether candidate.RestartCounter is at
// least as fresh as local's
func SuitableRestartCounter(candidate, local *Incarnation) bool {
	if candidate == nil || local == nil {
		return false
	}
	return candidate.RestartCounter >= local.RestartCounter
}

// SuitableTx reports whether candidate is a strict improvement on local's
// tx, short-circuiting true if candidate's restart-counter already moved
// the epoch forward.
func SuitableTx(candidate, local *Incarnation) bool {
	if candidate == nil || local == nil {
		return false
	}
	if candidate.RestartCounter > local.RestartCounter {
		return true
	}
	return candidate.Tx > local.Tx
}

// SuitableIncarnation reports whether candidate is a strict improvement
// of an incarnation over the locally known one.
func SuitableIncarnation(candidate, local *Incarnation) bool {
	return SuitableRestartCounter(candidate, local) && SuitableTx(candidate, local)
}

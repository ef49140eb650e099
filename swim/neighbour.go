package swim

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Neighbour is one entry in a Node's neighbour table: a known peer's
// address and the incarnation-based (restart-counter, tx) freshness
// state used to decide whether new information about it is stale.
type Neighbour struct {
	ID             uuid.UUID
	Host           string
	Port           uint16
	Status         Status
	Access         Access
	RestartCounter uint64
	Tx             uint64
	Payload        map[string]string
	UpdatedAt      time.Time
}

// Incarnation returns the neighbour's current (restart-counter, tx) pair.
func (n Neighbour) Incarnation() Incarnation {
	return Incarnation{RestartCounter: n.RestartCounter, Tx: n.Tx}
}

// Digest renders the compact wire tuple for anti-entropy/upsert:
// [id, host, port, status-code, access-code, restart-counter, tx, payload].
func (n Neighbour) Digest() (id uuid.UUID, host string, port uint16, statusCode, accessCode uint8, restartCounter, tx uint64, payload map[string]string) {
	return n.ID, n.Host, n.Port, n.Status.Code(), n.Access.Code(), n.RestartCounter, n.Tx, n.Payload
}

// Table is the indexed set of neighbours a Node owns exclusively. Every
// mutating method is safe to call only from the node actor goroutine;
// Table itself carries a mutex only so read-only snapshot queries from
// other goroutines (metrics, HTTP debug) don't race with the actor. Every
// method, including those the actor calls, takes that mutex.
type Table struct {
	mu   sync.RWMutex
	self uuid.UUID
	m    map[uuid.UUID]*Neighbour
}

// NewTable creates an empty table that will never accept self as a key.
func NewTable(self uuid.UUID) *Table {
	return &Table{self: self, m: make(map[uuid.UUID]*Neighbour)}
}

// Len returns the number of known neighbours.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// Get looks a neighbour up by id.
func (t *Table) Get(id uuid.UUID) (Neighbour, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.m[id]
	if !ok {
		return Neighbour{}, false
	}
	return *n, true
}

// Upsert inserts or refreshes a neighbour:
//   - rejects id == self
//   - rejects growth past clusterSize-1 (len+1 > clusterSize) for a new id
//   - refreshes UpdatedAt unconditionally
//   - never lowers (restart-counter, tx): an update with a less-or-equal
//     pair still stores everything else (host/port/status/payload) but
//     leaves the higher incarinator fields alone — set-nb-tx and
//     set-nb-restart-counter are no-ops below the stored value.
func (t *Table) Upsert(n Neighbour, clusterSize int) error {
	if n.ID == t.self {
		return validationErr("invalid-neighbour-data", "neighbour id equals self")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing, ok := t.m[n.ID]
	if !ok {
		// clusterSize counts self plus every neighbour: the post-insert
		// neighbour count (len(t.m)+1) plus self must not exceed it.
		if len(t.m)+1+1 > clusterSize {
			return ErrClusterSizeExceeded
		}
		cp := n
		cp.UpdatedAt = time.Now()
		if cp.Payload == nil {
			cp.Payload = map[string]string{}
		}
		t.m[n.ID] = &cp
		return nil
	}

	existing.Host = n.Host
	existing.Port = n.Port
	existing.Status = n.Status
	existing.Access = n.Access
	if n.Payload != nil {
		existing.Payload = n.Payload
	}
	if n.RestartCounter > existing.RestartCounter {
		// A higher restart-counter starts a fresh tx epoch: the old tx
		// value no longer means anything, so adopt the incoming one
		// unconditionally instead of comparing against the stale epoch.
		existing.RestartCounter = n.RestartCounter
		existing.Tx = n.Tx
	} else if n.RestartCounter == existing.RestartCounter && n.Tx > existing.Tx {
		existing.Tx = n.Tx
	}
	existing.UpdatedAt = time.Now()
	return nil
}

// SetStatus sets a neighbour's status directly, used by handlers that
// have already validated the transition (suspect/alive/dead/left).
func (t *Table) SetStatus(id uuid.UUID, status Status) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.m[id]
	if !ok {
		return false
	}
	n.Status = status
	n.UpdatedAt = time.Now()
	return true
}

// SetTx sets a neighbour's tx, a no-op if newTx doesn't strictly improve
// on the stored value set-nb-tx.
func (t *Table) SetTx(id uuid.UUID, newTx uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.m[id]
	if !ok || newTx <= n.Tx {
		return false
	}
	n.Tx = newTx
	n.UpdatedAt = time.Now()
	return true
}

// SetRestartCounter sets a neighbour's restart-counter, a no-op if
// newRC doesn't strictly improve on the stored value.
func (t *Table) SetRestartCounter(id uuid.UUID, newRC uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.m[id]
	if !ok || newRC <= n.RestartCounter {
		return false
	}
	n.RestartCounter = newRC
	n.UpdatedAt = time.Now()
	return true
}

// SetAccess marks whether the last successful reach was direct or
// relayed set-nb-direct-access/set-nb-indirect-access.
func (t *Table) SetAccess(id uuid.UUID, access Access) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.m[id]
	if !ok {
		return false
	}
	n.Access = access
	return true
}

// Delete removes one neighbour, reporting whether it existed.
func (t *Table) Delete(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.m[id]; !ok {
		return false
	}
	delete(t.m, id)
	return true
}

// DeleteAll clears the table, returning the count removed.
func (t *Table) DeleteAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.m)
	t.m = make(map[uuid.UUID]*Neighbour)
	return n
}

// ByStatus returns every neighbour whose status is in the given set.
func (t *Table) ByStatus(statuses ...Status) []Neighbour {
	want := make(map[Status]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Neighbour, 0, len(t.m))
	for _, n := range t.m {
		if _, ok := want[n.Status]; ok {
			out = append(out, *n)
		}
	}
	return out
}

// All returns every known neighbour.
func (t *Table) All() []Neighbour {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Neighbour, 0, len(t.m))
	for _, n := range t.m {
		out = append(out, *n)
	}
	return out
}

// Oldest returns the neighbour with the smallest UpdatedAt, optionally
// filtered by status, used to pick victims and for liveness heuristics
//
func (t *Table) Oldest(statuses ...Status) (Neighbour, bool) {
	candidates := t.All()
	if len(statuses) > 0 {
		candidates = t.ByStatus(statuses...)
	}
	if len(candidates) == 0 {
		return Neighbour{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].UpdatedAt.Before(candidates[j].UpdatedAt)
	})
	return candidates[0], true
}

// Count returns the number of neighbours, optionally filtered by status.
func (t *Table) Count(statuses ...Status) int {
	if len(statuses) == 0 {
		return t.Len()
	}
	return len(t.ByStatus(statuses...))
}

// IDs returns every known neighbour id.
func (t *Table) IDs() []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(t.m))
	for id := range t.m {
		out = append(out, id)
	}
	return out
}

package swim

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redstarssystems/swim-sub000/config"
	"github.com/redstarssystems/swim-sub000/secure"
	"github.com/redstarssystems/swim-sub000/taps"
	"github.com/redstarssystems/swim-sub000/transport"
	"github.com/redstarssystems/swim-sub000/wire"
)

// pingAttempt tracks one outstanding direct ping
type pingAttempt struct {
	event     wire.Ping
	attempt   uint32
	createdAt time.Time
}

// indirectAttempt tracks one outstanding indirect-ping escalation.
type indirectAttempt struct {
	event     wire.IndirectPing
	createdAt time.Time
}

// Node is the protocol actor: a single goroutine (run) owns every
// mutable field below; all other access goes through the cmdCh mailbox
// so reads and writes of neighbour/ping-round state never race.
type Node struct {
	id   uuid.UUID
	host string
	port uint16

	cluster        *Cluster
	status         Status
	restartCounter uint64
	tx             uint64

	neighbours         *Table
	outgoing           *Outgoing
	pingRoundBuffer    []uuid.UUID
	pingEvents         map[uuid.UUID]*pingAttempt
	indirectPingEvents map[uuid.UUID]*indirectAttempt
	probeEvents        map[uuid.UUID]*wire.ProbeAck
	payload            *Payload

	live       *config.Live
	tr         transport.Transport
	composer   *Composer
	dispatcher *Dispatcher
	scheduler  *Scheduler
	sink       taps.Sink

	joinWaiters []chan struct{}

	cmdCh   chan func()
	quit    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewNode constructs a Node in stop status lifecycle.
func NewNode(live *config.Live, cluster *Cluster, host string, port uint16, tr transport.Transport, sink taps.Sink) (*Node, error) {
	if sink == nil {
		sink = taps.Discard
	}
	cfg := live.Get()
	codec, err := secure.New(cluster.SecretKey())
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	table := NewTable(id)

	n := &Node{
		id:                 id,
		host:               host,
		port:               port,
		cluster:            cluster,
		status:             StatusStop,
		neighbours:         table,
		outgoing:           NewOutgoing(),
		pingEvents:         make(map[uuid.UUID]*pingAttempt),
		indirectPingEvents: make(map[uuid.UUID]*indirectAttempt),
		probeEvents:        make(map[uuid.UUID]*wire.ProbeAck),
		payload:            NewPayload(cfg.Protocol.MaxPayloadSize),
		live:               live,
		tr:                 tr,
		scheduler:          NewScheduler(),
		sink:               sink,
		cmdCh:              make(chan func(), 256),
		quit:               make(chan struct{}),
	}
	n.composer = NewComposer(codec, tr, table, cfg.Protocol.MaxUDPSize)
	n.dispatcher = NewDispatcher(codec, sink, id)
	return n, nil
}

// --- identity interface, used by builders.go ---

func (n *Node) SelfID() uuid.UUID       { return n.id }
func (n *Node) RestartCounter() uint64  { return n.restartCounter }
func (n *Node) Neighbours() *Table      { return n.neighbours }

// NextTx increments and returns the node's tx. Only ever called from the
// actor goroutine (builders are invoked from handlers or from commands
// run on the actor), so it needs no atomics
func (n *Node) NextTx() uint64 {
	n.tx++
	return n.tx
}

func (n *Node) tap(cmd string, data any) {
	n.sink.Emit(taps.Event{Cmd: cmd, NodeID: n.id, Ts: time.Now(), Data: data})
}

func (n *Node) cfg() config.Config { return n.live.Get() }

// act runs fn on the actor goroutine and blocks until it completes.
func (n *Node) act(fn func()) {
	done := make(chan struct{})
	n.cmdCh <- func() {
		fn()
		close(done)
	}
	<-done
}

// post enqueues fn to run on the actor goroutine without waiting,
// used by scheduler ticks so a slow tick never backs up the timer.
func (n *Node) post(fn func()) {
	select {
	case n.cmdCh <- fn:
	default:
		// mailbox full: drop the tick rather than block the scheduler,
		// matching the bounded-channel posture used throughout.
	}
}

// Start transitions the node into its actor loop. The node begins in
// stop status; callers call Join afterward to enter the cluster (or, for
// a size-1 cluster, Join moves it straight to alive).
func (n *Node) Start() error {
	if n.running {
		return nil
	}
	n.running = true
	n.startSchedule()
	n.wg.Add(1)
	go n.run()
	return nil
}

func (n *Node) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.quit:
			return
		case fn := <-n.cmdCh:
			fn()
		case dg := <-n.tr.Inbound():
			n.dispatcher.Dispatch(dg.Data, n)
		}
	}
}

// Stop halts the scheduler and actor loop and releases the transport.
func (n *Node) Stop() error {
	n.act(func() {
		n.status = StatusStop
		n.scheduler.StopAll()
		n.running = false
	})
	close(n.quit)
	n.wg.Wait()
	return n.tr.Close()
}

// --- getters, snapshot ---

// Snapshot is an immutable, consistent view of Node state for external
// readers (metrics, HTTP debug surface) "read message
// or atomically published snapshot" guidance.
type Snapshot struct {
	ID             uuid.UUID
	Host           string
	Port           uint16
	Status         Status
	RestartCounter uint64
	Tx             uint64
	ClusterSize    int
	Neighbours     []Neighbour
}

// Snapshot returns a consistent point-in-time view of the node.
func (n *Node) Snapshot() Snapshot {
	var s Snapshot
	n.act(func() {
		s = Snapshot{
			ID: n.id, Host: n.host, Port: n.port, Status: n.status,
			RestartCounter: n.restartCounter, Tx: n.tx,
			ClusterSize: n.cluster.ClusterSize, Neighbours: n.neighbours.All(),
		}
	})
	return s
}

// Status returns the node's current status.
func (n *Node) Status() Status {
	var s Status
	n.act(func() { s = n.status })
	return s
}

// SetStatus applies a validated local status transition.
func (n *Node) SetStatus(target Status) error {
	var err error
	n.act(func() {
		if !canTransition(n.status, target) {
			err = validationErr("invalid-status-transition", n.status.String()+"->"+target.String())
			return
		}
		n.status = target
	})
	return err
}

// SetCluster replaces the cluster, only while stopped
func (n *Node) SetCluster(c *Cluster) error {
	var err error
	n.act(func() {
		if n.status != StatusStop {
			err = validationErr("invalid-cluster-data", "cluster reassignment only allowed while stopped")
			return
		}
		n.cluster = c
		codec, cerr := secure.New(c.SecretKey())
		if cerr != nil {
			err = cerr
			return
		}
		n.dispatcher = NewDispatcher(codec, n.sink, n.id)
		n.composer = NewComposer(codec, n.tr, n.neighbours, n.cfg().Protocol.MaxUDPSize)
	})
	return err
}

// SetClusterSize updates the cluster size and disseminates the change,
// NewClusterSize handling.
func (n *Node) SetClusterSize(newSize int) error {
	var err error
	n.act(func() {
		if newSize < 1 {
			err = validationErr("invalid-cluster-data", "cluster-size must be >= 1")
			return
		}
		old := n.cluster.ClusterSize
		n.cluster.ClusterSize = newSize
		ev, berr := BuildNewClusterSize(n, uint32(old), uint32(newSize))
		if berr != nil {
			err = berr
			return
		}
		n.outgoing.Put(ev)
	})
	return err
}

// SetPayload stores key=value in the node's own bounded payload.
func (n *Node) SetPayload(key, value string) error {
	var err error
	n.act(func() { err = n.payload.Set(key, value) })
	return err
}

// Probe sends a bootstrap Probe to host:port without requiring the node
// to be alive-ish
func (n *Node) Probe(host string, port uint16) (uuid.UUID, error) {
	var key uuid.UUID
	var err error
	n.act(func() {
		ev, berr := BuildProbe(n, n.host, n.port, host, port)
		if berr != nil {
			err = berr
			return
		}
		n.probeEvents[ev.ProbeKey] = nil
		if _, serr := n.composer.SendEvent(ToHostPort(host, port), ev); serr != nil {
			err = serr
			return
		}
		key = ev.ProbeKey
	})
	return key, err
}

// ProbeResult returns the stored ProbeAck for key, if one has arrived.
func (n *Node) ProbeResult(key uuid.UUID) (*wire.ProbeAck, bool) {
	var ack *wire.ProbeAck
	var ok bool
	n.act(func() {
		ack, ok = n.probeEvents[key]
		ok = ok && ack != nil
	})
	return ack, ok
}

// SendEvent composes and sends one event with no anti-entropy attached.
func (n *Node) SendEvent(dest Destination, e wire.Event) (int, error) {
	var bytesSent int
	var err error
	n.act(func() { bytesSent, err = n.composer.SendEvent(dest, e) })
	return bytesSent, err
}

// SendEventAE composes and sends one event plus a fresh anti-entropy digest.
func (n *Node) SendEventAE(dest Destination, e wire.Event) (int, error) {
	var bytesSent int
	var err error
	n.act(func() {
		bytesSent, err = n.composer.SendEventAE(n, dest, e, n.cfg().Protocol.MaxAntiEntropyItems)
	})
	return bytesSent, err
}

// SendEvents composes and sends an explicit vector of events.
func (n *Node) SendEvents(dest Destination, events []wire.Event) (int, error) {
	var bytesSent int
	var err error
	n.act(func() { bytesSent, err = n.composer.SendEvents(dest, events, false) })
	return bytesSent, err
}

// Leave gracefully transitions alive->left and disseminates a Left event.
func (n *Node) Leave() error {
	var err error
	n.act(func() {
		if n.status != StatusAlive {
			err = validationErr("invalid-status-transition", "leave requires alive status")
			return
		}
		n.status = StatusLeft
		left := BuildLeft(n)
		for _, nb := range n.neighbours.ByStatus(StatusAlive, StatusSuspect) {
			_, _ = n.composer.SendEvent(ToHostPort(nb.Host, nb.Port), left)
		}
	})
	return err
}

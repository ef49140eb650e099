package transport

import "sync"

// registry wires Memory transports addressed by host:port together
// without touching a real socket, so protocol tests can run many nodes
// in one process deterministically.
type registry struct {
	mu   sync.Mutex
	byHP map[string]*Memory
}

func key(host string, port uint16) string {
	return host + ":" + itoa(port)
}

func itoa(port uint16) string {
	if port == 0 {
		return "0"
	}
	digits := [5]byte{}
	i := len(digits)
	p := port
	for p > 0 {
		i--
		digits[i] = byte('0' + p%10)
		p /= 10
	}
	return string(digits[i:])
}

// NewRegistry creates a shared switchboard for Memory transports.
func NewRegistry() *registry {
	return &registry{byHP: make(map[string]*Memory)}
}

// Memory is an in-process Transport implementation, used by tests that
// need multiple simulated nodes without opening real sockets.
type Memory struct {
	reg     *registry
	host    string
	port    uint16
	inbound chan Datagram
	closed  bool
	mu      sync.Mutex
}

// NewMemory registers a Memory transport at host:port on reg.
func NewMemory(reg *registry, host string, port uint16) *Memory {
	m := &Memory{reg: reg, host: host, port: port, inbound: make(chan Datagram, 1024)}
	reg.mu.Lock()
	reg.byHP[key(host, port)] = m
	reg.mu.Unlock()
	return m
}

// Send implements Transport.
func (m *Memory) Send(host string, port uint16, data []byte) error {
	m.reg.mu.Lock()
	dst, ok := m.reg.byHP[key(host, port)]
	m.reg.mu.Unlock()
	if !ok {
		return nil // unknown destination: datagram is simply lost, like real UDP
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	dst.mu.Lock()
	closed := dst.closed
	dst.mu.Unlock()
	if closed {
		return nil
	}

	select {
	case dst.inbound <- Datagram{Host: m.host, Port: m.port, Data: cp}:
	default:
	}
	return nil
}

// Inbound implements Transport.
func (m *Memory) Inbound() <-chan Datagram { return m.inbound }

// LocalPort implements Transport.
func (m *Memory) LocalPort() uint16 { return m.port }

// Close implements Transport.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		m.reg.mu.Lock()
		delete(m.reg.byHP, key(m.host, m.port))
		m.reg.mu.Unlock()
	}
	return nil
}

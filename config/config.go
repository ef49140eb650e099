// Package config holds the process-wide, overridable protocol
// configuration, loadable from a TOML daemon config file.
package config

import (
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Protocol carries every tunable governing ping cadence, timeouts, and
// dissemination limits.
type Protocol struct {
	MaxUDPSize            int `toml:"max_udp_size"`
	MaxPayloadSize         int `toml:"max_payload_size"`
	MaxAntiEntropyItems    int `toml:"max_anti_entropy_items"`
	PingIntervalMs         int `toml:"ping_interval_ms"`
	AckTimeoutMs           int `toml:"ack_timeout_ms"`
	IndirectAckTimeoutMs   int `toml:"indirect_ack_timeout_ms"`
	SuspectTimeoutMs       int `toml:"suspect_timeout_ms"`
	DeadRetentionMs        int `toml:"dead_retention_ms"`
	DirectPingMaxAttempts  int `toml:"direct_ping_max_attempts"`
	IndirectPingFanout     int `toml:"indirect_ping_fanout"`
	JoinTimeoutMs          int `toml:"join_timeout_ms"`
}

// Cluster is the on-disk shape of the cluster section of the config file.
type Cluster struct {
	ID          string   `toml:"id"`
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Namespace   string   `toml:"namespace"`
	SecretToken string   `toml:"secret_token"`
	ClusterSize int      `toml:"cluster_size"`
	Tags        []string `toml:"tags"`
}

// Node is the on-disk shape of the node section of the config file.
type Node struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Config is the full process-wide configuration.
type Config struct {
	Protocol Protocol `toml:"protocol"`
	Cluster  Cluster  `toml:"cluster"`
	Node     Node     `toml:"node"`
}

// Default returns the built-in defaults
func Default() Config {
	return Config{
		Protocol: Protocol{
			MaxUDPSize:            1432,
			MaxPayloadSize:        256,
			MaxAntiEntropyItems:   2,
			PingIntervalMs:        1000,
			AckTimeoutMs:          500,
			IndirectAckTimeoutMs:  500,
			SuspectTimeoutMs:      5000,
			DeadRetentionMs:       60000,
			DirectPingMaxAttempts: 1,
			IndirectPingFanout:    3,
			JoinTimeoutMs:         3000,
		},
		Node: Node{
			Host: "127.0.0.1",
			Port: 5376,
		},
	}
}

// PingInterval etc. convert the millisecond config fields to time.Duration
// for use by the scheduler.
func (p Protocol) PingInterval() time.Duration        { return time.Duration(p.PingIntervalMs) * time.Millisecond }
func (p Protocol) AckTimeout() time.Duration           { return time.Duration(p.AckTimeoutMs) * time.Millisecond }
func (p Protocol) IndirectAckTimeout() time.Duration   { return time.Duration(p.IndirectAckTimeoutMs) * time.Millisecond }
func (p Protocol) SuspectTimeout() time.Duration       { return time.Duration(p.SuspectTimeoutMs) * time.Millisecond }
func (p Protocol) DeadRetention() time.Duration        { return time.Duration(p.DeadRetentionMs) * time.Millisecond }
func (p Protocol) JoinTimeout() time.Duration          { return time.Duration(p.JoinTimeoutMs) * time.Millisecond }

// Load reads a TOML configuration file over Default(): keys absent from
// the file keep their default values, keys present (even as zero) win.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Live is a process-wide, mutex-guarded configuration cell
// ("replaceable at runtime under an explicit mutex or cell").
type Live struct {
	mu  sync.RWMutex
	cfg Config
}

// NewLive wraps a starting configuration for runtime replacement.
func NewLive(cfg Config) *Live {
	return &Live{cfg: cfg}
}

// Get returns a copy of the current configuration.
func (l *Live) Get() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Set replaces the current configuration.
func (l *Live) Set(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cfg = cfg
}

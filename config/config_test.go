package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Protocol.MaxUDPSize != 1432 {
		t.Errorf("MaxUDPSize = %d, want 1432", cfg.Protocol.MaxUDPSize)
	}
	if cfg.Protocol.MaxPayloadSize != 256 {
		t.Errorf("MaxPayloadSize = %d, want 256", cfg.Protocol.MaxPayloadSize)
	}
	if cfg.Protocol.MaxAntiEntropyItems != 2 {
		t.Errorf("MaxAntiEntropyItems = %d, want 2", cfg.Protocol.MaxAntiEntropyItems)
	}
	if cfg.Protocol.IndirectPingFanout != 3 {
		t.Errorf("IndirectPingFanout = %d, want 3", cfg.Protocol.IndirectPingFanout)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swimd.toml")
	contents := `
[protocol]
max_udp_size = 512
ping_interval_ms = 2000

[cluster]
name = "test-cluster"
cluster_size = 5
secret_token = "s3cr3t"

[node]
host = "0.0.0.0"
port = 6000
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Protocol.MaxUDPSize != 512 {
		t.Errorf("MaxUDPSize = %d, want 512", cfg.Protocol.MaxUDPSize)
	}
	if cfg.Cluster.Name != "test-cluster" {
		t.Errorf("Cluster.Name = %q, want test-cluster", cfg.Cluster.Name)
	}
	if cfg.Node.Port != 6000 {
		t.Errorf("Node.Port = %d, want 6000", cfg.Node.Port)
	}
	// Fields not present in the file keep their defaults.
	if cfg.Protocol.MaxPayloadSize != 256 {
		t.Errorf("MaxPayloadSize = %d, want default 256", cfg.Protocol.MaxPayloadSize)
	}
}

func TestLiveGetSet(t *testing.T) {
	live := NewLive(Default())
	cfg := live.Get()
	cfg.Protocol.PingIntervalMs = 42
	live.Set(cfg)

	if got := live.Get().Protocol.PingIntervalMs; got != 42 {
		t.Errorf("PingIntervalMs = %d, want 42", got)
	}
}

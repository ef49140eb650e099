package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/redstarssystems/swim-sub000/config"
	"github.com/redstarssystems/swim-sub000/swim"
	"github.com/redstarssystems/swim-sub000/taps"
	"github.com/redstarssystems/swim-sub000/transport"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "swimd",
	Short:        "Run or probe a cluster-membership node",
	Long:         `swimd runs a SWIM-family cluster-membership node, or probes one as a one-shot diagnostic.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "swimd.toml", "path to the node's TOML configuration file")
}

// Execute adds all child commands to the root command and runs it. It is
// called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildNode loads configPath (falling back to built-in defaults for
// anything the file doesn't set) and constructs a Node plus its
// transport and tap sink, ready to Start.
func buildNode() (*swim.Node, *config.Live, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		cfg = config.Default()
	}
	live := config.NewLive(cfg)

	cluster, err := swim.NewCluster(cfg.Cluster.Name, cfg.Cluster.Description, cfg.Cluster.Namespace, cfg.Cluster.SecretToken, cfg.Cluster.ClusterSize, cfg.Cluster.Tags)
	if err != nil {
		return nil, nil, fmt.Errorf("build cluster: %w", err)
	}
	if cfg.Cluster.ID != "" {
		id, perr := uuid.Parse(cfg.Cluster.ID)
		if perr != nil {
			return nil, nil, fmt.Errorf("parse cluster id: %w", perr)
		}
		cluster.ID = id
	}

	tr, err := transport.Listen(cfg.Node.Host, uint16(cfg.Node.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("listen: %w", err)
	}

	sink := taps.Multi{taps.NewRing(1024), taps.NewPrometheus(prometheus.DefaultRegisterer)}

	node, err := swim.NewNode(live, cluster, cfg.Node.Host, uint16(cfg.Node.Port), tr, sink)
	if err != nil {
		_ = tr.Close()
		return nil, nil, fmt.Errorf("build node: %w", err)
	}
	return node, live, nil
}

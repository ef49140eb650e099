package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe <host> <port>",
	Short: "Send a one-shot bootstrap probe and print the reply",
	Args:  cobra.ExactArgs(2),
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	port, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[1], err)
	}

	node, live, err := buildNode()
	if err != nil {
		return err
	}
	if err := node.Start(); err != nil {
		return err
	}
	defer node.Stop()

	key, err := node.Probe(args[0], uint16(port))
	if err != nil {
		return err
	}

	timeout := live.Get().Protocol.AckTimeout()
	deadline := time.Now().Add(timeout + time.Second)
	for time.Now().Before(deadline) {
		if ack, ok := node.ProbeResult(key); ok {
			if ack == nil {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			fmt.Printf("alive from=%s restart-counter=%d tx=%d status=%d\n",
				ack.ID, ack.RestartCounter, ack.Tx, ack.Status)
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	return fmt.Errorf("no probe-ack received from %s:%d within %s", args[0], port, timeout)
}

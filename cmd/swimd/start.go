package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/redstarssystems/swim-sub000/httpapi"
)

var (
	seedAddr string
	httpAddr string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the node daemon: join the cluster and serve the debug HTTP API",
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&seedAddr, "seed", "", "host:port of an existing member to bootstrap from (omit for a size-1 cluster)")
	startCmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "address the debug HTTP API listens on")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	node, _, err := buildNode()
	if err != nil {
		return err
	}
	if err := node.Start(); err != nil {
		return err
	}

	if seedAddr != "" {
		host, portStr, err := net.SplitHostPort(seedAddr)
		if err != nil {
			return err
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return err
		}
		if _, err := node.Probe(host, uint16(port)); err != nil {
			log.Printf("swimd: seed probe failed: %v", err)
		}
		// Give the probe ack a moment to populate the neighbour table
		// before announcing ourselves; this is a thin bootstrap
		// convenience, not a protocol guarantee.
		time.Sleep(200 * time.Millisecond)
	}

	if err := node.Join(); err != nil {
		return err
	}

	srv := &http.Server{Addr: httpAddr, Handler: httpapi.NewServer(node).Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("swimd: http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := node.Leave(); err != nil {
		log.Printf("swimd: leave: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	return node.Stop()
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var dumpAddr string

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Query a running daemon's debug HTTP API and print its status",
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpAddr, "addr", "http://127.0.0.1:8080", "base URL of the daemon's debug HTTP API")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	status, err := fetchPretty(client, dumpAddr+"/status")
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	fmt.Println("status:")
	fmt.Println(status)

	neighbours, err := fetchPretty(client, dumpAddr+"/neighbours")
	if err != nil {
		return fmt.Errorf("fetch neighbours: %w", err)
	}
	fmt.Println("neighbours:")
	fmt.Println(neighbours)

	return nil
}

func fetchPretty(client *http.Client, url string) (string, error) {
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %s", resp.Status, string(body))
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body), nil
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(body), nil
	}
	return string(pretty), nil
}

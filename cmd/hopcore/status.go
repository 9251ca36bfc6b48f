package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var statusAddr string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a running node's status",
		Long: `Queries a running hopcore node's /healthz endpoint and prints its
status: public key, bootstrap mode, listen address, and connection
counts.

The node must have been started with --status-address for this to
have anything to query.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			url := fmt.Sprintf("http://%s/healthz", statusAddr)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("connect to node: %w", err)
			}
			defer resp.Body.Close()

			var status struct {
				Status          string `json:"status"`
				Running         bool   `json:"running"`
				PublicKey       string `json:"public_key"`
				IsBootstrapNode bool   `json:"is_bootstrap_node"`
				ListenAddress   string `json:"listen_address"`
				InboundStreams  int    `json:"inbound_streams"`
				OutboundPeers   int    `json:"outbound_peers"`
				BytesRelayed    uint64 `json:"bytes_relayed"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			fmt.Println("Node Status")
			fmt.Println("===========")
			fmt.Printf("Status:          %s\n", status.Status)
			fmt.Printf("Running:         %v\n", status.Running)
			fmt.Printf("Public Key:      %s\n", status.PublicKey)
			fmt.Printf("Bootstrap Node:  %v\n", status.IsBootstrapNode)
			fmt.Printf("Listen Address:  %s\n", status.ListenAddress)
			fmt.Printf("Inbound Streams: %d\n", status.InboundStreams)
			fmt.Printf("Outbound Peers:  %d\n", status.OutboundPeers)
			fmt.Printf("Bytes Relayed:   %s\n", humanize.Bytes(status.BytesRelayed))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusAddr, "status-address", "127.0.0.1:9091", "address of the running node's status endpoint")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print status as JSON")

	return cmd
}

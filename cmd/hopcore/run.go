package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hopcore/hopcore/internal/config"
	"github.com/hopcore/hopcore/internal/node"
)

func runCmd() *cobra.Command {
	var configPath string
	var metricsAddr string
	var statusAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hopcore relay node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			n, err := node.New(cfg)
			if err != nil {
				return fmt.Errorf("create node: %w", err)
			}

			fmt.Printf("Starting hopcore node...\n")
			fmt.Printf("Public key: %s\n", n.PublicKey().String())
			fmt.Printf("Listening:  %s\n", cfg.Listen.Address)
			if cfg.Node.IsBootstrapNode {
				fmt.Println("Mode:       bootstrap")
			}

			if metricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				go func() {
					_ = http.ListenAndServe(metricsAddr, mux)
				}()
				fmt.Printf("Metrics:    http://%s/metrics\n", metricsAddr)
			}

			if statusAddr != "" {
				mux := http.NewServeMux()
				mux.HandleFunc("/healthz", n.HealthHandler())
				go func() {
					_ = http.ListenAndServe(statusAddr, mux)
				}()
				fmt.Printf("Status:     http://%s/healthz\n", statusAddr)
			}

			runCtx, cancel := context.WithCancel(context.Background())
			defer cancel()

			runErrCh := make(chan error, 1)
			go func() { runErrCh <- n.Run(runCtx) }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigCh:
				fmt.Printf("\nReceived signal %v, shutting down...\n", sig)
			case err := <-runErrCh:
				return err
			}

			cancel()

			shutdownTimer := time.NewTimer(10 * time.Second)
			defer shutdownTimer.Stop()
			select {
			case err := <-runErrCh:
				if err != nil && err != context.Canceled {
					return err
				}
				fmt.Println("Node stopped.")
				return nil
			case <-shutdownTimer.C:
				return fmt.Errorf("timed out waiting for node to stop")
			}
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "./hopcore.yaml", "path to the node configuration file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-address", "", "if set, serve Prometheus metrics on this address (e.g. 127.0.0.1:9090)")
	cmd.Flags().StringVar(&statusAddr, "status-address", "", "if set, serve a /healthz status endpoint on this address (e.g. 127.0.0.1:9091)")

	return cmd
}

// Package main provides the CLI entry point for the livebridge daemon.
//
// livebridge exposes an Ableton Live session to AI agents over stdio.
// Tool calls arrive on stdin, get validated and routed to the Live
// remote script over TCP, to the Max for Live bridge device over OSC,
// or to the realtime UDP channel, and the result goes back on stdout.
//
// # Basic Usage
//
// Start the daemon (normally done by the agent host, not by hand):
//
//	livebridge serve --config livebridge.yaml
//
// Check a running instance:
//
//	livebridge status
//
// # Environment Variables
//
//   - LIVEBRIDGE_CONFIG: path to the configuration file
//   - LIVEBRIDGE_TCP_PORT / LIVEBRIDGE_UDP_RT_PORT: remote script ports
//   - LIVEBRIDGE_OSC_SEND_PORT / LIVEBRIDGE_OSC_RECV_PORT: bridge ports
//   - LIVEBRIDGE_BRIDGE_ENABLED: enable the Max for Live bridge
//   - LIVEBRIDGE_DASHBOARD_ENABLED / LIVEBRIDGE_DASHBOARD_PORT: dashboard
//   - LIVEBRIDGE_SENTINEL_PORT: singleton guard port
//   - LIVEBRIDGE_CATALOG_DIR: browser catalog snapshot directory
//   - LIVEBRIDGE_LOG_LEVEL: debug, info, warn, error
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/livebridge/internal/config"
	"github.com/haasonsaas/livebridge/internal/observability"
	"github.com/haasonsaas/livebridge/internal/server"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"     // Semantic version (e.g., "v1.0.0")
	commit  = "none"    // Git commit SHA
	date    = "unknown" // Build timestamp
)

// Exit codes, stable for service managers.
const (
	exitOK             = 0
	exitError          = 1
	exitAlreadyRunning = 2
	exitPortBind       = 3
	exitConfig         = 4
)

var errConfig = errors.New("configuration error")

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		switch {
		case errors.Is(err, server.ErrAlreadyRunning):
			return exitAlreadyRunning
		case errors.Is(err, server.ErrDashboardBind):
			return exitPortBind
		case errors.Is(err, errConfig):
			return exitConfig
		default:
			return exitError
		}
	}
	return exitOK
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "livebridge",
		Short: "livebridge - AI agent bridge for Ableton Live",
		Long: `livebridge connects AI agents to Ableton Live.

The agent surface is stdio; the DAW side is the remote script's
TCP/UDP sockets plus an optional Max for Live OSC bridge for hidden
parameters and audio analysis.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		// Errors are mapped to exit codes in run; cobra must not print twice.
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildStatusCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func configPathFlag(cmd *cobra.Command, target *string) {
	def := os.Getenv("LIVEBRIDGE_CONFIG")
	cmd.Flags().StringVarP(target, "config", "c", def, "Path to YAML configuration file")
}

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("%w: %v", errConfig, err)
			}

			// stdout carries the agent protocol; all logging goes to stderr.
			logger := observability.NewLogger(observability.LogConfig{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: os.Stderr,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			daemon := server.New(cfg, version, logger, observability.NewMetrics())
			if err := daemon.Run(ctx, os.Stdin, os.Stdout); err != nil {
				logger.Error("daemon exited", "error", err)
				return err
			}
			return nil
		},
	}
	configPathFlag(cmd, &configPath)
	return cmd
}

func buildStatusCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a daemon is running and what it can reach",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("%w: %v", errConfig, err)
			}
			out := cmd.OutOrStdout()

			// The sentinel port answers "is it running" even with the
			// dashboard off.
			sentinel := fmt.Sprintf("127.0.0.1:%d", cfg.Singleton.Port)
			conn, err := net.DialTimeout("tcp", sentinel, time.Second)
			if err != nil {
				fmt.Fprintln(out, "livebridge is not running")
				return nil
			}
			conn.Close()
			fmt.Fprintln(out, "livebridge is running")

			if !cfg.Dashboard.Enabled {
				fmt.Fprintln(out, "dashboard disabled; enable it for detailed status")
				return nil
			}

			url := fmt.Sprintf("http://%s:%d/api/status", cfg.Dashboard.Host, cfg.Dashboard.Port)
			client := &http.Client{Timeout: 2 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				fmt.Fprintf(out, "dashboard unreachable: %v\n", err)
				return nil
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			var status map[string]any
			if err := json.Unmarshal(body, &status); err != nil {
				return fmt.Errorf("bad status payload: %w", err)
			}
			pretty, _ := json.MarshalIndent(status, "", "  ")
			fmt.Fprintln(out, string(pretty))
			return nil
		},
	}
	configPathFlag(cmd, &configPath)
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "livebridge %s\ncommit: %s\nbuilt:  %s\n", version, commit, date)
		},
	}
}

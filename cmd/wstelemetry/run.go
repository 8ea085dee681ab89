package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/wstelemetry/internal/agent"
	"github.com/muurk/wstelemetry/internal/config"
	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/ui"
)

// Run command flags
var (
	runURL          string
	runDeviceID     string
	runReconnectMs  uint32
	runHeartbeatMs  uint32
	runAcceptKey    string
	runBackoff      string
	runLink         string
	runQueueSize    int
	runDiscoverFlag bool
	runInsecure     bool
	runTUI          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect and stream telemetry",
	Long: `Connect to the configured endpoint and stream telemetry until interrupted.

With --tui a live status view replaces log output. Without it, logs go to
stderr at the configured level.`,
	Example: `  # Use the config file
  wstelemetry run

  # Override the endpoint and watch the connection live
  wstelemetry run --url ws://192.168.1.20:8080/ingest --tui

  # Find a sink on the local network
  wstelemetry run --discover --log-level info`,
	RunE: runRun,
}

func init() {
	addClientFlags(runCmd)
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show a live status view")
}

// addClientFlags registers the flags that override config file values.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runURL, "url", "", "Endpoint URL (ws:// or wss://)")
	cmd.Flags().StringVar(&runDeviceID, "device-id", "", "Device ID reported in messages (default hostname)")
	cmd.Flags().Uint32Var(&runReconnectMs, "reconnect-ms", 0, "Reconnect interval in milliseconds")
	cmd.Flags().Uint32Var(&runHeartbeatMs, "heartbeat-ms", 0, "Heartbeat interval in milliseconds")
	cmd.Flags().StringVar(&runAcceptKey, "accept-key", "", "Sec-WebSocket-Accept check: strict, lenient or off")
	cmd.Flags().StringVar(&runBackoff, "backoff", "", "Reconnect backoff: fixed or exponential")
	cmd.Flags().StringVar(&runLink, "link", "", "Link detection: auto or always")
	cmd.Flags().IntVar(&runQueueSize, "queue-size", 0, "Readings held while disconnected (0 drops them)")
	cmd.Flags().BoolVar(&runDiscoverFlag, "discover", false, "Find the endpoint over mDNS when no URL is set")
	cmd.Flags().BoolVar(&runInsecure, "insecure", false, "Skip TLS certificate verification")
}

// applyClientFlags copies explicitly set flags onto cfg.
func applyClientFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.URL = runURL
	}
	if flags.Changed("device-id") {
		cfg.DeviceID = runDeviceID
	}
	if flags.Changed("reconnect-ms") {
		cfg.ReconnectIntervalMs = runReconnectMs
	}
	if flags.Changed("heartbeat-ms") {
		cfg.HeartbeatIntervalMs = runHeartbeatMs
	}
	if flags.Changed("accept-key") {
		cfg.AcceptKey = runAcceptKey
	}
	if flags.Changed("backoff") {
		cfg.Backoff = runBackoff
	}
	if flags.Changed("link") {
		cfg.Link = runLink
	}
	if flags.Changed("queue-size") {
		cfg.QueueSize = runQueueSize
	}
	if flags.Changed("discover") {
		cfg.Discover = runDiscoverFlag
	}
	if flags.Changed("insecure") {
		cfg.TLS.InsecureSkipVerify = runInsecure
	}
	cfg.ApplyDefaults()
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyClientFlags(cmd, cfg)

	if runTUI {
		if !ui.IsTerminal() {
			return fmt.Errorf("--tui needs a terminal")
		}
		// zap output would corrupt the live view
		logging.SetLogger(nil)
	} else if err := logging.Initialize(cfg.LogLevel); err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := agent.New(ctx, cfg, agent.Deps{})
	if err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	if runTUI {
		return ui.RunMonitor(a)
	}

	logging.Info("Streaming telemetry", zap.String("url", a.URL()))
	return a.Run(ctx)
}

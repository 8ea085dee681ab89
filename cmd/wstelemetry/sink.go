package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/sink"
	"github.com/muurk/wstelemetry/internal/ui"
)

// Sink command flags
var (
	sinkHost        string
	sinkPort        int
	sinkPath        string
	sinkCert        string
	sinkKey         string
	sinkAnalysisDir string
	sinkPing        time.Duration
	sinkAdvertise   bool
	sinkInstance    string
)

var sinkCmd = &cobra.Command{
	Use:   "sink",
	Short: "Run a development telemetry receiver",
	Long: `Start a WebSocket server that accepts telemetry clients and logs every
message by type.

To capture messages for analysis, use --analysis-dir; each run appends to a
capture-<timestamp>.jsonl file in that directory. --advertise registers the
sink over mDNS so clients started with --discover find it.`,
	Example: `  # Listen on port 8080 at /ingest
  wstelemetry sink --port 8080

  # Serve wss with your own certificate and capture messages
  wstelemetry sink --port 8443 --cert cert.pem --key key.pem --analysis-dir ./captures

  # Advertise over mDNS and ping clients every 10 seconds
  wstelemetry sink --advertise --ping 10s`,
	RunE: runSink,
}

func init() {
	sinkCmd.Flags().StringVar(&sinkHost, "host", "", "Listen address (empty = all interfaces)")
	sinkCmd.Flags().IntVar(&sinkPort, "port", 8080, "Listen port")
	sinkCmd.Flags().StringVar(&sinkPath, "path", sink.DefaultPath, "WebSocket endpoint path")
	sinkCmd.Flags().StringVar(&sinkCert, "cert", "", "Path to TLS certificate file (serves wss when set)")
	sinkCmd.Flags().StringVar(&sinkKey, "key", "", "Path to TLS private key file")
	sinkCmd.Flags().StringVar(&sinkAnalysisDir, "analysis-dir", "", "Directory to write message captures (disabled if not specified)")
	sinkCmd.Flags().DurationVar(&sinkPing, "ping", 30*time.Second, "Ping interval (0 disables)")
	sinkCmd.Flags().BoolVar(&sinkAdvertise, "advertise", false, "Advertise the sink over mDNS")
	sinkCmd.Flags().StringVar(&sinkInstance, "instance", "", "mDNS instance name (default hostname)")

	sinkCmd.AddCommand(sinkAnalyzeCmd)
}

var sinkAnalyzeCmd = &cobra.Command{
	Use:   "analyze <capture.jsonl>",
	Short: "Summarize a message capture",
	Long: `Read a capture file written with --analysis-dir and print message counts
by type and by device.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, skipped, err := sink.ReadCapture(args[0])
		if err != nil {
			return err
		}
		details := sink.Summarize(records).Details()
		if skipped > 0 {
			details["Unparsed lines"] = fmt.Sprintf("%d", skipped)
		}
		ui.NewPrinter(nil).PrintDetails(args[0], details)
		return nil
	},
}

func runSink(cmd *cobra.Command, args []string) error {
	if (sinkCert != "") != (sinkKey != "") {
		return fmt.Errorf("both --cert and --key must be provided together")
	}
	if sinkCert != "" {
		if _, err := os.Stat(sinkCert); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", sinkCert)
		}
		if _, err := os.Stat(sinkKey); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", sinkKey)
		}
	}

	level := logLevel
	if level == "" {
		level = os.Getenv(logging.LogLevelEnvVar)
	}
	if level == "" {
		level = "info"
	}
	if err := logging.Initialize(level); err != nil {
		return err
	}

	srv, err := sink.New(&sink.Config{
		Host:         sinkHost,
		Port:         sinkPort,
		Path:         sinkPath,
		CertPath:     sinkCert,
		KeyPath:      sinkKey,
		AnalysisDir:  sinkAnalysisDir,
		PingInterval: sinkPing,
		Advertise:    sinkAdvertise,
		Instance:     sinkInstance,
	})
	if err != nil {
		return fmt.Errorf("failed to create sink: %w", err)
	}

	return srv.Start()
}

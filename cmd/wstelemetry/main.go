// Wstelemetry is a WebSocket telemetry client for small devices.
//
// It keeps one WebSocket connection to a collector, reports sensor readings
// when they change and sends periodic heartbeats. A development sink and
// mDNS discovery are included for bench testing.
//
// Usage:
//
//	wstelemetry [command] [flags]
//
// See 'wstelemetry --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wstelemetry/internal/config"
	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "wstelemetry",
	Short: "WebSocket telemetry client",
	Long: `A minimal WebSocket client that streams sensor telemetry to a collector.

The client connects to a ws:// or wss:// endpoint, announces the device,
reports sensor values when they change and sends heartbeats. It reconnects
on its own when the link or the server goes away.

Configuration is read from a YAML file (see 'wstelemetry config path');
flags override file values.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: OS config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default from "+logging.LogLevelEnvVar)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sinkCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file, then applies the log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String("wstelemetry"))
	},
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wstelemetry/internal/discovery"
	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/ui"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find telemetry collectors on the local network",
	Long: `Browse mDNS for ` + discovery.ServiceType + ` services and print the endpoint URL
of every collector that answers within the timeout.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for answers")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout

	fmt.Printf("Scanning for %s services (%s)...\n", discovery.ServiceType, discoverTimeout)
	collectors, err := scanner.Scan(ctx)

	printer := ui.NewPrinter(nil)
	if err != nil {
		printer.PrintError("Discovery", err, []string{
			"Check that multicast is allowed on this network",
			"Make sure UDP port 5353 is not blocked by a firewall",
		})
		return err
	}
	if len(collectors) == 0 {
		printer.PrintError("Discovery", fmt.Errorf("no collectors answered"), []string{
			"Start one with 'wstelemetry sink --advertise'",
			"Increase --timeout",
		})
		return nil
	}

	found := make(map[string]string, len(collectors))
	for _, c := range collectors {
		found[c.Instance] = c.URL()
	}
	printer.PrintDetails(fmt.Sprintf("Found %d collector(s)", len(collectors)), found)
	return nil
}

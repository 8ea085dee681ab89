package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/muurk/wstelemetry/internal/agent"
	"github.com/muurk/wstelemetry/internal/ui"
)

var statusPlain bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration without connecting",
	Long: `Build the client from the config file and flags and print its status:
endpoint, TLS, intervals and sensors. No connection is attempted, except for
mDNS discovery when enabled and no URL is set.`,
	RunE: runStatus,
}

func init() {
	addClientFlags(statusCmd)
	statusCmd.Flags().BoolVar(&statusPlain, "plain", false, "Print plain text instead of a styled box")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyClientFlags(cmd, cfg)

	a, err := agent.New(context.Background(), cfg, agent.Deps{})
	if err != nil {
		return err
	}
	defer a.Close()

	if statusPlain || !ui.IsTerminal() {
		fmt.Print(a.Client().DumpStatus())
		return nil
	}
	ui.NewPrinter(nil).PrintStatus(a.Snapshot())
	return nil
}

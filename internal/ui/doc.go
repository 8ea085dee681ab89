// Package ui renders client status in the terminal using Bubble Tea and
// Lipgloss.
//
// Two output modes are provided:
//
//   - Printer: renders once and writes to stdout, used by the status, sink
//     and discover commands
//   - MonitorModel: a live view for "run --tui" that drives the agent from
//     its own tick message and redraws the status after every step
//
// # Live View
//
// The monitor steps the agent every tick interval, so the client loop and
// the display stay on one goroutine. A spinner marks the connecting states.
// "d" drops the connection (the client reconnects after its interval) and
// "q" disconnects and quits.
//
//	a, err := agent.New(ctx, cfg, agent.Deps{})
//	if err != nil {
//	    return err
//	}
//	return ui.RunMonitor(a)
//
// # Logging Integration
//
// zap output would corrupt the live view, so the run command only enables
// it when WSTELEMETRY_LOG_LEVEL is set and --tui is not.
package ui

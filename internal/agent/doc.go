// Package agent wires a configuration file into a running telemetry
// client: transport, link monitor, clocks, sensors and their sampler.
//
// The agent is single-threaded. Step polls due sensors and then ticks the
// client; Run calls Step on a ticker until its context is cancelled. The
// live status UI calls Step from its own tick message instead of Run.
package agent

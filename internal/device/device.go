// Package device describes the host the telemetry client runs on: its
// identity and the free-memory figure reported in heartbeats.
package device

import (
	"os"
	"runtime"
)

// Context carries device identity into the client. It is passed at
// construction rather than read from process globals.
type Context struct {
	// ID is reported as device_id in every telemetry message
	ID string

	// FreeMemory reports free memory in bytes for heartbeats. Nil reports 0.
	FreeMemory func() uint64
}

// Free returns the current free memory, or 0 when no source is set.
func (c Context) Free() uint64 {
	if c.FreeMemory == nil {
		return 0
	}
	return c.FreeMemory()
}

// Default returns a context for the local host. id overrides the hostname
// when non-empty.
func Default(id string) Context {
	if id == "" {
		id = Hostname()
	}
	return Context{ID: id, FreeMemory: HeapFree}
}

// Hostname returns the host name, or "wstelemetry" if it cannot be read.
func Hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "wstelemetry"
	}
	return name
}

// HeapFree reports heap memory the runtime holds but is not using and has
// not returned to the OS.
func HeapFree() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.HeapIdle < m.HeapReleased {
		return 0
	}
	return m.HeapIdle - m.HeapReleased
}

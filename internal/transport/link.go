package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Link modes
const (
	LinkAuto   = "auto"
	LinkAlways = "always"
)

// linkCacheTTL is how long an interface probe result is reused
const linkCacheTTL = time.Second

// LinkMonitor reports link availability by probing the host's network
// interfaces. Results are cached briefly so it can be polled every tick.
type LinkMonitor struct {
	probe func() bool
	now   func() time.Time

	mu      sync.Mutex
	checked time.Time
	up      bool
}

// NewLink returns the Link for a configured mode: "always" never reports
// the link down, "auto" (or empty) probes interfaces.
func NewLink(mode string) (Link, error) {
	switch mode {
	case LinkAlways:
		return Always{}, nil
	case "", LinkAuto:
		return NewLinkMonitor(HasRoutableInterface), nil
	default:
		return nil, fmt.Errorf("unknown link mode %q (expected auto or always)", mode)
	}
}

// NewLinkMonitor creates a monitor using probe.
func NewLinkMonitor(probe func() bool) *LinkMonitor {
	return &LinkMonitor{probe: probe, now: time.Now}
}

// Available returns the cached probe result, refreshing it when stale.
func (m *LinkMonitor) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.checked.IsZero() || now.Sub(m.checked) >= linkCacheTTL {
		m.up = m.probe()
		m.checked = now
	}
	return m.up
}

// HasRoutableInterface reports whether any interface other than loopback is
// up and has an address.
func HasRoutableInterface() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err == nil && len(addrs) > 0 {
			return true
		}
	}
	return false
}

package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/wstelemetry/internal/logging"
	"go.uber.org/zap"
)

const (
	// ServiceType is the mDNS service type telemetry collectors advertise
	ServiceType = "_wstelemetry._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for collector discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry carries no port
	DefaultPort = 80
)

// Scanner handles mDNS collector discovery
type Scanner struct {
	// Timeout is the maximum time to wait for collector discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Scan discovers all collectors on the local network until the timeout
// expires or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) ([]*Collector, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	var mu sync.Mutex
	found := make([]*Collector, 0)
	seen := make(map[string]bool)

	go func() {
		for entry := range entries {
			c := parseServiceEntry(entry)
			if c == nil {
				continue
			}
			mu.Lock()
			if !seen[c.URL()] {
				seen[c.URL()] = true
				found = append(found, c)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Collector(nil), found...), nil
}

// First returns the first collector that answers, or an error when none
// does within the timeout.
func (s *Scanner) First(ctx context.Context) (*Collector, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	result := make(chan *Collector, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			if c := parseServiceEntry(entry); c != nil {
				select {
				case result <- c:
				default:
				}
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case c := <-result:
		logging.Info("Discovered telemetry collector",
			zap.String("instance", c.Instance),
			zap.String("url", c.URL()))
		return c, nil
	case <-ctx.Done():
		select {
		case c := <-result:
			return c, nil
		default:
		}
		return nil, fmt.Errorf("no %s service found within %s", ServiceType, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Collector.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Collector {
	if entry == nil {
		return nil
	}

	// IPv6 literals cannot be expressed in an endpoint URL, so an
	// IPv6-only entry falls back to its hostname.
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = strings.TrimSuffix(entry.HostName, ".")
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	path := metadata["path"]
	if path == "" {
		path = "/"
	}

	return &Collector{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Path:         path,
		Secure:       metadata["tls"] == "1",
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// Advertisement is a registered mDNS service
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers a collector under ServiceType so clients with
// discovery enabled can find it.
func Advertise(instance string, port int, path string, secure bool) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, TXTRecords(path, secure), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising telemetry collector",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
		zap.String("path", path))

	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement. Safe to call on nil.
func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}

// Discover is a convenience function returning the URL of the first
// collector found within timeout.
func Discover(ctx context.Context, timeout time.Duration) (string, error) {
	scanner := NewScanner()
	if timeout > 0 {
		scanner.Timeout = timeout
	}
	c, err := scanner.First(ctx)
	if err != nil {
		return "", err
	}
	return c.URL(), nil
}

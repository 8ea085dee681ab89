package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/wstelemetry/internal/client"
	"github.com/muurk/wstelemetry/internal/clock"
	"github.com/muurk/wstelemetry/internal/config"
	"github.com/muurk/wstelemetry/internal/device"
	"github.com/muurk/wstelemetry/internal/discovery"
	"github.com/muurk/wstelemetry/internal/logging"
	"github.com/muurk/wstelemetry/internal/protocol"
	"github.com/muurk/wstelemetry/internal/sensor"
	"github.com/muurk/wstelemetry/internal/transport"
	"go.uber.org/zap"
)

// Deps overrides the host collaborators. Zero values select the real ones.
type Deps struct {
	Dialer   transport.Dialer
	Link     transport.Link
	Clock    clock.Monotonic
	Wall     clock.Wall
	Discover func(ctx context.Context) (string, error)

	// OnMessage receives server messages
	OnMessage func(opcode protocol.Opcode, payload []byte)
}

// Agent owns one client and the sensors feeding it, and drives both from a
// single loop.
type Agent struct {
	cfg     *config.Config
	url     string
	clock   clock.Monotonic
	client  *client.Client
	sampler *sensor.Sampler
	sources []sensor.Source
	tick    time.Duration
}

// New builds an agent from cfg. When cfg has no URL and discovery is
// enabled, the endpoint is looked up over mDNS first, which blocks until
// ctx is done or the scan times out.
func New(ctx context.Context, cfg *config.Config, deps Deps) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	url := cfg.URL
	if url == "" {
		discover := deps.Discover
		if discover == nil {
			discover = func(ctx context.Context) (string, error) {
				return discovery.Discover(ctx, 0)
			}
		}
		found, err := discover(ctx)
		if err != nil {
			return nil, fmt.Errorf("endpoint discovery failed: %w", err)
		}
		url = found
	}

	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Wall == nil {
		deps.Wall = clock.NewSystemWall()
	}
	if deps.Link == nil {
		link, err := transport.NewLink(cfg.Link)
		if err != nil {
			return nil, err
		}
		deps.Link = link
	}
	if deps.Dialer == nil {
		tlsConfig, err := transport.NewTLSConfig(transport.TLSOptions{
			CAFile:             cfg.TLS.CAFile,
			ServerName:         cfg.TLS.ServerName,
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		})
		if err != nil {
			return nil, err
		}
		deps.Dialer = transport.NewTCPDialer(tlsConfig)
	}

	policy, err := cfg.AcceptPolicy()
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:     cfg,
		url:     url,
		clock:   deps.Clock,
		sampler: sensor.NewSampler(deps.Clock),
		tick:    time.Duration(cfg.TickIntervalMs) * time.Millisecond,
	}

	a.client = client.New(client.Options{
		Dialer:             deps.Dialer,
		Link:               deps.Link,
		Clock:              deps.Clock,
		Wall:               deps.Wall,
		Device:             device.Default(cfg.DeviceID),
		AcceptPolicy:       policy,
		HandshakeTimeoutMs: cfg.HandshakeTimeoutMs,
		MaxHeaderBytes:     cfg.MaxHeaderBytes,
		MaxMessageBytes:    cfg.MaxMessageBytes,
		QueueSize:          cfg.QueueSize,
		Backoff:            cfg.Backoff,
		MaxBackoffMs:       cfg.MaxBackoffMs,
		OnMessage:          deps.OnMessage,
	})
	if err := a.client.Configure(url, cfg.ReconnectIntervalMs, cfg.HeartbeatIntervalMs); err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	for i, sc := range cfg.Sensors {
		src := buildSensor(sc, seed+int64(i))
		a.sources = append(a.sources, src)
		a.sampler.Add(src, sc.IntervalMs)
		a.client.RegisterSensor(src, sc.Name)
	}

	logging.Info("Agent configured",
		zap.String("url", url),
		zap.Int("sensors", len(a.sources)),
		zap.Duration("tick", a.tick),
	)

	return a, nil
}

func buildSensor(sc config.Sensor, seed int64) sensor.Source {
	meta := sensor.Metadata{ID: sc.ID, Name: sc.Name, Unit: sc.Unit}
	if sc.Kind == config.SensorFile {
		return sensor.NewFile(meta, sc.Path, sc.Scale)
	}
	return sensor.NewSimulated(meta, sc.Min, sc.Max, sc.Step, seed)
}

// Client returns the underlying client.
func (a *Agent) Client() *client.Client { return a.client }

// URL returns the endpoint URL in use, which may come from discovery.
func (a *Agent) URL() string { return a.url }

// TickInterval returns the loop period.
func (a *Agent) TickInterval() time.Duration { return a.tick }

// Snapshot returns the client status.
func (a *Agent) Snapshot() client.Snapshot { return a.client.Snapshot() }

// Step samples due sensors and advances the client by one tick.
func (a *Agent) Step() {
	a.sampler.Poll()
	a.client.Tick()
}

// Run steps the agent every tick interval until ctx is cancelled, then
// disconnects and releases the sensors.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.tick)
	defer ticker.Stop()

	a.Step()
	for {
		select {
		case <-ctx.Done():
			a.Close()
			return nil
		case <-ticker.C:
			a.Step()
		}
	}
}

// Close disconnects the client and cancels sensor subscriptions.
func (a *Agent) Close() {
	a.client.Close()
	logging.Info("Agent stopped", zap.String("url", a.url))
}

// Disconnect drops the connection; the client reconnects after its interval.
func (a *Agent) Disconnect() {
	a.client.Disconnect()
}

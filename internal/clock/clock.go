// Package clock provides the time sources used by the connection state
// machine and the telemetry publisher.
//
// Monotonic time is a 32-bit millisecond counter that wraps around. All
// elapsed-time arithmetic goes through Since so the wrap is handled in one
// place. Wall time is optional: a device without a synchronised clock
// reports ok=false and callers fall back to monotonic time.
package clock

import (
	"sync"
	"time"
)

// Monotonic is a millisecond counter. It may wrap around.
type Monotonic interface {
	Millis() uint32
}

// Wall reports the current Unix time in seconds. ok is false when the wall
// clock is not synchronised.
type Wall interface {
	Unix() (secs int64, ok bool)
}

// Since returns the milliseconds elapsed from then to now on a wrapping
// 32-bit counter.
func Since(now, then uint32) uint32 {
	return now - then
}

// Elapsed reports whether at least interval milliseconds have passed since then.
func Elapsed(now, then, interval uint32) bool {
	return Since(now, then) >= interval
}

// System is a Monotonic clock backed by the Go runtime's monotonic clock.
type System struct {
	start time.Time
}

// NewSystem returns a monotonic clock starting at zero.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Millis returns milliseconds since the clock was created, truncated to 32 bits.
func (s *System) Millis() uint32 {
	return uint32(time.Since(s.start).Milliseconds())
}

// SystemWall reads the host wall clock. Times before MinValid are treated
// as unsynchronised, matching devices that boot at the epoch.
type SystemWall struct {
	MinValid time.Time
}

// DefaultMinValid is the earliest wall time considered synchronised.
var DefaultMinValid = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewSystemWall returns a wall clock using DefaultMinValid.
func NewSystemWall() *SystemWall {
	return &SystemWall{MinValid: DefaultMinValid}
}

// Unix returns the current Unix time.
func (w *SystemWall) Unix() (int64, bool) {
	now := time.Now()
	if now.Before(w.MinValid) {
		return 0, false
	}
	return now.Unix(), true
}

// Manual is a clock driven by hand. It implements both Monotonic and Wall
// and is safe for concurrent use.
type Manual struct {
	mu     sync.Mutex
	millis uint32
	unix   int64
	synced bool
}

// NewManual returns a manual clock at the given millisecond count with no
// wall time.
func NewManual(millis uint32) *Manual {
	return &Manual{millis: millis}
}

// Millis returns the current counter value.
func (m *Manual) Millis() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.millis
}

// Advance moves the counter forward by d milliseconds, wrapping at 2^32.
func (m *Manual) Advance(d uint32) {
	m.mu.Lock()
	m.millis += d
	m.mu.Unlock()
}

// Set sets the counter.
func (m *Manual) Set(millis uint32) {
	m.mu.Lock()
	m.millis = millis
	m.mu.Unlock()
}

// SetWall sets the wall time and marks it synchronised.
func (m *Manual) SetWall(secs int64) {
	m.mu.Lock()
	m.unix = secs
	m.synced = true
	m.mu.Unlock()
}

// Unix returns the wall time set with SetWall.
func (m *Manual) Unix() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unix, m.synced
}

// Package clock supplies a single monotonic time source so event sequencing
// (EventEnvelope.ts_mono, ActionReport timestamps) never derives from
// wall-clock subtraction, which drifts under NTP adjustment.
package clock

import "time"

// Clock reports monotonic milliseconds since an arbitrary process-local
// epoch. Values are only meaningful relative to each other within one
// process lifetime.
type Clock interface {
	NowMs() int64
}

// Monotonic is the production Clock, backed by time.Now()'s monotonic
// reading (Go's time.Time carries a monotonic component until it crosses
// a wall-clock-affecting operation, which this package never performs).
type Monotonic struct {
	epoch time.Time
}

// NewMonotonic returns a Clock anchored to the moment of construction.
func NewMonotonic() *Monotonic {
	return &Monotonic{epoch: time.Now()}
}

// NowMs returns milliseconds elapsed since the clock was constructed.
func (m *Monotonic) NowMs() int64 {
	return time.Since(m.epoch).Milliseconds()
}

// Default is the process-wide Monotonic clock. Subsystems that don't
// receive an injected Clock (tests always inject a fake) use this one.
var Default = NewMonotonic()

// Fake is a deterministic Clock for tests: NowMs returns the last value set
// by Set, or advances by Advance.
type Fake struct {
	ms int64
}

// NewFake returns a Fake clock starting at ms.
func NewFake(ms int64) *Fake { return &Fake{ms: ms} }

// NowMs returns the current fake time.
func (f *Fake) NowMs() int64 { return f.ms }

// Advance moves the fake clock forward by delta milliseconds and returns the
// new value.
func (f *Fake) Advance(delta int64) int64 {
	f.ms += delta
	return f.ms
}

// Set pins the fake clock to an absolute value.
func (f *Fake) Set(ms int64) { f.ms = ms }

package backoff

import (
	"math/rand/v2"
	"time"
)

// Default reconnect delay parameters, in seconds.
const (
	DefaultMin     = 1.92
	DefaultMax     = 60.0
	DefaultFactor  = 1.618
	DefaultInitial = 5.0
)

// Config holds the parameters of the exponential backoff schedule.
type Config struct {
	// Min is the floor of the delay and the value the delay resets to
	// after a successful cycle, in seconds.
	Min float64
	// Max caps the delay growth, in seconds.
	Max float64
	// Factor multiplies the delay after every failure.
	Factor float64
	// Initial bounds the jittered sleep before the first retry: the
	// first consecutive failure sleeps a uniform duration in [0, Initial).
	Initial float64
}

// DefaultConfig returns the standard reconnect schedule.
func DefaultConfig() Config {
	return Config{
		Min:     DefaultMin,
		Max:     DefaultMax,
		Factor:  DefaultFactor,
		Initial: DefaultInitial,
	}
}

// Backoff tracks the current reconnect delay across consecutive failures.
// It is not safe for concurrent use; each supervisor owns one.
type Backoff struct {
	cfg   Config
	delay float64
	rnd   func() float64
}

// New creates a Backoff starting at the configured minimum delay.
func New(cfg Config) *Backoff {
	return &Backoff{cfg: cfg, delay: cfg.Min, rnd: rand.Float64}
}

// Next returns the sleep duration for the current failure and advances
// the schedule. The first failure after a reset sleeps a uniformly
// random duration in [0, Initial); later failures sleep the integer
// part of the current delay in seconds.
func (b *Backoff) Next() time.Duration {
	var d time.Duration
	if b.delay == b.cfg.Min {
		d = time.Duration(b.rnd() * b.cfg.Initial * float64(time.Second))
	} else {
		d = time.Duration(int(b.delay)) * time.Second
	}

	b.delay = min(b.delay*b.cfg.Factor, b.cfg.Max)
	return d
}

// Reset returns the schedule to its minimum delay. Called once per
// successful connect-to-disconnect cycle.
func (b *Backoff) Reset() {
	b.delay = b.cfg.Min
}

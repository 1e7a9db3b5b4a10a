// Package pacing computes the wait before each page fetch.
//
// Waits are jittered so consecutive fetches do not look like a burst. The
// average delay mirrors the same composition with midpoints and is only used
// for ETA display.
package pacing

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Config is read once at run start and never changes during a run.
type Config struct {
	BaseInterval        float64
	RandomizeInterval   bool
	MinInterval         float64
	MaxInterval         float64
	RandomizeExtraDelay bool
	MaxExtraDelay       float64
}

// Pacer draws delays from a Config.
type Pacer struct {
	cfg  Config
	mu   sync.Mutex
	rand func() float64
}

// Option configures a Pacer.
type Option func(*Pacer)

// WithRand replaces the uniform [0,1) source.
func WithRand(fn func() float64) Option {
	return func(p *Pacer) { p.rand = fn }
}

// New creates a Pacer.
func New(cfg Config, opts ...Option) *Pacer {
	p := &Pacer{cfg: cfg, rand: rand.Float64}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the pacing configuration in effect.
func (p *Pacer) Config() Config {
	return p.cfg
}

// NextDelay returns the seconds to wait before the next fetch, floored to
// two decimal places.
func (p *Pacer) NextDelay() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	delay := p.cfg.BaseInterval
	if p.cfg.RandomizeInterval {
		delay = p.cfg.MinInterval + p.rand()*(p.cfg.MaxInterval-p.cfg.MinInterval)
	}
	if p.cfg.RandomizeExtraDelay {
		delay += p.rand() * p.cfg.MaxExtraDelay
	}
	return floor2(delay)
}

// AverageDelay returns the expected delay in seconds.
func (p *Pacer) AverageDelay() float64 {
	avg := p.cfg.BaseInterval
	if p.cfg.RandomizeInterval {
		avg = (p.cfg.MinInterval + p.cfg.MaxInterval) / 2
	}
	if p.cfg.RandomizeExtraDelay {
		avg += p.cfg.MaxExtraDelay / 2
	}
	return avg
}

// Duration converts seconds to a time.Duration.
func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// floor2 truncates to two decimals. The small epsilon keeps values such as
// 2.3 (stored as 2.2999...) from dropping a cent.
func floor2(v float64) float64 {
	return math.Floor(v*100+1e-9) / 100
}

package connection

import (
	"math"
	"math/rand"
	"time"
)

// ReconnectPolicy controls automatic reconnection after the channel closes
// without Shutdown having been called. The zero value disables it.
type ReconnectPolicy struct {
	Enabled    bool
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
}

// DefaultReconnectPolicy backs off exponentially from one second to thirty.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:    true,
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
	}
}

// Delay returns the wait before the given attempt, counting from 1.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	return p.delay(attempt, rand.Float64())
}

// delay computes the backoff with r in [0, 1) as the jitter source.
func (p ReconnectPolicy) delay(attempt int, r float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}

	d := float64(initial) * math.Pow(multiplier, float64(attempt-1))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*r - 1)
	}
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

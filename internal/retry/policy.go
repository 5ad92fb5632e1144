// Package retry runs remote operations under a bounded exponential backoff
// with jitter. Waits block the calling goroutine and end early when the
// context is canceled.
package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes how many times an operation is attempted and how long to
// wait between attempts. The wait before retry n (0-based) is
// min(BaseDelay*2^n, MaxDelay) * (1 + U[0, Jitter]).
type Policy struct {
	// MaxAttempts is the total number of attempts, the first call included.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the upper bound of the random fraction added to each delay.
	Jitter float64
}

// DefaultPolicy is used for remote calls: three retries after the first
// attempt, 1s base, 10s cap.
var DefaultPolicy = Policy{
	MaxAttempts: 4,
	BaseDelay:   1 * time.Second,
	MaxDelay:    10 * time.Second,
	Jitter:      0.1,
}

// FilePollPolicy is used while waiting for an uploaded file to become usable.
var FilePollPolicy = Policy{
	MaxAttempts: 120,
	BaseDelay:   5 * time.Second,
	MaxDelay:    10 * time.Second,
	Jitter:      0.1,
}

// Delay returns the wait before retry n given a uniform sample u in [0, 1).
func (p Policy) Delay(n int, u float64) time.Duration {
	if n < 0 {
		n = 0
	}
	base := float64(p.BaseDelay) * math.Pow(2, float64(n))
	if limit := float64(p.MaxDelay); p.MaxDelay > 0 && base > limit {
		base = limit
	}
	return time.Duration(base * (1 + u*p.Jitter))
}

// NewBackOff returns a fresh backoff.BackOff that yields Delay(0), Delay(1), ...
func (p Policy) NewBackOff() backoff.BackOff {
	return &exponential{policy: p, sample: rand.Float64}
}

// exponential implements backoff.BackOff for a Policy.
type exponential struct {
	policy Policy
	n      int
	sample func() float64
}

func (e *exponential) NextBackOff() time.Duration {
	d := e.policy.Delay(e.n, e.sample())
	e.n++
	return d
}

func (e *exponential) Reset() {
	e.n = 0
}

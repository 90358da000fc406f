package reconciler

import (
	"math"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// Backoff computes retry delays: Base·Factor^(attempt-1), spread by up to
// Jitter·delay. Max caps the jittered delay.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// DefaultBackoff is used for any zero field of a configured Backoff.
var DefaultBackoff = Backoff{
	Base:   time.Second,
	Max:    5 * time.Minute,
	Factor: 2,
	Jitter: 0.1,
}

func (b Backoff) withDefaults() Backoff {
	if b.Base <= 0 {
		b.Base = DefaultBackoff.Base
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoff.Max
	}
	if b.Max < b.Base {
		b.Max = b.Base
	}
	if b.Factor < 1 {
		b.Factor = DefaultBackoff.Factor
	}
	if b.Jitter < 0 {
		b.Jitter = 0
	}
	return b
}

// Delay returns the delay before attempt+1, given that attempt attempts have
// failed. Attempts below 1 are treated as 1.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Base) * math.Pow(b.Factor, float64(attempt-1))
	if d > float64(b.Max) || math.IsInf(d, 1) {
		d = float64(b.Max)
	}
	delay := time.Duration(d)
	if b.Jitter > 0 {
		delay = wait.Jitter(delay, b.Jitter)
	}
	if delay > b.Max {
		delay = b.Max
	}
	return delay
}

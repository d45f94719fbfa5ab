package infra

import (
	"time"
)

// Backoff is an exponential reconnect schedule: Base * 2^retry, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff reconnects after 1s, 2s, 4s ... up to 60s.
var DefaultBackoff = Backoff{Base: time.Second, Max: 60 * time.Second}

// Delay returns the wait before the given retry. Negative retries get Base.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 0 {
		return b.Base
	}
	// 2^30 seconds is already far past any sane cap
	if retry > 30 {
		return b.Max
	}

	d := b.Base * time.Duration(1<<retry)
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}

// CalculateBackoff applies DefaultBackoff.
func CalculateBackoff(retryCount int) time.Duration {
	return DefaultBackoff.Delay(retryCount)
}

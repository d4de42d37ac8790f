// Package retry provides an explicit retry policy applied at call sites, so
// the bounded-attempts contract is visible in the call rather than hidden in
// a wrapper.
package retry

import (
	"context"
	"time"
)

// Policy describes bounded retries with multiplicative backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Default is the policy used for transient network calls.
var Default = Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	Multiplier:  1.2,
}

// Do runs op up to MaxAttempts times, sleeping BaseDelay (grown by Multiplier
// after each failure) between attempts. It returns the last error when all
// attempts fail, and ctx.Err() immediately when the context is cancelled
// during a backoff sleep.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return err
}

package batch

import (
	"time"
)

// RetryPolicy controls how failed items are retried within a run.
// Delays grow linearly with the retry number rather than exponentially:
// retrying too aggressively against the research backend trips its rate
// limits faster than it recovers.
type RetryPolicy struct {
	MaxRetries int           // Retries after the first attempt (0 = single attempt)
	BaseDelay  time.Duration // Delay before the first retry
	MaxDelay   time.Duration // Upper bound for any single delay
}

// SetDefaults sets default values for the retry policy
func (p *RetryPolicy) SetDefaults() {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = 1 * time.Second
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 30 * time.Second
	}
}

// MaxAttempts returns the total number of attempts an item may consume
func (p RetryPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}

// Delay calculates the delay before retry number n (1-indexed).
// Formula: delay = min(base_delay * n, max_delay)
func (p RetryPolicy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}

	delay := p.BaseDelay * time.Duration(n)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return delay
}

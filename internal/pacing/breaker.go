package pacing

// Breaker is a consecutive-failure circuit breaker scoped to one run.
// Once Threshold attempts in a row have failed, the rest of the run's
// attempts are skipped; future runs start with a fresh Breaker.
type Breaker struct {
	threshold int
	failures  int
	tripped   bool
}

// NewBreaker creates a Breaker. A threshold of zero or less disables
// tripping entirely.
func NewBreaker(threshold int) *Breaker {
	return &Breaker{threshold: threshold}
}

// Allow reports whether another attempt may still be made.
func (b *Breaker) Allow() bool {
	return !b.tripped
}

// RecordFailure counts one failure and trips the breaker at threshold.
func (b *Breaker) RecordFailure() {
	b.failures++
	if b.threshold > 0 && b.failures >= b.threshold {
		b.tripped = true
	}
}

// RecordSuccess resets the consecutive-failure count.
func (b *Breaker) RecordSuccess() {
	b.failures = 0
}

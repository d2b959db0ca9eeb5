package leann

import "time"

// Backoff computes how long to wait before retrying a provider call that
// failed with a Transient error. attempt is 0 on the first retry.
type Backoff func(attempt int) error

// ExponentialBackoff returns a Backoff that sleeps base*2^attempt before
// each retry, the policy embedding, searcher, and builder all apply to
// ProviderTransient failures.
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) error {
		time.Sleep(base * time.Duration(uint(1)<<uint(attempt)))
		return nil
	}
}

// DefaultBackoff is the engine's default retry policy: 20ms, 40ms, 80ms, ...
var DefaultBackoff = ExponentialBackoff(20 * time.Millisecond)

// RetryPolicy bundles the two knobs every Transient-retrying call site
// needs: how many attempts, and how long to wait between them.
type RetryPolicy struct {
	MaxRetries int
	Backoff    Backoff
}

// DefaultRetryPolicy mirrors spec's retry_max default of 3 attempts.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Backoff: DefaultBackoff}

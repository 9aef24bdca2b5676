package capture

import "time"

// RetryPolicy bounds how often a transient failure is retried and how long
// to back off between attempts. Keeping the numbers in one value rather than
// scattered through the read loop makes the recovery behavior testable.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultReadRetry governs recovery from single bad camera reads.
func DefaultReadRetry() RetryPolicy {
	return RetryPolicy{Attempts: 5, Backoff: 10 * time.Millisecond}
}

// Do runs fn up to Attempts times, sleeping Backoff between failures.
// It returns nil on the first success, otherwise the last error.
func (p RetryPolicy) Do(fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && p.Backoff > 0 {
			time.Sleep(p.Backoff)
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

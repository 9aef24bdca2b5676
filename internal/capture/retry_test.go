package capture

import (
	"errors"
	"testing"
	"time"
)

func TestRetryPolicy_SucceedsFirstTry(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := p.Do(func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicy_RecoversWithinBudget(t *testing.T) {
	p := RetryPolicy{Attempts: 4, Backoff: time.Millisecond}

	calls := 0
	err := p.Do(func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Backoff: 0}

	last := errors.New("still broken")
	calls := 0
	err := p.Do(func() error {
		calls++
		return last
	})

	if !errors.Is(err, last) {
		t.Errorf("Do() error = %v, want the last failure", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_ZeroAttemptsStillRunsOnce(t *testing.T) {
	p := RetryPolicy{}

	calls := 0
	p.Do(func() error {
		calls++
		return nil
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

package stage

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy configures exponential backoff for a stage:
// max_retries, backoff_unit, backoff_factor, max_backoff, and memory (the
// window after which an isolated failure is forgotten and the retry counter
// resets).
type RetryPolicy struct {
	MaxRetries    int
	BackoffUnit   time.Duration
	BackoffFactor float64
	MaxBackoff    time.Duration
	Memory        time.Duration
}

// DefaultRetryPolicy sets conservative defaults: the memory window is
// deliberately larger than both MaxBackoff and the worst-case cumulative
// backoff window, so intermittent failures don't exhaust the retry budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    20,
		BackoffUnit:   500 * time.Millisecond,
		BackoffFactor: 2,
		MaxBackoff:    30 * time.Second,
		Memory:        15 * time.Minute,
	}
}

// newBackOff builds a cenkalti/backoff ExponentialBackOff from the policy.
// Retry counting and the "memory" forgiveness window are layered on top by
// retryState, since backoff.ExponentialBackOff itself has no notion of
// forgetting isolated failures after a quiet period.
func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BackoffUnit
	b.Multiplier = p.BackoffFactor
	b.MaxInterval = p.MaxBackoff
	b.MaxElapsedTime = 0 // unbounded; MaxRetries governs termination instead
	b.Reset()
	return b
}

// retryState tracks consecutive-failure bookkeeping for one stage.
type retryState struct {
	policy      RetryPolicy
	backoff     *backoff.ExponentialBackOff
	attempts    int
	lastFailure time.Time
}

func newRetryState(policy RetryPolicy) *retryState {
	return &retryState{policy: policy, backoff: policy.newBackOff()}
}

// next returns the delay before the next attempt and whether the policy
// permits another attempt at all. It forgets prior attempts once Memory has
// elapsed since the last failure.
func (s *retryState) next() (delay time.Duration, allowed bool) {
	now := time.Now()
	if !s.lastFailure.IsZero() && s.policy.Memory > 0 && now.Sub(s.lastFailure) > s.policy.Memory {
		s.reset()
	}

	s.attempts++
	s.lastFailure = now

	if s.policy.MaxRetries > 0 && s.attempts > s.policy.MaxRetries {
		return 0, false
	}
	return s.backoff.NextBackOff(), true
}

func (s *retryState) reset() {
	s.attempts = 0
	s.backoff = s.policy.newBackOff()
}

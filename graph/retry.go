package graph

import (
	"math/rand"
	"time"
)

// BackoffPolicy shapes the delay between retry attempts of a failing
// node: exponential growth from BaseDelay, capped at MaxDelay, with
// random jitter of up to BaseDelay added to each wait.
//
// The curve is configuration, not a fixed constant: callers tune
// BaseDelay and MaxDelay per node, or rely on the RunnerConfig default.
type BackoffPolicy struct {
	// BaseDelay is the delay before the first retry and the unit of
	// exponential growth.
	BaseDelay time.Duration

	// MaxDelay caps the exponential component. 0 means no cap.
	MaxDelay time.Duration
}

// IsZero reports whether the policy is unset and should fall back to
// the runner default.
func (p BackoffPolicy) IsZero() bool {
	return p.BaseDelay == 0 && p.MaxDelay == 0
}

// Validate checks the policy's internal consistency.
func (p BackoffPolicy) Validate() error {
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return ErrInvalidBackoff
	}
	if p.MaxDelay > 0 && p.BaseDelay > 0 && p.MaxDelay < p.BaseDelay {
		return ErrInvalidBackoff
	}
	return nil
}

// computeBackoff calculates the wait before retry number attempt
// (zero-based):
//
//	delay = min(base * 2^attempt, maxDelay) + jitter(0, base)
//
// The jitter desynchronizes concurrent runs retrying against the same
// failing dependency.
func computeBackoff(attempt int, policy BackoffPolicy, rng *rand.Rand) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		return 0
	}

	// Cap the shift to keep base<<attempt from overflowing.
	if attempt > 30 {
		attempt = 30
	}
	delay := base * (1 << attempt)
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(base)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- retry timing, not security
	}
	return delay + jitter
}

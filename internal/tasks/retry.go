package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/services"
	"github.com/desertthunder/userimport/internal/shared"
)

const (
	// MaxAttempts bounds the number of creation attempts per record, the first one included.
	MaxAttempts = 5

	DefaultBaseDelay = 2 * time.Second
)

// Action is what the retry controller does after an attempt.
type Action int

const (
	Stop Action = iota
	Retry
)

func (a Action) String() string {
	if a == Retry {
		return "retry"
	}
	return "stop"
}

// Decision is the outcome of [Policy.Decide].
type Decision struct {
	Action Action
	Kind   models.FailureKind // classification of the failed attempt, KindNone on success or unclassified errors
	Delay  time.Duration      // wait before the next attempt when Action is Retry
}

// Policy decides whether and when a failed attempt is retried. It holds no state and never sleeps.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewPolicy returns a [Policy] with [MaxAttempts] and the given base delay.
// A negative base delay is treated as zero.
func NewPolicy(base time.Duration) Policy {
	return Policy{MaxAttempts: MaxAttempts, BaseDelay: max(base, 0)}
}

// DefaultPolicy uses [DefaultBaseDelay].
func DefaultPolicy() Policy {
	return NewPolicy(DefaultBaseDelay)
}

// Retryable reports whether a failure of kind may be retried.
func (p Policy) Retryable(kind models.FailureKind) bool {
	return kind.Transient()
}

// Delay is the wait before attempt n: zero for the first attempt, BaseDelay × 2^(n−2) afterwards.
func (p Policy) Delay(n int) time.Duration {
	if n <= 1 {
		return 0
	}
	return p.BaseDelay << (n - 2)
}

// Decide looks at the error returned by attempt and chooses to stop or retry.
func (p Policy) Decide(attempt int, err error) Decision {
	if err == nil {
		return Decision{Action: Stop}
	}

	kind := KindOf(err)
	if kind == models.KindNone || !p.Retryable(kind) || attempt >= p.MaxAttempts {
		return Decision{Action: Stop, Kind: kind}
	}
	return Decision{Action: Retry, Kind: kind, Delay: p.Delay(attempt + 1)}
}

// KindOf extracts the failure classification carried by err, if any.
func KindOf(err error) models.FailureKind {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return models.KindNone
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default [Sleeper], backed by a timer.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AttemptFunc performs attempt number n (1-based).
type AttemptFunc func(ctx context.Context, n int) error

// RetryHook is told about each retry before the wait starts.
// attempt is the number of the attempt that just failed.
type RetryHook func(attempt int, kind models.FailureKind, delay time.Duration, err error)

// RetryResult describes how a sequence of attempts ended.
type RetryResult struct {
	Attempts int
	Kind     models.FailureKind // kind of the last failed attempt
	Waited   time.Duration      // sum of backoff waits
}

// Retrier drives attempts under a [Policy].
type Retrier struct {
	policy Policy
	sleep  Sleeper
}

// NewRetrier builds a [Retrier]. A nil sleep uses [SleepContext].
func NewRetrier(policy Policy, sleep Sleeper) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = MaxAttempts
	}
	if sleep == nil {
		sleep = SleepContext
	}
	return &Retrier{policy: policy, sleep: sleep}
}

// Policy returns the policy in use.
func (r *Retrier) Policy() Policy {
	return r.policy
}

// Do runs fn until it succeeds or the policy stops.
//
// The returned error is nil on success, wraps [shared.ErrPermanentFailure] after a non-retryable classified failure
// and wraps [shared.ErrRetryExhausted] and the last error after the final attempt.
// Unclassified errors, including context cancellation, are returned unchanged.
func (r *Retrier) Do(ctx context.Context, fn AttemptFunc, onRetry RetryHook) (RetryResult, error) {
	var res RetryResult

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		err := fn(ctx, attempt)
		d := r.policy.Decide(attempt, err)
		res.Kind = d.Kind

		if d.Action == Stop {
			switch {
			case err == nil:
				return res, nil
			case d.Kind == models.KindNone:
				return res, err
			case !r.policy.Retryable(d.Kind):
				return res, fmt.Errorf("%w: %w", shared.ErrPermanentFailure, err)
			default:
				return res, fmt.Errorf("%w after %d attempts: %w", shared.ErrRetryExhausted, attempt, err)
			}
		}

		if onRetry != nil {
			onRetry(attempt, d.Kind, d.Delay, err)
		}
		if err := r.sleep(ctx, d.Delay); err != nil {
			return res, fmt.Errorf("backoff interrupted: %w", err)
		}
		res.Waited += d.Delay
	}
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/userimport/internal/models"
	"github.com/desertthunder/userimport/internal/services"
	"github.com/desertthunder/userimport/internal/shared"
	tu "github.com/desertthunder/userimport/internal/testing"
)

func apiErr(kind models.FailureKind) error {
	return &services.APIError{Kind: kind, StatusCode: 500}
}

func TestPolicy(t *testing.T) {
	p := NewPolicy(2 * time.Second)

	t.Run("Delay", func(t *testing.T) {
		tc := []struct {
			n    int
			want time.Duration
		}{
			{1, 0},
			{2, 2 * time.Second},
			{3, 4 * time.Second},
			{4, 8 * time.Second},
			{5, 16 * time.Second},
		}
		for _, tt := range tc {
			if got := p.Delay(tt.n); got != tt.want {
				t.Errorf("Delay(%d) = %v, want %v", tt.n, got, tt.want)
			}
		}
	})

	t.Run("Delay Scales With Base", func(t *testing.T) {
		q := NewPolicy(100 * time.Millisecond)
		var total time.Duration
		for n := 2; n <= MaxAttempts; n++ {
			total += q.Delay(n)
		}
		if total != 1500*time.Millisecond {
			t.Errorf("expected total 15 × base, got %v", total)
		}
	})

	t.Run("Negative Base Is Zero", func(t *testing.T) {
		if d := NewPolicy(-time.Second).Delay(3); d != 0 {
			t.Errorf("expected zero delay, got %v", d)
		}
	})

	t.Run("Retryable", func(t *testing.T) {
		tc := map[models.FailureKind]bool{
			models.KindTimeout:      true,
			models.KindServerError:  true,
			models.KindNetworkError: true,
			models.KindBadRequest:   false,
			models.KindUnauthorized: false,
			models.KindNone:         false,
		}
		for kind, want := range tc {
			if got := p.Retryable(kind); got != want {
				t.Errorf("Retryable(%v) = %v, want %v", kind, got, want)
			}
		}
	})

	t.Run("Decide", func(t *testing.T) {
		tc := []struct {
			name    string
			attempt int
			err     error
			action  Action
			delay   time.Duration
		}{
			{"success", 1, nil, Stop, 0},
			{"server error on first attempt", 1, apiErr(models.KindServerError), Retry, 2 * time.Second},
			{"timeout on fourth attempt", 4, apiErr(models.KindTimeout), Retry, 16 * time.Second},
			{"transient on last attempt", MaxAttempts, apiErr(models.KindNetworkError), Stop, 0},
			{"bad request", 1, apiErr(models.KindBadRequest), Stop, 0},
			{"unauthorized", 2, apiErr(models.KindUnauthorized), Stop, 0},
			{"unclassified", 1, errors.New("boom"), Stop, 0},
			{"wrapped classified", 1, fmt.Errorf("ctx: %w", apiErr(models.KindServerError)), Retry, 2 * time.Second},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				d := p.Decide(tt.attempt, tt.err)
				if d.Action != tt.action {
					t.Errorf("expected %s, got %s", tt.action, d.Action)
				}
				if d.Delay != tt.delay {
					t.Errorf("expected delay %v, got %v", tt.delay, d.Delay)
				}
			})
		}
	})
}

func TestRetrier(t *testing.T) {
	scripted := func(errs ...error) (AttemptFunc, *int) {
		calls := 0
		return func(ctx context.Context, n int) error {
			calls++
			if n != calls {
				t.Errorf("expected attempt %d, got %d", calls, n)
			}
			if n <= len(errs) {
				return errs[n-1]
			}
			return nil
		}, &calls
	}

	t.Run("Success On First Attempt", func(t *testing.T) {
		sleeper := &tu.FakeSleeper{}
		fn, calls := scripted()

		res, err := NewRetrier(NewPolicy(time.Second), sleeper.Sleep).Do(context.Background(), fn, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if *calls != 1 || res.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", res.Attempts)
		}
		if len(sleeper.Delays) != 0 {
			t.Errorf("expected no waits, got %v", sleeper.Delays)
		}
	})

	t.Run("Recovers After Transient Failures", func(t *testing.T) {
		sleeper := &tu.FakeSleeper{}
		se := apiErr(models.KindServerError)
		fn, _ := scripted(se, se, se, se)

		var hooks []int
		hook := func(n int, kind models.FailureKind, delay time.Duration, err error) {
			hooks = append(hooks, n)
			if kind != models.KindServerError {
				t.Errorf("expected ServerError in hook, got %s", kind)
			}
		}

		res, err := NewRetrier(NewPolicy(time.Second), sleeper.Sleep).Do(context.Background(), fn, hook)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Attempts != 5 {
			t.Errorf("expected 5 attempts, got %d", res.Attempts)
		}
		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
		for i, d := range want {
			if sleeper.Delays[i] != d {
				t.Errorf("wait %d = %v, want %v", i, sleeper.Delays[i], d)
			}
		}
		if res.Waited != 15*time.Second || sleeper.Total() != 15*time.Second {
			t.Errorf("expected 15s total wait, got %v", res.Waited)
		}
		if len(hooks) != 4 {
			t.Errorf("expected 4 retry hooks, got %v", hooks)
		}
	})

	t.Run("Permanent Failure Stops After One Attempt", func(t *testing.T) {
		for _, kind := range []models.FailureKind{models.KindBadRequest, models.KindUnauthorized} {
			t.Run(kind.String(), func(t *testing.T) {
				sleeper := &tu.FakeSleeper{}
				fn, calls := scripted(apiErr(kind), nil)

				res, err := NewRetrier(DefaultPolicy(), sleeper.Sleep).Do(context.Background(), fn, nil)
				if !errors.Is(err, shared.ErrPermanentFailure) {
					t.Errorf("expected ErrPermanentFailure, got %v", err)
				}
				if *calls != 1 || res.Attempts != 1 {
					t.Errorf("expected exactly 1 attempt, got %d", *calls)
				}
				if res.Kind != kind {
					t.Errorf("expected kind %s, got %s", kind, res.Kind)
				}
				if len(sleeper.Delays) != 0 {
					t.Error("expected no waits")
				}
			})
		}
	})

	t.Run("Exhausts After Max Attempts", func(t *testing.T) {
		sleeper := &tu.FakeSleeper{}
		to := apiErr(models.KindTimeout)
		fn, calls := scripted(to, to, to, to, to, to)

		res, err := NewRetrier(DefaultPolicy(), sleeper.Sleep).Do(context.Background(), fn, nil)
		if !errors.Is(err, shared.ErrRetryExhausted) {
			t.Fatalf("expected ErrRetryExhausted, got %v", err)
		}
		var last *services.APIError
		if !errors.As(err, &last) || last.Kind != models.KindTimeout {
			t.Errorf("expected last error to be wrapped, got %v", err)
		}
		if *calls != MaxAttempts || res.Attempts != MaxAttempts {
			t.Errorf("expected %d attempts, got %d", MaxAttempts, *calls)
		}
		if len(sleeper.Delays) != MaxAttempts-1 {
			t.Errorf("expected %d waits, got %d", MaxAttempts-1, len(sleeper.Delays))
		}
	})

	t.Run("Unclassified Error Is Returned Unchanged", func(t *testing.T) {
		boom := errors.New("boom")
		fn, calls := scripted(boom)

		_, err := NewRetrier(DefaultPolicy(), (&tu.FakeSleeper{}).Sleep).Do(context.Background(), fn, nil)
		if err != boom {
			t.Errorf("expected original error, got %v", err)
		}
		if *calls != 1 {
			t.Errorf("expected 1 attempt, got %d", *calls)
		}
	})

	t.Run("Cancelled During Backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		fn := func(ctx context.Context, n int) error {
			cancel()
			return apiErr(models.KindServerError)
		}

		res, err := NewRetrier(DefaultPolicy(), nil).Do(ctx, fn, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if res.Attempts != 1 || res.Waited != 0 {
			t.Errorf("unexpected result %+v", res)
		}
	})
}

func TestSleepContext(t *testing.T) {
	t.Run("Zero Duration Returns Immediately", func(t *testing.T) {
		if err := SleepContext(context.Background(), 0); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("Waits", func(t *testing.T) {
		start := time.Now()
		if err := SleepContext(context.Background(), 10*time.Millisecond); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if time.Since(start) < 10*time.Millisecond {
			t.Error("returned before the duration elapsed")
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := SleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

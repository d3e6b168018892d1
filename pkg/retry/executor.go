package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Operation is one attempt. Attempts are numbered from 1.
type Operation func(ctx context.Context, attempt int) error

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Outcome describes a finished Run.
type Outcome struct {
	Attempts int
	Waited   time.Duration
}

// Executor runs operations under a Policy.
type Executor struct {
	policy Policy
	sleep  SleepFunc
	rand   func() float64
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the context-aware timer wait.
func WithSleep(sleep SleepFunc) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithRand replaces the uniform [0, 1) source used for jitter.
func WithRand(r func() float64) Option {
	return func(e *Executor) { e.rand = r }
}

// WithLogger sets the logger that reports failed attempts.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor validates policy and builds an executor.
func NewExecutor(policy Policy, opts ...Option) (*Executor, error) {
	err := policy.Validate()
	if err != nil {
		return nil, err
	}

	e := &Executor{
		policy: policy,
		sleep:  sleepContext,
		rand:   rand.Float64,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Run calls op until it succeeds, fails permanently, is cancelled or runs out
// of attempts. There is no wait before the first attempt.
func (e *Executor) Run(ctx context.Context, op Operation) (Outcome, error) {
	var out Outcome

	delay := e.policy.InitialDelay

	for attempt := 1; ; attempt++ {
		err := ctx.Err()
		if err != nil {
			return out, err
		}

		out.Attempts = attempt

		err = op(ctx, attempt)
		if err == nil {
			return out, nil
		}

		switch KindOf(ctx, err) {
		case KindCancelled:
			return out, err
		case KindPermanent:
			return out, untag(err)
		case KindRetryable:
		}

		if attempt >= e.policy.MaxAttempts {
			return out, &ExhaustedError{Attempts: attempt, Err: err}
		}

		wait := e.jittered(delay)

		e.logger.WarnContext(ctx, "attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"delay", wait,
			"error", err)

		err = e.sleep(ctx, wait)
		if err != nil {
			return out, err
		}

		out.Waited += wait
		delay = time.Duration(float64(delay) * e.policy.BackoffFactor)
	}
}

// Do is Run for operations producing a value.
func Do[T any](ctx context.Context, e *Executor, op func(ctx context.Context, attempt int) (T, error)) (T, Outcome, error) {
	var result T

	out, err := e.Run(ctx, func(ctx context.Context, attempt int) error {
		v, opErr := op(ctx, attempt)
		if opErr != nil {
			return opErr
		}

		result = v

		return nil
	})

	return result, out, err
}

func (e *Executor) jittered(base time.Duration) time.Duration {
	span := e.policy.JitterMax - e.policy.JitterMin
	multiplier := e.policy.JitterMin + e.rand()*span

	return time.Duration(float64(base) * multiplier)
}

func sleepContext(ctx context.Context, d time.Duration) error {
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

package retry

import (
	"errors"
	"fmt"
	"time"
)

// Policy defaults.
const (
	DefaultMaxAttempts   = 3
	DefaultInitialDelay  = time.Second
	DefaultBackoffFactor = 2.0
	DefaultJitterMin     = 0.5
	DefaultJitterMax     = 1.5
)

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy configures attempts and backoff.
type Policy struct {
	// MaxAttempts counts the first attempt. Must be at least 1.
	MaxAttempts int
	// InitialDelay is the base wait before the second attempt.
	InitialDelay time.Duration
	// BackoffFactor multiplies the base wait after every retry.
	BackoffFactor float64
	// JitterMin and JitterMax bound the random multiplier applied to each wait.
	JitterMin float64
	JitterMax float64
}

// DefaultPolicy returns 3 attempts, 1s initial delay, doubling, jitter in [0.5, 1.5].
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   DefaultMaxAttempts,
		InitialDelay:  DefaultInitialDelay,
		BackoffFactor: DefaultBackoffFactor,
		JitterMin:     DefaultJitterMin,
		JitterMax:     DefaultJitterMax,
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("%w: max attempts %d < 1", ErrInvalidPolicy, p.MaxAttempts)
	case p.InitialDelay < 0:
		return fmt.Errorf("%w: negative initial delay %s", ErrInvalidPolicy, p.InitialDelay)
	case p.BackoffFactor < 1:
		return fmt.Errorf("%w: backoff factor %g < 1", ErrInvalidPolicy, p.BackoffFactor)
	case p.JitterMin < 0 || p.JitterMax < p.JitterMin:
		return fmt.Errorf("%w: jitter range [%g, %g]", ErrInvalidPolicy, p.JitterMin, p.JitterMax)
	}

	return nil
}

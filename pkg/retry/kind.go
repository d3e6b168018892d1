// Package retry runs fallible operations with bounded attempts and
// jittered exponential backoff.
package retry

import (
	"context"
	"errors"
)

// Kind classifies a failed attempt.
type Kind int

// Failure kinds.
const (
	// KindRetryable failures are retried until attempts run out.
	KindRetryable Kind = iota
	// KindPermanent failures are returned without further attempts.
	KindPermanent
	// KindCancelled means the caller gave up. Never retried.
	KindCancelled
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindPermanent:
		return "permanent"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Nil stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// untag removes a Permanent tag applied directly to err. A tag wrapped by
// the operation's own context stays in the chain with that context.
func untag(err error) error {
	var perm *permanentError
	if errors.As(err, &perm) && error(perm) == err {
		return perm.err
	}

	return err
}

// KindOf classifies err in the light of the caller's context. A done context
// or a context.Canceled error is a cancellation. A per-request deadline that
// fired while ctx is still live is retryable.
func KindOf(ctx context.Context, err error) Kind {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return KindCancelled
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return KindPermanent
	}

	return KindRetryable
}

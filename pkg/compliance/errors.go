package compliance

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a run failure.
type Kind int

// Failure kinds.
const (
	// KindInternal is an invariant violation or unexpected local failure.
	KindInternal Kind = iota
	// KindConfig is a bad setting, missing credential or unusable project root.
	// Nothing has been called or written when it is returned.
	KindConfig
	// KindTransient is an external call that kept failing after retries.
	KindTransient
	// KindCancelled is a run stopped by its context.
	KindCancelled
	// KindDataFormat is a persisted cache or progress file that cannot be decoded.
	KindDataFormat
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindConfig:
		return "config"
	case KindTransient:
		return "transient"
	case KindCancelled:
		return "cancelled"
	case KindDataFormat:
		return "data-format"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified run failure.
type Error struct {
	Kind Kind
	// Op names the step that failed, e.g. "collect" or "batch 3".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}

	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err. Unclassified context cancellation is
// KindCancelled; any other unclassified error is KindInternal.
func KindOf(err error) Kind {
	var runErr *Error
	if errors.As(err, &runErr) {
		return runErr.Kind
	}

	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}

	return KindInternal
}

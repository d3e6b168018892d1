package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()

	require.NoError(t, p.Validate())
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.InitialDelay)
	assert.InDelta(t, 2.0, p.BackoffFactor, 1e-9)
	assert.InDelta(t, 0.5, p.JitterMin, 1e-9)
	assert.InDelta(t, 1.5, p.JitterMax, 1e-9)
}

func TestPolicy_ValidateRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Policy){
		"zero attempts":    func(p *Policy) { p.MaxAttempts = 0 },
		"negative delay":   func(p *Policy) { p.InitialDelay = -time.Second },
		"shrinking factor": func(p *Policy) { p.BackoffFactor = 0.5 },
		"inverted jitter":  func(p *Policy) { p.JitterMin, p.JitterMax = 1.5, 0.5 },
		"negative jitter":  func(p *Policy) { p.JitterMin = -0.1 },
	}

	for name, mutate := range cases {
		p := DefaultPolicy()
		mutate(&p)

		require.ErrorIs(t, p.Validate(), ErrInvalidPolicy, name)

		_, err := NewExecutor(p)
		require.ErrorIs(t, err, ErrInvalidPolicy, name)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	live := context.Background()

	assert.Equal(t, KindRetryable, KindOf(live, errors.New("503")))
	assert.Equal(t, KindRetryable, KindOf(live, context.DeadlineExceeded))
	assert.Equal(t, KindPermanent, KindOf(live, Permanent(errors.New("400"))))
	assert.Equal(t, KindCancelled, KindOf(live, context.Canceled))

	done, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, KindCancelled, KindOf(done, errors.New("503")))
	assert.Equal(t, KindCancelled, KindOf(done, Permanent(errors.New("400"))))
}

func TestPermanent_Nil(t *testing.T) {
	t.Parallel()

	require.NoError(t, Permanent(nil))
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "retryable", KindRetryable.String())
	assert.Equal(t, "permanent", KindPermanent.String())
	assert.Equal(t, "cancelled", KindCancelled.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

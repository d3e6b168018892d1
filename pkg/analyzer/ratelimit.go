package analyzer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces calls to the wrapped analyzer.
type RateLimited struct {
	next    Analyzer
	limiter *rate.Limiter
}

// NewRateLimited wraps next so it runs at most perMinute times a minute.
// A non-positive perMinute returns next unchanged.
func NewRateLimited(next Analyzer, perMinute int) Analyzer {
	if perMinute <= 0 {
		return next
	}

	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Analyze waits for a token, then delegates.
func (r *RateLimited) Analyze(ctx context.Context, req Request) (Response, error) {
	err := r.limiter.Wait(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("rate limit wait: %w", err)
	}

	return r.next.Analyze(ctx, req)
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
)

// Limiter is a token bucket shared by every call to one provider.
type Limiter struct {
	limiter  *rate.Limiter
	provider string
}

// NewLimiter allows rps requests per second with burst capacity. A
// non-positive rps disables limiting.
func NewLimiter(rps float64, burst int, provider string) *Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter:  rate.NewLimiter(limit, burst),
		provider: provider,
	}
}

// Wait blocks until one token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	metrics.ProviderRateLimitWaits.WithLabelValues(l.provider).Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

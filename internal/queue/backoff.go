package queue

import (
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

// maxBackoffExponent caps the doubling so base*2^n cannot overflow.
const maxBackoffExponent = 6

// Backoff is the exponential retry schedule for failed jobs.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns min(Base * 2^min(attempts, 6), Cap).
func (b Backoff) Delay(attempts uint) time.Duration {
	exp := attempts
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	d := b.Base * time.Duration(uint64(1)<<exp)
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	return d
}

// DefaultBackoff is the per-stage schedule.
var DefaultBackoff = map[model.Stage]Backoff{
	model.StageMarket:   {Base: 2 * time.Minute, Cap: time.Hour},
	model.StageSecurity: {Base: 5 * time.Minute, Cap: time.Hour},
	model.StageQuality:  {Base: 10 * time.Minute, Cap: 6 * time.Hour},
}

const (
	// SuppressFor parks terminally completed jobs.
	SuppressFor = 3 * 365 * 24 * time.Hour
	// DefaultLeaseTimeout reclaims jobs whose worker vanished.
	DefaultLeaseTimeout = 10 * time.Minute
)

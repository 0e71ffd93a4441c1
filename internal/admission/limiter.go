package admission

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/mathi4s/gatehouse/internal/logger"
)

// sweepMaxAge keeps windows around for at most an hour past their last
// entry before the probabilistic sweep reclaims them.
const sweepMaxAge = time.Hour

// LimitResult is the rate limiter's verdict for one request.
type LimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterMinutes converts the retry hint to the whole minutes the public
// API speaks, rounding up so "try again in 0 minutes" never happens.
func (r LimitResult) RetryAfterMinutes() int {
	if r.Allowed || r.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(r.RetryAfter.Minutes()))
}

// Limiter bounds how many admission-checked requests one client may make per
// action category inside a trailing window.
type Limiter struct {
	store WindowStore
}

// NewLimiter wraps a window store.
func NewLimiter(store WindowStore) *Limiter {
	return &Limiter{store: store}
}

// CheckAndRecord applies the action's limit (strict or normal table) to the
// client and records the request when admitted.
func (l *Limiter) CheckAndRecord(ctx context.Context, clientID string, action Action, strict bool, now time.Time) (LimitResult, error) {
	limit := LimitFor(action, strict)
	key := clientID + ":" + string(action)

	allowed, oldest, err := l.store.Take(ctx, key, limit, now)
	if err != nil {
		return LimitResult{}, err
	}

	// Occasional opportunistic cleanup so idle windows don't pile up.
	if rand.Intn(10) == 0 {
		if removed, err := l.store.Sweep(ctx, sweepMaxAge, now); err == nil && removed > 0 {
			logger.WithFields(map[string]interface{}{"removed": removed}).Debug("swept idle rate-limit windows")
		}
	}

	if allowed {
		return LimitResult{Allowed: true}, nil
	}
	return LimitResult{Allowed: false, RetryAfter: oldest.Add(limit.Window).Sub(now)}, nil
}

// Package ratelimit implements the per-identity sliding-window request
// limiter applied before any payload parsing.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stackwatch-systems/stackwatch/internal/counters"
	"github.com/stackwatch-systems/stackwatch/internal/identity"
)

// MaxRequestsFunc returns the maximum requests per window for a caller,
// allowing different limits per plan.
type MaxRequestsFunc func(ctx context.Context, id identity.Identity) int64

// Decision is the outcome of a rate limit check. Limit and Remaining feed
// the RateLimit-Limit and RateLimit-Remaining response headers.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
}

// Limiter counts requests per (identifier, window) in the shared counter
// store. Counter-store errors fail open: the request is forwarded as if
// not yet limited.
type Limiter struct {
	store  counters.Store
	window time.Duration
	maxFor MaxRequestsFunc

	// now is overridable for window rollover tests.
	now func() time.Time
}

// New creates a Limiter with the given window and per-caller limit lookup.
func New(store counters.Store, window time.Duration, maxFor MaxRequestsFunc) *Limiter {
	return &Limiter{
		store:  store,
		window: window,
		maxFor: maxFor,
		now:    time.Now,
	}
}

// SetClock overrides the limiter's clock. Tests only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
}

// Check atomically increments the caller's counter for the current window
// and decides whether the request may proceed.
func (l *Limiter) Check(ctx context.Context, id identity.Identity) Decision {
	max := l.maxFor(ctx, id)
	if max < 0 {
		// Negative limit means unlimited.
		return Decision{Allowed: true, Limit: max, Remaining: max}
	}

	windowStart := l.now().Truncate(l.window)
	key := fmt.Sprintf("hit:%s:%d", id.Key(), windowStart.Unix())

	count, err := l.store.Increment(ctx, key)
	if err != nil {
		// Fail open on limiter unavailability.
		slog.Warn("rate limit counter increment failed", slog.String("error", err.Error()))
		return Decision{Allowed: true, Limit: max, Remaining: max}
	}

	if count == 1 {
		if err := l.store.SetExpiration(ctx, key, windowStart.Add(l.window)); err != nil {
			slog.Warn("rate limit counter expiration failed", slog.String("error", err.Error()))
		}
	}

	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:   count <= max,
		Limit:     max,
		Remaining: remaining,
	}
}

// Package ratelimit provides a per-identity fixed-window request gate.
package ratelimit

import (
	"sync"
	"time"

	"github.com/clearquote/assistant/internal/domain"
)

// Clock abstracts time for deterministic tests.
type Clock func() time.Time

// TierLimits maps a tier name to its per-window message allowance.
type TierLimits map[string]int

// DefaultTier is used when the caller has no tier assignment.
const DefaultTier = "default"

// Limiter enforces a fixed window (one minute) per (tenant, user) identity.
// Check-and-increment is atomic under the mutex so two concurrent requests
// from the same identity cannot both pass the boundary.
type Limiter struct {
	mu        sync.Mutex
	windows   map[string]*window
	limits    TierLimits
	window    time.Duration
	now       Clock
	lastSweep time.Time
}

type window struct {
	start time.Time
	count int
}

// New creates a limiter. defaultLimit applies to the default tier; extra tiers
// may be registered via SetTierLimit.
func New(defaultLimit int, now Clock) *Limiter {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		windows: make(map[string]*window),
		limits:  TierLimits{DefaultTier: defaultLimit},
		window:  time.Minute,
		now:     now,
	}
}

// SetTierLimit registers or replaces a tier allowance.
func (l *Limiter) SetTierLimit(tier string, limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[tier] = limit
}

// Check consumes one slot for the identity if the window allows it. The
// returned decision carries the window reset time either way. Callers must
// run all synchronous validation first: a rejected request must not consume
// quota, so Check is only called once the request is known to be well formed.
func (l *Limiter) Check(userID, tenantID, tier string) domain.RateLimitDecision {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[tier]
	if !ok {
		tier = DefaultTier
		limit = l.limits[DefaultTier]
	}

	key := tenantID + "/" + userID
	now := l.now()

	// Expired windows for other identities would otherwise accumulate forever.
	// Sweeping at most once per window keeps the scan off the hot path.
	if now.Sub(l.lastSweep) >= l.window {
		for k, w := range l.windows {
			if now.Sub(w.start) >= l.window {
				delete(l.windows, k)
			}
		}
		l.lastSweep = now
	}

	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= l.window {
		w = &window{start: now}
		l.windows[key] = w
	}

	resetAt := w.start.Add(l.window)
	if w.count >= limit {
		return domain.RateLimitDecision{
			Allowed: false,
			Tier:    tier,
			Limit:   limit,
			ResetAt: resetAt,
		}
	}

	w.count++
	return domain.RateLimitDecision{
		Allowed: true,
		Tier:    tier,
		Limit:   limit,
		ResetAt: resetAt,
	}
}

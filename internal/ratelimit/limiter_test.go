package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestCheckAllowsUpToLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(3, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		d := l.Check("u1", "t1", DefaultTier)
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	d := l.Check("u1", "t1", DefaultTier)
	if d.Allowed {
		t.Fatalf("4th request should be rejected")
	}
	if !d.ResetAt.After(now) {
		t.Fatalf("resetAt should be in the future, got %v", d.ResetAt)
	}
	if d.Limit != 3 {
		t.Fatalf("expected limit 3, got %d", d.Limit)
	}
}

func TestCheckWindowResets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(1, func() time.Time { return now })

	if d := l.Check("u1", "t1", DefaultTier); !d.Allowed {
		t.Fatalf("first request should be allowed")
	}
	if d := l.Check("u1", "t1", DefaultTier); d.Allowed {
		t.Fatalf("second request should be rejected")
	}

	now = now.Add(time.Minute)
	if d := l.Check("u1", "t1", DefaultTier); !d.Allowed {
		t.Fatalf("request in new window should be allowed")
	}
}

func TestCheckIsolatesIdentities(t *testing.T) {
	l := New(1, nil)

	if d := l.Check("u1", "t1", DefaultTier); !d.Allowed {
		t.Fatalf("u1/t1 should be allowed")
	}
	if d := l.Check("u1", "t2", DefaultTier); !d.Allowed {
		t.Fatalf("same user in another tenant should have its own window")
	}
	if d := l.Check("u2", "t1", DefaultTier); !d.Allowed {
		t.Fatalf("another user should have its own window")
	}
	if d := l.Check("u1", "t1", DefaultTier); d.Allowed {
		t.Fatalf("u1/t1 second request should be rejected")
	}
}

func TestCheckUnknownTierFallsBackToDefault(t *testing.T) {
	l := New(2, nil)
	d := l.Check("u1", "t1", "platinum")
	if !d.Allowed || d.Tier != DefaultTier || d.Limit != 2 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestCheckTierOverride(t *testing.T) {
	l := New(1, nil)
	l.SetTierLimit("pro", 5)

	for i := 0; i < 5; i++ {
		if d := l.Check("u1", "t1", "pro"); !d.Allowed {
			t.Fatalf("pro request %d should be allowed", i+1)
		}
	}
	if d := l.Check("u1", "t1", "pro"); d.Allowed {
		t.Fatalf("6th pro request should be rejected")
	}
}

func TestCheckEvictsExpiredWindows(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := New(5, func() time.Time { return now })

	l.Check("u1", "t1", DefaultTier)
	l.Check("u2", "t1", DefaultTier)
	if len(l.windows) != 2 {
		t.Fatalf("expected 2 live windows, got %d", len(l.windows))
	}

	now = now.Add(2 * time.Minute)
	l.Check("u3", "t1", DefaultTier)

	if len(l.windows) != 1 {
		t.Fatalf("expired windows must be evicted, got %d", len(l.windows))
	}
	if _, ok := l.windows["t1/u3"]; !ok {
		t.Fatalf("the live window must survive the sweep")
	}
}

func TestCheckConcurrentNeverOvershoots(t *testing.T) {
	const limit = 10
	l := New(limit, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := l.Check("u1", "t1", DefaultTier); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != limit {
		t.Fatalf("expected exactly %d allowed, got %d", limit, allowed)
	}
}

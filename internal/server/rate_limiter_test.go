package server

import (
	"fmt"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limiter := newRateLimiter(2, time.Minute)

	if !limiter.Allow("stripe:10.0.0.1") || !limiter.Allow("stripe:10.0.0.1") {
		t.Fatal("calls within limit must pass")
	}
	if limiter.Allow("stripe:10.0.0.1") {
		t.Fatal("third call in window must be rejected")
	}
	// A different sender has its own window.
	if !limiter.Allow("stripe:10.0.0.2") {
		t.Fatal("other sender must not be starved")
	}
}

func TestRateLimiterRejectsEmptyKey(t *testing.T) {
	limiter := newRateLimiter(10, time.Minute)
	if limiter.Allow("") {
		t.Fatal("empty key must be rejected")
	}
}

func TestRateLimiterPrunesStaleWindows(t *testing.T) {
	limiter := newRateLimiter(1, time.Minute)

	for i := 0; i < maxTrackedKeys+1; i++ {
		key := fmt.Sprintf("stripe:10.0.%d.%d", i/256, i%256)
		limiter.Allow(key)
	}
	limiter.mu.Lock()
	for _, entry := range limiter.items {
		entry.windowStart = entry.windowStart.Add(-2 * time.Minute)
	}
	size := len(limiter.items)
	limiter.mu.Unlock()
	if size <= maxTrackedKeys {
		t.Fatalf("tracked keys = %d, setup did not overflow", size)
	}

	limiter.Allow("stripe:192.168.0.1")

	limiter.mu.Lock()
	size = len(limiter.items)
	limiter.mu.Unlock()
	if size != 1 {
		t.Fatalf("tracked keys after prune = %d, want 1", size)
	}
}

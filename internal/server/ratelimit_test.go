package server

import (
	"testing"
	"time"
)

func TestRateLimiterGlobalDisabledAllowsEverything(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if !rl.AllowRequest() {
			t.Fatalf("expected unlimited requests when no global rate is set")
		}
	}
}

func TestRateLimiterGlobalBurstExhausts(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{GlobalRPS: 0.001, GlobalBurst: 2})

	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.AllowRequest() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("expected burst of 2 requests, got %d", allowed)
	}
}

func TestRateLimiterVoteLimitPerKey(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{VoteLimit: 3, VoteWindow: time.Hour})

	for i := 0; i < 3; i++ {
		allowed, _, err := rl.AllowVote("1.2.3.4")
		if err != nil {
			t.Fatalf("AllowVote: %v", err)
		}
		if !allowed {
			t.Fatalf("expected vote %d allowed", i+1)
		}
	}
	allowed, retryAfter, err := rl.AllowVote("1.2.3.4")
	if err != nil {
		t.Fatalf("AllowVote over limit: %v", err)
	}
	if allowed {
		t.Fatalf("expected 4th vote denied")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected a retry hint, got %s", retryAfter)
	}

	// A different client key has its own budget.
	if allowed, _, _ := rl.AllowVote("5.6.7.8"); !allowed {
		t.Fatalf("expected other client to be unaffected")
	}
}

func TestRateLimiterVoteDisabledAllowsEverything(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{})
	for i := 0; i < 50; i++ {
		if allowed, _, err := rl.AllowVote("1.2.3.4"); err != nil || !allowed {
			t.Fatalf("expected unlimited votes when no vote limit is set")
		}
	}
}

func TestRateLimiterCleansStaleVoteBuckets(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{VoteLimit: 1, VoteWindow: 10 * time.Millisecond})

	if allowed, _, _ := rl.AllowVote("stale"); !allowed {
		t.Fatalf("expected first vote allowed")
	}
	time.Sleep(50 * time.Millisecond)
	if allowed, _, _ := rl.AllowVote("fresh"); !allowed {
		t.Fatalf("expected fresh client allowed")
	}

	rl.voteMu.Lock()
	_, stale := rl.voteBuckets["stale"]
	rl.voteMu.Unlock()
	if stale {
		t.Fatalf("expected stale bucket evicted")
	}
}

func TestTokenBucketRefillsOverTime(t *testing.T) {
	bucket := newTokenBucket(100, 1)

	if !bucket.Allow() {
		t.Fatalf("expected first token available")
	}
	if bucket.Allow() {
		t.Fatalf("expected bucket drained")
	}
	time.Sleep(30 * time.Millisecond)
	if !bucket.Allow() {
		t.Fatalf("expected refill after waiting")
	}
}

type fakeTokenStore struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	keys       []string
}

func (f *fakeTokenStore) Allow(key string, limit int, window time.Duration) (bool, time.Duration, error) {
	f.keys = append(f.keys, key)
	return f.allowed, f.retryAfter, f.err
}

func TestRateLimiterPrefersSharedStore(t *testing.T) {
	store := &fakeTokenStore{allowed: false, retryAfter: 5 * time.Second}
	rl := newRateLimiter(RateLimitConfig{VoteLimit: 10, VoteWindow: time.Minute})
	rl.store = store

	allowed, retryAfter, err := rl.AllowVote("9.9.9.9")
	if err != nil {
		t.Fatalf("AllowVote: %v", err)
	}
	if allowed {
		t.Fatalf("expected shared store verdict to win")
	}
	if retryAfter != 5*time.Second {
		t.Fatalf("expected store retry hint, got %s", retryAfter)
	}
	if len(store.keys) != 1 || store.keys[0] != "clipstash:vote:9.9.9.9" {
		t.Fatalf("unexpected store key: %v", store.keys)
	}
}

package server

import (
	"fmt"
	"sync"
	"time"
)

type RateLimitConfig struct {
	GlobalRPS     float64
	GlobalBurst   int
	VoteLimit     int
	VoteWindow    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisTimeout  time.Duration
}

type rateLimiter struct {
	global      *tokenBucket
	voteLimit   int
	voteWindow  time.Duration
	voteMu      sync.Mutex
	voteBuckets map[string]*keyLimiter
	store       tokenStore
}

type keyLimiter struct {
	bucket   *tokenBucket
	lastSeen time.Time
}

type tokenStore interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration, error)
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		voteLimit:   cfg.VoteLimit,
		voteWindow:  cfg.VoteWindow,
		voteBuckets: make(map[string]*keyLimiter),
	}
	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst <= 0 {
			burst = int(cfg.GlobalRPS)
			if burst < 1 {
				burst = 1
			}
		}
		rl.global = newTokenBucket(cfg.GlobalRPS, burst)
	}
	if rl.voteLimit <= 0 {
		rl.voteLimit = 0
	}
	if rl.voteWindow <= 0 {
		rl.voteWindow = time.Minute
	}
	if cfg.RedisAddr != "" && rl.voteLimit > 0 {
		timeout := cfg.RedisTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		rl.store = newRedisStore(cfg.RedisAddr, cfg.RedisPassword, timeout)
	}
	return rl
}

func (r *rateLimiter) AllowRequest() bool {
	if r == nil || r.global == nil {
		return true
	}
	return r.global.Allow()
}

// AllowVote throttles vote submissions per client key. With Redis configured
// the counter is shared across replicas, otherwise a local bucket applies.
func (r *rateLimiter) AllowVote(key string) (bool, time.Duration, error) {
	if r == nil || r.voteLimit <= 0 {
		return true, 0, nil
	}
	if r.store != nil {
		allowed, retryAfter, err := r.store.Allow(fmt.Sprintf("clipstash:vote:%s", key), r.voteLimit, r.voteWindow)
		return allowed, retryAfter, err
	}
	if key == "" {
		key = "unknown"
	}
	r.voteMu.Lock()
	bucket, exists := r.voteBuckets[key]
	if !exists {
		rate := float64(r.voteLimit) / r.voteWindow.Seconds()
		if rate <= 0 {
			rate = 1 / r.voteWindow.Seconds()
		}
		bucket = &keyLimiter{bucket: newTokenBucket(rate, r.voteLimit)}
		r.voteBuckets[key] = bucket
	}
	bucket.lastSeen = time.Now()
	r.cleanupLocked()
	r.voteMu.Unlock()

	if bucket.bucket.Allow() {
		return true, 0, nil
	}
	return false, time.Second, nil
}

func (r *rateLimiter) cleanupLocked() {
	if len(r.voteBuckets) == 0 {
		return
	}
	cutoff := time.Now().Add(-2 * r.voteWindow)
	for key, bucket := range r.voteBuckets {
		if bucket.lastSeen.Before(cutoff) {
			delete(r.voteBuckets, key)
		}
	}
}

type tokenBucket struct {
	mu        sync.Mutex
	rate      float64
	capacity  float64
	tokens    float64
	lastCheck time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	if rate <= 0 {
		rate = 1
	}
	if burst <= 0 {
		burst = 1
	}
	now := time.Now()
	return &tokenBucket{
		rate:      rate,
		capacity:  float64(burst),
		tokens:    float64(burst),
		lastCheck: now,
	}
}

func (tb *tokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	elapsed := now.Sub(tb.lastCheck).Seconds()
	tb.lastCheck = now
	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	if tb.tokens < 1 {
		return false
	}
	tb.tokens -= 1
	return true
}

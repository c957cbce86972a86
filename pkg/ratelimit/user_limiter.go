package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements a token bucket rate limiting algorithm
type TokenBucket struct {
	tokens         float64
	maxTokens      float64
	refillRate     float64
	lastRefillTime time.Time
	mutex          sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillRate:     refillRate,
		lastRefillTime: time.Now(),
	}
}

// Allow checks if a request can proceed based on the token bucket algorithm
func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.lastRefillTime = now

	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// UserRateLimiter keeps a token bucket per user identity
type UserRateLimiter struct {
	buckets    map[string]*TokenBucket
	maxTokens  float64
	refillRate float64
	mutex      sync.Mutex
}

// NewUserRateLimiter creates a per-user rate limiter
func NewUserRateLimiter(maxTokens float64, refillRate float64) *UserRateLimiter {
	return &UserRateLimiter{
		buckets:    make(map[string]*TokenBucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
	}
}

// Allow checks whether the given user may proceed
func (l *UserRateLimiter) Allow(userID string) bool {
	l.mutex.Lock()
	bucket, ok := l.buckets[userID]

	if !ok {
		bucket = NewTokenBucket(l.maxTokens, l.refillRate)
		l.buckets[userID] = bucket
	}
	l.mutex.Unlock()

	return bucket.Allow()
}

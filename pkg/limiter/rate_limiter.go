// Package limiter protects the synthesis server from floods of requests and
// the parallel client from failing remote servers.
package limiter

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateConfig is a token bucket: RPS tokens per second, at most Burst at
// once. A non-positive RPS disables limiting.
type RateConfig struct {
	RPS   float64 `yaml:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" validate:"gte=0"`
}

// DefaultRateConfig allows a few searches per second per client.
func DefaultRateConfig() RateConfig {
	return RateConfig{RPS: 5, Burst: 10}
}

// RateLimiter keeps one token bucket per key, usually a client address or
// a remote endpoint.
type RateLimiter struct {
	config   RateConfig
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateConfig) *RateLimiter {
	if config.Burst < 1 {
		config.Burst = 1
	}
	return &RateLimiter{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Enabled reports whether requests are limited at all.
func (rl *RateLimiter) Enabled() bool {
	return rl != nil && rl.config.RPS > 0
}

// GetLimiter returns or creates the bucket for key.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}
	limit := rate.Inf
	if rl.config.RPS > 0 {
		limit = rate.Limit(rl.config.RPS)
	}
	limiter := rate.NewLimiter(limit, rl.config.Burst)
	rl.limiters[key] = limiter
	return limiter
}

// Wait waits for the rate limiter to allow the request
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if !rl.Enabled() {
		return nil
	}
	if err := rl.GetLimiter(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return nil
}

// Allow checks if the request is allowed without waiting
func (rl *RateLimiter) Allow(key string) bool {
	if !rl.Enabled() {
		return true
	}
	return rl.GetLimiter(key).Allow()
}

// GetStats returns rate limiter statistics for a key
func (rl *RateLimiter) GetStats(key string) map[string]interface{} {
	limiter := rl.GetLimiter(key)
	return map[string]interface{}{
		"key":    key,
		"limit":  float64(limiter.Limit()),
		"burst":  limiter.Burst(),
		"tokens": limiter.TokensAt(time.Now()),
	}
}

// Reset drops the bucket of a key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.limiters, key)
}

// ResetAll resets all rate limiters
func (rl *RateLimiter) ResetAll() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiters = make(map[string]*rate.Limiter)
}

// ClientKey identifies the client of a request by its remote host.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientKey(r)) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

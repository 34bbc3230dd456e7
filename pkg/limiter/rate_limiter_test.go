package limiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateConfig{RPS: 1, Burst: 2})
	require.True(t, rl.Enabled())

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	// buckets are per key
	assert.True(t, rl.Allow("b"))

	stats := rl.GetStats("a")
	assert.Equal(t, 1.0, stats["limit"])
	assert.Equal(t, 2, stats["burst"])

	rl.Reset("a")
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiterWait(t *testing.T) {
	rl := NewRateLimiter(RateConfig{RPS: 0.1, Burst: 1})
	require.NoError(t, rl.Wait(context.Background(), "k"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx, "k"))
}

func TestDisabledRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateConfig{})
	assert.False(t, rl.Enabled())
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("k"))
	}
	require.NoError(t, rl.Wait(context.Background(), "k"))
}

func TestMiddleware(t *testing.T) {
	rl := NewRateLimiter(RateConfig{RPS: 1, Burst: 1})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/synthesize", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, call("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:1001"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2:1000"))
}

package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerManager(t *testing.T) {
	cbm := NewCircuitBreakerManager(DefaultCircuitBreakerConfig(), nil)

	result, err := cbm.Execute(context.Background(), "http://a", func(context.Context) (interface{}, error) {
		return "success", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, gobreaker.StateClosed, cbm.GetState("http://a"))
}

func TestCircuitBreakerOpens(t *testing.T) {
	var mu sync.Mutex
	var changes []gobreaker.State
	cbm := NewCircuitBreakerManager(DefaultCircuitBreakerConfig(), func(name string, from, to gobreaker.State) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, to)
	})

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		_, err := cbm.Execute(context.Background(), "http://b", func(context.Context) (interface{}, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	}
	assert.True(t, cbm.IsOpen("http://b"))

	_, err := cbm.Execute(context.Background(), "http://b", func(context.Context) (interface{}, error) {
		t.Fatal("open breaker must not call through")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)

	mu.Lock()
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, changes)
	mu.Unlock()

	stats := cbm.GetStats("http://b")
	assert.Equal(t, "open", stats["state"])
}

func TestCircuitBreakerIgnoresCancellation(t *testing.T) {
	cbm := NewCircuitBreakerManager(DefaultCircuitBreakerConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := cbm.Execute(ctx, "http://c", func(ctx context.Context) (interface{}, error) {
			return nil, ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.False(t, cbm.IsOpen("http://c"))
}

func TestProtectionManager(t *testing.T) {
	config := DefaultConfig()
	config.Retry = fastRetry(1)
	config.Breaker.Timeout = time.Hour
	pm := NewProtectionManager(config, nil)

	attempts := 0
	res, err := pm.ExecuteWithProtection(context.Background(), "http://d", func(context.Context) (interface{}, error) {
		attempts++
		if attempts == 1 {
			return nil, NewHTTPError(503, "busy")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.Equal(t, 2, attempts)

	// three failed protected calls open the endpoint's breaker
	for i := 0; i < 3; i++ {
		_, err = pm.ExecuteWithProtection(context.Background(), "http://e", func(context.Context) (interface{}, error) {
			return nil, NewHTTPError(400, "bad")
		})
		require.Error(t, err)
	}
	_, err = pm.ExecuteWithProtection(context.Background(), "http://e", func(context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.True(t, pm.Breakers().IsOpen("http://e"))
}

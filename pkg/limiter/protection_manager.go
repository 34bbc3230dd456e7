package limiter

import (
	"context"
	"fmt"
)

// Config groups the protections applied to calls to one remote endpoint.
type Config struct {
	Rate    RateConfig           `yaml:"rate"`
	Retry   RetryConfig          `yaml:"retry"`
	Breaker CircuitBreakerConfig `yaml:"breaker"`
}

// DefaultConfig leaves outgoing calls unthrottled and retries transient
// failures behind a breaker.
func DefaultConfig() Config {
	return Config{
		Retry:   DefaultRetryConfig(),
		Breaker: DefaultCircuitBreakerConfig(),
	}
}

// ProtectionManager integrates rate limiting, retries, and circuit breaker
type ProtectionManager struct {
	rateLimiter    *RateLimiter
	retryManager   *RetryManager
	circuitBreaker *CircuitBreakerManager
}

// NewProtectionManager creates a new protection manager
func NewProtectionManager(config Config, onChange StateChangeFunc) *ProtectionManager {
	return &ProtectionManager{
		rateLimiter:    NewRateLimiter(config.Rate),
		retryManager:   NewRetryManager(config.Retry),
		circuitBreaker: NewCircuitBreakerManager(config.Breaker, onChange),
	}
}

// ExecuteWithProtection runs fn against endpoint: throttled, retried on
// transient failures and short-circuited while the endpoint's breaker is
// open.
func (pm *ProtectionManager) ExecuteWithProtection(
	ctx context.Context,
	endpoint string,
	fn func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	if pm.circuitBreaker.IsOpen(endpoint) {
		return nil, fmt.Errorf("%w: %s", ErrOpen, endpoint)
	}
	if err := pm.rateLimiter.Wait(ctx, endpoint); err != nil {
		return nil, err
	}
	return pm.circuitBreaker.Execute(ctx, endpoint, func(ctx context.Context) (interface{}, error) {
		return pm.retryManager.Execute(ctx, fn)
	})
}

// Breakers exposes the breaker manager.
func (pm *ProtectionManager) Breakers() *CircuitBreakerManager {
	return pm.circuitBreaker
}

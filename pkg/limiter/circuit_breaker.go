package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned when a breaker refuses a call.
var ErrOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests uint32                             `yaml:"max_requests"`
	Interval    time.Duration                      `yaml:"interval"`
	Timeout     time.Duration                      `yaml:"timeout"`
	ReadyToTrip func(counts gobreaker.Counts) bool `yaml:"-"`
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
}

// StateChangeFunc observes breaker transitions.
type StateChangeFunc func(name string, from, to gobreaker.State)

// CircuitBreakerManager keeps one breaker per remote endpoint.
type CircuitBreakerManager struct {
	config   CircuitBreakerConfig
	onChange StateChangeFunc
	breakers map[string]*gobreaker.CircuitBreaker
	mu       sync.Mutex
}

// NewCircuitBreakerManager creates a new circuit breaker manager. onChange
// may be nil.
func NewCircuitBreakerManager(config CircuitBreakerConfig, onChange StateChangeFunc) *CircuitBreakerManager {
	if config.ReadyToTrip == nil {
		config.ReadyToTrip = DefaultCircuitBreakerConfig().ReadyToTrip
	}
	return &CircuitBreakerManager{
		config:   config,
		onChange: onChange,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// GetBreaker returns or creates the breaker of an endpoint.
func (cbm *CircuitBreakerManager) GetBreaker(endpoint string) *gobreaker.CircuitBreaker {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()

	if breaker, exists := cbm.breakers[endpoint]; exists {
		return breaker
	}
	settings := gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: cbm.config.MaxRequests,
		Interval:    cbm.config.Interval,
		Timeout:     cbm.config.Timeout,
		ReadyToTrip: cbm.config.ReadyToTrip,
	}
	if cbm.onChange != nil {
		settings.OnStateChange = cbm.onChange
	}
	breaker := gobreaker.NewCircuitBreaker(settings)
	cbm.breakers[endpoint] = breaker
	return breaker
}

// Execute runs fn through the breaker of endpoint. Context errors do not
// count as failures of the endpoint.
func (cbm *CircuitBreakerManager) Execute(ctx context.Context, endpoint string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	breaker := cbm.GetBreaker(endpoint)
	var ctxErr error
	result, err := breaker.Execute(func() (interface{}, error) {
		res, err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			ctxErr = err
			return nil, nil
		}
		return res, err
	})
	if ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrOpen, endpoint)
	}
	if err != nil {
		return nil, fmt.Errorf("circuit breaker execution failed: %w", err)
	}
	return result, nil
}

// GetState returns the current state of a circuit breaker
func (cbm *CircuitBreakerManager) GetState(endpoint string) gobreaker.State {
	return cbm.GetBreaker(endpoint).State()
}

// GetStats returns circuit breaker statistics for an endpoint
func (cbm *CircuitBreakerManager) GetStats(endpoint string) map[string]interface{} {
	breaker := cbm.GetBreaker(endpoint)
	counts := breaker.Counts()
	return map[string]interface{}{
		"endpoint":             endpoint,
		"state":                breaker.State().String(),
		"requests":             counts.Requests,
		"total_success":        counts.TotalSuccesses,
		"total_failures":       counts.TotalFailures,
		"consecutive_success":  counts.ConsecutiveSuccesses,
		"consecutive_failures": counts.ConsecutiveFailures,
	}
}

// IsOpen checks if the circuit breaker is open for an endpoint
func (cbm *CircuitBreakerManager) IsOpen(endpoint string) bool {
	return cbm.GetState(endpoint) == gobreaker.StateOpen
}

// ResetAll resets all circuit breakers
func (cbm *CircuitBreakerManager) ResetAll() {
	cbm.mu.Lock()
	defer cbm.mu.Unlock()
	cbm.breakers = make(map[string]*gobreaker.CircuitBreaker)
}

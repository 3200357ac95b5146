package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Threshold is the number of consecutive provider failures that opens the circuit.
	Threshold int
	// ResetAfter is how long an open circuit waits before letting one probe through.
	ResetAfter time.Duration
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Threshold:  5,
		ResetAfter: 30 * time.Second,
	}
}

// CircuitBreaker stops chat requests from reaching a provider that keeps failing.
type CircuitBreaker struct {
	mu               sync.Mutex
	consecutiveFails int
	threshold        int
	resetAfter       time.Duration
	lastFailure      time.Time
	state            CircuitState
	now              func() time.Time
}

func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.Threshold < 1 {
		config.Threshold = DefaultCircuitBreakerConfig().Threshold
	}
	return &CircuitBreaker{
		threshold:  config.Threshold,
		resetAfter: config.ResetAfter,
		state:      CircuitClosed,
		now:        time.Now,
	}
}

// Allow reports whether a request may proceed. An open circuit becomes
// half-open once ResetAfter has elapsed and admits a single probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) > cb.resetAfter {
			cb.state = CircuitHalfOpen
			return nil
		}
		return NewError(ErrorTypeCircuitOpen,
			fmt.Sprintf("chat provider unavailable after %d consecutive failures", cb.consecutiveFails), true, nil)
	default:
		return NewError(ErrorTypeCircuitOpen, "chat provider recovery probe in flight", true, nil)
	}
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFails = 0
	cb.state = CircuitClosed
}

// RecordFailure counts a failure, opening the circuit at the threshold or
// immediately when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailure = cb.now()

	if cb.state == CircuitHalfOpen || cb.consecutiveFails >= cb.threshold {
		cb.state = CircuitOpen
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFails
}

// guardedClient routes Chat calls through a CircuitBreaker.
type guardedClient struct {
	next    ChatClient
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// WithCircuitBreaker wraps client so that repeated provider failures fail
// fast with an ErrorTypeCircuitOpen error.
func WithCircuitBreaker(client ChatClient, breaker *CircuitBreaker, logger *zap.Logger) ChatClient {
	return &guardedClient{next: client, breaker: breaker, logger: logger.Named("circuit_breaker")}
}

func (g *guardedClient) Model() string {
	return g.next.Model()
}

func (g *guardedClient) Chat(ctx context.Context, req *ChatRequest, executor ToolExecutor) (*ChatResult, error) {
	if err := g.breaker.Allow(); err != nil {
		return nil, err
	}

	result, err := g.next.Chat(ctx, req, executor)
	if err == nil {
		g.breaker.RecordSuccess()
		return result, nil
	}

	// The provider answered every round of an exhausted tool loop.
	if GetErrorType(err) == ErrorTypeToolLoop {
		g.breaker.RecordSuccess()
		return nil, err
	}
	if ctx.Err() != nil && g.breaker.State() != CircuitHalfOpen {
		return nil, err
	}
	g.breaker.RecordFailure()
	if g.breaker.State() == CircuitOpen {
		g.logger.Warn("Chat provider circuit opened",
			zap.Int("consecutive_failures", g.breaker.ConsecutiveFailures()),
			zap.Error(err))
	}
	return nil, err
}

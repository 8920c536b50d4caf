package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Connector establishes a new connection/pool handle of type P.
type Connector[P any] func(ctx context.Context) (P, error)

// Pinger checks that an established handle is still serving traffic.
type Pinger[P any] func(ctx context.Context, conn P) error

// Closer releases a handle's resources.
type Closer[P any] func(conn P)

// AgentOption configures a PoolAgent at construction time.
type AgentOption[P any] func(*PoolAgent[P])

// WithMaxRetries overrides the default connect-retry ceiling.
func WithMaxRetries[P any](n int) AgentOption[P] {
	return func(a *PoolAgent[P]) { a.maxRetries = n }
}

// WithBaseRetryDelay overrides the default exponential-backoff base delay.
func WithBaseRetryDelay[P any](d time.Duration) AgentOption[P] {
	return func(a *PoolAgent[P]) { a.baseDelay = d }
}

// WithHealthCheckInterval overrides the default background ping interval.
func WithHealthCheckInterval[P any](d time.Duration) AgentOption[P] {
	return func(a *PoolAgent[P]) { a.checkInterval = d }
}

// WithOptional marks the dependency as non-fatal: a failed first
// connection attempt never turns into a Start error.
func WithOptional[P any](optional bool) AgentOption[P] {
	return func(a *PoolAgent[P]) { a.optional = optional }
}

// WithLazyInit defers the first connection attempt to a background
// goroutine instead of making Start block service boot on it. Start
// still returns nil immediately; the pool settles into Available or
// Unhealthy asynchronously and broadcasts the outcome like any other
// state transition.
func WithLazyInit[P any](lazy bool) AgentOption[P] {
	return func(a *PoolAgent[P]) { a.lazyInit = lazy }
}

// WithBroker attaches a Broker that receives this agent's health broadcasts.
func WithBroker[P any](b *Broker) AgentOption[P] {
	return func(a *PoolAgent[P]) { a.broker = b }
}

// WithLogger attaches a zap logger; a no-op logger is used if omitted.
func WithLogger[P any](l *zap.Logger) AgentOption[P] {
	return func(a *PoolAgent[P]) { a.logger = l }
}

// PoolAgent supervises one external dependency's connection lifecycle
// through the state machine Absent -> Connecting -> Available ->
// Unhealthy -> Connecting -> ... Health-check failures demote an
// Available pool to Unhealthy and schedule a reconnect; they never tear
// down the service.
type PoolAgent[P any] struct {
	name string

	connect Connector[P]
	ping    Pinger[P]
	close   Closer[P]

	maxRetries    int
	baseDelay     time.Duration
	checkInterval time.Duration
	optional      bool
	lazyInit      bool

	broker *Broker
	logger *zap.Logger

	mu      sync.RWMutex
	state   State
	pool    P
	hasPool bool
}

// NewPoolAgent constructs a PoolAgent for dependency "name".
func NewPoolAgent[P any](name string, connect Connector[P], ping Pinger[P], close Closer[P], opts ...AgentOption[P]) *PoolAgent[P] {
	a := &PoolAgent[P]{
		name:          name,
		connect:       connect,
		ping:          ping,
		close:         close,
		maxRetries:    5,
		baseDelay:     500 * time.Millisecond,
		checkInterval: 30 * time.Second,
		state:         StateAbsent,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start connects in the background and keeps the pool alive for the
// lifetime of ctx. With lazyInit unset it returns once the first
// connection attempt settles (success, exhausted retries on a required
// dependency, or gives up silently on an optional one) and continues
// monitoring in a goroutine. With lazyInit set it returns immediately
// without attempting a connection at all; the monitor goroutine makes
// the first attempt itself as soon as it starts running.
func (a *PoolAgent[P]) Start(ctx context.Context) error {
	if a.lazyInit {
		go a.monitorLoop(ctx)
		return nil
	}

	err := a.connectWithRetry(ctx)
	if err != nil {
		if !a.optional {
			return fmt.Errorf("pool %s: %w", a.name, err)
		}
		a.logger.Warn("optional pool failed initial connect, continuing without it",
			zap.String("pool", a.name), zap.Error(err))
	}
	go a.monitorLoop(ctx)
	return nil
}

func (a *PoolAgent[P]) connectWithRetry(ctx context.Context) error {
	a.setState(StateConnecting, "connecting")

	var lastErr error
	for attempt := 1; attempt <= a.maxRetries+1; attempt++ {
		conn, err := a.connect(ctx)
		if err == nil {
			a.mu.Lock()
			a.pool = conn
			a.hasPool = true
			a.mu.Unlock()
			a.setState(StateAvailable, "connected")
			return nil
		}
		lastErr = err
		if attempt > a.maxRetries {
			break
		}
		delay := a.baseDelay * time.Duration(1<<uint(attempt-1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	a.setState(StateUnhealthy, fmt.Sprintf("connect failed: %v", lastErr))
	return lastErr
}

func (a *PoolAgent[P]) monitorLoop(ctx context.Context) {
	if a.lazyInit {
		a.runHealthCheck(ctx)
	}

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.mu.RLock()
			conn, ok := a.pool, a.hasPool
			a.mu.RUnlock()
			if ok {
				a.close(conn)
			}
			return
		case <-ticker.C:
			a.runHealthCheck(ctx)
		}
	}
}

func (a *PoolAgent[P]) runHealthCheck(ctx context.Context) {
	a.mu.RLock()
	conn, ok := a.pool, a.hasPool
	state := a.state
	a.mu.RUnlock()

	if !ok {
		if state != StateConnecting {
			_ = a.connectWithRetry(ctx)
		}
		return
	}

	if err := a.ping(ctx, conn); err != nil {
		a.logger.Warn("pool health check failed, demoting to unhealthy",
			zap.String("pool", a.name), zap.Error(err))
		a.setState(StateUnhealthy, fmt.Sprintf("health check failed: %v", err))
		a.mu.Lock()
		a.hasPool = false
		a.mu.Unlock()
		_ = a.connectWithRetry(ctx)
		return
	}

	if state != StateAvailable {
		a.setState(StateAvailable, "recovered")
	}
}

// GetPool returns the live handle and whether one is currently available.
func (a *PoolAgent[P]) GetPool() (P, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pool, a.hasPool
}

// HealthCheck performs an on-demand ping against the current pool and
// reports the result without changing the agent's tracked state.
func (a *PoolAgent[P]) HealthCheck(ctx context.Context) PoolHealthResponse {
	conn, ok := a.GetPool()
	if !ok {
		return unhealthyResponse(fmt.Sprintf("%s pool is not connected", a.name))
	}
	if err := a.ping(ctx, conn); err != nil {
		return unhealthyResponse(fmt.Sprintf("%s ping failed: %v", a.name, err))
	}
	return healthyResponse(fmt.Sprintf("%s pool is healthy", a.name))
}

// Reconnect forces an immediate reconnect attempt, replacing any existing
// handle.
func (a *PoolAgent[P]) Reconnect(ctx context.Context) error {
	a.mu.Lock()
	if a.hasPool {
		a.close(a.pool)
		a.hasPool = false
	}
	a.mu.Unlock()
	return a.connectWithRetry(ctx)
}

// State returns the agent's current lifecycle state.
func (a *PoolAgent[P]) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *PoolAgent[P]) setState(s State, message string) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()

	if a.broker == nil {
		return
	}
	a.broker.Publish(PoolHealthUpdate{
		PoolType: a.name,
		Status:   stateToHealth(s),
		Message:  message,
		Optional: a.optional,
	})
}

func stateToHealth(s State) HealthStatus {
	switch s {
	case StateAvailable:
		return HealthHealthy
	case StateConnecting:
		return HealthConnecting
	case StateUnhealthy, StateAbsent:
		return HealthUnhealthy
	default:
		return HealthUnhealthy
	}
}

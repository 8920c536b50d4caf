package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/aras-services/svccore/config"
	"github.com/aras-services/svccore/errors"
)

// Bulkhead caps the number of requests in flight, queuing additional
// arrivals behind a bounded wait rather than letting them pile up
// unbounded against a struggling downstream dependency.
type Bulkhead struct {
	slots   chan struct{}
	maxWait time.Duration
	metrics *PipelineMetrics
}

// NewBulkhead builds a Bulkhead with maxConcurrency slots.
func NewBulkhead(maxConcurrency int, maxWait time.Duration, metrics *PipelineMetrics) *Bulkhead {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Bulkhead{
		slots:   make(chan struct{}, maxConcurrency),
		maxWait: maxWait,
		metrics: metrics,
	}
}

// acquire blocks for up to b.maxWait for a free slot. The returned
// release func must be called exactly once if err is nil.
func (b *Bulkhead) acquire(ctx context.Context) (release func(), err error) {
	timer := time.NewTimer(b.maxWait)
	defer timer.Stop()

	select {
	case b.slots <- struct{}{}:
		b.metrics.bulkheadSlotAcquired()
		return func() {
			b.metrics.bulkheadSlotReleased()
			<-b.slots
		}, nil
	case <-timer.C:
		b.metrics.recordBulkheadRejection()
		return nil, errBulkheadRejected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var errBulkheadRejected = errors.New(errors.Other, "bulkhead max concurrency reached")

// NewCircuitBreaker builds a sony/gobreaker breaker from cfg: it opens
// once at least cfg.MinRequests have been observed in the current
// window and the failure ratio reaches cfg.FailureRateThreshold, then
// stays open for cfg.OpenStateTimeout before probing again.
func NewCircuitBreaker(cfg config.ResilienceConfig, metrics *PipelineMetrics, logger *zap.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "svccore-http",
		MaxRequests: 1,
		Timeout:     cfg.OpenStateTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.MinRequests) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRateThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state transition",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.recordTransition(from.String(), to.String())
		},
	})
}

// Resilience wraps next with the bulkhead (outer) and circuit breaker
// (inner), in that order: a request that can't get a bulkhead slot
// never counts against the breaker's failure window. Any handler
// response with a 5xx status is counted as a circuit breaker failure.
func Resilience(breaker *gobreaker.CircuitBreaker, bulkhead *Bulkhead) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := bulkhead.acquire(r.Context())
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"too many concurrent requests","code":"BULKHEAD_FULL","status":503}`))
				return
			}
			defer release()

			_, err = breaker.Execute(func() (interface{}, error) {
				rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
				next.ServeHTTP(rec, r)
				if rec.status >= 500 {
					return nil, errors.New(errors.Other, "upstream returned a server error")
				}
				return nil, nil
			})
			if err != nil && err != gobreaker.ErrOpenState && err != gobreaker.ErrTooManyRequests {
				// The wrapped handler already wrote its own response in this
				// branch; breaker bookkeeping only needed the error signal.
				return
			}
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"service temporarily unavailable","code":"CIRCUIT_OPEN","status":503}`))
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

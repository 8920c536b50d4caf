package service

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/aras-services/svccore/audit"
	"github.com/aras-services/svccore/auth/revocation"
	"github.com/aras-services/svccore/auth/token"
	"github.com/aras-services/svccore/middleware"
	"github.com/aras-services/svccore/pool"
)

// State carries the shared, already-constructed dependencies a service
// wires into its middleware pipeline and wiring layer. Routes built by
// the routes package are stateless by the time they reach
// ServiceAssembly — their handlers already closed over whatever
// business state they need — so State here holds only the
// cross-cutting singletons the pipeline and transport layer use
// directly. Every field is optional; a zero State builds a service
// with no auth, no audit, no rate limiting, and no gRPC.
type State struct {
	// Validator authenticates bearer tokens for the pipeline's auth
	// layer. Nil disables the auth middleware entirely.
	Validator token.Validator

	// RevocationCache, if set alongside Validator, wraps Validator in
	// token.RevocationChecking so a token surviving to its natural
	// expiry can still be rejected once its ID has been revoked.
	RevocationCache *revocation.Cache

	// RateLimiterClient backs the distributed rate limiter. Nil, or a
	// disabled RateLimit config, leaves rate limiting off.
	RateLimiterClient *redis.Client

	// Metrics records circuit-breaker/bulkhead events to Prometheus.
	// Nil leaves metrics collection a no-op.
	Metrics *middleware.PipelineMetrics

	// AuditLogger captures HTTP request/response audit events. Nil
	// disables the audit middleware.
	AuditLogger *audit.Logger

	// HealthAggregator backs the gRPC health service and should be
	// the same aggregator whose check function was wired into the
	// routes builder's /ready endpoint, so both surfaces
	// agree. Nil makes the gRPC health service always report SERVING.
	HealthAggregator *pool.HealthAggregator

	// GRPCServer is registered as the dual-protocol server's gRPC
	// handler; callers register their own service implementations on
	// it before passing it in. Nil, with Config.Service.GrpcEnabled
	// set, gets a fresh grpc.NewServer() with only the health service.
	GRPCServer *grpc.Server

	// Logger is used by the pipeline, the dual-protocol server, and
	// startup/shutdown logging. A no-op logger is used if nil.
	Logger *zap.Logger

	// AgentStarters are invoked once, concurrently-safe, when the
	// service is built — typically bound PoolAgent[P].Start methods.
	// Each receives a context that is canceled when the service stops
	// serving, ending that agent's background monitor loop.
	AgentStarters []func(context.Context) error

	// Closers release real resources (database pools, Redis/NATS
	// clients) after the service stops serving, in the order given.
	Closers []func()
}

// Package service assembles a complete ActonService from a Config, a
// routes.VersionedRoutes, and a State of shared dependencies: it
// applies the middleware pipeline, installs the audit logger, starts
// pool agents, and wires the dual-protocol server, all through a
// typestate builder that makes it structurally impossible to serve
// unversioned routes or skip configuration.
package service

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/aras-services/svccore/audit"
	"github.com/aras-services/svccore/auth/token"
	"github.com/aras-services/svccore/config"
	"github.com/aras-services/svccore/middleware"
	"github.com/aras-services/svccore/routes"
	"github.com/aras-services/svccore/server"
)

// Empty is the initial assembly state: nothing configured yet.
type Empty struct{}

// NewAssembly starts the service builder.
func NewAssembly() Empty {
	return Empty{}
}

// WithConfig attaches the service's configuration.
func (Empty) WithConfig(cfg *config.Config) HasConfig {
	return HasConfig{cfg: cfg}
}

// Build assembles a service from an empty builder, substituting an
// empty Config, the default health/ready-only routes, and a zero
// State — the all-defaults shortcut the source framework's
// ServiceBuilder::new().build() provides.
func (Empty) Build() (*ActonService, error) {
	return HasConfig{cfg: &config.Config{}}.Build()
}

// HasConfig has a configuration but no routes yet.
type HasConfig struct {
	cfg *config.Config
}

// WithRoutes attaches the opaque, already-versioned route tree. There
// is no constructor that accepts a raw router: only a *routes.VersionedRoutes.
func (h HasConfig) WithRoutes(vr *routes.VersionedRoutes) HasRoutes {
	return HasRoutes{cfg: h.cfg, routes: vr}
}

// Build assembles a service using the default health/ready-only routes
// and a zero State.
func (h HasConfig) Build() (*ActonService, error) {
	return HasRoutes{cfg: h.cfg, routes: routes.DefaultVersionedRoutes()}.Build()
}

// HasRoutes has configuration and routes but no shared state yet.
type HasRoutes struct {
	cfg    *config.Config
	routes *routes.VersionedRoutes
}

// WithState attaches the shared cross-cutting dependencies.
func (h HasRoutes) WithState(state State) Ready {
	return Ready{cfg: h.cfg, routes: h.routes, state: state}
}

// Build assembles a service with a zero State: no auth, no audit, no
// rate limiting, no gRPC.
func (h HasRoutes) Build() (*ActonService, error) {
	return Ready{cfg: h.cfg, routes: h.routes}.Build()
}

// Ready has every stage filled in and can assemble the final service.
type Ready struct {
	cfg    *config.Config
	routes *routes.VersionedRoutes
	state  State
}

// Build assembles the middleware pipeline around the versioned routes,
// installs the audit logger, starts pool agents, and constructs the
// dual-protocol server. The returned ActonService is opaque: its only
// public method is Serve.
func (r Ready) Build() (*ActonService, error) {
	cfg := r.cfg
	if cfg == nil {
		cfg = &config.Config{}
	}
	state := r.state

	logger := state.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	agentCtx, cancelAgents := context.WithCancel(context.Background())
	for _, start := range state.AgentStarters {
		if err := start(agentCtx); err != nil {
			cancelAgents()
			return nil, fmt.Errorf("service: starting pool agent: %w", err)
		}
	}

	pipelineOpts := []middleware.Option{middleware.WithLogger(logger)}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		pipelineOpts = append(pipelineOpts, middleware.WithTLS(true))
	}
	if state.Validator != nil {
		validator := state.Validator
		if state.RevocationCache != nil {
			validator = token.RevocationChecking(validator, state.RevocationCache)
		}
		pipelineOpts = append(pipelineOpts, middleware.WithAuth(validator))
	}
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled && state.RateLimiterClient != nil {
		pipelineOpts = append(pipelineOpts, middleware.WithRateLimiter(state.RateLimiterClient, *cfg.RateLimit, logger))
	}
	if cfg.Middleware.Resilience != nil && cfg.Middleware.Resilience.Enabled {
		pipelineOpts = append(pipelineOpts, middleware.WithResilience(*cfg.Middleware.Resilience, state.Metrics, logger))
	}
	pipeline := middleware.NewPipeline(cfg.Middleware, pipelineOpts...)

	handler := r.routes.Handler()
	if state.AuditLogger != nil {
		handler = audit.Middleware(state.AuditLogger)(handler)
	}
	handler = pipeline.Wrap(handler)

	serverOpts := []server.Option{server.WithLogger(logger)}
	if cfg.TLS != nil {
		serverOpts = append(serverOpts, server.WithTLS(cfg.TLS))
	}
	if cfg.Service.GrpcEnabled {
		grpcServer := state.GRPCServer
		if grpcServer == nil {
			grpcServer = grpc.NewServer()
		}
		serverOpts = append(serverOpts, server.WithGRPC(grpcServer, state.HealthAggregator))
	}
	dual := server.New(cfg.Service, handler, serverOpts...)

	return &ActonService{
		cfg:          cfg,
		server:       dual,
		handler:      handler,
		logger:       logger,
		cancelAgents: cancelAgents,
		closers:      state.Closers,
	}, nil
}

// ActonService is the opaque, fully assembled service. It cannot be
// manipulated after Build: the only way to use it is Serve.
type ActonService struct {
	cfg          *config.Config
	server       *server.DualProtocolServer
	handler      http.Handler
	logger       *zap.Logger
	cancelAgents context.CancelFunc
	closers      []func()
}

// Config returns the configuration the service was built with.
func (a *ActonService) Config() *config.Config {
	return a.cfg
}

// Serve runs the dual-protocol server until a shutdown signal arrives,
// then stops pool agents and releases their resources in the order
// they were registered.
func (a *ActonService) Serve() error {
	a.logger.Info("starting service", zap.String("name", a.cfg.Service.Name))
	err := a.server.Serve()

	a.cancelAgents()
	for _, closeFn := range a.closers {
		closeFn()
	}

	a.logger.Info("service stopped")
	return err
}

// Package server implements the dual-protocol listener: a single TCP
// socket serving both HTTP and gRPC traffic, dispatched by sniffing
// each connection's leading bytes, with optional TLS and a standard
// gRPC health service backed by the connection-pool health aggregator.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/soheilhy/cmux"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/aras-services/svccore/config"
	"github.com/aras-services/svccore/pool"
)

// DualProtocolServer owns the listener(s) for one service: an HTTP
// handler (the assembled middleware pipeline + versioned routes) and
// an optional gRPC server, multiplexed on one port unless configured
// to use a second.
type DualProtocolServer struct {
	cfg         config.ServiceConfig
	tls         *config.TLSConfig
	httpHandler http.Handler
	grpcServer  *grpc.Server
	logger      *zap.Logger
}

// Option customizes a DualProtocolServer at construction.
type Option func(*DualProtocolServer)

// WithTLS wraps the listener(s) with the given TLS configuration.
func WithTLS(cfg *config.TLSConfig) Option {
	return func(s *DualProtocolServer) { s.tls = cfg }
}

// WithGRPC attaches a gRPC server and registers the standard health
// service against aggregator. A nil aggregator reports SERVING always.
func WithGRPC(grpcServer *grpc.Server, aggregator *pool.HealthAggregator) Option {
	return func(s *DualProtocolServer) {
		grpc_health_v1.RegisterHealthServer(grpcServer, newHealthService(aggregator))
		s.grpcServer = grpcServer
	}
}

// WithLogger attaches a structured logger; a nop logger is used otherwise.
func WithLogger(logger *zap.Logger) Option {
	return func(s *DualProtocolServer) { s.logger = logger }
}

// New constructs a DualProtocolServer that always serves handler over
// HTTP; gRPC is only active when WithGRPC is supplied.
func New(cfg config.ServiceConfig, handler http.Handler, opts ...Option) *DualProtocolServer {
	s := &DualProtocolServer{cfg: cfg, httpHandler: handler, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve binds the configured address(es), starts serving, and blocks
// until SIGINT/SIGTERM is received, then drains in-flight requests up
// to the configured grace period before returning.
func (s *DualProtocolServer) Serve() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	stop := make(chan struct{})
	go func() {
		sig := <-quit
		s.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		close(stop)
	}()
	return s.serveUntil(stop)
}

// serveUntil runs the accept loop(s) until stop is closed or a serving
// goroutine reports an unexpected error, then drains in-flight requests.
func (s *DualProtocolServer) serveUntil(stop <-chan struct{}) error {
	listener, err := s.listen(s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.Addr(), err)
	}

	defer listener.Close()

	httpServer := &http.Server{Handler: s.httpHandler}

	errCh := make(chan error, 3)
	var grpcListener net.Listener
	var m cmux.CMux

	switch {
	case s.grpcServer == nil:
		s.logger.Info("serving HTTP only", zap.String("addr", s.cfg.Addr()))
		go func() { errCh <- httpServer.Serve(listener) }()

	case s.cfg.UseSeparatePort:
		grpcListener, err = s.listen(s.cfg.GrpcAddr())
		if err != nil {
			return fmt.Errorf("server: listen %s: %w", s.cfg.GrpcAddr(), err)
		}
		s.logger.Info("serving HTTP and gRPC on separate ports",
			zap.String("http_addr", s.cfg.Addr()), zap.String("grpc_addr", s.cfg.GrpcAddr()))
		go func() { errCh <- httpServer.Serve(listener) }()
		go func() { errCh <- s.grpcServer.Serve(grpcListener) }()

	default:
		s.logger.Info("serving HTTP and gRPC on one socket", zap.String("addr", s.cfg.Addr()))
		m = cmux.New(listener)
		grpcL := m.Match(cmux.HTTP2())
		httpL := m.Match(cmux.Any())
		go func() { errCh <- s.grpcServer.Serve(grpcL) }()
		go func() { errCh <- httpServer.Serve(httpL) }()
		go func() { errCh <- m.Serve() }()
	}

	select {
	case <-stop:
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed && err != cmux.ErrListenerClosed {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace())
	defer cancel()

	if s.grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http server forced to shutdown", zap.Error(err))
	}
	if grpcListener != nil {
		grpcListener.Close()
	}

	s.logger.Info("server exited")
	return nil
}

// listen binds addr, wrapping it with TLS when configured. TLS
// handshake failures surface per-connection inside net/http's own
// Accept/Serve loop (tls.Listener defers the handshake to first
// Read/Write) and never abort the accept loop itself.
func (s *DualProtocolServer) listen(addr string) (net.Listener, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if s.tls == nil || !s.tls.Enabled {
		return listener, nil
	}
	cert, err := tls.LoadX509KeyPair(s.tls.CertFile, s.tls.KeyFile)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("server: loading TLS cert/key: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}
	return tls.NewListener(listener, tlsCfg), nil
}

// Package main is a worked example of wiring svccore into a concrete
// service: it connects whatever pool agents the config enables, builds
// a small versioned API, and hands everything to service.ServiceAssembly.
// It plays the same role the original framework's
// examples/backend-service/src/main.rs plays for acton-service: a
// reference consumer, not part of the library itself.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"

	"github.com/aras-services/svccore/audit"
	"github.com/aras-services/svccore/auth/lockout"
	"github.com/aras-services/svccore/auth/revocation"
	"github.com/aras-services/svccore/auth/token"
	"github.com/aras-services/svccore/config"
	"github.com/aras-services/svccore/pool"
	"github.com/aras-services/svccore/responses"
	"github.com/aras-services/svccore/routes"
	"github.com/aras-services/svccore/service"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func printVersion() {
	fmt.Printf("svccore example service %s\n", version)
	if buildTime != "unknown" {
		fmt.Printf("Build Time: %s\n", buildTime)
	}
	if gitCommit != "unknown" {
		fmt.Printf("Git Commit: %s\n", gitCommit)
	}
	os.Exit(0)
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			printVersion()
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// A real TracerProvider gives middleware/pipeline.go's otel.Tracer
	// calls somewhere to attach spans; exporting them is left to whatever
	// OTLP collector the deployment points at (no exporter is wired here,
	// matching the framework's own "interfaces only" stance on tracing).
	res, err := resource.Merge(resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(cfg.Service.Name), semconv.ServiceVersion(version)))
	if err != nil {
		res = resource.Default()
	}
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tracerProvider)
	defer func() {
		_ = tracerProvider.Shutdown(context.Background())
	}()

	broker := pool.NewBroker()
	aggregator := pool.NewHealthAggregator()
	aggregatorCtx, cancelAggregator := context.WithCancel(context.Background())
	go aggregator.Listen(aggregatorCtx, broker)

	var closers []func()
	closers = append(closers, cancelAggregator)

	// Database and Redis are connected synchronously at boot, fail-fast
	// style, since the audit storage backend and the revocation/lockout
	// services below need a live handle before the service can be
	// assembled. The PoolAgent keeps supervising both in the background
	// for the rest of the process lifetime.
	var dbPool *pgxpool.Pool
	if cfg.Database != nil {
		dbAgent := pool.NewDatabaseAgent(*cfg.Database, pool.WithBroker[*pgxpool.Pool](broker), pool.WithLogger[*pgxpool.Pool](logger))
		poolCtx, cancel := context.WithCancel(context.Background())
		if err := dbAgent.Start(poolCtx); err != nil {
			cancel()
			logger.Fatal("failed to start database pool", zap.Error(err))
		}
		dbPool, _ = dbAgent.GetPool()
		closers = append(closers, cancel, func() {
			if p, ok := dbAgent.GetPool(); ok {
				p.Close()
			}
		})
	}

	var redisClient *redis.Client
	if cfg.Redis != nil {
		redisAgent := pool.NewRedisAgent(*cfg.Redis, pool.WithBroker[*redis.Client](broker), pool.WithLogger[*redis.Client](logger))
		poolCtx, cancel := context.WithCancel(context.Background())
		if err := redisAgent.Start(poolCtx); err != nil {
			cancel()
			logger.Fatal("failed to start redis pool", zap.Error(err))
		}
		redisClient, _ = redisAgent.GetPool()
		closers = append(closers, cancel, func() {
			if c, ok := redisAgent.GetPool(); ok {
				_ = c.Close()
			}
		})
	}

	var validator token.Validator
	if cfg.JWT != nil && cfg.JWT.HMACSecret != "" {
		validator = token.NewJWTValidatorHMAC(cfg.JWT.Algorithm, []byte(cfg.JWT.HMACSecret), cfg.JWT.Issuer, cfg.JWT.Audience)
	}

	var agentStarters []func(context.Context) error

	var auditLogger *audit.Logger
	if cfg.Audit != nil && cfg.Audit.Enabled {
		var storage audit.Storage
		if strings.EqualFold(cfg.Audit.Storage, "postgres") && dbPool != nil {
			pg := audit.NewPostgresStorage(dbPool)
			if err := pg.Initialize(context.Background()); err != nil {
				logger.Fatal("failed to initialize audit storage", zap.Error(err))
			}
			storage = pg
		}

		var syslogSender *audit.SyslogSender
		if cfg.Audit.Syslog != nil {
			syslogSender = audit.NewSyslogSender(*cfg.Audit.Syslog)
		}
		var tracker *audit.FailureTracker
		if cfg.Audit.FailureAlert != nil {
			tracker = audit.NewFailureTracker(*cfg.Audit.FailureAlert, cfg.Service.Name, logger)
		}

		agent := audit.NewAgent(cfg.Service.Name, storage, syslogSender, tracker, cfg.Audit.MailboxCapacity, logger)
		agentStarters = append(agentStarters, func(ctx context.Context) error {
			agent.Start(ctx)
			return nil
		})
		auditLogger = audit.NewLogger(agent, *cfg.Audit, cfg.Service.Name)
	}

	// Built after auditLogger so the revocation cache and lockout
	// service can hand audit.RevocationHook/LockoutNotification their
	// audit sink at construction time, the same wiring order the
	// original framework's own backend-service example uses.
	var revocationCache *revocation.Cache
	if validator != nil && redisClient != nil {
		revocationOpts := []revocation.Option{revocation.WithLogger(logger)}
		if auditLogger != nil {
			revocationOpts = append(revocationOpts, revocation.WithOnRevoke(audit.RevocationHook(auditLogger)))
		}
		revocationCache = revocation.New(redisClient, revocationOpts...)
		agentStarters = append(agentStarters, func(ctx context.Context) error {
			revocationCache.Start(ctx)
			return nil
		})
	}

	var lockoutService *lockout.Service
	if cfg.Lockout != nil && cfg.Lockout.Enabled && redisClient != nil {
		lockoutOpts := []lockout.Option{}
		if auditLogger != nil {
			lockoutOpts = append(lockoutOpts, lockout.WithNotification(audit.LockoutNotification(auditLogger)))
		}
		lockoutService = lockout.New(*cfg.Lockout, redisClient, lockoutOpts...)
	}

	exampleRoutes := routes.NewBuilder().WithBasePath("/api").
		AddVersion(routes.V1, func(r chi.Router) {
			r.Get("/widgets", func(w http.ResponseWriter, r *http.Request) {
				responses.List(w, []string{}, 1, 20, 0)
			})
			loginHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotImplemented)
			})
			if lockoutService != nil {
				r.With(lockout.Middleware(lockoutService, "username")).Post("/login", loginHandler.ServeHTTP)
			} else {
				r.Post("/login", loginHandler.ServeHTTP)
			}
			if validator != nil {
				r.Post("/introspect", token.IntrospectHandler(validator))
			}
		}).
		BuildRoutes(func() (bool, string) {
			health := aggregator.GetAggregatedHealth()
			if health.OverallHealthy {
				return true, "ok"
			}
			return false, "one or more pools unhealthy"
		})

	state := service.State{
		Validator:        validator,
		RevocationCache:  revocationCache,
		AuditLogger:      auditLogger,
		Logger:           logger,
		HealthAggregator: aggregator,
		AgentStarters:    agentStarters,
		Closers:          closers,
	}

	svc, err := service.NewAssembly().WithConfig(cfg).WithRoutes(exampleRoutes).WithState(state).Build()
	if err != nil {
		logger.Fatal("failed to assemble service", zap.Error(err))
	}

	if err := svc.Serve(); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
}

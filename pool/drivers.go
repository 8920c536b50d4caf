package pool

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/aras-services/svccore/config"
)

// NewDatabaseAgent builds a PoolAgent managing a pgxpool.Pool.
func NewDatabaseAgent(cfg config.DatabaseConfig, opts ...AgentOption[*pgxpool.Pool]) *PoolAgent[*pgxpool.Pool] {
	connect := func(ctx context.Context) (*pgxpool.Pool, error) {
		poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("parsing database dsn: %w", err)
		}
		if cfg.MaxConnections > 0 {
			poolCfg.MaxConns = cfg.MaxConnections
		}
		if cfg.MinConnections > 0 {
			poolCfg.MinConns = cfg.MinConnections
		}
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, err
		}
		return p, nil
	}
	ping := func(ctx context.Context, p *pgxpool.Pool) error {
		return p.Ping(ctx)
	}
	closeFn := func(p *pgxpool.Pool) {
		p.Close()
	}

	allOpts := append([]AgentOption[*pgxpool.Pool]{
		WithOptional[*pgxpool.Pool](cfg.Optional),
		WithLazyInit[*pgxpool.Pool](cfg.LazyInit),
	}, withRetryDefaults[*pgxpool.Pool](cfg.MaxRetries, cfg.BaseRetryDelay)...)
	allOpts = append(allOpts, opts...)

	return NewPoolAgent("database", connect, ping, closeFn, allOpts...)
}

// NewRedisAgent builds a PoolAgent managing a go-redis client.
func NewRedisAgent(cfg config.RedisConfig, opts ...AgentOption[*redis.Client]) *PoolAgent[*redis.Client] {
	connect := func(ctx context.Context) (*redis.Client, error) {
		c := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.MaxConnections,
		})
		if err := c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}
	ping := func(ctx context.Context, c *redis.Client) error {
		return c.Ping(ctx).Err()
	}
	closeFn := func(c *redis.Client) {
		_ = c.Close()
	}

	allOpts := append([]AgentOption[*redis.Client]{
		WithOptional[*redis.Client](cfg.Optional),
		WithLazyInit[*redis.Client](cfg.LazyInit),
	}, withRetryDefaults[*redis.Client](cfg.MaxRetries, cfg.BaseRetryDelay)...)
	allOpts = append(allOpts, opts...)

	return NewPoolAgent("redis", connect, ping, closeFn, allOpts...)
}

// NewNatsAgent builds a PoolAgent managing a NATS connection.
func NewNatsAgent(cfg config.NatsConfig, opts ...AgentOption[*nats.Conn]) *PoolAgent[*nats.Conn] {
	connect := func(ctx context.Context) (*nats.Conn, error) {
		natsOpts := []nats.Option{nats.Timeout(10 * time.Second)}
		if cfg.Name != "" {
			natsOpts = append(natsOpts, nats.Name(cfg.Name))
		}
		return nats.Connect(cfg.URL, natsOpts...)
	}
	ping := func(ctx context.Context, c *nats.Conn) error {
		if !c.IsConnected() {
			return fmt.Errorf("nats connection is not in connected state")
		}
		return c.FlushTimeout(2 * time.Second)
	}
	closeFn := func(c *nats.Conn) {
		c.Close()
	}

	allOpts := append([]AgentOption[*nats.Conn]{
		WithOptional[*nats.Conn](cfg.Optional),
		WithLazyInit[*nats.Conn](cfg.LazyInit),
	}, withRetryDefaults[*nats.Conn](cfg.MaxRetries, cfg.BaseRetryDelay)...)
	allOpts = append(allOpts, opts...)

	return NewPoolAgent("nats", connect, ping, closeFn, allOpts...)
}

// AltDbConn is a minimal SurrealDB RPC handle over its HTTP SQL endpoint.
// No mature SurrealDB Go driver exists in the wider ecosystem; this
// talks directly to the documented /sql HTTP endpoint instead of
// inventing a fake client library.
type AltDbConn struct {
	endpoint string
	ns       string
	db       string
	username string
	password string
	http     *http.Client
}

// Query executes a SurrealQL statement and returns the raw JSON result.
func (c *AltDbConn) Query(ctx context.Context, statement string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/sql", bytes.NewBufferString(statement))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("NS", c.ns)
	req.Header.Set("DB", c.db)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("surrealdb query failed: status %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Ping verifies the SurrealDB HTTP endpoint is reachable by running a
// trivial no-op query.
func (c *AltDbConn) Ping(ctx context.Context) error {
	_, err := c.Query(ctx, "RETURN 1;")
	return err
}

// NewAltDbAgent builds a PoolAgent managing a SurrealDB RPC handle.
func NewAltDbAgent(cfg config.SurrealDBConfig, opts ...AgentOption[*AltDbConn]) *PoolAgent[*AltDbConn] {
	connect := func(ctx context.Context) (*AltDbConn, error) {
		conn := &AltDbConn{
			endpoint: cfg.Endpoint,
			ns:       cfg.Namespace,
			db:       cfg.Database,
			username: cfg.Username,
			password: cfg.Password,
			http:     &http.Client{Timeout: 10 * time.Second},
		}
		if err := conn.Ping(ctx); err != nil {
			return nil, err
		}
		return conn, nil
	}
	ping := func(ctx context.Context, c *AltDbConn) error {
		return c.Ping(ctx)
	}
	closeFn := func(c *AltDbConn) {}

	allOpts := append([]AgentOption[*AltDbConn]{
		WithOptional[*AltDbConn](cfg.Optional),
	}, withRetryDefaults[*AltDbConn](cfg.MaxRetries, cfg.BaseRetryDelay)...)
	allOpts = append(allOpts, opts...)

	return NewPoolAgent("surrealdb", connect, ping, closeFn, allOpts...)
}

func withRetryDefaults[P any](maxRetries int, baseDelay time.Duration) []AgentOption[P] {
	var opts []AgentOption[P]
	if maxRetries > 0 {
		opts = append(opts, WithMaxRetries[P](maxRetries))
	}
	if baseDelay > 0 {
		opts = append(opts, WithBaseRetryDelay[P](baseDelay))
	}
	return opts
}

// Package config implements layered, strongly-typed configuration loading.
// Layers are merged in priority order (highest first): environment
// variables, ./config.local.toml, one config.toml, then compiled-in
// defaults. That config.toml is the first one found in ./, an
// XDG/per-service config directory, then /etc/<service>; config.toml
// files in the later locations are not read. The resulting
// record is parsed once at startup and shared read-only by the rest
// of the runtime.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration record.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Database   *DatabaseConfig  `mapstructure:"database"`
	Redis      *RedisConfig     `mapstructure:"redis"`
	Nats       *NatsConfig      `mapstructure:"nats"`
	SurrealDB  *SurrealDBConfig `mapstructure:"surrealdb"`
	JWT        *JWTConfig       `mapstructure:"jwt"`
	PASETO     *PASETOConfig    `mapstructure:"paseto"`
	RateLimit  *RateLimitConfig `mapstructure:"rate_limit"`
	Lockout    *LockoutConfig   `mapstructure:"lockout"`
	Audit      *AuditConfig     `mapstructure:"audit"`
	Session    *SessionConfig   `mapstructure:"session"`
	WebSocket  *WebSocketConfig `mapstructure:"websocket"`
	TLS        *TLSConfig       `mapstructure:"tls"`
	OTLP       *OTLPConfig      `mapstructure:"otlp"`
	Custom     map[string]any   `mapstructure:"custom"`
}

// ServiceConfig carries process identity and the server bind address.
type ServiceConfig struct {
	Name              string        `mapstructure:"name"`
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Environment       string        `mapstructure:"environment"`
	GrpcEnabled       bool          `mapstructure:"grpc_enabled"`
	UseSeparatePort   bool          `mapstructure:"use_separate_port"`
	GrpcPort          int           `mapstructure:"grpc_port"`
	ShutdownGraceSecs int           `mapstructure:"shutdown_grace_secs"`
}

// Addr formats the host:port the dual-protocol server binds to.
func (s ServiceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GrpcAddr formats the host:port the separate gRPC listener binds to,
// when UseSeparatePort is set.
func (s ServiceConfig) GrpcAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GrpcPort)
}

// ShutdownGrace is the maximum time graceful shutdown waits for
// in-flight requests to drain before forcing close.
func (s ServiceConfig) ShutdownGrace() time.Duration {
	if s.ShutdownGraceSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.ShutdownGraceSecs) * time.Second
}

// CorsMode enumerates the supported CORS postures.
type CorsMode string

const (
	CorsPermissive  CorsMode = "permissive"
	CorsRestrictive CorsMode = "restrictive"
	CorsDisabled    CorsMode = "disabled"
)

// MiddlewareConfig groups the cross-cutting HTTP pipeline settings.
type MiddlewareConfig struct {
	BodyLimitMB     int                   `mapstructure:"body_limit_mb"`
	CorsMode        CorsMode              `mapstructure:"cors_mode"`
	AllowedOrigins  []string              `mapstructure:"allowed_origins"`
	RequestTimeout  time.Duration         `mapstructure:"request_timeout"`
	Resilience      *ResilienceConfig     `mapstructure:"resilience"`
	Metrics         *MetricsConfig        `mapstructure:"metrics"`
	LocalRateLimit  *LocalRateLimitConfig `mapstructure:"local_rate_limit"`
	SecurityHeaders SecurityHeadersConfig `mapstructure:"security_headers"`
}

// ResilienceConfig configures the circuit breaker and bulkhead layer.
type ResilienceConfig struct {
	Enabled                bool          `mapstructure:"enabled"`
	FailureRateThreshold   float64       `mapstructure:"failure_rate_threshold"`
	MinRequests            uint32        `mapstructure:"min_requests"`
	OpenStateTimeout       time.Duration `mapstructure:"open_state_timeout"`
	BulkheadMaxConcurrency int           `mapstructure:"bulkhead_max_concurrency"`
	BulkheadMaxWait        time.Duration `mapstructure:"bulkhead_max_wait"`
}

// MetricsConfig toggles Prometheus metric emission for pipeline stages.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LocalRateLimitConfig configures process-local rate limiting, used when
// no cache pool is configured for the distributed limiter.
type LocalRateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

// SecurityHeadersConfig toggles the standard security header set.
type SecurityHeadersConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	HSTSMaxAgeSecs     int    `mapstructure:"hsts_max_age_secs"`
	ContentTypeOptions bool   `mapstructure:"content_type_options"`
	FrameOptions       string `mapstructure:"frame_options"`
	XSSProtection      bool   `mapstructure:"xss_protection"`
	ReferrerPolicy     string `mapstructure:"referrer_policy"`
	PermissionsPolicy  string `mapstructure:"permissions_policy"`
}

// DatabaseConfig configures the relational (Postgres) pool agent.
type DatabaseConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	Name           string        `mapstructure:"name"`
	SSLMode        string        `mapstructure:"ssl_mode"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	LazyInit       bool          `mapstructure:"lazy_init"`
	Optional       bool          `mapstructure:"optional"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay"`
}

// DSN constructs the libpq-style connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig configures the cache pool agent.
type RedisConfig struct {
	Addr           string        `mapstructure:"addr"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	MaxConnections int           `mapstructure:"max_connections"`
	LazyInit       bool          `mapstructure:"lazy_init"`
	Optional       bool          `mapstructure:"optional"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay"`
}

// NatsConfig configures the message-broker pool agent.
type NatsConfig struct {
	URL            string        `mapstructure:"url"`
	Name           string        `mapstructure:"name"`
	LazyInit       bool          `mapstructure:"lazy_init"`
	Optional       bool          `mapstructure:"optional"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay"`
}

// SurrealDBConfig configures the alternative-database audit storage backend.
type SurrealDBConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Namespace      string        `mapstructure:"namespace"`
	Database       string        `mapstructure:"database"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Optional       bool          `mapstructure:"optional"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay"`
}

// JWTConfig configures JWT-format token validation.
type JWTConfig struct {
	Algorithm  string `mapstructure:"algorithm"`
	KeyPath    string `mapstructure:"key_path"`
	HMACSecret string `mapstructure:"hmac_secret"`
	Issuer     string `mapstructure:"issuer"`
	Audience   string `mapstructure:"audience"`
}

// PASETOConfig configures PASETO-format token validation.
type PASETOConfig struct {
	Version  string `mapstructure:"version"`
	Purpose  string `mapstructure:"purpose"`
	KeyPath  string `mapstructure:"key_path"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// RateLimitConfig configures the distributed, Redis-backed rate limiter.
type RateLimitConfig struct {
	Enabled      bool             `mapstructure:"enabled"`
	PerUserRPM   int              `mapstructure:"per_user_rpm"`
	PerClientRPM int              `mapstructure:"per_client_rpm"`
	Routes       []RouteRateLimit `mapstructure:"routes"`
}

// RouteRateLimit overrides the global limit for one route pattern.
type RouteRateLimit struct {
	Path              string `mapstructure:"path"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	PerUser           bool   `mapstructure:"per_user"`
}

// LockoutConfig configures brute-force login protection.
type LockoutConfig struct {
	Enabled                 bool    `mapstructure:"enabled"`
	MaxAttempts             uint32  `mapstructure:"max_attempts"`
	WindowSecs              uint64  `mapstructure:"window_secs"`
	LockoutDurationSecs     uint64  `mapstructure:"lockout_duration_secs"`
	ProgressiveDelayEnabled bool    `mapstructure:"progressive_delay_enabled"`
	BaseDelayMs             uint64  `mapstructure:"base_delay_ms"`
	MaxDelayMs              uint64  `mapstructure:"max_delay_ms"`
	DelayMultiplier         float64 `mapstructure:"delay_multiplier"`
	WarningThreshold        uint32  `mapstructure:"warning_threshold"`
	KeyPrefix               string  `mapstructure:"key_prefix"`
	IdentityField           string  `mapstructure:"identity_field"`
}

// AuditConfig configures the audit subsystem.
type AuditConfig struct {
	Enabled          bool                `mapstructure:"enabled"`
	ServiceName      string              `mapstructure:"service_name"`
	Storage          string              `mapstructure:"storage"`
	AuditAllRequests bool                `mapstructure:"audit_all_requests"`
	AuditedRoutes    []string            `mapstructure:"audited_routes"`
	ExcludedRoutes   []string            `mapstructure:"excluded_routes"`
	AuditAuthEvents  bool                `mapstructure:"audit_auth_events"`
	MailboxCapacity  int                 `mapstructure:"mailbox_capacity"`
	Syslog           *SyslogConfig       `mapstructure:"syslog"`
	FailureAlert     *FailureAlertConfig `mapstructure:"failure_alert"`
	Retention        *RetentionConfig    `mapstructure:"retention"`
}

// SyslogConfig configures the RFC-5424 side channel for audit events.
type SyslogConfig struct {
	Transport string `mapstructure:"transport"`
	Address   string `mapstructure:"address"`
	Facility  int    `mapstructure:"facility"`
	AppName   string `mapstructure:"app_name"`
}

// FailureAlertConfig configures storage-failure alert webhooks.
type FailureAlertConfig struct {
	ThresholdSecs  uint64   `mapstructure:"threshold_secs"`
	CooldownSecs   uint64   `mapstructure:"cooldown_secs"`
	NotifyRecovery bool     `mapstructure:"notify_recovery"`
	WebhookURLs    []string `mapstructure:"webhook_urls"`
}

// RetentionConfig configures audit archival behavior.
type RetentionConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxAge     time.Duration `mapstructure:"max_age"`
	ArchiveDir string        `mapstructure:"archive_dir"`
}

// SessionConfig is a passthrough block for the (non-goal) session helper;
// the core only validates and carries it through to whatever adapter reads it.
type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// WebSocketConfig is a passthrough block for the (non-goal) websocket helper.
type WebSocketConfig struct {
	MaxMessageBytes int `mapstructure:"max_message_bytes"`
}

// TLSConfig configures the optional TLS wrap of the dual-protocol listener.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// OTLPConfig is specified only by interface: the core emits OpenTelemetry
// metric points (no OTLP log records), exporter wiring is left to the
// embedding service.
type OTLPConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration for a service named "service" from the default
// layers and returns a validated Config.
func Load() (*Config, error) {
	return LoadForService("service")
}

// LoadForService loads configuration, reading config.toml from the first
// of the working directory, an XDG/per-service config directory and
// /etc/<service> that holds one; the locations after it are not merged.
func LoadForService(serviceName string) (*Config, error) {
	v := viper.New()
	setDefaults(v, serviceName)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, serviceName))
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", serviceName))
	}
	v.AddConfigPath(filepath.Join("/etc", serviceName))

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: reading config.toml: %w", err)
		}
	}

	local := viper.New()
	local.SetConfigName("config.local")
	local.SetConfigType("toml")
	local.AddConfigPath(".")
	if err := local.ReadInConfig(); err == nil {
		if err := v.MergeConfigMap(local.AllSettings()); err != nil {
			return nil, fmt.Errorf("config: merging config.local.toml: %w", err)
		}
	}

	prefix := strings.ToUpper(serviceName)
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, serviceName string) {
	v.SetDefault("service.name", serviceName)
	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.port", 7600)
	v.SetDefault("service.timeout", "30s")
	v.SetDefault("service.environment", "development")
	v.SetDefault("service.shutdown_grace_secs", 30)

	v.SetDefault("middleware.body_limit_mb", 10)
	v.SetDefault("middleware.cors_mode", string(CorsRestrictive))
	v.SetDefault("middleware.request_timeout", "60s")
	v.SetDefault("middleware.security_headers.enabled", true)
	v.SetDefault("middleware.security_headers.content_type_options", true)
	v.SetDefault("middleware.security_headers.frame_options", "DENY")
	v.SetDefault("middleware.security_headers.xss_protection", true)
	v.SetDefault("middleware.security_headers.referrer_policy", "no-referrer")
	v.SetDefault("middleware.security_headers.hsts_max_age_secs", 31536000)
}

// Validate enforces the structural rules on a loaded Config. Unknown keys
// are always tolerated (viper ignores unmapped keys) for forward
// compatibility with newer deployments reading an older binary's config.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Service.Name) == "" {
		return fmt.Errorf("service.name must not be empty")
	}
	if cfg.Service.Port <= 0 {
		return fmt.Errorf("service.port must be > 0")
	}
	if cfg.Service.UseSeparatePort && cfg.Service.GrpcPort <= 0 {
		return fmt.Errorf("service.grpc_port must be > 0 when use_separate_port is set")
	}
	switch cfg.Middleware.CorsMode {
	case "", CorsPermissive, CorsRestrictive, CorsDisabled:
	default:
		return fmt.Errorf("middleware.cors_mode %q is not one of permissive|restrictive|disabled", cfg.Middleware.CorsMode)
	}
	if cfg.JWT != nil && cfg.JWT.Algorithm != "" {
		switch cfg.JWT.Algorithm {
		case "RS256", "RS384", "RS512", "ES256", "ES384", "HS256", "HS384", "HS512":
		default:
			return fmt.Errorf("jwt.algorithm %q is not supported", cfg.JWT.Algorithm)
		}
	}
	if cfg.PASETO != nil {
		if cfg.PASETO.Version != "" && cfg.PASETO.Version != "v4" {
			return fmt.Errorf("paseto.version must be v4")
		}
		switch cfg.PASETO.Purpose {
		case "", "local", "public":
		default:
			return fmt.Errorf("paseto.purpose %q must be local or public", cfg.PASETO.Purpose)
		}
	}
	if cfg.RateLimit != nil {
		if cfg.RateLimit.PerUserRPM < 0 || cfg.RateLimit.PerClientRPM < 0 {
			return fmt.Errorf("rate_limit per-user/per-client limits must be > 0 when set")
		}
	}
	if cfg.Lockout != nil {
		if strings.TrimSpace(cfg.Lockout.KeyPrefix) == "" {
			return fmt.Errorf("lockout.key_prefix must not be empty")
		}
		if strings.ContainsAny(cfg.Lockout.KeyPrefix, ": \t\n") {
			return fmt.Errorf("lockout.key_prefix must not contain ':' or whitespace")
		}
		if cfg.Lockout.MaxAttempts == 0 {
			return fmt.Errorf("lockout.max_attempts must be > 0")
		}
		if cfg.Lockout.DelayMultiplier != 0 && cfg.Lockout.DelayMultiplier < 1.0 {
			return fmt.Errorf("lockout.delay_multiplier must be >= 1.0")
		}
	}
	if cfg.Audit != nil && cfg.Audit.Syslog != nil {
		switch cfg.Audit.Syslog.Transport {
		case "", "udp", "tcp", "none":
		default:
			return fmt.Errorf("audit.syslog.transport %q must be udp|tcp|none", cfg.Audit.Syslog.Transport)
		}
	}
	if cfg.TLS != nil && cfg.TLS.Enabled {
		for _, p := range []string{cfg.TLS.CertFile, cfg.TLS.KeyFile} {
			if p == "" {
				return fmt.Errorf("tls: cert_file and key_file are required when tls.enabled")
			}
			if _, err := os.Stat(p); err != nil {
				return fmt.Errorf("tls: %s is not readable: %w", p, err)
			}
		}
	}
	return nil
}

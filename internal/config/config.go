package config

import (
	"fmt"
	"time"

	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/errors"
)

// Config holds the application's configuration.
// It is built once at process start and passed by pointer; request handling
// code never reads the environment directly.
type Config struct {
	Mode     constants.Mode `mapstructure:"mode"`
	Server   ServerConfig   `mapstructure:"server"`
	Gate     GateConfig     `mapstructure:"gate"`
	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	OAuth    OAuthConfig    `mapstructure:"oauth"`
	AI       AIConfig       `mapstructure:"ai"`
	Cost     CostConfig     `mapstructure:"cost"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Vault    VaultConfig    `mapstructure:"vault"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GateConfig configures the request gate: quotas, window and bucket backend.
type GateConfig struct {
	AuthenticatedQuota int `mapstructure:"authenticated_quota"`
	AnonymousQuota     int `mapstructure:"anonymous_quota"`
	// HandshakeQuota throttles OAuth handshake paths when > 0. Zero leaves them exempt.
	HandshakeQuota  int    `mapstructure:"handshake_quota"`
	WindowSeconds   int    `mapstructure:"window_seconds"`
	Backend         string `mapstructure:"backend"` // memory | redis
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	RedisKeyPrefix  string `mapstructure:"redis_key_prefix"`
}

// Window returns the rate limit window as a duration.
func (c *GateConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

type SessionConfig struct {
	Secret       string        `mapstructure:"secret"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
	Revocation   string        `mapstructure:"revocation"` // memory | redis
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite | postgres
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Enabled reports whether a Redis address is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Address != ""
}

type OAuthConfig struct {
	Provider     string   `mapstructure:"provider"`
	IssuerURL    string   `mapstructure:"issuer_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

type AIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int32         `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type CostConfig struct {
	MonthlyLimit int     `mapstructure:"monthly_limit"`
	PricePer1K   float64 `mapstructure:"price_per_1k"`
	InitialUsage int     `mapstructure:"initial_usage"`
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SigningKey, when set, adds an HMAC-SHA256 signature header to each message.
	SigningKey string `mapstructure:"signing_key"`
}

type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
	SecretKey  string `mapstructure:"secret_key"`
}

// Enabled reports whether the session secret should be read from Vault.
func (c *VaultConfig) Enabled() bool {
	return c.Address != "" && c.SecretPath != ""
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Mode == constants.ModeDevelopment
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Mode == constants.ModeProduction
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	switch c.Mode {
	case constants.ModeDevelopment, constants.ModeProduction, constants.ModeTest:
	default:
		return errors.ErrInvalidConfig.WithError(fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.Gate.AuthenticatedQuota <= 0 || c.Gate.AnonymousQuota <= 0 {
		return errors.ErrInvalidConfig.WithError(fmt.Errorf("gate quotas must be positive"))
	}
	if c.Gate.HandshakeQuota < 0 {
		return errors.ErrInvalidConfig.WithError(fmt.Errorf("gate.handshake_quota must not be negative"))
	}
	if c.Gate.WindowSeconds <= 0 {
		return errors.ErrInvalidConfig.WithError(fmt.Errorf("gate.window_seconds must be positive"))
	}
	switch c.Gate.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return errors.ErrInvalidConfig.WithError(fmt.Errorf("gate.backend redis requires redis.address"))
		}
	default:
		return errors.ErrInvalidConfig.WithError(fmt.Errorf("unknown gate.backend %q", c.Gate.Backend))
	}
	if c.Session.Revocation == "redis" && !c.Redis.Enabled() {
		return errors.ErrInvalidConfig.WithError(fmt.Errorf("session.revocation redis requires redis.address"))
	}
	if c.Session.Secret == "" && !c.Vault.Enabled() {
		return errors.ErrInvalidConfig.WithError(fmt.Errorf("session.secret is required"))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return errors.ErrInvalidConfig.WithError(fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	return nil
}

package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// EnvPrefix is the prefix of environment variables read by the loader.
const EnvPrefix = "DASHGATE"

// legacyEnv maps config keys to environment names used by earlier deployments.
// The prefixed name always wins when both are set.
var legacyEnv = map[string][]string{
	"mode":                     {"NODE_ENV"},
	"gate.anonymous_quota":     {"RATE_LIMIT_POINTS"},
	"gate.authenticated_quota": {"RATE_LIMIT_POINTS_AUTH"},
	"gate.window_seconds":      {"RATE_LIMIT_DURATION"},
	"session.secret":           {"NEXTAUTH_SECRET"},
	"log.level":                {"LOG_LEVEL"},
	"oauth.client_id":          {"GOOGLE_CLIENT_ID"},
	"oauth.client_secret":      {"GOOGLE_CLIENT_SECRET"},
	"ai.api_key":               {"GEMINI_API_KEY"},
}

// Options controls where LoadConfig looks for configuration.
type Options struct {
	// ConfigFile is an explicit path; empty means search the default paths.
	ConfigFile string
	// OnLogLevelChange is invoked when the config file changes the log level.
	OnLogLevelChange func(level string)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", string(constants.ModeDevelopment))

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("gate.authenticated_quota", constants.DefaultAuthenticatedQuota)
	v.SetDefault("gate.anonymous_quota", constants.DefaultAnonymousQuota)
	v.SetDefault("gate.handshake_quota", 0)
	v.SetDefault("gate.window_seconds", int(constants.DefaultRateLimitWindow.Seconds()))
	v.SetDefault("gate.backend", "memory")
	v.SetDefault("gate.cleanup_schedule", constants.DefaultBucketCleanupSchedule)
	v.SetDefault("gate.redis_key_prefix", "dashgate:ratelimit")

	v.SetDefault("session.max_age", constants.DefaultSessionMaxAge)
	v.SetDefault("session.secure_cookie", false)
	v.SetDefault("session.revocation", "memory")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:dashgate.db?_foreign_keys=on")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("session.secret", "")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("oauth.provider", "google")
	v.SetDefault("oauth.issuer_url", "https://accounts.google.com")
	v.SetDefault("oauth.redirect_url", "http://localhost:3000/api/auth/callback/google")
	v.SetDefault("oauth.scopes", []string{
		"openid", "email", "profile",
		"https://www.googleapis.com/auth/gmail.readonly",
		"https://www.googleapis.com/auth/calendar.readonly",
	})

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.max_tokens", 250)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.timeout", "10s")

	v.SetDefault("cost.monthly_limit", 50000)
	v.SetDefault("cost.price_per_1k", 0.0008)
	v.SetDefault("cost.initial_usage", 2500)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.signing_key", "")
	v.SetDefault("kafka.topic", "dashgate.security-events")
	v.SetDefault("kafka.write_timeout", "5s")

	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.secret_path", "")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_key", "session_secret")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.sampling_rate", 1.0)
}

// LoadConfig loads the configuration from file, environment variables and defaults.
func LoadConfig(log logger.Logger, opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Load from config file
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/dashgate/")
		v.AddConfigPath(".")
	}
	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || opts.ConfigFile != "" {
			return nil, errors.New("failed to read config file").WithError(err)
		}
		fileLoaded = false
	}

	// Load from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		input := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(append([]string{key}, input...)...); err != nil {
			return nil, errors.New("failed to bind environment").WithError(err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config").WithError(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if fileLoaded {
		log.Info(context.Background(), "Configuration file loaded", logger.String("file", v.ConfigFileUsed()))
		if opts.OnLogLevelChange != nil {
			watchLogLevel(v, log, opts.OnLogLevelChange)
		}
	}

	return &cfg, nil
}

// watchLogLevel re-reads the log level when the config file changes.
// Only the level is applied; quotas and secrets stay fixed for the process lifetime.
func watchLogLevel(v *viper.Viper, log logger.Logger, apply func(level string)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := v.GetString("log.level")
		apply(level)
		log.Info(context.Background(), "Log level reloaded", logger.Fields{"file": e.Name, "level": level})
	})
	v.WatchConfig()
}

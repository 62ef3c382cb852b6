package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	appservice "github.com/turtacn/dashgate/internal/application/service"
	"github.com/turtacn/dashgate/internal/config"
	domainservice "github.com/turtacn/dashgate/internal/domain/service"
	"github.com/turtacn/dashgate/internal/infrastructure/ai"
	"github.com/turtacn/dashgate/internal/infrastructure/audit"
	"github.com/turtacn/dashgate/internal/infrastructure/monitoring"
	"github.com/turtacn/dashgate/internal/infrastructure/oauth"
	"github.com/turtacn/dashgate/internal/infrastructure/persistence/database"
	persistredis "github.com/turtacn/dashgate/internal/infrastructure/persistence/redis"
	"github.com/turtacn/dashgate/internal/infrastructure/ratelimit"
	"github.com/turtacn/dashgate/internal/infrastructure/secrets"
	"github.com/turtacn/dashgate/internal/infrastructure/session"
	"github.com/turtacn/dashgate/internal/interfaces/http/handlers"
	"github.com/turtacn/dashgate/internal/interfaces/http/middleware"
	"github.com/turtacn/dashgate/internal/interfaces/http/router"
	"github.com/turtacn/dashgate/pkg/logger"
)

const idempotencyTTL = 24 * time.Hour

func main() {
	configFile := flag.String("config", "", "path to the config file (default: ./config.yaml or /etc/dashgate/config.yaml)")
	flag.Parse()

	// Logger for startup
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})
	if err != nil {
		log.Fatalf("Failed to create startup logger: %v", err)
	}

	var appLoggerRef atomic.Pointer[monitoring.ZapLogger]

	// Load config
	cfg, err := config.LoadConfig(startupLogger, config.Options{
		ConfigFile: *configFile,
		OnLogLevelChange: func(level string) {
			if l := appLoggerRef.Load(); l != nil {
				l.SetLevel(level)
			}
		},
	})
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	appLoggerRef.Store(appLogger)
	defer func() { _ = appLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize tracing
	tracing, err := monitoring.NewTracingManager(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize tracer", err)
	}
	defer func() { _ = tracing.Shutdown(context.Background()) }()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	secret, err := secrets.ResolveSessionSecret(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to resolve session secret", err)
	}

	// Initialize Redis (optional)
	var redisClient redis.UniversalClient
	var redisConn *persistredis.RedisConnection
	if cfg.Redis.Enabled() {
		redisConn = persistredis.NewRedisConnection(&cfg.Redis, appLogger)
		if err := redisConn.Connect(ctx); err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err)
		}
		defer func() { _ = redisConn.Close() }()
		redisClient = redisConn.GetClient()
	}

	// Initialize database
	db, err := database.NewDBConnection(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to connect to database", err)
	}
	defer func() { _ = db.Close() }()

	// Sessions
	var revocation domainservice.RevocationStore = session.NewMemoryRevocationStore()
	if cfg.Session.Revocation == "redis" {
		revocation = session.NewRedisRevocationStore(redisClient)
	}
	sessions, err := session.NewJWTManager(secret, cfg.Session.MaxAge, revocation, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create session manager", err)
	}

	// Rate limit pools
	pools, err := ratelimit.NewPools(&cfg.Gate, redisClient, appLogger)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create rate limit pools", err)
	}
	janitor := ratelimit.NewJanitor(cfg.Gate.CleanupSchedule, pools.Memory(), appLogger)
	janitor.OnSweep = metrics.RecordBucketsEvicted
	if err := janitor.Start(ctx); err != nil {
		appLogger.Fatal(ctx, "Failed to start rate limit janitor", err)
	}

	// Security event sinks. The database write runs behind a bounded queue so
	// the gate never waits on it.
	eventStore := audit.NewAsyncSink(audit.NewGormSink(db.DB(), appLogger), audit.DefaultAsyncBuffer, appLogger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eventStore.Close(closeCtx)
	}()
	sinks := audit.MultiSink{
		audit.NewLogSink(appLogger, metrics),
		eventStore,
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink := audit.NewKafkaSink(&cfg.Kafka, appLogger)
		defer func() { _ = kafkaSink.Close() }()
		sinks = append(sinks, kafkaSink)
	}

	// Identity providers
	var providers []domainservice.IdentityProvider
	if cfg.OAuth.ClientID != "" {
		provider, err := oauth.NewOIDCProvider(ctx, &cfg.OAuth)
		if err != nil {
			appLogger.Fatal(ctx, "Failed to initialize OAuth provider", err)
		}
		providers = append(providers, provider)
	} else {
		appLogger.Warn(ctx, "OAuth client id not configured, sign-in is disabled")
	}

	// Completion service (optional)
	var completer domainservice.Completer
	if cfg.AI.APIKey != "" {
		genai, err := ai.NewGenAICompleter(ctx, &cfg.AI, appLogger)
		if err != nil {
			appLogger.Warn(ctx, "AI completer unavailable, using fallback plans", logger.Err(err))
		} else {
			completer = genai
		}
	}

	// Initialize application services
	userRepo := database.NewUserRepository(db.DB(), appLogger)
	taskRepo := database.NewTaskRepository(db.DB(), appLogger)
	cost := appservice.NewCostTracker(&cfg.Cost, nil)

	authAppSvc := appservice.NewAuthAppService(providers, userRepo, sessions, sinks, appLogger)
	taskAppSvc := appservice.NewTaskAppService(taskRepo, nil, appLogger)
	insightAppSvc := appservice.NewInsightAppService(ai.NewTaskEnhancer(completer, cost, metrics, appLogger), cost)

	// Initialize HTTP handlers and router
	probes := map[string]handlers.Pinger{"database": db}
	if redisConn != nil {
		probes["redis"] = redisConn
	}

	gate, err := middleware.NewGate(middleware.GateOptions{
		Mode:     cfg.Mode,
		Verifier: sessions,
		Pools:    pools.RateLimitPools,
		Events:   sinks,
		Metrics:  metrics,
		Logger:   appLogger,
	})
	if err != nil {
		appLogger.Fatal(ctx, "Failed to create request gate", err)
	}

	r := router.NewRouter(cfg, appLogger,
		router.Handlers{
			Health: handlers.NewHealthHandler(probes, cfg.Mode, appLogger),
			Auth: handlers.NewAuthHandler(authAppSvc,
				handlers.CookieOptions{Secure: cfg.Session.SecureCookie, MaxAge: cfg.Session.MaxAge},
				oauth.NewState, appLogger),
			Tasks:    handlers.NewTaskHandler(taskAppSvc),
			Insights: handlers.NewInsightHandler(insightAppSvc),
		},
		router.Middlewares{
			Gate:          gate.Handler(),
			Observability: middleware.ObservabilityMiddleware(tracing, metrics),
			AccessLog:     middleware.AccessLog(appLogger),
			Idempotency:   middleware.IdempotencyMiddleware(redisClient, idempotencyTTL, appLogger),
		},
	)

	if err := r.Run(ctx); err != nil {
		appLogger.Fatal(ctx, "HTTP server failed", err)
	}
}

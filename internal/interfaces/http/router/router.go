package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/dashgate/internal/application/dto"
	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/internal/interfaces/http/handlers"
	"github.com/turtacn/dashgate/internal/interfaces/http/middleware"
	"github.com/turtacn/dashgate/pkg/constants"
	apperrors "github.com/turtacn/dashgate/pkg/errors"
	"github.com/turtacn/dashgate/pkg/logger"
)

// suggestionsMaxAge is the client cache lifetime of the static suggestion list.
const suggestionsMaxAge = 300

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Health   *handlers.HealthHandler
	Auth     *handlers.AuthHandler
	Tasks    *handlers.TaskHandler
	Insights *handlers.InsightHandler
}

// Middlewares groups the cross-cutting middleware. Gate is required; the
// others may be nil.
type Middlewares struct {
	Gate          gin.HandlerFunc
	Observability gin.HandlerFunc
	AccessLog     gin.HandlerFunc
	Idempotency   gin.HandlerFunc
	// Metrics serves /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
}

// Router HTTP 路由器
type Router struct {
	engine      *gin.Engine
	config      *config.Config
	logger      logger.Logger
	handlers    Handlers
	middlewares Middlewares
	server      *http.Server
}

// NewRouter 创建路由器
func NewRouter(cfg *config.Config, log logger.Logger, h Handlers, mw Middlewares) *Router {
	// 设置 Gin 模式
	switch cfg.Mode {
	case constants.ModeProduction:
		gin.SetMode(gin.ReleaseMode)
	case constants.ModeTest:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := &Router{
		engine:      gin.New(),
		config:      cfg,
		logger:      log,
		handlers:    h,
		middlewares: mw,
	}
	r.setupRoutes()
	return r
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 全局中间件
	r.engine.Use(gin.Recovery())

	if r.middlewares.Observability != nil {
		r.engine.Use(r.middlewares.Observability)
	}
	// The gate runs before CORS so preflights and rejected origins still get
	// a request id, and it stores the request-scoped logger the access log
	// writes through.
	r.engine.Use(r.middlewares.Gate)
	if r.middlewares.AccessLog != nil {
		r.engine.Use(r.middlewares.AccessLog)
	}

	// CORS 配置
	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     r.config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", constants.HeaderRequestID, middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{constants.HeaderRequestID, constants.HeaderRateLimitLimit, constants.HeaderRateLimitRemaining, constants.HeaderRetryAfter},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Prometheus metrics
	metricsHandler := r.middlewares.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.engine.GET("/metrics", gin.WrapH(metricsHandler))

	// Pprof 性能分析（仅在开发环境）
	if r.config.IsDevelopment() {
		pprof.Register(r.engine)
	}

	api := r.engine.Group("/api")
	{
		api.GET("/health", r.handlers.Health.HealthCheck)

		auth := api.Group("/auth")
		{
			auth.GET("/signin/:provider", r.handlers.Auth.SignIn)
			auth.GET("/callback/:provider", r.handlers.Auth.Callback)
			auth.POST("/signout", r.handlers.Auth.SignOut)
			auth.GET("/session", r.handlers.Auth.Session)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("", r.handlers.Tasks.List)
			tasks.POST("", r.optional(r.middlewares.Idempotency), r.handlers.Tasks.Create)
			tasks.PUT("/:id", r.handlers.Tasks.UpdateStatus)
			tasks.DELETE("/:id", r.handlers.Tasks.Delete)
		}

		suggestions := api.Group("/suggestions")
		{
			suggestions.GET("", middleware.ETagCache(suggestionsMaxAge), r.handlers.Insights.Suggestions)
			suggestions.POST("", r.handlers.Insights.Enhance)
			suggestions.POST("/enhance", r.handlers.Insights.Enhance)
		}

		api.GET("/cost", r.handlers.Insights.Cost)
	}

	// 404 处理
	r.engine.NoRoute(func(c *gin.Context) {
		dto.SendError(c, apperrors.ErrNotFound)
	})
}

// optional returns mw, or a pass-through handler when mw is nil.
func (r *Router) optional(mw gin.HandlerFunc) gin.HandlerFunc {
	if mw != nil {
		return mw
	}
	return func(c *gin.Context) { c.Next() }
}

// Run 启动 HTTP 服务器，并在 ctx 取消时优雅关闭
func (r *Router) Run(ctx context.Context) error {
	addr := r.config.Server.Addr()
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    r.config.Server.ReadTimeout,
		WriteTimeout:   r.config.Server.WriteTimeout,
		IdleTimeout:    r.config.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info(ctx, "Starting HTTP server", logger.String("address", addr))
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return r.shutdown()
	})
	return g.Wait()
}

// shutdown 优雅关闭服务器
func (r *Router) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.Server.ShutdownTimeout)
	defer cancel()

	r.logger.Info(ctx, "Shutting down HTTP server...")
	if err := r.server.Shutdown(ctx); err != nil {
		r.logger.Error(ctx, "Server forced to shutdown", err)
		return err
	}
	r.logger.Info(ctx, "HTTP server stopped")
	return nil
}

// Engine returns the underlying gin engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

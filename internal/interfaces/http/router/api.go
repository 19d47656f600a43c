package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/realty/backend/internal/infrastructure/logger"
	"github.com/realty/backend/internal/interfaces/http/handler"
	"github.com/realty/backend/internal/interfaces/http/middleware"
)

// EngineConfig selects the middleware of the listing API
type EngineConfig struct {
	Logger         *zap.Logger
	TrustedProxies []string
	Tracing        middleware.TracingConfig
	Metrics        middleware.HTTPMetricsConfig
	Security       middleware.SecurityConfig
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	RequestTimeout time.Duration

	// SearchLimiter throttles /api/properties per client; nil disables it
	SearchLimiter *middleware.RateLimiter
	// AdminValidator guards /api/idx; nil leaves it open, e.g. when jwt is
	// disabled in development
	AdminValidator middleware.AdminTokenValidator
}

// Handlers are the endpoint implementations mounted by NewEngine
type Handlers struct {
	Properties *handler.PropertyHandler
	IDX        *handler.IDXHandler
	Health     *handler.HealthHandler
}

// NewEngine builds the gin engine with the global middleware chain and
// every route of the API
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	// tracing wraps logging so request logs carry trace ids, and recovery
	// sits inside both so a panic is still logged and traced as a 500
	engine.Use(
		middleware.RequestID(),
		middleware.TracingWithConfig(cfg.Tracing),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.HTTPMetrics(cfg.Metrics),
		middleware.SecureWithConfig(cfg.Security),
		middleware.CORSWithConfig(cfg.CORS),
		middleware.BodyLimit(cfg.MaxBodySize),
		middleware.Timeout(cfg.RequestTimeout),
	)

	if h.Health != nil {
		engine.GET("/health", h.Health.Health)
	}

	r := NewRouter(engine)

	if h.Properties != nil {
		properties := NewRouteGroup("properties", "/properties")
		if cfg.SearchLimiter != nil {
			properties.Use(middleware.RateLimit(cfg.SearchLimiter))
		}
		properties.
			GET("", h.Properties.Search).
			GET("/:id", h.Properties.Get)
		r.Register(properties)
	}

	if h.IDX != nil {
		idxRoutes := NewRouteGroup("idx", "/idx")
		if cfg.AdminValidator != nil {
			idxRoutes.Use(middleware.AdminAuth(cfg.AdminValidator, log))
		} else {
			log.Warn("IDX sync endpoints are not protected, jwt is disabled")
		}
		idxRoutes.
			POST("/sync", h.IDX.StartSync).
			GET("/sync/:id", h.IDX.GetRun).
			GET("/status", h.IDX.Status)
		r.Register(idxRoutes)
	}

	r.Setup()
	return engine, nil
}

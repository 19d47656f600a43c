package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	idxapp "github.com/realty/backend/internal/application/idx"
	listingapp "github.com/realty/backend/internal/application/listing"
	"github.com/realty/backend/internal/domain/idx"
	"github.com/realty/backend/internal/domain/listing"
	"github.com/realty/backend/internal/infrastructure/auth"
	"github.com/realty/backend/internal/infrastructure/cache"
	"github.com/realty/backend/internal/infrastructure/config"
	"github.com/realty/backend/internal/infrastructure/idxprovider"
	"github.com/realty/backend/internal/infrastructure/logger"
	"github.com/realty/backend/internal/infrastructure/persistence"
	"github.com/realty/backend/internal/infrastructure/scheduler"
	"github.com/realty/backend/internal/infrastructure/storage"
	"github.com/realty/backend/internal/infrastructure/telemetry"
	"github.com/realty/backend/internal/interfaces/http/handler"
	"github.com/realty/backend/internal/interfaces/http/middleware"
	"github.com/realty/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Realty Listing API
//	@version		1.0
//	@description	Property search over synced IDX/MLS listings and sync administration.

//	@host		localhost:8080
//	@BasePath	/api

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Admin JWT as "Bearer {token}"; required for /idx routes when jwt is enabled

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting realty backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx := context.Background()

	// Telemetry
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}
	loggerProvider, err := telemetry.NewLoggerProvider(rootCtx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	// everything below logs through the bridge when export is on
	log = telemetry.BridgeLogger(log, loggerProvider, cfg.Telemetry.ServiceName)

	tracerProvider, err := telemetry.NewTracerProvider(rootCtx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(rootCtx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		// postgres schemas come from cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			SlowQueryThresh: 200 * time.Millisecond,
			DBSystem:        cfg.Database.Driver,
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			log.Warn("Database tracing disabled", zap.Error(err))
		}
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	propertyRepo := persistence.NewGormPropertyRepository(db.DB)
	syncRunRepo := persistence.NewGormSyncRunRepository(db.DB)

	// Search cache
	searchCache, err := cache.NewSearchCacheFactory(cfg.Redis, cache.WithLogger(log)).CreateCache(rootCtx)
	if err != nil {
		log.Fatal("Failed to create search cache", zap.Error(err))
	}
	defer func() {
		if err := searchCache.Close(); err != nil {
			log.Error("Error closing search cache", zap.Error(err))
		}
	}()

	// Listing provider
	provider := newProvider(cfg.IDX, log)

	// Sync executor and worker pool
	executor, err := newSyncExecutor(rootCtx, cfg, provider, propertyRepo, syncRunRepo, searchCache, meterProvider, log)
	if err != nil {
		log.Fatal("Failed to create sync executor", zap.Error(err))
	}
	syncScheduler, err := scheduler.NewSyncScheduler(scheduler.SyncSchedulerConfig{
		Workers:    cfg.Sync.Workers,
		QueueSize:  cfg.Sync.QueueSize,
		JobTimeout: cfg.Sync.JobTimeout,
	}, executor, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if err := syncScheduler.Start(rootCtx); err != nil {
		log.Fatal("Failed to start sync scheduler", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := syncScheduler.Stop(ctx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}()

	// Application services
	syncConfig := idxapp.DefaultSyncServiceConfig()
	if cfg.Sync.StaleAfter > 0 {
		syncConfig.StaleAfter = cfg.Sync.StaleAfter
	}
	if cfg.Sync.RecentRunLimit > 0 {
		syncConfig.RecentRunLimit = cfg.Sync.RecentRunLimit
	}
	syncService := idxapp.NewSyncService(syncRunRepo, provider, syncScheduler, executor, syncConfig, log)
	searchService := listingapp.NewSearchService(propertyRepo, searchCache, log)

	// runs left in progress by a previous process would block their type
	if _, err := syncService.ReapStale(rootCtx); err != nil {
		log.Warn("Failed to reap stale sync runs", zap.Error(err))
	}

	if cfg.Sync.CronEnabled {
		syncType, err := idx.ParseSyncType(cfg.Sync.CronSyncType)
		if err != nil {
			log.Fatal("Invalid sync.cron_sync_type", zap.String("value", cfg.Sync.CronSyncType))
		}
		trigger, err := scheduler.NewSyncCronTrigger(scheduler.SyncCronTriggerConfig{
			Schedule:    cfg.Sync.CronSchedule,
			SyncType:    syncType,
			TickTimeout: 30 * time.Second,
		}, syncService, log)
		if err != nil {
			log.Fatal("Failed to create sync cron trigger", zap.Error(err))
		}
		if err := trigger.Start(rootCtx); err != nil {
			log.Fatal("Failed to start sync cron trigger", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := trigger.Stop(ctx); err != nil {
				log.Error("Error stopping sync cron trigger", zap.Error(err))
			}
		}()
		log.Info("Sync cron trigger started",
			zap.String("schedule", cfg.Sync.CronSchedule),
			zap.String("sync_type", string(syncType)),
			zap.Time("next_run", trigger.Next()),
		)
	}

	// HTTP
	engineCfg := router.EngineConfig{
		Logger:         log,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
			SkipPaths:   []string{"/health"},
		},
		Metrics: middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.MetricsEnabled,
			Logger:        log,
		},
		Security: middleware.DefaultSecurityConfig(),
		CORS: middleware.CORSConfig{
			AllowOrigins: cfg.HTTP.CORSAllowOrigins,
			AllowMethods: cfg.HTTP.CORSAllowMethods,
			AllowHeaders: cfg.HTTP.CORSAllowHeaders,
			MaxAge:       12 * time.Hour,
		},
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}
	if cfg.App.Env == "production" {
		engineCfg.Security.HSTSEnabled = true
	}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Stop()
		engineCfg.SearchLimiter = limiter
	}
	if cfg.JWT.Enabled {
		engineCfg.AdminValidator = auth.NewJWTService(cfg.JWT)
	}

	engine, err := router.NewEngine(engineCfg, router.Handlers{
		Properties: handler.NewPropertyHandler(searchService),
		IDX:        handler.NewIDXHandler(syncService),
		Health:     handler.NewHealthHandler(db, version),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newProvider returns the HTTP provider client, or a provider that fails
// every sync when none is configured so search still serves stored data
func newProvider(cfg config.IDXConfig, log *zap.Logger) idx.PropertyProvider {
	if cfg.BaseURL == "" {
		log.Warn("idx.base_url is empty, syncs will fail until a provider is configured")
		return idxprovider.NewDisabledProvider(cfg.Provider)
	}
	client, err := idxprovider.NewClient(idxprovider.Config{
		Name:         cfg.Provider,
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		ListingsPath: cfg.ListingsPath,
		Timeout:      cfg.Timeout,
		RetryMax:     cfg.RetryMax,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
		RatePerSec:   cfg.RatePerSec,
		RateBurst:    cfg.RateBurst,
	}, idxprovider.WithLogger(log))
	if err != nil {
		log.Fatal("Invalid idx provider configuration", zap.Error(err))
	}
	return client
}

func newSyncExecutor(
	ctx context.Context,
	cfg *config.Config,
	provider idx.PropertyProvider,
	properties listing.PropertyRepository,
	runs idx.SyncRunRepository,
	searchCache listing.SearchCache,
	meterProvider *telemetry.MeterProvider,
	log *zap.Logger,
) (*scheduler.SyncExecutor, error) {
	featured, luxury, err := cfg.IDX.Thresholds()
	if err != nil {
		return nil, err
	}
	thresholds, err := listing.NewThresholds(featured, luxury)
	if err != nil {
		return nil, err
	}

	execCfg := scheduler.DefaultSyncExecutorConfig()
	execCfg.PageSize = cfg.IDX.PageSize
	execCfg.MaxPages = cfg.IDX.MaxPages
	execCfg.Thresholds = thresholds
	execCfg.DefaultState = cfg.IDX.DefaultState
	execCfg.DefaultZip = cfg.IDX.DefaultZip

	opts := []scheduler.SyncExecutorOption{scheduler.WithSearchCache(searchCache)}

	if cfg.Storage.Enabled {
		archive, err := storage.NewS3PageArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Warn("Page archive bucket check failed, archiving may fail", zap.Error(err))
		}
		opts = append(opts, scheduler.WithPageArchive(archive))
		log.Info("Raw page archiving enabled", zap.String("bucket", archive.Bucket()))
	}

	if meterProvider.Enabled() {
		metrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("idx.sync"))
		if err != nil {
			log.Warn("Sync metrics disabled", zap.Error(err))
		} else {
			opts = append(opts, scheduler.WithSyncMetrics(metrics))
		}
	}

	return scheduler.NewSyncExecutor(execCfg, provider, properties, runs, log, opts...)
}

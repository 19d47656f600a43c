package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	IDX       IDXConfig
	Sync      SyncConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file path
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL time.Duration
}

// JWTConfig holds admin token settings
type JWTConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
	// AdminRole is the role claim required to trigger syncs
	AdminRole string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RequestTimeout    time.Duration
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// IDXConfig holds the external listing provider settings
type IDXConfig struct {
	Provider     string
	BaseURL      string
	APIKey       string
	ListingsPath string
	PageSize     int
	MaxPages     int
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RatePerSec   float64
	RateBurst    int
	DefaultState string
	DefaultZip   string
	// Featured and luxury price thresholds, in dollars
	FeaturedThreshold string
	LuxuryThreshold   string
}

// SyncConfig holds sync worker pool and trigger settings
type SyncConfig struct {
	Workers        int
	QueueSize      int
	JobTimeout     time.Duration
	CronEnabled    bool
	CronSchedule   string
	CronSyncType   string
	StaleAfter     time.Duration
	RecentRunLimit int
}

// StorageConfig holds S3-compatible storage for raw provider page archives
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
	LogsEnabled       bool // Also export zap entries over OTLP
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with REALTY_ prefix (e.g., REALTY_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("REALTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("redis.cache_ttl"),
		},
		JWT: JWTConfig{
			Enabled:   v.GetBool("jwt.enabled"),
			Secret:    v.GetString("jwt.secret"),
			Issuer:    v.GetString("jwt.issuer"),
			AdminRole: v.GetString("jwt.admin_role"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RequestTimeout:    v.GetDuration("http.request_timeout"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		IDX: IDXConfig{
			Provider:          v.GetString("idx.provider"),
			BaseURL:           v.GetString("idx.base_url"),
			APIKey:            v.GetString("idx.api_key"),
			ListingsPath:      v.GetString("idx.listings_path"),
			PageSize:          v.GetInt("idx.page_size"),
			MaxPages:          v.GetInt("idx.max_pages"),
			Timeout:           v.GetDuration("idx.timeout"),
			RetryMax:          v.GetInt("idx.retry_max"),
			RetryWaitMin:      v.GetDuration("idx.retry_wait_min"),
			RetryWaitMax:      v.GetDuration("idx.retry_wait_max"),
			RatePerSec:        v.GetFloat64("idx.rate_per_sec"),
			RateBurst:         v.GetInt("idx.rate_burst"),
			DefaultState:      v.GetString("idx.default_state"),
			DefaultZip:        v.GetString("idx.default_zip"),
			FeaturedThreshold: v.GetString("idx.featured_threshold"),
			LuxuryThreshold:   v.GetString("idx.luxury_threshold"),
		},
		Sync: SyncConfig{
			Workers:        v.GetInt("sync.workers"),
			QueueSize:      v.GetInt("sync.queue_size"),
			JobTimeout:     v.GetDuration("sync.job_timeout"),
			CronEnabled:    v.GetBool("sync.cron_enabled"),
			CronSchedule:   v.GetString("sync.cron_schedule"),
			CronSyncType:   v.GetString("sync.cron_sync_type"),
			StaleAfter:     v.GetDuration("sync.stale_after"),
			RecentRunLimit: v.GetInt("sync.recent_run_limit"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "realty-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "realty"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "realty.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.CacheTTL == 0 {
		cfg.Redis.CacheTTL = 5 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "realty-backend"
	}
	if cfg.JWT.AdminRole == "" {
		cfg.JWT.AdminRole = "admin"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RequestTimeout == 0 {
		cfg.HTTP.RequestTimeout = 10 * time.Second
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 120
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// CORS origins have no fallback; an empty list rejects cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.IDX.Provider == "" {
		cfg.IDX.Provider = "idx"
	}
	if cfg.IDX.ListingsPath == "" {
		cfg.IDX.ListingsPath = "/properties"
	}
	if cfg.IDX.PageSize == 0 {
		cfg.IDX.PageSize = 100
	}
	if cfg.IDX.MaxPages == 0 {
		cfg.IDX.MaxPages = 50
	}
	if cfg.IDX.Timeout == 0 {
		cfg.IDX.Timeout = 30 * time.Second
	}
	if cfg.IDX.RetryMax == 0 {
		cfg.IDX.RetryMax = 2 // 3 attempts total
	}
	if cfg.IDX.RetryWaitMin == 0 {
		cfg.IDX.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.IDX.RetryWaitMax == 0 {
		cfg.IDX.RetryWaitMax = 5 * time.Second
	}
	if cfg.IDX.RatePerSec == 0 {
		cfg.IDX.RatePerSec = 5
	}
	if cfg.IDX.RateBurst == 0 {
		cfg.IDX.RateBurst = 5
	}
	if cfg.IDX.DefaultState == "" {
		cfg.IDX.DefaultState = "NE"
	}
	if cfg.IDX.FeaturedThreshold == "" {
		cfg.IDX.FeaturedThreshold = "300000"
	}
	if cfg.IDX.LuxuryThreshold == "" {
		cfg.IDX.LuxuryThreshold = "400000"
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 2
	}
	if cfg.Sync.QueueSize == 0 {
		cfg.Sync.QueueSize = 16
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 30 * time.Minute
	}
	if cfg.Sync.CronSchedule == "" {
		cfg.Sync.CronSchedule = "0 */6 * * *"
	}
	if cfg.Sync.CronSyncType == "" {
		cfg.Sync.CronSyncType = "properties"
	}
	if cfg.Sync.StaleAfter == 0 {
		cfg.Sync.StaleAfter = 2 * time.Hour
	}
	if cfg.Sync.RecentRunLimit == 0 {
		cfg.Sync.RecentRunLimit = 10
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "idx/raw"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "realty-backend"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	featured, luxury, err := c.IDX.Thresholds()
	if err != nil {
		return err
	}
	if featured.IsNegative() || luxury.IsNegative() {
		return fmt.Errorf("idx price thresholds cannot be negative")
	}
	if featured.GreaterThan(luxury) {
		return fmt.Errorf("idx.featured_threshold (%s) cannot exceed idx.luxury_threshold (%s)",
			featured.String(), luxury.String())
	}
	if c.IDX.PageSize <= 0 || c.IDX.PageSize > 1000 {
		return fmt.Errorf("idx.page_size must be between 1 and 1000, got %d", c.IDX.PageSize)
	}
	if c.IDX.MaxPages <= 0 {
		return fmt.Errorf("idx.max_pages must be positive")
	}
	if c.IDX.RetryMax < 0 {
		return fmt.Errorf("idx.retry_max cannot be negative")
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("sync.workers must be positive")
	}

	if c.JWT.Enabled && c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required when jwt.enabled is true")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage.enabled is true")
	}

	if c.App.Env == "production" {
		if !c.JWT.Enabled {
			return fmt.Errorf("jwt.enabled must be true in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "postgres" {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// Thresholds parses the featured and luxury price thresholds
func (i *IDXConfig) Thresholds() (featured, luxury decimal.Decimal, err error) {
	featured, err = decimal.NewFromString(i.FeaturedThreshold)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("idx.featured_threshold is not a number: %w", err)
	}
	luxury, err = decimal.NewFromString(i.LuxuryThreshold)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("idx.luxury_threshold is not a number: %w", err)
	}
	return featured, luxury, nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// ConnMaxLifetimeDuration returns the connection lifetime as a duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Minute
}

// ConnMaxIdleTimeDuration returns the connection idle time as a duration
func (d *DatabaseConfig) ConnMaxIdleTimeDuration() time.Duration {
	return time.Duration(d.ConnMaxIdleTime) * time.Minute
}

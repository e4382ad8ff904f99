package app

import (
	"errors"
	"net/url"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"

	"github.com/odyssey-erp/ledgerdesk/internal/platform/cache"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"45s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"40s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	ERPBaseURL      string        `envconfig:"ERP_API_BASE_URL" required:"true"`
	ERPTimeout      time.Duration `envconfig:"ERP_API_TIMEOUT" default:"30s"`
	ERPServiceToken string        `envconfig:"ERP_SERVICE_TOKEN"`

	DraftTTL      time.Duration `envconfig:"DRAFT_TTL" default:"12h"`
	SubmitLockTTL time.Duration `envconfig:"SUBMIT_LOCK_TTL" default:"45s"`
	MasterdataTTL time.Duration `envconfig:"MASTERDATA_TTL" default:"15m"`
	CapabilityTTL time.Duration `envconfig:"CAPABILITY_TTL" default:"10m"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"300"`

	WorkerConcurrency     int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	MasterdataRefreshCron string `envconfig:"MASTERDATA_REFRESH_CRON" default:"*/30 * * * *"`
	WorkerMetricsAddr     string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	u, err := url.Parse(c.ERPBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("ERP_API_BASE_URL must be an absolute URL")
	}
	if c.SubmitLockTTL <= 0 {
		return errors.New("SUBMIT_LOCK_TTL must be positive")
	}
	// The lock must outlive the slowest upstream call it protects.
	if c.ERPTimeout > 0 && c.SubmitLockTTL < c.ERPTimeout {
		return errors.New("SUBMIT_LOCK_TTL must not be shorter than ERP_API_TIMEOUT")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// RedisOptions returns the cache connection settings.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// AsynqRedis returns the queue connection settings.
func (c *Config) AsynqRedis() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

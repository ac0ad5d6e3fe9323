package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/roledash/roledash/internal/platform/cache"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	RateLimitPerMin   int           `envconfig:"RATE_LIMIT_PER_MIN" default:"60"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// PGDSN enables the mutation audit trail when set.
	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	UsersSourceURL     string        `envconfig:"USERS_SOURCE_URL" default:"https://jsonplaceholder.typicode.com"`
	UsersRemoteTimeout time.Duration `envconfig:"USERS_REMOTE_TIMEOUT" default:"10s"`
	UsersLenientLoad   bool          `envconfig:"USERS_LENIENT_LOAD" default:"false"`

	ExportDir  string `envconfig:"EXPORT_DIR" default:"./exports"`
	ExportCron string `envconfig:"EXPORT_CRON" default:"0 2 * * *"`

	// WorkerMetricsAddr serves /metrics from the worker; empty disables it.
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if cfg.UsersRemoteTimeout <= 0 {
		return nil, errors.New("users remote timeout must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// Redis returns the connection options shared by sessions and the job queue.
func (c *Config) Redis() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}

// AuditEnabled reports whether mutations are written to postgres.
func (c *Config) AuditEnabled() bool {
	return c != nil && c.PGDSN != ""
}

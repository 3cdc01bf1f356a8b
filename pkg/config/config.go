package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "JOBQUEUE_"

// Package-specific errors
var (
	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrInvalidConfig is returned when parsed values fail validation
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the full process configuration for a worker process.
type Config struct {
	// Store
	DatabaseURL       string        `env:"DATABASE_URL" envDefault:"jobqueue.db?_journal_mode=WAL&_busy_timeout=5000"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	// Dispatcher
	WorkerID        string        `env:"WORKER_ID"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	BatchSize       int           `env:"BATCH_SIZE" envDefault:"10"`
	Concurrency     int           `env:"CONCURRENCY" envDefault:"10"`
	LeaseTimeout    time.Duration `env:"LEASE_TIMEOUT" envDefault:"5m"`
	MaxAttempts     int           `env:"MAX_ATTEMPTS" envDefault:"10"`
	BackoffBase     time.Duration `env:"BACKOFF_BASE" envDefault:"1s"`
	BackoffMax      time.Duration `env:"BACKOFF_MAX" envDefault:"1h"`
	HandlerTimeout  time.Duration `env:"HANDLER_TIMEOUT" envDefault:"0s"`
	EnableScheduler bool          `env:"SCHEDULER" envDefault:"false"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Admin inspection API; empty disables it.
	AdminAddr string `env:"ADMIN_ADDR"`

	// Mail transport for the bundled handlers; an empty server token logs mail instead of sending it.
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	MailFrom             string `env:"MAIL_FROM" envDefault:"orders@example.com"`
}

var dotenvOnce sync.Once

// Load reads .env (if present) and the environment into a validated Config.
func Load() (Config, error) {
	dotenvOnce.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})
	return Parse()
}

// LoadFiles is like Load but reads the given env files instead of .env.
// Files that do not exist are an error.
func LoadFiles(paths ...string) (Config, error) {
	if err := godotenv.Load(paths...); err != nil {
		return Config{}, fmt.Errorf("load env files: %w", err)
	}
	return Parse()
}

// Parse reads the current environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
	return cfg
}

// Validate reports every out-of-range value at once.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.DatabaseURL == "" {
		invalid("%sDATABASE_URL is empty", Prefix)
	}
	if c.PollInterval <= 0 {
		invalid("%sPOLL_INTERVAL must be positive", Prefix)
	}
	if c.BatchSize < 1 {
		invalid("%sBATCH_SIZE must be at least 1", Prefix)
	}
	if c.Concurrency < 1 {
		invalid("%sCONCURRENCY must be at least 1", Prefix)
	}
	if c.LeaseTimeout <= 0 {
		invalid("%sLEASE_TIMEOUT must be positive", Prefix)
	}
	if c.MaxAttempts < 1 {
		invalid("%sMAX_ATTEMPTS must be at least 1", Prefix)
	}
	if c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase {
		invalid("%sBACKOFF_BASE must be positive and not above %sBACKOFF_MAX", Prefix, Prefix)
	}
	if c.HandlerTimeout < 0 {
		invalid("%sHANDLER_TIMEOUT must not be negative", Prefix)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		invalid("%sLOG_FORMAT must be json or text, got %q", Prefix, c.LogFormat)
	}

	return errors.Join(errs...)
}

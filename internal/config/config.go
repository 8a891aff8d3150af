package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/congo-pay/walletledger/internal/ledger"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName     string `env:"APP_NAME" envDefault:"WalletLedger"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`

	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	BalanceCacheTTL time.Duration `env:"BALANCE_CACHE_TTL" envDefault:"1m"`
	CacheTimeout    time.Duration `env:"CACHE_TIMEOUT" envDefault:"2s"`
	DebitRateLimit  int           `env:"DEBIT_RATE_LIMIT" envDefault:"5"`
	DebitRateWindow time.Duration `env:"DEBIT_RATE_WINDOW" envDefault:"1m"`

	RequestRateLimit    int    `env:"REQUEST_RATE_LIMIT" envDefault:"100"`
	NotificationChannel string `env:"NOTIFICATION_CHANNEL" envDefault:"wallet.notifications"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if !c.IsDev() {
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", c.AppEnv))
		}
		if c.RedisURL == "" {
			errs = append(errs, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", c.AppEnv))
		}
	}
	if c.DebitRateLimit < 0 {
		errs = append(errs, errors.New("DEBIT_RATE_LIMIT must not be negative"))
	}
	if c.DebitRateWindow <= 0 {
		errs = append(errs, errors.New("DEBIT_RATE_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// IsDev reports whether in-memory fallbacks are allowed.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// LedgerOptions converts the throttling and cache settings for the engine.
func (c Config) LedgerOptions() ledger.Options {
	return ledger.Options{
		DebitLimit:   c.DebitRateLimit,
		DebitWindow:  c.DebitRateWindow,
		BalanceTTL:   c.BalanceCacheTTL,
		CacheTimeout: c.CacheTimeout,
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

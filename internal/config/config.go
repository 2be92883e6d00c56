package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const defaultJWTSecret = "change-me-jwt-secret"

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"dev"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DB
	DatabaseURL string `envconfig:"DATABASE_URL" default:"marketstall.db"`

	// JWT
	JWTSecret string        `envconfig:"JWT_SECRET" default:"change-me-jwt-secret"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`

	// Reservations
	HoldTTL         time.Duration `envconfig:"HOLD_TTL" default:"5m"`
	QueueTTL        time.Duration `envconfig:"QUEUE_TTL" default:"20m"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1m"`
	SlipTolerance   string        `envconfig:"SLIP_AMOUNT_TOLERANCE" default:"1"`

	// Slip uploads
	UploadDir     string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	UploadURLBase string `envconfig:"UPLOAD_URL_BASE" default:"/static"`
	MaxSlipBytes  int64  `envconfig:"MAX_SLIP_BYTES" default:"5242880"`

	// Rate limiting, disabled when REDIS_URL is empty
	RedisURL       string        `envconfig:"REDIS_URL"`
	HoldRateLimit  int64         `envconfig:"HOLD_RATE_LIMIT" default:"30"`
	HoldRateWindow time.Duration `envconfig:"HOLD_RATE_WINDOW" default:"1m"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Tolerance is the accepted slip amount deviation.
func (c *Config) Tolerance() decimal.Decimal {
	d, err := decimal.NewFromString(c.SlipTolerance)
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return d
}

func (c *Config) IsProduction() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.HoldTTL <= 0 {
		return fmt.Errorf("HOLD_TTL must be > 0")
	}
	if cfg.QueueTTL <= cfg.HoldTTL {
		return fmt.Errorf("QUEUE_TTL must be longer than HOLD_TTL")
	}
	if cfg.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be > 0")
	}
	tol, err := decimal.NewFromString(cfg.SlipTolerance)
	if err != nil || tol.IsNegative() {
		return fmt.Errorf("SLIP_AMOUNT_TOLERANCE must be a non-negative number")
	}
	if cfg.MaxSlipBytes <= 0 {
		return fmt.Errorf("MAX_SLIP_BYTES must be > 0")
	}
	if cfg.RedisURL != "" && (cfg.HoldRateLimit <= 0 || cfg.HoldRateWindow <= 0) {
		return fmt.Errorf("HOLD_RATE_LIMIT and HOLD_RATE_WINDOW must be > 0 when REDIS_URL is set")
	}

	if isProdLike(cfg.AppEnv) {
		secret := strings.TrimSpace(cfg.JWTSecret)
		if secret == "" || secret == defaultJWTSecret {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
	}
	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

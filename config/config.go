package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	BaseURL string `env:"BASE_URL,notEmpty"`
	DBURL   string `env:"DB_URL,notEmpty"`

	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	JWTSecret          string        `env:"JWT_SECRET,notEmpty"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET"`
	JWTTTL             time.Duration `env:"JWT_TTL" envDefault:"168h"`
	RefreshTTL         time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
	OTPTTL             time.Duration `env:"OTP_TTL" envDefault:"10m"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,notEmpty"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// SweepAt is the UTC wall-clock time (HH:MM) of the daily subscription sweep.
	SweepAt    string `env:"SWEEP_AT" envDefault:"00:00"`
	VoiceQueue string `env:"VOICE_QUEUE" envDefault:"voice_clone_jobs"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	GoogleClientID         string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret     string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL      string `env:"GOOGLE_REDIRECT_URL"`
	GoogleFrontendRedirect string `env:"GOOGLE_FRONTEND_REDIRECT"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.RefreshTokenSecret == "" {
		cfg.RefreshTokenSecret = cfg.JWTSecret
	}
	if _, _, err := cfg.SweepClock(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SweepClock returns the hour and minute encoded in SweepAt.
func (c *Config) SweepClock() (int, int, error) {
	t, err := time.Parse("15:04", c.SweepAt)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid SWEEP_AT %q: %w", c.SweepAt, err)
	}
	return t.Hour(), t.Minute(), nil
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

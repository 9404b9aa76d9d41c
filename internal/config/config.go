package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// AppConfig is the process configuration, read from the environment.
type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	TurnBudget    time.Duration `env:"TURN_BUDGET" envDefault:"30s"`
	SetupBudget   time.Duration `env:"SETUP_BUDGET" envDefault:"120s"`
	PenaltyLimit  int           `env:"PENALTY_LIMIT" envDefault:"2"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5s"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	WebhookURL   string        `env:"WEBHOOK_URL"`
	WebhookRetry int           `env:"WEBHOOK_RETRY" envDefault:"3"`
	WebhookQueue int           `env:"WEBHOOK_QUEUE" envDefault:"256"`
	WebhookTTL   time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`

	MessagesDir string `env:"MESSAGES_DIR"`
}

// Load parses the environment and validates the result.
func Load() (*AppConfig, error) {
	cfg, err := env.ParseAs[AppConfig]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.WebhookURL = strings.TrimSpace(cfg.WebhookURL)
	cfg.MessagesDir = strings.TrimSpace(cfg.MessagesDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid field at once.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.TurnBudget <= 0 {
		errs = append(errs, errors.New("TURN_BUDGET must be positive"))
	}
	if c.SetupBudget <= 0 {
		errs = append(errs, errors.New("SETUP_BUDGET must be positive"))
	}
	if c.PenaltyLimit < 1 {
		errs = append(errs, errors.New("PENALTY_LIMIT must be at least 1"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.SessionTTL < c.SetupBudget {
		errs = append(errs, errors.New("SESSION_TTL must outlive SETUP_BUDGET"))
	}
	if c.WebhookURL != "" {
		if u, err := url.Parse(c.WebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, fmt.Errorf("WEBHOOK_URL %q is not an http(s) url", c.WebhookURL))
		}
	}
	if c.WebhookRetry < 0 {
		errs = append(errs, errors.New("WEBHOOK_RETRY must not be negative"))
	}
	return errors.Join(errs...)
}

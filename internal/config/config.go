package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration, loaded from environment
// variables. Everything has a development-friendly default except the
// signing secret, which must be set explicitly.
type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	DatabaseDSN string `env:"DATABASE_DSN" envDefault:"file:userhub.db?cache=shared&mode=rwc"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Debug       bool   `env:"DEBUG" envDefault:"true"`
	LogFilePath string `env:"LOG_FILE_PATH"`

	// SecretKey signs every token the app mints: API keys, session
	// cookies, confirmation and reset links.
	SecretKey string `env:"SECRET_KEY"`

	// EmailTokenExpiration bounds the age of confirmation and reset
	// links. Tokens sent by email are valid for 2 days by default.
	EmailTokenExpiration int `env:"EMAIL_TOKEN_EXPIRATION" envDefault:"172800"`

	// UserFoldersPath is the base directory under which each confirmed
	// user gets a <email>/data and <email>/model folder pair.
	UserFoldersPath string `env:"USER_FOLDERS_PATH" envDefault:"."`

	SMTP SMTPConfig `envPrefix:""`
}

// SMTPConfig holds the mail transport settings.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the settings the app cannot run without are present.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("missing SECRET_KEY environment variable")
	}
	if c.EmailTokenExpiration <= 0 {
		return fmt.Errorf("EMAIL_TOKEN_EXPIRATION must be a positive number of seconds")
	}
	if c.UserFoldersPath == "" {
		return fmt.Errorf("missing USER_FOLDERS_PATH environment variable")
	}
	return nil
}

// EmailTokenMaxAge returns the email token expiration as a duration.
func (c *Config) EmailTokenMaxAge() time.Duration {
	return time.Duration(c.EmailTokenExpiration) * time.Second
}

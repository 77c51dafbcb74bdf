// Package config holds connection settings for a Koine gateway service.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"

	"github.com/koinehq/koine-go/utils"
)

// Config describes how to reach a Koine gateway.
type Config struct {
	// BaseURL is the root of the gateway service, e.g. "http://localhost:3100".
	BaseURL string `env:"KOINE_BASE_URL" envDefault:"http://localhost:3100" validate:"required,url"`

	// AuthKey is the bearer token sent with every request.
	AuthKey string `env:"KOINE_AUTH_KEY" validate:"required"`

	// Model is an optional model alias (e.g. "sonnet") or full model name.
	// When empty the gateway's default model is used.
	Model string `env:"KOINE_MODEL"`

	Timeout      time.Duration  `env:"KOINE_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	LogLevel     utils.LogLevel `env:"KOINE_LOG_LEVEL" envDefault:"WARN"`
	ExtraHeaders map[string]string

	// RequestsPerSecond caps outgoing requests client-side. Zero disables
	// rate limiting.
	RequestsPerSecond float64 `env:"KOINE_REQUESTS_PER_SECOND" envDefault:"0"`
}

var validate = validator.New()

// LoadConfig builds a Config from KOINE_* environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ExtraHeaders: make(map[string]string),
	}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfig returns a Config with defaults, before options are applied.
func NewConfig() *Config {
	return &Config{
		BaseURL:      "http://localhost:3100",
		Timeout:      30 * time.Second,
		LogLevel:     utils.LogLevelWarn,
		ExtraHeaders: make(map[string]string),
	}
}

// Validate checks that the Config is complete enough to make requests.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

type ConfigOption func(*Config)

func SetBaseURL(baseURL string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

func SetAuthKey(authKey string) ConfigOption {
	return func(c *Config) {
		c.AuthKey = authKey
	}
}

func SetModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

func SetTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

func SetLogLevel(level utils.LogLevel) ConfigOption {
	return func(c *Config) {
		c.LogLevel = level
	}
}

func SetExtraHeaders(headers map[string]string) ConfigOption {
	return func(c *Config) {
		if c.ExtraHeaders == nil {
			c.ExtraHeaders = make(map[string]string)
		}
		for k, v := range headers {
			c.ExtraHeaders[k] = v
		}
	}
}

func SetRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

func ApplyOptions(cfg *Config, options ...ConfigOption) {
	for _, option := range options {
		option(cfg)
	}
}

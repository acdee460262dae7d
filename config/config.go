/*
Package config loads runtime configuration.

SOURCES (lowest to highest precedence):
  1. Defaults registered in setDefaults
  2. config.yaml in ., ./config or /etc/contract-engine
  3. .env file (loaded into the process environment, never overriding it)
  4. Environment variables with the CONTRACTS_ prefix,
     e.g. CONTRACTS_DATABASE_PATH, CONTRACTS_CRM_WEBHOOK_URL

Command-line flags in cmd/server override the result.
*/
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Logging   LoggingConfig   `mapstructure:"logging" validate:"required"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" validate:"required"`
	Email     EmailConfig     `mapstructure:"email"`
	CRM       CRMConfig       `mapstructure:"crm"`
	Sync      SyncConfig      `mapstructure:"sync" validate:"required"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// RateLimitConfig bounds contract submissions per client.
// RedisAddr is optional; when empty attempts are tracked in memory.
type RateLimitConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	Window      time.Duration `mapstructure:"window" validate:"required"`
	RedisAddr   string        `mapstructure:"redis_addr"`
}

type EmailConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	ServiceID  string `mapstructure:"service_id" validate:"required_if=Enabled true"`
	TemplateID string `mapstructure:"template_id" validate:"required_if=Enabled true"`
	PublicKey  string `mapstructure:"public_key" validate:"required_if=Enabled true"`
}

type CRMConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" validate:"required_if=Enabled true,omitempty,url"`
}

// SyncConfig drives the background retry of failed email/CRM deliveries.
type SyncConfig struct {
	RetryInterval   time.Duration `mapstructure:"retry_interval" validate:"required"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"min=0"`
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout" validate:"required"`
}

// Load reads configuration from defaults, file, .env and environment.
func Load() (*Configuration, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/contract-engine")

	v.SetEnvPrefix("CONTRACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})
	v.SetDefault("database.path", "contracts.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("ratelimit.max_attempts", 3)
	v.SetDefault("ratelimit.window", 5*time.Minute)
	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("email.enabled", false)
	v.SetDefault("email.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("email.service_id", "")
	v.SetDefault("email.template_id", "")
	v.SetDefault("email.public_key", "")
	v.SetDefault("crm.enabled", false)
	v.SetDefault("crm.webhook_url", "")
	v.SetDefault("sync.retry_interval", 10*time.Minute)
	v.SetDefault("sync.max_retries", 5)
	v.SetDefault("sync.delivery_timeout", 8*time.Second)
}

func (c Configuration) Validate() error {
	return validator.New().Struct(c)
}

// Default returns the configuration used when nothing is set.
// Useful for tests and scripts.
func Default() *Configuration {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic("config: invalid defaults: " + err.Error())
	}
	return cfg
}

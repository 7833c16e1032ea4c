package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Email     EmailConfig     `yaml:"email"`
	SMS       SMSConfig       `yaml:"sms"`
	Storage   StorageConfig   `yaml:"storage"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    int      `yaml:"port"`
	Host    string   `yaml:"host"`
	BaseURL string   `yaml:"base_url"`
	Origins []string `yaml:"origins"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeMins int    `yaml:"conn_max_life_mins"`
}

// ConnMaxLifetime returns the connection lifetime as a duration.
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifeMins) * time.Minute
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// AuthConfig holds session authentication configuration.
type AuthConfig struct {
	CookieName    string `yaml:"cookie_name"`
	SessionTTLHrs int    `yaml:"session_ttl_hours"`
}

// SessionTTL returns the session lifetime as a duration.
func (c AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHrs) * time.Hour
}

// PaymentMode selects the payment provider strategy. It is resolved once
// at load time; handlers never consult the environment per request.
type PaymentMode string

const (
	PaymentModeLive PaymentMode = "live"
	PaymentModeMock PaymentMode = "mock"
)

// PaymentConfig holds Stripe checkout configuration. Mode is derived from
// the presence of SecretKey during Load and never changes afterwards.
type PaymentConfig struct {
	SecretKey      string      `yaml:"secret_key"`
	Mode           PaymentMode `yaml:"-"`
	SuccessURL     string      `yaml:"success_url"`
	CancelURL      string      `yaml:"cancel_url"`
	Currency       string      `yaml:"currency"`
	TimeoutSeconds int         `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c PaymentConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EmailConfig holds SES email delivery settings. When Enabled is false the
// notifier logs instead of sending (local development fallback).
type EmailConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// SMSConfig holds Twilio SMS settings. Absence of credentials is not an
// error; the notifier falls back to logging.
type SMSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

// StorageConfig selects the document storage backend.
type StorageConfig struct {
	Type      string `yaml:"type"` // "s3" or "local"
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	AWSRegion string `yaml:"aws_region"`
}

// AssistantConfig holds Bedrock chat assistant settings.
type AssistantConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ModelID   string `yaml:"model_id"`
	Region    string `yaml:"region"`
	MaxTokens int    `yaml:"max_tokens"`
}

// Load reads and parses the configuration file, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	if len(c.Server.Origins) == 0 {
		c.Server.Origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifeMins == 0 {
		c.Database.ConnMaxLifeMins = 30
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "lmt_session"
	}
	if c.Auth.SessionTTLHrs == 0 {
		c.Auth.SessionTTLHrs = 24
	}
	if c.Payment.Currency == "" {
		c.Payment.Currency = "usd"
	}
	if c.Payment.TimeoutSeconds == 0 {
		c.Payment.TimeoutSeconds = 30
	}
	if c.Payment.SuccessURL == "" {
		c.Payment.SuccessURL = c.Server.BaseURL + "/payment/success"
	}
	if c.Payment.CancelURL == "" {
		c.Payment.CancelURL = c.Server.BaseURL + "/payment/cancel"
	}
	if c.Email.Region == "" {
		c.Email.Region = "us-east-1"
	}
	if c.SMS.FromNumber == "" {
		c.SMS.FromNumber = "+15005550006"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "local"
	}
	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = "./uploads"
	}
	if c.Storage.AWSRegion == "" {
		c.Storage.AWSRegion = "us-east-1"
	}
	if c.Assistant.ModelID == "" {
		c.Assistant.ModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if c.Assistant.Region == "" {
		c.Assistant.Region = "us-east-1"
	}
	if c.Assistant.MaxTokens == 0 {
		c.Assistant.MaxTokens = 2048
	}

	c.resolvePaymentMode()
}

// resolvePaymentMode fixes the payment strategy for the lifetime of the
// process. Missing provider credentials select mock mode, which simulates
// settlement locally.
func (c *Config) resolvePaymentMode() {
	if c.Payment.SecretKey != "" {
		c.Payment.Mode = PaymentModeLive
	} else {
		c.Payment.Mode = PaymentModeMock
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		cfg.Payment.SecretKey = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.SMS.AccountSID = v
		cfg.SMS.Enabled = true
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.SMS.AuthToken = v
	}
	if v := os.Getenv("SES_FROM_EMAIL"); v != "" {
		cfg.Email.FromEmail = v
		cfg.Email.Enabled = true
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Email.Region = v
		cfg.Storage.AWSRegion = v
		cfg.Assistant.Region = v
	}
	if v := os.Getenv("DOCUMENTS_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
		cfg.Storage.Type = "s3"
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Assistant.ModelID = v
		cfg.Assistant.Enabled = true
	}

	// Env overrides can change the credential set, so decide again
	cfg.resolvePaymentMode()

	return cfg, nil
}

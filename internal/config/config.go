// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"parkncharge/registration/internal/security"
	"parkncharge/registration/internal/sms"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the registration HTTP API listens on.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health listener.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// FieldEncryptionKey is the base64-encoded 32-byte master key for PII fields.
	FieldEncryptionKey string `mapstructure:"FIELD_ENCRYPTION_KEY"`

	// SMSAPIKey is sent as the Basic credential to the SMS gateway. Required in production.
	SMSAPIKey string `mapstructure:"SMS_API_KEY"`
	// SMSBaseURL is the sendmsg endpoint of the SMS gateway.
	SMSBaseURL string `mapstructure:"SMS_BASE_URL"`
	// SMSSource is the sender name shown on the handset.
	SMSSource string `mapstructure:"SMS_SOURCE"`
	// SMSTimeout bounds a single gateway request (e.g. "15s").
	SMSTimeout string `mapstructure:"SMS_TIMEOUT"`

	// OTPTTLRaw is how long an issued OTP stays valid (e.g. "5m").
	OTPTTLRaw string `mapstructure:"OTP_TTL"`
	// BcryptCost is the bcrypt cost factor (4..31) for temporary passwords; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// APIClientPublicKey is the PEM public key (or path to it) that verifies API client tokens.
	// Empty disables client authentication outside production.
	APIClientPublicKey string `mapstructure:"API_CLIENT_PUBLIC_KEY"`
	// APIClientIssuer is the expected iss claim of API client tokens.
	APIClientIssuer string `mapstructure:"API_CLIENT_ISSUER"`
	// APIClientAudience is the expected aud claim of API client tokens.
	APIClientAudience string `mapstructure:"API_CLIENT_AUDIENCE"`

	// OTLPEndpoint is the OTLP gRPC collector address; empty disables tracing export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of brokers for registration events; empty disables events.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// RegistrationEventsTopic is the Kafka topic for registration events.
	RegistrationEventsTopic string `mapstructure:"REGISTRATION_EVENTS_TOPIC"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := newViper()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("FIELD_ENCRYPTION_KEY", "")
	v.SetDefault("SMS_API_KEY", "")
	v.SetDefault("SMS_BASE_URL", sms.DefaultBaseURL)
	v.SetDefault("SMS_SOURCE", sms.DefaultSource)
	v.SetDefault("SMS_TIMEOUT", "15s")
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("API_CLIENT_PUBLIC_KEY", "")
	v.SetDefault("API_CLIENT_ISSUER", "")
	v.SetDefault("API_CLIENT_AUDIENCE", "parkncharge-registration")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("REGISTRATION_EVENTS_TOPIC", "pnc-registration-events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabaseURL reads only DATABASE_URL, for tools such as cmd/migrate that do not need the full config.
func LoadDatabaseURL() (string, error) {
	v := newViper()
	v.SetDefault("DATABASE_URL", "")
	dsn := strings.TrimSpace(v.GetString("DATABASE_URL"))
	if dsn == "" {
		return "", errors.New("config: DATABASE_URL must be set")
	}
	return dsn, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound
	v.AutomaticEnv()
	return v
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.FieldEncryptionKey == "" {
		return errors.New("config: FIELD_ENCRYPTION_KEY must be set")
	}
	if _, err := security.DecodeFieldKey(c.FieldEncryptionKey); err != nil {
		return errors.New("config: FIELD_ENCRYPTION_KEY must be base64 encoding of 32 bytes")
	}
	if c.IsProduction() && c.SMSAPIKey == "" {
		return errors.New("config: SMS_API_KEY must be set when APP_ENV=production")
	}
	if c.IsProduction() && c.APIClientPublicKey == "" {
		return errors.New("config: API_CLIENT_PUBLIC_KEY must be set when APP_ENV=production")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if d, err := time.ParseDuration(c.OTPTTLRaw); err != nil || d < time.Second {
		return errors.New("config: OTP_TTL must be a duration of at least 1s")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// FieldKey returns the decoded field encryption key. Load has already validated it.
func (c *Config) FieldKey() []byte {
	key, _ := security.DecodeFieldKey(c.FieldEncryptionKey)
	return key
}

// OTPTTL parses OTPTTLRaw as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) OTPTTL() time.Duration {
	return parseDuration(c.OTPTTLRaw, 5*time.Minute)
}

// SMSRequestTimeout parses SMSTimeout. Returns 15s if unset or invalid.
func (c *Config) SMSRequestTimeout() time.Duration {
	return parseDuration(c.SMSTimeout, 15*time.Second)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means registration events are disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

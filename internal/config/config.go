package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const minSecretKeyLen = 32

type Config struct {
	Port              string   `mapstructure:"PORT"`
	Env               string   `mapstructure:"ENV"`
	DatabaseURL       string   `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32    `mapstructure:"DB_MIN_CONNS"`
	SecretKey         string   `mapstructure:"SECRET_KEY"`
	AuthIssuer        string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience      string   `mapstructure:"AUTH_AUDIENCE"`
	DefaultTenant     string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
	RedisURL          string   `mapstructure:"REDIS_URL"`
	KafkaBrokers      []string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic        string   `mapstructure:"KAFKA_TOPIC"`
	SyncBatchSize     int      `mapstructure:"SYNC_BATCH_SIZE"`
	SyncRetryAttempts int      `mapstructure:"SYNC_RETRY_ATTEMPTS"`
	SyncRetryDelay    int      `mapstructure:"SYNC_RETRY_DELAY"`
	MetricsEnabled    bool     `mapstructure:"METRICS_ENABLED"`
	LogLevel          string   `mapstructure:"LOG_LEVEL"`
}

// SyncConfig controls the FHIR export run.
type SyncConfig struct {
	BatchSize     int
	RetryAttempts int
	RetryDelay    time.Duration
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SECRET_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE", "DEFAULT_TENANT", "CORS_ORIGINS",
	"REDIS_URL", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"SYNC_BATCH_SIZE", "SYNC_RETRY_ATTEMPTS", "SYNC_RETRY_DELAY",
	"METRICS_ENABLED", "LOG_LEVEL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REDIS_URL", "redis://localhost:6379")
	v.SetDefault("KAFKA_TOPIC", "clinified.fhir.export")
	v.SetDefault("SYNC_BATCH_SIZE", 100)
	v.SetDefault("SYNC_RETRY_ATTEMPTS", 3)
	v.SetDefault("SYNC_RETRY_DELAY", 5)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")

	// Bind explicitly so Unmarshal sees variables that have no default.
	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// DefaultTenantID parses DEFAULT_TENANT. An empty value yields uuid.Nil,
// which makes the tenant header mandatory.
func (c *Config) DefaultTenantID() (uuid.UUID, error) {
	if c.DefaultTenant == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(c.DefaultTenant)
	if err != nil {
		return uuid.Nil, fmt.Errorf("DEFAULT_TENANT must be a UUID: %w", err)
	}
	return id, nil
}

// Level parses LOG_LEVEL, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) SyncConfig() SyncConfig {
	return SyncConfig{
		BatchSize:     c.SyncBatchSize,
		RetryAttempts: c.SyncRetryAttempts,
		RetryDelay:    time.Duration(c.SyncRetryDelay) * time.Second,
	}
}

// Validate checks that the configuration is safe to run. Outside development
// SECRET_KEY must be long enough to sign HS256 tokens.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.SecretKey) < minSecretKeyLen {
		return fmt.Errorf("SECRET_KEY must be at least %d characters outside development (ENV=%q)", minSecretKeyLen, c.Env)
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid pool bounds: DB_MIN_CONNS=%d DB_MAX_CONNS=%d", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := c.DefaultTenantID(); err != nil {
		return err
	}
	if c.SyncBatchSize <= 0 {
		return fmt.Errorf("SYNC_BATCH_SIZE must be positive, got %d", c.SyncBatchSize)
	}
	if c.SyncRetryAttempts < 1 {
		return fmt.Errorf("SYNC_RETRY_ATTEMPTS must be at least 1, got %d", c.SyncRetryAttempts)
	}
	if c.SyncRetryDelay < 0 {
		return fmt.Errorf("SYNC_RETRY_DELAY cannot be negative, got %d", c.SyncRetryDelay)
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the scoreboard service.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Logger      LoggerConfig      `mapstructure:"logger" validate:"required"`
	Sentry      SentryConfig      `mapstructure:"sentry"`
	Password    PasswordConfig    `mapstructure:"password" validate:"required"`
	Ranking     RankingConfig     `mapstructure:"ranking" validate:"required"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	I18n        I18nConfig        `mapstructure:"i18n" validate:"required"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	StaticDir       string        `mapstructure:"static_dir"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	Host            string        `mapstructure:"host" validate:"required_if=Driver postgres"`
	Port            string        `mapstructure:"port" validate:"required_if=Driver postgres"`
	User            string        `mapstructure:"user" validate:"required_if=Driver postgres"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name" validate:"required_if=Driver postgres"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// RedisConfig configures the optional Redis connection used for idempotency keys.
type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db" validate:"gte=0"`
	PoolSize        int           `mapstructure:"pool_size" validate:"gte=0"`
	MinIdleConns    int           `mapstructure:"min_idle_conns" validate:"gte=0"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// LoggerConfig configures slog output and optional file rotation.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"required,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	DSN        string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// PasswordConfig holds argon2id parameters.
type PasswordConfig struct {
	Time         uint32 `mapstructure:"time" validate:"gte=1"`
	MemoryKiB    uint32 `mapstructure:"memory_kib" validate:"gte=8"`
	Threads      uint8  `mapstructure:"threads" validate:"gte=1"`
	KeyLength    uint32 `mapstructure:"key_length" validate:"gte=16"`
	SaltLength   uint32 `mapstructure:"salt_length" validate:"gte=8"`
	LegacySHA256 bool   `mapstructure:"legacy_sha256"`
}

// RankingConfig sizes the leaderboard projection.
type RankingConfig struct {
	Size int `mapstructure:"size" validate:"gte=1,lte=100"`
}

// IdempotencyConfig controls replay protection for score submissions.
type IdempotencyConfig struct {
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	LockTTL time.Duration `mapstructure:"lock_ttl" validate:"gte=0"`
}

// I18nConfig selects the fallback language for user-facing messages.
type I18nConfig struct {
	DefaultLang string `mapstructure:"default_lang" validate:"required"`
}

// GetDBConnectionString returns PostgreSQL DSN based on config values.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore: TXMON_SERVER__PORT sets server.port.
const EnvPrefix = "TXMON_"

// DefaultPath is read when no explicit config file is given.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`
	LogFormat   string `koanf:"log_format"`

	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Scoring   ScoringConfig   `koanf:"scoring"`
	Upload    UploadConfig    `koanf:"upload"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Security  SecurityConfig  `koanf:"security"`
	GeoIP     GeoIPConfig     `koanf:"geoip"`
	Telegram  TelegramConfig  `koanf:"telegram"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	// ValidateRequests checks requests against the embedded OpenAPI document
	ValidateRequests bool `koanf:"validate_requests"`
}

// StorageConfig selects the transaction store.
type StorageConfig struct {
	Driver      string `koanf:"driver"` // memory or postgres
	SeedMetrics bool   `koanf:"seed_metrics"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `koanf:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	StatsTTL     time.Duration `koanf:"stats_ttl"`
}

type KafkaConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Brokers           []string      `koanf:"brokers"`
	TopicScored       string        `koanf:"topic_scored"`
	TopicAlertCreated string        `koanf:"topic_alert_created"`
	TopicAlertUpdated string        `koanf:"topic_alert_updated"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
}

// ScoringConfig tunes the risk pipeline's historical lookup.
type ScoringConfig struct {
	HistorySource     string        `koanf:"history_source"` // store or redis
	StructuringWindow time.Duration `koanf:"structuring_window"`
	LookupTimeout     time.Duration `koanf:"lookup_timeout"`
	BatchWorkers      int           `koanf:"batch_workers"`
}

type UploadConfig struct {
	MaxBytes       int64 `koanf:"max_bytes"`
	MaxErrorReport int   `koanf:"max_error_report"`
}

type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SamplingRate float64 `koanf:"sampling_rate"`
}

type SecurityConfig struct {
	JWTSecret string          `koanf:"jwt_secret"`
	JWTIssuer string          `koanf:"jwt_issuer"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// RateLimitConfig limits requests per client IP. A non-positive rate
// disables limiting.
type RateLimitConfig struct {
	Backend           string `koanf:"backend"` // memory or redis
	RequestsPerSecond int    `koanf:"requests_per_second"`
	BurstSize         int    `koanf:"burst_size"`
}

type GeoIPConfig struct {
	DatabasePath string `koanf:"database_path"`
}

type TelegramConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   string `koanf:"token"`
	ChatID  int64  `koanf:"chat_id"`
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		LogFormat:   "json",
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Storage: StorageConfig{
			Driver:      "memory",
			SeedMetrics: true,
		},
		Database: DatabaseConfig{
			MaxConns:        25,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
			ConnectTimeout:  10 * time.Second,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			StatsTTL:     15 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			TopicScored:       "transactions.scored",
			TopicAlertCreated: "alerts.created",
			TopicAlertUpdated: "alerts.updated",
			WriteTimeout:      10 * time.Second,
		},
		Scoring: ScoringConfig{
			HistorySource:     "store",
			StructuringWindow: 24 * time.Hour,
			LookupTimeout:     2 * time.Second,
			BatchWorkers:      8,
		},
		Upload: UploadConfig{
			MaxBytes:       10 << 20,
			MaxErrorReport: 10,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SamplingRate: 1.0,
		},
		Security: SecurityConfig{
			JWTIssuer: "transaction-monitor",
			RateLimit: RateLimitConfig{
				Backend:           "memory",
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
	}
}

// Load reads defaults, then the YAML file at path (DefaultPath when empty,
// skipped if missing), then TXMON_ environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be memory or postgres, got %q", c.Storage.Driver))
	}

	switch c.Scoring.HistorySource {
	case "store":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("scoring.history_source redis requires redis.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("scoring.history_source must be store or redis, got %q", c.Scoring.HistorySource))
	}

	switch c.Security.RateLimit.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, errors.New("security.rate_limit.backend redis requires redis.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("security.rate_limit.backend must be memory or redis, got %q", c.Security.RateLimit.Backend))
	}

	if c.Scoring.StructuringWindow <= 0 {
		errs = append(errs, errors.New("scoring.structuring_window must be positive"))
	}
	if c.Scoring.LookupTimeout <= 0 {
		errs = append(errs, errors.New("scoring.lookup_timeout must be positive"))
	}
	if c.Scoring.BatchWorkers < 1 {
		errs = append(errs, errors.New("scoring.batch_workers must be at least 1"))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes must be positive"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == 0) {
		errs = append(errs, errors.New("telegram.token and telegram.chat_id are required when telegram is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides. Nested keys use a
// double underscore, e.g. FRE_DATABASE__MAX_OPEN_CONNS.
const EnvPrefix = "FRE_"

// DefaultConfigFile is read when present
const DefaultConfigFile = "configs/config.yaml"

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Kafka     KafkaConfig     `koanf:"kafka"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Security  SecurityConfig  `koanf:"security"`
	Fraud     FraudConfig     `koanf:"fraud"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	MaxRetries   int           `koanf:"max_retries"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type KafkaConfig struct {
	Brokers      []string      `koanf:"brokers"`
	AlertTopic   string        `koanf:"alert_topic"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

type TelemetryConfig struct {
	Enabled       bool          `koanf:"enabled"`
	ServiceName   string        `koanf:"service_name"`
	OTLPEndpoint  string        `koanf:"otlp_endpoint"`
	SamplingRate  float64       `koanf:"sampling_rate"`
	ExportTimeout time.Duration `koanf:"export_timeout"`
}

type SecurityConfig struct {
	JWTSecret string          `koanf:"jwt_secret"`
	AdminRole string          `koanf:"admin_role"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `koanf:"requests_per_second"`
	BurstSize         int `koanf:"burst_size"`
}

// FraudConfig configures the assessment engine. Rule overrides are applied
// on top of the built-in defaults at startup; zero values leave a default
// untouched.
type FraudConfig struct {
	CheckTimeout         time.Duration      `koanf:"check_timeout"`
	TimeZone             string             `koanf:"time_zone"`
	BlacklistCacheTTL    time.Duration      `koanf:"blacklist_cache_ttl"`
	BlacklistNegativeTTL time.Duration      `koanf:"blacklist_negative_ttl"`
	PersistRules         bool               `koanf:"persist_rules"`
	Rules                FraudRuleOverrides `koanf:"rules"`
}

type FraudRuleOverrides struct {
	SuspiciousAmount float64            `koanf:"suspicious_amount"`
	HighRiskAmount   float64            `koanf:"high_risk_amount"`
	MaxDistanceKm    float64            `koanf:"max_distance_km"`
	SuspiciousHours  []int              `koanf:"suspicious_hours"`
	Weights          map[string]float64 `koanf:"weights"`
}

// Location resolves the configured time zone
func (f FraudConfig) Location() (*time.Location, error) {
	if f.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(f.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid fraud time zone %q: %w", f.TimeZone, err)
	}
	return loc, nil
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  5 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			DB:           0,
			PoolSize:     20,
			MinIdleConns: 2,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
		Kafka: KafkaConfig{
			AlertTopic:   "fraud.alerts",
			WriteTimeout: 5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   "fraud-risk-engine",
			OTLPEndpoint:  "localhost:4317",
			SamplingRate:  1.0,
			ExportTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AdminRole: "admin",
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 100,
				BurstSize:         200,
			},
		},
		Fraud: FraudConfig{
			CheckTimeout:         300 * time.Millisecond,
			TimeZone:             "UTC",
			BlacklistCacheTTL:    10 * time.Minute,
			BlacklistNegativeTTL: time.Minute,
			PersistRules:         true,
		},
	}
}

// Load reads defaults, then configs/config.yaml when present, then FRE_
// environment variables.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom is Load with an explicit config file path
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional
	if path != "" {
		_ = k.Load(file.Provider(path), yaml.Parser())
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "__", ".")
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

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Fraud.CheckTimeout <= 0 {
		return fmt.Errorf("fraud check timeout must be positive")
	}
	if _, err := c.Fraud.Location(); err != nil {
		return err
	}
	if c.Environment == "production" && c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required in production")
	}
	return nil
}

// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every service component.
//
// Configuration Layout:
// - Server: HTTP listener, timeouts, TLS and CORS
// - Storage: where saved voucher links live
// - Security: per-client rate limiting and the link encryption key
// - Upstream: the public CDC voucher API and outbound pacing
// - Logging, Cache, Metrics, Observability: ambient concerns
//
// Defaults work out of the box for local development. Production deployments
// must at least provide an encryption key.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"
)

// Storage type constants
const (
	StorageTypeJSON     = "json"
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
)

// Cache type constants
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Metrics exporter constants
const (
	MetricsExporterPrometheus = "prometheus"
	MetricsExporterStdout     = "stdout"
)

// Deployment environments. Only production enforces rate limiting and a
// persistent encryption key.
const (
	EnvironmentDevelopment = "development"
	EnvironmentTest        = "test"
	EnvironmentProduction  = "production"
)

// DefaultUpstreamBaseURL is the public CDC voucher API.
const DefaultUpstreamBaseURL = "https://api-cdc.redeem.gov.sg"

// Config is the root configuration structure containing all service settings.
type Config struct {
	Version       string              `yaml:"version,omitempty" json:"version,omitempty"` // Config schema version
	Environment   string              `yaml:"environment" json:"environment"`             // development, test or production
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Upstream      UpstreamConfig      `yaml:"upstream" json:"upstream"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Cache         CacheConfig         `yaml:"cache" json:"cache"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

// IsProduction reports whether the service runs in the production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Path     string         `yaml:"path" json:"path"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	// EncryptionKey is a 64 character hex string (32 bytes) used to seal
	// stored voucher URLs.
	EncryptionKey string `yaml:"encryption_key" json:"-"`
}

// RateLimitConfig describes the per-client token bucket guarding the upstream
// proxy endpoints. Capacity tokens regenerate evenly over Window.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Capacity        int           `yaml:"capacity" json:"capacity"`
	Window          time.Duration `yaml:"window" json:"window"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	StaleAfter      time.Duration `yaml:"stale_after" json:"stale_after"`
}

type UpstreamConfig struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"` // empty means voucherwatch/<version>
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Type    string        `yaml:"type" json:"type"`
	TTL     time.Duration `yaml:"ttl" json:"ttl"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
	Memory  MemoryConfig  `yaml:"memory" json:"memory"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type MemoryConfig struct {
	MaxSize         int           `yaml:"max_size" json:"max_size"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Exporter string        `yaml:"exporter" json:"exporter"` // prometheus or stdout
	Path     string        `yaml:"path" json:"path"`
	Port     int           `yaml:"port" json:"port"`
	Interval time.Duration `yaml:"interval" json:"interval"` // stdout export period
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"` // stdout or otlp
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
}

// NewDefaultConfig creates a configuration suitable for local development.
//
// Notable defaults:
// - 30 requests per minute per client, matching the public API's tolerance
// - In-memory link storage and voucher cache
// - Upstream calls paced to 5 per second with a burst of 10
// - Prometheus metrics on port 9090
func NewDefaultConfig() *Config {
	return &Config{
		Environment: EnvironmentDevelopment,
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type"},
				MaxAge:         86400,
			},
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Path: "./data/links.json",
			Database: DatabaseConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:         true,
				Capacity:        30,
				Window:          time.Minute,
				CleanupInterval: 5 * time.Minute,
				StaleAfter:      10 * time.Minute,
			},
		},
		Upstream: UpstreamConfig{
			BaseURL:           DefaultUpstreamBaseURL,
			Timeout:           10 * time.Second,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Cache: CacheConfig{
			Enabled: true,
			Type:    CacheTypeMemory,
			TTL:     5 * time.Minute,
			Redis: RedisConfig{
				PoolSize:  10,
				KeyPrefix: "voucherwatch:",
			},
			Memory: MemoryConfig{
				MaxSize:         1000,
				CleanupInterval: 10 * time.Minute,
			},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Exporter: MetricsExporterPrometheus,
			Path:     "/metrics",
			Port:     9090,
			Interval: time.Minute,
		},
		Observability: ObservabilityConfig{
			ServiceName: "voucherwatch",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	validEnvs := []string{EnvironmentDevelopment, EnvironmentTest, EnvironmentProduction}
	if !slices.Contains(validEnvs, c.Environment) {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Security.Validate(); err != nil {
		return fmt.Errorf("invalid security config: %w", err)
	}

	if c.IsProduction() && c.Security.EncryptionKey == "" {
		return errors.New("invalid security config: encryption key is required in production")
	}

	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("invalid upstream config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	validTypes := []string{StorageTypeJSON, StorageTypeMemory, StorageTypePostgres, StorageTypeSQLite}
	if !slices.Contains(validTypes, stc.Type) {
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}

	switch stc.Type {
	case StorageTypeJSON:
		if stc.Path == "" {
			return errors.New("path is required for JSON storage")
		}
	case StorageTypePostgres, StorageTypeSQLite:
		if stc.Database.DSN == "" {
			return errors.New("database DSN is required for database storage")
		}
	}

	return nil
}

func (sec *SecurityConfig) Validate() error {
	if err := sec.RateLimit.Validate(); err != nil {
		return err
	}

	if sec.EncryptionKey != "" && len(sec.EncryptionKey) != 64 {
		return errors.New("encryption key must be 64 hex characters")
	}

	return nil
}

func (rl *RateLimitConfig) Validate() error {
	if !rl.Enabled {
		return nil
	}
	if rl.Capacity <= 0 {
		return errors.New("rate limit capacity must be positive")
	}
	if rl.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if rl.CleanupInterval < 0 {
		return errors.New("rate limit cleanup interval cannot be negative")
	}
	if rl.StaleAfter < 0 {
		return errors.New("rate limit stale threshold cannot be negative")
	}
	return nil
}

func (uc *UpstreamConfig) Validate() error {
	if uc.BaseURL == "" {
		return errors.New("upstream base URL cannot be empty")
	}
	u, err := url.Parse(uc.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid upstream base URL: %s", uc.BaseURL)
	}
	if uc.Timeout < 0 {
		return errors.New("upstream timeout cannot be negative")
	}
	if uc.RequestsPerSecond < 0 {
		return errors.New("upstream requests per second cannot be negative")
	}
	if uc.RequestsPerSecond > 0 && uc.Burst <= 0 {
		return errors.New("upstream burst must be positive when pacing is enabled")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	if !slices.Contains(validOutputs, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (cc *CacheConfig) Validate() error {
	if !cc.Enabled {
		return nil
	}

	validTypes := []string{CacheTypeMemory, CacheTypeRedis}
	if !slices.Contains(validTypes, cc.Type) {
		return fmt.Errorf("invalid cache type: %s", cc.Type)
	}

	if cc.TTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}

	if cc.Type == CacheTypeRedis && cc.Redis.Addr == "" {
		return errors.New("Redis address is required when cache type is redis")
	}

	if cc.Type == CacheTypeMemory && cc.Memory.MaxSize < 0 {
		return errors.New("memory cache max size cannot be negative")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	switch mc.Exporter {
	case MetricsExporterPrometheus:
		if mc.Path == "" {
			return errors.New("metrics path cannot be empty")
		}
		if mc.Port <= 0 || mc.Port > 65535 {
			return errors.New("metrics port must be between 1 and 65535")
		}
	case MetricsExporterStdout:
		if mc.Interval < 0 {
			return errors.New("metrics interval cannot be negative")
		}
	default:
		return fmt.Errorf("invalid metrics exporter: %s", mc.Exporter)
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	validExporters := []string{"stdout", "otlp"}
	if !slices.Contains(validExporters, oc.Tracing.Exporter) {
		return fmt.Errorf("invalid tracing exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("tracing sample rate must be between 0 and 1")
	}

	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required when tracing exporter is otlp")
	}

	return nil
}

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, EnvironmentDevelopment, config.Environment)
	assert.False(t, config.IsProduction())

	// Server defaults
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, config.Server.IdleTimeout)
	assert.False(t, config.Server.TLSEnabled)

	// Storage defaults
	assert.Equal(t, StorageTypeMemory, config.Storage.Type)
	assert.Equal(t, "./data/links.json", config.Storage.Path)

	// Rate limit defaults
	assert.True(t, config.Security.RateLimit.Enabled)
	assert.Equal(t, 30, config.Security.RateLimit.Capacity)
	assert.Equal(t, time.Minute, config.Security.RateLimit.Window)
	assert.Equal(t, 5*time.Minute, config.Security.RateLimit.CleanupInterval)
	assert.Equal(t, 10*time.Minute, config.Security.RateLimit.StaleAfter)
	assert.Empty(t, config.Security.EncryptionKey)

	// Upstream defaults
	assert.Equal(t, DefaultUpstreamBaseURL, config.Upstream.BaseURL)
	assert.Equal(t, 10*time.Second, config.Upstream.Timeout)
	assert.Equal(t, 5.0, config.Upstream.RequestsPerSecond)
	assert.Equal(t, 10, config.Upstream.Burst)

	// Logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "stdout", config.Logging.Output)

	// Cache defaults
	assert.True(t, config.Cache.Enabled)
	assert.Equal(t, CacheTypeMemory, config.Cache.Type)
	assert.Equal(t, 5*time.Minute, config.Cache.TTL)
	assert.Equal(t, 1000, config.Cache.Memory.MaxSize)

	// Metrics defaults
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, MetricsExporterPrometheus, config.Metrics.Exporter)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, 9090, config.Metrics.Port)

	// Observability defaults
	assert.Equal(t, "voucherwatch", config.Observability.ServiceName)
	assert.False(t, config.Observability.Tracing.Enabled)
	assert.Equal(t, "stdout", config.Observability.Tracing.Exporter)
	assert.Equal(t, 1.0, config.Observability.Tracing.SampleRate)
}

func TestConfig_Validate(t *testing.T) {
	validKey := strings.Repeat("ab", 32)

	tests := []struct {
		name        string
		modify      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid default config",
			modify:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid environment",
			modify:      func(c *Config) { c.Environment = "staging" },
			expectError: true,
			errorMsg:    "invalid environment: staging",
		},
		{
			name:        "invalid server config",
			modify:      func(c *Config) { c.Server.Port = -1 },
			expectError: true,
			errorMsg:    "invalid server config",
		},
		{
			name:        "invalid storage config",
			modify:      func(c *Config) { c.Storage.Type = "invalid-type" },
			expectError: true,
			errorMsg:    "invalid storage config",
		},
		{
			name:        "invalid rate limit",
			modify:      func(c *Config) { c.Security.RateLimit.Capacity = 0 },
			expectError: true,
			errorMsg:    "invalid security config",
		},
		{
			name:        "production without encryption key",
			modify:      func(c *Config) { c.Environment = EnvironmentProduction },
			expectError: true,
			errorMsg:    "encryption key is required in production",
		},
		{
			name: "production with encryption key",
			modify: func(c *Config) {
				c.Environment = EnvironmentProduction
				c.Security.EncryptionKey = validKey
			},
			expectError: false,
		},
		{
			name:        "invalid upstream config",
			modify:      func(c *Config) { c.Upstream.BaseURL = "ftp://example.com" },
			expectError: true,
			errorMsg:    "invalid upstream config",
		},
		{
			name:        "invalid logging config",
			modify:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "invalid logging config",
		},
		{
			name:        "invalid cache config",
			modify:      func(c *Config) { c.Cache.Type = "memcached" },
			expectError: true,
			errorMsg:    "invalid cache config",
		},
		{
			name:        "invalid metrics config",
			modify:      func(c *Config) { c.Metrics.Exporter = "statsd" },
			expectError: true,
			errorMsg:    "invalid metrics config",
		},
		{
			name: "invalid observability config",
			modify: func(c *Config) {
				c.Observability.Tracing.Enabled = true
				c.Observability.Tracing.Exporter = "jaeger"
			},
			expectError: true,
			errorMsg:    "invalid observability config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.modify(config)

			err := config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      ServerConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      ServerConfig{Port: 8080, Host: "localhost", ReadTimeout: 30 * time.Second},
			expectError: false,
		},
		{
			name:        "port zero",
			config:      ServerConfig{Port: 0, Host: "localhost"},
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "port too high",
			config:      ServerConfig{Port: 70000, Host: "localhost"},
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "empty host",
			config:      ServerConfig{Port: 8080},
			expectError: true,
			errorMsg:    "host cannot be empty",
		},
		{
			name:        "negative read timeout",
			config:      ServerConfig{Port: 8080, Host: "localhost", ReadTimeout: -time.Second},
			expectError: true,
			errorMsg:    "read timeout cannot be negative",
		},
		{
			name:        "negative write timeout",
			config:      ServerConfig{Port: 8080, Host: "localhost", WriteTimeout: -time.Second},
			expectError: true,
			errorMsg:    "write timeout cannot be negative",
		},
		{
			name:        "negative idle timeout",
			config:      ServerConfig{Port: 8080, Host: "localhost", IdleTimeout: -time.Second},
			expectError: true,
			errorMsg:    "idle timeout cannot be negative",
		},
		{
			name:        "TLS without cert",
			config:      ServerConfig{Port: 8443, Host: "localhost", TLSEnabled: true, TLSKeyFile: "key.pem"},
			expectError: true,
			errorMsg:    "TLS cert file is required",
		},
		{
			name:        "TLS without key",
			config:      ServerConfig{Port: 8443, Host: "localhost", TLSEnabled: true, TLSCertFile: "cert.pem"},
			expectError: true,
			errorMsg:    "TLS key file is required",
		},
		{
			name: "TLS complete",
			config: ServerConfig{
				Port: 8443, Host: "localhost", TLSEnabled: true,
				TLSCertFile: "cert.pem", TLSKeyFile: "key.pem",
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStorageConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      StorageConfig
		expectError bool
		errorMsg    string
	}{
		{"memory", StorageConfig{Type: StorageTypeMemory}, false, ""},
		{"json with path", StorageConfig{Type: StorageTypeJSON, Path: "./links.json"}, false, ""},
		{"json without path", StorageConfig{Type: StorageTypeJSON}, true, "path is required for JSON storage"},
		{"sqlite with dsn", StorageConfig{Type: StorageTypeSQLite, Database: DatabaseConfig{DSN: "file:links.db"}}, false, ""},
		{"sqlite without dsn", StorageConfig{Type: StorageTypeSQLite}, true, "database DSN is required"},
		{"postgres without dsn", StorageConfig{Type: StorageTypePostgres}, true, "database DSN is required"},
		{"unknown type", StorageConfig{Type: "mongo"}, true, "invalid storage type: mongo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSecurityConfig_Validate(t *testing.T) {
	valid := RateLimitConfig{Enabled: true, Capacity: 30, Window: time.Minute}

	tests := []struct {
		name        string
		config      SecurityConfig
		expectError bool
		errorMsg    string
	}{
		{"valid", SecurityConfig{RateLimit: valid}, false, ""},
		{"disabled ignores zero values", SecurityConfig{RateLimit: RateLimitConfig{Enabled: false}}, false, ""},
		{"zero capacity", SecurityConfig{RateLimit: RateLimitConfig{Enabled: true, Window: time.Minute}}, true, "capacity must be positive"},
		{"zero window", SecurityConfig{RateLimit: RateLimitConfig{Enabled: true, Capacity: 30}}, true, "window must be positive"},
		{
			"negative cleanup",
			SecurityConfig{RateLimit: RateLimitConfig{Enabled: true, Capacity: 30, Window: time.Minute, CleanupInterval: -1}},
			true, "cleanup interval cannot be negative",
		},
		{
			"negative stale",
			SecurityConfig{RateLimit: RateLimitConfig{Enabled: true, Capacity: 30, Window: time.Minute, StaleAfter: -1}},
			true, "stale threshold cannot be negative",
		},
		{"short key", SecurityConfig{RateLimit: valid, EncryptionKey: "abcd"}, true, "encryption key must be 64 hex characters"},
		{"full key", SecurityConfig{RateLimit: valid, EncryptionKey: strings.Repeat("0", 64)}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpstreamConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      UpstreamConfig
		expectError bool
		errorMsg    string
	}{
		{"valid", UpstreamConfig{BaseURL: "https://api.example.com", RequestsPerSecond: 5, Burst: 10}, false, ""},
		{"pacing disabled", UpstreamConfig{BaseURL: "http://localhost:9000"}, false, ""},
		{"empty base URL", UpstreamConfig{}, true, "base URL cannot be empty"},
		{"no host", UpstreamConfig{BaseURL: "https://"}, true, "invalid upstream base URL"},
		{"bad scheme", UpstreamConfig{BaseURL: "ftp://example.com"}, true, "invalid upstream base URL"},
		{"negative timeout", UpstreamConfig{BaseURL: "https://api.example.com", Timeout: -time.Second}, true, "timeout cannot be negative"},
		{"negative rps", UpstreamConfig{BaseURL: "https://api.example.com", RequestsPerSecond: -1}, true, "requests per second cannot be negative"},
		{"zero burst", UpstreamConfig{BaseURL: "https://api.example.com", RequestsPerSecond: 1}, true, "burst must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      LoggingConfig
		expectError bool
		errorMsg    string
	}{
		{"valid json stdout", LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, false, ""},
		{"valid text stderr", LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}, false, ""},
		{"valid file", LoggingConfig{Level: "warn", Format: "json", Output: "file", FilePath: "/tmp/app.log"}, false, ""},
		{"invalid level", LoggingConfig{Level: "trace", Format: "json", Output: "stdout"}, true, "invalid log level: trace"},
		{"invalid format", LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}, true, "invalid log format: xml"},
		{"invalid output", LoggingConfig{Level: "info", Format: "json", Output: "syslog"}, true, "invalid log output: syslog"},
		{"file without path", LoggingConfig{Level: "info", Format: "json", Output: "file"}, true, "file path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCacheConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      CacheConfig
		expectError bool
		errorMsg    string
	}{
		{"disabled", CacheConfig{Enabled: false, Type: "anything"}, false, ""},
		{"memory", CacheConfig{Enabled: true, Type: CacheTypeMemory, TTL: time.Minute}, false, ""},
		{"redis", CacheConfig{Enabled: true, Type: CacheTypeRedis, Redis: RedisConfig{Addr: "localhost:6379"}}, false, ""},
		{"redis without addr", CacheConfig{Enabled: true, Type: CacheTypeRedis}, true, "Redis address is required"},
		{"invalid type", CacheConfig{Enabled: true, Type: "memcached"}, true, "invalid cache type: memcached"},
		{"negative ttl", CacheConfig{Enabled: true, Type: CacheTypeMemory, TTL: -time.Second}, true, "cache TTL cannot be negative"},
		{"negative max size", CacheConfig{Enabled: true, Type: CacheTypeMemory, Memory: MemoryConfig{MaxSize: -1}}, true, "max size cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      MetricsConfig
		expectError bool
		errorMsg    string
	}{
		{"disabled", MetricsConfig{Enabled: false}, false, ""},
		{"prometheus", MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus, Path: "/metrics", Port: 9090}, false, ""},
		{"stdout", MetricsConfig{Enabled: true, Exporter: MetricsExporterStdout, Interval: 30 * time.Second}, false, ""},
		{"prometheus without path", MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus, Port: 9090}, true, "metrics path cannot be empty"},
		{"prometheus bad port", MetricsConfig{Enabled: true, Exporter: MetricsExporterPrometheus, Path: "/metrics"}, true, "metrics port must be between"},
		{"stdout negative interval", MetricsConfig{Enabled: true, Exporter: MetricsExporterStdout, Interval: -1}, true, "interval cannot be negative"},
		{"unknown exporter", MetricsConfig{Enabled: true, Exporter: "statsd"}, true, "invalid metrics exporter: statsd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestObservabilityConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      ObservabilityConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:        "tracing disabled",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: false}},
			expectError: false,
		},
		{
			name: "valid stdout tracing",
			config: ObservabilityConfig{
				Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1.0},
			},
			expectError: false,
		},
		{
			name: "valid otlp tracing",
			config: ObservabilityConfig{
				Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 0.5, OTLPEndpoint: "localhost:4317"},
			},
			expectError: false,
		},
		{
			name: "invalid exporter",
			config: ObservabilityConfig{
				Tracing: TracingConfig{Enabled: true, Exporter: "invalid", SampleRate: 1.0},
			},
			expectError: true,
			errorMsg:    "invalid tracing exporter: invalid",
		},
		{
			name: "negative sample rate",
			config: ObservabilityConfig{
				Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: -0.1},
			},
			expectError: true,
			errorMsg:    "tracing sample rate must be between 0 and 1",
		},
		{
			name: "sample rate above 1",
			config: ObservabilityConfig{
				Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1.5},
			},
			expectError: true,
			errorMsg:    "tracing sample rate must be between 0 and 1",
		},
		{
			name: "otlp without endpoint",
			config: ObservabilityConfig{
				Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1.0},
			},
			expectError: true,
			errorMsg:    "OTLP endpoint is required when tracing exporter is otlp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

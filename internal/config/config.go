package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voucherwatch/internal/models"
	"voucherwatch/internal/secure"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VOUCHERWATCH_"

// DefaultEnvFile is read before the environment when present.
const DefaultEnvFile = ".env"

// SupportedVersions is the range of config schema versions this build reads.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// Load loads configuration from an optional .env file, the YAML file and
// environment variables, in that order of increasing precedence.
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	if err := loadDotEnv(envFilePath()); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	if err := checkVersion(config.Version); err != nil {
		return nil, err
	}

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := ensureEncryptionKey(config); err != nil {
		return nil, err
	}

	return config, nil
}

func envFilePath() string {
	if p := os.Getenv(EnvPrefix + "ENV_FILE"); p != "" {
		return p
	}
	return DefaultEnvFile
}

// loadDotEnv exports variables from path without overriding the real
// environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// checkVersion rejects config files written for an incompatible schema.
// An empty version is accepted.
func checkVersion(version string) error {
	if version == "" {
		return nil
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid config version %q: %w", version, err)
	}

	constraint, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return fmt.Errorf("invalid version constraint: %w", err)
	}

	if !constraint.Check(v) {
		return fmt.Errorf("unsupported config version %s (supported: %s)", version, SupportedVersions)
	}
	return nil
}

// ensureEncryptionKey fills a missing key outside production. Links sealed
// with an ephemeral key cannot be read after a restart.
func ensureEncryptionKey(config *models.Config) error {
	if config.Security.EncryptionKey != "" {
		return nil
	}
	if config.IsProduction() {
		return errors.New("encryption key is required in production")
	}

	key, err := secure.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate encryption key: %w", err)
	}
	config.Security.EncryptionKey = key

	slog.Warn("No encryption key configured; using an ephemeral key. Saved links will be unreadable after restart.",
		"environment", config.Environment)
	return nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func lookupEnv(name string) (string, bool) {
	v := os.Getenv(EnvPrefix + name)
	return v, v != ""
}

func setString(name string, dst *string) {
	if v, ok := lookupEnv(name); ok {
		*dst = v
	}
}

func setInt(name string, dst *int) {
	if v, ok := lookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(name string, dst *float64) {
	if v, ok := lookupEnv(name); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(name string, dst *bool) {
	if v, ok := lookupEnv(name); ok {
		*dst = strings.ToLower(v) == "true"
	}
}

func setDuration(name string, dst *time.Duration) {
	if v, ok := lookupEnv(name); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// loadFromEnvironment loads configuration from VOUCHERWATCH_* environment variables
func loadFromEnvironment(config *models.Config) {
	setString("ENVIRONMENT", &config.Environment)

	// Server configuration
	setInt("PORT", &config.Server.Port)
	setString("HOST", &config.Server.Host)
	setDuration("READ_TIMEOUT", &config.Server.ReadTimeout)
	setDuration("WRITE_TIMEOUT", &config.Server.WriteTimeout)
	setDuration("IDLE_TIMEOUT", &config.Server.IdleTimeout)
	setBool("TLS_ENABLED", &config.Server.TLSEnabled)
	setString("TLS_CERT_FILE", &config.Server.TLSCertFile)
	setString("TLS_KEY_FILE", &config.Server.TLSKeyFile)
	setBool("CORS_ENABLED", &config.Server.CORS.Enabled)
	if origins, ok := lookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		config.Server.CORS.AllowedOrigins = splitList(origins)
	}

	// Storage configuration
	setString("STORAGE_TYPE", &config.Storage.Type)
	setString("STORAGE_PATH", &config.Storage.Path)
	setString("DATABASE_DSN", &config.Storage.Database.DSN)
	setInt("DATABASE_MAX_OPEN_CONNS", &config.Storage.Database.MaxOpenConns)
	setInt("DATABASE_MAX_IDLE_CONNS", &config.Storage.Database.MaxIdleConns)
	setDuration("DATABASE_CONN_MAX_LIFETIME", &config.Storage.Database.ConnMaxLifetime)

	// Security configuration
	setString("ENCRYPTION_KEY", &config.Security.EncryptionKey)
	setBool("RATE_LIMIT_ENABLED", &config.Security.RateLimit.Enabled)
	setInt("RATE_LIMIT_CAPACITY", &config.Security.RateLimit.Capacity)
	setDuration("RATE_LIMIT_WINDOW", &config.Security.RateLimit.Window)
	setDuration("RATE_LIMIT_CLEANUP_INTERVAL", &config.Security.RateLimit.CleanupInterval)
	setDuration("RATE_LIMIT_STALE_AFTER", &config.Security.RateLimit.StaleAfter)

	// Upstream configuration
	setString("UPSTREAM_BASE_URL", &config.Upstream.BaseURL)
	setDuration("UPSTREAM_TIMEOUT", &config.Upstream.Timeout)
	setFloat("UPSTREAM_REQUESTS_PER_SECOND", &config.Upstream.RequestsPerSecond)
	setInt("UPSTREAM_BURST", &config.Upstream.Burst)
	setString("UPSTREAM_USER_AGENT", &config.Upstream.UserAgent)

	// Logging configuration
	setString("LOG_LEVEL", &config.Logging.Level)
	setString("LOG_FORMAT", &config.Logging.Format)
	setString("LOG_OUTPUT", &config.Logging.Output)
	setString("LOG_FILE_PATH", &config.Logging.FilePath)

	// Cache configuration
	setBool("CACHE_ENABLED", &config.Cache.Enabled)
	setString("CACHE_TYPE", &config.Cache.Type)
	setDuration("CACHE_TTL", &config.Cache.TTL)
	setString("REDIS_ADDR", &config.Cache.Redis.Addr)
	setString("REDIS_PASSWORD", &config.Cache.Redis.Password)
	setInt("REDIS_DB", &config.Cache.Redis.DB)
	setInt("REDIS_POOL_SIZE", &config.Cache.Redis.PoolSize)
	setString("REDIS_KEY_PREFIX", &config.Cache.Redis.KeyPrefix)
	setInt("MEMORY_CACHE_MAX_SIZE", &config.Cache.Memory.MaxSize)

	// Metrics configuration
	setBool("METRICS_ENABLED", &config.Metrics.Enabled)
	setString("METRICS_EXPORTER", &config.Metrics.Exporter)
	setString("METRICS_PATH", &config.Metrics.Path)
	setInt("METRICS_PORT", &config.Metrics.Port)
	setDuration("METRICS_INTERVAL", &config.Metrics.Interval)

	// Observability configuration
	setString("SERVICE_NAME", &config.Observability.ServiceName)
	setBool("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	setString("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	setFloat("TRACING_SAMPLE_RATE", &config.Observability.Tracing.SampleRate)
	setString("OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
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

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	config := models.NewDefaultConfig()
	config.Version = "1.0.0"
	config.Environment = models.EnvironmentProduction

	// Example persistent storage
	config.Storage.Type = models.StorageTypeSQLite
	config.Storage.Database.DSN = "./data/links.db"

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Operators supply the key out of band.
	data = append(data, []byte("# security.encryption_key: <64 hex characters, or set VOUCHERWATCH_ENCRYPTION_KEY>\n")...)

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Package config provides configuration management for Realm Steward.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
//
// Import Path: kc-steward.io/steward/internal/config
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Directory sources.
const (
	DirectorySourcePostgres = "postgres"
	DirectorySourceFile     = "file"
)

// Realm providers.
const (
	ProviderKeycloak = "keycloak"
	ProviderMock     = "mock"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Keycloak  KeycloakConfig  `mapstructure:"keycloak"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL connection settings for the cluster directory.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	// AutoMigrate applies the embedded schema migrations on startup.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// MigrateURL returns the DSN in the scheme expected by the golang-migrate pgx/v5 driver.
func (c DatabaseConfig) MigrateURL() string {
	dsn := c.DSN()
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// KeycloakConfig contains the service account used against every managed instance.
type KeycloakConfig struct {
	Provider     string        `mapstructure:"provider"` // keycloak or mock
	TokenRealm   string        `mapstructure:"token_realm"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
	PageSize     int           `mapstructure:"page_size"`
}

// DirectoryConfig selects where clusters and tags come from.
type DirectoryConfig struct {
	Source string `mapstructure:"source"` // postgres or file
	File   string `mapstructure:"file"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// SecurityConfig contains security-related settings.
// Missing secrets are generated on first boot.
type SecurityConfig struct {
	AuthEnabled         bool          `mapstructure:"auth_enabled"`
	SessionSecret       string        `mapstructure:"session_secret"`
	JWTIssuer           string        `mapstructure:"jwt_issuer"`
	JWTVerificationKeys []string      `mapstructure:"jwt_verification_keys"`
	TokenLifetime       time.Duration `mapstructure:"token_lifetime"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	IdPPoolSize     int `mapstructure:"idp_pool_size"`
}

// CORSConfig contains cross-origin settings for the web console.
// A "*" origin is ignored unless UnsafeAllowAllOrigins is set.
type CORSConfig struct {
	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	AllowCredentials      bool     `mapstructure:"allow_credentials"`
	UnsafeAllowAllOrigins bool     `mapstructure:"unsafe_allow_all_origins"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains realm health-check settings.
type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/realm-steward")

	// No prefix: nested keys map as keycloak.client_id -> KEYCLOAK_CLIENT_ID
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Security.SessionSecret == "" {
		return fmt.Errorf("security.session_secret must not be empty")
	}
	if len(c.Security.SessionSecret) < 32 {
		return fmt.Errorf("security.session_secret must be at least 32 characters")
	}

	switch c.Directory.Source {
	case DirectorySourcePostgres:
	case DirectorySourceFile:
		if c.Directory.File == "" {
			return fmt.Errorf("directory.file is required when directory.source is %q", DirectorySourceFile)
		}
	default:
		return fmt.Errorf("directory.source must be %q or %q, got %q",
			DirectorySourcePostgres, DirectorySourceFile, c.Directory.Source)
	}

	switch c.Keycloak.Provider {
	case ProviderKeycloak:
		if c.Keycloak.ClientID == "" || c.Keycloak.ClientSecret == "" {
			return fmt.Errorf("keycloak.client_id and keycloak.client_secret are required")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("keycloak.provider must be %q or %q, got %q",
			ProviderKeycloak, ProviderMock, c.Keycloak.Provider)
	}

	if c.Worker.GeneralPoolSize <= 0 || c.Worker.IdPPoolSize <= 0 {
		return fmt.Errorf("worker pool sizes must be positive")
	}
	return nil
}

// ensureSecrets generates a missing session secret.
func (c *Config) ensureSecrets() error {
	if c.Security.SessionSecret == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate session secret: %w", err)
		}
		c.Security.SessionSecret = secret
		logBootstrapWarn(
			"auto-generated session_secret; operator tokens will not survive a restart, set SECURITY_SESSION_SECRET",
			zap.Int("length", len(secret)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database. The URL default makes AutomaticEnv pick up DATABASE_URL.
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "steward")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "steward")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Keycloak
	v.SetDefault("keycloak.provider", ProviderKeycloak)
	v.SetDefault("keycloak.token_realm", "master")
	v.SetDefault("keycloak.client_id", "")
	v.SetDefault("keycloak.client_secret", "")
	v.SetDefault("keycloak.timeout", "30s")
	v.SetDefault("keycloak.page_size", 100)

	// Directory
	v.SetDefault("directory.source", DirectorySourcePostgres)
	v.SetDefault("directory.file", "")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Security
	v.SetDefault("security.auth_enabled", true)
	v.SetDefault("security.session_secret", "")
	v.SetDefault("security.jwt_issuer", "realm-steward")
	v.SetDefault("security.jwt_verification_keys", []string{})
	v.SetDefault("security.token_lifetime", "8h")

	// Worker Pool
	v.SetDefault("worker.general_pool_size", 50)
	v.SetDefault("worker.idp_pool_size", 32)

	// CORS
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.unsafe_allow_all_origins", false)

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Health
	v.SetDefault("health.interval", "1m")
}

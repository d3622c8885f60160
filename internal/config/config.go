// Package config loads configuration from environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fruitsalade/vaultbox/internal/logging"
	"github.com/fruitsalade/vaultbox/internal/quota"
)

const gib = 1 << 30

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string
	CORSOrigin  string
	WebAppDir   string

	// Logging
	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// TLS (optional, both must be set)
	TLSCertFile string
	TLSKeyFile  string

	// Storage
	BaseDir      string
	SettingsFile string
	Limits       quota.Limits

	// Vault
	JWTSecret          string
	JWTSecretGenerated bool
	TokenTTL           time.Duration
	BcryptCost         int
	ResetEnabled       bool
	AuthPerMinute      int

	WebDAVEnabled bool
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":3000"),
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
		WebAppDir:     envOr("WEBAPP_DIR", ""),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		LogFile:       envOr("LOG_FILE", ""),
		LogMaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: envInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 30),
		LogCompress:   envBool("LOG_COMPRESS", true),
		TLSCertFile:   envOr("TLS_CERT_FILE", ""),
		TLSKeyFile:    envOr("TLS_KEY_FILE", ""),
		BaseDir:       envOr("BASE_DIR", "./uploads"),
		SettingsFile:  envOr("SETTINGS_FILE", "settings.yaml"),
		Limits: quota.Limits{
			StorageLimit:  envInt64("STORAGE_LIMIT", gib),
			FileSizeLimit: envInt64("MAX_UPLOAD_SIZE", gib),
		},
		JWTSecret:     envOr("VAULT_JWT_SECRET", ""),
		TokenTTL:      envDuration("VAULT_TOKEN_TTL", 30*time.Minute),
		BcryptCost:    envInt("VAULT_BCRYPT_COST", bcrypt.DefaultCost),
		ResetEnabled:  envBool("VAULT_RESET_ENABLED", true),
		AuthPerMinute: envInt("VAULT_AUTH_PER_MINUTE", 10),
		WebDAVEnabled: envBool("WEBDAV_ENABLED", true),
	}
	// An explicitly empty METRICS_ADDR disables the metrics listener.
	if _, set := os.LookupEnv("METRICS_ADDR"); !set {
		cfg.MetricsAddr = ":9090"
	}

	if err := cfg.Limits.Validate(); err != nil {
		return nil, fmt.Errorf("STORAGE_LIMIT / MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("VAULT_BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("VAULT_TOKEN_TTL must be positive")
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return nil, fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate vault token secret: %w", err)
		}
		cfg.JWTSecret = secret
		cfg.JWTSecretGenerated = true
	}

	return cfg, nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:  c.LogLevel,
		Format: c.LogFormat,
		File: logging.FileConfig{
			Path:       c.LogFile,
			MaxSizeMB:  c.LogMaxSizeMB,
			MaxBackups: c.LogMaxBackups,
			MaxAgeDays: c.LogMaxAgeDays,
			Compress:   c.LogCompress,
		},
	}
}

// TLSEnabled reports whether both TLS files are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Package config provides environment-driven configuration for the
// tenant guard.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL Secret
	Port        string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string

	// Redis backs the tenant validation cache when set. Empty means the
	// process-local in-memory cache.
	RedisAddr     string
	RedisPassword Secret
	RedisDB       int

	EncryptionProvider string
	EncryptionKey      Secret
	VaultAddr          string
	VaultToken         Secret

	// Isolation pipeline settings.
	StrictMode            bool
	AllowSuperAdmin       bool
	AuditTrail            bool
	ExcludePaths          []string
	TenantIDParam         string
	MaxDepth              int
	ValidateTenantExists  bool
	ValidateTenantStatus  bool
	AllowedStatuses       []string
	AllowCacheBypass      bool
	CacheTTL              time.Duration
	PerformanceMonitoring bool

	// QuotaResources lists the resource types the forward-auth endpoint
	// will accept in the X-Resource-Type header. Empty disables quota
	// enforcement.
	QuotaResources []string

	// AuditStreamEnabled exposes the WebSocket audit feed.
	AuditStreamEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:           Secret(envOrDefault("DATABASE_URL", "")),
		Port:                  envOrDefault("PORT", "3040"),
		ListenHost:            envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:              envOrDefault("LOG_LEVEL", "info"),
		RedisAddr:             envOrDefault("REDIS_ADDR", ""),
		RedisPassword:         Secret(envOrDefault("REDIS_PASSWORD", "")),
		EncryptionProvider:    envOrDefault("ENCRYPTION_PROVIDER", "static"),
		EncryptionKey:         Secret(envOrDefault("ENCRYPTION_KEY", "")),
		VaultAddr:             envOrDefault("VAULT_ADDR", "http://127.0.0.1:8200"),
		VaultToken:            Secret(envOrDefault("VAULT_TOKEN", "")),
		StrictMode:            envBool("STRICT_MODE", false),
		AllowSuperAdmin:       envBool("ALLOW_SUPERADMIN", true),
		AuditTrail:            envBool("AUDIT_TRAIL", true),
		TenantIDParam:         envOrDefault("TENANT_ID_PARAM", "tenantId"),
		ValidateTenantExists:  envBool("VALIDATE_TENANT_EXISTS", true),
		ValidateTenantStatus:  envBool("VALIDATE_TENANT_STATUS", true),
		AllowCacheBypass:      envBool("ALLOW_CACHE_BYPASS", false),
		PerformanceMonitoring: envBool("PERFORMANCE_MONITORING", true),
		AuditStreamEnabled:    envBool("AUDIT_STREAM_ENABLED", true),
	}

	redisDB, err := strconv.Atoi(envOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, fmt.Errorf("REDIS_DB must be a non-negative integer")
	}
	cfg.RedisDB = redisDB

	maxDepth, err := strconv.Atoi(envOrDefault("MAX_DEPTH", "10"))
	if err != nil || maxDepth < 1 || maxDepth > 100 {
		return nil, fmt.Errorf("MAX_DEPTH must be an integer between 1 and 100")
	}
	cfg.MaxDepth = maxDepth

	ttl, err := time.ParseDuration(envOrDefault("CACHE_TTL", "5m"))
	if err != nil || ttl <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be a positive duration")
	}
	cfg.CacheTTL = ttl

	cfg.CORSOrigins = splitList(envOrDefault("CORS_ORIGINS", "http://localhost:3002"))
	cfg.ExcludePaths = splitList(envOrDefault("EXCLUDE_PATHS", "/api/v1/health,/api/v1/ready,/metrics"))
	cfg.AllowedStatuses = splitList(envOrDefault("ALLOWED_STATUSES", "active"))
	cfg.QuotaResources = splitList(envOrDefault("QUOTA_RESOURCES", "chatbots,messages,documents"))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func envOrDefault(key, fallback string) string {
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

	return v == "true" || v == "1"
}

// splitList splits a comma-separated value, trimming whitespace and
// dropping empty elements.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}

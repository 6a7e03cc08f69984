// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetEmailProvider() string
	GetBrevoAPIKey() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetSiteBaseURL() string
	GetTeamNotifyEmail() string
}

// NurtureConfig provides settings for the nurture dispatcher and its endpoint.
type NurtureConfig interface {
	GetSiteBaseURL() string
	GetCronSecret() string
	GetNurtureBatchSize() int
	GetNurtureJobTimeout() time.Duration
	GetNurtureClaimTTL() time.Duration
}

// TrackingConfig provides settings for the open/click tracking endpoints.
type TrackingConfig interface {
	GetSiteBaseURL() string
	GetTrackingWorkers() int
}

// AdminConfig provides the shared secret guarding the admin API.
type AdminConfig interface {
	GetAdminAPIKey() string
}

// RateLimitConfig provides settings for public submission throttling.
type RateLimitConfig interface {
	GetLeadRateLimitPerMinute() int
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and Redis.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetNurtureCronSpec() string
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketEmailArchive() string
	IsMinIOEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                     string
	HTTPAddr                string
	DatabaseURL             string
	CORSAllowAll            bool
	CORSOrigins             []string
	CORSAllowCreds          bool
	SiteBaseURL             string
	EmailEnabled            bool
	EmailProvider           string
	BrevoAPIKey             string
	SMTPHost                string
	SMTPPort                int
	SMTPUsername            string
	SMTPPassword            string
	EmailFromName           string
	EmailFromAddress        string
	TeamNotifyEmail         string
	CronSecret              string
	AdminAPIKey             string
	NurtureBatchSize        int
	NurtureJobTimeout       time.Duration
	NurtureClaimTTL         time.Duration
	NurtureCronSpec         string
	TrackingWorkers         int
	LeadRateLimitPerMinute  int
	RedisURL                string
	RedisTLSInsecure        bool
	AsynqQueueName          string
	AsynqConcurrency        int
	MinIOEndpoint           string
	MinIOAccessKey          string
	MinIOSecretKey          string
	MinIOUseSSL             bool
	MinioBucketEmailArchive string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetEmailProvider() string    { return c.EmailProvider }
func (c *Config) GetBrevoAPIKey() string      { return c.BrevoAPIKey }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetSiteBaseURL() string     { return c.SiteBaseURL }
func (c *Config) GetTeamNotifyEmail() string { return c.TeamNotifyEmail }

// NurtureConfig implementation
func (c *Config) GetCronSecret() string               { return c.CronSecret }
func (c *Config) GetNurtureBatchSize() int            { return c.NurtureBatchSize }
func (c *Config) GetNurtureJobTimeout() time.Duration { return c.NurtureJobTimeout }
func (c *Config) GetNurtureClaimTTL() time.Duration   { return c.NurtureClaimTTL }

// TrackingConfig implementation
func (c *Config) GetTrackingWorkers() int { return c.TrackingWorkers }

// AdminConfig implementation
func (c *Config) GetAdminAPIKey() string { return c.AdminAPIKey }

// RateLimitConfig implementation
func (c *Config) GetLeadRateLimitPerMinute() int { return c.LeadRateLimitPerMinute }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }
func (c *Config) GetNurtureCronSpec() string { return c.NurtureCronSpec }

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string  { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool      { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketEmailArchive() string {
	return c.MinioBucketEmailArchive
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")
	provider := strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "brevo")))

	cfg := &Config{
		Env:                     getEnv("APP_ENV", "development"),
		HTTPAddr:                getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		CORSAllowAll:            corsAllowAll,
		CORSOrigins:             corsOrigins,
		CORSAllowCreds:          strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "false"), "true"),
		SiteBaseURL:             strings.TrimRight(getEnv("SITE_BASE_URL", "https://studiotek.es"), "/"),
		EmailProvider:           provider,
		BrevoAPIKey:             getEnv("BREVO_API_KEY", ""),
		SMTPHost:                getEnv("SMTP_HOST", ""),
		SMTPPort:                mustInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUsername:            getEnv("SMTP_USERNAME", ""),
		SMTPPassword:            getEnv("SMTP_PASSWORD", ""),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "StudioTek"),
		EmailFromAddress:        getEnv("EMAIL_FROM_ADDRESS", ""),
		TeamNotifyEmail:         getEnv("TEAM_NOTIFY_EMAIL", ""),
		CronSecret:              getEnv("CRON_SECRET", ""),
		AdminAPIKey:             getEnv("ADMIN_API_KEY", ""),
		NurtureBatchSize:        mustInt(getEnv("NURTURE_BATCH_SIZE", "50"), 50),
		NurtureJobTimeout:       mustDuration(getEnv("NURTURE_JOB_TIMEOUT", "30s"), 30*time.Second),
		NurtureClaimTTL:         mustDuration(getEnv("NURTURE_CLAIM_TTL", "10m"), 10*time.Minute),
		NurtureCronSpec:         getEnv("NURTURE_CRON_SPEC", "*/15 * * * *"),
		TrackingWorkers:         mustInt(getEnv("TRACKING_WORKERS", "4"), 4),
		LeadRateLimitPerMinute:  mustInt(getEnv("LEAD_RATE_LIMIT_PER_MINUTE", "5"), 5),
		RedisURL:                getEnv("REDIS_URL", ""),
		RedisTLSInsecure:        strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:          getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:        mustInt(getEnv("ASYNQ_CONCURRENCY", "2"), 2),
		MinIOEndpoint:           getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:          getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:          getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:             strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketEmailArchive: getEnv("MINIO_BUCKET_EMAIL_ARCHIVE", "nurture-email-archive"),
	}

	switch provider {
	case "brevo":
		cfg.EmailEnabled = emailEnabled && cfg.BrevoAPIKey != ""
	case "smtp":
		cfg.EmailEnabled = emailEnabled && cfg.SMTPHost != ""
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be brevo or smtp, got %q", provider)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.NurtureBatchSize < 1 || cfg.NurtureBatchSize > maxNurtureBatchSize {
		return nil, fmt.Errorf("NURTURE_BATCH_SIZE must be between 1 and %d", maxNurtureBatchSize)
	}
	if cfg.NurtureClaimTTL <= cfg.NurtureJobTimeout {
		return nil, fmt.Errorf("NURTURE_CLAIM_TTL must be longer than NURTURE_JOB_TIMEOUT")
	}

	return cfg, nil
}

// maxNurtureBatchSize is the per-invocation job ceiling.
const maxNurtureBatchSize = 50

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func mustInt(value string, fallback int) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

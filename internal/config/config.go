// Package config centralizes environment-variable configuration for both
// cmd/api and cmd/worker, loaded through Viper the way every
// transfa-backend service does.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every configuration variable either binary needs. Fields
// specific to one binary are simply unused by the other.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DatabaseURL     string `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32  `mapstructure:"DB_MIN_CONNS"`
	DBMaxConnLifeMin int   `mapstructure:"DB_MAX_CONN_LIFETIME_MINUTES"`
	DBMaxConnIdleMin int   `mapstructure:"DB_MAX_CONN_IDLE_MINUTES"`

	RedisURL              string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix  string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RedisIdempotencyLockPrefix string `mapstructure:"REDIS_IDEMPOTENCY_LOCK_PREFIX"`

	RabbitMQURL      string `mapstructure:"RABBITMQ_URL"`
	JobEventsExchange string `mapstructure:"JOB_EVENTS_EXCHANGE"`

	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`
	ClerkJWKSURL   string `mapstructure:"CLERK_JWKS_URL"`

	// TenantAPIKeysRaw is a comma-separated tenant:key list, the stand-in
	// for the external auth layer's key store; the tenant middleware checks
	// it before any JWKS bearer token. Parsed into TenantAPIKeys after
	// Unmarshal.
	TenantAPIKeysRaw string `mapstructure:"TENANT_API_KEYS"`
	TenantAPIKeys    map[string]string `mapstructure:"-"`

	// TenantWebhookURLsRaw is a comma-separated tenant=url list, the
	// stand-in for a persisted per-tenant outbox configuration table.
	// Parsed into TenantWebhookURLs after Unmarshal.
	TenantWebhookURLsRaw string `mapstructure:"TENANT_WEBHOOK_URLS"`
	TenantWebhookURLs    map[string]string `mapstructure:"-"`

	SubmissionRateLimitPerMinute int `mapstructure:"SUBMISSION_RATE_LIMIT_PER_MINUTE"`

	WebhookSigningSecret string `mapstructure:"WEBHOOK_SIGNING_SECRET"`

	JobPollIntervalMS         int `mapstructure:"JOB_POLL_INTERVAL_MS"`
	JobMaxAttempts            int `mapstructure:"JOB_MAX_ATTEMPTS"`
	NotificationPollIntervalMS int `mapstructure:"NOTIFICATION_POLL_INTERVAL_MS"`
	NotificationMaxAttempts    int `mapstructure:"NOTIFICATION_MAX_ATTEMPTS"`

	SettlementLookbackHours int    `mapstructure:"SETTLEMENT_LOOKBACK_HOURS"`
	SettlementCronSchedule  string `mapstructure:"SETTLEMENT_CRON_SCHEDULE"`
	NotifierCronSchedule    string `mapstructure:"NOTIFIER_CRON_SCHEDULE"`

	StuckJobReclaimAfterMinutes int `mapstructure:"STUCK_JOB_RECLAIM_AFTER_MINUTES"`

	// RulesFile points the rule-runner worker mode at a declarative YAML
	// document of merchant redemption rules to upsert, the stand-in for
	// an admin UI over merchant_redemption_rules.
	RulesFile string `mapstructure:"RULES_FILE"`
}

// DBMaxConnLifetime and DBMaxConnIdle convert the minute-granularity
// config fields into durations, matching the shape internal/store.PoolConfig
// expects.
func (c Config) DBMaxConnLifetime() time.Duration {
	return time.Duration(c.DBMaxConnLifeMin) * time.Minute
}

func (c Config) DBMaxConnIdle() time.Duration {
	return time.Duration(c.DBMaxConnIdleMin) * time.Minute
}

func (c Config) JobPollInterval() time.Duration {
	return time.Duration(c.JobPollIntervalMS) * time.Millisecond
}

func (c Config) NotificationPollInterval() time.Duration {
	return time.Duration(c.NotificationPollIntervalMS) * time.Millisecond
}

func (c Config) SettlementLookback() time.Duration {
	return time.Duration(c.SettlementLookbackHours) * time.Hour
}

func (c Config) StuckJobReclaimAfter() time.Duration {
	return time.Duration(c.StuckJobReclaimAfterMinutes) * time.Minute
}

// LoadConfig reads configuration from an optional .env file at path,
// falling back to environment variables for everything else.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_MAX_CONNS", 20)
	viper.SetDefault("DB_MIN_CONNS", 2)
	viper.SetDefault("DB_MAX_CONN_LIFETIME_MINUTES", 30)
	viper.SetDefault("DB_MAX_CONN_IDLE_MINUTES", 5)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ledgerd:rate_limit")
	viper.SetDefault("REDIS_IDEMPOTENCY_LOCK_PREFIX", "ledgerd:idem_lock")
	viper.SetDefault("JOB_EVENTS_EXCHANGE", "ledgerd.job_events")
	viper.SetDefault("SUBMISSION_RATE_LIMIT_PER_MINUTE", 120)
	viper.SetDefault("JOB_POLL_INTERVAL_MS", 500)
	viper.SetDefault("JOB_MAX_ATTEMPTS", 8)
	viper.SetDefault("NOTIFICATION_POLL_INTERVAL_MS", 1000)
	viper.SetDefault("NOTIFICATION_MAX_ATTEMPTS", 10)
	viper.SetDefault("SETTLEMENT_LOOKBACK_HOURS", 24)
	viper.SetDefault("SETTLEMENT_CRON_SCHEDULE", "0 */15 * * * *")
	viper.SetDefault("NOTIFIER_CRON_SCHEDULE", "*/5 * * * * *")
	viper.SetDefault("STUCK_JOB_RECLAIM_AFTER_MINUTES", 15)

	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"DB_MAX_CONN_LIFETIME_MINUTES", "DB_MAX_CONN_IDLE_MINUTES",
		"REDIS_URL", "REDIS_RATE_LIMIT_PREFIX", "REDIS_IDEMPOTENCY_LOCK_PREFIX",
		"RABBITMQ_URL", "JOB_EVENTS_EXCHANGE",
		"INTERNAL_API_KEY", "CLERK_JWKS_URL", "TENANT_API_KEYS", "TENANT_WEBHOOK_URLS",
		"SUBMISSION_RATE_LIMIT_PER_MINUTE", "WEBHOOK_SIGNING_SECRET",
		"JOB_POLL_INTERVAL_MS", "JOB_MAX_ATTEMPTS",
		"NOTIFICATION_POLL_INTERVAL_MS", "NOTIFICATION_MAX_ATTEMPTS",
		"SETTLEMENT_LOOKBACK_HOURS", "SETTLEMENT_CRON_SCHEDULE", "NOTIFIER_CRON_SCHEDULE",
		"STUCK_JOB_RECLAIM_AFTER_MINUTES", "RULES_FILE",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.TenantAPIKeys = parseTenantAPIKeys(config.TenantAPIKeysRaw)
	config.TenantWebhookURLs = parseTenantWebhookURLs(config.TenantWebhookURLsRaw)

	if config.SubmissionRateLimitPerMinute <= 0 {
		config.SubmissionRateLimitPerMinute = 120
	}
	if config.JobMaxAttempts <= 0 {
		config.JobMaxAttempts = 8
	}
	if config.NotificationMaxAttempts <= 0 {
		config.NotificationMaxAttempts = 10
	}
	if config.SettlementLookbackHours <= 0 {
		config.SettlementLookbackHours = 24
	}
	if config.StuckJobReclaimAfterMinutes <= 0 {
		config.StuckJobReclaimAfterMinutes = 15
	}

	// WORKER_CONCURRENCY is accepted as a whole-number override for future
	// multi-goroutine worker loops; unset or invalid leaves the default of
	// one processing goroutine per table.
	if raw := strings.TrimSpace(os.Getenv("WORKER_CONCURRENCY")); raw != "" {
		if _, convErr := strconv.Atoi(raw); convErr != nil {
			log.Printf("level=warn component=config msg=\"invalid WORKER_CONCURRENCY\" value=%q err=%v", raw, convErr)
		}
	}

	return
}

// parseTenantAPIKeys parses a "tenant1:key1,tenant2:key2" list into a
// lookup map. Malformed entries are skipped and logged, not fatal.
func parseTenantAPIKeys(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Printf("level=warn component=config msg=\"skipping malformed TENANT_API_KEYS entry\" entry=%q", pair)
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out
}

// parseTenantWebhookURLs parses a "tenant1=url1,tenant2=url2" list. "="
// separates tenant from URL rather than ":" since a URL itself contains
// colons.
func parseTenantWebhookURLs(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Printf("level=warn component=config msg=\"skipping malformed TENANT_WEBHOOK_URLS entry\" entry=%q", pair)
			continue
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out
}

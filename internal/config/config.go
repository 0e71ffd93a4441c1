package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	SiteURL      string

	// AdminToken guards the moderation endpoints. Requests must present it
	// as a bearer token.
	AdminToken string

	// JWTSecret signs account session tokens.
	JWTSecret string

	Admission AdmissionConfig
	Mail      MailConfig
	Payments  PaymentsConfig
	Notify    NotifyConfig
	Geo       GeoConfig
}

// AdmissionConfig tunes the admission-control module.
type AdmissionConfig struct {
	// ReputationURL is the base URL of the IP reputation service. Empty
	// disables reputation lookups entirely.
	ReputationURL string
	ReputationKey string
	// ReputationTimeout bounds a single lookup; a timeout counts as a clean
	// result, never as a block.
	ReputationTimeout time.Duration

	// NotifyCooldown suppresses repeat VPN notifications for the same
	// (ip, action) pair.
	NotifyCooldown time.Duration

	// RedisURL switches the rate-limit window store to Redis so limits are
	// shared across instances. Empty keeps the per-process memory store.
	RedisURL string
}

// MailConfig holds the Microsoft Graph client-credential settings used for
// outbound transactional mail.
type MailConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	SenderEmail  string
}

// PaymentsConfig holds the hosted-checkout gateway settings.
type PaymentsConfig struct {
	SecretKey     string
	WebhookSecret string
}

// NotifyConfig holds chat-webhook settings for admin notifications.
type NotifyConfig struct {
	// WebhookURL accepts either a discord webhook URL or a shoutrrr URL.
	WebhookURL string
	// MentionID is prefixed to high-priority messages so the admin gets
	// pinged (e.g. "<@123456789>").
	MentionID string
}

// GeoConfig controls page-view geo enrichment.
type GeoConfig struct {
	// GeoLitePath points at a local MaxMind mmdb file. Empty falls back to
	// the HTTP lookup service.
	GeoLitePath string
	LookupURL   string
}

// Load reads env vars and falls back to defaults so the server can boot with
// zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:  getEnv("GATEHOUSE_ENV", "development"),
		HTTPPort:     getEnv("GATEHOUSE_HTTP_PORT", "8080"),
		DatabasePath: getEnv("GATEHOUSE_DB_PATH", filepath.Join("data", "gatehouse.db")),
		SiteURL:      strings.TrimSuffix(getEnv("SITE_URL", "https://mathi4s.com"), "/"),
		AdminToken:   os.Getenv("ADMIN_TOKEN"),
		JWTSecret:    getEnv("JWT_SECRET", "dev-only-secret"),
		Admission: AdmissionConfig{
			ReputationURL:     os.Getenv("REPUTATION_API_URL"),
			ReputationKey:     os.Getenv("REPUTATION_API_KEY"),
			ReputationTimeout: getDuration("REPUTATION_TIMEOUT_SECONDS", 4*time.Second),
			NotifyCooldown:    getDuration("VPN_NOTIFY_COOLDOWN_SECONDS", 15*time.Minute),
			RedisURL:          os.Getenv("REDIS_URL"),
		},
		Mail: MailConfig{
			TenantID:     os.Getenv("MICROSOFT_TENANT_ID"),
			ClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
			ClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
			SenderEmail:  getEnv("SENDER_EMAIL", "support@mathi4s.com"),
		},
		Payments: PaymentsConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Notify: NotifyConfig{
			WebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
			MentionID:  os.Getenv("DISCORD_MENTION_ID"),
		},
		Geo: GeoConfig{
			GeoLitePath: os.Getenv("GEOLITE_DB_PATH"),
			LookupURL:   getEnv("GEO_LOOKUP_URL", "http://ip-api.com/json"),
		},
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	secs, err := strconv.Atoi(val)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}

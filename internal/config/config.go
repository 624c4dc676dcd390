package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Source kinds.
const (
	SourceFile     = "file"
	SourceHTTP     = "http"
	SourceDrive    = "drive"
	SourcePostgres = "postgres"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr string
	BaseURL    string
	ViewsDir   string

	// TLS
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string

	// CORS
	CORSOrigins string // Comma-separated allowed origins, e.g. "https://example.com,https://app.example.com"

	// Rate limiting
	RateLimitMax int    // Requests per minute per client, 0 disables
	RedisURL     string // Shared limiter storage; empty keeps counters in memory

	// Dataset source
	SourceKind string // file, http, drive or postgres
	SourceRef  string // path, URL suffix, Drive file ID or snapshot name
	SourceURL  string // base URL for the http source

	// Database (postgres source and cmd/publish)
	DatabaseURL string

	// Google Drive
	DriveClientID     string
	DriveClientSecret string
	DriveRefreshToken string
	DriveAPIURL       string

	// Cache
	CacheTTL            time.Duration
	BatchSizeHint       int
	SortCheckLimit      int  // negative checks every record
	StrictSort          bool // reject datasets that fail the sortedness check
	ExpectedRecordCount int  // 0 disables the diagnostics check
	SuggestLimit        int
	SuggestMinLength    int
	SuggestCacheSize    int

	// Background jobs
	WarmOnStart  bool
	WarmInterval time.Duration // 0 disables
	WatchSource  bool          // file sources only

	// Dataset schema
	SchemaFile string

	// Site Branding
	SiteTitle   string // env: SITE_TITLE, default: "Client Lookup"
	SiteTagline string // env: SITE_TAGLINE, default: "Find a client by identification number"
	SiteFooter  string // env: SITE_FOOTER
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:         getEnv("ENV", "development"),
		ServerAddr:  getEnv("SERVER_ADDR", ":3000"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:3000"),
		ViewsDir:    getEnv("VIEWS_DIR", "./views"),
		TLSEnabled:  getEnv("TLS_ENABLED", "") != "",
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
		CORSOrigins: getEnv("CORS_ORIGINS", ""),

		RateLimitMax: getEnvInt("RATE_LIMIT_MAX", 120),
		RedisURL:     getEnv("REDIS_URL", ""),

		SourceKind: strings.ToLower(getEnv("SOURCE_KIND", SourceFile)),
		SourceRef:  getEnv("SOURCE_REF", "data/clients.csv"),
		SourceURL:  getEnv("SOURCE_URL", ""),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/clientlookup?sslmode=disable"),

		DriveClientID:     getEnv("DRIVE_CLIENT_ID", ""),
		DriveClientSecret: getEnv("DRIVE_CLIENT_SECRET", ""),
		DriveRefreshToken: getEnv("DRIVE_REFRESH_TOKEN", ""),
		DriveAPIURL:       getEnv("DRIVE_API_URL", ""),

		CacheTTL:            getEnvDuration("CACHE_TTL", time.Hour),
		BatchSizeHint:       getEnvInt("BATCH_SIZE_HINT", 5000),
		SortCheckLimit:      getEnvInt("SORT_CHECK_LIMIT", 1000),
		StrictSort:          getEnvBool("STRICT_SORT", false),
		ExpectedRecordCount: getEnvInt("EXPECTED_RECORD_COUNT", 434381),
		SuggestLimit:        getEnvInt("SUGGEST_LIMIT", 5),
		SuggestMinLength:    getEnvInt("SUGGEST_MIN_LENGTH", 3),
		SuggestCacheSize:    getEnvInt("SUGGEST_CACHE_SIZE", 512),

		WarmOnStart:  getEnvBool("WARM_ON_START", true),
		WarmInterval: getEnvDuration("WARM_INTERVAL", 0),
		WatchSource:  getEnvBool("WATCH_SOURCE", false),

		SchemaFile: getEnv("DATASET_SCHEMA_FILE", "dataset.yaml"),

		SiteTitle:   getEnv("SITE_TITLE", "Client Lookup"),
		SiteTagline: getEnv("SITE_TAGLINE", "Find a client by identification number"),
		SiteFooter:  getEnv("SITE_FOOTER", "Client Lookup - cached binary search over the client base"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

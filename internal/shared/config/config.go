package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultUpdateTTLHours       = 24
	defaultSweepConcurrency     = 8
	defaultReconcileConcurrency = 4
)

// Config holds application configuration.
type Config struct {
	Port                 string
	Env                  string
	DatabaseURL          string
	StagingDatabaseURL   string
	StagingCollection    string
	UpdateTTLHours       int
	BlobStoreType        string
	LocalStoreDir        string
	AWSRegion            string
	S3Bucket             string
	S3Prefix             string
	S3Endpoint           string
	S3AccessKeyID        string
	S3SecretAccessKey    string
	SSEKMSKeyID          string
	MediaContainer       string
	AuditContainer       string
	SweepConcurrency     int
	ReconcileConcurrency int
	ReconcileDryRun      bool
	SweepInterval        time.Duration
	ReconcileInterval    time.Duration
	Job                  string
	QueueURL             string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  env,
		DatabaseURL:          dbURL,
		StagingDatabaseURL:   getEnv("STAGING_DATABASE_URL", dbURL),
		StagingCollection:    getEnv("STAGING_COLLECTION", "updates"),
		UpdateTTLHours:       getEnvInt("UPDATE_TTL_HOURS", defaultUpdateTTLHours),
		BlobStoreType:        normalizeStoreType(getEnv("BLOB_STORE", "local")),
		LocalStoreDir:        getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:            getEnv("AWS_REGION", ""),
		S3Bucket:             getEnv("S3_BUCKET", ""),
		S3Prefix:             getEnv("S3_PREFIX", ""),
		S3Endpoint:           getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:        getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:    getEnv("S3_SECRET_ACCESS_KEY", ""),
		SSEKMSKeyID:          getEnv("SSE_KMS_KEY_ID", ""),
		MediaContainer:       getEnv("MEDIA_CONTAINER", "media"),
		AuditContainer:       getEnv("AUDIT_CONTAINER", "audit-reports"),
		SweepConcurrency:     getEnvInt("SWEEP_CONCURRENCY", defaultSweepConcurrency),
		ReconcileConcurrency: getEnvInt("RECONCILE_CONCURRENCY", defaultReconcileConcurrency),
		ReconcileDryRun:      getEnvBool("RECONCILE_DRY_RUN", false),
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		ReconcileInterval:    getEnvDuration("RECONCILE_INTERVAL", 24*time.Hour),
		Job:                  strings.ToLower(strings.TrimSpace(getEnv("JANITOR_JOB", ""))),
		QueueURL:             strings.TrimSpace(getEnv("RA_SQS_QUEUE_URL", "")),
	}
}

// UpdateTTLSeconds returns the staging inactivity window in seconds.
func (c Config) UpdateTTLSeconds() int {
	hours := c.UpdateTTLHours
	if hours <= 0 {
		hours = defaultUpdateTTLHours
	}
	return hours * 60 * 60
}

// IsDevLike reports whether the environment tolerates missing infrastructure.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config env %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config env %s invalid bool: %v", key, err)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config env %s invalid duration %q", key, raw)
		return def
	}
	return val
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev", "":
		return "dev"
	default:
		return strings.ToLower(strings.TrimSpace(raw))
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

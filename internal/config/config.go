package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string
	HTTPPort string

	DBDriver    string
	DatabaseURL string
	AutoMigrate bool

	RedisAddr       string
	SummaryCacheTTL time.Duration

	JWTIssuer     string
	JWTSigningKey string
	AccessTTL     time.Duration

	QueueBackend string
	QueueKey     string
	KafkaBrokers []string
	KafkaGroupID string

	CloudinaryURL    string
	CloudinaryFolder string
	MaxUploadBytes   int64

	RateLimitPerMin   int
	ReconcileSchedule string
	CORSOrigins       []string

	// Warnings collects env values that failed to parse and fell back to defaults.
	// The caller logs them once a logger exists.
	Warnings []string
}

// Load returns application config populated from environment variables with sensible defaults.
// Outside production a local .env file is loaded first; real env vars win.
func Load() App {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	var w []string
	cfg := App{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPPort:          getEnv("HTTP_PORT", "5000"),
		DBDriver:          getEnv("DB_DRIVER", "mysql"),
		DatabaseURL:       getEnv("DATABASE_URL", "nss:nss@tcp(localhost:3306)/nss_iitp?parseTime=true"),
		AutoMigrate:       boolEnv("DB_AUTO_MIGRATE", true, &w),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		SummaryCacheTTL:   durationEnv("SUMMARY_CACHE_TTL", 10*time.Minute, &w),
		JWTIssuer:         getEnv("JWT_ISSUER", "volunteer-ledger"),
		JWTSigningKey:     getEnv("JWT_SECRET", "dev-signing-secret-change"),
		AccessTTL:         durationEnv("ACCESS_TTL", 24*time.Hour, &w),
		QueueBackend:      getEnv("QUEUE_BACKEND", "memory"),
		QueueKey:          getEnv("QUEUE_KEY", "ledger.events"),
		KafkaBrokers:      listEnv("KAFKA_BROKERS", nil),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "ledger-worker"),
		CloudinaryURL:     getEnv("CLOUDINARY_URL", ""),
		CloudinaryFolder:  getEnv("CLOUDINARY_FOLDER", "nss/gallery"),
		MaxUploadBytes:    int64(intEnv("MAX_UPLOAD_MB", 50, &w)) << 20,
		RateLimitPerMin:   intEnv("RATE_LIMIT_PER_MIN", 120, &w),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1h"),
		CORSOrigins:       listEnv("CORS_ORIGINS", []string{"*"}),
	}
	cfg.Warnings = w
	return cfg
}

// IsProduction reports whether the app runs with production settings.
func (a App) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration, warnings *[]string) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			*warnings = append(*warnings, "invalid duration for "+key+", using "+fallback.String())
			return fallback
		}
		return d
	}
	return fallback
}

func boolEnv(key string, fallback bool, warnings *[]string) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			*warnings = append(*warnings, "invalid bool for "+key+", using "+strconv.FormatBool(fallback))
			return fallback
		}
		return b
	}
	return fallback
}

func intEnv(key string, fallback int, warnings *[]string) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			*warnings = append(*warnings, "invalid int for "+key+", using "+strconv.Itoa(fallback))
			return fallback
		}
		return n
	}
	return fallback
}

// listEnv splits a comma separated value, dropping blanks.
func listEnv(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

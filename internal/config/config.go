package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	Timezone    string

	OTLPEndpoint string

	DBType            string
	DBURL             string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	Archive   ArchiveConfig
	Redis     RedisConfig
	Upload    UploadConfig
	Dashboard DashboardConfig
	Metrics   MetricsPushConfig
}

type ArchiveConfig struct {
	Enabled         bool
	Bucket          string
	ProjectID       string
	CredentialsFile string
	EmulatorHost    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type UploadConfig struct {
	BatchSize        int
	MaxBytes         int64
	RateLimitEnabled bool
	RateLimitRate    float64
	RateLimitBurst   int
}

type DashboardConfig struct {
	AvailableYears []int
	FetchPageSize  int
	DetailLimit    int
	LongCycleDays  float64
	ViewSessionTTL time.Duration
}

type MetricsPushConfig struct {
	Enabled   bool
	Exporter  string
	Endpoint  string
	AuthToken string
	Job       string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "meseboard"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		Timezone:     getenv("APP_TIMEZONE", "Asia/Shanghai"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBURL:             strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", false),

		Archive: ArchiveConfig{
			Enabled:         getenvBool("ARCHIVE_ENABLED", true),
			Bucket:          getenv("ARCHIVE_BUCKET", DefaultArchiveBucket),
			ProjectID:       strings.TrimSpace(getenv("GCS_PROJECT_ID", "")),
			CredentialsFile: strings.TrimSpace(getenv("GCS_CREDENTIALS_FILE", "")),
			EmulatorHost:    strings.TrimSpace(getenv("STORAGE_EMULATOR_HOST", "")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       int(getenvInt64("REDIS_DB", 0)),
		},
		Upload: UploadConfig{
			BatchSize:        int(getenvInt64("INGEST_BATCH_SIZE", DefaultBatchSize)),
			MaxBytes:         getenvInt64("UPLOAD_MAX_BYTES", 32<<20),
			RateLimitEnabled: getenvBool("UPLOAD_RATE_LIMIT_ENABLED", false),
			RateLimitRate:    getenvFloat("UPLOAD_RATE_LIMIT_RATE", 0.2),
			RateLimitBurst:   int(getenvInt64("UPLOAD_RATE_LIMIT_BURST", 5)),
		},
		Dashboard: DashboardConfig{
			AvailableYears: parseYears(getenv("DASHBOARD_YEARS", "2024,2025,2026")),
			FetchPageSize:  int(getenvInt64("FETCH_PAGE_SIZE", DefaultFetchPageSize)),
			DetailLimit:    int(getenvInt64("DETAIL_ROW_LIMIT", 200)),
			LongCycleDays:  getenvFloat("LONG_CYCLE_DAYS", 20),
			ViewSessionTTL: time.Duration(getenvInt64("VIEW_SESSION_TTL_SECONDS", 1800)) * time.Second,
		},
		Metrics: MetricsPushConfig{
			Enabled:   getenvBool("METRICS_PUSH_ENABLED", false),
			Exporter:  strings.ToLower(getenv("METRICS_PUSH_EXPORTER", "pushgateway")),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
			Job:       getenv("METRICS_PUSH_JOB", "meseboard_ingest"),
		},
	}

	if cfg.Upload.BatchSize <= 0 {
		cfg.Upload.BatchSize = DefaultBatchSize
	}
	if cfg.Dashboard.FetchPageSize <= 0 {
		cfg.Dashboard.FetchPageSize = DefaultFetchPageSize
	}

	return cfg
}

const (
	DefaultArchiveBucket = "mese-data"
	DefaultBatchSize     = 100
	DefaultFetchPageSize = 1000
)

// Location resolves the configured timezone, falling back to UTC+8.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone)); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*60*60)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseYears(raw string) []int {
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		year, err := strconv.Atoi(p)
		if err != nil || year < 2000 {
			continue
		}
		out = append(out, year)
	}
	return out
}

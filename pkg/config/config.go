package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store         StoreConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	SLA           SLAConfig
	Priority      PriorityConfig
	Classifier    ClassifierConfig
	Evidence      EvidenceConfig
	Analytics     AnalyticsConfig
	Notifications NotificationsConfig
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver   string
	SeedDemo bool
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SLAConfig tunes the SLA monitor sweep and the policy table source.
type SLAConfig struct {
	MonitorEnabled bool
	SweepInterval  time.Duration
	WarningWindow  time.Duration
	DefaultBudget  time.Duration
	PolicyFile     string
}

// PriorityConfig holds the upvote thresholds for priority tiers.
type PriorityConfig struct {
	HighThreshold     int
	CriticalThreshold int
}

// ClassifierConfig points at the external image classification service.
type ClassifierConfig struct {
	Enabled bool
	URL     string
	Timeout time.Duration
}

// EvidenceConfig controls where uploaded evidence images are kept.
type EvidenceConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
}

// AnalyticsConfig governs cache behaviour for the admin dashboard.
type AnalyticsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NotificationsConfig tunes live notification delivery.
type NotificationsConfig struct {
	LiveDeliveryEnabled bool
	ChannelPrefix       string
	Workers             int
	MaxRetries          int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{
		Driver:   strings.ToLower(v.GetString("STORE_DRIVER")),
		SeedDemo: v.GetBool("STORE_SEED_DEMO"),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.SLA = SLAConfig{
		MonitorEnabled: v.GetBool("SLA_MONITOR_ENABLED"),
		SweepInterval:  parseDuration(v.GetString("SLA_SWEEP_INTERVAL"), time.Minute),
		WarningWindow:  parseDuration(v.GetString("SLA_WARNING_WINDOW"), 6*time.Hour),
		DefaultBudget:  parseDuration(v.GetString("SLA_DEFAULT_BUDGET"), 72*time.Hour),
		PolicyFile:     v.GetString("SLA_POLICY_FILE"),
	}

	cfg.Priority = PriorityConfig{
		HighThreshold:     v.GetInt("PRIORITY_HIGH_THRESHOLD"),
		CriticalThreshold: v.GetInt("PRIORITY_CRITICAL_THRESHOLD"),
	}

	cfg.Classifier = ClassifierConfig{
		Enabled: v.GetBool("CLASSIFIER_ENABLED"),
		URL:     v.GetString("CLASSIFIER_URL"),
		Timeout: parseDuration(v.GetString("CLASSIFIER_TIMEOUT"), 15*time.Second),
	}

	maxEvidenceSize := v.GetInt64("EVIDENCE_MAX_FILE_SIZE")
	if maxEvidenceSize <= 0 {
		maxEvidenceSize = 5 * 1024 * 1024
	}
	cfg.Evidence = EvidenceConfig{
		StorageDir:       v.GetString("EVIDENCE_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("EVIDENCE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("EVIDENCE_SIGNED_URL_TTL"), 7*24*time.Hour),
		MaxFileSizeBytes: maxEvidenceSize,
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled: v.GetBool("ANALYTICS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		LiveDeliveryEnabled: v.GetBool("NOTIFICATIONS_LIVE_DELIVERY"),
		ChannelPrefix:       v.GetString("NOTIFICATIONS_CHANNEL_PREFIX"),
		Workers:             v.GetInt("NOTIFICATIONS_WORKERS"),
		MaxRetries:          v.GetInt("NOTIFICATIONS_MAX_RETRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_DRIVER", StoreDriverMemory)
	v.SetDefault("STORE_SEED_DEMO", true)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "civic_issues")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "civic-issue-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SLA_MONITOR_ENABLED", true)
	v.SetDefault("SLA_SWEEP_INTERVAL", "60s")
	v.SetDefault("SLA_WARNING_WINDOW", "6h")
	v.SetDefault("SLA_DEFAULT_BUDGET", "72h")
	v.SetDefault("SLA_POLICY_FILE", "")

	v.SetDefault("PRIORITY_HIGH_THRESHOLD", 5)
	v.SetDefault("PRIORITY_CRITICAL_THRESHOLD", 10)

	v.SetDefault("CLASSIFIER_ENABLED", false)
	v.SetDefault("CLASSIFIER_URL", "http://localhost:5000/classify")
	v.SetDefault("CLASSIFIER_TIMEOUT", "15s")

	v.SetDefault("EVIDENCE_STORAGE_DIR", "./evidence")
	v.SetDefault("EVIDENCE_SIGNED_URL_SECRET", "dev_evidence_secret")
	v.SetDefault("EVIDENCE_SIGNED_URL_TTL", "168h")
	v.SetDefault("EVIDENCE_MAX_FILE_SIZE", 5*1024*1024)

	v.SetDefault("ANALYTICS_CACHE_ENABLED", false)
	v.SetDefault("ANALYTICS_CACHE_TTL", "5m")

	v.SetDefault("NOTIFICATIONS_LIVE_DELIVERY", false)
	v.SetDefault("NOTIFICATIONS_CHANNEL_PREFIX", "notifications")
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

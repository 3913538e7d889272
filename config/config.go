package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	AWS          AWSConfig
	Authz        AuthzConfig
	Provisioning ProvisioningConfig
	Webhook      WebhookConfig
	Recordings   RecordingsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/dispatcher?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the content bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ContentBucket        string
	PresignExpireMinutes int
}

// AuthzConfig points at the external authorization service.
type AuthzConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	RetryDelay time.Duration
	// Namespace is this service's agent id, set as the object namespace of relabelled requests.
	Namespace string
}

// ProvisioningConfig points at the conference and event services.
type ProvisioningConfig struct {
	ConferenceURL string
	EventURL      string
	Token         string
	Timeout       time.Duration
}

// WebhookConfig holds the shared secret transcoding callbacks must present.
type WebhookConfig struct {
	Secret string
}

// RecordingsConfig tunes the merged-segment cache.
type RecordingsConfig struct {
	SegmentCacheSize int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "dispatcher"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ContentBucket:        getEnv("AWS_S3_CONTENT_BUCKET", "dispatcher-content"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Authz: AuthzConfig{
			URL:        getEnv("AUTHZ_URL", "http://localhost:8081/api/v1/authz"),
			Token:      getEnv("AUTHZ_TOKEN", ""),
			Timeout:    getEnvDuration("AUTHZ_TIMEOUT", 5*time.Second),
			RetryDelay: getEnvDuration("AUTHZ_RETRY_DELAY", 100*time.Millisecond),
			Namespace:  getEnv("SERVICE_AGENT_ID", "dispatcher.svc.example.org"),
		},
		Provisioning: ProvisioningConfig{
			ConferenceURL: getEnv("CONFERENCE_URL", "http://localhost:8082/api/v1"),
			EventURL:      getEnv("EVENT_URL", "http://localhost:8083/api/v1"),
			Token:         getEnv("PROVISIONING_TOKEN", ""),
			Timeout:       getEnvDuration("PROVISIONING_TIMEOUT", 10*time.Second),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
		Recordings: RecordingsConfig{
			SegmentCacheSize: getEnvInt("SEGMENT_CACHE_SIZE", 1024),
		},
	}
	if cfg.Authz.RetryDelay < 0 {
		return nil, fmt.Errorf("AUTHZ_RETRY_DELAY must not be negative")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

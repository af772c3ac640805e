package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the complete service configuration, read from the environment
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	AWSRegion string

	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Tenancy  TenancyConfig
}

// RedisConfig configures the tenant cache
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// KafkaConfig configures the domain event publisher. An empty broker list
// disables publishing.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	WorkerCount int
	QueueSize   int
}

// JWTConfig configures session and refresh tokens
type JWTConfig struct {
	Secret                 string
	SecretID               string
	TokenExpiryMinutes     int
	RefreshTokenExpiryDays int
}

// TokenTTL returns the session token validity window
func (c JWTConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenExpiryMinutes) * time.Minute
}

// RefreshTokenTTL returns the refresh token validity window
func (c JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpiryDays) * 24 * time.Hour
}

// TenancyConfig configures the root tenant and per-tenant seeding
type TenancyConfig struct {
	HeaderName          string
	RootName            string
	RootAdminEmail      string
	AdminFirstName      string
	AdminLastName       string
	DefaultPassword     string
	ExpiryCheckSchedule string
	ConnectionCacheSize int
}

// Load reads .env (if present) and the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:      getEnv("ADMIN_SERVICE_PORT", "8003"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		AWSRegion: getEnv("AWS_REGION", "us-east-1"),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "school_admin_db"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("TENANT_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:       getEnv("KAFKA_TOPIC", "identity-events"),
			WorkerCount: getEnvInt("KAFKA_WORKERS", 4),
			QueueSize:   getEnvInt("KAFKA_QUEUE_SIZE", 1000),
		},
		JWT: JWTConfig{
			Secret:                 getEnv("JWT_SECRET", ""),
			SecretID:               getEnv("JWT_SECRET_ID", ""),
			TokenExpiryMinutes:     getEnvInt("JWT_TOKEN_EXPIRY_MINUTES", 60),
			RefreshTokenExpiryDays: getEnvInt("JWT_REFRESH_TOKEN_EXPIRY_DAYS", 7),
		},
		Tenancy: TenancyConfig{
			HeaderName:          getEnv("TENANT_HEADER", "tenant"),
			RootName:            getEnv("ROOT_TENANT_NAME", "Root"),
			RootAdminEmail:      getEnv("ROOT_ADMIN_EMAIL", "admin.root@abcschool.com"),
			AdminFirstName:      getEnv("ROOT_ADMIN_FIRST_NAME", "Root"),
			AdminLastName:       getEnv("ROOT_ADMIN_LAST_NAME", "Admin"),
			DefaultPassword:     getEnv("SEED_DEFAULT_PASSWORD", "P@ssw0rd@123"),
			ExpiryCheckSchedule: getEnv("TENANT_EXPIRY_SCHEDULE", "0 * * * *"),
			ConnectionCacheSize: getEnvInt("TENANT_CONNECTION_CACHE_SIZE", 32),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks settings that have no safe default
func (c *Config) Validate() error {
	if c.JWT.Secret == "" && c.JWT.SecretID == "" {
		return fmt.Errorf("JWT_SECRET or JWT_SECRET_ID must be set")
	}
	if c.JWT.Secret != "" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.JWT.TokenExpiryMinutes <= 0 {
		return fmt.Errorf("JWT_TOKEN_EXPIRY_MINUTES must be positive")
	}
	if c.JWT.RefreshTokenExpiryDays <= 0 {
		return fmt.Errorf("JWT_REFRESH_TOKEN_EXPIRY_DAYS must be positive")
	}
	if c.Tenancy.RootAdminEmail == "" {
		return fmt.Errorf("ROOT_ADMIN_EMAIL must be set")
	}
	return nil
}

// ConfigureLogging applies level and format to the standard logrus logger
func ConfigureLogging(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid integer %q, using default %d", value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid duration %q, using default %s", value, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

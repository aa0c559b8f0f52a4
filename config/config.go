// Package config loads application configuration from a .env file, the
// environment, and an optional workflow YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	// Application
	App AppConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// HTTP API
	HTTP HTTPConfig

	// Bearer token verification
	Auth AuthConfig

	// Uploaded document storage
	Storage StorageConfig

	// Notification broker
	Kafka KafkaConfig

	// Review workflow rules
	Workflow WorkflowConfig

	// Feature Flags
	Features *FeatureFlags

	// Observability
	Observability ObservabilityConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string
	Environment Environment
	Debug       bool
	Version     string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	QueryTimeout time.Duration

	// AutoMigrate applies pending migrations on startup.
	AutoMigrate bool
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	URL string

	Host     string
	Port     int
	Password string
	DB       int

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// EventsChannel is the pub/sub channel for workflow events.
	EventsChannel string

	Disabled bool
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	AllowedOrigins     []string
	RateLimitPerMinute int

	// MaxRequestBytes bounds request bodies, including multipart uploads.
	MaxRequestBytes int64
}

// AuthConfig holds bearer token verification settings.
// Tokens are issued by the platform's auth service.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// StorageDriver selects where uploaded documents land.
type StorageDriver string

const (
	StorageLocal      StorageDriver = "local"
	StorageCloudinary StorageDriver = "cloudinary"
)

// StorageConfig holds file storage settings.
type StorageConfig struct {
	Driver StorageDriver

	// Local driver
	LocalDir     string
	LocalBaseURL string

	// Cloudinary driver
	CloudinaryURL    string
	CloudinaryFolder string

	Timeout time.Duration
}

// KafkaConfig holds notification publisher settings.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
	UseTLS   bool

	WriteTimeout time.Duration
	Disabled     bool
}

// WorkflowConfig holds review workflow rules. Values come from the
// environment and may be overridden by the YAML file at WORKFLOW_CONFIG_FILE.
type WorkflowConfig struct {
	RequiredDocuments   []string `yaml:"required_documents"`
	AllowedContentTypes []string `yaml:"allowed_content_types"`
	MaxFileBytes        int64    `yaml:"max_file_bytes"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, console

	MetricsEnabled bool
}

// DefaultAllowedContentTypes are the MIME types accepted for document uploads.
var DefaultAllowedContentTypes = []string{
	"image/png",
	"image/jpg",
	"image/jpeg",
	"image/webp",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DefaultMaxFileBytes is the per-file upload limit (3 MiB).
const DefaultMaxFileBytes int64 = 3 * 1024 * 1024

// Load loads configuration from .env (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{}

	cfg.App = loadAppConfig()
	cfg.Database = loadDatabaseConfig()
	cfg.Redis = loadRedisConfig()
	cfg.HTTP = loadHTTPConfig()
	cfg.Auth = loadAuthConfig()
	cfg.Storage = loadStorageConfig()
	cfg.Kafka = loadKafkaConfig()

	var err error
	cfg.Workflow, err = loadWorkflowConfig()
	if err != nil {
		return nil, fmt.Errorf("workflow config: %w", err)
	}

	cfg.Features = LoadFeatureFlags()
	cfg.Observability = loadObservabilityConfig()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func loadAppConfig() AppConfig {
	env := Environment(getEnv("APP_ENV", "development"))

	return AppConfig{
		Name:            getEnv("APP_NAME", "admissions-hub"),
		Environment:     env,
		Debug:           env == EnvDevelopment || getEnvBool("APP_DEBUG", false),
		Version:         getEnv("APP_VERSION", "0.1.0"),
		ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	url := getEnv("DATABASE_URL", "")
	if url == "" {
		host := getEnv("DB_HOST", "")
		port := getEnv("DB_PORT", "5432")
		user := getEnv("DB_USER", "")
		pass := getEnv("DB_PASSWORD", "")
		name := getEnv("DB_NAME", "admissions")
		sslmode := getEnv("DB_SSLMODE", "require")

		if host != "" && user != "" {
			url = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
				user, pass, host, port, name, sslmode)
		}
	}

	return DatabaseConfig{
		URL:             url,
		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		QueryTimeout:    getEnvDuration("DB_QUERY_TIMEOUT", 10*time.Second),
		AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", true),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:           getEnv("REDIS_URL", ""),
		Host:          getEnv("REDIS_HOST", "localhost"),
		Port:          getEnvInt("REDIS_PORT", 6379),
		Password:      getEnv("REDIS_PASSWORD", ""),
		DB:            getEnvInt("REDIS_DB", 0),
		PoolSize:      getEnvInt("REDIS_POOL_SIZE", 10),
		MinIdleConns:  getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:   getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:   getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout:  getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "admissions-hub:events"),
		Disabled:      getEnvBool("REDIS_DISABLED", false),
	}
}

func loadHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:               getEnv("HTTP_HOST", "0.0.0.0"),
		Port:               getEnvInt("HTTP_PORT", 8080),
		ReadTimeout:        getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:        getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		AllowedOrigins:     getEnvStringSlice("HTTP_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitPerMinute: getEnvInt("HTTP_RATE_LIMIT_PER_MINUTE", 120),
		MaxRequestBytes:    getEnvInt64("HTTP_MAX_REQUEST_BYTES", 20*1024*1024),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: getEnv("JWT_SECRET", ""),
		Issuer:    getEnv("JWT_ISSUER", ""),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Driver:           StorageDriver(getEnv("STORAGE_DRIVER", string(StorageLocal))),
		LocalDir:         getEnv("STORAGE_LOCAL_DIR", "./uploads"),
		LocalBaseURL:     getEnv("STORAGE_LOCAL_BASE_URL", "/uploads"),
		CloudinaryURL:    getEnv("CLOUDINARY_URL", ""),
		CloudinaryFolder: getEnv("CLOUDINARY_FOLDER", "admissions/documents"),
		Timeout:          getEnvDuration("STORAGE_TIMEOUT", 20*time.Second),
	}
}

func loadKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      getEnvStringSlice("KAFKA_BROKERS", nil),
		Topic:        getEnv("KAFKA_NOTIFICATIONS_TOPIC", "application-notifications"),
		Username:     getEnv("KAFKA_USERNAME", ""),
		Password:     getEnv("KAFKA_PASSWORD", ""),
		UseTLS:       getEnvBool("KAFKA_TLS", false),
		WriteTimeout: getEnvDuration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
		Disabled:     getEnvBool("KAFKA_DISABLED", false),
	}
}

func loadWorkflowConfig() (WorkflowConfig, error) {
	cfg := WorkflowConfig{
		RequiredDocuments:   getEnvStringSlice("WORKFLOW_REQUIRED_DOCUMENTS", []string{"transcript", "resume_cv"}),
		AllowedContentTypes: getEnvStringSlice("WORKFLOW_ALLOWED_CONTENT_TYPES", DefaultAllowedContentTypes),
		MaxFileBytes:        getEnvInt64("WORKFLOW_MAX_FILE_BYTES", DefaultMaxFileBytes),
	}

	if path := getEnv("WORKFLOW_CONFIG_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		if err := cfg.mergeYAML(data); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	return cfg, nil
}

// mergeYAML overrides fields present in the YAML document.
func (w *WorkflowConfig) mergeYAML(data []byte) error {
	var override WorkflowConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return err
	}
	if override.RequiredDocuments != nil {
		w.RequiredDocuments = override.RequiredDocuments
	}
	if len(override.AllowedContentTypes) > 0 {
		w.AllowedContentTypes = override.AllowedContentTypes
	}
	if override.MaxFileBytes > 0 {
		w.MaxFileBytes = override.MaxFileBytes
	}
	return nil
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Auth.JWTSecret == "" {
		errs = append(errs, "JWT_SECRET is required")
	}

	// Database URL is required outside development
	if c.App.Environment == EnvProduction && c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required in production")
	}

	switch c.Storage.Driver {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			errs = append(errs, "STORAGE_LOCAL_DIR is required for the local driver")
		}
	case StorageCloudinary:
		if c.Storage.CloudinaryURL == "" {
			errs = append(errs, "CLOUDINARY_URL is required for the cloudinary driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_DRIVER %q is not supported", c.Storage.Driver))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, "HTTP_PORT must be 1-65535")
	}

	if c.Workflow.MaxFileBytes <= 0 {
		errs = append(errs, "WORKFLOW_MAX_FILE_BYTES must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}

// KafkaEnabled reports whether notifications should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return !c.Kafka.Disabled && len(c.Kafka.Brokers) > 0
}

// --- Helper functions for environment variable parsing ---

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}

	parts := strings.Split(val, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	OpenAI   OpenAIConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Pipeline PipelineConfig
	OTEL     OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OpenAIConfig holds generative backend configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RequestTimeout time.Duration
	RateLimitRPM   int
	RateLimitBurst int
}

// StorageConfig holds blob storage configuration
type StorageConfig struct {
	Provider        string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

// QueueConfig holds background task queue configuration
type QueueConfig struct {
	Name        string
	Concurrency int
	MaxRetry    int
	TaskTimeout time.Duration

	// InlineWorker runs the queue worker inside the API process.
	InlineWorker bool
}

// PipelineConfig holds document intelligence pipeline settings
type PipelineConfig struct {
	ClassificationPrefixChars int
	SummaryInputChars         int
	AnalyzeTimeout            time.Duration
	ReportTimeout             time.Duration
	TextCacheTTL              time.Duration
	MaxUploadBytes            int64
	AllowedExtensions         []string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "production"),

			AllowedOrigins: getEnvAsStrings("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "medical_records"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("AI_API_KEY", ""),
			Model:          getEnv("AI_MODEL", "gpt-4o-mini"),
			BaseURL:        getEnv("AI_BASE_URL", ""),
			RequestTimeout: getEnvAsDuration("AI_REQUEST_TIMEOUT", 45*time.Second),
			RateLimitRPM:   getEnvAsInt("AI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("AI_RATE_LIMIT_BURST", 5),
		},
		Storage: StorageConfig{
			Provider:        getEnv("STORAGE_PROVIDER", "s3"),
			Bucket:          getEnv("AWS_BUCKET_NAME", ""),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			PresignTTL:      getEnvAsDuration("STORAGE_PRESIGN_TTL", time.Hour),
		},
		Queue: QueueConfig{
			Name:        getEnv("QUEUE_NAME", "documents"),
			Concurrency: getEnvAsInt("QUEUE_CONCURRENCY", 4),
			MaxRetry:    getEnvAsInt("QUEUE_MAX_RETRY", 3),
			TaskTimeout: getEnvAsDuration("QUEUE_TASK_TIMEOUT", 3*time.Minute),

			InlineWorker: getEnvAsBool("QUEUE_INLINE_WORKER", false),
		},
		Pipeline: PipelineConfig{
			ClassificationPrefixChars: getEnvAsInt("PIPELINE_CLASSIFY_PREFIX_CHARS", 1000),
			SummaryInputChars:         getEnvAsInt("PIPELINE_SUMMARY_INPUT_CHARS", 3000),
			AnalyzeTimeout:            getEnvAsDuration("PIPELINE_ANALYZE_TIMEOUT", 60*time.Second),
			ReportTimeout:             getEnvAsDuration("PIPELINE_REPORT_TIMEOUT", 120*time.Second),
			TextCacheTTL:              getEnvAsDuration("PIPELINE_TEXT_CACHE_TTL", 15*time.Minute),
			MaxUploadBytes:            int64(getEnvAsInt("MAX_CONTENT_LENGTH", 16*1024*1024)),
			AllowedExtensions:         getEnvAsExtensions("UPLOAD_EXTENSIONS", []string{".pdf", ".txt"}),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "medical-records"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if cfg.Storage.Provider != "s3" && cfg.Storage.Provider != "memory" {
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Storage.Provider)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsAllowedExtension reports whether ext (with leading dot) may be uploaded.
func (c *PipelineConfig) IsAllowedExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("30s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsStrings(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvAsExtensions reads a list of file extensions, lower-cased with a leading dot.
func getEnvAsExtensions(key string, defaultValue []string) []string {
	parts := getEnvAsStrings(key, nil)
	if len(parts) == 0 {
		return defaultValue
	}
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(part)
		if !strings.HasPrefix(part, ".") {
			part = "." + part
		}
		out = append(out, part)
	}
	return out
}

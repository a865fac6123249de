package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Storage    StorageConfig
	Tracing    TracingConfig `mapstructure:"tracing"`
	Redis      RedisConfig
	AI         AIConfig
	Recognizer RecognizerConfig `mapstructure:"recognizer"`
	Gesture    GestureConfig    `mapstructure:"gesture"`
	GCP        GCPConfig        `mapstructure:"gcp"`
	Quiz       QuizConfig       `mapstructure:"quiz"`
	Report     ReportConfig     `mapstructure:"report"`
	Log        LogConfig        `mapstructure:"log"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

// AIConfig points at an OpenAI compatible chat completions endpoint that
// supports json_schema response formats and audio input.
type AIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

const (
	RecognizerHTTP     = "http"
	RecognizerGCP      = "gcp"
	RecognizerDisabled = "disabled"
)

type RecognizerConfig struct {
	Kind string `mapstructure:"kind"`
	URL  string `mapstructure:"url"`
	// Required fails an answer when no local transcript is available instead of
	// continuing with the generated transcript alone.
	Required       bool   `mapstructure:"required"`
	LanguageCode   string `mapstructure:"language_code"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c RecognizerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

const (
	ExtractorGCP      = "gcp"
	ExtractorDisabled = "disabled"
)

type GestureConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Extractor   string `mapstructure:"extractor"`
	ProfilePath string `mapstructure:"profile_path"`
	Workers     int    `mapstructure:"workers"`
	MaxFrames   int    `mapstructure:"max_frames"`
}

type GCPConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`
}

type QuizConfig struct {
	QuestionCount int `mapstructure:"question_count"`
}

type ReportConfig struct {
	TempDir string `mapstructure:"temp_dir"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type ServerConfig struct {
	Name        string
	Port        string
	Mode        string
	MaxUploadMB int `mapstructure:"max_upload_mb"`
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
	// Path is the sqlite file, or a DSN such as "file::memory:?cache=shared".
	Path         string
	MaxOpenConns int `mapstructure:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
	StorageGCS   = "gcs"
)

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "commsense")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_mb", 200)

	v.SetDefault("database.driver", DriverMySQL)
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "commsense.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("jwt.expire_hours", 48)

	v.SetDefault("storage.type", StorageLocal)
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.public_base_url", "/uploads")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("ai.timeout_seconds", 120)

	v.SetDefault("recognizer.kind", RecognizerHTTP)
	v.SetDefault("recognizer.url", "http://localhost:8001")
	v.SetDefault("recognizer.language_code", "en-US")
	v.SetDefault("recognizer.timeout_seconds", 90)

	v.SetDefault("gesture.enabled", true)
	v.SetDefault("gesture.extractor", ExtractorGCP)
	v.SetDefault("gesture.profile_path", "configs/analysis_profile.yaml")
	v.SetDefault("gesture.workers", 4)
	v.SetDefault("gesture.max_frames", 300)

	v.SetDefault("quiz.question_count", 5)

	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("rate_limit.max_requests", 120)
	v.SetDefault("rate_limit.window_minutes", 1)
}

// LoadConfig reads config.yaml from path. A .env file in the working
// directory, if any, is loaded into the environment first.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COMMSENSE")
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")
	v.BindEnv("database.path", "DATABASE_PATH")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "SERVER_PORT")

	// AI
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")

	// Recognizer
	v.BindEnv("recognizer.kind", "RECOGNIZER_KIND")
	v.BindEnv("recognizer.url", "RECOGNIZER_URL")
	v.BindEnv("recognizer.required", "RECOGNIZER_REQUIRED")

	// Gesture
	v.BindEnv("gesture.enabled", "GESTURE_ENABLED")
	v.BindEnv("gesture.extractor", "GESTURE_EXTRACTOR")

	// GCP
	v.BindEnv("gcp.project_id", "GCP_PROJECT_ID")
	v.BindEnv("gcp.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")
	v.BindEnv("gcp.credentials_json", "GCP_CREDENTIALS_JSON")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")
	v.BindEnv("storage.gcs_bucket", "GCS_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == StorageLocal {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("%w: JWT secret is too short (%d chars), must be at least 32 characters in release mode", ErrInvalidConfig, len(c.JWT.Secret))
	}

	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	switch c.Storage.Type {
	case StorageLocal, StorageMinio, StorageOSS, StorageGCS:
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidConfig, c.Storage.Type)
	}

	switch c.Recognizer.Kind {
	case RecognizerHTTP, RecognizerGCP:
	case RecognizerDisabled:
		if c.Recognizer.Required {
			return fmt.Errorf("%w: recognizer is required but disabled", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown recognizer kind %q", ErrInvalidConfig, c.Recognizer.Kind)
	}

	switch c.Gesture.Extractor {
	case ExtractorGCP, ExtractorDisabled:
	default:
		return fmt.Errorf("%w: unknown gesture extractor %q", ErrInvalidConfig, c.Gesture.Extractor)
	}
	if c.Gesture.Workers < 1 || c.Gesture.Workers > 32 {
		return fmt.Errorf("%w: gesture workers must be between 1 and 32, got %d", ErrInvalidConfig, c.Gesture.Workers)
	}
	if c.Gesture.MaxFrames < 1 {
		return fmt.Errorf("%w: gesture max_frames must be positive", ErrInvalidConfig)
	}

	if c.Quiz.QuestionCount < 1 || c.Quiz.QuestionCount > 10 {
		return fmt.Errorf("%w: quiz question_count must be between 1 and 10, got %d", ErrInvalidConfig, c.Quiz.QuestionCount)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alien2112/safelines-sub000/internal/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultMongoURI = "mongodb://localhost:27017"

// Config holds application configuration
type Config struct {
	Server      ServerConfig
	MongoDB     MongoDBConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	Storage     StorageConfig
	Log         LogConfig
	Honeybadger HoneybadgerConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	CORSOrigins     string
}

// Development reports whether internal error details may be returned to clients.
func (s ServerConfig) Development() bool {
	return strings.EqualFold(s.Environment, "development")
}

type MongoDBConfig struct {
	URI         string
	Database    string
	Timeout     time.Duration
	ImageBucket string
	// URIFromDefault is set when MONGODB_URI was not provided.
	URIFromDefault bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// CacheConfig holds the Cache-Control tiers for public responses.
type CacheConfig struct {
	BrowserMaxAge        time.Duration
	SharedMaxAge         time.Duration
	StaleWhileRevalidate time.Duration
	ImageMaxAge          time.Duration
}

type StorageConfig struct {
	Backend        string // gridfs | minio | memory
	MaxUploadBytes int64
	MinIO          storage.MinIOConfig
}

type LogConfig struct {
	Level string
}

type HoneybadgerConfig struct {
	APIKey string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5001")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "production")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 0)
	v.SetDefault("SERVER_IDLE_TIMEOUT", 120)
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 15)
	v.SetDefault("SERVER_REQUEST_TIMEOUT", 15)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("MONGODB_DATABASE", "website")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("MONGODB_IMAGE_BUCKET", "images")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("CACHE_BROWSER_MAX_AGE", 60)
	v.SetDefault("CACHE_SHARED_MAX_AGE", 300)
	v.SetDefault("CACHE_STALE_WHILE_REVALIDATE", 600)
	v.SetDefault("CACHE_IMAGE_MAX_AGE", 31536000)
	v.SetDefault("STORAGE_BACKEND", "gridfs")
	v.SetDefault("STORAGE_MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("MINIO_BUCKET", "website-images")
	v.SetDefault("LOG_LEVEL", "info")

	seconds := func(key string) time.Duration { return time.Duration(v.GetInt(key)) * time.Second }

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			Host:            v.GetString("SERVER_HOST"),
			Environment:     v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:     seconds("SERVER_READ_TIMEOUT"),
			WriteTimeout:    seconds("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     seconds("SERVER_IDLE_TIMEOUT"),
			ShutdownTimeout: seconds("SERVER_SHUTDOWN_TIMEOUT"),
			RequestTimeout:  seconds("SERVER_REQUEST_TIMEOUT"),
			CORSOrigins:     v.GetString("CORS_ORIGINS"),
		},
		MongoDB: MongoDBConfig{
			URI:         v.GetString("MONGODB_URI"),
			Database:    v.GetString("MONGODB_DATABASE"),
			Timeout:     seconds("MONGODB_TIMEOUT"),
			ImageBucket: v.GetString("MONGODB_IMAGE_BUCKET"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Cache: CacheConfig{
			BrowserMaxAge:        seconds("CACHE_BROWSER_MAX_AGE"),
			SharedMaxAge:         seconds("CACHE_SHARED_MAX_AGE"),
			StaleWhileRevalidate: seconds("CACHE_STALE_WHILE_REVALIDATE"),
			ImageMaxAge:          seconds("CACHE_IMAGE_MAX_AGE"),
		},
		Storage: StorageConfig{
			Backend:        strings.ToLower(v.GetString("STORAGE_BACKEND")),
			MaxUploadBytes: v.GetInt64("STORAGE_MAX_UPLOAD_BYTES"),
			MinIO: storage.MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: os.Getenv("MINIO_SECRET_KEY"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
				Bucket:    v.GetString("MINIO_BUCKET"),
			},
		},
		Log:         LogConfig{Level: v.GetString("LOG_LEVEL")},
		Honeybadger: HoneybadgerConfig{APIKey: os.Getenv("HONEYBADGER_API_KEY")},
	}

	if cfg.MongoDB.URI == "" {
		cfg.MongoDB.URI = defaultMongoURI
		cfg.MongoDB.URIFromDefault = true
	}

	switch cfg.Storage.Backend {
	case storage.BackendGridFS, storage.BackendMinIO, storage.BackendMemory:
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == storage.BackendMinIO && cfg.Storage.MinIO.Endpoint == "" {
		return nil, fmt.Errorf("STORAGE_BACKEND=minio requires MINIO_ENDPOINT")
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("STORAGE_MAX_UPLOAD_BYTES must be positive")
	}

	return cfg, nil
}

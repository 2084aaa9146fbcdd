package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Remote    RemoteConfig
	Poll      PollConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Carousel  CarouselConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// RemoteConfig points at the image-generation queue API
type RemoteConfig struct {
	BaseURL string
	Timeout int // seconds
}

// PollConfig is the job-status polling policy. Zero caps mean unbounded.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	MaxDuration time.Duration
	Backoff     string // "fixed" or "exponential"
	MaxInterval time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig configures the S3-compatible bucket used for archived results
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	PresignExpiry   time.Duration
}

type CarouselConfig struct {
	Interval time.Duration
}

type RateLimitConfig struct {
	GeneratePerHour int
}

type SessionConfig struct {
	Backend string // "memory", "redis" or "file"
	File    string
	TTL     time.Duration
}

// Enabled reports whether archive storage has credentials and a bucket
func (c StorageConfig) Enabled() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

// Load reads configuration into the global viper instance
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration using v, which may already carry bound flags
func LoadFrom(v *viper.Viper) (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables
	v.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.env", "SERVER_ENV")
	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("remote.base_url", "REMOTE_BASE_URL")
	_ = v.BindEnv("remote.timeout", "REMOTE_TIMEOUT")
	_ = v.BindEnv("poll.interval", "POLL_INTERVAL")
	_ = v.BindEnv("poll.max_attempts", "POLL_MAX_ATTEMPTS")
	_ = v.BindEnv("poll.max_duration", "POLL_MAX_DURATION")
	_ = v.BindEnv("poll.backoff", "POLL_BACKOFF")
	_ = v.BindEnv("poll.max_interval", "POLL_MAX_INTERVAL")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	_ = v.BindEnv("storage.region", "STORAGE_REGION")
	_ = v.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = v.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = v.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = v.BindEnv("storage.presign_expiry", "STORAGE_PRESIGN_EXPIRY")
	_ = v.BindEnv("carousel.interval", "CAROUSEL_INTERVAL")
	_ = v.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = v.BindEnv("session.backend", "SESSION_BACKEND")
	_ = v.BindEnv("session.file", "SESSION_FILE")
	_ = v.BindEnv("session.ttl", "SESSION_TTL")

	// Defaults
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Remote queue defaults
	v.SetDefault("remote.base_url", "https://dbdemo.ngrok.app/api")
	v.SetDefault("remote.timeout", 60)

	// Poll every 2s with no cap
	v.SetDefault("poll.interval", 2*time.Second)
	v.SetDefault("poll.max_attempts", 0)
	v.SetDefault("poll.max_duration", time.Duration(0))
	v.SetDefault("poll.backoff", "fixed")
	v.SetDefault("poll.max_interval", 30*time.Second)

	// Storage defaults
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.presign_expiry", 24*time.Hour)

	v.SetDefault("carousel.interval", 10*time.Second)
	v.SetDefault("ratelimit.generate_per_hour", 20)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.file", defaultSessionFile())
	v.SetDefault("session.ttl", 24*time.Hour)

	// Try to read config file (optional)
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Remote: RemoteConfig{
			BaseURL: strings.TrimRight(v.GetString("remote.base_url"), "/"),
			Timeout: v.GetInt("remote.timeout"),
		},
		Poll: PollConfig{
			Interval:    v.GetDuration("poll.interval"),
			MaxAttempts: v.GetInt("poll.max_attempts"),
			MaxDuration: v.GetDuration("poll.max_duration"),
			Backoff:     v.GetString("poll.backoff"),
			MaxInterval: v.GetDuration("poll.max_interval"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			BucketName:      v.GetString("storage.bucket_name"),
			PublicURL:       v.GetString("storage.public_url"),
			PresignExpiry:   v.GetDuration("storage.presign_expiry"),
		},
		Carousel: CarouselConfig{
			Interval: v.GetDuration("carousel.interval"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: v.GetInt("ratelimit.generate_per_hour"),
		},
		Session: SessionConfig{
			Backend: strings.ToLower(v.GetString("session.backend")),
			File:    v.GetString("session.file"),
			TTL:     v.GetDuration("session.ttl"),
		},
	}

	return cfg, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".showcase-session.json"
	}
	return dir + string(os.PathSeparator) + "showcase" + string(os.PathSeparator) + "session.json"
}

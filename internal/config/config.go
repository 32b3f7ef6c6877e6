package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SessionBackendBolt  = "bolt"
	SessionBackendRedis = "redis"
)

// Config aggregates all runtime settings required by the client.
type Config struct {
	AppName string
	API     APIConfig
	Session SessionConfig
	Bolt    BoltConfig
	Redis   RedisConfig
	Outbox  OutboxConfig
	Context ContextConfig
	Logger  LoggerConfig
}

type APIConfig struct {
	BaseURL        string
	Prefix         string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	UserAgent      string
}

type SessionConfig struct {
	Backend string
	Key     string
}

type BoltConfig struct {
	Path string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type OutboxConfig struct {
	SyncInterval    time.Duration
	MaxRetry        int
	BatchSize       int
	Retention       time.Duration
	MonitorInterval time.Duration
}

type ContextConfig struct {
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults suitable for a local backend.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	appName := getString("APP_NAME", "companion")
	cfg := &Config{
		AppName: appName,
		API: APIConfig{
			BaseURL:        strings.TrimRight(getString("API_BASE_URL", "http://localhost:8000"), "/"),
			Prefix:         getString("API_PREFIX", "/api/v1"),
			RequestTimeout: getDuration("REQUEST_TIMEOUT", 15*time.Second),
			UploadTimeout:  getDuration("UPLOAD_TIMEOUT", 60*time.Second),
			UserAgent:      getString("API_USER_AGENT", appName+"-client"),
		},
		Session: SessionConfig{
			Backend: strings.ToLower(getString("SESSION_BACKEND", SessionBackendBolt)),
			Key:     getString("SESSION_KEY", "user"),
		},
		Bolt: BoltConfig{
			Path: getString("BOLTDB_PATH", "./data/companion.db"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Outbox: OutboxConfig{
			SyncInterval:    getDuration("OUTBOX_SYNC_INTERVAL", 30*time.Second),
			MaxRetry:        getInt("OUTBOX_MAX_RETRY", 5),
			BatchSize:       getInt("OUTBOX_BATCH_SIZE", 20),
			Retention:       getDuration("OUTBOX_RETENTION", 7*24*time.Hour),
			MonitorInterval: getDuration("MONITOR_INTERVAL", 15*time.Second),
		},
		Context: ContextConfig{
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks that required fields are set and enums are known.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return fmt.Errorf("API_BASE_URL must start with http:// or https://")
	}
	if c.Session.Key == "" {
		return fmt.Errorf("SESSION_KEY cannot be empty")
	}
	switch c.Session.Backend {
	case SessionBackendBolt:
		if c.Bolt.Path == "" {
			return fmt.Errorf("BOLTDB_PATH cannot be empty")
		}
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL cannot be empty")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.Session.Backend)
	}
	return nil
}

// Endpoint joins the base URL, the version prefix and path.
func (c *Config) Endpoint() string {
	prefix := strings.Trim(c.API.Prefix, "/")
	if prefix == "" {
		return c.API.BaseURL
	}
	return c.API.BaseURL + "/" + prefix
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

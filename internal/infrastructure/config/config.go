package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/axai-kaizoku/partout-sub001/internal/infrastructure/logging"
)

// Store backends for conversations and messages.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Realtime sources feeding the channel hub.
const (
	SourceLocal    = "local"    // in-process publish after persisting
	SourcePostgres = "postgres" // LISTEN/NOTIFY on the messages trigger
)

type Config struct {
	Port             string
	Env              string
	ChatStore        string
	RealtimeSource   string
	RealtimeBridge   bool
	JWTSecret        string
	AllowedOrigins   []string
	NotificationIcon string
	RequestTimeout   time.Duration
	MaxTabsPerUser   int
	Logging          logging.Config
	Mongo            MongoConfig
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:             envOrDefault("PORT", "8080"),
		Env:              strings.ToLower(envOrDefault("ENV", "development")),
		ChatStore:        strings.ToLower(envOrDefault("CHAT_STORE", StorePostgres)),
		RealtimeSource:   strings.ToLower(envOrDefault("REALTIME_SOURCE", SourceLocal)),
		RealtimeBridge:   parseBool(os.Getenv("REALTIME_BRIDGE"), false),
		JWTSecret:        strings.TrimSpace(os.Getenv("AUTH_JWT_SECRET")),
		AllowedOrigins:   splitCSV(envOrDefault("ALLOWED_ORIGINS", "http://localhost:3000")),
		NotificationIcon: envOrDefault("NOTIFICATION_ICON", "/icon-192.png"),
		RequestTimeout:   parseDuration(os.Getenv("REQUEST_TIMEOUT"), 3*time.Second),
		MaxTabsPerUser:   parseInt(os.Getenv("MAX_TABS_PER_USER"), 8),
		Logging: logging.Config{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "json")),
			Development:  parseBool(os.Getenv("LOG_DEVELOPMENT"), false),
			EnableCaller: parseBool(os.Getenv("LOG_CALLER"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "partout-messaging"),
		},
		Mongo: MongoConfig{
			URI:            envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
			Database:       envOrDefault("MONGO_DATABASE", "partout"),
			ConnectTimeout: parseDuration(os.Getenv("MONGO_CONNECT_TIMEOUT"), 5*time.Second),
		},
	}

	switch cfg.ChatStore {
	case StorePostgres, StoreMongo, StoreMemory:
	default:
		return nil, fmt.Errorf("config: unknown CHAT_STORE %q", cfg.ChatStore)
	}
	switch cfg.RealtimeSource {
	case SourceLocal, SourcePostgres:
	default:
		return nil, fmt.Errorf("config: unknown REALTIME_SOURCE %q", cfg.RealtimeSource)
	}
	if cfg.RealtimeSource == SourcePostgres && cfg.ChatStore != StorePostgres {
		return nil, fmt.Errorf("config: REALTIME_SOURCE=postgres requires CHAT_STORE=postgres")
	}
	if cfg.JWTSecret == "" {
		if cfg.Env == "production" {
			return nil, fmt.Errorf("config: AUTH_JWT_SECRET is required in production")
		}
		cfg.JWTSecret = "dev-secret"
	}

	return cfg, nil
}

// Production reports whether the service runs in production mode.
func (c *Config) Production() bool {
	return c.Env == "production"
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

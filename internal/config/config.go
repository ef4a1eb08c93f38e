package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the gateway. It is constructed once
// at startup and treated as read-only afterwards.
type Config struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	TokenTTL           time.Duration
	BackendBaseURL     string
	ProxyTimeout       time.Duration
	StaticDir          string
	LoginRedirectPath  string
	AppRedirectPath    string
	ProtectedPrefixes  []string
	AuthOnlyPrefixes   []string
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// Production reports whether the gateway runs in production mode. It controls
// the Secure attribute on the session cookie.
func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load constructs a Config from environment variables.
func Load() Config {
	return Config{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("GATEWAY_ADDR", ":3000"),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://taskgate:taskgate@db:5432/taskgate?sslmode=disable"),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", ""),
		TokenTTL:           time.Duration(GetInt("TOKEN_TTL_HOURS", 168)) * time.Hour,
		BackendBaseURL:     GetString("BACKEND_BASE_URL", "http://localhost:8000"),
		ProxyTimeout:       time.Duration(GetInt("PROXY_TIMEOUT_SECONDS", 15)) * time.Second,
		StaticDir:          GetString("STATIC_DIR", ""),
		LoginRedirectPath:  GetString("LOGIN_PATH", "/login"),
		AppRedirectPath:    GetString("APP_PATH", "/app"),
		ProtectedPrefixes:  GetList("PROTECTED_PREFIXES", []string{"/app"}),
		AuthOnlyPrefixes:   GetList("AUTH_ONLY_PREFIXES", []string{"/login", "/signup"}),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetList retrieves a comma separated environment variable or returns fallback.
func GetList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"ledroitcheck-service/internal/pkg/jwt"
)

type AppConfig struct {
	// Server
	HTTPAddr        string
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// Storage
	DatabaseURL   string
	DBMaxConns    int32
	RedisAddrs    []string
	RedisPass     string
	RedisDB       int
	RedisCluster  bool
	StoreTimeout  time.Duration
	EventsChannel string
	LastLoginTTL  time.Duration
	FolioTimezone string
	AutoMigrate   bool

	// JWT
	JWT          jwt.Config
	CookieName   string
	CookieSecure bool

	// Session
	SessionTTL           time.Duration
	SessionIdleTimeout   time.Duration
	SessionClearOnUnload bool
	LoginPath            string
	IngresoRedirectPath  string

	// Partner systems
	AuditURL      string
	AuditTimeout  time.Duration
	MasterAuthURL string
	MasterTimeout time.Duration
	SystemName    string

	// Rate limiting of the public endpoints, per client IP.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AllowedOrigins:  getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		DBMaxConns:    int32(getEnvInt("DB_MAX_CONNS", 10)),
		RedisAddrs:    getEnvSlice("REDIS_ADDR", []string{"redis-ledroit:6379"}),
		RedisPass:     getEnv("REDIS_PASS", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisCluster:  getEnvBool("REDIS_CLUSTER", false),
		StoreTimeout:  getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		EventsChannel: getEnv("EVENTS_CHANNEL", "ledroit:events"),
		LastLoginTTL:  getEnvDuration("LAST_LOGIN_CACHE_TTL", 24*time.Hour),
		FolioTimezone: getEnv("FOLIO_TZ", "America/Mexico_City"),
		AutoMigrate:   getEnvBool("AUTO_MIGRATE", false),

		JWT: jwt.Config{
			PrivPath: getEnv("JWT_PRIVATE_KEY_PATH", "/app/secrets/jwt_private.pem"),
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:   getEnv("JWT_ISSUER", "ledroitcheck"),
			Audience: getEnv("JWT_AUDIENCE", "ledroit-users"),
			TTL:      getEnvDuration("JWT_TTL", 12*time.Hour),
			KID:      getEnv("JWT_KID", "ledroitcheck-key"),
		},
		CookieName:   getEnv("SESSION_COOKIE", "ls_session"),
		CookieSecure: getEnvBool("SESSION_COOKIE_SECURE", true),

		SessionTTL:           getEnvDuration("SESSION_TTL", 12*time.Hour),
		SessionIdleTimeout:   getEnvDuration("SESSION_IDLE_TIMEOUT", 10*time.Minute),
		SessionClearOnUnload: getEnvBool("SESSION_CLEAR_ON_UNLOAD", false),
		LoginPath:            getEnv("LOGIN_PATH", "/index.html"),
		IngresoRedirectPath:  getEnv("INGRESO_REDIRECT_PATH", "/menu.html"),

		AuditURL:      getEnv("AUDIT_URL", ""),
		AuditTimeout:  getEnvDuration("AUDIT_TIMEOUT", 3*time.Second),
		MasterAuthURL: getEnv("MASTER_AUTH_URL", ""),
		MasterTimeout: getEnvDuration("MASTER_TIMEOUT", 10*time.Second),
		SystemName:    getEnv("SYSTEM_NAME", "LEDROITCHECK"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return fallback
}

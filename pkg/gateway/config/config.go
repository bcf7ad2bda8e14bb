package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderWorkOS AuthProvider = "workos"
)

type Config struct {
	Addr string

	DatabaseURL    string
	MigrateOnStart bool

	// Session cookies carry a signed JWT.
	JWTSecret  string
	CookieName string
	// CookieSecure should be false only for localhost development.
	CookieSecure bool
	TokenTTL     time.Duration

	AuthProvider   AuthProvider
	WorkOSAPIKey   string
	WorkOSClientID string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Post-session summaries.
	GeminiAPIKey string
	SummaryModel string

	MaxBodyBytes int64

	// In-memory per-user limits.
	LimitRPS   float64
	LimitBurst int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("TUTORVOX_ADDR", ":8080"),
		DatabaseURL:         envOr("TUTORVOX_DATABASE_URL", ""),
		MigrateOnStart:      envBoolOr("TUTORVOX_MIGRATE_ON_START", true),
		JWTSecret:           envOr("TUTORVOX_JWT_SECRET", ""),
		CookieName:          envOr("TUTORVOX_COOKIE_NAME", "tutorvox_session"),
		CookieSecure:        envBoolOr("TUTORVOX_COOKIE_SECURE", true),
		TokenTTL:            envDurationOr("TUTORVOX_TOKEN_TTL", 7*24*time.Hour),
		AuthProvider:        AuthProvider(envOr("TUTORVOX_AUTH_PROVIDER", string(AuthProviderLocal))),
		WorkOSAPIKey:        envOr("WORKOS_API_KEY", ""),
		WorkOSClientID:      envOr("WORKOS_CLIENT_ID", ""),
		CORSAllowedOrigins:  make(map[string]struct{}),
		GeminiAPIKey:        envOr("GEMINI_API_KEY", ""),
		SummaryModel:        envOr("TUTORVOX_SUMMARY_MODEL", "gemini-2.0-flash"),
		MaxBodyBytes:        envInt64Or("TUTORVOX_MAX_BODY_BYTES", 1<<20), // 1 MiB
		LimitRPS:            envFloat64Or("TUTORVOX_RATE_LIMIT_RPS", 10.0),
		LimitBurst:          envIntOr("TUTORVOX_RATE_LIMIT_BURST", 30),
		ReadHeaderTimeout:   envDurationOr("TUTORVOX_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("TUTORVOX_READ_TIMEOUT", 60*time.Second),
		ShutdownGracePeriod: envDurationOr("TUTORVOX_SHUTDOWN_GRACE", 15*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("TUTORVOX_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: TUTORVOX_DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: TUTORVOX_JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("config: TUTORVOX_JWT_SECRET must be at least 32 bytes")
	}
	switch c.AuthProvider {
	case AuthProviderLocal:
	case AuthProviderWorkOS:
		if c.WorkOSAPIKey == "" || c.WorkOSClientID == "" {
			return fmt.Errorf("config: workos auth requires WORKOS_API_KEY and WORKOS_CLIENT_ID")
		}
	default:
		return fmt.Errorf("config: unknown auth provider %q", c.AuthProvider)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: TUTORVOX_TOKEN_TTL must be > 0")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: TUTORVOX_MAX_BODY_BYTES must be > 0")
	}
	return nil
}

func envOr(key, def string) string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	return raw
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

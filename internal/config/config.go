// Package config loads the immutable process configuration from the environment.
package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed to constructors.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Household HouseholdConfig
	Push      PushConfig
	LogLevel  string
}

type ServerConfig struct {
	Port            string
	Env             string // development | production
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSL      bool
}

type RedisConfig struct {
	URL string // empty disables Redis
}

type AuthConfig struct {
	JWTSecret     []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	BcryptCost    int
	PhoneKey      []byte // nil when phone authentication is disabled
	LoginMaxFails int
	LoginWindow   time.Duration
	LoginBlockFor time.Duration
}

type HouseholdConfig struct {
	DefaultName     string
	DefaultCurrency string
	InvitationTTL   time.Duration // zero means invitations never expire
}

type PushConfig struct {
	ExpoURL             string
	ExpoAccessToken     string
	FirebaseCredentials []byte // service account JSON; nil disables FCM
}

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * time.Minute
	defaultBcryptCost = 10
	minBcryptCost     = 4
	maxBcryptCost     = 15
	defaultExpoURL    = "https://exp.host/--/api/v2/push/send"
)

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			Env:             getEnv("APP_ENV", "production"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
			CORSOrigins:     getSliceEnv("CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "hogar"),
			SSL:      getBoolEnv("DB_SSL", false),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:     []byte(getEnv("JWT_SECRET", "")),
			AccessTTL:     ParseTTL(os.Getenv("JWT_EXPIRES_IN"), defaultAccessTTL),
			RefreshTTL:    ParseTTL(os.Getenv("JWT_REFRESH_EXPIRES_IN"), defaultRefreshTTL),
			BcryptCost:    clamp(getIntEnv("BCRYPT_SALT_ROUNDS", defaultBcryptCost), minBcryptCost, maxBcryptCost),
			PhoneKey:      ParsePhoneKey(os.Getenv("PHONE_ENCRYPTION_KEY")),
			LoginMaxFails: getIntEnv("LOGIN_MAX_FAILS", 5),
			LoginWindow:   getDurationEnv("LOGIN_WINDOW", 15*time.Minute),
			LoginBlockFor: getDurationEnv("LOGIN_BLOCK_FOR", 15*time.Minute),
		},
		Household: HouseholdConfig{
			DefaultName:     getEnv("HOUSEHOLD_NAME", "Hogar"),
			DefaultCurrency: strings.ToUpper(getEnv("HOUSEHOLD_CURRENCY", "CUP")),
			InvitationTTL:   ParseTTL(os.Getenv("INVITATION_EXPIRES_IN"), 0),
		},
		Push: PushConfig{
			ExpoURL:         getEnv("EXPO_PUSH_URL", defaultExpoURL),
			ExpoAccessToken: getEnv("EXPO_ACCESS_TOKEN", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	creds, err := firebaseCredentials(os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"), os.Getenv("FIREBASE_SERVICE_ACCOUNT_BASE64"))
	if err != nil {
		return nil, err
	}
	cfg.Push.FirebaseCredentials = creds

	if len(cfg.Auth.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// DSN returns DATABASE_URL or a URL assembled from the DB_* parts.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	mode := "disable"
	if c.SSL {
		mode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + mode,
	}
	return u.String()
}

// IsDevelopment reports whether APP_ENV selects the development profile.
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// PhoneAuthEnabled reports whether a usable phone encryption key is configured.
func (c *AuthConfig) PhoneAuthEnabled() bool { return len(c.PhoneKey) == 32 }

var ttlRe = regexp.MustCompile(`^([0-9]+)\s*(ms|s|m|h|d)$`)

// ParseTTL parses "<n><unit>" durations with units ms, s, m, h and d.
// Anything else yields fallback.
func ParseTTL(raw string, fallback time.Duration) time.Duration {
	m := ttlRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return fallback
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return fallback
	}
	unit := map[string]time.Duration{
		"ms": time.Millisecond,
		"s":  time.Second,
		"m":  time.Minute,
		"h":  time.Hour,
		"d":  24 * time.Hour,
	}[m[2]]
	return time.Duration(n) * unit
}

// ParsePhoneKey decodes a base64 32-byte key; any other input returns nil.
func ParsePhoneKey(b64 string) []byte {
	b64 = strings.TrimSpace(b64)
	if b64 == "" {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(key) != 32 {
		return nil
	}
	return key
}

func firebaseCredentials(rawJSON, b64 string) ([]byte, error) {
	if s := strings.TrimSpace(rawJSON); s != "" {
		return []byte(s), nil
	}
	if s := strings.TrimSpace(b64); s != "" {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_BASE64: %w", err)
		}
		return b, nil
	}
	return nil, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return ParseTTL(value, defaultValue)
	}
	return d
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

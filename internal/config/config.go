package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every externally supplied setting read at process start.
type Config struct {
	Port                string
	GinMode             string
	DBDriver            string
	DatabaseURL         string
	AdminSetupCode      string
	EmailCredSecret     string
	SessionCookieName   string
	SessionTTL          time.Duration
	SessionCookieSecure bool
	CORSAllowedOrigins  []string
	SMTPTimeout         time.Duration
	NotifyLocale        string
	LogLevel            slog.Level
	LogFormat           string
}

// Load reads configs/.env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load("configs/.env"); err != nil {
		slog.Debug("no configs/.env file loaded", "error", err)
	}

	return Config{
		Port:                getenv("PORT", "8080"),
		GinMode:             getenv("GIN_MODE", "debug"),
		DBDriver:            strings.ToLower(getenv("DB_DRIVER", "postgres")),
		DatabaseURL:         getenv("DATABASE_URL", postgresDSNFromParts()),
		AdminSetupCode:      os.Getenv("ADMIN_SETUP_CODE"),
		EmailCredSecret:     os.Getenv("EMAIL_CRED_SECRET"),
		SessionCookieName:   getenv("SESSION_COOKIE_NAME", "lm_session"),
		SessionTTL:          time.Duration(getenvInt("SESSION_TTL_DAYS", 14)) * 24 * time.Hour,
		SessionCookieSecure: getenvBool("SESSION_COOKIE_SECURE", true),
		CORSAllowedOrigins:  splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		SMTPTimeout:         getenvDuration("SMTP_TIMEOUT", 10*time.Second),
		NotifyLocale:        getenv("NOTIFY_LOCALE", "en"),
		LogLevel:            parseLevel(getenv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getenv("LOG_FORMAT", "text")),
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.AdminSetupCode) == "" {
		errs = append(errs, errors.New("ADMIN_SETUP_CODE is required"))
	}
	if strings.TrimSpace(c.EmailCredSecret) == "" {
		errs = append(errs, errors.New("EMAIL_CRED_SECRET is required"))
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		errs = append(errs, errors.New("DB_DRIVER must be postgres or sqlite"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL_DAYS must be positive"))
	}
	return errors.Join(errs...)
}

// postgresDSNFromParts keeps the DB_HOST/DB_PORT/... variables working when DATABASE_URL is unset.
func postgresDSNFromParts() string {
	host := getenv("DB_HOST", "localhost")
	port := getenv("DB_PORT", "5432")
	user := getenv("DB_USER", "postgres")
	password := getenv("DB_PASSWORD", "postgres")
	name := getenv("DB_NAME", "postgres")
	sslMode := getenv("DB_SSLMODE", "disable")
	return "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + name + "?sslmode=" + sslMode
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo
	}
	return level
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "JewelGate"
	defaultAppEnv         = "production"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultAppURL         = "https://t.me"
	defaultTelegramAPI    = "https://api.telegram.org"
	defaultStoreDriver    = StorePostgres
	defaultSQLitePath     = "data/jewelgate.db"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultLookupTimeout  = 3 * time.Second
	defaultLookupCacheTTL = 30 * time.Second
	defaultSessionTTL     = time.Hour
	defaultVerifyLimit    = 30
	defaultAdminMode      = AdminAuthHeader
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Admin authentication modes.
const (
	AdminAuthHeader = "header"
	AdminAuthToken  = "token"
)

// ErrMisconfigured marks configuration that must stop the process at start.
var ErrMisconfigured = errors.New("misconfigured")

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	BotToken       string
	AdminIDs       []string
	AppURL         string
	TelegramAPIURL string
	NotifyDryRun   bool

	StoreDriver    string
	DatabaseURL    string
	SQLitePath     string
	RedisURL       string
	LookupTimeout  time.Duration
	LookupCacheTTL time.Duration
	InitDataMaxAge time.Duration

	AdminAuthMode string
	SessionSecret string
	SessionTTL    time.Duration

	VerifyRateLimit int
	IdempotencyTTL  time.Duration
	ShutdownPeriod  time.Duration
}

// Load reads a .env file when present, then the environment, and validates
// the result.
func Load() (Config, error) {
	if err := loadDotEnv(getEnv("DOTENV_PATH", ".env")); err != nil {
		return Config{}, err
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         strings.ToLower(getEnv("APP_ENV", defaultAppEnv)),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		BotToken:       strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		AdminIDs:       parseCSV(os.Getenv("ADMIN_TELEGRAM_IDS")),
		AppURL:         getEnv("APP_URL", defaultAppURL),
		TelegramAPIURL: getEnv("TELEGRAM_API_URL", defaultTelegramAPI),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", defaultStoreDriver)),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SQLitePath:     getEnv("SQLITE_PATH", defaultSQLitePath),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		AdminAuthMode:  strings.ToLower(getEnv("ADMIN_AUTH_MODE", defaultAdminMode)),
		SessionSecret:  strings.TrimSpace(os.Getenv("SESSION_SECRET")),
	}

	var err error
	if cfg.NotifyDryRun, err = getBool("NOTIFY_DRY_RUN", false); err != nil {
		return Config{}, err
	}
	if cfg.VerifyRateLimit, err = getInt("VERIFY_RATE_LIMIT", defaultVerifyLimit); err != nil {
		return Config{}, err
	}

	durations := []struct {
		dst      *time.Duration
		name     string
		fallback time.Duration
	}{
		{&cfg.ShutdownPeriod, "SHUTDOWN_TIMEOUT", defaultShutdownDelay},
		{&cfg.IdempotencyTTL, "IDEMPOTENCY_TTL", defaultIdempotencyTTL},
		{&cfg.LookupTimeout, "LOOKUP_TIMEOUT", defaultLookupTimeout},
		{&cfg.LookupCacheTTL, "LOOKUP_CACHE_TTL", defaultLookupCacheTTL},
		{&cfg.InitDataMaxAge, "INIT_DATA_MAX_AGE", 0},
		{&cfg.SessionTTL, "SESSION_TTL", defaultSessionTTL},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.name, d.fallback); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN must be set", ErrMisconfigured)
	}

	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL must be set for STORE_DRIVER=postgres", ErrMisconfigured)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH must be set for STORE_DRIVER=sqlite", ErrMisconfigured)
		}
	case StoreMemory:
		if !c.IsDevelopment() {
			return fmt.Errorf("%w: STORE_DRIVER=memory is only allowed in development", ErrMisconfigured)
		}
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrMisconfigured, c.StoreDriver)
	}

	switch c.AdminAuthMode {
	case AdminAuthHeader:
	case AdminAuthToken:
		if c.SessionSecret == "" {
			return fmt.Errorf("%w: SESSION_SECRET must be set for ADMIN_AUTH_MODE=token", ErrMisconfigured)
		}
	default:
		return fmt.Errorf("%w: unknown ADMIN_AUTH_MODE %q", ErrMisconfigured, c.AdminAuthMode)
	}
	return nil
}

// IsDevelopment reports whether the process explicitly runs in development
// mode. Anything other than development, dev, or local is production.
func (c Config) IsDevelopment() bool {
	switch c.AppEnv {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// getDuration accepts KEY as a Go duration or KEY_SECONDS as an integer.
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key + "_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s_SECONDS: %w", key, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

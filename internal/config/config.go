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
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DefaultCheckInterval = 60 * time.Second
	DefaultDBPath        = "tracker.db"
	DefaultHTTPAddr      = ":8080"
	DefaultLogLevel      = "info"

	// Stay below the platform's hard ceiling of ~30 requests per second.
	DefaultRateLimit = 25
	MaxRateLimit     = 30
)

type Config struct {
	APIBaseURL      string
	APISessionToken string
	TrackedUsers    []string
	CheckInterval   time.Duration
	DBPath          string
	// RateLimit is the ceiling of outbound presence queries per second.
	RateLimit int
	// HTTPAddr hosts the read-only export API; empty disables it.
	HTTPAddr string
	LogLevel string
	AppEnv   string
}

// Load resolves configuration from the environment. A .env file is honoured
// only when APP_ENV=development; production relies on variables supplied by
// the runtime.
func Load() (Config, error) {
	appEnv := getenvDefault("APP_ENV", EnvProduction)
	if appEnv != EnvDevelopment && appEnv != EnvProduction {
		return Config{}, fmt.Errorf("APP_ENV must be %s or %s", EnvDevelopment, EnvProduction)
	}
	if appEnv == EnvDevelopment {
		// missing .env is fine in development
		_ = godotenv.Load()
	}

	cfg := Config{
		APIBaseURL:      strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		APISessionToken: os.Getenv("API_SESSION_TOKEN"),
		DBPath:          getenvDefault("DB_PATH", DefaultDBPath),
		LogLevel:        getenvDefault("LOG_LEVEL", DefaultLogLevel),
		AppEnv:          appEnv,
	}

	// HTTP_ADDR unset means the default address; explicitly empty means the
	// export API is disabled. The usual default helper cannot tell the two
	// apart.
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(v)
	} else {
		cfg.HTTPAddr = DefaultHTTPAddr
	}

	if cfg.APIBaseURL == "" {
		return Config{}, errors.New("missing API_BASE_URL")
	}

	users, err := parseTrackedUsers(os.Getenv("TRACKED_USERS"))
	if err != nil {
		return Config{}, err
	}
	cfg.TrackedUsers = users

	seconds, err := getenvInt("CHECK_INTERVAL_SECONDS", int(DefaultCheckInterval/time.Second))
	if err != nil {
		return Config{}, err
	}
	if seconds < 1 {
		return Config{}, errors.New("CHECK_INTERVAL_SECONDS must be at least 1")
	}
	cfg.CheckInterval = time.Duration(seconds) * time.Second

	limit, err := getenvInt("RATE_LIMIT_PER_SECOND", DefaultRateLimit)
	if err != nil {
		return Config{}, err
	}
	if limit < 1 {
		return Config{}, errors.New("RATE_LIMIT_PER_SECOND must be at least 1")
	}
	if limit > MaxRateLimit {
		limit = MaxRateLimit
	}
	cfg.RateLimit = limit

	return cfg, nil
}

// parseTrackedUsers accepts a comma-separated list of numeric ids or
// @handles.
func parseTrackedUsers(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	users := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			users = append(users, p)
			continue
		}
		if strings.HasPrefix(p, "@") && len(p) > 1 {
			users = append(users, p)
			continue
		}
		return nil, fmt.Errorf("TRACKED_USERS entry %q is neither a numeric id nor an @handle", p)
	}
	if len(users) == 0 {
		return nil, errors.New("missing TRACKED_USERS")
	}
	return users, nil
}

func getenvDefault(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", k)
	}
	return n, nil
}

package config

import (
	"os"
	"testing"
	"time"
)

// setBaseEnv pins the required variables and clears the optional ones so the
// host environment cannot leak into a test. HTTP_ADDR is unset rather than
// emptied because an empty value is meaningful there.
func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("API_BASE_URL", "http://localhost:9000")
	t.Setenv("API_SESSION_TOKEN", "secret-token")
	t.Setenv("TRACKED_USERS", "12345,@alice")
	t.Setenv("APP_ENV", "")
	t.Setenv("CHECK_INTERVAL_SECONDS", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("RATE_LIMIT_PER_SECOND", "")
	t.Setenv("LOG_LEVEL", "")
	unsetenv(t, "HTTP_ADDR")
}

// unsetenv removes a variable for the duration of a test. t.Setenv registers
// the restore cleanup; the follow-up Unsetenv leaves the variable truly unset.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:9000" {
		t.Errorf("unexpected base url %q", cfg.APIBaseURL)
	}
	if cfg.CheckInterval != 60*time.Second {
		t.Errorf("expected default interval 60s, got %s", cfg.CheckInterval)
	}
	if cfg.DBPath != DefaultDBPath {
		t.Errorf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.RateLimit != DefaultRateLimit {
		t.Errorf("expected default rate limit %d, got %d", DefaultRateLimit, cfg.RateLimit)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.AppEnv != EnvProduction {
		t.Errorf("expected production env by default, got %q", cfg.AppEnv)
	}
	if len(cfg.TrackedUsers) != 2 {
		t.Fatalf("expected 2 tracked users, got %d", len(cfg.TrackedUsers))
	}
	if cfg.TrackedUsers[0] != "12345" || cfg.TrackedUsers[1] != "@alice" {
		t.Errorf("unexpected tracked users %v", cfg.TrackedUsers)
	}
}

func TestLoad_EmptyHTTPAddrDisablesAPI(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("HTTP_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != "" {
		t.Errorf("expected empty http addr to survive, got %q", cfg.HTTPAddr)
	}
}

func TestLoad_HTTPAddrOverride(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("HTTP_ADDR", " :9090 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("expected :9090, got %q", cfg.HTTPAddr)
	}
}

func TestLoad_TrimsBaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("API_BASE_URL", "http://localhost:9000/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:9000" {
		t.Errorf("expected trailing slash stripped, got %q", cfg.APIBaseURL)
	}
}

func TestLoad_MissingBaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("API_BASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("expected error for missing API_BASE_URL")
	}
}

func TestLoad_MissingTrackedUsers(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TRACKED_USERS", " , ,")

	if _, err := Load(); err == nil {
		t.Error("expected error for empty TRACKED_USERS")
	}
}

func TestLoad_InvalidTrackedEntry(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TRACKED_USERS", "12345,bogus")

	if _, err := Load(); err == nil {
		t.Error("expected error for entry that is neither id nor @handle")
	}
}

func TestLoad_InvalidInterval(t *testing.T) {
	setBaseEnv(t)

	t.Setenv("CHECK_INTERVAL_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for zero interval")
	}

	t.Setenv("CHECK_INTERVAL_SECONDS", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric interval")
	}
}

func TestLoad_RateLimitClampedToPlatformCeiling(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RATE_LIMIT_PER_SECOND", "100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RateLimit != MaxRateLimit {
		t.Errorf("expected rate limit clamped to %d, got %d", MaxRateLimit, cfg.RateLimit)
	}
}

func TestLoad_InvalidRateLimit(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("RATE_LIMIT_PER_SECOND", "0")

	if _, err := Load(); err == nil {
		t.Error("expected error for zero rate limit")
	}
}

func TestLoad_InvalidAppEnv(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_ENV", "staging")

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown APP_ENV")
	}
}

func TestParseTrackedUsers(t *testing.T) {
	users, err := parseTrackedUsers(" 111 ,@bob,, 222,@carol ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	want := []string{"111", "@bob", "222", "@carol"}
	if len(users) != len(want) {
		t.Fatalf("expected %d users, got %d", len(want), len(users))
	}
	for i := range want {
		if users[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], users[i])
		}
	}
}

package server

import (
	"testing"
	"time"
)

// TestNewConfigDefaults verifies the built-in defaults.
func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.Port != ":8080" {
		t.Errorf("Expected default port :8080, got %q", cfg.Port)
	}
	if cfg.MaxMessageSize != 4096 {
		t.Errorf("Expected default max message size 4096, got %d", cfg.MaxMessageSize)
	}
	if cfg.GracePeriod != 60*time.Second {
		t.Errorf("Expected default grace period 60s, got %s", cfg.GracePeriod)
	}
	if cfg.RateLimit.Burst != 10 || cfg.RateLimit.RefillInterval != time.Second {
		t.Errorf("Unexpected default rate limit: %+v", cfg.RateLimit)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:8080" {
		t.Errorf("Unexpected default origins: %v", cfg.AllowedOrigins)
	}
}

// TestNewConfigFromEnv verifies environment overrides, including list and
// duration parsing.
func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com,https://admin.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("EVICTION_GRACE_PERIOD", "30s")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg, err := NewConfigFromEnv()
	if err != nil {
		t.Fatalf("NewConfigFromEnv failed: %v", err)
	}

	if cfg.Port != ":9090" {
		t.Errorf("Expected port :9090, got %q", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("Unexpected origins: %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 1024 {
		t.Errorf("Expected max message size 1024, got %d", cfg.MaxMessageSize)
	}
	if cfg.GracePeriod != 30*time.Second {
		t.Errorf("Expected grace period 30s, got %s", cfg.GracePeriod)
	}
	if cfg.RateLimit.Burst != 3 || cfg.RateLimit.RefillInterval != 2*time.Second {
		t.Errorf("Unexpected rate limit: %+v", cfg.RateLimit)
	}
}

// TestConfigSanitize verifies that out-of-range values fall back to defaults
// instead of disabling limits.
func TestConfigSanitize(t *testing.T) {
	cfg := &Config{
		Port:           "",
		MaxMessageSize: -1,
		GracePeriod:    0,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
	}
	cfg.sanitize()

	defaults := NewConfig()
	if cfg.Port != defaults.Port {
		t.Errorf("Port not defaulted: %q", cfg.Port)
	}
	if cfg.MaxMessageSize != defaults.MaxMessageSize {
		t.Errorf("MaxMessageSize not defaulted: %d", cfg.MaxMessageSize)
	}
	if cfg.GracePeriod != defaults.GracePeriod {
		t.Errorf("GracePeriod not defaulted: %s", cfg.GracePeriod)
	}
	if cfg.RateLimit.Burst != defaults.RateLimit.Burst {
		t.Errorf("Rate limit burst not defaulted: %d", cfg.RateLimit.Burst)
	}
	if cfg.RateLimit.RefillInterval != defaults.RateLimit.RefillInterval {
		t.Errorf("Refill interval not defaulted: %s", cfg.RateLimit.RefillInterval)
	}
}

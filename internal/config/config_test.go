package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_DefaultsApplyWhenUnset(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default ServerPort 8080, got %q", cfg.ServerPort)
	}
	if cfg.JobMaxAttempts != 8 {
		t.Fatalf("expected default JobMaxAttempts 8, got %d", cfg.JobMaxAttempts)
	}
	if cfg.SettlementLookbackHours != 24 {
		t.Fatalf("expected default SettlementLookbackHours 24, got %d", cfg.SettlementLookbackHours)
	}
	if got := cfg.SettlementLookback(); got != 24*time.Hour {
		t.Fatalf("expected SettlementLookback() 24h, got %v", got)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to override ServerPort, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NonPositiveAttemptOverridesFallBackToDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "JOB_MAX_ATTEMPTS", "0")
	setEnvWithCleanup(t, "NOTIFICATION_MAX_ATTEMPTS", "-3")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobMaxAttempts != 8 {
		t.Fatalf("expected JobMaxAttempts to fall back to 8, got %d", cfg.JobMaxAttempts)
	}
	if cfg.NotificationMaxAttempts != 10 {
		t.Fatalf("expected NotificationMaxAttempts to fall back to 10, got %d", cfg.NotificationMaxAttempts)
	}
}

func TestLoadConfig_InternalAPIKeyFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "INTERNAL_API_KEY", "admin-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.InternalAPIKey != "admin-key" {
		t.Fatalf("expected InternalAPIKey from env, got %q", cfg.InternalAPIKey)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	t.Setenv(key, value)
}

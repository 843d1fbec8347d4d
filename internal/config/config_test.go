package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{"SERVER_PORT", "PORT", "BASE_CURRENCY", "DAILY_LIMIT", "MONTHLY_LIMIT", "KYC_AMOUNT_THRESHOLD", "HIGH_VALUE_THRESHOLD", "PICKUP_CODE_TTL_HOURS"} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.BaseCurrency != "GHS" {
		t.Fatalf("expected default base currency GHS, got %q", cfg.BaseCurrency)
	}
	// Limits are configured in whole units and held in minor units.
	if cfg.DailyLimitMinor != 1000000 {
		t.Fatalf("expected default daily limit 1000000 minor units, got %d", cfg.DailyLimitMinor)
	}
	if cfg.MonthlyLimitMinor != 5000000 {
		t.Fatalf("expected default monthly limit 5000000 minor units, got %d", cfg.MonthlyLimitMinor)
	}
	if cfg.KYCThresholdMinor != 100000 {
		t.Fatalf("expected default KYC threshold 100000 minor units, got %d", cfg.KYCThresholdMinor)
	}
	if cfg.HighValueThresholdMinor != 500000 {
		t.Fatalf("expected default high-value threshold 500000 minor units, got %d", cfg.HighValueThresholdMinor)
	}
	if cfg.PickupCodeTTLHours != 168 {
		t.Fatalf("expected default pickup TTL of 168 hours, got %d", cfg.PickupCodeTTLHours)
	}
}

func TestLoadConfig_ConvertsConfiguredLimitsToMinorUnits(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DAILY_LIMIT", "2500")
	setEnvWithCleanup(t, "MONTHLY_LIMIT", "12000.50")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DailyLimitMinor != 250000 {
		t.Fatalf("expected 250000 minor units, got %d", cfg.DailyLimitMinor)
	}
	if cfg.MonthlyLimitMinor != 1200050 {
		t.Fatalf("expected 1200050 minor units, got %d", cfg.MonthlyLimitMinor)
	}
}

func TestLoadConfig_RejectsNonPositiveLimit(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DAILY_LIMIT", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DailyLimitMinor != 1000000 {
		t.Fatalf("expected the default to replace a non-positive limit, got %d", cfg.DailyLimitMinor)
	}
}

func TestLoadConfig_PortEnvOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "8080")
	setEnvWithCleanup(t, "PORT", "9090")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT to take precedence, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NormalizesBaseCurrency(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "BASE_CURRENCY", " ghs ")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.BaseCurrency != "GHS" {
		t.Fatalf("expected normalized GHS, got %q", cfg.BaseCurrency)
	}
}

func TestLoadConfig_AuthSettings(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "AUTH_JWKS_URL", "https://auth.sikaremit.test/.well-known/jwks.json")
	setEnvWithCleanup(t, "AUTH_AUDIENCE", "sikaremit-api")
	setEnvWithCleanup(t, "AUTH_ISSUER", "https://auth.sikaremit.test")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AuthJWKSURL != "https://auth.sikaremit.test/.well-known/jwks.json" {
		t.Fatalf("unexpected JWKS URL: %q", cfg.AuthJWKSURL)
	}
	if cfg.AuthAudience != "sikaremit-api" {
		t.Fatalf("unexpected audience: %q", cfg.AuthAudience)
	}
	if cfg.AuthIssuer != "https://auth.sikaremit.test" {
		t.Fatalf("unexpected issuer: %q", cfg.AuthIssuer)
	}
}

func TestAdminIDSet(t *testing.T) {
	cfg := Config{AdminUserIDs: "user_a, user_b ,,user_c"}
	set := cfg.AdminIDSet()
	if len(set) != 3 {
		t.Fatalf("expected 3 admin ids, got %d", len(set))
	}
	for _, id := range []string{"user_a", "user_b", "user_c"} {
		if _, ok := set[id]; !ok {
			t.Fatalf("expected %s in the admin set", id)
		}
	}

	if len((&Config{}).AdminIDSet()) != 0 {
		t.Fatal("expected an empty set for an empty admin list")
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}

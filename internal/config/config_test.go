package config

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func loadFromEnv(t *testing.T, env map[string]string) Config {
	t.Helper()
	viper.Reset()
	for key, value := range env {
		t.Setenv(key, value)
	}
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadFromEnv(t, nil)

	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.EscrowReconcileSchedule != "@every 10m" {
		t.Fatalf("expected default reconcile schedule, got %q", cfg.EscrowReconcileSchedule)
	}
	if cfg.RedisRateLimitPrefix != "insuralink:rate_limit" {
		t.Fatalf("expected default rate limit prefix, got %q", cfg.RedisRateLimitPrefix)
	}
	if cfg.TriggerRateLimitPerMinute != 60 {
		t.Fatalf("expected default trigger rate limit 60, got %d", cfg.TriggerRateLimitPerMinute)
	}
}

func TestLoadConfig_ReadsEnvironment(t *testing.T) {
	cfg := loadFromEnv(t, map[string]string{
		"SERVER_PORT":               "9000",
		"DATABASE_URL":              "postgres://localhost:5432/insuralink",
		"LEDGER_API_BASE_URL":       " https://ledger.example.com ",
		"LEDGER_API_KEY":            "key-123",
		"ESCROW_ACCOUNT_ID":         "acct_escrow",
		"JWT_SECRET":                "secret",
		"TRIGGER_SOURCES":           "acct_oracle",
		"ESCROW_RECONCILE_SCHEDULE": "@every 1m",
	})

	if cfg.ServerPort != "9000" {
		t.Fatalf("expected port 9000, got %q", cfg.ServerPort)
	}
	if cfg.DatabaseURL != "postgres://localhost:5432/insuralink" {
		t.Fatalf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.LedgerAPIBaseURL != "https://ledger.example.com" {
		t.Fatalf("expected trimmed base url, got %q", cfg.LedgerAPIBaseURL)
	}
	if cfg.EscrowReconcileSchedule != "@every 1m" {
		t.Fatalf("unexpected schedule %q", cfg.EscrowReconcileSchedule)
	}
}

func TestLoadConfig_PortOverride(t *testing.T) {
	// Platform-injected PORT wins over SERVER_PORT.
	cfg := loadFromEnv(t, map[string]string{
		"SERVER_PORT": "9000",
		"PORT":        "3000",
	})
	if cfg.ServerPort != "3000" {
		t.Fatalf("expected PORT override 3000, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_NegativeRateLimitDisabled(t *testing.T) {
	cfg := loadFromEnv(t, map[string]string{
		"TRIGGER_RATE_LIMIT_PER_MINUTE": "-5",
	})
	if cfg.TriggerRateLimitPerMinute != 0 {
		t.Fatalf("expected negative limit coerced to 0, got %d", cfg.TriggerRateLimitPerMinute)
	}
}

func TestTriggerSourceList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "single source", value: "acct_oracle", want: []string{"acct_oracle"}},
		{name: "multiple with spaces", value: " acct_oracle , acct_backup ", want: []string{"acct_oracle", "acct_backup"}},
		{name: "trailing comma", value: "acct_oracle,", want: []string{"acct_oracle"}},
		{name: "empty", value: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{TriggerSources: tt.value}
			if got := cfg.TriggerSourceList(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

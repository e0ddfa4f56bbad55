package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Triggers.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.Triggers.PollInterval)
	}
	if cfg.Triggers.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %v, want 2s", cfg.Triggers.SettleDelay)
	}
	if cfg.Database.Port != 5432 || cfg.API.Port != 8080 {
		t.Errorf("unexpected ports db=%d api=%d", cfg.Database.Port, cfg.API.Port)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
triggers:
  poll_interval: 10s
  selloff_start: "15:30"
  selloff_end: "15:55"
  timezone: UTC
export:
  min_bear_score: 0.25
`)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("JWT_SECRET_KEY", "jwt")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Triggers.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.Triggers.PollInterval)
	}
	if cfg.Triggers.SettleDelay != 2*time.Second {
		t.Errorf("unset keys keep their defaults, SettleDelay = %v", cfg.Triggers.SettleDelay)
	}
	if cfg.Export.MinBearScore != 0.25 {
		t.Errorf("MinBearScore = %v", cfg.Export.MinBearScore)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.Password != "secret" {
		t.Errorf("environment not applied: %+v", cfg.Database)
	}
	if cfg.API.JWTSecret != "jwt" {
		t.Errorf("JWTSecret not read from the environment")
	}
	if !strings.Contains(cfg.Database.DSN(), "host=db.internal") {
		t.Errorf("DSN() = %q", cfg.Database.DSN())
	}

	w, err := cfg.SellOffWindow()
	if err != nil {
		t.Fatalf("SellOffWindow() error = %v", err)
	}
	if w.Start != 15*time.Hour+30*time.Minute || w.End != 15*time.Hour+55*time.Minute {
		t.Errorf("unexpected window %v", w)
	}
}

func TestLoadFromRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown log level", body: "log:\n  level: loud\n"},
		{name: "poll interval too short", body: "triggers:\n  poll_interval: 10ms\n"},
		{name: "bad sell-off clock", body: "triggers:\n  selloff_start: \"noon\"\n"},
		{name: "negative bear score", body: "export:\n  min_bear_score: -1\n"},
		{name: "unknown feed", body: "market_data:\n  feed: tape\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFrom(writeConfig(t, tt.body)); err == nil {
				t.Errorf("expected a validation error")
			}
		})
	}
}

func TestSaveConfigOmitsSecrets(t *testing.T) {
	path := writeConfig(t, "export:\n  dir: out\n")
	t.Setenv("ALPACA_API_SECRET", "do-not-write")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Triggers.PollInterval = 45 * time.Second
	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "do-not-write") {
		t.Errorf("secret written to disk:\n%s", data)
	}

	again, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Triggers.PollInterval != 45*time.Second || again.Export.Dir != "out" {
		t.Errorf("round trip lost settings: %+v %+v", again.Triggers, again.Export)
	}
}

func TestConfigureInteractiveUpdatesTriggers(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatal(err)
	}

	input := strings.Join([]string{"2", "15s", "", "15:40", "", "5"}, "\n") + "\n"
	if err := ConfigureInteractive(cfg, strings.NewReader(input)); err != nil {
		t.Fatalf("ConfigureInteractive() error = %v", err)
	}
	if cfg.Triggers.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.Triggers.PollInterval)
	}
	if cfg.Triggers.SellOffStart != "15:40" || cfg.Triggers.SellOffEnd != "16:00" {
		t.Errorf("unexpected window %s-%s", cfg.Triggers.SellOffStart, cfg.Triggers.SellOffEnd)
	}
}

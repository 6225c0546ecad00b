package config

import (
	"os"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadAndValidate(t *testing.T) {
	content := `
telegram:
  bot_token: "test_token"
  channel_id: "-1001234567890"

nflverse:
  season: 2025
  timeout: 60s
  cache_ttl: 12h

scoring:
  default_profile: PPR
  min_snap_pct: 25

weekly:
  enabled: true
  weekday: Tuesday
  hour: 12
  minute: 0
  timezone: "America/Toronto"

store:
  db_path: "./data/test.sqlite"

logging:
  level: "info"
  format: "json"
`
	path := writeConfig(t, content)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Telegram.BotToken != "test_token" {
		t.Errorf("Expected bot token 'test_token', got %s", cfg.Telegram.BotToken)
	}
	if cfg.NFLVerse.Season != 2025 {
		t.Errorf("Expected season 2025, got %d", cfg.NFLVerse.Season)
	}
	if cfg.WeeklyWeekday() != time.Tuesday {
		t.Errorf("Expected Tuesday, got %v", cfg.WeeklyWeekday())
	}
	// Defaults apply for the values the file omits
	if cfg.NFLVerse.MaxRetries != 3 {
		t.Errorf("Expected default max_retries 3, got %d", cfg.NFLVerse.MaxRetries)
	}
	if cfg.Resolver.SweepInterval != time.Hour {
		t.Errorf("Expected default sweep interval 1h, got %v", cfg.Resolver.SweepInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := `
telegram:
  bot_token: "test_token"
  channel_id: "-100123"
store:
  db_path: "./data/test.sqlite"
`
	path := writeConfig(t, base)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing bot token", func(c *Config) { c.Telegram.BotToken = "" }},
		{"weekly enabled without channel", func(c *Config) { c.Telegram.ChannelID = "" }},
		{"bad profile", func(c *Config) { c.Scoring.DefaultProfile = "SUPERFLEX" }},
		{"snap pct out of range", func(c *Config) { c.Scoring.MinSnapPct = 101 }},
		{"bad weekday", func(c *Config) { c.Weekly.Weekday = "Someday" }},
		{"bad timezone", func(c *Config) { c.Weekly.Timezone = "Mars/Olympus" }},
		{"bad hour", func(c *Config) { c.Weekly.Hour = 24 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"ancient season", func(c *Config) { c.NFLVerse.Season = 1987 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *cfg
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestSeasonDefaultsToCurrentYear(t *testing.T) {
	cfg := Config{Weekly: Weekly{Timezone: "America/Toronto"}}
	now := time.Date(2025, time.October, 5, 12, 0, 0, 0, time.UTC)
	if got := cfg.Season(now); got != 2025 {
		t.Errorf("Season() = %d, want 2025", got)
	}

	cfg.NFLVerse.Season = 2024
	if got := cfg.Season(now); got != 2024 {
		t.Errorf("Season() with explicit season = %d, want 2024", got)
	}
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Telegram Telegram `mapstructure:"telegram"`
	NFLVerse NFLVerse `mapstructure:"nflverse"`
	Scoring  Scoring  `mapstructure:"scoring"`
	Resolver Resolver `mapstructure:"resolver"`
	Weekly   Weekly   `mapstructure:"weekly"`
	Store    Store    `mapstructure:"store"`
	Logging  Logging  `mapstructure:"logging"`
}

// Telegram holds bot and channel configuration
type Telegram struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChannelID      string        `mapstructure:"channel_id"` // chat the weekly post goes to
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// NFLVerse holds stat feed configuration. The URL templates take the season
// year as their single format argument.
type NFLVerse struct {
	PlayerStatsURL string        `mapstructure:"player_stats_url"`
	SnapCountsURL  string        `mapstructure:"snap_counts_url"`
	PlayersURL     string        `mapstructure:"players_url"`
	Season         int           `mapstructure:"season"` // 0 = current calendar year
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	CacheDir       string        `mapstructure:"cache_dir"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// Scoring holds the defaults applied when a bet doesn't specify them
type Scoring struct {
	DefaultProfile string  `mapstructure:"default_profile"`
	MinSnapPct     float64 `mapstructure:"min_snap_pct"`
}

// Resolver holds the background resolution sweep configuration
type Resolver struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Weekly holds the weekly standings post schedule
type Weekly struct {
	Enabled       bool          `mapstructure:"enabled"`
	Weekday       string        `mapstructure:"weekday"`
	Hour          int           `mapstructure:"hour"`
	Minute        int           `mapstructure:"minute"`
	Timezone      string        `mapstructure:"timezone"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// Store holds persistence configuration
type Store struct {
	DBPath string `mapstructure:"db_path"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("SNAPBET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// NFLVerse defaults. Feeds are published nightly during the season.
	v.SetDefault("nflverse.player_stats_url", "https://github.com/nflverse/nflverse-data/releases/download/player_stats/stats_player_week_%d.csv")
	v.SetDefault("nflverse.snap_counts_url", "https://github.com/nflverse/nflverse-pfr/releases/download/snap_counts/snap_counts_%d.csv")
	v.SetDefault("nflverse.players_url", "https://github.com/nflverse/nflverse-data/releases/download/players/players.csv")
	v.SetDefault("nflverse.season", 0)
	v.SetDefault("nflverse.timeout", "60s")
	v.SetDefault("nflverse.max_retries", 3)
	v.SetDefault("nflverse.retry_delay_base", "1s")
	v.SetDefault("nflverse.cache_dir", "./.cache")
	v.SetDefault("nflverse.cache_ttl", "12h")

	// Scoring defaults
	v.SetDefault("scoring.default_profile", "PPR")
	v.SetDefault("scoring.min_snap_pct", 25.0)

	// Resolver defaults
	v.SetDefault("resolver.sweep_interval", "1h")

	// Weekly post defaults
	v.SetDefault("weekly.enabled", true)
	v.SetDefault("weekly.weekday", "Tuesday")
	v.SetDefault("weekly.hour", 12)
	v.SetDefault("weekly.minute", 0)
	v.SetDefault("weekly.timezone", "America/Toronto")
	v.SetDefault("weekly.check_interval", "1m")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Store defaults
	v.SetDefault("store.db_path", "./data/snapbet.sqlite")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// weekdays maps configured weekday names to time.Weekday values.
var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Weekly.Enabled && c.Telegram.ChannelID == "" {
		return fmt.Errorf("telegram.channel_id is required when the weekly post is enabled")
	}

	if c.NFLVerse.PlayerStatsURL == "" || c.NFLVerse.SnapCountsURL == "" || c.NFLVerse.PlayersURL == "" {
		return fmt.Errorf("nflverse feed URLs are required")
	}
	if c.NFLVerse.Timeout < time.Second {
		return fmt.Errorf("nflverse.timeout must be at least 1 second")
	}
	if c.NFLVerse.CacheTTL < time.Minute {
		return fmt.Errorf("nflverse.cache_ttl must be at least 1 minute")
	}
	if c.NFLVerse.Season != 0 && c.NFLVerse.Season < 1999 {
		return fmt.Errorf("nflverse.season must be 0 (current year) or a valid season year")
	}

	validProfiles := map[string]bool{"PPR": true, "HALF": true, "STD": true}
	if !validProfiles[c.Scoring.DefaultProfile] {
		return fmt.Errorf("scoring.default_profile must be one of: PPR, HALF, STD")
	}
	if c.Scoring.MinSnapPct < 0 || c.Scoring.MinSnapPct > 100 {
		return fmt.Errorf("scoring.min_snap_pct must be between 0 and 100")
	}

	if c.Resolver.SweepInterval < time.Minute {
		return fmt.Errorf("resolver.sweep_interval must be at least 1 minute")
	}

	if _, ok := weekdays[strings.ToLower(c.Weekly.Weekday)]; !ok {
		return fmt.Errorf("weekly.weekday must be a weekday name, got %q", c.Weekly.Weekday)
	}
	if c.Weekly.Hour < 0 || c.Weekly.Hour > 23 {
		return fmt.Errorf("weekly.hour must be between 0 and 23")
	}
	if c.Weekly.Minute < 0 || c.Weekly.Minute > 59 {
		return fmt.Errorf("weekly.minute must be between 0 and 59")
	}
	if _, err := time.LoadLocation(c.Weekly.Timezone); err != nil {
		return fmt.Errorf("weekly.timezone is invalid: %w", err)
	}
	if c.Weekly.CheckInterval < 10*time.Second {
		return fmt.Errorf("weekly.check_interval must be at least 10 seconds")
	}

	if c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Season returns the configured season, defaulting to the current calendar
// year in the weekly-post timezone so it adjusts automatically each year.
func (c *Config) Season(now time.Time) int {
	if c.NFLVerse.Season != 0 {
		return c.NFLVerse.Season
	}
	loc, err := time.LoadLocation(c.Weekly.Timezone)
	if err != nil {
		return now.Year()
	}
	return now.In(loc).Year()
}

// WeeklyWeekday returns the configured weekly-post weekday.
func (c *Config) WeeklyWeekday() time.Weekday {
	return weekdays[strings.ToLower(c.Weekly.Weekday)]
}

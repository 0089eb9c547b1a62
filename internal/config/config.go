package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/stampla/internal/domain"
)

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
	Tracker  TrackerConfig  `toml:"tracker"`
	Server   ServerConfig   `toml:"server"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level string `toml:"level"` // debug | info | warn | error
}

// TrackerConfig seeds the stored tracker settings on first run. Durations
// use Go notation ("8h", "90m", "30s").
type TrackerConfig struct {
	RequiredDailyPresence string `toml:"required_daily_presence"`
	TimerMaxDuration      string `toml:"timer_max_duration"`
	Theme                 string `toml:"theme"`
	TimeFormat24h         bool   `toml:"time_format_24h"`
	AutoSaveInterval      string `toml:"auto_save_interval"`
	DataRetentionWeeks    int    `toml:"data_retention_weeks"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

func Default(dbPath string) Config {
	defaults := domain.DefaultSettings()
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Tracker: TrackerConfig{
			RequiredDailyPresence: defaults.RequiredDailyPresence.String(),
			TimerMaxDuration:      defaults.TimerMaxDuration.String(),
			Theme:                 defaults.Theme,
			TimeFormat24h:         defaults.TimeFormat24h,
			AutoSaveInterval:      defaults.AutoSaveInterval.String(),
			DataRetentionWeeks:    defaults.DataRetentionWeeks,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8422",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	level := strings.TrimSpace(strings.ToLower(c.Logging.Level))
	if level != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, level) {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	settings, err := c.Settings()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server addr is required")
	}

	return nil
}

// Settings converts the tracker section into domain settings. Empty fields
// fall back to domain defaults.
func (c Config) Settings() (domain.Settings, error) {
	settings := domain.DefaultSettings()

	parse := func(field, value string, out *time.Duration) error {
		value = strings.TrimSpace(value)
		if value == "" {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("tracker.%s: %w", field, err)
		}
		*out = d
		return nil
	}
	if err := parse("required_daily_presence", c.Tracker.RequiredDailyPresence, &settings.RequiredDailyPresence); err != nil {
		return domain.Settings{}, err
	}
	if err := parse("timer_max_duration", c.Tracker.TimerMaxDuration, &settings.TimerMaxDuration); err != nil {
		return domain.Settings{}, err
	}
	if err := parse("auto_save_interval", c.Tracker.AutoSaveInterval, &settings.AutoSaveInterval); err != nil {
		return domain.Settings{}, err
	}
	if theme := strings.TrimSpace(c.Tracker.Theme); theme != "" {
		settings.Theme = theme
	}
	settings.TimeFormat24h = c.Tracker.TimeFormat24h
	if c.Tracker.DataRetentionWeeks != 0 {
		settings.DataRetentionWeeks = c.Tracker.DataRetentionWeeks
	}
	return settings, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

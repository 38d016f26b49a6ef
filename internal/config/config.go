package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon settings shared by the alarm binaries.
type Config struct {
	// ListenAddress is the TCP address the daemon accepts commands on.
	ListenAddress string `yaml:"listen_addr"`
	// DatabasePath is the path to the SQLite file storing alarms.
	DatabasePath string `yaml:"database_path"`
	// RedisAddress is the optional Redis address for signal broadcasting.
	// Leave empty to broadcast to the log only.
	RedisAddress string `yaml:"redis_addr"`
	// RedisPrefix is the channel name prefix for Redis broadcasts.
	RedisPrefix string `yaml:"redis_prefix"`
	// LogLevel is the minimum log level (debug, info, warn, error, fatal).
	LogLevel string `yaml:"log_level"`
	// PrealarmMinutes is how long before the main alarm the pre-alarm
	// sounds. Zero disables pre-alarms.
	PrealarmMinutes int `yaml:"prealarm_minutes"`
	// SnoozeMinutes is the default snooze length.
	SnoozeMinutes int `yaml:"snooze_minutes"`
	// AutoSilenceMinutes is how long a ringing alarm sounds before it is
	// silenced automatically. Zero keeps it ringing until dismissed.
	AutoSilenceMinutes int `yaml:"auto_silence_minutes"`
	// SkipWindowMinutes is how long before an alarm the skip offer is
	// shown. Zero disables the skip offer.
	SkipWindowMinutes int `yaml:"skip_window_minutes"`
}

const (
	// DefaultConfigFilename is the default filename for daemon settings.
	DefaultConfigFilename = "alarmd-settings.yaml"

	// DefaultListenAddress is the default command listener address.
	DefaultListenAddress = "127.0.0.1:8385"

	// DefaultDatabaseFilename is the default filename for the alarm database.
	DefaultDatabaseFilename = "alarmd.db"

	// DefaultPrealarmMinutes is the default pre-alarm offset.
	DefaultPrealarmMinutes = 30

	// DefaultSnoozeMinutes is the default snooze length.
	DefaultSnoozeMinutes = 10

	// DefaultAutoSilenceMinutes is the default auto-silence timeout.
	DefaultAutoSilenceMinutes = 10

	// DefaultSkipWindowMinutes is the default skip offer window.
	DefaultSkipWindowMinutes = 120

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeDuration is returned when a minutes setting is negative.
	errNegativeDuration = errors.New("duration settings must not be negative")
)

// Default returns settings with every field at its default value.
func Default() *Config {
	return &Config{
		ListenAddress:      DefaultListenAddress,
		DatabasePath:       DefaultDatabaseFilename,
		LogLevel:           "info",
		PrealarmMinutes:    DefaultPrealarmMinutes,
		SnoozeMinutes:      DefaultSnoozeMinutes,
		AutoSilenceMinutes: DefaultAutoSilenceMinutes,
		SkipWindowMinutes:  DefaultSkipWindowMinutes,
	}
}

// Load reads configuration from the provided path and validates essential
// fields. A missing file yields the defaults so first runs work without any
// setup step.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills in
// defaults for the ones left empty.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = DefaultDatabaseFilename
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.PrealarmMinutes < 0 || cfg.SnoozeMinutes < 0 ||
		cfg.AutoSilenceMinutes < 0 || cfg.SkipWindowMinutes < 0 {
		return errNegativeDuration
	}

	if cfg.SnoozeMinutes == 0 {
		cfg.SnoozeMinutes = DefaultSnoozeMinutes
	}

	return nil
}

// PrealarmDuration returns the pre-alarm offset. Zero means pre-alarms are off.
func (c *Config) PrealarmDuration() time.Duration {
	return time.Duration(c.PrealarmMinutes) * time.Minute
}

// SnoozeDuration returns the default snooze length.
func (c *Config) SnoozeDuration() time.Duration {
	return time.Duration(c.SnoozeMinutes) * time.Minute
}

// AutoSilenceDuration returns the ringing timeout. Zero means no timeout.
func (c *Config) AutoSilenceDuration() time.Duration {
	return time.Duration(c.AutoSilenceMinutes) * time.Minute
}

// SkipWindow returns the skip offer window. Zero means the offer is off.
func (c *Config) SkipWindow() time.Duration {
	return time.Duration(c.SkipWindowMinutes) * time.Minute
}

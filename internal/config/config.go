// Package config assembles the almanac service configuration from the
// process environment, with an optional YAML overlay for the schedule
// shape itself.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ashaw315/hotdog-diaries-sub006/internal/models"
	"github.com/ashaw315/hotdog-diaries-sub006/pkg/config"
)

// Defaults for the schedule shape.
var DefaultSlotLabels = []string{"07:00", "10:00", "13:00", "16:00", "19:00", "22:00"}

const (
	DefaultTimezone         = "America/New_York"
	DefaultPlatformCap      = 2
	DefaultToleranceMinutes = 45
	DefaultTargetPlatforms  = 3
	DefaultTargetTypes      = 2
)

// Config is the full almanac service configuration.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	AdminToken  string

	Timezone           string
	SlotLabels         []string
	PlatformDailyCap   int
	ToleranceMinutes   int
	TargetPlatforms    int
	TargetContentTypes int

	WorkerEnabled  bool
	WorkerInterval time.Duration
}

// scheduleFile is the YAML overlay shape. Only the schedule knobs live
// in the file; connection strings stay in the environment.
type scheduleFile struct {
	Slots            []string `yaml:"slots"`
	Timezone         string   `yaml:"timezone"`
	PlatformDailyCap int      `yaml:"platform_daily_cap"`
	ToleranceMinutes int      `yaml:"tolerance_minutes"`
	Targets          struct {
		Platforms    int `yaml:"platforms"`
		ContentTypes int `yaml:"content_types"`
	} `yaml:"targets"`
}

// Load reads the configuration from the environment, applies the YAML
// overlay named by SCHEDULE_CONFIG_FILE if set, and validates the
// result.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        config.GetEnv("PORT", "18019"),
		DatabaseURL: config.GetEnv("DATABASE_URL", ""),
		RedisURL:    config.GetEnv("REDIS_URL", ""),
		AdminToken:  config.GetEnv("ADMIN_TOKEN", ""),

		Timezone:           config.GetEnv("SCHEDULE_TIMEZONE", DefaultTimezone),
		SlotLabels:         DefaultSlotLabels,
		PlatformDailyCap:   config.GetEnvInt("PLATFORM_DAILY_CAP", DefaultPlatformCap),
		ToleranceMinutes:   config.GetEnvInt("RECONCILE_TOLERANCE_MINUTES", DefaultToleranceMinutes),
		TargetPlatforms:    config.GetEnvInt("TARGET_PLATFORMS", DefaultTargetPlatforms),
		TargetContentTypes: config.GetEnvInt("TARGET_CONTENT_TYPES", DefaultTargetTypes),

		WorkerEnabled:  config.GetEnvBool("WORKER_ENABLED", true),
		WorkerInterval: config.GetEnvDuration("WORKER_INTERVAL", 30*time.Minute),
	}

	if path := config.GetEnv("SCHEDULE_CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.NewConfigurationError(fmt.Sprintf("reading schedule config %q", path), err)
	}
	var file scheduleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return models.NewConfigurationError(fmt.Sprintf("parsing schedule config %q", path), err)
	}

	if len(file.Slots) > 0 {
		c.SlotLabels = file.Slots
	}
	if file.Timezone != "" {
		c.Timezone = file.Timezone
	}
	if file.PlatformDailyCap > 0 {
		c.PlatformDailyCap = file.PlatformDailyCap
	}
	if file.ToleranceMinutes > 0 {
		c.ToleranceMinutes = file.ToleranceMinutes
	}
	if file.Targets.Platforms > 0 {
		c.TargetPlatforms = file.Targets.Platforms
	}
	if file.Targets.ContentTypes > 0 {
		c.TargetContentTypes = file.Targets.ContentTypes
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.SlotLabels) == 0 {
		return models.NewConfigurationError("at least one slot label is required", nil)
	}
	if c.PlatformDailyCap < 1 {
		return models.NewConfigurationError(fmt.Sprintf("platform daily cap must be positive, got %d", c.PlatformDailyCap), nil)
	}
	if c.ToleranceMinutes < 1 {
		return models.NewConfigurationError(fmt.Sprintf("reconcile tolerance must be positive, got %d", c.ToleranceMinutes), nil)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return models.NewConfigurationError(fmt.Sprintf("invalid timezone %q", c.Timezone), err)
	}
	return nil
}

// Location resolves the configured time zone. Call after validation.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Tolerance returns the reconcile tolerance as a duration.
func (c *Config) Tolerance() time.Duration {
	return time.Duration(c.ToleranceMinutes) * time.Minute
}

// Package model defines the data structures for the challenge editor's configuration, drafts, schedules and save state.
package model

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMinPhaseDurationMin   = 1
	DefaultMaxPhaseDurationHours = 720
	DefaultAutosaveDebounceSec   = 10
	DefaultMaxCheckpointPrizes   = 10
	DefaultMaxMilestones         = 52
	// MilestoneCountCeiling bounds limits.max_milestones.
	MilestoneCountCeiling = 1000
)

type Config struct {
	Project  ProjectConfig  `yaml:"project"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Limits   LimitsConfig   `yaml:"limits"`
	Store    StoreConfig    `yaml:"store"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type ScheduleConfig struct {
	MinPhaseDurationMin   int `yaml:"min_phase_duration_min"`
	MaxPhaseDurationHours int `yaml:"max_phase_duration_hours"`
	// FallbackPolicy decides where a phase with a broken predecessor starts:
	// "sequential" (after the previous phase) or "base_start".
	FallbackPolicy string `yaml:"fallback_policy"`
}

type AutosaveConfig struct {
	Enabled     bool    `yaml:"enabled"`
	DebounceSec float64 `yaml:"debounce_sec"`
}

type LimitsConfig struct {
	MaxCheckpointPrizes int `yaml:"max_checkpoint_prizes"`
	MaxMilestones       int `yaml:"max_milestones"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // "yaml" or "sqlite"
	Dir     string `yaml:"dir"`
	DSN     string `yaml:"dsn"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	AuditFile  string `yaml:"audit_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	cfg := Config{Autosave: AutosaveConfig{Enabled: true}}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig unmarshals YAML bytes into a validated Config.
func ParseConfig(data []byte) (Config, error) {
	cfg := Config{Autosave: AutosaveConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Schedule.MinPhaseDurationMin <= 0 {
		c.Schedule.MinPhaseDurationMin = DefaultMinPhaseDurationMin
	}
	if c.Schedule.MaxPhaseDurationHours <= 0 {
		c.Schedule.MaxPhaseDurationHours = DefaultMaxPhaseDurationHours
	}
	if c.Schedule.FallbackPolicy == "" {
		c.Schedule.FallbackPolicy = "sequential"
	}
	if c.Autosave.DebounceSec <= 0 {
		c.Autosave.DebounceSec = DefaultAutosaveDebounceSec
	}
	if c.Limits.MaxCheckpointPrizes <= 0 {
		c.Limits.MaxCheckpointPrizes = DefaultMaxCheckpointPrizes
	}
	if c.Limits.MaxMilestones <= 0 {
		c.Limits.MaxMilestones = DefaultMaxMilestones
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "yaml"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "drafts"
	}
	if c.Store.DSN == "" {
		c.Store.DSN = "challenges.db"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "catalog.yaml"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.AuditFile == "" {
		c.Logging.AuditFile = "logs/audit.jsonl"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = 14
	}
}

func (c *Config) Validate() error {
	var errs []string
	if c.Schedule.MinPhaseDurationMin > c.Schedule.MaxPhaseDurationHours*60 {
		errs = append(errs, "schedule.min_phase_duration_min exceeds schedule.max_phase_duration_hours")
	}
	switch c.Schedule.FallbackPolicy {
	case "sequential", "base_start":
	default:
		errs = append(errs, fmt.Sprintf("schedule.fallback_policy %q is not one of sequential, base_start", c.Schedule.FallbackPolicy))
	}
	if c.Limits.MaxMilestones > MilestoneCountCeiling {
		errs = append(errs, fmt.Sprintf("limits.max_milestones %d exceeds %d", c.Limits.MaxMilestones, MilestoneCountCeiling))
	}
	switch c.Store.Backend {
	case "yaml", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of yaml, sqlite", c.Store.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

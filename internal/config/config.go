package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults for tunables; env vars override yaml, yaml overrides these.
const (
	DefaultTEBaseURL       = "https://api.sandbox.ticketevolution.com/v9"
	DefaultBatchSize       = 10
	DefaultMaxRetries      = 3
	DefaultStaleLockMin    = 15
	DefaultRetentionDays   = 7
	DefaultEventTimeZone   = "America/Chicago"
	DefaultAPIPort         = 8080
)

type Config struct {
	DatabaseURL string `yaml:"database_url"`
	APIPort     int    `yaml:"api_port"`

	TEBaseURL   string `yaml:"te_base_url"`
	TEAPIToken  string `yaml:"te_api_token"`
	TEAPISecret string `yaml:"te_api_secret"`

	BatchSize        int `yaml:"batch_size"`
	MaxRetries       int `yaml:"max_retries"`
	StaleLockMinutes int `yaml:"stale_lock_minutes"`
	RetentionDays    int `yaml:"hourly_retention_days_after_end"`

	EventTimeZone    string `yaml:"event_timezone_default"`
	SchedulerEnabled bool   `yaml:"scheduler_enabled"`

	JobAuthSecret string `yaml:"job_auth_secret"`
	JobAPIKey     string `yaml:"job_api_key"`
	RedisURL      string `yaml:"redis_url"`
}

// Load reads an optional yaml file, then applies env overrides and defaults.
// A missing file is not an error; env-only deployments are the common case.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setStr := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, keys ...string) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					*dst = n
					return
				}
			}
		}
	}

	setStr(&c.DatabaseURL, "DATABASE_URL", "DB_URL")
	setInt(&c.APIPort, "PORT")
	setStr(&c.TEBaseURL, "TE_API_BASE_URL")
	setStr(&c.TEAPIToken, "TE_API_TOKEN")
	setStr(&c.TEAPISecret, "TE_API_SECRET")
	setInt(&c.BatchSize, "BATCH_SIZE")
	setInt(&c.MaxRetries, "MAX_RETRIES")
	setInt(&c.StaleLockMinutes, "STALE_LOCK_MINUTES")
	setInt(&c.RetentionDays, "HOURLY_RETENTION_DAYS_AFTER_END")
	setStr(&c.EventTimeZone, "EVENT_TIMEZONE_DEFAULT")
	setStr(&c.JobAuthSecret, "JOB_AUTH_SECRET")
	setStr(&c.JobAPIKey, "JOB_API_KEY")
	setStr(&c.RedisURL, "REDIS_URL")

	if v := strings.TrimSpace(os.Getenv("SCHEDULER_ENABLED")); v != "" {
		c.SchedulerEnabled = v == "1" || strings.EqualFold(v, "true")
	}
}

func (c *Config) applyDefaults() {
	if c.APIPort == 0 {
		c.APIPort = DefaultAPIPort
	}
	if c.TEBaseURL == "" {
		c.TEBaseURL = DefaultTEBaseURL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.StaleLockMinutes <= 0 {
		c.StaleLockMinutes = DefaultStaleLockMin
	}
	// Invalid retention values fall back to the default rather than erroring:
	// retention must never be silently disabled by a typo'd env var.
	if c.RetentionDays < 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.RetentionDays == 0 && os.Getenv("HOURLY_RETENTION_DAYS_AFTER_END") == "" {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.EventTimeZone == "" {
		c.EventTimeZone = DefaultEventTimeZone
	}
}

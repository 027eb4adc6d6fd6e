// Package config loads the immutable runtime configuration for jobscraps.
//
// Configuration comes from a JSON file (default: configs/jobscraps.json),
// with JOBSCRAPS_* environment variables overriding file values. Every
// component receives its slice of the Config value at construction time;
// nothing reads configuration ambiently after startup.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Target selects which database a command operates against.
type Target string

const (
	TargetPrimary Target = "primary"
	TargetWorking Target = "working"
)

type Config struct {
	Primary DatabaseConfig `json:"primary_database"`
	Working DatabaseConfig `json:"working_database"`
	Backup  BackupConfig   `json:"backup"`
	Dedupe  DedupeConfig   `json:"dedupe"`
	Scrape  ScrapeConfig   `json:"scrape"`
	Server  ServerConfig   `json:"server"`
	Log     LogConfig      `json:"log"`
}

// DatabaseConfig holds connection parameters for one named database.
// The discrete fields (rather than a single URL) are deliberate: the dump
// and restore subprocesses need host/port/user/dbname as separate arguments.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"database"`
	User     string `json:"username"`
	Password string `json:"password"`

	ConnectTimeoutSeconds int `json:"connect_timeout"`
	RetryAttempts         int `json:"retry_attempts"`
	RetryDelaySeconds     int `json:"retry_delay"`
}

// URL renders the pgx connection string for this database.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?connect_timeout=%d",
		d.User, d.Password, d.Host, d.Port, d.Name, d.ConnectTimeoutSeconds)
}

// WithName returns a copy of d pointing at a different database on the
// same server. Used for maintenance-database connections and working copies.
func (d DatabaseConfig) WithName(name string) DatabaseConfig {
	d.Name = name
	return d
}

func (d DatabaseConfig) RetryDelay() time.Duration {
	return time.Duration(d.RetryDelaySeconds) * time.Second
}

type BackupConfig struct {
	Dir                   string  `json:"dir"`
	RetryAttempts         int     `json:"retry_attempts"`
	RetryDelaySeconds     int     `json:"retry_delay"`
	CommandTimeoutSeconds int     `json:"command_timeout"`
	MaxCount              int     `json:"max_count"`
	TargetCount           int     `json:"target_count"`
	MaxSizeGB             float64 `json:"max_size_gb"`
	TargetSizeGB          float64 `json:"target_size_gb"`
}

func (b BackupConfig) RetryDelay() time.Duration {
	return time.Duration(b.RetryDelaySeconds) * time.Second
}

func (b BackupConfig) CommandTimeout() time.Duration {
	return time.Duration(b.CommandTimeoutSeconds) * time.Second
}

type DedupeConfig struct {
	// RegionPatterns are matched case-insensitively against posting
	// locations; a match counts as "in the target region".
	RegionPatterns []string `json:"region_patterns"`
	// SitePreference is a total order over source sites, most trusted first.
	SitePreference []string `json:"site_preference"`
	DeleteListPath string   `json:"delete_list_path"`
}

type ScrapeConfig struct {
	SourceURL        string `json:"source_url"`
	SearchConfigPath string `json:"search_config_path"`
	Concurrency      int    `json:"concurrency"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	CronSpec string `json:"cron_spec"`
}

type LogConfig struct {
	Level string `json:"level"`
}

func defaults() Config {
	db := DatabaseConfig{
		Host:                  "127.0.0.1",
		Port:                  5432,
		Name:                  "jobscraps",
		User:                  "jobscraps",
		ConnectTimeoutSeconds: 30,
		RetryAttempts:         3,
		RetryDelaySeconds:     5,
	}
	return Config{
		Primary: db,
		Working: db.WithName("jobscraps_working"),
		Backup: BackupConfig{
			Dir:                   "backups",
			RetryAttempts:         3,
			RetryDelaySeconds:     5,
			CommandTimeoutSeconds: 300,
			MaxCount:              48,
			TargetCount:           44,
			MaxSizeGB:             4.8,
			TargetSizeGB:          4.5,
		},
		Dedupe: DedupeConfig{
			RegionPatterns: []string{", CO", "Colorado"},
			SitePreference: []string{"linkedin", "indeed", "glassdoor", "google"},
			DeleteListPath: "configs/delete_ids.txt",
		},
		Scrape: ScrapeConfig{
			SourceURL:        "http://127.0.0.1:8000",
			SearchConfigPath: "configs/job_search.json",
			Concurrency:      3,
		},
		Server: ServerConfig{
			Port:     8090,
			CronSpec: "@every 6h",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the config file at path (if it exists) over the defaults and
// then applies environment overrides. A missing file is not an error; a
// malformed one is.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults + env only.
	case err != nil:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Primary.Name == cfg.Working.Name {
		return Config{}, fmt.Errorf("primary and working database must differ (both %q)", cfg.Primary.Name)
	}
	return cfg, nil
}

// Database returns the connection parameters for the given target.
func (c Config) Database(t Target) DatabaseConfig {
	if t == TargetWorking {
		return c.Working
	}
	return c.Primary
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Primary.Host, "JOBSCRAPS_PRIMARY_HOST")
	setInt(&cfg.Primary.Port, "JOBSCRAPS_PRIMARY_PORT")
	setString(&cfg.Primary.Name, "JOBSCRAPS_PRIMARY_DATABASE")
	setString(&cfg.Primary.User, "JOBSCRAPS_PRIMARY_USER")
	setString(&cfg.Primary.Password, "JOBSCRAPS_PRIMARY_PASSWORD")

	setString(&cfg.Working.Host, "JOBSCRAPS_WORKING_HOST")
	setInt(&cfg.Working.Port, "JOBSCRAPS_WORKING_PORT")
	setString(&cfg.Working.Name, "JOBSCRAPS_WORKING_DATABASE")
	setString(&cfg.Working.User, "JOBSCRAPS_WORKING_USER")
	setString(&cfg.Working.Password, "JOBSCRAPS_WORKING_PASSWORD")

	setString(&cfg.Backup.Dir, "JOBSCRAPS_BACKUP_DIR")
	setString(&cfg.Scrape.SourceURL, "JOBSCRAPS_SCRAPE_SOURCE_URL")
	setInt(&cfg.Server.Port, "JOBSCRAPS_SERVER_PORT")
	setString(&cfg.Log.Level, "JOBSCRAPS_LOG_LEVEL")
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key   string
	Value string
}

// ShowAll returns the effective non-secret configuration as key/value pairs.
func ShowAll(cfg Config) []KeyInfo {
	return []KeyInfo{
		{"primary.host", cfg.Primary.Host},
		{"primary.port", strconv.Itoa(cfg.Primary.Port)},
		{"primary.database", cfg.Primary.Name},
		{"primary.username", cfg.Primary.User},
		{"working.database", cfg.Working.Name},
		{"backup.dir", cfg.Backup.Dir},
		{"backup.max_count", strconv.Itoa(cfg.Backup.MaxCount)},
		{"backup.target_count", strconv.Itoa(cfg.Backup.TargetCount)},
		{"backup.max_size_gb", fmt.Sprintf("%g", cfg.Backup.MaxSizeGB)},
		{"backup.target_size_gb", fmt.Sprintf("%g", cfg.Backup.TargetSizeGB)},
		{"dedupe.delete_list_path", cfg.Dedupe.DeleteListPath},
		{"scrape.source_url", cfg.Scrape.SourceURL},
		{"scrape.search_config_path", cfg.Scrape.SearchConfigPath},
		{"server.port", strconv.Itoa(cfg.Server.Port)},
		{"server.cron_spec", cfg.Server.CronSpec},
		{"log.level", cfg.Log.Level},
	}
}

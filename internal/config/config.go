package config

import (
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/presence"
)

// Config holds runtime settings for the buddy binary.
//
// Units: HeartbeatInterval, OnlineThreshold and WatchInterval are
// time.Duration values.
type Config struct {
	// DataPath is the SQLite file shared by every buddy process of a user.
	DataPath string
	// Room selects a cloud room at startup; empty means local mode.
	Room string
	// LocalOnly disables the cloud mirror even when RedisAddr is set.
	LocalOnly     bool
	RedisAddr     string
	RedisPassword string

	HeartbeatInterval time.Duration
	OnlineThreshold   time.Duration
	WatchInterval     time.Duration

	// HTTPAddr enables the web UI when not empty.
	HTTPAddr string
	// Headless skips the REPL; the process runs until signalled.
	Headless bool
	// BaseURL is the page room links point at.
	BaseURL string

	BackupDir   string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DataPath = "buddy.db"
	c.HeartbeatInterval = presence.DefaultHeartbeatInterval
	c.OnlineThreshold = presence.DefaultOnlineThreshold
	c.WatchInterval = 500 * time.Millisecond
	c.BaseURL = "http://localhost:8080/"
	c.BackupDir = "."
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CloudAddr returns the Redis address to dial, or "" for local mode.
func (c *Config) CloudAddr() string {
	if c.LocalOnly {
		return ""
	}
	return c.RedisAddr
}

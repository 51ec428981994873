package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/buddyinbox/internal/flagx"
	"github.com/dmitrijs2005/buddyinbox/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "4s" or as integer nanoseconds. Only fields present in the
// file override the defaults.
type JsonConfig struct {
	DataPath          string         `json:"data_path"`
	Room              string         `json:"room"`
	LocalOnly         *bool          `json:"local_only"`
	RedisAddr         string         `json:"redis_addr"`
	RedisPassword     string         `json:"redis_password"`
	HeartbeatInterval timex.Duration `json:"heartbeat_interval"`
	OnlineThreshold   timex.Duration `json:"online_threshold"`
	WatchInterval     timex.Duration `json:"watch_interval"`
	HTTPAddr          string         `json:"http_addr"`
	BaseURL           string         `json:"base_url"`
	BackupDir         string         `json:"backup_dir"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3Endpoint        string         `json:"s3_endpoint"`
	S3AccessKey       string         `json:"s3_access_key"`
	S3SecretKey       string         `json:"s3_secret_key"`
	LogLevel          string         `json:"log_level"`
	LogFormat         string         `json:"log_format"`
}

// parseJson overlays cfg with the JSON file named by -c/-config (or
// $BUDDY_CONFIG). No file configured means no changes.
func parseJson(cfg *Config) error {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return nil
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config %s: %w", jsonConfigFile, err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	jc.apply(cfg)
	return nil
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.DataPath, jc.DataPath)
	setString(&cfg.Room, jc.Room)
	setString(&cfg.RedisAddr, jc.RedisAddr)
	setString(&cfg.RedisPassword, jc.RedisPassword)
	setString(&cfg.HTTPAddr, jc.HTTPAddr)
	setString(&cfg.BaseURL, jc.BaseURL)
	setString(&cfg.BackupDir, jc.BackupDir)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)

	if jc.LocalOnly != nil {
		cfg.LocalOnly = *jc.LocalOnly
	}
	if jc.HeartbeatInterval.Duration > 0 {
		cfg.HeartbeatInterval = jc.HeartbeatInterval.Duration
	}
	if jc.OnlineThreshold.Duration > 0 {
		cfg.OnlineThreshold = jc.OnlineThreshold.Duration
	}
	if jc.WatchInterval.Duration > 0 {
		cfg.WatchInterval = jc.WatchInterval.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

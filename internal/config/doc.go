// Package config loads runtime configuration for the buddy binary.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c / -config or $BUDDY_CONFIG.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "4s" or
// integer nanoseconds:
//
//	{
//	  "data_path": "buddy.db",
//	  "redis_addr": "127.0.0.1:6379",
//	  "heartbeat_interval": "4s",
//	  "online_threshold": "10s",
//	  "watch_interval": "500ms",
//	  "http_addr": ":8080",
//	  "s3_bucket": "buddy-backups"
//	}
//
// Secrets (redis_password, s3_secret_key) are only read from the file.
package config

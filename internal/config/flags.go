package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/flagx"
	"github.com/dmitrijs2005/buddyinbox/internal/roomlink"
)

var (
	valueFlags = []string{"-d", "-room", "-link", "-redis", "-hb", "-w", "-http", "-b", "-l"}
	boolFlags  = []string{"-local", "-headless"}
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string     SQLite data file
//	-room string  room id to join
//	-link string  room link to join (its room parameter wins over -room)
//	-redis string cloud mirror address host:port
//	-local        ignore the cloud mirror
//	-headless     no REPL; serve the web UI only
//	-hb int       heartbeat interval in seconds
//	-w int        store watch interval in milliseconds
//	-http string  web UI listen address
//	-b string     backup directory
//	-l string     log level
//
// os.Args is filtered with flagx.FilterArgs first so the config-file flags
// do not trip the parser.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], valueFlags, boolFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataPath, "d", cfg.DataPath, "SQLite data file")
	fs.StringVar(&cfg.Room, "room", cfg.Room, "room id to join")
	link := fs.String("link", "", "room link to join")
	fs.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "cloud mirror (Redis) address")
	fs.BoolVar(&cfg.LocalOnly, "local", cfg.LocalOnly, "run without the cloud mirror")
	fs.BoolVar(&cfg.Headless, "headless", cfg.Headless, "run without the interactive prompt")
	heartbeat := fs.Int("hb", int(cfg.HeartbeatInterval.Seconds()), "heartbeat interval (in seconds)")
	watch := fs.Int("w", int(cfg.WatchInterval.Milliseconds()), "store watch interval (in milliseconds)")
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "web UI listen address")
	fs.StringVar(&cfg.BackupDir, "b", cfg.BackupDir, "backup directory")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["hb"] {
		if *heartbeat <= 0 {
			return fmt.Errorf("heartbeat interval must be positive, got %d", *heartbeat)
		}
		cfg.HeartbeatInterval = time.Duration(*heartbeat) * time.Second
	}
	if set["w"] {
		if *watch <= 0 {
			return fmt.Errorf("watch interval must be positive, got %d", *watch)
		}
		cfg.WatchInterval = time.Duration(*watch) * time.Millisecond
	}

	if *link != "" {
		room, err := roomlink.Parse(*link)
		if err != nil {
			return fmt.Errorf("parse -link: %w", err)
		}
		cfg.Room = room
	}
	return nil
}

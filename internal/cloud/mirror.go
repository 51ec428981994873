package cloud

import (
	"context"
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
	"github.com/redis/go-redis/v9"
)

// Mirror is the shared message log of a room.
type Mirror interface {
	Enabled() bool
	Append(ctx context.Context, room string, m models.Message) error
	// Subscribe delivers every existing and future message of room, in
	// stream order, until the subscription is closed.
	Subscribe(ctx context.Context, room string, onAdded func(models.Message)) (Subscription, error)
	Clear(ctx context.Context, room string) error
	Close() error
}

type Subscription interface {
	// Close stops delivery. No callback runs after Close returns.
	Close() error
}

type Config struct {
	Addr     string
	Password string
	// Block bounds a single blocking read, and so how long Close may wait.
	Block time.Duration
}

const pingTimeout = 3 * time.Second

// Open connects to Redis when cfg.Addr is set. Any failure degrades to
// LocalOnly; the caller never sees an error.
func Open(ctx context.Context, cfg Config, log logging.Logger) Mirror {
	if cfg.Addr == "" {
		log.Info(ctx, "cloud mirror not configured, running local only")
		return LocalOnly{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:                  cfg.Addr,
		Password:              cfg.Password,
		ContextTimeoutEnabled: true,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Warn(ctx, "cloud mirror unavailable, running local only", "addr", cfg.Addr, "error", err)
		return LocalOnly{}
	}

	log.Info(ctx, "cloud mirror connected", "addr", cfg.Addr)
	return NewRedisMirror(client, cfg.Block, log)
}

// LocalOnly is the mirror used when no cloud is available. Every operation
// succeeds without doing anything.
type LocalOnly struct{}

func (LocalOnly) Enabled() bool                                         { return false }
func (LocalOnly) Append(context.Context, string, models.Message) error { return nil }
func (LocalOnly) Clear(context.Context, string) error                   { return nil }
func (LocalOnly) Close() error                                          { return nil }

func (LocalOnly) Subscribe(context.Context, string, func(models.Message)) (Subscription, error) {
	return nopSubscription{}, nil
}

type nopSubscription struct{}

func (nopSubscription) Close() error { return nil }

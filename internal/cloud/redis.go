package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBlock = time.Second
	readCount    = 100
	msgField     = "msg"
)

// StreamKey returns the Redis stream holding room's messages.
func StreamKey(room string) string {
	return "rooms:" + room + ":messages"
}

type RedisMirror struct {
	client *redis.Client
	block  time.Duration
	log    logging.Logger
}

func NewRedisMirror(client *redis.Client, block time.Duration, log logging.Logger) *RedisMirror {
	if block <= 0 {
		block = defaultBlock
	}
	return &RedisMirror{client: client, block: block, log: log}
}

func (r *RedisMirror) Enabled() bool { return true }

func (r *RedisMirror) Close() error { return r.client.Close() }

func (r *RedisMirror) Append(ctx context.Context, room string, m models.Message) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return ErrNoRoom
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(room),
		Values: map[string]any{msgField: string(payload)},
	}).Err(); err != nil {
		return fmt.Errorf("append to room %s: %w", room, err)
	}
	return nil
}

func (r *RedisMirror) Clear(ctx context.Context, room string) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return ErrNoRoom
	}
	if err := r.client.Del(ctx, StreamKey(room)).Err(); err != nil {
		return fmt.Errorf("clear room %s: %w", room, err)
	}
	return nil
}

func (r *RedisMirror) Subscribe(ctx context.Context, room string, onAdded func(models.Message)) (Subscription, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, ErrNoRoom
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{cancel: cancel, done: make(chan struct{})}
	go r.readLoop(subCtx, room, onAdded, sub.done)
	return sub, nil
}

func (r *RedisMirror) readLoop(ctx context.Context, room string, onAdded func(models.Message), done chan struct{}) {
	defer close(done)

	stream := StreamKey(room)
	lastID := "0-0"
	log := r.log.With("room", room)

	for {
		if ctx.Err() != nil {
			return
		}

		res, err := r.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Count:   readCount,
			Block:   r.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn(ctx, "room read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.block):
			}
			continue
		}

		for _, s := range res {
			for _, entry := range s.Messages {
				lastID = entry.ID
				m, ok := decodeEntry(entry)
				if !ok {
					log.Warn(ctx, "skipping malformed room entry", "id", entry.ID)
					continue
				}
				if ctx.Err() != nil {
					return
				}
				onAdded(m)
			}
		}
	}
}

func decodeEntry(entry redis.XMessage) (models.Message, bool) {
	raw, ok := entry.Values[msgField].(string)
	if !ok {
		return models.Message{}, false
	}
	var m models.Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.Message{}, false
	}
	if m.ID == "" {
		return models.Message{}, false
	}
	return m, true
}

type redisSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *redisSubscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

// Package presence keeps the heartbeat map that tells whether a user is
// online. Heartbeats go through the local store so every process sharing
// it sees the same map.
package presence

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/clock"
	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/logging"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
)

const (
	DefaultHeartbeatInterval = 4 * time.Second
	DefaultOnlineThreshold   = 10 * time.Second
)

type Options struct {
	HeartbeatInterval time.Duration
	OnlineThreshold   time.Duration
	// OnBeat runs after every heartbeat written by the background loop.
	OnBeat func()
}

type Tracker struct {
	store *localstore.Store
	clk   clock.Clock
	log   logging.Logger
	opts  Options

	mu       sync.Mutex
	presence models.Presence

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewTracker(store *localstore.Store, clk clock.Clock, log logging.Logger, opts Options) *Tracker {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.OnlineThreshold <= 0 {
		opts.OnlineThreshold = DefaultOnlineThreshold
	}
	return &Tracker{
		store:    store,
		clk:      clk,
		log:      log,
		opts:     opts,
		presence: models.Presence{},
	}
}

// Reload replaces the in-memory map with the stored one.
func (t *Tracker) Reload(ctx context.Context) {
	p := models.Presence{}
	if !t.store.GetJSON(ctx, localstore.KeyPresence, &p) || p == nil {
		p = models.Presence{}
	}
	t.mu.Lock()
	t.presence = p
	t.mu.Unlock()
}

// Heartbeat stamps user with the current time. The stored map is re-read
// first so entries written by other processes survive.
func (t *Tracker) Heartbeat(ctx context.Context, user string) error {
	if user == "" {
		return nil
	}
	t.Reload(ctx)

	t.mu.Lock()
	t.presence[user] = clock.Millis(t.clk)
	snapshot := maps.Clone(t.presence)
	t.mu.Unlock()

	return t.store.SetJSON(ctx, localstore.KeyPresence, snapshot)
}

// Start beats for user now and then every HeartbeatInterval until Stop or
// ctx is done. A previous loop is stopped first.
func (t *Tracker) Start(ctx context.Context, user string) error {
	t.Stop()
	if user == "" {
		return nil
	}
	if err := t.Heartbeat(ctx, user); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.loopMu.Lock()
	t.cancel = cancel
	t.done = done
	t.loopMu.Unlock()

	go t.loop(loopCtx, user, done)
	return nil
}

func (t *Tracker) loop(ctx context.Context, user string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.Heartbeat(ctx, user); err != nil {
				t.log.Warn(ctx, "heartbeat failed", "user", user, "error", err)
				continue
			}
			if t.opts.OnBeat != nil {
				t.opts.OnBeat()
			}
		}
	}
}

// Stop ends the heartbeat loop and waits for it. It is a no-op when no loop
// runs.
func (t *Tracker) Stop() {
	t.loopMu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Tracker) Running() bool {
	t.loopMu.Lock()
	defer t.loopMu.Unlock()
	return t.cancel != nil
}

func (t *Tracker) IsOnline(user string) bool {
	last, ok := t.LastSeen(user)
	if !ok {
		return false
	}
	return clock.Millis(t.clk)-last < t.opts.OnlineThreshold.Milliseconds()
}

func (t *Tracker) LastSeen(user string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.presence[user]
	return ts, ok
}

// Map returns a copy of the presence map.
func (t *Tracker) Map() models.Presence {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.presence)
}

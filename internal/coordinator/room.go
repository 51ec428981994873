package coordinator

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/buddyinbox/internal/cloud"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
	"github.com/dmitrijs2005/buddyinbox/internal/roomlink"
)

// SwitchRoom leaves the current room and joins room. An empty room returns
// to local mode. The old subscription is closed before any state of the new
// source is read.
func (c *Coordinator) SwitchRoom(ctx context.Context, room string) error {
	room = strings.TrimSpace(room)

	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return ErrLocked
	}
	old := c.detachLocked()
	c.room = room
	c.src = c.sourceFor(room)
	c.ledger.Replace(nil)
	gen := c.gen
	c.mu.Unlock()

	closeSub(old)

	c.mu.Lock()
	if c.gen != gen {
		// another switch won the race
		c.mu.Unlock()
		return nil
	}
	c.src.load(ctx)
	c.mu.Unlock()

	if err := c.attach(); err != nil {
		c.log.Warn(ctx, "room subscribe failed", "room", room, "error", err)
		return err
	}

	c.log.Info(ctx, "room switched", "room", room)
	c.emit()
	return nil
}

// CreateRoom joins want, or a fresh random room when want is blank, and
// returns the room id.
func (c *Coordinator) CreateRoom(ctx context.Context, want string) (string, error) {
	room := strings.TrimSpace(want)
	if room == "" {
		room = roomlink.NewID()
	}
	if err := c.SwitchRoom(ctx, room); err != nil {
		return "", err
	}
	return room, nil
}

// RoomLink returns the shareable link of the current room, or "" in local
// mode.
func (c *Coordinator) RoomLink() (string, error) {
	room := c.Room()
	if room == "" {
		return "", nil
	}
	return roomlink.Build(c.baseURL, room)
}

// attach subscribes to the room when one is active, a user is logged in
// and no subscription runs yet.
func (c *Coordinator) attach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rs, ok := c.src.(*roomSource)
	if !ok || c.sub != nil || !c.session.LoggedIn() {
		return nil
	}
	sub, err := c.mirror.Subscribe(c.bg, rs.room, c.onRemote(c.gen))
	if err != nil {
		return err
	}
	c.sub = sub
	return nil
}

func (c *Coordinator) onRemote(gen uint64) func(models.Message) {
	return func(m models.Message) {
		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		added := c.ledger.Add(m)
		c.mu.Unlock()

		if added {
			c.emit()
		}
	}
}

// detachLocked invalidates pending deliveries and hands back the running
// subscription. The caller closes it after releasing c.mu.
func (c *Coordinator) detachLocked() cloud.Subscription {
	c.gen++
	sub := c.sub
	c.sub = nil
	return sub
}

func (c *Coordinator) detachIfRemoteLocked() cloud.Subscription {
	if !c.src.remote() {
		return nil
	}
	sub := c.detachLocked()
	c.ledger.Replace(nil)
	return sub
}

func closeSub(sub cloud.Subscription) {
	if sub != nil {
		_ = sub.Close()
	}
}

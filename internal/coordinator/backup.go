package coordinator

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/buddyinbox/internal/backup"
	"github.com/dmitrijs2005/buddyinbox/internal/cloud"
)

// Export serializes the whole store.
func (c *Coordinator) Export(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Locked {
		return nil, ErrLocked
	}
	return backup.Export(ctx, c.store, c.clk.Now())
}

// Import restores a backup over the store and reloads everything,
// including the current session.
func (c *Coordinator) Import(ctx context.Context, raw []byte) error {
	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return ErrLocked
	}
	if err := backup.Import(ctx, c.store, raw); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("import: %w", err)
	}

	prev := c.session.CurrentUser
	c.readUsersLocked(ctx)
	c.readCurrentUserLocked(ctx)
	c.readLockLocked(ctx)
	c.tracker.Reload(ctx)
	if !c.src.remote() {
		c.src.load(ctx)
	}
	user := c.session.CurrentUser
	sub := c.detachIfLoggedOutLocked()
	c.mu.Unlock()
	closeSub(sub)

	if user != prev {
		if user == "" {
			c.tracker.Stop()
		} else if err := c.tracker.Start(c.bg, user); err != nil {
			c.log.Warn(ctx, "presence start failed", "user", user, "error", err)
		}
	}
	if err := c.attach(); err != nil {
		c.log.Warn(ctx, "room subscribe failed", "error", err)
	}

	c.log.Info(ctx, "backup imported", "user", user)
	c.emit()
	return nil
}

func (c *Coordinator) detachIfLoggedOutLocked() cloud.Subscription {
	if c.session.LoggedIn() {
		return nil
	}
	return c.detachIfRemoteLocked()
}

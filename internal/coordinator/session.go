package coordinator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/lock"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
)

// Login makes name the only user and the current session, then starts its
// heartbeat. A blank name is ignored.
func (c *Coordinator) Login(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return ErrLocked
	}
	c.users = []string{name}
	c.session.CurrentUser = name
	err := c.store.SetJSON(ctx, localstore.KeyUsers, c.users)
	if err == nil {
		err = c.store.SetJSON(ctx, localstore.KeyCurrentUser, name)
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Error(ctx, "login persist failed", "user", name, "error", err)
		return fmt.Errorf("login: %w", err)
	}

	if err := c.tracker.Start(c.bg, name); err != nil {
		c.log.Warn(ctx, "presence start failed", "user", name, "error", err)
	}
	if err := c.attach(); err != nil {
		c.log.Warn(ctx, "room subscribe failed", "error", err)
	}

	c.log.Info(ctx, "logged in", "user", name)
	c.emit()
	return nil
}

// Logout stops the heartbeat and forgets the current session. The user
// card and the messages stay.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return ErrLocked
	}
	c.mu.Unlock()

	c.tracker.Stop()

	c.mu.Lock()
	user := c.session.CurrentUser
	c.session.CurrentUser = ""
	err := c.store.Remove(ctx, localstore.KeyCurrentUser)
	sub := c.detachIfRemoteLocked()
	c.mu.Unlock()
	closeSub(sub)

	if err != nil {
		c.log.Error(ctx, "logout persist failed", "error", err)
		return fmt.Errorf("logout: %w", err)
	}

	c.log.Info(ctx, "logged out", "user", user)
	c.emit()
	return nil
}

// RemoveUser drops name from the user list. The session is left alone.
func (c *Coordinator) RemoveUser(ctx context.Context, name string) error {
	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return ErrLocked
	}
	c.users = slices.DeleteFunc(slices.Clone(c.users), func(u string) bool { return u == name })
	err := c.store.SetJSON(ctx, localstore.KeyUsers, c.users)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("remove user: %w", err)
	}
	c.emit()
	return nil
}

// Lock raises the lock screen.
func (c *Coordinator) Lock(ctx context.Context) error {
	c.mu.Lock()
	hash, _ := c.store.GetString(ctx, localstore.KeyPinHash)
	c.session.PinHash = hash
	err := c.setLockedLocked(ctx, true)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	c.emit()
	return nil
}

// Unlock checks pin against the stored hash. Without a stored hash the pin
// becomes the new one.
func (c *Coordinator) Unlock(ctx context.Context, pin string) (lock.Result, error) {
	c.mu.Lock()
	hash, _ := c.store.GetString(ctx, localstore.KeyPinHash)
	c.session.PinHash = hash

	res, newHash := lock.Check(pin, hash)
	var err error
	switch res {
	case lock.ResultSet:
		if err = c.store.SetString(ctx, localstore.KeyPinHash, newHash); err == nil {
			c.session.PinHash = newHash
			err = c.setLockedLocked(ctx, false)
		}
	case lock.ResultUnlocked:
		err = c.setLockedLocked(ctx, false)
	}
	c.mu.Unlock()

	if err != nil {
		return res, fmt.Errorf("unlock: %w", err)
	}
	if res == lock.ResultSet || res == lock.ResultUnlocked {
		c.emit()
	}
	return res, nil
}

func (c *Coordinator) OverlayMode() models.OverlayMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return lock.ModeFor(c.session.Locked, c.session.PinHash)
}

func (c *Coordinator) setLockedLocked(ctx context.Context, locked bool) error {
	if err := c.store.SetJSON(ctx, localstore.KeyLocked, locked); err != nil {
		return err
	}
	c.session.Locked = locked
	return nil
}

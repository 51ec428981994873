package coordinator

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/buddyinbox/internal/models"
)

// Send posts body from the current user to their buddy, who is the user
// themself. Blank bodies and logged-out sessions are ignored.
func (c *Coordinator) Send(ctx context.Context, body string) (bool, error) {
	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return false, ErrLocked
	}
	user := c.session.CurrentUser
	if user == "" {
		c.mu.Unlock()
		return false, nil
	}
	sent, err := c.src.send(ctx, user, buddyOf(user), body)
	c.mu.Unlock()

	if err != nil {
		c.log.Error(ctx, "send failed", "error", err)
		return false, fmt.Errorf("send: %w", err)
	}
	if sent {
		c.emit()
	}
	return sent, nil
}

// OpenConversation returns the conversation with the buddy and marks it
// read, persisting only when a receipt was added.
func (c *Coordinator) OpenConversation(ctx context.Context) ([]models.Message, error) {
	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return nil, ErrLocked
	}
	user := c.session.CurrentUser
	if user == "" {
		c.mu.Unlock()
		return nil, nil
	}
	buddy := buddyOf(user)
	conv := c.ledger.Conversation(user, buddy)
	changed, err := c.src.markRead(ctx, user, buddy)
	c.mu.Unlock()

	if err != nil {
		c.log.Error(ctx, "mark read failed", "error", err)
		return conv, fmt.Errorf("mark read: %w", err)
	}
	if changed {
		c.emit()
	}
	return conv, nil
}

// DeleteConversation removes the conversation with the buddy. In a room
// the whole remote stream is dropped.
func (c *Coordinator) DeleteConversation(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return 0, ErrLocked
	}
	user := c.session.CurrentUser
	if user == "" {
		c.mu.Unlock()
		return 0, nil
	}
	n, err := c.src.deleteConversation(ctx, user, buddyOf(user))
	c.mu.Unlock()

	if err != nil {
		c.log.Error(ctx, "delete conversation failed", "error", err)
		return n, fmt.Errorf("delete conversation: %w", err)
	}
	c.log.Info(ctx, "conversation deleted", "removed", n)
	c.emit()
	return n, nil
}

// ClearAll removes every message.
func (c *Coordinator) ClearAll(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.session.Locked {
		c.mu.Unlock()
		return 0, ErrLocked
	}
	n, err := c.src.clear(ctx)
	c.mu.Unlock()

	if err != nil {
		c.log.Error(ctx, "clear failed", "error", err)
		return n, fmt.Errorf("clear: %w", err)
	}
	c.log.Info(ctx, "messages cleared", "removed", n)
	c.emit()
	return n, nil
}

// buddyOf returns who user talks to. Every user is their own buddy.
func buddyOf(user string) string {
	return user
}

package coordinator

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
)

// source decides where messages are persisted. Methods run with c.mu held.
type source interface {
	remote() bool
	// load rebuilds the ledger from the source's own storage.
	load(ctx context.Context)
	send(ctx context.Context, from, to, body string) (bool, error)
	markRead(ctx context.Context, viewer, buddy string) (bool, error)
	deleteConversation(ctx context.Context, a, b string) (int, error)
	clear(ctx context.Context) (int, error)
}

// sourceFor is the only place that picks between local and room mode.
func (c *Coordinator) sourceFor(room string) source {
	if room != "" && c.mirror.Enabled() {
		return &roomSource{c: c, room: room}
	}
	return &localSource{c: c}
}

type localSource struct {
	c *Coordinator
}

func (s *localSource) remote() bool { return false }

func (s *localSource) load(ctx context.Context) {
	var msgs []models.Message
	if !s.c.store.GetJSON(ctx, localstore.KeyMessages, &msgs) {
		msgs = nil
	}
	s.c.ledger.Replace(msgs)
}

// mutate reloads the stored list into the ledger, applies fn and writes
// the result back, all inside one store update. Messages another process
// stored since the last poll are kept. fn reports whether it changed
// anything; nothing is written otherwise.
func (s *localSource) mutate(ctx context.Context, fn func() bool) (bool, error) {
	changed, err := localstore.UpdateJSON(ctx, s.c.store, localstore.KeyMessages,
		func(cur []models.Message) ([]models.Message, bool, error) {
			s.c.ledger.Replace(cur)
			if !fn() {
				return nil, false, nil
			}
			return s.c.ledger.Messages(), true, nil
		})
	if err != nil {
		// the ledger may hold a change that never reached the store
		s.load(ctx)
		return false, fmt.Errorf("persist messages: %w", err)
	}
	return changed, nil
}

func (s *localSource) send(ctx context.Context, from, to, body string) (bool, error) {
	return s.mutate(ctx, func() bool {
		_, ok := s.c.ledger.Append(from, to, body, s.c.clk)
		return ok
	})
}

func (s *localSource) markRead(ctx context.Context, viewer, buddy string) (bool, error) {
	return s.mutate(ctx, func() bool {
		return s.c.ledger.MarkRead(viewer, buddy)
	})
}

func (s *localSource) deleteConversation(ctx context.Context, a, b string) (int, error) {
	var n int
	_, err := s.mutate(ctx, func() bool {
		n = s.c.ledger.DeleteConversation(a, b)
		return n > 0
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *localSource) clear(ctx context.Context) (int, error) {
	var n int
	_, err := s.mutate(ctx, func() bool {
		n = s.c.ledger.Clear()
		return n > 0
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

type roomSource struct {
	c    *Coordinator
	room string
}

func (s *roomSource) remote() bool { return true }

// load drops whatever is held; the subscription refills the ledger.
func (s *roomSource) load(context.Context) {
	s.c.ledger.Replace(nil)
}

func (s *roomSource) send(ctx context.Context, from, to, body string) (bool, error) {
	m, ok := s.c.ledger.Build(from, to, body, s.c.clk)
	if !ok {
		return false, nil
	}
	if err := s.c.mirror.Append(ctx, s.room, m); err != nil {
		return false, err
	}
	return true, nil
}

// Read receipts in a room stay in memory.
func (s *roomSource) markRead(_ context.Context, viewer, buddy string) (bool, error) {
	return s.c.ledger.MarkRead(viewer, buddy), nil
}

func (s *roomSource) deleteConversation(ctx context.Context, a, b string) (int, error) {
	if err := s.c.mirror.Clear(ctx, s.room); err != nil {
		return 0, err
	}
	return s.c.ledger.DeleteConversation(a, b), nil
}

func (s *roomSource) clear(ctx context.Context) (int, error) {
	if err := s.c.mirror.Clear(ctx, s.room); err != nil {
		return 0, err
	}
	return s.c.ledger.Clear(), nil
}

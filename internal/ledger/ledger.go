// Package ledger implements the append-only message collection: message
// identity, ordering, read receipts and unread counts.
//
// A Ledger is not safe for concurrent use; its owner (the coordinator)
// serializes access. Persistence is also the owner's concern: mutating
// methods report whether anything changed so callers write only when needed.
package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/buddyinbox/internal/clock"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
	"github.com/dmitrijs2005/buddyinbox/internal/shared"
)

// DefaultRecentLimit is the inbox/outbox preview length.
const DefaultRecentLimit = 20

// Field selects which side of a message Recent matches on.
type Field int

const (
	FieldFrom Field = iota
	FieldTo
)

type entry struct {
	msg models.Message
	seq uint64
}

type Ledger struct {
	entries []entry
	ids     map[string]struct{}
	seq     uint64
	suffix  func() string
}

type Option func(*Ledger)

// WithSuffixFunc replaces the random id suffix generator.
func WithSuffixFunc(fn func() string) Option {
	return func(l *Ledger) { l.suffix = fn }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		ids:    make(map[string]struct{}),
		suffix: func() string { return shared.MustRandHexString(3) },
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Append builds a message from -> to stamped with clk and adds it.
// Blank from, to or body (after trimming) is rejected with ok == false.
func (l *Ledger) Append(from, to, body string, clk clock.Clock) (models.Message, bool) {
	m, ok := l.Build(from, to, body, clk)
	if !ok {
		return models.Message{}, false
	}
	l.push(m)
	return m.Clone(), true
}

// Build validates and constructs a message like Append without adding it.
// Used when the authoritative copy lives elsewhere and comes back through
// Add. The id is unique among messages currently held.
func (l *Ledger) Build(from, to, body string, clk clock.Clock) (models.Message, bool) {
	from, to, body = strings.TrimSpace(from), strings.TrimSpace(to), strings.TrimSpace(body)
	if from == "" || to == "" || body == "" {
		return models.Message{}, false
	}
	ts := clock.Millis(clk)
	return models.Message{
		ID:     l.newID(ts),
		From:   from,
		To:     to,
		Body:   body,
		TS:     ts,
		ReadBy: []string{from},
	}, true
}

// Add ingests a message built elsewhere (remote stream, storage reload).
// Messages without an id or with an id already present are ignored.
func (l *Ledger) Add(m models.Message) bool {
	if m.ID == "" {
		return false
	}
	if _, dup := l.ids[m.ID]; dup {
		return false
	}
	m = m.Clone()
	if m.From != "" && !m.IsReadBy(m.From) {
		m.ReadBy = append([]string{m.From}, m.ReadBy...)
	}
	m.ReadBy = dedupe(m.ReadBy)
	l.push(m)
	return true
}

// Replace discards the current contents and loads msgs in order.
func (l *Ledger) Replace(msgs []models.Message) {
	clear(l.entries)
	l.entries = l.entries[:0]
	l.ids = make(map[string]struct{}, len(msgs))
	l.seq = 0
	for _, m := range msgs {
		l.Add(m)
	}
}

func (l *Ledger) Len() int { return len(l.entries) }

// Messages returns every message in insertion order.
func (l *Ledger) Messages() []models.Message {
	out := make([]models.Message, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.msg.Clone())
	}
	return out
}

// Conversation returns messages a -> b in ascending TS order; equal
// timestamps keep insertion order.
func (l *Ledger) Conversation(a, b string) []models.Message {
	matched := l.filter(func(m models.Message) bool { return m.From == a && m.To == b })
	slices.SortStableFunc(matched, func(x, y entry) int { return compareTS(x, y) })
	return unwrap(matched)
}

// MarkRead adds viewer to the read-by set of every buddy -> viewer
// message that lacks it and reports whether anything changed.
func (l *Ledger) MarkRead(viewer, buddy string) bool {
	changed := false
	for i := range l.entries {
		m := &l.entries[i].msg
		if m.To == viewer && m.From == buddy && !m.IsReadBy(viewer) {
			m.ReadBy = append(m.ReadBy, viewer)
			changed = true
		}
	}
	return changed
}

// UnreadCount counts from -> to messages that to has not read.
func (l *Ledger) UnreadCount(from, to string) int {
	n := 0
	for _, e := range l.entries {
		if e.msg.From == from && e.msg.To == to && !e.msg.IsReadBy(to) {
			n++
		}
	}
	return n
}

// DeleteConversation removes every a -> b message and returns how many.
func (l *Ledger) DeleteConversation(a, b string) int {
	return l.removeIf(func(m models.Message) bool { return m.From == a && m.To == b })
}

// Clear removes everything and returns how many messages were dropped.
func (l *Ledger) Clear() int {
	n := len(l.entries)
	clear(l.entries)
	l.entries = l.entries[:0]
	l.ids = make(map[string]struct{})
	return n
}

// Recent returns the newest messages whose field equals user, newest first.
// limit <= 0 means DefaultRecentLimit.
func (l *Ledger) Recent(user string, field Field, limit int) []models.Message {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	matched := l.filter(func(m models.Message) bool {
		if field == FieldFrom {
			return m.From == user
		}
		return m.To == user
	})
	// newest first; on equal TS the later insertion comes first
	slices.SortStableFunc(matched, func(x, y entry) int { return compareTS(y, x) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return unwrap(matched)
}

func (l *Ledger) push(m models.Message) {
	l.seq++
	l.entries = append(l.entries, entry{msg: m, seq: l.seq})
	l.ids[m.ID] = struct{}{}
}

func (l *Ledger) newID(ts int64) string {
	for {
		id := fmt.Sprintf("%d_%s", ts, l.suffix())
		if _, taken := l.ids[id]; !taken {
			return id
		}
	}
}

func (l *Ledger) filter(keep func(models.Message) bool) []entry {
	var out []entry
	for _, e := range l.entries {
		if keep(e.msg) {
			out = append(out, e)
		}
	}
	return out
}

func (l *Ledger) removeIf(drop func(models.Message) bool) int {
	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if drop(e.msg) {
			delete(l.ids, e.msg.ID)
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(l.entries[len(kept):])
	l.entries = kept
	return removed
}

func compareTS(x, y entry) int {
	switch {
	case x.msg.TS < y.msg.TS:
		return -1
	case x.msg.TS > y.msg.TS:
		return 1
	case x.seq < y.seq:
		return -1
	case x.seq > y.seq:
		return 1
	}
	return 0
}

func unwrap(es []entry) []models.Message {
	out := make([]models.Message, 0, len(es))
	for _, e := range es {
		out = append(out, e.msg.Clone())
	}
	return out
}

func dedupe(users []string) []string {
	out := users[:0]
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

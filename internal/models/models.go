// Package models defines the buddy inbox data model shared by storage,
// the cloud mirror and the UIs.
package models

import "slices"

// Message is one entry of the ledger. The JSON shape is the persisted and
// wire shape; TS is unix milliseconds.
type Message struct {
	ID     string   `json:"id"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Body   string   `json:"body"`
	TS     int64    `json:"ts"`
	ReadBy []string `json:"readBy"`
}

// IsReadBy reports whether user is in the read-by set.
func (m Message) IsReadBy(user string) bool {
	return slices.Contains(m.ReadBy, user)
}

// Clone returns a copy that does not share the ReadBy backing array.
func (m Message) Clone() Message {
	m.ReadBy = slices.Clone(m.ReadBy)
	return m
}

// Presence maps a user name to the unix-millis time of its last heartbeat.
type Presence map[string]int64

// Session is the per-store login and lock state.
type Session struct {
	CurrentUser string
	Locked      bool
	PinHash     string
}

func (s Session) LoggedIn() bool { return s.CurrentUser != "" }

package models

// OverlayMode tells a UI which lock prompt, if any, to show.
type OverlayMode string

const (
	OverlayNone   OverlayMode = "none"
	OverlaySet    OverlayMode = "set"
	OverlayUnlock OverlayMode = "unlock"
)

// Snapshot is a read-only view of the coordinator state that UIs render
// from. Slices are copies; mutating them has no effect on the core.
type Snapshot struct {
	Users        []string    `json:"users"`
	CurrentUser  string      `json:"currentUser"`
	Room         string      `json:"room"`
	CloudEnabled bool        `json:"cloudEnabled"`
	Online       bool        `json:"online"`
	Unread       int         `json:"unread"`
	Total        int         `json:"total"`
	Conversation []Message   `json:"conversation"`
	Inbox        []Message   `json:"inbox"`
	Outbox       []Message   `json:"outbox"`
	Locked       bool        `json:"locked"`
	Overlay      OverlayMode `json:"overlay"`
}

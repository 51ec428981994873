// Package backup exports the whole local store to a JSON document and
// restores it again, optionally keeping copies in an S3 bucket.
//
// The document looks like
//
//	{"version":1,"exportedAt":"2024-01-02T03:04:05.000Z","data":{...}}
//
// Import also accepts the bare data object. Missing collections restore as
// empty; currentUser and locked are only written when present; pinHash only
// when it is a string. A document that does not parse is rejected before
// anything is written, and the keys of a valid one are written all or
// nothing.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/buddyinbox/internal/localstore"
	"github.com/dmitrijs2005/buddyinbox/internal/models"
)

const (
	Version          = 1
	exportedAtLayout = "2006-01-02T15:04:05.000Z07:00"
)

type Envelope struct {
	Version    int    `json:"version"`
	ExportedAt string `json:"exportedAt"`
	Data       Data   `json:"data"`
}

type Data struct {
	Users       []string         `json:"users"`
	Messages    []models.Message `json:"messages"`
	Presence    models.Presence  `json:"presence"`
	CurrentUser *string          `json:"currentUser"`
	PinHash     string           `json:"pinHash"`
	Locked      bool             `json:"locked"`
}

// Export snapshots every key of store.
func Export(ctx context.Context, store *localstore.Store, now time.Time) ([]byte, error) {
	d := Data{
		Users:    []string{},
		Messages: []models.Message{},
		Presence: models.Presence{},
	}
	if !store.GetJSON(ctx, localstore.KeyUsers, &d.Users) || d.Users == nil {
		d.Users = []string{}
	}
	if !store.GetJSON(ctx, localstore.KeyMessages, &d.Messages) || d.Messages == nil {
		d.Messages = []models.Message{}
	}
	if !store.GetJSON(ctx, localstore.KeyPresence, &d.Presence) || d.Presence == nil {
		d.Presence = models.Presence{}
	}
	var user string
	if store.GetJSON(ctx, localstore.KeyCurrentUser, &user) && user != "" {
		d.CurrentUser = &user
	}
	d.PinHash, _ = store.GetString(ctx, localstore.KeyPinHash)
	var locked bool
	if store.GetJSON(ctx, localstore.KeyLocked, &locked) {
		d.Locked = locked
	}

	out, err := json.MarshalIndent(Envelope{
		Version:    Version,
		ExportedAt: now.UTC().Format(exportedAtLayout),
		Data:       d,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return out, nil
}

// patch is a decoded backup with every optional field resolved.
type patch struct {
	users       []string
	messages    []models.Message
	presence    models.Presence
	currentUser *string
	locked      *bool
	pinHash     *string
}

// Import validates raw and writes it over store in a single commit.
func Import(ctx context.Context, store *localstore.Store, raw []byte) error {
	p, err := decode(raw)
	if err != nil {
		return err
	}

	var b localstore.Batch
	b.SetJSON(localstore.KeyUsers, p.users)
	b.SetJSON(localstore.KeyMessages, p.messages)
	b.SetJSON(localstore.KeyPresence, p.presence)
	if p.currentUser != nil {
		if *p.currentUser == "" {
			b.Remove(localstore.KeyCurrentUser)
		} else {
			b.SetJSON(localstore.KeyCurrentUser, *p.currentUser)
		}
	}
	if p.locked != nil {
		b.SetJSON(localstore.KeyLocked, *p.locked)
	}
	if p.pinHash != nil {
		b.SetString(localstore.KeyPinHash, *p.pinHash)
	}
	if err := store.Commit(ctx, &b); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}
	return nil
}

func decode(raw []byte) (*patch, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidBackup)
	}

	fields := top
	if data, ok := top["data"]; ok && !isNull(data) {
		fields = nil
		if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
			return nil, fmt.Errorf("%w: data is not an object", ErrInvalidBackup)
		}
	}

	p := &patch{}
	if err := decodeField(fields, "users", &p.users); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "messages", &p.messages); err != nil {
		return nil, err
	}
	if err := decodeField(fields, "presence", &p.presence); err != nil {
		return nil, err
	}
	if p.users == nil {
		p.users = []string{}
	}
	if p.messages == nil {
		p.messages = []models.Message{}
	}
	if p.presence == nil {
		p.presence = models.Presence{}
	}

	if v, ok := fields["currentUser"]; ok {
		var user string
		if !isNull(v) {
			if err := json.Unmarshal(v, &user); err != nil {
				return nil, fmt.Errorf("%w: currentUser: %v", ErrInvalidBackup, err)
			}
		}
		p.currentUser = &user
	}
	if v, ok := fields["locked"]; ok {
		var locked bool
		if !isNull(v) {
			if err := json.Unmarshal(v, &locked); err != nil {
				return nil, fmt.Errorf("%w: locked: %v", ErrInvalidBackup, err)
			}
		}
		p.locked = &locked
	}
	if v, ok := fields["pinHash"]; ok {
		var s string
		if json.Unmarshal(v, &s) == nil && !isNull(v) {
			p.pinHash = &s
		}
	}
	return p, nil
}

func decodeField(fields map[string]json.RawMessage, name string, dst any) error {
	v, ok := fields[name]
	if !ok || isNull(v) {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidBackup, name, err)
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

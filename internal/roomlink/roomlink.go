// Package roomlink builds and parses the shareable links that carry a room
// id in their "room" query parameter.
package roomlink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/buddyinbox/internal/shared"
)

const Param = "room"

var ErrNoRoom = errors.New("link has no room")

// NewID returns a random 8 character room id.
func NewID() string {
	return shared.MustRandHexString(4)
}

// Build returns base with its room parameter set to room. Other query
// parameters are kept.
func Build(base, room string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set(Param, room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Parse extracts the room id from link. A bare id without any URL syntax is
// accepted as is.
func Parse(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", ErrNoRoom
	}
	if !strings.ContainsAny(link, "?/:") {
		return link, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	room := strings.TrimSpace(u.Query().Get(Param))
	if room == "" {
		return "", ErrNoRoom
	}
	return room, nil
}

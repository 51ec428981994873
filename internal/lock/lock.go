// Package lock implements the local PIN screen lock.
//
// The PIN is never stored; only its SHA-256 hex digest is. The first unlock
// after the hash is cleared sets the PIN.
package lock

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/dmitrijs2005/buddyinbox/internal/models"
)

type Result int

const (
	// ResultEmpty means no PIN was entered; nothing changed.
	ResultEmpty Result = iota
	// ResultSet means the PIN was stored and the app unlocked.
	ResultSet
	// ResultUnlocked means the PIN matched.
	ResultUnlocked
	// ResultWrongPIN means the PIN did not match; the app stays locked.
	ResultWrongPIN
)

func (r Result) String() string {
	switch r {
	case ResultEmpty:
		return "empty"
	case ResultSet:
		return "set"
	case ResultUnlocked:
		return "unlocked"
	case ResultWrongPIN:
		return "wrong pin"
	default:
		return "unknown"
	}
}

func HashPIN(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// ModeFor picks the overlay the UI must show.
func ModeFor(locked bool, pinHash string) models.OverlayMode {
	switch {
	case !locked:
		return models.OverlayNone
	case pinHash == "":
		return models.OverlaySet
	default:
		return models.OverlayUnlock
	}
}

// Check evaluates pin against the stored hash. newHash is set only for
// ResultSet.
func Check(pin, pinHash string) (res Result, newHash string) {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return ResultEmpty, ""
	}
	h := HashPIN(pin)
	if pinHash == "" {
		return ResultSet, h
	}
	if subtle.ConstantTimeCompare([]byte(h), []byte(pinHash)) == 1 {
		return ResultUnlocked, ""
	}
	return ResultWrongPIN, ""
}

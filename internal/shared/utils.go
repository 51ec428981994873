// Package shared provides small helpers for random identifiers and for
// wiping sensitive input from memory.
package shared

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString returns size random bytes encoded as hex, so the
// resulting string is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// MustRandHexString is MakeRandHexString for callers that cannot act on a
// failing system RNG anyway.
func MustRandHexString(size int) string {
	s, err := MakeRandHexString(size)
	if err != nil {
		panic(err)
	}
	return s
}

// WipeByteArray zeroes b. Used for PIN input read from the terminal.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

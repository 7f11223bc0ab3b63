// Package media stores file-share payloads delivered through the
// multiplexer's fileshare port, addressed by their content hash.
package media

import (
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrStorageUnavailable indicates the ingestor has no asset backend.
	ErrStorageUnavailable = errors.New("media storage unavailable")
	// ErrInvalidHash indicates a string that is not a hex BLAKE2b-256 digest.
	ErrInvalidHash = errors.New("invalid content hash")
)

// HashLength is the length of a hex encoded content hash.
const HashLength = blake2b.Size256 * 2

// ContentHash returns the hex BLAKE2b-256 digest of payload.
func ContentHash(payload []byte) string {
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ParseHash normalises a content hash received from a client.
func ParseHash(raw string) (string, error) {
	hash := strings.ToLower(strings.TrimSpace(raw))
	if len(hash) != HashLength {
		return "", ErrInvalidHash
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return "", ErrInvalidHash
	}
	return hash, nil
}

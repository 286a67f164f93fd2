package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the lower-case hex SHA-256 of script.
//
// The hash is taken over the raw bytes with no normalisation, so a script
// that round-trips through the platform unchanged hashes identically.
func ContentHash(script []byte) string {
	sum := sha256.Sum256(script)
	return hex.EncodeToString(sum[:])
}

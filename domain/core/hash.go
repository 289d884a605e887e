package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 characters, enough to tell runs apart in logs
func (h Hash) Short() string {
	if len(h) < 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// ConfigFingerprint identifies the analysis definition a run was produced from
type ConfigFingerprint Hash

// NewConfigFingerprint hashes the raw analysis definition
func NewConfigFingerprint(data []byte) ConfigFingerprint {
	return ConfigFingerprint(NewHash(data))
}

func (h ConfigFingerprint) String() string { return Hash(h).String() }

package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// PepperedKeyService implements ports.KeyService. Keys are opaque bearer
// tokens: prefix + the first 32 lowercase hex characters of
// SHA-256(hex(random_32_bytes) || pepper). Only SHA-256(plaintext || pepper)
// is ever stored, so a store dump alone cannot recover a key.
type PepperedKeyService struct {
	pepper string
	prefix string
}

// NewPepperedKeyService creates a key service. The pepper is a process-wide
// secret; rotating it invalidates every issued key.
func NewPepperedKeyService(pepper, prefix string) (*PepperedKeyService, error) {
	if pepper == "" {
		return nil, fmt.Errorf("key service requires a non-empty pepper")
	}
	if prefix == "" {
		prefix = "pk_"
	}
	return &PepperedKeyService{pepper: pepper, prefix: prefix}, nil
}

// Mint generates a fresh plaintext key and its stored digest.
func (s *PepperedKeyService) Mint() (string, string, error) {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return "", "", fmt.Errorf("generating key seed: %w", err)
	}

	sum := sha256.Sum256([]byte(hex.EncodeToString(seed) + s.pepper))
	plaintext := s.prefix + hex.EncodeToString(sum[:])[:32]

	return plaintext, s.Digest(plaintext), nil
}

// Digest computes the stored digest of a presented key: SHA-256 of the
// plaintext concatenated with the pepper, hex-encoded.
func (s *PepperedKeyService) Digest(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext + s.pepper))
	return hex.EncodeToString(sum[:])
}

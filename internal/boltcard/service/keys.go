package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/allisson/boltgate/internal/boltcard/domain"
)

// HKDF info labels for the keys derived from the server secret.
const (
	idHashInfo     = "boltgate/card-id-hash/v1"
	resetTokenInfo = "boltgate/reset-token/v1"
)

// ErrEmptyServerSecret is returned when no server secret is configured.
var ErrEmptyServerSecret = errors.New("server secret must not be empty")

// GenerateKeys returns a fresh random key set. K3 and K4 are copies of K0.
func GenerateKeys() (domain.Keys, error) {
	var keys domain.Keys
	for _, dst := range []*[]byte{&keys.K0, &keys.K1, &keys.K2} {
		*dst = make([]byte, domain.KeySize)
		if _, err := rand.Read(*dst); err != nil {
			return domain.Keys{}, fmt.Errorf("failed to generate card key: %w", err)
		}
	}
	keys.K3 = append([]byte(nil), keys.K0...)
	keys.K4 = append([]byte(nil), keys.K0...)
	return keys, nil
}

// DeriveKey expands the server secret into a 32-byte key for the given purpose.
func DeriveKey(serverSecret, info string) ([]byte, error) {
	if serverSecret == "" {
		return nil, ErrEmptyServerSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(serverSecret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// hmacIDHasher computes HMAC-SHA256(id) under a key derived from the server secret.
type hmacIDHasher struct {
	key []byte
}

// NewIDHasher creates an IDHasher keyed from the server secret.
func NewIDHasher(serverSecret string) (IDHasher, error) {
	key, err := DeriveKey(serverSecret, idHashInfo)
	if err != nil {
		return nil, err
	}
	return &hmacIDHasher{key: key}, nil
}

// IDHash returns the lowercase hex HMAC of the card id.
func (h *hmacIDHasher) IDHash(id uuid.UUID) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write(id[:])
	return hex.EncodeToString(mac.Sum(nil))
}

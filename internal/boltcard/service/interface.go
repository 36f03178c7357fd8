// Package service provides the cryptographic services of the Boltcard gateway: SUN tap
// verification, key generation and sealing, public id hashing and reset tokens.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// KeySealer encrypts key material for storage and decrypts it on load.
type KeySealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// IDHasher derives the public identifier of a card from its id.
type IDHasher interface {
	IDHash(id uuid.UUID) string
}

// ResetTokenService issues and verifies short-lived force-reset confirmation tokens.
type ResetTokenService interface {
	Issue(cardID uuid.UUID, now time.Time) (token string, expiresAt time.Time, err error)
	Verify(token string) (uuid.UUID, error)
}

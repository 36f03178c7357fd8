package service

import (
	"context"
	"fmt"

	"gocloud.dev/secrets"

	// Register all KMS provider drivers
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"
)

// KeeperSealer seals key material with a gocloud.dev secrets keeper.
type KeeperSealer struct {
	keeper *secrets.Keeper
}

// OpenKeeperSealer opens the keeper addressed by keyURI.
// Supports: gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://
func OpenKeeperSealer(ctx context.Context, keyURI string) (*KeeperSealer, error) {
	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return &KeeperSealer{keeper: keeper}, nil
}

// Seal encrypts plaintext.
func (s *KeeperSealer) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	ciphertext, err := s.keeper.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to seal: %w", err)
	}
	return ciphertext, nil
}

// Open decrypts ciphertext produced by Seal.
func (s *KeeperSealer) Open(ctx context.Context, ciphertext []byte) ([]byte, error) {
	plaintext, err := s.keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed value: %w", err)
	}
	return plaintext, nil
}

// Close releases the keeper.
func (s *KeeperSealer) Close() error {
	return s.keeper.Close()
}

// Package service provides the admin credential services.
package service

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/boltgate/internal/errors"
)

// AdminTokenService generates and verifies the admin bearer token. Only the Argon2id
// hash of the token is ever configured.
type AdminTokenService interface {
	// GenerateToken creates a random token and its hash. The plain token is shown once.
	GenerateToken() (plainToken string, tokenHash string, err error)

	HashToken(plainToken string) (string, error)

	// VerifyToken compares in constant time; a malformed hash never matches.
	VerifyToken(plainToken, tokenHash string) bool
}

type adminTokenService struct {
	hasher *pwdhash.PasswordHasher
}

func (s *adminTokenService) GenerateToken() (string, string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate admin token")
	}
	plainToken := base64.RawURLEncoding.EncodeToString(randomBytes)

	tokenHash, err := s.HashToken(plainToken)
	if err != nil {
		return "", "", err
	}
	return plainToken, tokenHash, nil
}

func (s *adminTokenService) HashToken(plainToken string) (string, error) {
	tokenHash, err := s.hasher.Hash([]byte(plainToken))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash admin token")
	}
	return tokenHash, nil
}

func (s *adminTokenService) VerifyToken(plainToken, tokenHash string) bool {
	ok, err := s.hasher.Verify([]byte(plainToken), tokenHash)
	if err != nil {
		return false
	}
	return ok
}

// NewAdminTokenService creates an AdminTokenService using the Moderate Argon2id policy.
func NewAdminTokenService() AdminTokenService {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		// This should never happen with valid policy
		panic(err)
	}

	return &adminTokenService{
		hasher: hasher,
	}
}

package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	apperrors "github.com/allisson/boltgate/internal/errors"
)

const resetPurpose = "card_reset"

type resetClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// jwtResetTokenService issues HS256 tokens binding a reset confirmation to one card.
type jwtResetTokenService struct {
	key        []byte
	expiration time.Duration
}

// NewResetTokenService creates a ResetTokenService keyed from the server secret.
func NewResetTokenService(serverSecret string, expiration time.Duration) (ResetTokenService, error) {
	key, err := DeriveKey(serverSecret, resetTokenInfo)
	if err != nil {
		return nil, err
	}
	return &jwtResetTokenService{key: key, expiration: expiration}, nil
}

// Issue signs a token for cardID valid until now + expiration.
func (s *jwtResetTokenService) Issue(cardID uuid.UUID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.expiration)
	claims := resetClaims{
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   cardID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.Must(uuid.NewV7()).String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(err, "failed to sign reset token")
	}
	return token, expiresAt, nil
}

// Verify checks signature, expiry and purpose and returns the card id.
func (s *jwtResetTokenService) Verify(token string) (uuid.UUID, error) {
	var claims resetClaims
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Purpose != resetPurpose {
		return uuid.Nil, domain.ErrInvalidResetToken
	}
	cardID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidResetToken
	}
	return cardID, nil
}

package usecase

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"
	"time"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/boltcard/service"
	apperrors "github.com/allisson/boltgate/internal/errors"
)

type resetUseCase struct {
	cards    CardUseCase
	tokens   service.ResetTokenService
	verifier *tapVerifier
	logger   *slog.Logger
	now      func() time.Time
}

// Prove accepts either the card UID or a tap (p and c). A tap is fully verified and its
// counter committed, so it cannot be replayed. Disabled cards may be reset.
func (r *resetUseCase) Prove(ctx context.Context, cardIDHash, uid, p, c string) (*domain.ResetResult, error) {
	var card *domain.Card

	switch {
	case p != "" || c != "":
		tap, err := r.verifier.verify(ctx, cardIDHash, p, c, true)
		if err != nil {
			return nil, err
		}
		card = tap.card
	case uid != "":
		loaded, err := r.cards.GetByIDHash(ctx, cardIDHash, true)
		if err != nil {
			return nil, err
		}
		if loaded.Status == domain.CardStatusWiped {
			loaded.Keys.Zero()
			return nil, domain.ErrCardWiped
		}
		stored := []byte(loaded.UID)
		given := []byte(strings.ToLower(uid))
		if len(stored) == 0 || subtle.ConstantTimeCompare(stored, given) != 1 {
			loaded.Keys.Zero()
			return nil, domain.ErrUIDMismatch
		}
		card = loaded
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "uid or p and c are required")
	}

	token, expiresAt, err := r.tokens.Issue(card.ID, r.now())
	if err != nil {
		card.Keys.Zero()
		return nil, err
	}

	r.logger.Info("card reset requested", slog.String("card_id", card.ID.String()))

	return &domain.ResetResult{
		CardID:     card.ID,
		Keys:       card.Keys,
		ResetToken: token,
		ExpiresAt:  expiresAt,
	}, nil
}

// Confirm wipes the card bound to the token.
func (r *resetUseCase) Confirm(ctx context.Context, cardIDHash, token string) error {
	cardID, err := r.tokens.Verify(token)
	if err != nil {
		return err
	}
	card, err := r.cards.GetByIDHash(ctx, cardIDHash, false)
	if err != nil {
		return err
	}
	if card.ID != cardID {
		return domain.ErrInvalidResetToken
	}
	if _, err := r.cards.Wipe(ctx, cardID); err != nil {
		return err
	}
	r.logger.Info("card wiped by reset", slog.String("card_id", cardID.String()))
	return nil
}

// NewResetUseCase creates a ResetUseCase.
func NewResetUseCase(cards CardUseCase, tokens service.ResetTokenService, logger *slog.Logger) ResetUseCase {
	return &resetUseCase{
		cards:    cards,
		tokens:   tokens,
		verifier: &tapVerifier{cards: cards},
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

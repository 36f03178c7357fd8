package usecase

import (
	"context"
	"encoding/hex"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/boltcard/service"
)

// tapVerifier runs the verified-tap prelude shared by the withdraw, balance and reset
// flows: format check, card load, SUN verification and counter commit.
type tapVerifier struct {
	cards CardUseCase
}

// verifiedTap is a tap whose counter has been committed.
type verifiedTap struct {
	card    *domain.Card
	uid     string
	counter uint32
}

// checkTap verifies p and c against the card keys without committing anything.
func checkTap(card *domain.Card, p, c string) (service.TapResult, error) {
	storedUID, err := hex.DecodeString(card.UID)
	if err != nil {
		return service.TapResult{}, domain.ErrTapAuthentication
	}
	result := service.VerifyCardTap(p, c, card.Keys.K1, card.Keys.K2, storedUID, card.LastCounter)
	if !result.Valid {
		if result.Err != nil {
			return result, result.Err
		}
		return result, domain.ErrTapAuthentication
	}
	return result, nil
}

// verify validates, authenticates and commits a tap. The returned card still carries
// its keys; callers zero them when done. Disabled cards are rejected after the counter
// commit unless allowDisabled is set.
func (v *tapVerifier) verify(ctx context.Context, idHash, p, c string, allowDisabled bool) (*verifiedTap, error) {
	if err := service.ValidateTapParams(p, c); err != nil {
		return nil, err
	}

	card, err := v.cards.GetByIDHash(ctx, idHash, true)
	if err != nil {
		return nil, err
	}
	if card.Status == domain.CardStatusWiped {
		card.Keys.Zero()
		return nil, domain.ErrCardWiped
	}

	result, err := checkTap(card, p, c)
	if err != nil {
		card.Keys.Zero()
		return nil, err
	}

	if err := v.cards.UpdateLastCounter(ctx, card.ID, result.Counter); err != nil {
		card.Keys.Zero()
		return nil, err
	}
	card.LastCounter = result.Counter
	uid := hex.EncodeToString(result.UID)

	switch card.Status {
	case domain.CardStatusPending:
		if err := v.cards.ActivateFromTap(ctx, card.ID, uid); err != nil {
			card.Keys.Zero()
			return nil, err
		}
		card.Status = domain.CardStatusActive
		if card.UID == "" {
			card.UID = uid
		}
	case domain.CardStatusDisabled:
		if !allowDisabled {
			card.Keys.Zero()
			return nil, domain.ErrCardDisabled
		}
	}

	return &verifiedTap{card: card, uid: uid, counter: result.Counter}, nil
}

package usecase

import (
	"context"
	"encoding/hex"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/boltcard/service"
	"github.com/allisson/boltgate/internal/database"
	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/wallet"
)

// Config holds the settings shared by the Boltcard use cases.
type Config struct {
	// PublicBaseURL is the externally reachable base URL, without trailing slash.
	PublicBaseURL      string
	TopUpInvoiceExpiry time.Duration
	TopUpMaxSats       int64
}

const (
	programmingProtocolName    = "create_bolt_card_response"
	programmingProtocolVersion = 2
)

type cardUseCase struct {
	cfg       Config
	txManager database.TxManager
	cardRepo  CardRepository
	txRepo    TransactionRepository
	wallet    WalletClient
	idHasher  service.IDHasher
	now       func() time.Time
}

func redact(card *domain.Card) *domain.Card {
	card.Keys.Zero()
	card.Keys = domain.Keys{}
	card.APIKey = ""
	return card
}

// Create verifies the wallet credentials, generates a fresh key set and stores a PENDING
// card. The returned card carries its plaintext keys.
func (c *cardUseCase) Create(ctx context.Context, input *domain.CreateCardInput) (*domain.Card, error) {
	creds := wallet.Credentials{APIKey: input.APIKey, Environment: input.Environment}
	wallets, err := c.wallet.GetWallets(ctx, creds)
	if err != nil {
		return nil, err
	}
	w, err := wallet.FindWallet(wallets, input.WalletID, input.WalletCurrency)
	if err != nil {
		return nil, err
	}
	if w.Currency != input.WalletCurrency {
		return nil, apperrors.Wrap(wallet.ErrWalletNotFound, "wallet currency does not match")
	}

	keys, err := service.GenerateKeys()
	if err != nil {
		return nil, err
	}

	now := c.now()
	card := &domain.Card{
		ID:             uuid.Must(uuid.NewV7()),
		UID:            strings.ToLower(input.UID),
		Name:           input.Name,
		Keys:           keys,
		APIKey:         input.APIKey,
		WalletID:       w.ID,
		WalletCurrency: input.WalletCurrency,
		Environment:    input.Environment,
		MaxTxAmount:    input.MaxTxAmount,
		DailyLimit:     input.DailyLimit,
		DailyResetAt:   now,
		Status:         domain.CardStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	card.IDHash = c.idHasher.IDHash(card.ID)

	if err := c.cardRepo.Create(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

func (c *cardUseCase) Get(ctx context.Context, cardID uuid.UUID, includeKeys bool) (*domain.Card, error) {
	card, err := c.cardRepo.Get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !includeKeys {
		return redact(card), nil
	}
	return card, nil
}

func (c *cardUseCase) GetByIDHash(ctx context.Context, idHash string, includeKeys bool) (*domain.Card, error) {
	card, err := c.cardRepo.GetByIDHash(ctx, idHash)
	if err != nil {
		return nil, err
	}
	if !includeKeys {
		return redact(card), nil
	}
	return card, nil
}

func (c *cardUseCase) List(ctx context.Context, offset, limit int) ([]*domain.Card, error) {
	cards, err := c.cardRepo.List(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	for _, card := range cards {
		redact(card)
	}
	return cards, nil
}

// UpdateLastCounter commits a verified tap counter. It fails with ErrCounterReplay when
// the counter does not advance.
func (c *cardUseCase) UpdateLastCounter(ctx context.Context, cardID uuid.UUID, counter uint32) error {
	return c.cardRepo.AdvanceCounter(ctx, cardID, counter, c.now())
}

func (c *cardUseCase) UpdateCardBalance(ctx context.Context, cardID uuid.UUID, newBalance int64) error {
	if newBalance < 0 {
		return domain.ErrNegativeBalance
	}
	return c.txManager.WithTx(ctx, func(ctx context.Context) error {
		card, err := c.cardRepo.GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		_, err = c.cardRepo.ApplyBalanceDelta(ctx, cardID, newBalance-card.Balance, 0, c.now())
		return err
	})
}

func (c *cardUseCase) RecordTransaction(
	ctx context.Context,
	cardID uuid.UUID,
	input domain.TransactionInput,
) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:           uuid.Must(uuid.NewV7()),
		CardID:       cardID,
		Type:         input.Type,
		Amount:       input.Amount,
		BalanceAfter: input.BalanceAfter,
		Description:  input.Description,
		CreatedAt:    c.now(),
	}
	if input.PaymentHash != "" {
		hash := input.PaymentHash
		tx.PaymentHash = &hash
	}
	if err := c.txRepo.Create(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *cardUseCase) ResetDailySpent(ctx context.Context, cardID uuid.UUID) error {
	return c.cardRepo.ResetDailySpent(ctx, cardID, c.now())
}

func (c *cardUseCase) ApplyDailyReset(ctx context.Context, cardID uuid.UUID) (bool, error) {
	now := c.now()
	return c.cardRepo.ResetDailySpentBefore(ctx, cardID, domain.StartOfDay(now), now)
}

// ResetAllDailySpent resets every card whose daily window started before the given time.
func (c *cardUseCase) ResetAllDailySpent(ctx context.Context, before time.Time) (int64, error) {
	return c.cardRepo.ResetAllDailySpent(ctx, before, c.now())
}

func (c *cardUseCase) transition(ctx context.Context, cardID uuid.UUID, next domain.CardStatus) (*domain.Card, error) {
	var card *domain.Card
	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		card, err = c.cardRepo.GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if err := card.CanTransitionTo(next); err != nil {
			return err
		}
		now := c.now()
		if err := c.cardRepo.UpdateStatus(ctx, cardID, next, now); err != nil {
			return err
		}
		card.Status = next
		card.UpdatedAt = now
		if next == domain.CardStatusActive && card.ActivatedAt == nil {
			card.ActivatedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (c *cardUseCase) Activate(ctx context.Context, cardID uuid.UUID) error {
	_, err := c.transition(ctx, cardID, domain.CardStatusActive)
	return err
}

func (c *cardUseCase) ActivateFromTap(ctx context.Context, cardID uuid.UUID, uid string) error {
	return c.txManager.WithTx(ctx, func(ctx context.Context) error {
		card, err := c.cardRepo.GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if card.Status != domain.CardStatusPending {
			return nil
		}
		now := c.now()
		if card.UID == "" {
			if err := c.cardRepo.BindUID(ctx, cardID, uid, now); err != nil {
				return err
			}
		}
		return c.cardRepo.UpdateStatus(ctx, cardID, domain.CardStatusActive, now)
	})
}

func (c *cardUseCase) Disable(ctx context.Context, cardID uuid.UUID) error {
	_, err := c.transition(ctx, cardID, domain.CardStatusDisabled)
	return err
}

func (c *cardUseCase) Enable(ctx context.Context, cardID uuid.UUID) error {
	card, err := c.cardRepo.Get(ctx, cardID)
	if err != nil {
		return err
	}
	if card.Status != domain.CardStatusDisabled && card.Status != domain.CardStatusWiped {
		return domain.ErrInvalidTransition
	}
	_, err = c.transition(ctx, cardID, domain.CardStatusActive)
	return err
}

// Wipe moves the card to the terminal WIPED state and returns it with its keys so the
// programming app can reset the physical card.
func (c *cardUseCase) Wipe(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	return c.transition(ctx, cardID, domain.CardStatusWiped)
}

func (c *cardUseCase) UpdateLimits(
	ctx context.Context,
	cardID uuid.UUID,
	input *domain.UpdateCardInput,
) (*domain.Card, error) {
	var card *domain.Card
	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		card, err = c.cardRepo.GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if card.Status == domain.CardStatusWiped {
			return domain.ErrCardWiped
		}

		if input.Name != nil {
			card.Name = *input.Name
		}
		if input.MaxTxAmount != nil {
			card.MaxTxAmount = input.MaxTxAmount
		}
		if input.DailyLimit != nil {
			card.DailyLimit = input.DailyLimit
		}
		if input.ClearMaxTxAmount {
			card.MaxTxAmount = nil
		}
		if input.ClearDailyLimit {
			card.DailyLimit = nil
		}
		for _, limit := range []*int64{card.MaxTxAmount, card.DailyLimit} {
			if limit != nil && *limit < 0 {
				return domain.ErrInvalidAmount
			}
		}

		card.UpdatedAt = c.now()
		return c.cardRepo.UpdateSettings(ctx, card)
	})
	if err != nil {
		return nil, err
	}
	return redact(card), nil
}

func (c *cardUseCase) AdjustBalance(
	ctx context.Context,
	cardID uuid.UUID,
	input *domain.AdjustBalanceInput,
) (*domain.Transaction, error) {
	if input.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	description := input.Description
	if description == "" {
		description = "admin adjustment"
	}

	var tx *domain.Transaction
	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		card, err := c.cardRepo.GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if card.Balance+input.Amount < 0 {
			return domain.ErrNegativeBalance
		}
		balance, err := c.cardRepo.ApplyBalanceDelta(ctx, cardID, input.Amount, 0, c.now())
		if err != nil {
			return err
		}
		tx, err = c.RecordTransaction(ctx, cardID, domain.TransactionInput{
			Type:         domain.TransactionAdjust,
			Amount:       input.Amount,
			BalanceAfter: balance,
			Description:  description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *cardUseCase) ListTransactions(
	ctx context.Context,
	cardID uuid.UUID,
	offset, limit int,
) ([]*domain.Transaction, error) {
	if _, err := c.cardRepo.Get(ctx, cardID); err != nil {
		return nil, err
	}
	return c.txRepo.ListByCard(ctx, cardID, offset, limit)
}

// ProgrammingPayload builds the document the NFC programming app writes to the card.
// This is the only place besides the reset flow where keys leave the server.
func (c *cardUseCase) ProgrammingPayload(ctx context.Context, cardID uuid.UUID) (*domain.ProgrammingPayload, error) {
	card, err := c.cardRepo.Get(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.Status == domain.CardStatusWiped {
		return nil, domain.ErrCardWiped
	}
	return BuildProgrammingPayload(c.cfg.PublicBaseURL, card)
}

// BuildProgrammingPayload renders the create_bolt_card_response document of a card.
func BuildProgrammingPayload(publicBaseURL string, card *domain.Card) (*domain.ProgrammingPayload, error) {
	u, err := url.Parse(publicBaseURL)
	if err != nil || u.Host == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidInput, "invalid public base url %q", publicBaseURL)
	}
	base := "lnurlw://" + u.Host + strings.TrimSuffix(u.Path, "/") + "/api/boltcard/" + card.IDHash

	return &domain.ProgrammingPayload{
		ProtocolName:    programmingProtocolName,
		ProtocolVersion: programmingProtocolVersion,
		CardName:        card.Name,
		LNURLWBase:      base,
		K0:              hex.EncodeToString(card.Keys.K0),
		K1:              hex.EncodeToString(card.Keys.K1),
		K2:              hex.EncodeToString(card.Keys.K2),
		K3:              hex.EncodeToString(card.Keys.K3),
		K4:              hex.EncodeToString(card.Keys.K4),
	}, nil
}

func (c *cardUseCase) Credit(
	ctx context.Context,
	cardID uuid.UUID,
	amount int64,
	paymentHash, description string,
) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var tx *domain.Transaction
	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := c.cardRepo.GetForUpdate(ctx, cardID); err != nil {
			return err
		}
		balance, err := c.cardRepo.ApplyBalanceDelta(ctx, cardID, amount, 0, c.now())
		if err != nil {
			return err
		}
		tx, err = c.RecordTransaction(ctx, cardID, domain.TransactionInput{
			Type:         domain.TransactionTopUp,
			Amount:       amount,
			BalanceAfter: balance,
			Description:  description,
			PaymentHash:  paymentHash,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *cardUseCase) Debit(
	ctx context.Context,
	cardID uuid.UUID,
	counter uint32,
	amount int64,
	paymentHash, description string,
) (*domain.Transaction, error) {
	var tx *domain.Transaction
	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		card, err := c.cardRepo.GetForUpdate(ctx, cardID)
		if err != nil {
			return err
		}
		if err := card.CheckUsable(); err != nil {
			return err
		}
		if card.Status != domain.CardStatusActive {
			return domain.ErrCardNotActive
		}

		now := c.now()
		if card.NeedsDailyReset(now) {
			if _, err := c.cardRepo.ResetDailySpentBefore(ctx, cardID, domain.StartOfDay(now), now); err != nil {
				return err
			}
			card.DailySpent = 0
		}
		if err := card.CheckSpend(amount); err != nil {
			return err
		}

		if err := c.cardRepo.ClaimWithdrawCounter(ctx, cardID, counter, now); err != nil {
			return err
		}
		balance, err := c.cardRepo.ApplyBalanceDelta(ctx, cardID, -amount, amount, now)
		if err != nil {
			return err
		}
		tx, err = c.RecordTransaction(ctx, cardID, domain.TransactionInput{
			Type:         domain.TransactionWithdraw,
			Amount:       -amount,
			BalanceAfter: balance,
			Description:  description,
			PaymentHash:  paymentHash,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (c *cardUseCase) Refund(
	ctx context.Context,
	cardID uuid.UUID,
	amount int64,
	description string,
) (*domain.Transaction, error) {
	var tx *domain.Transaction
	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := c.cardRepo.GetForUpdate(ctx, cardID); err != nil {
			return err
		}
		balance, err := c.cardRepo.ApplyBalanceDelta(ctx, cardID, amount, -amount, c.now())
		if err != nil {
			return err
		}
		tx, err = c.RecordTransaction(ctx, cardID, domain.TransactionInput{
			Type:         domain.TransactionAdjust,
			Amount:       amount,
			BalanceAfter: balance,
			Description:  description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// NewCardUseCase creates a CardUseCase.
func NewCardUseCase(
	cfg Config,
	txManager database.TxManager,
	cardRepo CardRepository,
	txRepo TransactionRepository,
	walletClient WalletClient,
	idHasher service.IDHasher,
) CardUseCase {
	return &cardUseCase{
		cfg:       cfg,
		txManager: txManager,
		cardRepo:  cardRepo,
		txRepo:    txRepo,
		wallet:    walletClient,
		idHasher:  idHasher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

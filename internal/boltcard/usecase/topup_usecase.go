package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/database"
	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/metrics"
	"github.com/allisson/boltgate/internal/money"
	"github.com/allisson/boltgate/internal/wallet"
)

const (
	topUpCommentAllowed = 140
	minTopUpSats        = 1
)

type topUpUseCase struct {
	cfg         Config
	txManager   database.TxManager
	cards       CardUseCase
	pendingRepo PendingTopUpRepository
	wallet      WalletClient
	rates       RateProvider
	metrics     metrics.BusinessMetrics
	logger      *slog.Logger
	now         func() time.Time
}

func (t *topUpUseCase) loadUsable(ctx context.Context, idHash string, includeKeys bool) (*domain.Card, error) {
	card, err := t.cards.GetByIDHash(ctx, idHash, includeKeys)
	if err != nil {
		return nil, err
	}
	if err := card.CheckUsable(); err != nil {
		return nil, err
	}
	return card, nil
}

// PayRequest returns the LUD-06 payRequest of the card top-up endpoint.
func (t *topUpUseCase) PayRequest(ctx context.Context, cardIDHash string) (*lnurl.PayRequest, error) {
	card, err := t.loadUsable(ctx, cardIDHash, false)
	if err != nil {
		return nil, err
	}
	req := lnurl.NewPayRequest(
		t.callbackURL(card.IDHash),
		money.SatsToMsat(minTopUpSats),
		money.SatsToMsat(t.cfg.TopUpMaxSats),
		"Top up card "+card.Name,
		topUpCommentAllowed,
	)
	return &req, nil
}

func (t *topUpUseCase) topUpURL(idHash string) string {
	return t.cfg.PublicBaseURL + "/api/boltcard/topup/" + idHash
}

func (t *topUpUseCase) callbackURL(idHash string) string {
	return t.topUpURL(idHash) + "/callback"
}

// Invoice issues a BTC invoice for a whole number of sats and registers it as pending.
// USD cards receive on the BTC wallet of the same account.
func (t *topUpUseCase) Invoice(
	ctx context.Context,
	cardIDHash string,
	amountMsat int64,
	comment string,
) (*lnurl.InvoiceResponse, error) {
	sats, whole := money.MsatToSats(amountMsat)
	if !whole || sats < minTopUpSats || sats > t.cfg.TopUpMaxSats {
		return nil, domain.ErrInvalidAmount
	}
	if len(comment) > topUpCommentAllowed {
		comment = comment[:topUpCommentAllowed]
	}

	card, err := t.loadUsable(ctx, cardIDHash, true)
	if err != nil {
		return nil, err
	}
	card.Keys.Zero()
	creds := wallet.Credentials{APIKey: card.APIKey, Environment: card.Environment}

	wallets, err := t.wallet.GetWallets(ctx, creds)
	if err != nil {
		return nil, err
	}
	walletID := ""
	if card.WalletCurrency == money.CurrencyBTC {
		walletID = card.WalletID
	}
	btc, err := wallet.FindWallet(wallets, walletID, money.CurrencyBTC)
	if err != nil {
		return nil, err
	}

	memo := "Top up card " + card.Name
	if comment != "" {
		memo += ": " + comment
	}
	invoice, err := t.wallet.CreateLnInvoice(ctx, creds, btc.ID, sats, memo, t.cfg.TopUpInvoiceExpiry)
	if err != nil {
		return nil, err
	}

	now := t.now()
	topUp := &domain.PendingTopUp{
		PaymentHash:    invoice.PaymentHash,
		CardID:         card.ID,
		PaymentRequest: invoice.PaymentRequest,
		AmountSats:     sats,
		WalletID:       btc.ID,
		ExpiresAt:      now.Add(t.cfg.TopUpInvoiceExpiry),
		CreatedAt:      now,
	}
	if err := t.pendingRepo.Create(ctx, topUp); err != nil {
		return nil, err
	}

	resp := lnurl.NewInvoiceResponse(invoice.PaymentRequest)
	return &resp, nil
}

func (t *topUpUseCase) CheckAndProcessPendingTopUps(ctx context.Context, cardID uuid.UUID) (int, error) {
	topUps, err := t.pendingRepo.ListByCard(ctx, cardID)
	if err != nil {
		return 0, err
	}
	if len(topUps) == 0 {
		return 0, nil
	}

	card, err := t.cards.Get(ctx, cardID, true)
	if err != nil {
		return 0, err
	}
	card.Keys.Zero()

	credited := 0
	var errs []error
	for _, topUp := range topUps {
		ok, err := t.process(ctx, card, topUp)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			credited++
		}
	}
	return credited, errors.Join(errs...)
}

// process settles one pending top-up. The conditional delete of the pending row is the
// claim: only the caller that removed it credits the card, in the same transaction.
func (t *topUpUseCase) process(ctx context.Context, card *domain.Card, topUp *domain.PendingTopUp) (bool, error) {
	creds := wallet.Credentials{APIKey: card.APIKey, Environment: card.Environment}
	status, err := t.wallet.GetInvoiceStatus(ctx, creds, topUp.PaymentRequest)
	if err != nil {
		return false, err
	}

	switch status {
	case wallet.InvoicePaid:
	case wallet.InvoiceExpired:
		_, err := t.pendingRepo.Delete(ctx, topUp.PaymentHash)
		return false, err
	default:
		if topUp.Expired(t.now()) {
			_, err := t.pendingRepo.Delete(ctx, topUp.PaymentHash)
			return false, err
		}
		return false, nil
	}

	amount := topUp.AmountSats
	if card.WalletCurrency == money.CurrencyUSD {
		rate, err := t.rates.GetExchangeRate(ctx, card.Environment)
		if err != nil {
			return false, err
		}
		amount = rate.SatsToCentsFloor(topUp.AmountSats)
	}

	credited := false
	err = t.txManager.WithTx(ctx, func(ctx context.Context) error {
		claimed, err := t.pendingRepo.Delete(ctx, topUp.PaymentHash)
		if err != nil || !claimed {
			return err
		}
		if amount <= 0 {
			t.logger.Warn("top-up below one unit of card currency, nothing credited",
				slog.String("card_id", card.ID.String()),
				slog.String("payment_hash", topUp.PaymentHash),
				slog.Int64("amount_sats", topUp.AmountSats),
			)
			return nil
		}
		description := "top-up " + topUp.PaymentHash
		if _, err := t.cards.Credit(ctx, card.ID, amount, topUp.PaymentHash, description); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			return false, err
		}
		// The ledger already holds this payment hash.
		if _, err := t.pendingRepo.Delete(ctx, topUp.PaymentHash); err != nil {
			return false, err
		}
		return false, nil
	}

	if credited {
		t.metrics.RecordPayment(ctx, "topup", metrics.PaymentSettled, topUp.AmountSats)
		t.logger.Info("top-up credited",
			slog.String("card_id", card.ID.String()),
			slog.String("payment_hash", topUp.PaymentHash),
			slog.Int64("amount_sats", topUp.AmountSats),
			slog.Int64("amount", amount),
		)
	}
	return credited, nil
}

// ProcessPaymentHash handles a settlement notification. Unknown hashes are ignored so
// repeated notifications are harmless.
func (t *topUpUseCase) ProcessPaymentHash(ctx context.Context, paymentHash string) (bool, error) {
	topUp, err := t.pendingRepo.Get(ctx, paymentHash)
	if err != nil {
		if errors.Is(err, domain.ErrTopUpNotFound) {
			return false, nil
		}
		return false, err
	}

	card, err := t.cards.Get(ctx, topUp.CardID, true)
	if err != nil {
		return false, err
	}
	card.Keys.Zero()
	return t.process(ctx, card, topUp)
}

func (t *topUpUseCase) Sweep(ctx context.Context, limit int) (int, error) {
	topUps, err := t.pendingRepo.ListAll(ctx, limit)
	if err != nil {
		return 0, err
	}

	cards := make(map[uuid.UUID]*domain.Card)
	credited := 0
	for _, topUp := range topUps {
		card, ok := cards[topUp.CardID]
		if !ok {
			card, err = t.cards.Get(ctx, topUp.CardID, true)
			if err != nil {
				t.logger.Error("failed to load card for pending top-up",
					slog.String("payment_hash", topUp.PaymentHash),
					slog.Any("error", err),
				)
				continue
			}
			card.Keys.Zero()
			cards[topUp.CardID] = card
		}

		done, err := t.process(ctx, card, topUp)
		if err != nil {
			t.logger.Warn("failed to process pending top-up",
				slog.String("card_id", card.ID.String()),
				slog.String("payment_hash", topUp.PaymentHash),
				slog.Any("error", err),
			)
			continue
		}
		if done {
			credited++
		}
	}
	return credited, nil
}

func (t *topUpUseCase) LNURL(ctx context.Context, cardID uuid.UUID) (string, error) {
	card, err := t.cards.Get(ctx, cardID, false)
	if err != nil {
		return "", err
	}
	if card.Status == domain.CardStatusWiped {
		return "", domain.ErrCardWiped
	}
	return lnurl.Encode(t.topUpURL(card.IDHash))
}

// NewTopUpUseCase creates a TopUpUseCase.
func NewTopUpUseCase(
	cfg Config,
	txManager database.TxManager,
	cards CardUseCase,
	pendingRepo PendingTopUpRepository,
	walletClient WalletClient,
	rates RateProvider,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) TopUpUseCase {
	return &topUpUseCase{
		cfg:         cfg,
		txManager:   txManager,
		cards:       cards,
		pendingRepo: pendingRepo,
		wallet:      walletClient,
		rates:       rates,
		metrics:     businessMetrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

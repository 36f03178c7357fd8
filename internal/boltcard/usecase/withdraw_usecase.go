package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/boltcard/service"
	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/metrics"
	"github.com/allisson/boltgate/internal/money"
	"github.com/allisson/boltgate/internal/wallet"
)

const (
	balanceRecentTransactions = 10
	minWithdrawSats           = 1
)

type withdrawUseCase struct {
	cfg      Config
	cards    CardUseCase
	topUps   TopUpUseCase
	wallet   WalletClient
	rates    RateProvider
	verifier *tapVerifier
	metrics  metrics.BusinessMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// Tap verifies the tap, commits its counter, credits settled top-ups and quotes the
// withdrawable range in millisats.
func (w *withdrawUseCase) Tap(ctx context.Context, input TapInput) (*lnurl.WithdrawRequest, error) {
	tap, err := w.verifier.verify(ctx, input.CardIDHash, input.P, input.C, false)
	if err != nil {
		return nil, err
	}
	tap.card.Keys.Zero()

	card, err := w.refresh(ctx, tap.card)
	if err != nil {
		return nil, err
	}

	maxAmount := card.MaxWithdrawable()
	maxSats := maxAmount
	if card.WalletCurrency == money.CurrencyUSD {
		rate, err := w.rates.GetExchangeRate(ctx, card.Environment)
		if err != nil {
			return nil, err
		}
		maxSats = rate.CentsToSatsFloor(maxAmount)
	}
	if maxSats < minWithdrawSats {
		if card.Balance <= 0 {
			return nil, domain.ErrInsufficientBalance
		}
		return nil, domain.ErrLimitExceeded
	}

	callback := w.cfg.PublicBaseURL + "/api/boltcard/callback?" + url.Values{
		"p": {input.P},
		"c": {input.C},
	}.Encode()

	req := lnurl.NewWithdrawRequest(
		callback,
		card.IDHash,
		money.SatsToMsat(minWithdrawSats),
		money.SatsToMsat(maxSats),
		"Boltcard payment: "+card.Name,
	)
	return &req, nil
}

// refresh applies the lazy daily reset, credits settled top-ups and reloads the card
// without keys. Top-up failures are logged; the tap proceeds with the stored balance.
func (w *withdrawUseCase) refresh(ctx context.Context, card *domain.Card) (*domain.Card, error) {
	if card.NeedsDailyReset(w.now()) {
		if _, err := w.cards.ApplyDailyReset(ctx, card.ID); err != nil {
			return nil, err
		}
	}
	credited, err := w.topUps.CheckAndProcessPendingTopUps(ctx, card.ID)
	if err != nil {
		w.logger.Warn("failed to process pending top-ups",
			slog.String("card_id", card.ID.String()),
			slog.Any("error", err),
		)
	}
	if credited > 0 {
		w.logger.Info("credited pending top-ups",
			slog.String("card_id", card.ID.String()),
			slog.Int("count", credited),
		)
	}
	return w.cards.Get(ctx, card.ID, false)
}

// Callback binds the payment to the tap carried in p and c, debits the card and pays
// the invoice. A definite payment failure is compensated with a refund; an unknown
// outcome is left debited for reconciliation.
func (w *withdrawUseCase) Callback(ctx context.Context, input CallbackInput) error {
	if input.K1 == "" || input.PaymentRequest == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "k1 and pr are required")
	}
	if err := service.ValidateTapParams(input.P, input.C); err != nil {
		return err
	}

	card, err := w.cards.GetByIDHash(ctx, input.K1, true)
	if err != nil {
		return err
	}
	result, err := checkTap(card, input.P, input.C)
	card.Keys.Zero()
	if err != nil {
		return err
	}
	if err := card.CheckUsable(); err != nil {
		return err
	}
	if result.Counter != card.LastCounter || result.Counter <= card.LastWithdrawCounter {
		return domain.ErrTapAlreadyUsed
	}

	invoice, err := lnurl.DecodeInvoice(input.PaymentRequest, w.now())
	if err != nil {
		return err
	}

	amount := invoice.AmountSats
	if card.WalletCurrency == money.CurrencyUSD {
		rate, err := w.rates.GetExchangeRate(ctx, card.Environment)
		if err != nil {
			return err
		}
		amount = rate.SatsToCentsCeil(invoice.AmountSats)
	}

	memo := "Boltcard " + card.Name
	if _, err := w.cards.Debit(ctx, card.ID, result.Counter, amount, invoice.PaymentHash, memo); err != nil {
		if errors.Is(err, apperrors.ErrConflict) && !errors.Is(err, domain.ErrTapAlreadyUsed) {
			return wallet.ErrPaymentAlreadyPaid
		}
		return err
	}

	// The payment and its compensation must not be cut short by the caller going away.
	payCtx := context.WithoutCancel(ctx)
	creds := wallet.Credentials{APIKey: card.APIKey, Environment: card.Environment}

	status, err := w.wallet.PayLnInvoice(payCtx, creds, card.WalletID, invoice.PaymentRequest, memo)
	if err == nil {
		w.metrics.RecordPayment(ctx, "boltcard", metrics.PaymentSettled, invoice.AmountSats)
		w.logger.Info("withdraw paid",
			slog.String("card_id", card.ID.String()),
			slog.String("payment_hash", invoice.PaymentHash),
			slog.String("status", string(status)),
			slog.Int64("amount_sats", invoice.AmountSats),
		)
		return nil
	}

	if !errors.Is(err, wallet.ErrPaymentFailed) {
		w.metrics.RecordPayment(ctx, "boltcard", metrics.PaymentUnknown, invoice.AmountSats)
		w.logger.Warn("withdraw payment status unknown, balance left debited",
			slog.String("card_id", card.ID.String()),
			slog.String("payment_hash", invoice.PaymentHash),
			slog.Int64("amount", amount),
			slog.Any("error", err),
		)
		if errors.Is(err, wallet.ErrPaymentUnknown) {
			return err
		}
		return apperrors.Wrap(wallet.ErrPaymentUnknown, err.Error())
	}

	w.metrics.RecordPayment(ctx, "boltcard", metrics.PaymentFailed, invoice.AmountSats)
	if _, refundErr := w.cards.Refund(payCtx, card.ID, amount, "refund: "+err.Error()); refundErr != nil {
		w.logger.Error("failed to refund card after payment failure",
			slog.String("card_id", card.ID.String()),
			slog.String("payment_hash", invoice.PaymentHash),
			slog.Int64("amount", amount),
			slog.Any("error", refundErr),
		)
		return errors.Join(err, refundErr)
	}
	w.metrics.RecordPayment(ctx, "boltcard", metrics.PaymentRefunded, invoice.AmountSats)
	return err
}

// Balance verifies the tap (committing its counter) and returns the card balance with
// its most recent transactions. Disabled cards may still view their balance.
func (w *withdrawUseCase) Balance(ctx context.Context, input TapInput) (*domain.BalanceView, error) {
	tap, err := w.verifier.verify(ctx, input.CardIDHash, input.P, input.C, true)
	if err != nil {
		return nil, err
	}
	tap.card.Keys.Zero()

	credited, err := w.topUps.CheckAndProcessPendingTopUps(ctx, tap.card.ID)
	if err != nil {
		w.logger.Warn("failed to process pending top-ups",
			slog.String("card_id", tap.card.ID.String()),
			slog.Any("error", err),
		)
	}

	card, err := w.cards.Get(ctx, tap.card.ID, false)
	if err != nil {
		return nil, err
	}
	if card.NeedsDailyReset(w.now()) {
		card.DailySpent = 0
	}

	txs, err := w.cards.ListTransactions(ctx, card.ID, 0, balanceRecentTransactions)
	if err != nil {
		return nil, err
	}

	return &domain.BalanceView{
		CardID:         card.ID,
		Name:           card.Name,
		Status:         card.Status,
		WalletCurrency: card.WalletCurrency,
		Balance:        card.Balance,
		MaxTxAmount:    card.MaxTxAmount,
		DailyLimit:     card.DailyLimit,
		DailySpent:     card.DailySpent,
		Credited:       credited,
		Transactions:   txs,
	}, nil
}

// NewWithdrawUseCase creates a WithdrawUseCase.
func NewWithdrawUseCase(
	cfg Config,
	cards CardUseCase,
	topUps TopUpUseCase,
	walletClient WalletClient,
	rates RateProvider,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) WithdrawUseCase {
	return &withdrawUseCase{
		cfg:      cfg,
		cards:    cards,
		topUps:   topUps,
		wallet:   walletClient,
		rates:    rates,
		verifier: &tapVerifier{cards: cards},
		metrics:  businessMetrics,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

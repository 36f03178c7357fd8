package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/metrics"
	"github.com/allisson/boltgate/internal/money"
	"github.com/allisson/boltgate/internal/voucher/domain"
	"github.com/allisson/boltgate/internal/wallet"
)

const metricsDomain = "voucher"

var maxCommission = decimal.NewFromInt(100)

// Config holds the voucher settings.
type Config struct {
	// PublicBaseURL is the externally reachable base URL, without trailing slash.
	PublicBaseURL string
}

type voucherUseCase struct {
	cfg         Config
	voucherRepo VoucherRepository
	wallet      WalletClient
	rates       RateProvider
	metrics     metrics.BusinessMetrics
	logger      *slog.Logger
	now         func() time.Time
}

// Create validates the issuer wallet and stores an ACTIVE voucher. USD vouchers record
// their face value in cents and a sats estimate at the current rate.
func (v *voucherUseCase) Create(ctx context.Context, input *domain.CreateVoucherInput) (*domain.Voucher, error) {
	if err := input.CheckAmount(); err != nil {
		return nil, err
	}
	if input.CommissionPercent.IsNegative() || input.CommissionPercent.GreaterThan(maxCommission) {
		return nil, domain.ErrInvalidCommission
	}
	preset := input.Expiry
	if preset == "" {
		preset = domain.DefaultExpiry
	}
	lifetime, ok := domain.ExpiryPresets[preset]
	if !ok {
		return nil, domain.ErrInvalidExpiry
	}

	creds := wallet.Credentials{APIKey: input.APIKey, Environment: input.Environment}
	wallets, err := v.wallet.GetWallets(ctx, creds)
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

	now := v.now()
	voucher := &domain.Voucher{
		ID:                uuid.Must(uuid.NewV7()),
		AmountSats:        input.AmountSats,
		WalletCurrency:    input.WalletCurrency,
		Status:            domain.StatusActive,
		ExpiresAt:         now.Add(lifetime),
		CommissionPercent: input.CommissionPercent,
		DisplayAmount:     input.DisplayAmount,
		DisplayCurrency:   input.DisplayCurrency,
		APIKey:            input.APIKey,
		WalletID:          w.ID,
		Environment:       input.Environment,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if input.WalletCurrency == money.CurrencyUSD {
		rate, err := v.rates.GetExchangeRate(ctx, input.Environment)
		if err != nil {
			return nil, err
		}
		cents := input.USDAmountCents
		voucher.USDAmountCents = &cents
		voucher.AmountSats = rate.CentsToSatsFloor(cents)
		if voucher.AmountSats <= 0 {
			return nil, domain.ErrInvalidAmount
		}
	}

	if err := v.voucherRepo.Create(ctx, voucher); err != nil {
		return nil, err
	}
	v.logger.Info("voucher created",
		slog.String("voucher_id", voucher.ID.String()),
		slog.String("currency", voucher.WalletCurrency),
		slog.Int64("amount_sats", voucher.AmountSats),
	)
	voucher.APIKey = ""
	return voucher, nil
}

func (v *voucherUseCase) load(ctx context.Context, chargeID string) (*domain.Voucher, error) {
	id, err := uuid.Parse(chargeID)
	if err != nil {
		return nil, domain.ErrVoucherNotFound
	}
	return v.voucherRepo.Get(ctx, id)
}

func (v *voucherUseCase) Status(ctx context.Context, chargeID string) (*domain.StatusView, error) {
	voucher, err := v.load(ctx, chargeID)
	if err != nil {
		if errors.Is(err, domain.ErrVoucherNotFound) {
			return &domain.StatusView{Found: false}, nil
		}
		return nil, err
	}

	view := &domain.StatusView{
		Found:           true,
		Claimed:         voucher.Claimed,
		Status:          voucher.EffectiveStatus(v.now()),
		Amount:          voucher.AmountSats,
		Currency:        voucher.WalletCurrency,
		DisplayAmount:   voucher.DisplayAmount,
		DisplayCurrency: voucher.DisplayCurrency,
		ExpiresAt:       &voucher.ExpiresAt,
	}
	if voucher.USDAmountCents != nil {
		view.Amount = *voucher.USDAmountCents
	}
	return view, nil
}

// valueSats is the payout of the voucher: the face value for BTC vouchers, the face
// value at a freshly fetched rate for USD vouchers.
func (v *voucherUseCase) valueSats(ctx context.Context, voucher *domain.Voucher) (int64, error) {
	if voucher.WalletCurrency != money.CurrencyUSD || voucher.USDAmountCents == nil {
		return voucher.AmountSats, nil
	}
	rate, err := v.rates.GetExchangeRate(ctx, voucher.Environment)
	if err != nil {
		return 0, err
	}
	return rate.CentsToSatsFloor(*voucher.USDAmountCents), nil
}

// WithdrawRequest returns the LUD-03 withdrawRequest of an unclaimed voucher. Min and max
// are both the voucher value.
func (v *voucherUseCase) WithdrawRequest(ctx context.Context, chargeID string) (*lnurl.WithdrawRequest, error) {
	voucher, err := v.load(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if err := voucher.ClaimError(v.now()); err != nil {
		return nil, err
	}

	sats, err := v.valueSats(ctx, voucher)
	if err != nil {
		return nil, err
	}
	if sats <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	msat := money.SatsToMsat(sats)
	req := lnurl.NewWithdrawRequest(
		v.cfg.PublicBaseURL+"/api/vouchers/callback",
		voucher.ID.String(),
		msat,
		msat,
		"Voucher "+voucher.ID.String(),
	)
	return &req, nil
}

func (v *voucherUseCase) Callback(ctx context.Context, k1, paymentRequest string) error {
	if k1 == "" || paymentRequest == "" {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "k1 and pr are required")
	}
	voucherID, err := uuid.Parse(k1)
	if err != nil {
		return domain.ErrVoucherNotFound
	}

	now := v.now()
	current, err := v.voucherRepo.Get(ctx, voucherID)
	if err != nil {
		return err
	}
	if err := current.ClaimError(now); err != nil {
		return err
	}

	invoice, err := lnurl.DecodeInvoice(paymentRequest, now)
	if err != nil {
		return err
	}

	won, err := v.voucherRepo.Claim(ctx, voucherID, invoice.PaymentHash, now)
	if err != nil {
		return err
	}
	if !won {
		voucher, err := v.voucherRepo.Get(ctx, voucherID)
		if err != nil {
			return err
		}
		if err := voucher.ClaimError(now); err != nil {
			return err
		}
		return domain.ErrVoucherAlreadyClaimed
	}

	// Once claimed, the voucher must be released on every definite failure, even if
	// the caller has gone away.
	payCtx := context.WithoutCancel(ctx)

	voucher, err := v.voucherRepo.Get(payCtx, voucherID)
	if err != nil {
		return v.release(payCtx, voucherID, err)
	}
	sats, err := v.valueSats(payCtx, voucher)
	if err != nil {
		return v.release(payCtx, voucherID, err)
	}
	if invoice.AmountSats < 1 || invoice.AmountSats > sats {
		return v.release(payCtx, voucherID, domain.ErrInvalidAmount)
	}

	creds := wallet.Credentials{APIKey: voucher.APIKey, Environment: voucher.Environment}
	memo := "Voucher " + voucher.ID.String()
	status, err := v.wallet.PayLnInvoice(payCtx, creds, voucher.WalletID, invoice.PaymentRequest, memo)
	if err == nil {
		v.metrics.RecordPayment(ctx, metricsDomain, metrics.PaymentSettled, invoice.AmountSats)
		v.logger.Info("voucher redeemed",
			slog.String("voucher_id", voucherID.String()),
			slog.String("payment_hash", invoice.PaymentHash),
			slog.String("status", string(status)),
			slog.Int64("amount_sats", invoice.AmountSats),
		)
		return nil
	}

	if !errors.Is(err, wallet.ErrPaymentFailed) {
		v.metrics.RecordPayment(ctx, metricsDomain, metrics.PaymentUnknown, invoice.AmountSats)
		v.logger.Warn("voucher payment status unknown, claim kept",
			slog.String("voucher_id", voucherID.String()),
			slog.String("payment_hash", invoice.PaymentHash),
			slog.Any("error", err),
		)
		if errors.Is(err, wallet.ErrPaymentUnknown) {
			return err
		}
		return apperrors.Wrap(wallet.ErrPaymentUnknown, err.Error())
	}

	v.metrics.RecordPayment(ctx, metricsDomain, metrics.PaymentFailed, invoice.AmountSats)
	return v.release(payCtx, voucherID, err)
}

// release unclaims the voucher and returns cause, joined with any unclaim failure.
func (v *voucherUseCase) release(ctx context.Context, voucherID uuid.UUID, cause error) error {
	if err := v.voucherRepo.Unclaim(ctx, voucherID, v.now()); err != nil {
		v.logger.Error("failed to release voucher claim",
			slog.String("voucher_id", voucherID.String()),
			slog.Any("cause", cause),
			slog.Any("error", err),
		)
		return errors.Join(cause, err)
	}
	return cause
}

func (v *voucherUseCase) Cancel(ctx context.Context, voucherID uuid.UUID) error {
	now := v.now()
	cancelled, err := v.voucherRepo.Cancel(ctx, voucherID, now)
	if err != nil {
		return err
	}
	if cancelled {
		return nil
	}
	voucher, err := v.voucherRepo.Get(ctx, voucherID)
	if err != nil {
		return err
	}
	if voucher.Status == domain.StatusCancelled {
		return domain.ErrVoucherCancelled
	}
	if voucher.Claimed {
		return domain.ErrVoucherAlreadyClaimed
	}
	return domain.ErrVoucherExpired
}

func (v *voucherUseCase) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := v.voucherRepo.ExpireOverdue(ctx, v.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		v.logger.Info("expired overdue vouchers", slog.Int64("count", n))
	}
	return n, nil
}

// NewVoucherUseCase creates a VoucherUseCase.
func NewVoucherUseCase(
	cfg Config,
	voucherRepo VoucherRepository,
	walletClient WalletClient,
	rates RateProvider,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) VoucherUseCase {
	return &voucherUseCase{
		cfg:         cfg,
		voucherRepo: voucherRepo,
		wallet:      walletClient,
		rates:       rates,
		metrics:     businessMetrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

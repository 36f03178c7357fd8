// Package usecase implements voucher issuance and LNURL-withdraw redemption.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/money"
	"github.com/allisson/boltgate/internal/voucher/domain"
	"github.com/allisson/boltgate/internal/wallet"
)

// VoucherRepository persists vouchers.
type VoucherRepository interface {
	Create(ctx context.Context, voucher *domain.Voucher) error
	Get(ctx context.Context, voucherID uuid.UUID) (*domain.Voucher, error)

	// Claim reports whether this call moved the voucher from unclaimed to claimed.
	Claim(ctx context.Context, voucherID uuid.UUID, paymentHash string, now time.Time) (bool, error)
	Unclaim(ctx context.Context, voucherID uuid.UUID, now time.Time) error
	Cancel(ctx context.Context, voucherID uuid.UUID, now time.Time) (bool, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// WalletClient is the issuer wallet vouchers are paid from.
type WalletClient interface {
	GetWallets(ctx context.Context, creds wallet.Credentials) ([]wallet.Wallet, error)
	PayLnInvoice(
		ctx context.Context,
		creds wallet.Credentials,
		walletID, paymentRequest, memo string,
	) (wallet.PaymentStatus, error)
}

// RateProvider returns a fresh USD exchange rate.
type RateProvider interface {
	GetExchangeRate(ctx context.Context, environment string) (money.Rate, error)
}

// VoucherUseCase defines the voucher flows.
type VoucherUseCase interface {
	Create(ctx context.Context, input *domain.CreateVoucherInput) (*domain.Voucher, error)

	// Status never fails for an unknown charge id; it reports Found=false instead.
	Status(ctx context.Context, chargeID string) (*domain.StatusView, error)

	WithdrawRequest(ctx context.Context, chargeID string) (*lnurl.WithdrawRequest, error)

	// Callback claims the voucher and pays the invoice. A definite payment failure
	// releases the claim; an unknown outcome keeps it.
	Callback(ctx context.Context, k1, paymentRequest string) error

	Cancel(ctx context.Context, voucherID uuid.UUID) error
	ExpireOverdue(ctx context.Context) (int64, error)
}

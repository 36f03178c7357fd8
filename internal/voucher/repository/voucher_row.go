// Package repository implements voucher persistence for PostgreSQL and MySQL.
//
// The issuer API key is sealed at rest. Claim, Unclaim and Cancel are single
// conditional UPDATE statements; the affected row count decides the winner.
package repository

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/voucher/domain"
)

// Sealer encrypts and decrypts key material at rest.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, ciphertext []byte) ([]byte, error)
}

const voucherColumns = `id, amount_sats, wallet_currency, usd_amount_cents, claimed, status, expires_at,
	commission_percent, display_amount, display_currency, api_key, wallet_id, environment,
	claimed_at, payment_hash, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoucher(ctx context.Context, row rowScanner, sealer Sealer) (*domain.Voucher, error) {
	var (
		voucher domain.Voucher
		status  string
		apiKey  []byte
	)

	err := row.Scan(
		&voucher.ID,
		&voucher.AmountSats,
		&voucher.WalletCurrency,
		&voucher.USDAmountCents,
		&voucher.Claimed,
		&status,
		&voucher.ExpiresAt,
		&voucher.CommissionPercent,
		&voucher.DisplayAmount,
		&voucher.DisplayCurrency,
		&apiKey,
		&voucher.WalletID,
		&voucher.Environment,
		&voucher.ClaimedAt,
		&voucher.PaymentHash,
		&voucher.CreatedAt,
		&voucher.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVoucherNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan voucher")
	}
	voucher.Status = domain.Status(status)

	plain, err := sealer.Open(ctx, apiKey)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open voucher api key")
	}
	voucher.APIKey = string(plain)
	return &voucher, nil
}

func sealAPIKey(ctx context.Context, sealer Sealer, voucher *domain.Voucher) ([]byte, error) {
	sealed, err := sealer.Seal(ctx, []byte(voucher.APIKey))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to seal voucher api key")
	}
	return sealed, nil
}

func rowsAffected(result sql.Result, err error, msg string) (int64, error) {
	if err != nil {
		return 0, apperrors.Wrap(err, msg)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, msg)
	}
	return n, nil
}

package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/database"
	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/voucher/domain"
)

// MySQLVoucherRepository implements Voucher persistence for MySQL.
// Uses BINARY(16) for UUID storage.
type MySQLVoucherRepository struct {
	db     *sql.DB
	sealer Sealer
}

func marshalVoucherID(id uuid.UUID) ([]byte, error) {
	b, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal voucher id")
	}
	return b, nil
}

// Create inserts a new voucher with a sealed api key.
func (m *MySQLVoucherRepository) Create(ctx context.Context, voucher *domain.Voucher) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalVoucherID(voucher.ID)
	if err != nil {
		return err
	}
	apiKey, err := sealAPIKey(ctx, m.sealer, voucher)
	if err != nil {
		return err
	}

	query := `INSERT INTO vouchers (` + voucherColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		voucher.AmountSats,
		voucher.WalletCurrency,
		voucher.USDAmountCents,
		voucher.Claimed,
		string(voucher.Status),
		voucher.ExpiresAt,
		voucher.CommissionPercent,
		voucher.DisplayAmount,
		voucher.DisplayCurrency,
		apiKey,
		voucher.WalletID,
		voucher.Environment,
		voucher.ClaimedAt,
		voucher.PaymentHash,
		voucher.CreatedAt,
		voucher.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "voucher already exists")
		}
		return apperrors.Wrap(err, "failed to create voucher")
	}
	return nil
}

// Get retrieves a voucher by id.
func (m *MySQLVoucherRepository) Get(ctx context.Context, voucherID uuid.UUID) (*domain.Voucher, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalVoucherID(voucherID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = ?`

	return scanVoucher(ctx, querier.QueryRowContext(ctx, query, id), m.sealer)
}

// Claim marks an active, unexpired voucher as claimed for paymentHash. It reports
// whether this call won the claim.
func (m *MySQLVoucherRepository) Claim(
	ctx context.Context,
	voucherID uuid.UUID,
	paymentHash string,
	now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalVoucherID(voucherID)
	if err != nil {
		return false, err
	}

	query := `UPDATE vouchers
			  SET claimed = TRUE, status = 'CLAIMED', claimed_at = ?, payment_hash = ?, updated_at = ?
			  WHERE id = ? AND claimed = FALSE AND status = 'ACTIVE' AND expires_at > ?`

	result, err := querier.ExecContext(ctx, query, now, paymentHash, now, id, now)
	n, err := rowsAffected(result, err, "failed to claim voucher")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Unclaim reverts a claim after a definite payment failure.
func (m *MySQLVoucherRepository) Unclaim(ctx context.Context, voucherID uuid.UUID, now time.Time) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalVoucherID(voucherID)
	if err != nil {
		return err
	}

	query := `UPDATE vouchers
			  SET claimed = FALSE, status = 'ACTIVE', claimed_at = NULL, payment_hash = NULL, updated_at = ?
			  WHERE id = ? AND claimed = TRUE`

	result, err := querier.ExecContext(ctx, query, now, id)
	n, err := rowsAffected(result, err, "failed to unclaim voucher")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrVoucherNotFound
	}
	return nil
}

// Cancel cancels an unclaimed active voucher and reports whether it did.
func (m *MySQLVoucherRepository) Cancel(ctx context.Context, voucherID uuid.UUID, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalVoucherID(voucherID)
	if err != nil {
		return false, err
	}

	query := `UPDATE vouchers SET status = 'CANCELLED', updated_at = ?
			  WHERE id = ? AND claimed = FALSE AND status = 'ACTIVE'`

	result, err := querier.ExecContext(ctx, query, now, id)
	n, err := rowsAffected(result, err, "failed to cancel voucher")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpireOverdue moves unclaimed active vouchers past their expiry to EXPIRED.
func (m *MySQLVoucherRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE vouchers SET status = 'EXPIRED', updated_at = ?
			  WHERE status = 'ACTIVE' AND claimed = FALSE AND expires_at <= ?`

	result, err := querier.ExecContext(ctx, query, now, now)
	return rowsAffected(result, err, "failed to expire vouchers")
}

// NewMySQLVoucherRepository creates a new MySQL Voucher repository.
func NewMySQLVoucherRepository(db *sql.DB, sealer Sealer) *MySQLVoucherRepository {
	return &MySQLVoucherRepository{db: db, sealer: sealer}
}

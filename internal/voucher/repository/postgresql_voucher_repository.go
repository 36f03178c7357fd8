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

// PostgreSQLVoucherRepository implements Voucher persistence for PostgreSQL.
type PostgreSQLVoucherRepository struct {
	db     *sql.DB
	sealer Sealer
}

// Create inserts a new voucher with a sealed api key.
func (p *PostgreSQLVoucherRepository) Create(ctx context.Context, voucher *domain.Voucher) error {
	querier := database.GetTx(ctx, p.db)

	apiKey, err := sealAPIKey(ctx, p.sealer, voucher)
	if err != nil {
		return err
	}

	query := `INSERT INTO vouchers (` + voucherColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = querier.ExecContext(
		ctx,
		query,
		voucher.ID,
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
func (p *PostgreSQLVoucherRepository) Get(ctx context.Context, voucherID uuid.UUID) (*domain.Voucher, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`

	return scanVoucher(ctx, querier.QueryRowContext(ctx, query, voucherID), p.sealer)
}

// Claim marks an active, unexpired voucher as claimed for paymentHash. It reports
// whether this call won the claim.
func (p *PostgreSQLVoucherRepository) Claim(
	ctx context.Context,
	voucherID uuid.UUID,
	paymentHash string,
	now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE vouchers
			  SET claimed = TRUE, status = 'CLAIMED', claimed_at = $2, payment_hash = $3, updated_at = $2
			  WHERE id = $1 AND claimed = FALSE AND status = 'ACTIVE' AND expires_at > $2`

	result, err := querier.ExecContext(ctx, query, voucherID, now, paymentHash)
	n, err := rowsAffected(result, err, "failed to claim voucher")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Unclaim reverts a claim after a definite payment failure.
func (p *PostgreSQLVoucherRepository) Unclaim(ctx context.Context, voucherID uuid.UUID, now time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE vouchers
			  SET claimed = FALSE, status = 'ACTIVE', claimed_at = NULL, payment_hash = NULL, updated_at = $2
			  WHERE id = $1 AND claimed = TRUE`

	result, err := querier.ExecContext(ctx, query, voucherID, now)
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
func (p *PostgreSQLVoucherRepository) Cancel(ctx context.Context, voucherID uuid.UUID, now time.Time) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE vouchers SET status = 'CANCELLED', updated_at = $2
			  WHERE id = $1 AND claimed = FALSE AND status = 'ACTIVE'`

	result, err := querier.ExecContext(ctx, query, voucherID, now)
	n, err := rowsAffected(result, err, "failed to cancel voucher")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpireOverdue moves unclaimed active vouchers past their expiry to EXPIRED.
func (p *PostgreSQLVoucherRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE vouchers SET status = 'EXPIRED', updated_at = $1
			  WHERE status = 'ACTIVE' AND claimed = FALSE AND expires_at <= $1`

	result, err := querier.ExecContext(ctx, query, now)
	return rowsAffected(result, err, "failed to expire vouchers")
}

// NewPostgreSQLVoucherRepository creates a new PostgreSQL Voucher repository.
func NewPostgreSQLVoucherRepository(db *sql.DB, sealer Sealer) *PostgreSQLVoucherRepository {
	return &PostgreSQLVoucherRepository{db: db, sealer: sealer}
}

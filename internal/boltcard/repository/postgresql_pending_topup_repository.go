package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/database"
	apperrors "github.com/allisson/boltgate/internal/errors"
)

const pendingTopUpColumns = `payment_hash, card_id, payment_request, amount_sats, wallet_id, expires_at, created_at`

// PostgreSQLPendingTopUpRepository implements PendingTopUp persistence for PostgreSQL.
type PostgreSQLPendingTopUpRepository struct {
	db *sql.DB
}

// Create registers an issued top-up invoice.
func (p *PostgreSQLPendingTopUpRepository) Create(ctx context.Context, topUp *domain.PendingTopUp) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO pending_topups (` + pendingTopUpColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := querier.ExecContext(
		ctx,
		query,
		topUp.PaymentHash,
		topUp.CardID,
		topUp.PaymentRequest,
		topUp.AmountSats,
		topUp.WalletID,
		topUp.ExpiresAt,
		topUp.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "pending top-up already registered")
		}
		return apperrors.Wrap(err, "failed to create pending top-up")
	}
	return nil
}

// Get retrieves a pending top-up by payment hash.
func (p *PostgreSQLPendingTopUpRepository) Get(ctx context.Context, paymentHash string) (*domain.PendingTopUp, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pendingTopUpColumns + ` FROM pending_topups WHERE payment_hash = $1`

	topUp, err := scanPendingTopUp(querier.QueryRowContext(ctx, query, paymentHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTopUpNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get pending top-up")
	}
	return topUp, nil
}

// ListByCard retrieves the pending top-ups of one card, oldest first.
func (p *PostgreSQLPendingTopUpRepository) ListByCard(
	ctx context.Context,
	cardID uuid.UUID,
) ([]*domain.PendingTopUp, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pendingTopUpColumns + ` FROM pending_topups WHERE card_id = $1 ORDER BY created_at`

	rows, err := querier.QueryContext(ctx, query, cardID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending top-ups")
	}
	return scanPendingTopUps(rows)
}

// ListAll retrieves up to limit pending top-ups across all cards, oldest first.
func (p *PostgreSQLPendingTopUpRepository) ListAll(ctx context.Context, limit int) ([]*domain.PendingTopUp, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pendingTopUpColumns + ` FROM pending_topups ORDER BY created_at LIMIT $1`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending top-ups")
	}
	return scanPendingTopUps(rows)
}

// Delete removes a pending top-up and reports whether this call removed it. Concurrent
// processors race on this statement and only the one that deleted the row may credit.
func (p *PostgreSQLPendingTopUpRepository) Delete(ctx context.Context, paymentHash string) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM pending_topups WHERE payment_hash = $1`, paymentHash)
	n, err := rowsAffectedOrErr(result, err, "failed to delete pending top-up")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// NewPostgreSQLPendingTopUpRepository creates a new PostgreSQL PendingTopUp repository.
func NewPostgreSQLPendingTopUpRepository(db *sql.DB) *PostgreSQLPendingTopUpRepository {
	return &PostgreSQLPendingTopUpRepository{db: db}
}

func scanPendingTopUp(row rowScanner) (*domain.PendingTopUp, error) {
	var topUp domain.PendingTopUp
	err := row.Scan(
		&topUp.PaymentHash,
		&topUp.CardID,
		&topUp.PaymentRequest,
		&topUp.AmountSats,
		&topUp.WalletID,
		&topUp.ExpiresAt,
		&topUp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &topUp, nil
}

func scanPendingTopUps(rows *sql.Rows) ([]*domain.PendingTopUp, error) {
	defer func() {
		_ = rows.Close()
	}()

	topUps := make([]*domain.PendingTopUp, 0)
	for rows.Next() {
		topUp, err := scanPendingTopUp(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan pending top-up row")
		}
		topUps = append(topUps, topUp)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "error iterating pending top-up rows")
	}
	return topUps, nil
}

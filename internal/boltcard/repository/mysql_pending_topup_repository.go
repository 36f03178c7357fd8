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

// MySQLPendingTopUpRepository implements PendingTopUp persistence for MySQL.
type MySQLPendingTopUpRepository struct {
	db *sql.DB
}

// Create registers an issued top-up invoice.
func (m *MySQLPendingTopUpRepository) Create(ctx context.Context, topUp *domain.PendingTopUp) error {
	querier := database.GetTx(ctx, m.db)

	cardID, err := marshalID(topUp.CardID, "card")
	if err != nil {
		return err
	}

	query := `INSERT INTO pending_topups (` + pendingTopUpColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		topUp.PaymentHash,
		cardID,
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
func (m *MySQLPendingTopUpRepository) Get(ctx context.Context, paymentHash string) (*domain.PendingTopUp, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + pendingTopUpColumns + ` FROM pending_topups WHERE payment_hash = ?`

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
func (m *MySQLPendingTopUpRepository) ListByCard(
	ctx context.Context,
	cardID uuid.UUID,
) ([]*domain.PendingTopUp, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + pendingTopUpColumns + ` FROM pending_topups WHERE card_id = ? ORDER BY created_at`

	rows, err := querier.QueryContext(ctx, query, id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending top-ups")
	}
	return scanPendingTopUps(rows)
}

// ListAll retrieves up to limit pending top-ups across all cards, oldest first.
func (m *MySQLPendingTopUpRepository) ListAll(ctx context.Context, limit int) ([]*domain.PendingTopUp, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + pendingTopUpColumns + ` FROM pending_topups ORDER BY created_at LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list pending top-ups")
	}
	return scanPendingTopUps(rows)
}

// Delete removes a pending top-up and reports whether this call removed it.
func (m *MySQLPendingTopUpRepository) Delete(ctx context.Context, paymentHash string) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	result, err := querier.ExecContext(ctx, `DELETE FROM pending_topups WHERE payment_hash = ?`, paymentHash)
	n, err := rowsAffectedOrErr(result, err, "failed to delete pending top-up")
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// NewMySQLPendingTopUpRepository creates a new MySQL PendingTopUp repository.
func NewMySQLPendingTopUpRepository(db *sql.DB) *MySQLPendingTopUpRepository {
	return &MySQLPendingTopUpRepository{db: db}
}

package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/database"
	apperrors "github.com/allisson/boltgate/internal/errors"
)

// MySQLTransactionRepository implements the append-only card ledger for MySQL.
type MySQLTransactionRepository struct {
	db *sql.DB
}

// Create appends a ledger entry. A duplicate (card_id, payment_hash) returns ErrConflict.
func (m *MySQLTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(tx.ID, "transaction")
	if err != nil {
		return err
	}
	cardID, err := marshalID(tx.CardID, "card")
	if err != nil {
		return err
	}

	query := `INSERT INTO card_transactions (` + transactionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		cardID,
		string(tx.Type),
		tx.Amount,
		tx.BalanceAfter,
		tx.Description,
		tx.PaymentHash,
		tx.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "transaction already recorded")
		}
		return apperrors.Wrap(err, "failed to create card transaction")
	}
	return nil
}

// ListByCard retrieves a card's ledger, newest first.
func (m *MySQLTransactionRepository) ListByCard(
	ctx context.Context,
	cardID uuid.UUID,
	offset, limit int,
) ([]*domain.Transaction, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + transactionColumns + ` FROM card_transactions
			  WHERE card_id = ?
			  ORDER BY created_at DESC, id DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, id, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list card transactions")
	}
	return scanTransactions(rows)
}

// NewMySQLTransactionRepository creates a new MySQL card ledger repository.
func NewMySQLTransactionRepository(db *sql.DB) *MySQLTransactionRepository {
	return &MySQLTransactionRepository{db: db}
}

package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/database"
	apperrors "github.com/allisson/boltgate/internal/errors"
)

const transactionColumns = `id, card_id, type, amount, balance_after, description, payment_hash, created_at`

// PostgreSQLTransactionRepository implements the append-only card ledger for PostgreSQL.
type PostgreSQLTransactionRepository struct {
	db *sql.DB
}

// Create appends a ledger entry. A second TOPUP with the same payment hash for the same
// card violates the unique index and returns ErrConflict.
func (p *PostgreSQLTransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO card_transactions (` + transactionColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(
		ctx,
		query,
		tx.ID,
		tx.CardID,
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
func (p *PostgreSQLTransactionRepository) ListByCard(
	ctx context.Context,
	cardID uuid.UUID,
	offset, limit int,
) ([]*domain.Transaction, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + transactionColumns + ` FROM card_transactions
			  WHERE card_id = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2 OFFSET $3`

	rows, err := querier.QueryContext(ctx, query, cardID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list card transactions")
	}
	return scanTransactions(rows)
}

// NewPostgreSQLTransactionRepository creates a new PostgreSQL card ledger repository.
func NewPostgreSQLTransactionRepository(db *sql.DB) *PostgreSQLTransactionRepository {
	return &PostgreSQLTransactionRepository{db: db}
}

func scanTransactions(rows *sql.Rows) ([]*domain.Transaction, error) {
	defer func() {
		_ = rows.Close()
	}()

	txs := make([]*domain.Transaction, 0)
	for rows.Next() {
		var (
			tx     domain.Transaction
			txType string
		)
		err := rows.Scan(
			&tx.ID,
			&tx.CardID,
			&txType,
			&tx.Amount,
			&tx.BalanceAfter,
			&tx.Description,
			&tx.PaymentHash,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan card transaction row")
		}
		tx.Type = domain.TransactionType(txType)
		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "error iterating card transaction rows")
	}
	return txs, nil
}

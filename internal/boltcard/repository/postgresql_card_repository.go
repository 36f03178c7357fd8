package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/database"
	apperrors "github.com/allisson/boltgate/internal/errors"
)

// PostgreSQLCardRepository implements Card persistence for PostgreSQL.
type PostgreSQLCardRepository struct {
	db     *sql.DB
	sealer Sealer
}

// Create inserts a new card with sealed keys.
func (p *PostgreSQLCardRepository) Create(ctx context.Context, card *domain.Card) error {
	querier := database.GetTx(ctx, p.db)

	sealed, err := sealCard(ctx, p.sealer, card)
	if err != nil {
		return err
	}

	query := `INSERT INTO cards (` + cardColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			  $19, $20, $21, $22, $23, $24, $25)`

	_, err = querier.ExecContext(
		ctx,
		query,
		card.ID,
		card.IDHash,
		nullableString(card.UID),
		card.Name,
		sealed[0],
		sealed[1],
		sealed[2],
		sealed[3],
		sealed[4],
		sealed[5],
		card.WalletID,
		card.WalletCurrency,
		card.Environment,
		card.Balance,
		card.MaxTxAmount,
		card.DailyLimit,
		card.DailySpent,
		card.DailyResetAt,
		int64(card.LastCounter),
		int64(card.LastWithdrawCounter),
		string(card.Status),
		card.CreatedAt,
		card.ActivatedAt,
		card.LastUsedAt,
		card.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.Wrap(apperrors.ErrConflict, "card already exists")
		}
		return apperrors.Wrap(err, "failed to create card")
	}
	return nil
}

// Get retrieves a card by id.
func (p *PostgreSQLCardRepository) Get(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	querier := database.GetTx(ctx, p.db)
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`
	return scanCard(ctx, querier.QueryRowContext(ctx, query, cardID), p.sealer)
}

// GetByIDHash retrieves a card by its public identifier.
func (p *PostgreSQLCardRepository) GetByIDHash(ctx context.Context, idHash string) (*domain.Card, error) {
	querier := database.GetTx(ctx, p.db)
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id_hash = $1`
	return scanCard(ctx, querier.QueryRowContext(ctx, query, idHash), p.sealer)
}

// GetForUpdate retrieves a card and locks its row until the surrounding transaction ends.
// It must be called inside database.TxManager.WithTx.
func (p *PostgreSQLCardRepository) GetForUpdate(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	querier := database.GetTx(ctx, p.db)
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1 FOR UPDATE`
	return scanCard(ctx, querier.QueryRowContext(ctx, query, cardID), p.sealer)
}

// List retrieves cards ordered by creation time descending.
func (p *PostgreSQLCardRepository) List(ctx context.Context, offset, limit int) ([]*domain.Card, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + cardColumns + ` FROM cards ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list cards")
	}
	defer func() {
		_ = rows.Close()
	}()

	cards := make([]*domain.Card, 0)
	for rows.Next() {
		card, err := scanCard(ctx, rows, p.sealer)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "error iterating card rows")
	}

	return cards, nil
}

// AdvanceCounter stores counter as the last seen tap counter if it is strictly greater
// than the stored one. Returns ErrCounterReplay otherwise.
func (p *PostgreSQLCardRepository) AdvanceCounter(
	ctx context.Context,
	cardID uuid.UUID,
	counter uint32,
	usedAt time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards SET last_counter = $2, last_used_at = $3, updated_at = $3
			  WHERE id = $1 AND last_counter < $2`

	result, err := querier.ExecContext(ctx, query, cardID, int64(counter), usedAt)
	n, err := rowsAffectedOrErr(result, err, "failed to advance card counter")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCounterReplay
	}
	return nil
}

// ClaimWithdrawCounter marks the tap with counter as spent. It succeeds only when counter
// is the last verified tap and no withdraw used it yet.
func (p *PostgreSQLCardRepository) ClaimWithdrawCounter(
	ctx context.Context,
	cardID uuid.UUID,
	counter uint32,
	now time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards SET last_withdraw_counter = $2, updated_at = $3
			  WHERE id = $1 AND last_counter = $2 AND last_withdraw_counter < $2`

	result, err := querier.ExecContext(ctx, query, cardID, int64(counter), now)
	n, err := rowsAffectedOrErr(result, err, "failed to claim withdraw counter")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTapAlreadyUsed
	}
	return nil
}

// ApplyBalanceDelta adds delta to the balance and dailyDelta to the daily spend in one
// conditional statement. The daily spend never drops below zero. Returns the new balance,
// or ErrNegativeBalance when the balance would become negative.
func (p *PostgreSQLCardRepository) ApplyBalanceDelta(
	ctx context.Context,
	cardID uuid.UUID,
	delta, dailyDelta int64,
	now time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards
			  SET balance = balance + $2,
				  daily_spent = GREATEST(daily_spent + $3, 0),
				  updated_at = $4
			  WHERE id = $1 AND balance + $2 >= 0
			  RETURNING balance`

	var balance int64
	err := querier.QueryRowContext(ctx, query, cardID, delta, dailyDelta, now).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNegativeBalance
		}
		return 0, apperrors.Wrap(err, "failed to update card balance")
	}
	return balance, nil
}

// UpdateStatus changes the card status. The first activation records activated_at.
func (p *PostgreSQLCardRepository) UpdateStatus(
	ctx context.Context,
	cardID uuid.UUID,
	status domain.CardStatus,
	now time.Time,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards
			  SET status = $2,
				  activated_at = CASE WHEN $4 THEN COALESCE(activated_at, $3) ELSE activated_at END,
				  updated_at = $3
			  WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, cardID, string(status), now, status == domain.CardStatusActive)
	n, err := rowsAffectedOrErr(result, err, "failed to update card status")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

// BindUID records the card UID proven by the first tap. A UID already bound is never
// replaced.
func (p *PostgreSQLCardRepository) BindUID(ctx context.Context, cardID uuid.UUID, uid string, now time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards SET uid = $2, updated_at = $3 WHERE id = $1 AND uid IS NULL`

	result, err := querier.ExecContext(ctx, query, cardID, uid, now)
	n, err := rowsAffectedOrErr(result, err, "failed to bind card uid")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUIDMismatch
	}
	return nil
}

// UpdateSettings changes the card name and spending limits.
func (p *PostgreSQLCardRepository) UpdateSettings(ctx context.Context, card *domain.Card) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards SET name = $2, max_tx_amount = $3, daily_limit = $4, updated_at = $5
			  WHERE id = $1`

	result, err := querier.ExecContext(
		ctx,
		query,
		card.ID,
		card.Name,
		card.MaxTxAmount,
		card.DailyLimit,
		card.UpdatedAt,
	)
	n, err := rowsAffectedOrErr(result, err, "failed to update card settings")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

// ResetDailySpent zeroes the daily spend of one card.
func (p *PostgreSQLCardRepository) ResetDailySpent(ctx context.Context, cardID uuid.UUID, now time.Time) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards SET daily_spent = 0, daily_reset_at = $2, updated_at = $2 WHERE id = $1`

	result, err := querier.ExecContext(ctx, query, cardID, now)
	n, err := rowsAffectedOrErr(result, err, "failed to reset card daily spend")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCardNotFound
	}
	return nil
}

// ResetDailySpentBefore zeroes the daily spend of one card only when its window began
// before the given time, and reports whether the row changed.
func (p *PostgreSQLCardRepository) ResetDailySpentBefore(
	ctx context.Context,
	cardID uuid.UUID,
	before, now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards SET daily_spent = 0, daily_reset_at = $3, updated_at = $3
			  WHERE id = $1 AND daily_reset_at < $2`

	result, err := querier.ExecContext(ctx, query, cardID, before, now)
	n, err := rowsAffectedOrErr(result, err, "failed to reset card daily spend")
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResetAllDailySpent zeroes the daily spend of every card last reset before the given
// time and returns how many cards changed.
func (p *PostgreSQLCardRepository) ResetAllDailySpent(ctx context.Context, before, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE cards SET daily_spent = 0, daily_reset_at = $2, updated_at = $2
			  WHERE daily_reset_at < $1 AND status <> 'WIPED'`

	result, err := querier.ExecContext(ctx, query, before, now)
	return rowsAffectedOrErr(result, err, "failed to reset daily spend")
}

// NewPostgreSQLCardRepository creates a new PostgreSQL Card repository.
func NewPostgreSQLCardRepository(db *sql.DB, sealer Sealer) *PostgreSQLCardRepository {
	return &PostgreSQLCardRepository{db: db, sealer: sealer}
}

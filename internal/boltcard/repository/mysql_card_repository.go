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

// MySQLCardRepository implements Card persistence for MySQL.
// Uses BINARY(16) for UUID storage. MySQL reports changed rows, not matched rows, as
// affected, so only the conditional statements inspect the count.
type MySQLCardRepository struct {
	db     *sql.DB
	sealer Sealer
}

func marshalID(id uuid.UUID, what string) ([]byte, error) {
	b, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to marshal %s id", what)
	}
	return b, nil
}

// Create inserts a new card with sealed keys.
func (m *MySQLCardRepository) Create(ctx context.Context, card *domain.Card) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(card.ID, "card")
	if err != nil {
		return err
	}

	sealed, err := sealCard(ctx, m.sealer, card)
	if err != nil {
		return err
	}

	query := `INSERT INTO cards (` + cardColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
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

func (m *MySQLCardRepository) getBy(ctx context.Context, where string, arg any) (*domain.Card, error) {
	querier := database.GetTx(ctx, m.db)
	query := `SELECT ` + cardColumns + ` FROM cards WHERE ` + where
	return scanCard(ctx, querier.QueryRowContext(ctx, query, arg), m.sealer)
}

// Get retrieves a card by id.
func (m *MySQLCardRepository) Get(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	id, err := marshalID(cardID, "card")
	if err != nil {
		return nil, err
	}
	return m.getBy(ctx, "id = ?", id)
}

// GetByIDHash retrieves a card by its public identifier.
func (m *MySQLCardRepository) GetByIDHash(ctx context.Context, idHash string) (*domain.Card, error) {
	return m.getBy(ctx, "id_hash = ?", idHash)
}

// GetForUpdate retrieves a card and locks its row until the surrounding transaction ends.
func (m *MySQLCardRepository) GetForUpdate(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	id, err := marshalID(cardID, "card")
	if err != nil {
		return nil, err
	}
	return m.getBy(ctx, "id = ? FOR UPDATE", id)
}

// List retrieves cards ordered by creation time descending.
func (m *MySQLCardRepository) List(ctx context.Context, offset, limit int) ([]*domain.Card, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + cardColumns + ` FROM cards ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list cards")
	}
	defer func() {
		_ = rows.Close()
	}()

	cards := make([]*domain.Card, 0)
	for rows.Next() {
		card, err := scanCard(ctx, rows, m.sealer)
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
func (m *MySQLCardRepository) AdvanceCounter(
	ctx context.Context,
	cardID uuid.UUID,
	counter uint32,
	usedAt time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return err
	}

	query := `UPDATE cards SET last_counter = ?, last_used_at = ?, updated_at = ?
			  WHERE id = ? AND last_counter < ?`

	result, err := querier.ExecContext(ctx, query, int64(counter), usedAt, usedAt, id, int64(counter))
	n, err := rowsAffectedOrErr(result, err, "failed to advance card counter")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrCounterReplay
	}
	return nil
}

// ClaimWithdrawCounter marks the tap with counter as spent.
func (m *MySQLCardRepository) ClaimWithdrawCounter(
	ctx context.Context,
	cardID uuid.UUID,
	counter uint32,
	now time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return err
	}

	query := `UPDATE cards SET last_withdraw_counter = ?, updated_at = ?
			  WHERE id = ? AND last_counter = ? AND last_withdraw_counter < ?`

	result, err := querier.ExecContext(ctx, query, int64(counter), now, id, int64(counter), int64(counter))
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
// conditional statement, then reads the new balance in the same transaction.
func (m *MySQLCardRepository) ApplyBalanceDelta(
	ctx context.Context,
	cardID uuid.UUID,
	delta, dailyDelta int64,
	now time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return 0, err
	}

	query := `UPDATE cards
			  SET balance = balance + ?,
				  daily_spent = GREATEST(daily_spent + ?, 0),
				  updated_at = ?
			  WHERE id = ? AND balance + ? >= 0`

	result, err := querier.ExecContext(ctx, query, delta, dailyDelta, now, id, delta)
	n, err := rowsAffectedOrErr(result, err, "failed to update card balance")
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, domain.ErrNegativeBalance
	}

	var balance int64
	err = querier.QueryRowContext(ctx, `SELECT balance FROM cards WHERE id = ?`, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrCardNotFound
		}
		return 0, apperrors.Wrap(err, "failed to read card balance")
	}
	return balance, nil
}

// UpdateStatus changes the card status. The first activation records activated_at.
func (m *MySQLCardRepository) UpdateStatus(
	ctx context.Context,
	cardID uuid.UUID,
	status domain.CardStatus,
	now time.Time,
) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return err
	}

	query := `UPDATE cards
			  SET status = ?,
				  activated_at = CASE WHEN ? THEN COALESCE(activated_at, ?) ELSE activated_at END,
				  updated_at = ?
			  WHERE id = ?`

	_, err = querier.ExecContext(
		ctx,
		query,
		string(status),
		status == domain.CardStatusActive,
		now,
		now,
		id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update card status")
	}
	return nil
}

// BindUID records the card UID proven by the first tap. A UID already bound is never
// replaced.
func (m *MySQLCardRepository) BindUID(ctx context.Context, cardID uuid.UUID, uid string, now time.Time) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return err
	}

	query := `UPDATE cards SET uid = ?, updated_at = ? WHERE id = ? AND uid IS NULL`

	result, err := querier.ExecContext(ctx, query, uid, now, id)
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
func (m *MySQLCardRepository) UpdateSettings(ctx context.Context, card *domain.Card) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(card.ID, "card")
	if err != nil {
		return err
	}

	query := `UPDATE cards SET name = ?, max_tx_amount = ?, daily_limit = ?, updated_at = ? WHERE id = ?`

	_, err = querier.ExecContext(ctx, query, card.Name, card.MaxTxAmount, card.DailyLimit, card.UpdatedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update card settings")
	}
	return nil
}

// ResetDailySpent zeroes the daily spend of one card.
func (m *MySQLCardRepository) ResetDailySpent(ctx context.Context, cardID uuid.UUID, now time.Time) error {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return err
	}

	query := `UPDATE cards SET daily_spent = 0, daily_reset_at = ?, updated_at = ? WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, now, now, id); err != nil {
		return apperrors.Wrap(err, "failed to reset card daily spend")
	}
	return nil
}

// ResetDailySpentBefore zeroes the daily spend of one card only when its window began
// before the given time, and reports whether the row changed.
func (m *MySQLCardRepository) ResetDailySpentBefore(
	ctx context.Context,
	cardID uuid.UUID,
	before, now time.Time,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := marshalID(cardID, "card")
	if err != nil {
		return false, err
	}

	query := `UPDATE cards SET daily_spent = 0, daily_reset_at = ?, updated_at = ?
			  WHERE id = ? AND daily_reset_at < ?`

	result, err := querier.ExecContext(ctx, query, now, now, id, before)
	n, err := rowsAffectedOrErr(result, err, "failed to reset card daily spend")
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResetAllDailySpent zeroes the daily spend of every card last reset before the given
// time and returns how many cards changed.
func (m *MySQLCardRepository) ResetAllDailySpent(ctx context.Context, before, now time.Time) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE cards SET daily_spent = 0, daily_reset_at = ?, updated_at = ?
			  WHERE daily_reset_at < ? AND status <> 'WIPED'`

	result, err := querier.ExecContext(ctx, query, now, now, before)
	return rowsAffectedOrErr(result, err, "failed to reset daily spend")
}

// NewMySQLCardRepository creates a new MySQL Card repository.
func NewMySQLCardRepository(db *sql.DB, sealer Sealer) *MySQLCardRepository {
	return &MySQLCardRepository{db: db, sealer: sealer}
}

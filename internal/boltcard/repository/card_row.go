// Package repository implements Boltcard persistence for PostgreSQL and MySQL.
//
// Card keys and wallet API keys are sealed before they are written and opened after
// they are read, so ciphertext never leaves this package. PostgreSQL uses native UUID
// types, MySQL uses BINARY(16). All queries run inside the caller's transaction when
// one is carried by the context (database.GetTx).
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	apperrors "github.com/allisson/boltgate/internal/errors"
)

// Sealer encrypts and decrypts key material at rest.
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) ([]byte, error)
	Open(ctx context.Context, ciphertext []byte) ([]byte, error)
}

const cardColumns = `id, id_hash, uid, name, k0, k1, k2, k3, k4, api_key, wallet_id, wallet_currency,
	environment, balance, max_tx_amount, daily_limit, daily_spent, daily_reset_at, last_counter,
	last_withdraw_counter, status, created_at, activated_at, last_used_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// sealedSecrets holds the sealed k0..k4 and api key, in column order.
type sealedSecrets [6][]byte

func sealCard(ctx context.Context, sealer Sealer, card *domain.Card) (sealedSecrets, error) {
	var out sealedSecrets
	plain := [][]byte{card.Keys.K0, card.Keys.K1, card.Keys.K2, card.Keys.K3, card.Keys.K4, []byte(card.APIKey)}
	for i, p := range plain {
		sealed, err := sealer.Seal(ctx, p)
		if err != nil {
			return out, apperrors.Wrap(err, "failed to seal card secret")
		}
		out[i] = sealed
	}
	return out, nil
}

func openCard(ctx context.Context, sealer Sealer, card *domain.Card, sealed sealedSecrets) error {
	opened := make([][]byte, len(sealed))
	for i, s := range sealed {
		p, err := sealer.Open(ctx, s)
		if err != nil {
			return apperrors.Wrap(err, "failed to open card secret")
		}
		opened[i] = p
	}
	card.Keys = domain.Keys{K0: opened[0], K1: opened[1], K2: opened[2], K3: opened[3], K4: opened[4]}
	card.APIKey = string(opened[5])
	return nil
}

// scanCard reads one row selected with cardColumns. uuid.UUID scans both native
// UUID columns and BINARY(16).
func scanCard(ctx context.Context, row rowScanner, sealer Sealer) (*domain.Card, error) {
	var (
		card                      domain.Card
		uid                       sql.NullString
		sealed                    sealedSecrets
		lastCounter, lastWithdraw int64
		status                    string
	)

	err := row.Scan(
		&card.ID,
		&card.IDHash,
		&uid,
		&card.Name,
		&sealed[0],
		&sealed[1],
		&sealed[2],
		&sealed[3],
		&sealed[4],
		&sealed[5],
		&card.WalletID,
		&card.WalletCurrency,
		&card.Environment,
		&card.Balance,
		&card.MaxTxAmount,
		&card.DailyLimit,
		&card.DailySpent,
		&card.DailyResetAt,
		&lastCounter,
		&lastWithdraw,
		&status,
		&card.CreatedAt,
		&card.ActivatedAt,
		&card.LastUsedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCardNotFound
		}
		return nil, apperrors.Wrap(err, "failed to scan card")
	}

	card.UID = uid.String
	card.LastCounter = uint32(lastCounter)         //nolint:gosec // stored from uint32
	card.LastWithdrawCounter = uint32(lastWithdraw) //nolint:gosec // stored from uint32
	card.Status = domain.CardStatus(status)

	if err := openCard(ctx, sealer, &card, sealed); err != nil {
		return nil, err
	}
	return &card, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func rowsAffectedOrErr(result sql.Result, err error, msg string) (int64, error) {
	if err != nil {
		return 0, apperrors.Wrap(err, msg)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, msg)
	}
	return n, nil
}

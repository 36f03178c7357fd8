package repository

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/allisson/boltgate/internal/boltcard/domain"
)

var sealedPrefix = []byte("sealed:")

type prefixSealer struct{}

func (prefixSealer) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	return append(append([]byte{}, sealedPrefix...), plaintext...), nil
}

func (prefixSealer) Open(_ context.Context, ciphertext []byte) ([]byte, error) {
	if !bytes.HasPrefix(ciphertext, sealedPrefix) {
		return nil, errors.New("not sealed")
	}
	return append([]byte{}, ciphertext[len(sealedPrefix):]...), nil
}

func sealed(b []byte) []byte {
	out, _ := prefixSealer{}.Seal(context.Background(), b)
	return out
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func key(b byte) []byte {
	return bytes.Repeat([]byte{b}, domain.KeySize)
}

func testCard() *domain.Card {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limit := int64(5000)
	return &domain.Card{
		ID:     uuid.Must(uuid.NewV7()),
		IDHash: "9f2c",
		Name:   "coffee card",
		Keys: domain.Keys{
			K0: key(0x00),
			K1: key(0x01),
			K2: key(0x02),
			K3: key(0x00),
			K4: key(0x00),
		},
		APIKey:         "blink_api_key",
		WalletID:       "wallet-1",
		WalletCurrency: "BTC",
		Environment:    "production",
		Balance:        10000,
		DailyLimit:     &limit,
		DailyResetAt:   now,
		LastCounter:    7,
		Status:         domain.CardStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

var cardColumnNames = []string{
	"id", "id_hash", "uid", "name", "k0", "k1", "k2", "k3", "k4", "api_key", "wallet_id",
	"wallet_currency", "environment", "balance", "max_tx_amount", "daily_limit", "daily_spent",
	"daily_reset_at", "last_counter", "last_withdraw_counter", "status", "created_at",
	"activated_at", "last_used_at", "updated_at",
}

func cardRow(card *domain.Card) []driver.Value {
	var uid driver.Value
	if card.UID != "" {
		uid = card.UID
	}
	var dailyLimit driver.Value
	if card.DailyLimit != nil {
		dailyLimit = *card.DailyLimit
	}
	return []driver.Value{
		card.ID.String(),
		card.IDHash,
		uid,
		card.Name,
		sealed(card.Keys.K0),
		sealed(card.Keys.K1),
		sealed(card.Keys.K2),
		sealed(card.Keys.K3),
		sealed(card.Keys.K4),
		sealed([]byte(card.APIKey)),
		card.WalletID,
		card.WalletCurrency,
		card.Environment,
		card.Balance,
		nil,
		dailyLimit,
		card.DailySpent,
		card.DailyResetAt,
		int64(card.LastCounter),
		int64(card.LastWithdrawCounter),
		string(card.Status),
		card.CreatedAt,
		nil,
		nil,
		card.UpdatedAt,
	}
}

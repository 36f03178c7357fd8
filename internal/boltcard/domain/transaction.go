package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a card ledger entry.
type TransactionType string

// Transaction types.
const (
	TransactionWithdraw TransactionType = "WITHDRAW"
	TransactionTopUp    TransactionType = "TOPUP"
	TransactionAdjust   TransactionType = "ADJUST"
)

// Transaction is an append-only card ledger entry. Amount is signed: debits are negative.
type Transaction struct {
	ID           uuid.UUID
	CardID       uuid.UUID
	Type         TransactionType
	Amount       int64
	BalanceAfter int64
	Description  string
	PaymentHash  *string
	CreatedAt    time.Time
}

// TransactionInput describes a ledger entry to record.
type TransactionInput struct {
	Type         TransactionType
	Amount       int64
	BalanceAfter int64
	Description  string
	PaymentHash  string
}

// PendingTopUp is an issued top-up invoice awaiting settlement.
type PendingTopUp struct {
	PaymentHash    string
	CardID         uuid.UUID
	PaymentRequest string
	AmountSats     int64
	WalletID       string
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// Expired reports whether the invoice expiry has passed.
func (p *PendingTopUp) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}

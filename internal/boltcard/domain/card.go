// Package domain defines the Boltcard domain model: cards, their ledger of transactions
// and pending top-up invoices.
//
// Card amounts (balance, limits, daily spend) are expressed in the smallest unit of the
// card's wallet currency: satoshis for BTC cards and cents for USD cards.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardStatus is the lifecycle state of a card.
type CardStatus string

// Card statuses. WIPED is terminal.
const (
	CardStatusPending  CardStatus = "PENDING"
	CardStatusActive   CardStatus = "ACTIVE"
	CardStatusDisabled CardStatus = "DISABLED"
	CardStatusWiped    CardStatus = "WIPED"
)

// KeySize is the size in bytes of every card key.
const KeySize = 16

// Keys holds the five AES-128 application keys of an NTAG 424 DNA card.
// K1 decrypts PICCData, K2 derives the SUN MAC session key.
type Keys struct {
	K0 []byte
	K1 []byte
	K2 []byte
	K3 []byte
	K4 []byte
}

// Zero overwrites all key material.
func (k *Keys) Zero() {
	for _, key := range [][]byte{k.K0, k.K1, k.K2, k.K3, k.K4} {
		for i := range key {
			key[i] = 0
		}
	}
}

// Card is a programmed Boltcard bound to a custodial wallet.
type Card struct {
	ID                  uuid.UUID
	IDHash              string // public identifier used in card URLs
	UID                 string // 14 hex chars, empty until the first verified tap
	Name                string
	Keys                Keys
	APIKey              string //nolint:gosec // plaintext only in memory
	WalletID            string
	WalletCurrency      string
	Environment         string
	Balance             int64
	MaxTxAmount         *int64
	DailyLimit          *int64
	DailySpent          int64
	DailyResetAt        time.Time
	LastCounter         uint32
	LastWithdrawCounter uint32
	Status              CardStatus
	CreatedAt           time.Time
	ActivatedAt         *time.Time
	LastUsedAt          *time.Time
	UpdatedAt           time.Time
}

// CanTransitionTo validates a status change.
func (c *Card) CanTransitionTo(next CardStatus) error {
	if c.Status == CardStatusWiped {
		if next == CardStatusWiped {
			return ErrCardAlreadyWiped
		}
		return ErrCardWiped
	}

	switch next {
	case CardStatusActive:
		if c.Status == CardStatusPending || c.Status == CardStatusDisabled {
			return nil
		}
	case CardStatusDisabled:
		if c.Status == CardStatusActive {
			return nil
		}
	case CardStatusWiped:
		return nil
	}
	return ErrInvalidTransition
}

// CheckUsable reports why a card cannot be used for payments, if it cannot.
// Pending cards are usable; the first verified tap activates them.
func (c *Card) CheckUsable() error {
	switch c.Status {
	case CardStatusWiped:
		return ErrCardWiped
	case CardStatusDisabled:
		return ErrCardDisabled
	}
	return nil
}

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NeedsDailyReset reports whether the daily spend belongs to a previous UTC day.
func (c *Card) NeedsDailyReset(now time.Time) bool {
	y1, m1, d1 := c.DailyResetAt.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// DailyRemaining returns the remaining daily allowance, or nil when no daily limit is set.
func (c *Card) DailyRemaining() *int64 {
	if c.DailyLimit == nil {
		return nil
	}
	remaining := *c.DailyLimit - c.DailySpent
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// MaxWithdrawable returns the largest amount the card can spend right now:
// the minimum of balance, per-transaction limit and remaining daily allowance.
func (c *Card) MaxWithdrawable() int64 {
	limit := c.Balance
	if c.MaxTxAmount != nil && *c.MaxTxAmount < limit {
		limit = *c.MaxTxAmount
	}
	if remaining := c.DailyRemaining(); remaining != nil && *remaining < limit {
		limit = *remaining
	}
	if limit < 0 {
		return 0
	}
	return limit
}

// CheckSpend validates that amount can be debited under balance and limits.
func (c *Card) CheckSpend(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > c.Balance {
		return ErrInsufficientBalance
	}
	if c.MaxTxAmount != nil && amount > *c.MaxTxAmount {
		return ErrLimitExceeded
	}
	if remaining := c.DailyRemaining(); remaining != nil && amount > *remaining {
		return ErrLimitExceeded
	}
	return nil
}

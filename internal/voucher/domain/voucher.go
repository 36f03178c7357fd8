// Package domain defines single-use Lightning withdraw vouchers.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/allisson/boltgate/internal/money"
)

// Status is the lifecycle state of a voucher.
type Status string

// Voucher statuses. CLAIMED, EXPIRED and CANCELLED are terminal.
const (
	StatusActive    Status = "ACTIVE"
	StatusClaimed   Status = "CLAIMED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// DefaultExpiry is the preset used when none is given.
const DefaultExpiry = "24h"

// ExpiryPresets are the accepted voucher lifetimes.
var ExpiryPresets = map[string]time.Duration{
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// Voucher is a bearer withdraw ticket paid from the issuer's wallet.
//
// AmountSats is the face value for BTC vouchers and the sats estimate at creation for
// USD vouchers, whose face value is USDAmountCents.
type Voucher struct {
	ID                uuid.UUID
	AmountSats        int64
	WalletCurrency    string
	USDAmountCents    *int64
	Claimed           bool
	Status            Status
	ExpiresAt         time.Time
	CommissionPercent decimal.Decimal
	DisplayAmount     string
	DisplayCurrency   string
	APIKey            string //nolint:gosec // plaintext only in memory
	WalletID          string
	Environment       string
	ClaimedAt         *time.Time
	PaymentHash       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Expired reports whether the voucher lifetime has passed.
func (v *Voucher) Expired(now time.Time) bool {
	return !v.ExpiresAt.After(now)
}

// EffectiveStatus reports EXPIRED for active vouchers past their expiry that the
// scheduled sweep has not reached yet.
func (v *Voucher) EffectiveStatus(now time.Time) Status {
	if v.Status == StatusActive && !v.Claimed && v.Expired(now) {
		return StatusExpired
	}
	return v.Status
}

// ClaimError returns why an unclaimable voucher cannot be claimed.
func (v *Voucher) ClaimError(now time.Time) error {
	if v.Claimed || v.Status == StatusClaimed {
		return ErrVoucherAlreadyClaimed
	}
	switch v.EffectiveStatus(now) {
	case StatusCancelled:
		return ErrVoucherCancelled
	case StatusExpired:
		return ErrVoucherExpired
	}
	return nil
}

// CreateVoucherInput holds the data needed to issue a voucher. BTC vouchers set
// AmountSats; USD vouchers set USDAmountCents.
type CreateVoucherInput struct {
	AmountSats        int64
	USDAmountCents    int64
	WalletCurrency    string
	APIKey            string //nolint:gosec // plaintext only in memory
	WalletID          string
	Environment       string
	Expiry            string
	CommissionPercent decimal.Decimal
	DisplayAmount     string
	DisplayCurrency   string
}

// CheckAmount requires exactly the face value field that matches WalletCurrency.
func (in *CreateVoucherInput) CheckAmount() error {
	want, other := in.AmountSats, in.USDAmountCents
	if in.WalletCurrency == money.CurrencyUSD {
		want, other = in.USDAmountCents, in.AmountSats
	}
	if want <= 0 || other != 0 {
		return ErrInvalidAmount
	}
	return nil
}

// StatusView is the public poll result of a voucher.
type StatusView struct {
	Found           bool
	Claimed         bool
	Status          Status
	Amount          int64
	Currency        string
	DisplayAmount   string
	DisplayCurrency string
	ExpiresAt       *time.Time
}

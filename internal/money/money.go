// Package money converts between the amount units the gateway deals with: millisatoshis
// on the LNURL wire, satoshis on BTC wallets and cents on USD wallets.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MsatPerSat is the number of millisatoshis in one satoshi.
const MsatPerSat int64 = 1000

// Wallet currencies.
const (
	CurrencyBTC = "BTC"
	CurrencyUSD = "USD"
)

// ErrInvalidRate is returned when a conversion is attempted with a non-positive rate.
var ErrInvalidRate = errors.New("exchange rate must be positive")

// SatsToMsat converts satoshis to millisatoshis.
func SatsToMsat(sats int64) int64 {
	return sats * MsatPerSat
}

// MsatToSats converts millisatoshis to satoshis. The second return value reports
// whether the amount was a whole number of satoshis.
func MsatToSats(msat int64) (int64, bool) {
	return msat / MsatPerSat, msat%MsatPerSat == 0
}

// MsatToSatsCeil rounds a millisatoshi amount up to whole satoshis.
func MsatToSatsCeil(msat int64) int64 {
	sats := msat / MsatPerSat
	if msat%MsatPerSat != 0 {
		sats++
	}
	return sats
}

// Rate is the price of one satoshi expressed in US cents.
type Rate struct {
	CentsPerSat decimal.Decimal
}

// NewRate builds a rate from the base/offset pair returned by the wallet price API,
// where the price equals base / 10^offset.
func NewRate(base int64, offset int32) (Rate, error) {
	r := Rate{CentsPerSat: decimal.New(base, -offset)}
	if !r.CentsPerSat.IsPositive() {
		return Rate{}, ErrInvalidRate
	}
	return r, nil
}

// SatsToCentsFloor converts satoshis to cents rounding down.
// Used when crediting a USD balance so the gateway never credits more than it received.
func (r Rate) SatsToCentsFloor(sats int64) int64 {
	return decimal.NewFromInt(sats).Mul(r.CentsPerSat).Floor().IntPart()
}

// SatsToCentsCeil converts satoshis to cents rounding up.
// Used when debiting a USD balance for a satoshi-denominated invoice.
func (r Rate) SatsToCentsCeil(sats int64) int64 {
	return decimal.NewFromInt(sats).Mul(r.CentsPerSat).Ceil().IntPart()
}

// CentsToSatsFloor converts cents to the largest whole number of satoshis they cover.
func (r Rate) CentsToSatsFloor(cents int64) int64 {
	return decimal.NewFromInt(cents).Div(r.CentsPerSat).Floor().IntPart()
}

// Valid reports whether the rate can be used for conversions.
func (r Rate) Valid() bool {
	return r.CentsPerSat.IsPositive()
}

// MinInt64 returns the smallest of the given values, ignoring nil pointers.
// The fallback is returned when every value is nil.
func MinInt64(fallback int64, values ...*int64) int64 {
	result := fallback
	for _, v := range values {
		if v != nil && *v < result {
			result = *v
		}
	}
	return result
}

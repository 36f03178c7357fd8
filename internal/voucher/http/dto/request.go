// Package dto provides data transfer objects for the voucher HTTP API.
package dto

import (
	"strings"

	validation "github.com/jellydator/validation"
	"github.com/shopspring/decimal"

	"github.com/allisson/boltgate/internal/money"
	customValidation "github.com/allisson/boltgate/internal/validation"
	"github.com/allisson/boltgate/internal/voucher/domain"
)

var maxCommission = decimal.NewFromInt(100)

// CreateVoucherRequest issues a voucher paid from the issuer's wallet. BTC vouchers carry
// amount_sats and USD vouchers carry usd_amount_cents.
type CreateVoucherRequest struct {
	AmountSats        int64           `json:"amount_sats"`
	USDAmountCents    int64           `json:"usd_amount_cents"`
	WalletCurrency    string          `json:"wallet_currency"`
	APIKey            string          `json:"api_key"`
	WalletID          string          `json:"wallet_id"`
	Environment       string          `json:"environment"`
	Expiry            string          `json:"expiry"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	DisplayAmount     string          `json:"display_amount"`
	DisplayCurrency   string          `json:"display_currency"`
}

func validCommission(value any) error {
	d, _ := value.(decimal.Decimal)
	if d.IsNegative() || d.GreaterThan(maxCommission) {
		return validation.NewError("validation_commission_range", "must be between 0 and 100")
	}
	return nil
}

func notSet(value any) error {
	if n, _ := value.(int64); n != 0 {
		return validation.NewError("validation_amount_unit", "must not be set for this wallet currency")
	}
	return nil
}

func validExpiry(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, ok := domain.ExpiryPresets[s]; !ok {
		return validation.NewError("validation_expiry_preset", "must be one of 15m, 1h, 24h, 7d, 30d")
	}
	return nil
}

// Validate checks if the create voucher request is valid.
func (r *CreateVoucherRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.AmountSats,
			validation.When(r.WalletCurrency != money.CurrencyUSD, validation.Required, validation.Min(int64(1))),
			validation.When(r.WalletCurrency == money.CurrencyUSD, validation.By(notSet)),
		),
		validation.Field(&r.USDAmountCents,
			validation.When(r.WalletCurrency == money.CurrencyUSD, validation.Required, validation.Min(int64(1))),
			validation.When(r.WalletCurrency != money.CurrencyUSD, validation.By(notSet)),
		),
		validation.Field(&r.WalletCurrency, validation.Required, customValidation.Currency),
		validation.Field(&r.APIKey, validation.Required, customValidation.NoWhitespace),
		validation.Field(&r.Environment, customValidation.Environment),
		validation.Field(&r.Expiry, validation.By(validExpiry)),
		validation.Field(&r.CommissionPercent, validation.By(validCommission)),
		validation.Field(&r.DisplayAmount, validation.Length(0, 32)),
		validation.Field(&r.DisplayCurrency, validation.Length(0, 8)),
	)
}

// ToInput maps the request to the use case input, defaulting the environment to production.
func (r *CreateVoucherRequest) ToInput() *domain.CreateVoucherInput {
	environment := r.Environment
	if environment == "" {
		environment = "production"
	}
	return &domain.CreateVoucherInput{
		AmountSats:        r.AmountSats,
		USDAmountCents:    r.USDAmountCents,
		WalletCurrency:    r.WalletCurrency,
		APIKey:            r.APIKey,
		WalletID:          r.WalletID,
		Environment:       environment,
		Expiry:            r.Expiry,
		CommissionPercent: r.CommissionPercent,
		DisplayAmount:     strings.TrimSpace(r.DisplayAmount),
		DisplayCurrency:   strings.ToUpper(strings.TrimSpace(r.DisplayCurrency)),
	}
}

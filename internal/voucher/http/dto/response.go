package dto

import (
	"time"

	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/voucher/domain"
)

// VoucherResponse is returned to the issuer. The wallet API key is never included.
type VoucherResponse struct {
	ID                string    `json:"id"`
	AmountSats        int64     `json:"amount_sats"`
	USDAmountCents    *int64    `json:"usd_amount_cents,omitempty"`
	WalletCurrency    string    `json:"wallet_currency"`
	Status            string    `json:"status"`
	ExpiresAt         time.Time `json:"expires_at"`
	CommissionPercent string    `json:"commission_percent"`
	DisplayAmount     string    `json:"display_amount,omitempty"`
	DisplayCurrency   string    `json:"display_currency,omitempty"`
	LNURL             string    `json:"lnurl"`
	CreatedAt         time.Time `json:"created_at"`
}

// MapVoucherToResponse converts a domain voucher to its API response. publicBaseURL is
// used to build the bech32 LNURL printed on the voucher.
func MapVoucherToResponse(voucher *domain.Voucher, publicBaseURL string) (VoucherResponse, error) {
	encoded, err := lnurl.Encode(publicBaseURL + "/api/vouchers/" + voucher.ID.String() + "/lnurlw")
	if err != nil {
		return VoucherResponse{}, err
	}
	return VoucherResponse{
		ID:                voucher.ID.String(),
		AmountSats:        voucher.AmountSats,
		USDAmountCents:    voucher.USDAmountCents,
		WalletCurrency:    voucher.WalletCurrency,
		Status:            string(voucher.Status),
		ExpiresAt:         voucher.ExpiresAt,
		CommissionPercent: voucher.CommissionPercent.String(),
		DisplayAmount:     voucher.DisplayAmount,
		DisplayCurrency:   voucher.DisplayCurrency,
		LNURL:             encoded,
		CreatedAt:         voucher.CreatedAt,
	}, nil
}

// StatusResponse is the public poll result of a voucher.
type StatusResponse struct {
	Found           bool       `json:"found"`
	Claimed         bool       `json:"claimed"`
	Status          string     `json:"status,omitempty"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency,omitempty"`
	DisplayAmount   string     `json:"display_amount,omitempty"`
	DisplayCurrency string     `json:"display_currency,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

// MapStatusToResponse converts a status view to its API response.
func MapStatusToResponse(view *domain.StatusView) StatusResponse {
	return StatusResponse{
		Found:           view.Found,
		Claimed:         view.Claimed,
		Status:          string(view.Status),
		Amount:          view.Amount,
		Currency:        view.Currency,
		DisplayAmount:   view.DisplayAmount,
		DisplayCurrency: view.DisplayCurrency,
		ExpiresAt:       view.ExpiresAt,
	}
}

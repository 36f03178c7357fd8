package dto

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCreateVoucherRequest_Validate(t *testing.T) {
	valid := func() CreateVoucherRequest {
		return CreateVoucherRequest{AmountSats: 1000, WalletCurrency: "BTC", APIKey: "issuer-key"}
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateVoucherRequest)
		wantErr bool
	}{
		{name: "minimal", mutate: func(r *CreateVoucherRequest) {}},
		{name: "all presets", mutate: func(r *CreateVoucherRequest) { r.Expiry = "30d" }},
		{name: "full commission", mutate: func(r *CreateVoucherRequest) { r.CommissionPercent = decimal.NewFromInt(100) }},
		{name: "zero amount", mutate: func(r *CreateVoucherRequest) { r.AmountSats = 0 }, wantErr: true},
		{name: "negative amount", mutate: func(r *CreateVoucherRequest) { r.AmountSats = -10 }, wantErr: true},
		{
			name:    "btc voucher with cents",
			mutate:  func(r *CreateVoucherRequest) { r.USDAmountCents = 100 },
			wantErr: true,
		},
		{
			name: "usd voucher in cents",
			mutate: func(r *CreateVoucherRequest) {
				r.WalletCurrency = "USD"
				r.AmountSats = 0
				r.USDAmountCents = 100
			},
		},
		{
			name: "usd voucher with sats",
			mutate: func(r *CreateVoucherRequest) {
				r.WalletCurrency = "USD"
				r.USDAmountCents = 100
			},
			wantErr: true,
		},
		{
			name:    "usd voucher without cents",
			mutate:  func(r *CreateVoucherRequest) { r.WalletCurrency = "USD"; r.AmountSats = 0 },
			wantErr: true,
		},
		{name: "unknown currency", mutate: func(r *CreateVoucherRequest) { r.WalletCurrency = "EUR" }, wantErr: true},
		{name: "missing api key", mutate: func(r *CreateVoucherRequest) { r.APIKey = "" }, wantErr: true},
		{name: "unknown expiry", mutate: func(r *CreateVoucherRequest) { r.Expiry = "2h" }, wantErr: true},
		{
			name:    "commission above 100",
			mutate:  func(r *CreateVoucherRequest) { r.CommissionPercent = decimal.NewFromFloat(100.5) },
			wantErr: true,
		},
		{
			name:    "negative commission",
			mutate:  func(r *CreateVoucherRequest) { r.CommissionPercent = decimal.NewFromInt(-1) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateVoucherRequest_ToInput(t *testing.T) {
	req := CreateVoucherRequest{
		USDAmountCents:  100,
		WalletCurrency:  "USD",
		APIKey:          "issuer-key",
		DisplayAmount:   " 1.00 ",
		DisplayCurrency: "usd",
	}

	input := req.ToInput()

	assert.Equal(t, "production", input.Environment)
	assert.Equal(t, int64(100), input.USDAmountCents)
	assert.Zero(t, input.AmountSats)
	assert.Equal(t, "1.00", input.DisplayAmount)
	assert.Equal(t, "USD", input.DisplayCurrency)
}

// Package dto provides data transfer objects for the Boltcard HTTP API.
package dto

import (
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	customValidation "github.com/allisson/boltgate/internal/validation"
)

// CreateCardRequest registers a new card bound to a wallet.
type CreateCardRequest struct {
	Name           string `json:"name"`
	UID            string `json:"uid"`
	APIKey         string `json:"api_key"`
	WalletID       string `json:"wallet_id"`
	WalletCurrency string `json:"wallet_currency"`
	Environment    string `json:"environment"`
	MaxTxAmount    *int64 `json:"max_tx_amount"`
	DailyLimit     *int64 `json:"daily_limit"`
}

// Validate checks if the create card request is valid.
func (r *CreateCardRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, customValidation.NotBlank, validation.Length(1, 100)),
		validation.Field(&r.UID, customValidation.Hex(14)),
		validation.Field(&r.APIKey, validation.Required, customValidation.NoWhitespace),
		validation.Field(&r.WalletCurrency, validation.Required, customValidation.Currency),
		validation.Field(&r.Environment, customValidation.Environment),
		validation.Field(&r.MaxTxAmount, validation.NilOrNotEmpty, validation.Min(int64(1))),
		validation.Field(&r.DailyLimit, validation.NilOrNotEmpty, validation.Min(int64(1))),
	)
}

// ToInput maps the request to the use case input, defaulting the environment to production.
func (r *CreateCardRequest) ToInput() *domain.CreateCardInput {
	environment := r.Environment
	if environment == "" {
		environment = "production"
	}
	return &domain.CreateCardInput{
		Name:           strings.TrimSpace(r.Name),
		UID:            strings.ToLower(r.UID),
		APIKey:         r.APIKey,
		WalletID:       r.WalletID,
		WalletCurrency: r.WalletCurrency,
		Environment:    environment,
		MaxTxAmount:    r.MaxTxAmount,
		DailyLimit:     r.DailyLimit,
	}
}

// UpdateCardRequest changes card settings. A zero limit removes it.
type UpdateCardRequest struct {
	Name        *string `json:"name"`
	MaxTxAmount *int64  `json:"max_tx_amount"`
	DailyLimit  *int64  `json:"daily_limit"`
}

// Validate checks if the update card request is valid.
func (r *UpdateCardRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, customValidation.NotBlank, validation.Length(1, 100)),
		validation.Field(&r.MaxTxAmount, validation.Min(int64(0))),
		validation.Field(&r.DailyLimit, validation.Min(int64(0))),
	)
}

// ToInput maps the request to the use case input.
func (r *UpdateCardRequest) ToInput() *domain.UpdateCardInput {
	input := &domain.UpdateCardInput{Name: r.Name}
	if r.MaxTxAmount != nil {
		if *r.MaxTxAmount == 0 {
			input.ClearMaxTxAmount = true
		} else {
			input.MaxTxAmount = r.MaxTxAmount
		}
	}
	if r.DailyLimit != nil {
		if *r.DailyLimit == 0 {
			input.ClearDailyLimit = true
		} else {
			input.DailyLimit = r.DailyLimit
		}
	}
	return input
}

// AdjustBalanceRequest is a signed administrative balance correction.
type AdjustBalanceRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

// Validate checks if the adjust balance request is valid.
func (r *AdjustBalanceRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Amount, validation.Required),
		validation.Field(&r.Description, validation.Length(0, 255)),
	)
}

// ToInput maps the request to the use case input.
func (r *AdjustBalanceRequest) ToInput() *domain.AdjustBalanceInput {
	return &domain.AdjustBalanceInput{Amount: r.Amount, Description: strings.TrimSpace(r.Description)}
}

// ResetRequest proves possession of a card with its UID or with a fresh tap.
type ResetRequest struct {
	UID string `json:"uid"`
	P   string `json:"p"`
	C   string `json:"c"`
}

// Validate checks if the reset request is valid.
func (r *ResetRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.UID,
			validation.When(r.P == "" && r.C == "", validation.Required),
			customValidation.Hex(14),
		),
		validation.Field(&r.P, validation.When(r.C != "", validation.Required)),
		validation.Field(&r.C, validation.When(r.P != "", validation.Required)),
	)
}

// ResetConfirmRequest carries the token returned by the possession proof.
type ResetConfirmRequest struct {
	ResetToken string `json:"reset_token"`
}

// Validate checks if the reset confirm request is valid.
func (r *ResetConfirmRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ResetToken, validation.Required),
	)
}

// TopUpWebhookRequest is a settlement notification for one top-up invoice.
type TopUpWebhookRequest struct {
	PaymentHash string `json:"payment_hash"`
}

// Validate checks if the webhook request is valid.
func (r *TopUpWebhookRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PaymentHash, validation.Required, customValidation.Hex(64)),
	)
}

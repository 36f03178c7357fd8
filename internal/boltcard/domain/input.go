package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreateCardInput holds the data needed to register a new card.
type CreateCardInput struct {
	Name           string
	UID            string
	APIKey         string //nolint:gosec // plaintext only in memory
	WalletID       string
	WalletCurrency string
	Environment    string
	MaxTxAmount    *int64
	DailyLimit     *int64
}

// UpdateCardInput changes card settings. Nil fields are left unchanged; the Clear flags
// remove a limit.
type UpdateCardInput struct {
	Name             *string
	MaxTxAmount      *int64
	DailyLimit       *int64
	ClearMaxTxAmount bool
	ClearDailyLimit  bool
}

// AdjustBalanceInput is a signed administrative balance correction.
type AdjustBalanceInput struct {
	Amount      int64
	Description string
}

// ProgrammingPayload is the create_bolt_card_response document read by the NFC
// programming app.
type ProgrammingPayload struct {
	ProtocolName    string `json:"protocol_name"`
	ProtocolVersion int    `json:"protocol_version"`
	CardName        string `json:"card_name"`
	LNURLWBase      string `json:"lnurlw_base"`
	K0              string `json:"k0"`
	K1              string `json:"k1"`
	K2              string `json:"k2"`
	K3              string `json:"k3"`
	K4              string `json:"k4"`
}

// BalanceView is what a verified tap may see about its card.
type BalanceView struct {
	CardID         uuid.UUID
	Name           string
	Status         CardStatus
	WalletCurrency string
	Balance        int64
	MaxTxAmount    *int64
	DailyLimit     *int64
	DailySpent     int64
	Credited       int
	Transactions   []*Transaction
}

// ResetResult is returned after a card proved possession for a force reset.
type ResetResult struct {
	CardID     uuid.UUID
	Keys       Keys
	ResetToken string
	ExpiresAt  time.Time
}

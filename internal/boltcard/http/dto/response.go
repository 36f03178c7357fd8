package dto

import (
	"encoding/hex"
	"time"

	"github.com/allisson/boltgate/internal/boltcard/domain"
)

// CardResponse is the admin view of a card. Keys and API keys are never included.
type CardResponse struct {
	ID             string     `json:"id"`
	IDHash         string     `json:"card_id_hash"`
	Name           string     `json:"name"`
	UID            string     `json:"uid,omitempty"`
	WalletID       string     `json:"wallet_id"`
	WalletCurrency string     `json:"wallet_currency"`
	Environment    string     `json:"environment"`
	Balance        int64      `json:"balance"`
	MaxTxAmount    *int64     `json:"max_tx_amount"`
	DailyLimit     *int64     `json:"daily_limit"`
	DailySpent     int64      `json:"daily_spent"`
	LastCounter    uint32     `json:"last_counter"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// MapCardToResponse converts a domain card to its API response.
func MapCardToResponse(card *domain.Card) CardResponse {
	return CardResponse{
		ID:             card.ID.String(),
		IDHash:         card.IDHash,
		Name:           card.Name,
		UID:            card.UID,
		WalletID:       card.WalletID,
		WalletCurrency: card.WalletCurrency,
		Environment:    card.Environment,
		Balance:        card.Balance,
		MaxTxAmount:    card.MaxTxAmount,
		DailyLimit:     card.DailyLimit,
		DailySpent:     card.DailySpent,
		LastCounter:    card.LastCounter,
		Status:         string(card.Status),
		CreatedAt:      card.CreatedAt,
		ActivatedAt:    card.ActivatedAt,
		LastUsedAt:     card.LastUsedAt,
		UpdatedAt:      card.UpdatedAt,
	}
}

// ListCardsResponse represents a page of cards.
type ListCardsResponse struct {
	Data []CardResponse `json:"data"`
}

// MapCardsToListResponse converts domain cards to a list response.
func MapCardsToListResponse(cards []*domain.Card) ListCardsResponse {
	data := make([]CardResponse, 0, len(cards))
	for _, card := range cards {
		data = append(data, MapCardToResponse(card))
	}
	return ListCardsResponse{Data: data}
}

// TransactionResponse is a card ledger entry.
type TransactionResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Description  string    `json:"description"`
	PaymentHash  *string   `json:"payment_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// MapTransactionToResponse converts a domain transaction to its API response.
func MapTransactionToResponse(tx *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           tx.ID.String(),
		Type:         string(tx.Type),
		Amount:       tx.Amount,
		BalanceAfter: tx.BalanceAfter,
		Description:  tx.Description,
		PaymentHash:  tx.PaymentHash,
		CreatedAt:    tx.CreatedAt,
	}
}

// ListTransactionsResponse represents a page of ledger entries, newest first.
type ListTransactionsResponse struct {
	Data []TransactionResponse `json:"data"`
}

// MapTransactionsToListResponse converts domain transactions to a list response.
func MapTransactionsToListResponse(txs []*domain.Transaction) ListTransactionsResponse {
	data := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		data = append(data, MapTransactionToResponse(tx))
	}
	return ListTransactionsResponse{Data: data}
}

// BalanceResponse is returned to a verified tap.
type BalanceResponse struct {
	Name         string                `json:"name"`
	Status       string                `json:"status"`
	Currency     string                `json:"currency"`
	Balance      int64                 `json:"balance"`
	MaxTxAmount  *int64                `json:"max_tx_amount"`
	DailyLimit   *int64                `json:"daily_limit"`
	DailySpent   int64                 `json:"daily_spent"`
	Credited     int                   `json:"topups_credited"`
	Transactions []TransactionResponse `json:"transactions"`
}

// MapBalanceToResponse converts a balance view to its API response.
func MapBalanceToResponse(view *domain.BalanceView) BalanceResponse {
	return BalanceResponse{
		Name:         view.Name,
		Status:       string(view.Status),
		Currency:     view.WalletCurrency,
		Balance:      view.Balance,
		MaxTxAmount:  view.MaxTxAmount,
		DailyLimit:   view.DailyLimit,
		DailySpent:   view.DailySpent,
		Credited:     view.Credited,
		Transactions: MapTransactionsToListResponse(view.Transactions).Data,
	}
}

// ResetResponse carries the card keys and the wipe confirmation token.
type ResetResponse struct {
	CardID     string    `json:"card_id"`
	K0         string    `json:"k0"`
	K1         string    `json:"k1"`
	K2         string    `json:"k2"`
	K3         string    `json:"k3"`
	K4         string    `json:"k4"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// MapResetResultToResponse hex-encodes the keys of a reset result.
func MapResetResultToResponse(result *domain.ResetResult) ResetResponse {
	return ResetResponse{
		CardID:     result.CardID.String(),
		K0:         hex.EncodeToString(result.Keys.K0),
		K1:         hex.EncodeToString(result.Keys.K1),
		K2:         hex.EncodeToString(result.Keys.K2),
		K3:         hex.EncodeToString(result.Keys.K3),
		K4:         hex.EncodeToString(result.Keys.K4),
		ResetToken: result.ResetToken,
		ExpiresAt:  result.ExpiresAt,
	}
}

// TopUpLNURLResponse is the bech32 LNURL printed or shown as QR for top-ups.
type TopUpLNURLResponse struct {
	LNURL string `json:"lnurl"`
}

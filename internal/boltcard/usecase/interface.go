// Package usecase implements the Boltcard business flows: card administration, LNURL
// withdraw taps and callbacks, LNURL-pay top-ups and the force-reset flow.
//
// CardUseCase is the only writer of card state. Balance and daily spend change only
// inside a transaction that holds the card row lock.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/money"
	"github.com/allisson/boltgate/internal/wallet"
)

// CardRepository persists cards. Implementations must honour database.GetTx.
type CardRepository interface {
	Create(ctx context.Context, card *domain.Card) error
	Get(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)
	GetByIDHash(ctx context.Context, idHash string) (*domain.Card, error)

	// GetForUpdate locks the card row for the rest of the current transaction.
	GetForUpdate(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)

	List(ctx context.Context, offset, limit int) ([]*domain.Card, error)

	// AdvanceCounter returns ErrCounterReplay unless counter is greater than the stored one.
	AdvanceCounter(ctx context.Context, cardID uuid.UUID, counter uint32, usedAt time.Time) error

	// ClaimWithdrawCounter returns ErrTapAlreadyUsed unless counter is the last verified
	// tap and was not used for a withdraw yet.
	ClaimWithdrawCounter(ctx context.Context, cardID uuid.UUID, counter uint32, now time.Time) error

	// ApplyBalanceDelta returns ErrNegativeBalance if the balance would drop below zero.
	ApplyBalanceDelta(ctx context.Context, cardID uuid.UUID, delta, dailyDelta int64, now time.Time) (int64, error)

	UpdateStatus(ctx context.Context, cardID uuid.UUID, status domain.CardStatus, now time.Time) error
	BindUID(ctx context.Context, cardID uuid.UUID, uid string, now time.Time) error
	UpdateSettings(ctx context.Context, card *domain.Card) error
	ResetDailySpent(ctx context.Context, cardID uuid.UUID, now time.Time) error

	// ResetDailySpentBefore resets only a card whose window began before the given time.
	ResetDailySpentBefore(ctx context.Context, cardID uuid.UUID, before, now time.Time) (bool, error)
	ResetAllDailySpent(ctx context.Context, before, now time.Time) (int64, error)
}

// TransactionRepository persists the append-only card ledger.
type TransactionRepository interface {
	// Create returns ErrConflict for a duplicate payment hash on the same card.
	Create(ctx context.Context, tx *domain.Transaction) error
	ListByCard(ctx context.Context, cardID uuid.UUID, offset, limit int) ([]*domain.Transaction, error)
}

// PendingTopUpRepository persists issued top-up invoices.
type PendingTopUpRepository interface {
	Create(ctx context.Context, topUp *domain.PendingTopUp) error
	Get(ctx context.Context, paymentHash string) (*domain.PendingTopUp, error)
	ListByCard(ctx context.Context, cardID uuid.UUID) ([]*domain.PendingTopUp, error)
	ListAll(ctx context.Context, limit int) ([]*domain.PendingTopUp, error)

	// Delete reports whether this call removed the row.
	Delete(ctx context.Context, paymentHash string) (bool, error)
}

// WalletClient is the custodial wallet the gateway pays from and receives into.
type WalletClient interface {
	GetWallets(ctx context.Context, creds wallet.Credentials) ([]wallet.Wallet, error)
	CreateLnInvoice(
		ctx context.Context,
		creds wallet.Credentials,
		walletID string,
		sats int64,
		memo string,
		expiresIn time.Duration,
	) (*wallet.Invoice, error)
	PayLnInvoice(
		ctx context.Context,
		creds wallet.Credentials,
		walletID, paymentRequest, memo string,
	) (wallet.PaymentStatus, error)
	GetInvoiceStatus(ctx context.Context, creds wallet.Credentials, paymentRequest string) (wallet.InvoiceStatus, error)
}

// RateProvider returns a fresh USD exchange rate.
type RateProvider interface {
	GetExchangeRate(ctx context.Context, environment string) (money.Rate, error)
}

// CardUseCase administers cards and owns every card state change.
type CardUseCase interface {
	Create(ctx context.Context, input *domain.CreateCardInput) (*domain.Card, error)

	// Get returns the card. Keys and API key are zeroed unless includeKeys is set.
	Get(ctx context.Context, cardID uuid.UUID, includeKeys bool) (*domain.Card, error)
	GetByIDHash(ctx context.Context, idHash string, includeKeys bool) (*domain.Card, error)
	List(ctx context.Context, offset, limit int) ([]*domain.Card, error)

	UpdateLastCounter(ctx context.Context, cardID uuid.UUID, counter uint32) error

	// UpdateCardBalance sets the balance to newBalance under the card row lock.
	UpdateCardBalance(ctx context.Context, cardID uuid.UUID, newBalance int64) error
	RecordTransaction(ctx context.Context, cardID uuid.UUID, input domain.TransactionInput) (*domain.Transaction, error)
	ResetDailySpent(ctx context.Context, cardID uuid.UUID) error

	// ApplyDailyReset zeroes the daily spend only when the stored window began before
	// today (UTC), so a debit that already opened today's window is kept.
	ApplyDailyReset(ctx context.Context, cardID uuid.UUID) (bool, error)
	ResetAllDailySpent(ctx context.Context, before time.Time) (int64, error)

	Activate(ctx context.Context, cardID uuid.UUID) error

	// ActivateFromTap activates a PENDING card on its first verified tap and binds the
	// proven UID when none was registered. Other statuses are left unchanged.
	ActivateFromTap(ctx context.Context, cardID uuid.UUID, uid string) error
	Disable(ctx context.Context, cardID uuid.UUID) error
	Enable(ctx context.Context, cardID uuid.UUID) error
	Wipe(ctx context.Context, cardID uuid.UUID) (*domain.Card, error)

	UpdateLimits(ctx context.Context, cardID uuid.UUID, input *domain.UpdateCardInput) (*domain.Card, error)
	AdjustBalance(ctx context.Context, cardID uuid.UUID, input *domain.AdjustBalanceInput) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, cardID uuid.UUID, offset, limit int) ([]*domain.Transaction, error)
	ProgrammingPayload(ctx context.Context, cardID uuid.UUID) (*domain.ProgrammingPayload, error)

	// Credit adds amount to the balance and records a TOPUP entry carrying paymentHash,
	// all under the card row lock. A duplicate payment hash returns ErrConflict.
	Credit(ctx context.Context, cardID uuid.UUID, amount int64, paymentHash, description string) (*domain.Transaction, error)

	// Debit verifies limits, marks the tap counter as spent and subtracts amount under
	// the card row lock, recording a WITHDRAW entry.
	Debit(ctx context.Context, cardID uuid.UUID, counter uint32, amount int64, paymentHash, description string) (*domain.Transaction, error)

	// Refund undoes a Debit after a definite payment failure and records an ADJUST entry.
	Refund(ctx context.Context, cardID uuid.UUID, amount int64, description string) (*domain.Transaction, error)
}

// TapInput is a card tap as it arrives from the wallet app.
type TapInput struct {
	CardIDHash string
	P          string
	C          string
}

// CallbackInput is an LNURL-withdraw callback.
type CallbackInput struct {
	K1             string
	PaymentRequest string
	P              string
	C              string
}

// WithdrawUseCase implements LNURL-withdraw for card taps.
type WithdrawUseCase interface {
	// Tap verifies a tap, commits its counter and quotes the withdrawable range.
	Tap(ctx context.Context, input TapInput) (*lnurl.WithdrawRequest, error)

	// Callback debits the card and pays the invoice.
	Callback(ctx context.Context, input CallbackInput) error

	// Balance verifies a tap and returns the card balance view.
	Balance(ctx context.Context, input TapInput) (*domain.BalanceView, error)
}

// TopUpUseCase implements LNURL-pay top-ups.
type TopUpUseCase interface {
	PayRequest(ctx context.Context, cardIDHash string) (*lnurl.PayRequest, error)
	Invoice(ctx context.Context, cardIDHash string, amountMsat int64, comment string) (*lnurl.InvoiceResponse, error)

	// CheckAndProcessPendingTopUps credits every settled top-up of the card exactly once,
	// drops expired ones and returns the number credited.
	CheckAndProcessPendingTopUps(ctx context.Context, cardID uuid.UUID) (int, error)

	// ProcessPaymentHash handles a settlement notification for one invoice.
	ProcessPaymentHash(ctx context.Context, paymentHash string) (bool, error)

	// Sweep processes up to limit pending top-ups across all cards.
	Sweep(ctx context.Context, limit int) (int, error)

	// LNURL returns the bech32 LNURL of the card top-up endpoint.
	LNURL(ctx context.Context, cardID uuid.UUID) (string, error)
}

// ResetUseCase implements the force-reset flow for lost or re-programmed cards.
type ResetUseCase interface {
	// Prove checks possession by UID or by a verified tap and returns keys plus a
	// short-lived confirmation token.
	Prove(ctx context.Context, cardIDHash, uid, p, c string) (*domain.ResetResult, error)

	// Confirm wipes the card once the token is verified.
	Confirm(ctx context.Context, cardIDHash, token string) error
}

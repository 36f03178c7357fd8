// Package mocks provides mock implementations of the Boltcard use cases for testing
// HTTP handlers.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/boltcard/usecase"
	"github.com/allisson/boltgate/internal/lnurl"
)

// MockWithdrawUseCase is a mock implementation of WithdrawUseCase.
type MockWithdrawUseCase struct {
	mock.Mock
}

// Tap mocks the Tap method of WithdrawUseCase.
func (m *MockWithdrawUseCase) Tap(ctx context.Context, input usecase.TapInput) (*lnurl.WithdrawRequest, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lnurl.WithdrawRequest), args.Error(1)
}

// Callback mocks the Callback method of WithdrawUseCase.
func (m *MockWithdrawUseCase) Callback(ctx context.Context, input usecase.CallbackInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

// Balance mocks the Balance method of WithdrawUseCase.
func (m *MockWithdrawUseCase) Balance(ctx context.Context, input usecase.TapInput) (*domain.BalanceView, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceView), args.Error(1)
}

// MockTopUpUseCase is a mock implementation of TopUpUseCase.
type MockTopUpUseCase struct {
	mock.Mock
}

// PayRequest mocks the PayRequest method of TopUpUseCase.
func (m *MockTopUpUseCase) PayRequest(ctx context.Context, cardIDHash string) (*lnurl.PayRequest, error) {
	args := m.Called(ctx, cardIDHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lnurl.PayRequest), args.Error(1)
}

// Invoice mocks the Invoice method of TopUpUseCase.
func (m *MockTopUpUseCase) Invoice(
	ctx context.Context,
	cardIDHash string,
	amountMsat int64,
	comment string,
) (*lnurl.InvoiceResponse, error) {
	args := m.Called(ctx, cardIDHash, amountMsat, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lnurl.InvoiceResponse), args.Error(1)
}

// CheckAndProcessPendingTopUps mocks the CheckAndProcessPendingTopUps method of TopUpUseCase.
func (m *MockTopUpUseCase) CheckAndProcessPendingTopUps(ctx context.Context, cardID uuid.UUID) (int, error) {
	args := m.Called(ctx, cardID)
	return args.Int(0), args.Error(1)
}

// ProcessPaymentHash mocks the ProcessPaymentHash method of TopUpUseCase.
func (m *MockTopUpUseCase) ProcessPaymentHash(ctx context.Context, paymentHash string) (bool, error) {
	args := m.Called(ctx, paymentHash)
	return args.Bool(0), args.Error(1)
}

// Sweep mocks the Sweep method of TopUpUseCase.
func (m *MockTopUpUseCase) Sweep(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)
	return args.Int(0), args.Error(1)
}

// LNURL mocks the LNURL method of TopUpUseCase.
func (m *MockTopUpUseCase) LNURL(ctx context.Context, cardID uuid.UUID) (string, error) {
	args := m.Called(ctx, cardID)
	return args.String(0), args.Error(1)
}

// MockResetUseCase is a mock implementation of ResetUseCase.
type MockResetUseCase struct {
	mock.Mock
}

// Prove mocks the Prove method of ResetUseCase.
func (m *MockResetUseCase) Prove(ctx context.Context, cardIDHash, uid, p, c string) (*domain.ResetResult, error) {
	args := m.Called(ctx, cardIDHash, uid, p, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ResetResult), args.Error(1)
}

// Confirm mocks the Confirm method of ResetUseCase.
func (m *MockResetUseCase) Confirm(ctx context.Context, cardIDHash, token string) error {
	args := m.Called(ctx, cardIDHash, token)
	return args.Error(0)
}

// MockCardUseCase is a mock implementation of CardUseCase.
type MockCardUseCase struct {
	mock.Mock
}

func (m *MockCardUseCase) card(args mock.Arguments) (*domain.Card, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Card), args.Error(1)
}

func (m *MockCardUseCase) transaction(args mock.Arguments) (*domain.Transaction, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

// Create mocks the Create method of CardUseCase.
func (m *MockCardUseCase) Create(ctx context.Context, input *domain.CreateCardInput) (*domain.Card, error) {
	return m.card(m.Called(ctx, input))
}

// Get mocks the Get method of CardUseCase.
func (m *MockCardUseCase) Get(ctx context.Context, cardID uuid.UUID, includeKeys bool) (*domain.Card, error) {
	return m.card(m.Called(ctx, cardID, includeKeys))
}

// GetByIDHash mocks the GetByIDHash method of CardUseCase.
func (m *MockCardUseCase) GetByIDHash(ctx context.Context, idHash string, includeKeys bool) (*domain.Card, error) {
	return m.card(m.Called(ctx, idHash, includeKeys))
}

// List mocks the List method of CardUseCase.
func (m *MockCardUseCase) List(ctx context.Context, offset, limit int) ([]*domain.Card, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Card), args.Error(1)
}

// UpdateLastCounter mocks the UpdateLastCounter method of CardUseCase.
func (m *MockCardUseCase) UpdateLastCounter(ctx context.Context, cardID uuid.UUID, counter uint32) error {
	return m.Called(ctx, cardID, counter).Error(0)
}

// UpdateCardBalance mocks the UpdateCardBalance method of CardUseCase.
func (m *MockCardUseCase) UpdateCardBalance(ctx context.Context, cardID uuid.UUID, newBalance int64) error {
	return m.Called(ctx, cardID, newBalance).Error(0)
}

// RecordTransaction mocks the RecordTransaction method of CardUseCase.
func (m *MockCardUseCase) RecordTransaction(
	ctx context.Context,
	cardID uuid.UUID,
	input domain.TransactionInput,
) (*domain.Transaction, error) {
	return m.transaction(m.Called(ctx, cardID, input))
}

// ResetDailySpent mocks the ResetDailySpent method of CardUseCase.
func (m *MockCardUseCase) ResetDailySpent(ctx context.Context, cardID uuid.UUID) error {
	return m.Called(ctx, cardID).Error(0)
}

// ApplyDailyReset mocks the ApplyDailyReset method of CardUseCase.
func (m *MockCardUseCase) ApplyDailyReset(ctx context.Context, cardID uuid.UUID) (bool, error) {
	args := m.Called(ctx, cardID)
	return args.Bool(0), args.Error(1)
}

// ResetAllDailySpent mocks the ResetAllDailySpent method of CardUseCase.
func (m *MockCardUseCase) ResetAllDailySpent(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// Activate mocks the Activate method of CardUseCase.
func (m *MockCardUseCase) Activate(ctx context.Context, cardID uuid.UUID) error {
	return m.Called(ctx, cardID).Error(0)
}

// ActivateFromTap mocks the ActivateFromTap method of CardUseCase.
func (m *MockCardUseCase) ActivateFromTap(ctx context.Context, cardID uuid.UUID, uid string) error {
	return m.Called(ctx, cardID, uid).Error(0)
}

// Disable mocks the Disable method of CardUseCase.
func (m *MockCardUseCase) Disable(ctx context.Context, cardID uuid.UUID) error {
	return m.Called(ctx, cardID).Error(0)
}

// Enable mocks the Enable method of CardUseCase.
func (m *MockCardUseCase) Enable(ctx context.Context, cardID uuid.UUID) error {
	return m.Called(ctx, cardID).Error(0)
}

// Wipe mocks the Wipe method of CardUseCase.
func (m *MockCardUseCase) Wipe(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	return m.card(m.Called(ctx, cardID))
}

// UpdateLimits mocks the UpdateLimits method of CardUseCase.
func (m *MockCardUseCase) UpdateLimits(
	ctx context.Context,
	cardID uuid.UUID,
	input *domain.UpdateCardInput,
) (*domain.Card, error) {
	return m.card(m.Called(ctx, cardID, input))
}

// AdjustBalance mocks the AdjustBalance method of CardUseCase.
func (m *MockCardUseCase) AdjustBalance(
	ctx context.Context,
	cardID uuid.UUID,
	input *domain.AdjustBalanceInput,
) (*domain.Transaction, error) {
	return m.transaction(m.Called(ctx, cardID, input))
}

// ListTransactions mocks the ListTransactions method of CardUseCase.
func (m *MockCardUseCase) ListTransactions(
	ctx context.Context,
	cardID uuid.UUID,
	offset, limit int,
) ([]*domain.Transaction, error) {
	args := m.Called(ctx, cardID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transaction), args.Error(1)
}

// ProgrammingPayload mocks the ProgrammingPayload method of CardUseCase.
func (m *MockCardUseCase) ProgrammingPayload(ctx context.Context, cardID uuid.UUID) (*domain.ProgrammingPayload, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProgrammingPayload), args.Error(1)
}

// Credit mocks the Credit method of CardUseCase.
func (m *MockCardUseCase) Credit(
	ctx context.Context,
	cardID uuid.UUID,
	amount int64,
	paymentHash, description string,
) (*domain.Transaction, error) {
	return m.transaction(m.Called(ctx, cardID, amount, paymentHash, description))
}

// Debit mocks the Debit method of CardUseCase.
func (m *MockCardUseCase) Debit(
	ctx context.Context,
	cardID uuid.UUID,
	counter uint32,
	amount int64,
	paymentHash, description string,
) (*domain.Transaction, error) {
	return m.transaction(m.Called(ctx, cardID, counter, amount, paymentHash, description))
}

// Refund mocks the Refund method of CardUseCase.
func (m *MockCardUseCase) Refund(
	ctx context.Context,
	cardID uuid.UUID,
	amount int64,
	description string,
) (*domain.Transaction, error) {
	return m.transaction(m.Called(ctx, cardID, amount, description))
}

var (
	_ usecase.CardUseCase     = (*MockCardUseCase)(nil)
	_ usecase.WithdrawUseCase = (*MockWithdrawUseCase)(nil)
	_ usecase.TopUpUseCase    = (*MockTopUpUseCase)(nil)
	_ usecase.ResetUseCase    = (*MockResetUseCase)(nil)
)

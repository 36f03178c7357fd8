// Package mocks provides a mock implementation of the voucher use case for testing
// HTTP handlers.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/voucher/domain"
	"github.com/allisson/boltgate/internal/voucher/usecase"
)

// MockVoucherUseCase is a mock implementation of VoucherUseCase.
type MockVoucherUseCase struct {
	mock.Mock
}

var _ usecase.VoucherUseCase = (*MockVoucherUseCase)(nil)

// Create mocks the Create method of VoucherUseCase.
func (m *MockVoucherUseCase) Create(ctx context.Context, input *domain.CreateVoucherInput) (*domain.Voucher, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Voucher), args.Error(1)
}

// Status mocks the Status method of VoucherUseCase.
func (m *MockVoucherUseCase) Status(ctx context.Context, chargeID string) (*domain.StatusView, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StatusView), args.Error(1)
}

// WithdrawRequest mocks the WithdrawRequest method of VoucherUseCase.
func (m *MockVoucherUseCase) WithdrawRequest(ctx context.Context, chargeID string) (*lnurl.WithdrawRequest, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lnurl.WithdrawRequest), args.Error(1)
}

// Callback mocks the Callback method of VoucherUseCase.
func (m *MockVoucherUseCase) Callback(ctx context.Context, k1, paymentRequest string) error {
	return m.Called(ctx, k1, paymentRequest).Error(0)
}

// Cancel mocks the Cancel method of VoucherUseCase.
func (m *MockVoucherUseCase) Cancel(ctx context.Context, voucherID uuid.UUID) error {
	return m.Called(ctx, voucherID).Error(0)
}

// ExpireOverdue mocks the ExpireOverdue method of VoucherUseCase.
func (m *MockVoucherUseCase) ExpireOverdue(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

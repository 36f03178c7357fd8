package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/boltgate/internal/metrics"
	"github.com/allisson/boltgate/internal/money"
	"github.com/allisson/boltgate/internal/voucher/domain"
	"github.com/allisson/boltgate/internal/wallet"
)

const (
	testAPIKey     = "issuer-key"
	testEnv        = "staging"
	testBTCWallet  = "btc-wallet"
	testUSDWallet  = "usd-wallet"
	testPublicBase = "https://pay.example.com"
)

var testCreds = wallet.Credentials{APIKey: testAPIKey, Environment: testEnv}

// memVoucherRepository applies the same conditional updates as the SQL repositories.
type memVoucherRepository struct {
	mu       sync.Mutex
	vouchers map[uuid.UUID]domain.Voucher
}

func newMemVoucherRepository() *memVoucherRepository {
	return &memVoucherRepository{vouchers: make(map[uuid.UUID]domain.Voucher)}
}

func (m *memVoucherRepository) Create(_ context.Context, voucher *domain.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vouchers[voucher.ID] = *voucher
	return nil
}

func (m *memVoucherRepository) Get(_ context.Context, voucherID uuid.UUID) (*domain.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[voucherID]
	if !ok {
		return nil, domain.ErrVoucherNotFound
	}
	return &v, nil
}

func (m *memVoucherRepository) Claim(
	_ context.Context,
	voucherID uuid.UUID,
	paymentHash string,
	now time.Time,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[voucherID]
	if !ok || v.Claimed || v.Status != domain.StatusActive || !v.ExpiresAt.After(now) {
		return false, nil
	}
	v.Claimed = true
	v.Status = domain.StatusClaimed
	v.ClaimedAt = &now
	v.PaymentHash = &paymentHash
	v.UpdatedAt = now
	m.vouchers[voucherID] = v
	return true, nil
}

func (m *memVoucherRepository) Unclaim(_ context.Context, voucherID uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[voucherID]
	if !ok || !v.Claimed {
		return domain.ErrVoucherNotFound
	}
	v.Claimed = false
	v.Status = domain.StatusActive
	v.ClaimedAt = nil
	v.PaymentHash = nil
	v.UpdatedAt = now
	m.vouchers[voucherID] = v
	return nil
}

func (m *memVoucherRepository) Cancel(_ context.Context, voucherID uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[voucherID]
	if !ok || v.Claimed || v.Status != domain.StatusActive {
		return false, nil
	}
	v.Status = domain.StatusCancelled
	v.UpdatedAt = now
	m.vouchers[voucherID] = v
	return true, nil
}

func (m *memVoucherRepository) ExpireOverdue(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, v := range m.vouchers {
		if !v.Claimed && v.Status == domain.StatusActive && !v.ExpiresAt.After(now) {
			v.Status = domain.StatusExpired
			v.UpdatedAt = now
			m.vouchers[id] = v
			n++
		}
	}
	return n, nil
}

func (m *memVoucherRepository) mutate(t *testing.T, voucherID uuid.UUID, fn func(v *domain.Voucher)) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[voucherID]
	require.True(t, ok)
	fn(&v)
	m.vouchers[voucherID] = v
}

type mockWallet struct {
	mock.Mock
}

func (m *mockWallet) GetWallets(ctx context.Context, creds wallet.Credentials) ([]wallet.Wallet, error) {
	args := m.Called(ctx, creds)
	wallets, _ := args.Get(0).([]wallet.Wallet)
	return wallets, args.Error(1)
}

func (m *mockWallet) PayLnInvoice(
	ctx context.Context,
	creds wallet.Credentials,
	walletID, paymentRequest, memo string,
) (wallet.PaymentStatus, error) {
	args := m.Called(ctx, creds, walletID, paymentRequest, memo)
	return args.Get(0).(wallet.PaymentStatus), args.Error(1)
}

type mockRates struct {
	mock.Mock
}

func (m *mockRates) GetExchangeRate(ctx context.Context, environment string) (money.Rate, error) {
	args := m.Called(ctx, environment)
	return args.Get(0).(money.Rate), args.Error(1)
}

type harness struct {
	repo    *memVoucherRepository
	wallet  *mockWallet
	rates   *mockRates
	useCase VoucherUseCase
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := newMemVoucherRepository()
	walletClient := &mockWallet{}
	rates := &mockRates{}
	t.Cleanup(func() {
		walletClient.AssertExpectations(t)
		rates.AssertExpectations(t)
	})

	useCase := NewVoucherUseCase(
		Config{PublicBaseURL: testPublicBase},
		repo,
		walletClient,
		rates,
		metrics.NewNoOpBusinessMetrics(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return &harness{repo: repo, wallet: walletClient, rates: rates, useCase: useCase}
}

func (h *harness) expectWallets() {
	h.wallet.On("GetWallets", mock.Anything, testCreds).Return([]wallet.Wallet{
		{ID: testBTCWallet, Currency: money.CurrencyBTC, Balance: 100_000},
		{ID: testUSDWallet, Currency: money.CurrencyUSD, Balance: 10_000},
	}, nil)
}

// seedVoucher stores an ACTIVE BTC voucher without going through Create.
func (h *harness) seedVoucher(t *testing.T, sats int64, mutate ...func(v *domain.Voucher)) *domain.Voucher {
	t.Helper()
	now := time.Now().UTC()
	v := &domain.Voucher{
		ID:             uuid.Must(uuid.NewV7()),
		AmountSats:     sats,
		WalletCurrency: money.CurrencyBTC,
		Status:         domain.StatusActive,
		ExpiresAt:      now.Add(time.Hour),
		APIKey:         testAPIKey,
		WalletID:       testBTCWallet,
		Environment:    testEnv,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, fn := range mutate {
		fn(v)
	}
	require.NoError(t, h.repo.Create(context.Background(), v))
	return v
}

func newInvoice(t *testing.T, sats int64, hashByte byte) (pr, paymentHash string) {
	t.Helper()

	privKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x22}, 32))
	var hash [32]byte
	copy(hash[:], bytes.Repeat([]byte{hashByte}, 32))

	invoice, err := zpay32.NewInvoice(
		&chaincfg.MainNetParams,
		hash,
		time.Now(),
		zpay32.Amount(lnwire.MilliSatoshi(sats*1000)),
		zpay32.Description("voucher"),
		zpay32.Expiry(time.Hour),
	)
	require.NoError(t, err)

	encoded, err := invoice.Encode(zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			digest := sha256.Sum256(msg)
			return ecdsa.SignCompact(privKey, digest[:], true), nil
		},
	})
	require.NoError(t, err)
	return encoded, hex.EncodeToString(hash[:])
}

func mustRate(t *testing.T, base int64, offset int32) money.Rate {
	t.Helper()
	rate, err := money.NewRate(base, offset)
	require.NoError(t, err)
	return rate
}

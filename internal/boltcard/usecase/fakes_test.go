package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"sort"
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

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/boltcard/service"
	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/metrics"
	"github.com/allisson/boltgate/internal/money"
	"github.com/allisson/boltgate/internal/wallet"
)

const (
	testUID        = "04a1b2c3d4e5f6"
	testAPIKey     = "api-key"
	testEnv        = "staging"
	testBTCWallet  = "btc-wallet"
	testUSDWallet  = "usd-wallet"
	testPublicBase = "https://pay.example.com"
)

var testCreds = wallet.Credentials{APIKey: testAPIKey, Environment: testEnv}

func fill(b byte) []byte { return bytes.Repeat([]byte{b}, domain.KeySize) }

func testKeys() domain.Keys {
	return domain.Keys{K0: fill(0x00), K1: fill(0x01), K2: fill(0x02), K3: fill(0x00), K4: fill(0x00)}
}

// memStore is an in-memory card, ledger and pending top-up store with the same
// conditional update semantics as the SQL repositories.
type memStore struct {
	mu     sync.Mutex
	cards  map[uuid.UUID]*domain.Card
	txs    []*domain.Transaction
	topUps map[string]*domain.PendingTopUp
	calls  int
}

func newMemStore() *memStore {
	return &memStore{
		cards:  make(map[uuid.UUID]*domain.Card),
		topUps: make(map[string]*domain.PendingTopUp),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func cloneCard(c *domain.Card) *domain.Card {
	out := *c
	out.Keys = domain.Keys{
		K0: cloneBytes(c.Keys.K0),
		K1: cloneBytes(c.Keys.K1),
		K2: cloneBytes(c.Keys.K2),
		K3: cloneBytes(c.Keys.K3),
		K4: cloneBytes(c.Keys.K4),
	}
	if c.MaxTxAmount != nil {
		v := *c.MaxTxAmount
		out.MaxTxAmount = &v
	}
	if c.DailyLimit != nil {
		v := *c.DailyLimit
		out.DailyLimit = &v
	}
	return &out
}

type memSnapshot struct {
	cards  map[uuid.UUID]*domain.Card
	txs    []*domain.Transaction
	topUps map[string]*domain.PendingTopUp
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		cards:  make(map[uuid.UUID]*domain.Card, len(s.cards)),
		txs:    append([]*domain.Transaction(nil), s.txs...),
		topUps: make(map[string]*domain.PendingTopUp, len(s.topUps)),
	}
	for id, c := range s.cards {
		snap.cards[id] = cloneCard(c)
	}
	for hash, p := range s.topUps {
		cp := *p
		snap.topUps[hash] = &cp
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = snap.cards
	s.txs = snap.txs
	s.topUps = snap.topUps
}

// card returns a copy of the stored card for assertions.
func (s *memStore) card(t *testing.T, id uuid.UUID) *domain.Card {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	require.True(t, ok)
	return cloneCard(c)
}

func (s *memStore) transactions(cardID uuid.UUID) []*domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Transaction, 0)
	for _, tx := range s.txs {
		if tx.CardID == cardID {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// withCard runs fn on the stored card under the store lock.
func (s *memStore) withCard(id uuid.UUID, fn func(c *domain.Card) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	c, ok := s.cards[id]
	if !ok {
		return domain.ErrCardNotFound
	}
	return fn(c)
}

type memTxKey struct{}

// memTxManager serializes transactions and restores the store when fn fails.
type memTxManager struct {
	mu    sync.Mutex
	store *memStore
}

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type memCardRepository struct{ s *memStore }

func (r *memCardRepository) Create(_ context.Context, card *domain.Card) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	if _, ok := r.s.cards[card.ID]; ok {
		return apperrors.Wrap(apperrors.ErrConflict, "card already exists")
	}
	r.s.cards[card.ID] = cloneCard(card)
	return nil
}

func (r *memCardRepository) Get(_ context.Context, cardID uuid.UUID) (*domain.Card, error) {
	var out *domain.Card
	err := r.s.withCard(cardID, func(c *domain.Card) error {
		out = cloneCard(c)
		return nil
	})
	return out, err
}

func (r *memCardRepository) GetByIDHash(_ context.Context, idHash string) (*domain.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	for _, c := range r.s.cards {
		if c.IDHash == idHash {
			return cloneCard(c), nil
		}
	}
	return nil, domain.ErrCardNotFound
}

func (r *memCardRepository) GetForUpdate(ctx context.Context, cardID uuid.UUID) (*domain.Card, error) {
	return r.Get(ctx, cardID)
}

func (r *memCardRepository) List(_ context.Context, offset, limit int) ([]*domain.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	all := make([]*domain.Card, 0, len(r.s.cards))
	for _, c := range r.s.cards {
		all = append(all, cloneCard(c))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() > all[j].ID.String() })
	if offset >= len(all) {
		return []*domain.Card{}, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *memCardRepository) AdvanceCounter(_ context.Context, cardID uuid.UUID, counter uint32, usedAt time.Time) error {
	return r.s.withCard(cardID, func(c *domain.Card) error {
		if counter <= c.LastCounter {
			return domain.ErrCounterReplay
		}
		c.LastCounter = counter
		c.LastUsedAt = &usedAt
		return nil
	})
}

func (r *memCardRepository) ClaimWithdrawCounter(_ context.Context, cardID uuid.UUID, counter uint32, now time.Time) error {
	return r.s.withCard(cardID, func(c *domain.Card) error {
		if c.LastCounter != counter || c.LastWithdrawCounter >= counter {
			return domain.ErrTapAlreadyUsed
		}
		c.LastWithdrawCounter = counter
		c.UpdatedAt = now
		return nil
	})
}

func (r *memCardRepository) ApplyBalanceDelta(
	_ context.Context,
	cardID uuid.UUID,
	delta, dailyDelta int64,
	now time.Time,
) (int64, error) {
	var balance int64
	err := r.s.withCard(cardID, func(c *domain.Card) error {
		if c.Balance+delta < 0 {
			return domain.ErrNegativeBalance
		}
		c.Balance += delta
		c.DailySpent = max(c.DailySpent+dailyDelta, 0)
		c.UpdatedAt = now
		balance = c.Balance
		return nil
	})
	return balance, err
}

func (r *memCardRepository) UpdateStatus(_ context.Context, cardID uuid.UUID, status domain.CardStatus, now time.Time) error {
	return r.s.withCard(cardID, func(c *domain.Card) error {
		c.Status = status
		if status == domain.CardStatusActive && c.ActivatedAt == nil {
			c.ActivatedAt = &now
		}
		c.UpdatedAt = now
		return nil
	})
}

func (r *memCardRepository) BindUID(_ context.Context, cardID uuid.UUID, uid string, now time.Time) error {
	return r.s.withCard(cardID, func(c *domain.Card) error {
		if c.UID != "" {
			return domain.ErrUIDMismatch
		}
		c.UID = uid
		c.UpdatedAt = now
		return nil
	})
}

func (r *memCardRepository) UpdateSettings(_ context.Context, card *domain.Card) error {
	updated := cloneCard(card)
	return r.s.withCard(card.ID, func(c *domain.Card) error {
		c.Name = updated.Name
		c.MaxTxAmount = updated.MaxTxAmount
		c.DailyLimit = updated.DailyLimit
		c.UpdatedAt = updated.UpdatedAt
		return nil
	})
}

func (r *memCardRepository) ResetDailySpent(_ context.Context, cardID uuid.UUID, now time.Time) error {
	return r.s.withCard(cardID, func(c *domain.Card) error {
		c.DailySpent = 0
		c.DailyResetAt = now
		return nil
	})
}

func (r *memCardRepository) ResetDailySpentBefore(
	_ context.Context,
	cardID uuid.UUID,
	before, now time.Time,
) (bool, error) {
	var reset bool
	err := r.s.withCard(cardID, func(c *domain.Card) error {
		if c.DailyResetAt.Before(before) {
			c.DailySpent = 0
			c.DailyResetAt = now
			reset = true
		}
		return nil
	})
	return reset, err
}

func (r *memCardRepository) ResetAllDailySpent(_ context.Context, before, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	var n int64
	for _, c := range r.s.cards {
		if c.DailyResetAt.Before(before) && c.Status != domain.CardStatusWiped {
			c.DailySpent = 0
			c.DailyResetAt = now
			n++
		}
	}
	return n, nil
}

type memTransactionRepository struct{ s *memStore }

func (r *memTransactionRepository) Create(_ context.Context, tx *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	if tx.PaymentHash != nil {
		for _, existing := range r.s.txs {
			if existing.CardID == tx.CardID && existing.PaymentHash != nil && *existing.PaymentHash == *tx.PaymentHash {
				return apperrors.Wrap(apperrors.ErrConflict, "transaction already recorded")
			}
		}
	}
	cp := *tx
	r.s.txs = append(r.s.txs, &cp)
	return nil
}

func (r *memTransactionRepository) ListByCard(
	_ context.Context,
	cardID uuid.UUID,
	offset, limit int,
) ([]*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	out := make([]*domain.Transaction, 0)
	for i := len(r.s.txs) - 1; i >= 0; i-- {
		if r.s.txs[i].CardID == cardID {
			cp := *r.s.txs[i]
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return []*domain.Transaction{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memPendingTopUpRepository struct{ s *memStore }

func (r *memPendingTopUpRepository) Create(_ context.Context, topUp *domain.PendingTopUp) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	if _, ok := r.s.topUps[topUp.PaymentHash]; ok {
		return apperrors.Wrap(apperrors.ErrConflict, "pending top-up already exists")
	}
	cp := *topUp
	r.s.topUps[topUp.PaymentHash] = &cp
	return nil
}

func (r *memPendingTopUpRepository) Get(_ context.Context, paymentHash string) (*domain.PendingTopUp, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	p, ok := r.s.topUps[paymentHash]
	if !ok {
		return nil, domain.ErrTopUpNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memPendingTopUpRepository) list(match func(*domain.PendingTopUp) bool) []*domain.PendingTopUp {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	out := make([]*domain.PendingTopUp, 0)
	for _, p := range r.s.topUps {
		if match(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memPendingTopUpRepository) ListByCard(_ context.Context, cardID uuid.UUID) ([]*domain.PendingTopUp, error) {
	return r.list(func(p *domain.PendingTopUp) bool { return p.CardID == cardID }), nil
}

func (r *memPendingTopUpRepository) ListAll(_ context.Context, limit int) ([]*domain.PendingTopUp, error) {
	out := r.list(func(*domain.PendingTopUp) bool { return true })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memPendingTopUpRepository) Delete(_ context.Context, paymentHash string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.calls++
	if _, ok := r.s.topUps[paymentHash]; !ok {
		return false, nil
	}
	delete(r.s.topUps, paymentHash)
	return true, nil
}

type mockWallet struct {
	mock.Mock
}

func (m *mockWallet) GetWallets(ctx context.Context, creds wallet.Credentials) ([]wallet.Wallet, error) {
	args := m.Called(ctx, creds)
	wallets, _ := args.Get(0).([]wallet.Wallet)
	return wallets, args.Error(1)
}

func (m *mockWallet) CreateLnInvoice(
	ctx context.Context,
	creds wallet.Credentials,
	walletID string,
	sats int64,
	memo string,
	expiresIn time.Duration,
) (*wallet.Invoice, error) {
	args := m.Called(ctx, creds, walletID, sats, memo, expiresIn)
	invoice, _ := args.Get(0).(*wallet.Invoice)
	return invoice, args.Error(1)
}

func (m *mockWallet) PayLnInvoice(
	ctx context.Context,
	creds wallet.Credentials,
	walletID, paymentRequest, memo string,
) (wallet.PaymentStatus, error) {
	args := m.Called(ctx, creds, walletID, paymentRequest, memo)
	return args.Get(0).(wallet.PaymentStatus), args.Error(1)
}

func (m *mockWallet) GetInvoiceStatus(
	ctx context.Context,
	creds wallet.Credentials,
	paymentRequest string,
) (wallet.InvoiceStatus, error) {
	args := m.Called(ctx, creds, paymentRequest)
	return args.Get(0).(wallet.InvoiceStatus), args.Error(1)
}

type mockRates struct {
	mock.Mock
}

func (m *mockRates) GetExchangeRate(ctx context.Context, environment string) (money.Rate, error) {
	args := m.Called(ctx, environment)
	return args.Get(0).(money.Rate), args.Error(1)
}

// harness wires the real use cases over the in-memory store.
type harness struct {
	store    *memStore
	wallet   *mockWallet
	rates    *mockRates
	hasher   service.IDHasher
	tokens   service.ResetTokenService
	cards    CardUseCase
	topUps   TopUpUseCase
	withdraw WithdrawUseCase
	reset    ResetUseCase
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newMemStore()
	walletClient := &mockWallet{}
	rates := &mockRates{}
	t.Cleanup(func() {
		walletClient.AssertExpectations(t)
		rates.AssertExpectations(t)
	})

	hasher, err := service.NewIDHasher("test-server-secret")
	require.NoError(t, err)
	tokens, err := service.NewResetTokenService("test-server-secret", 5*time.Minute)
	require.NoError(t, err)

	cfg := Config{
		PublicBaseURL:      testPublicBase,
		TopUpInvoiceExpiry: 10 * time.Minute,
		TopUpMaxSats:       1_000_000,
	}
	txManager := &memTxManager{store: store}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noop := metrics.NewNoOpBusinessMetrics()

	cards := NewCardUseCase(
		cfg,
		txManager,
		&memCardRepository{s: store},
		&memTransactionRepository{s: store},
		walletClient,
		hasher,
	)
	topUps := NewTopUpUseCase(cfg, txManager, cards, &memPendingTopUpRepository{s: store}, walletClient, rates, noop, logger)

	return &harness{
		store:    store,
		wallet:   walletClient,
		rates:    rates,
		hasher:   hasher,
		tokens:   tokens,
		cards:    cards,
		topUps:   topUps,
		withdraw: NewWithdrawUseCase(cfg, cards, topUps, walletClient, rates, noop, logger),
		reset:    NewResetUseCase(cards, tokens, logger),
	}
}

// seedCard stores an active BTC card with the test keys and returns a copy of it.
func (h *harness) seedCard(t *testing.T, mutate ...func(c *domain.Card)) *domain.Card {
	t.Helper()
	now := time.Now().UTC()
	card := &domain.Card{
		ID:             uuid.Must(uuid.NewV7()),
		UID:            testUID,
		Name:           "Test card",
		Keys:           testKeys(),
		APIKey:         testAPIKey,
		WalletID:       testBTCWallet,
		WalletCurrency: money.CurrencyBTC,
		Environment:    testEnv,
		Balance:        10000,
		DailyResetAt:   now,
		Status:         domain.CardStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	card.IDHash = h.hasher.IDHash(card.ID)
	for _, fn := range mutate {
		fn(card)
	}
	h.store.mu.Lock()
	h.store.cards[card.ID] = cloneCard(card)
	h.store.mu.Unlock()
	return cloneCard(card)
}

func (h *harness) seedTopUp(t *testing.T, cardID uuid.UUID, hash string, sats int64, expiresAt time.Time) {
	t.Helper()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.topUps[hash] = &domain.PendingTopUp{
		PaymentHash:    hash,
		CardID:         cardID,
		PaymentRequest: "lnbc-" + hash,
		AmountSats:     sats,
		WalletID:       testBTCWallet,
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now().UTC(),
	}
}

func (h *harness) topUpCount() int {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return len(h.store.topUps)
}

// tapParams emulates a tap of a card programmed with the test keys.
func tapParams(t *testing.T, counter uint32) (p, c string) {
	t.Helper()
	uid, err := hex.DecodeString(testUID)
	require.NoError(t, err)
	p, c, err = service.EncodeTap(fill(0x01), fill(0x02), uid, counter)
	require.NoError(t, err)
	return p, c
}

// newInvoice returns a signed mainnet invoice for sats with a payment hash made of hashByte.
func newInvoice(t *testing.T, sats int64, hashByte byte) (pr, paymentHash string) {
	t.Helper()

	privKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))
	var hash [32]byte
	copy(hash[:], bytes.Repeat([]byte{hashByte}, 32))

	invoice, err := zpay32.NewInvoice(
		&chaincfg.MainNetParams,
		hash,
		time.Now(),
		zpay32.Amount(lnwire.MilliSatoshi(sats*1000)),
		zpay32.Description("coffee"),
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

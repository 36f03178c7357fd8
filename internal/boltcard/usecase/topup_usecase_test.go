package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/money"
	"github.com/allisson/boltgate/internal/wallet"
)

func TestTopUpUseCase_PayRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t)

		req, err := h.topUps.PayRequest(ctx, card.IDHash)
		require.NoError(t, err)
		assert.Equal(t, "payRequest", req.Tag)
		assert.Equal(t, testPublicBase+"/api/boltcard/topup/"+card.IDHash+"/callback", req.Callback)
		assert.Equal(t, int64(1000), req.MinSendable)
		assert.Equal(t, int64(1_000_000_000), req.MaxSendable)
		assert.Equal(t, `[["text/plain","Top up card Test card"]]`, req.Metadata)
		assert.Equal(t, 140, req.CommentAllowed)
	})

	t.Run("Error_DisabledCard", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t, func(c *domain.Card) { c.Status = domain.CardStatusDisabled })

		_, err := h.topUps.PayRequest(ctx, card.IDHash)
		assert.ErrorIs(t, err, domain.ErrCardDisabled)
	})
}

func TestTopUpUseCase_Invoice(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_BTCCard", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t)
		h.wallet.On("GetWallets", mock.Anything, testCreds).
			Return([]wallet.Wallet{{ID: testBTCWallet, Currency: money.CurrencyBTC}}, nil).
			Once()
		h.wallet.On("CreateLnInvoice", mock.Anything, testCreds, testBTCWallet, int64(5000),
			"Top up card Test card: thanks", 10*time.Minute).
			Return(&wallet.Invoice{PaymentRequest: "lnbc-topup", PaymentHash: "hash-1", Satoshis: 5000}, nil).
			Once()

		resp, err := h.topUps.Invoice(ctx, card.IDHash, 5_000_000, "thanks")
		require.NoError(t, err)
		assert.Equal(t, "lnbc-topup", resp.PR)
		assert.Empty(t, resp.Routes)

		require.Equal(t, 1, h.topUpCount())
		pending, err := (&memPendingTopUpRepository{s: h.store}).Get(ctx, "hash-1")
		require.NoError(t, err)
		assert.Equal(t, card.ID, pending.CardID)
		assert.Equal(t, int64(5000), pending.AmountSats)
		assert.True(t, pending.ExpiresAt.After(time.Now()))
	})

	t.Run("Success_USDCardReceivesOnBTCWallet", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t, func(c *domain.Card) {
			c.WalletCurrency = money.CurrencyUSD
			c.WalletID = testUSDWallet
		})
		h.wallet.On("GetWallets", mock.Anything, testCreds).
			Return([]wallet.Wallet{
				{ID: testUSDWallet, Currency: money.CurrencyUSD},
				{ID: testBTCWallet, Currency: money.CurrencyBTC},
			}, nil).
			Once()
		h.wallet.On("CreateLnInvoice", mock.Anything, testCreds, testBTCWallet, int64(2000),
			"Top up card Test card", 10*time.Minute).
			Return(&wallet.Invoice{PaymentRequest: "lnbc-usd", PaymentHash: "hash-usd", Satoshis: 2000}, nil).
			Once()

		resp, err := h.topUps.Invoice(ctx, card.IDHash, 2_000_000, "")
		require.NoError(t, err)
		assert.Equal(t, "lnbc-usd", resp.PR)
	})

	t.Run("Error_InvalidAmounts", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t)

		for _, msat := range []int64{0, 999, 1500, 1_000_001_000} {
			_, err := h.topUps.Invoice(ctx, card.IDHash, msat, "")
			assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %d", msat)
		}
		assert.Zero(t, h.store.callCount())
	})

	t.Run("Error_WipedCard", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t, func(c *domain.Card) { c.Status = domain.CardStatusWiped })

		_, err := h.topUps.Invoice(ctx, card.IDHash, 5_000_000, "")
		assert.ErrorIs(t, err, domain.ErrCardWiped)
	})
}

func TestTopUpUseCase_CheckAndProcessPendingTopUps(t *testing.T) {
	ctx := context.Background()
	future := time.Now().Add(10 * time.Minute)

	t.Run("Success_CreditsPaidOnce", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t)
		h.seedTopUp(t, card.ID, "paid", 5000, future)
		h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-paid").
			Return(wallet.InvoicePaid, nil).
			Once()

		n, err := h.topUps.CheckAndProcessPendingTopUps(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = h.topUps.CheckAndProcessPendingTopUps(ctx, card.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		assert.Equal(t, int64(15000), h.store.card(t, card.ID).Balance)
		assert.Zero(t, h.topUpCount())
		txs := h.store.transactions(card.ID)
		require.Len(t, txs, 1)
		assert.Equal(t, domain.TransactionTopUp, txs[0].Type)
		assert.Equal(t, "paid", *txs[0].PaymentHash)
	})

	t.Run("Success_USDCardCreditsFlooredCents", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t, func(c *domain.Card) {
			c.WalletCurrency = money.CurrencyUSD
			c.Balance = 100
		})
		h.seedTopUp(t, card.ID, "usd", 5019, future)
		h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-usd").
			Return(wallet.InvoicePaid, nil).
			Once()
		h.rates.On("GetExchangeRate", mock.Anything, testEnv).Return(mustRate(t, 5, 2), nil).Once()

		n, err := h.topUps.CheckAndProcessPendingTopUps(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		// 5019 sats at 0.05 cents per sat is 250.95 cents.
		assert.Equal(t, int64(350), h.store.card(t, card.ID).Balance)
	})

	t.Run("Error_RateUnavailableKeepsPending", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t, func(c *domain.Card) { c.WalletCurrency = money.CurrencyUSD })
		h.seedTopUp(t, card.ID, "usd", 5000, future)
		h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-usd").
			Return(wallet.InvoicePaid, nil).
			Once()
		h.rates.On("GetExchangeRate", mock.Anything, testEnv).
			Return(money.Rate{}, wallet.ErrRateUnavailable).
			Once()

		n, err := h.topUps.CheckAndProcessPendingTopUps(ctx, card.ID)
		assert.ErrorIs(t, err, wallet.ErrRateUnavailable)
		assert.Zero(t, n)
		assert.Equal(t, 1, h.topUpCount())
		assert.Equal(t, int64(10000), h.store.card(t, card.ID).Balance)
	})

	t.Run("Success_DropsExpiredAndKeepsPending", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t)
		h.seedTopUp(t, card.ID, "expired", 1000, future)
		h.seedTopUp(t, card.ID, "stale", 1000, time.Now().Add(-time.Minute))
		h.seedTopUp(t, card.ID, "waiting", 1000, future)
		h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-expired").
			Return(wallet.InvoiceExpired, nil).
			Once()
		h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-stale").
			Return(wallet.InvoicePending, nil).
			Once()
		h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-waiting").
			Return(wallet.InvoicePending, nil).
			Once()

		n, err := h.topUps.CheckAndProcessPendingTopUps(ctx, card.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 1, h.topUpCount())

		_, err = (&memPendingTopUpRepository{s: h.store}).Get(ctx, "waiting")
		assert.NoError(t, err)
	})

	t.Run("Success_AlreadyCreditedHashIsDropped", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t)
		_, err := h.cards.Credit(ctx, card.ID, 5000, "dup", "top-up")
		require.NoError(t, err)
		h.seedTopUp(t, card.ID, "dup", 5000, future)
		h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-dup").
			Return(wallet.InvoicePaid, nil).
			Once()

		n, err := h.topUps.CheckAndProcessPendingTopUps(ctx, card.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, h.topUpCount())
		assert.Equal(t, int64(15000), h.store.card(t, card.ID).Balance)
	})

	t.Run("Success_ConcurrentChecksCreditOnce", func(t *testing.T) {
		h := newHarness(t)
		card := h.seedCard(t)
		h.seedTopUp(t, card.ID, "race", 5000, future)
		h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-race").Return(wallet.InvoicePaid, nil)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.topUps.CheckAndProcessPendingTopUps(ctx, card.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(15000), h.store.card(t, card.ID).Balance)
		assert.Len(t, h.store.transactions(card.ID), 1)
	})
}

func TestTopUpUseCase_ProcessPaymentHash(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	card := h.seedCard(t)
	h.seedTopUp(t, card.ID, "hook", 700, time.Now().Add(time.Minute))
	h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-hook").
		Return(wallet.InvoicePaid, nil).
		Once()

	ok, err := h.topUps.ProcessPaymentHash(ctx, "hook")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.topUps.ProcessPaymentHash(ctx, "hook")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(10700), h.store.card(t, card.ID).Balance)
}

func TestTopUpUseCase_Sweep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	first := h.seedCard(t)
	second := h.seedCard(t)
	future := time.Now().Add(time.Minute)
	h.seedTopUp(t, first.ID, "a", 100, future)
	h.seedTopUp(t, first.ID, "b", 200, future)
	h.seedTopUp(t, second.ID, "c", 300, future)
	h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-a").Return(wallet.InvoicePaid, nil).Once()
	h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-b").
		Return(wallet.InvoiceStatus(""), errors.New("boom")).
		Once()
	h.wallet.On("GetInvoiceStatus", mock.Anything, testCreds, "lnbc-c").Return(wallet.InvoicePaid, nil).Once()

	n, err := h.topUps.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(10100), h.store.card(t, first.ID).Balance)
	assert.Equal(t, int64(10300), h.store.card(t, second.ID).Balance)
	assert.Equal(t, 1, h.topUpCount())
}

func TestTopUpUseCase_LNURL(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	card := h.seedCard(t)

	encoded, err := h.topUps.LNURL(ctx, card.ID)
	require.NoError(t, err)

	decoded, err := lnurl.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, testPublicBase+"/api/boltcard/topup/"+card.IDHash, decoded)
}

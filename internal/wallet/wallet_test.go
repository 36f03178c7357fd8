package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/boltgate/internal/errors"
)

type capturedRequest struct {
	APIKey    string
	Query     string
	Variables map[string]any
}

// newTestServer serves a fixed status and body, recording the last request.
func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		captured.APIKey = r.Header.Get("X-API-KEY")
		captured.Query = req.Query
		captured.Variables = req.Variables
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func newTestClient(url string) *Client {
	return NewClient(Config{ProductionURL: url, StagingURL: url, Timeout: time.Second}, nil)
}

var testCreds = Credentials{APIKey: "blink_test", Environment: "production"}

func TestClient_GetWallets(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server, captured := newTestServer(t, http.StatusOK, `{"data":{"me":{"defaultAccount":{"wallets":[
			{"id":"btc-1","walletCurrency":"BTC","balance":1200},
			{"id":"usd-1","walletCurrency":"USD","balance":350}
		]}}}}`)

		wallets, err := newTestClient(server.URL).GetWallets(context.Background(), testCreds)
		require.NoError(t, err)
		require.Len(t, wallets, 2)
		assert.Equal(t, Wallet{ID: "btc-1", Currency: "BTC", Balance: 1200}, wallets[0])
		assert.Equal(t, "blink_test", captured.APIKey)
		assert.Contains(t, captured.Query, "defaultAccount")
	})

	t.Run("Error_Unauthorized", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusUnauthorized, `{"error":"bad key"}`)

		_, err := newTestClient(server.URL).GetWallets(context.Background(), testCreds)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("Error_NullMe", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusOK, `{"data":{"me":null}}`)

		_, err := newTestClient(server.URL).GetWallets(context.Background(), testCreds)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Error_GraphQL", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusOK, `{"errors":[{"message":"boom"}]}`)

		_, err := newTestClient(server.URL).GetWallets(context.Background(), testCreds)
		assert.ErrorIs(t, err, ErrRequestFailed)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestFindWallet(t *testing.T) {
	wallets := []Wallet{{ID: "btc-1", Currency: "BTC"}, {ID: "usd-1", Currency: "USD"}}

	w, err := FindWallet(wallets, "usd-1", "")
	require.NoError(t, err)
	assert.Equal(t, "USD", w.Currency)

	w, err = FindWallet(wallets, "", "BTC")
	require.NoError(t, err)
	assert.Equal(t, "btc-1", w.ID)

	_, err = FindWallet(wallets, "missing", "")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestClient_CreateLnInvoice(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server, captured := newTestServer(t, http.StatusOK, `{"data":{"lnInvoiceCreate":{
			"invoice":{"paymentRequest":"lnbc100n1test","paymentHash":"abcd","satoshis":10},
			"errors":[]
		}}}`)

		invoice, err := newTestClient(server.URL).CreateLnInvoice(
			context.Background(), testCreds, "btc-1", 10, "Top up", 30*time.Minute,
		)
		require.NoError(t, err)
		assert.Equal(t, "lnbc100n1test", invoice.PaymentRequest)
		assert.Equal(t, "abcd", invoice.PaymentHash)

		input := captured.Variables["input"].(map[string]any)
		assert.Equal(t, "btc-1", input["walletId"])
		assert.Equal(t, float64(10), input["amount"])
		assert.Equal(t, float64(30), input["expiresIn"])
	})

	t.Run("Error_Payload", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusOK, `{"data":{"lnInvoiceCreate":{
			"invoice":null,"errors":[{"message":"amount too small"}]
		}}}`)

		_, err := newTestClient(server.URL).CreateLnInvoice(context.Background(), testCreds, "btc-1", 1, "", 0)
		assert.ErrorIs(t, err, ErrRequestFailed)
		assert.Contains(t, err.Error(), "amount too small")
	})
}

func TestClient_PayLnInvoice(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus PaymentStatus
		wantErr    error
	}{
		{
			name:       "success",
			status:     http.StatusOK,
			body:       `{"data":{"lnInvoicePaymentSend":{"status":"SUCCESS","errors":[]}}}`,
			wantStatus: PaymentSuccess,
		},
		{
			name:       "pending counts as sent",
			status:     http.StatusOK,
			body:       `{"data":{"lnInvoicePaymentSend":{"status":"PENDING","errors":[]}}}`,
			wantStatus: PaymentPending,
		},
		{
			name:       "already paid",
			status:     http.StatusOK,
			body:       `{"data":{"lnInvoicePaymentSend":{"status":"ALREADY_PAID","errors":[]}}}`,
			wantStatus: PaymentAlreadyPaid,
			wantErr:    ErrPaymentAlreadyPaid,
		},
		{
			name:       "insufficient balance",
			status:     http.StatusOK,
			body:       `{"data":{"lnInvoicePaymentSend":{"status":"FAILURE","errors":[{"message":"Insufficient balance for transaction"}]}}}`,
			wantStatus: PaymentFailure,
			wantErr:    ErrPaymentInsufficientBalance,
		},
		{
			name:       "expired invoice",
			status:     http.StatusOK,
			body:       `{"data":{"lnInvoicePaymentSend":{"status":"FAILURE","errors":[{"message":"Invoice expired"}]}}}`,
			wantStatus: PaymentFailure,
			wantErr:    ErrPaymentInvoiceExpired,
		},
		{
			name:       "generic failure",
			status:     http.StatusOK,
			body:       `{"data":{"lnInvoicePaymentSend":{"status":"FAILURE","errors":[{"message":"no route"}]}}}`,
			wantStatus: PaymentFailure,
			wantErr:    ErrPaymentFailed,
		},
		{
			name:       "client error is a definite failure",
			status:     http.StatusBadRequest,
			body:       `bad request`,
			wantStatus: PaymentFailure,
			wantErr:    ErrPaymentFailed,
		},
		{
			name:    "server error is unknown",
			status:  http.StatusBadGateway,
			body:    `upstream`,
			wantErr: ErrPaymentUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, captured := newTestServer(t, tt.status, tt.body)

			status, err := newTestClient(server.URL).PayLnInvoice(
				context.Background(), testCreds, "btc-1", "lnbc1invoice", "Boltcard payment",
			)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, captured.Query, "lnInvoicePaymentSend")
		})
	}

	t.Run("definite failures are not unknown", func(t *testing.T) {
		assert.False(t, apperrors.Is(ErrPaymentInsufficientBalance, ErrPaymentUnknown))
		assert.True(t, apperrors.Is(ErrPaymentInsufficientBalance, ErrPaymentFailed))
		assert.False(t, apperrors.Is(ErrPaymentUnknown, ErrPaymentFailed))
	})
}

func TestClient_PayLnInvoice_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(Config{ProductionURL: server.URL, Timeout: 50 * time.Millisecond}, nil)

	status, err := client.PayLnInvoice(context.Background(), testCreds, "btc-1", "lnbc1invoice", "")
	assert.Equal(t, PaymentStatus(""), status)
	assert.ErrorIs(t, err, ErrPaymentUnknown)
}

func TestClient_GetInvoiceStatus(t *testing.T) {
	server, captured := newTestServer(t, http.StatusOK,
		`{"data":{"lnInvoicePaymentStatus":{"status":"PAID","errors":[]}}}`)

	status, err := newTestClient(server.URL).GetInvoiceStatus(context.Background(), testCreds, "lnbc1invoice")
	require.NoError(t, err)
	assert.Equal(t, InvoicePaid, status)

	input := captured.Variables["input"].(map[string]any)
	assert.Equal(t, "lnbc1invoice", input["paymentRequest"])
}

func TestClient_GetExchangeRate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server, captured := newTestServer(t, http.StatusOK,
			`{"data":{"realtimePrice":{"btcSatPrice":{"base":625,"offset":4}}}}`)

		rate, err := newTestClient(server.URL).GetExchangeRate(context.Background(), "production")
		require.NoError(t, err)
		assert.Equal(t, "0.0625", rate.CentsPerSat.String())
		assert.Empty(t, captured.APIKey)
	})

	t.Run("Error_ZeroRate", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusOK,
			`{"data":{"realtimePrice":{"btcSatPrice":{"base":0,"offset":0}}}}`)

		_, err := newTestClient(server.URL).GetExchangeRate(context.Background(), "production")
		assert.ErrorIs(t, err, ErrRateUnavailable)
	})

	t.Run("Error_Upstream", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusServiceUnavailable, `down`)

		_, err := newTestClient(server.URL).GetExchangeRate(context.Background(), "production")
		assert.ErrorIs(t, err, ErrRateUnavailable)
		assert.ErrorIs(t, err, apperrors.ErrUpstream)
	})
}

func TestClient_GetExchangeRate_CoalescesConcurrentCalls(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"data":{"realtimePrice":{"btcSatPrice":{"base":5,"offset":2}}}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	const callers = 8
	var wg sync.WaitGroup
	var started sync.WaitGroup
	errs := make([]error, callers)
	started.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			_, errs[i] = client.GetExchangeRate(context.Background(), "production")
		}(i)
	}
	started.Wait()
	// Let the goroutines reach singleflight before the upstream answers.
	require.Eventually(t, func() bool { return hits.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())

	// No caching: a later call hits upstream again.
	_, err := client.GetExchangeRate(context.Background(), "production")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestClient_GetExchangeRate_CancelledCallerDoesNotFailOthers(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"data":{"realtimePrice":{"btcSatPrice":{"base":5,"offset":2}}}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.GetExchangeRate(firstCtx, "production")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)

	secondErr := make(chan error, 1)
	go func() {
		_, err := client.GetExchangeRate(context.Background(), "production")
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	err := <-firstErr
	assert.ErrorIs(t, err, ErrRateUnavailable)

	close(release)
	assert.NoError(t, <-secondErr)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_StagingEndpoint(t *testing.T) {
	prod, _ := newTestServer(t, http.StatusOK, `{"data":{"me":{"defaultAccount":{"wallets":[{"id":"prod"}]}}}}`)
	staging, _ := newTestServer(t, http.StatusOK, `{"data":{"me":{"defaultAccount":{"wallets":[{"id":"staging"}]}}}}`)

	client := NewClient(Config{ProductionURL: prod.URL, StagingURL: staging.URL, Timeout: time.Second}, nil)

	wallets, err := client.GetWallets(context.Background(), Credentials{APIKey: "k", Environment: "staging"})
	require.NoError(t, err)
	assert.Equal(t, "staging", wallets[0].ID)

	wallets, err = client.GetWallets(context.Background(), Credentials{APIKey: "k", Environment: "production"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wallets[0].ID, "prod"))
}

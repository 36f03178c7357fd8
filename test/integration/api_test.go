// Package integration provides end-to-end integration tests for the gateway API.
// Tests card administration, tap verification and vouchers against both PostgreSQL and MySQL
// with a fake wallet GraphQL endpoint.
package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/boltgate/internal/app"
	authService "github.com/allisson/boltgate/internal/auth/service"
	"github.com/allisson/boltgate/internal/boltcard/service"
	"github.com/allisson/boltgate/internal/config"
	"github.com/allisson/boltgate/internal/testutil"
)

const (
	testKMSKeyURI = "base64key://YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXoxMjM0NTY="
	testCardUID   = "04965a12345678"
	testAPIKey    = "integration-api-key"
)

// integrationTestContext holds all dependencies and state for integration testing.
type integrationTestContext struct {
	container  *app.Container
	db         *sql.DB
	server     *httptest.Server
	wallet     *httptest.Server
	adminToken string
	dbDriver   string
}

// makeRequest performs an HTTP request and returns the response and body.
func (ctx *integrationTestContext) makeRequest(
	t *testing.T,
	method, path string,
	body interface{},
	useAuth bool,
) (*http.Response, []byte) {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		require.NoError(t, err, "failed to marshal request body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ctx.server.URL+path, bodyReader)
	require.NoError(t, err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if useAuth {
		req.Header.Set("Authorization", "Bearer "+ctx.adminToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	//nolint:gosec // controlled test environment with localhost URLs
	resp, err := client.Do(req)
	require.NoError(t, err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logf("Warning: failed to close response body: %v", closeErr)
	}

	return resp, respBody
}

// newFakeWallet serves the account query used to verify wallet credentials.
func newFakeWallet(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"me":{"defaultAccount":{"wallets":[` +
			`{"id":"btc-wallet","walletCurrency":"BTC","balance":500000},` +
			`{"id":"usd-wallet","walletCurrency":"USD","balance":10000}]}}}}`))
	}))
}

// setupIntegrationTest initializes all components for integration testing.
func setupIntegrationTest(t *testing.T, dbDriver string) *integrationTestContext {
	t.Helper()

	// Set Gin to test mode
	gin.SetMode(gin.TestMode)

	// Setup database
	var db *sql.DB
	var dsn string
	if dbDriver == "postgres" {
		testutil.SkipIfNoPostgres(t)
		db = testutil.SetupPostgresDB(t)
		dsn = testutil.GetPostgresTestDSN()
	} else {
		testutil.SkipIfNoMySQL(t)
		db = testutil.SetupMySQLDB(t)
		dsn = testutil.GetMySQLTestDSN()
	}

	walletServer := newFakeWallet(t)

	tokenService := authService.NewAdminTokenService()
	adminToken, adminTokenHash, err := tokenService.GenerateToken()
	require.NoError(t, err, "failed to generate admin token")

	// Create configuration
	cfg := &config.Config{
		DBDriver:               dbDriver,
		DBConnectionString:     dsn,
		DBMaxOpenConnections:   10,
		DBMaxIdleConnections:   5,
		DBConnMaxLifetime:      time.Hour,
		ServerHost:             "localhost",
		ServerPort:             8080,
		PublicBaseURL:          "https://gateway.example.com",
		LogLevel:               "error",
		WalletAPIURLProduction: walletServer.URL,
		WalletAPIURLStaging:    walletServer.URL,
		WalletTimeout:          5 * time.Second,
		KMSKeyURI:              testKMSKeyURI,
		ServerSecret:           "integration-server-secret",
		AdminTokenHash:         adminTokenHash,
		ResetTokenExpiration:   5 * time.Minute,
		TopUpInvoiceExpiry:     time.Hour,
		TopUpMaxSats:           1_000_000,
	}

	// Create DI container
	container := app.NewContainer(cfg)

	// Setup HTTP server
	httpSrv, err := container.HTTPServer(context.Background())
	require.NoError(t, err, "failed to get HTTP server")

	handler := httpSrv.GetHandler()
	require.NotNil(t, handler, "handler should not be nil after SetupRouter")

	testServer := httptest.NewServer(handler)

	t.Logf("Integration test setup complete for %s", dbDriver)

	return &integrationTestContext{
		container:  container,
		db:         db,
		server:     testServer,
		wallet:     walletServer,
		adminToken: adminToken,
		dbDriver:   dbDriver,
	}
}

// teardownIntegrationTest cleans up all resources.
func teardownIntegrationTest(t *testing.T, ctx *integrationTestContext) {
	t.Helper()

	if ctx.server != nil {
		ctx.server.Close()
	}

	if ctx.wallet != nil {
		ctx.wallet.Close()
	}

	if ctx.container != nil {
		err := ctx.container.Shutdown(context.Background())
		if err != nil {
			t.Logf("Warning: container shutdown error: %v", err)
		}
	}

	if ctx.db != nil {
		testutil.TeardownDB(t, ctx.db)
	}

	t.Logf("Integration test teardown complete for %s", ctx.dbDriver)
}

var testCases = []struct {
	name     string
	dbDriver string
}{
	{"PostgreSQL", "postgres"},
	{"MySQL", "mysql"},
}

// TestIntegration_Health_BasicChecks validates infrastructure health and readiness endpoints.
func TestIntegration_Health_BasicChecks(t *testing.T) {
	// Skip if short mode (integration tests can be slow)
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.dbDriver)
			defer teardownIntegrationTest(t, ctx)

			t.Run("01_HealthCheck", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/health", nil, false)
				assert.Equal(t, http.StatusOK, resp.StatusCode)

				var response map[string]any
				require.NoError(t, json.Unmarshal(body, &response))
				assert.Equal(t, "healthy", response["status"])
			})

			t.Run("02_ReadinessCheck", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/ready", nil, false)
				assert.Equal(t, http.StatusOK, resp.StatusCode)

				var response map[string]any
				require.NoError(t, json.Unmarshal(body, &response))
				assert.Equal(t, "ready", response["status"])
			})
		})
	}
}

// TestIntegration_Card_TapFlow creates and programs a card, credits it and walks through
// verified taps, counter replay and the balance view.
func TestIntegration_Card_TapFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.dbDriver)
			defer teardownIntegrationTest(t, ctx)

			var card struct {
				ID     string `json:"id"`
				IDHash string `json:"card_id_hash"`
				Status string `json:"status"`
			}
			var program struct {
				LNURLWBase string `json:"lnurlw_base"`
				K1         string `json:"k1"`
				K2         string `json:"k2"`
			}

			t.Run("01_AdminRequiresToken", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodGet, "/api/cards", nil, false)
				assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			})

			t.Run("02_CreateCard", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/api/cards", map[string]any{
					"name":            "Integration Card",
					"uid":             testCardUID,
					"api_key":         testAPIKey,
					"wallet_currency": "BTC",
				}, true)
				require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
				require.NoError(t, json.Unmarshal(body, &card))
				assert.Equal(t, "PENDING", card.Status)
				assert.Len(t, card.IDHash, 64)
			})

			t.Run("03_CreateCardInvalidCredentials", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/api/cards", map[string]any{
					"name":            "Bad Card",
					"api_key":         "wrong-key",
					"wallet_currency": "BTC",
				}, true)
				assert.NotEqual(t, http.StatusCreated, resp.StatusCode, string(body))
			})

			t.Run("04_Program", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/api/cards/"+card.ID+"/program", nil, true)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
				require.NoError(t, json.Unmarshal(body, &program))
				assert.True(t, strings.HasPrefix(program.LNURLWBase, "lnurlw://gateway.example.com/api/boltcard/"))
				assert.Len(t, program.K1, 32)
				assert.Len(t, program.K2, 32)
			})

			t.Run("05_AdjustBalance", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/api/cards/"+card.ID+"/adjust", map[string]any{
					"amount":      2000,
					"description": "initial credit",
				}, true)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				cardID, err := uuid.Parse(card.ID)
				require.NoError(t, err)
				assert.Equal(t, int64(2000), testutil.CardBalance(t, ctx.db, ctx.dbDriver, cardID))
			})

			tapPath := func(counter uint32) string {
				k1, err := hex.DecodeString(program.K1)
				require.NoError(t, err)
				k2, err := hex.DecodeString(program.K2)
				require.NoError(t, err)
				uid, err := hex.DecodeString(testCardUID)
				require.NoError(t, err)

				p, c, err := service.EncodeTap(k1, k2, uid, counter)
				require.NoError(t, err)
				return url.Values{"p": {p}, "c": {c}}.Encode()
			}

			t.Run("06_TapActivatesCard", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/api/boltcard/"+card.IDHash+"?"+tapPath(1), nil, false)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var withdraw map[string]any
				require.NoError(t, json.Unmarshal(body, &withdraw))
				assert.Equal(t, "withdrawRequest", withdraw["tag"], string(body))
				assert.Equal(t, card.IDHash, withdraw["k1"])
				assert.Equal(t, float64(2000*1000), withdraw["maxWithdrawable"])

				resp, body = ctx.makeRequest(t, http.MethodGet, "/api/cards/"+card.ID, nil, true)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				var got map[string]any
				require.NoError(t, json.Unmarshal(body, &got))
				assert.Equal(t, "ACTIVE", got["status"])
				assert.Equal(t, float64(1), got["last_counter"])
			})

			t.Run("07_TapReplayRejected", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/api/boltcard/"+card.IDHash+"?"+tapPath(1), nil, false)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var lnurlErr map[string]any
				require.NoError(t, json.Unmarshal(body, &lnurlErr))
				assert.Equal(t, "ERROR", lnurlErr["status"])
			})

			t.Run("08_MalformedTap", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodGet, "/api/boltcard/"+card.IDHash+"?p=zz&c=zz", nil, false)
				assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			})

			t.Run("09_Balance", func(t *testing.T) {
				path := "/api/boltcard/" + card.IDHash + "/balance?" + tapPath(2)
				resp, body := ctx.makeRequest(t, http.MethodGet, path, nil, false)
				require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

				var balance map[string]any
				require.NoError(t, json.Unmarshal(body, &balance))
				assert.Equal(t, float64(2000), balance["balance"])
				assert.Equal(t, "BTC", balance["currency"])
				transactions, ok := balance["transactions"].([]any)
				require.True(t, ok)
				assert.Len(t, transactions, 1)
			})

			t.Run("10_DisableAndWipe", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/api/cards/"+card.ID+"/disable", nil, true)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				var disabled map[string]any
				require.NoError(t, json.Unmarshal(body, &disabled))
				assert.Equal(t, "DISABLED", disabled["status"])

				resp, _ = ctx.makeRequest(t, http.MethodDelete, "/api/cards/"+card.ID, nil, true)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				resp, body = ctx.makeRequest(t, http.MethodGet, "/api/boltcard/"+card.IDHash+"?"+tapPath(3), nil, false)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				var lnurlErr map[string]any
				require.NoError(t, json.Unmarshal(body, &lnurlErr))
				assert.Equal(t, "ERROR", lnurlErr["status"])
			})
		})
	}
}

// TestIntegration_Voucher_Lifecycle creates a voucher, polls it, fetches its withdraw
// request and cancels it.
func TestIntegration_Voucher_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := setupIntegrationTest(t, tc.dbDriver)
			defer teardownIntegrationTest(t, ctx)

			var voucher struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				LNURL  string `json:"lnurl"`
			}

			t.Run("01_Create", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodPost, "/api/vouchers", map[string]any{
					"amount_sats":     1000,
					"wallet_currency": "BTC",
					"api_key":         testAPIKey,
					"expiry":          "24h",
				}, true)
				require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
				require.NoError(t, json.Unmarshal(body, &voucher))
				assert.Equal(t, "ACTIVE", voucher.Status)
				assert.True(t, strings.HasPrefix(voucher.LNURL, "LNURL"))
			})

			t.Run("02_Status", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/api/vouchers/"+voucher.ID+"/status", nil, false)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var status map[string]any
				require.NoError(t, json.Unmarshal(body, &status))
				assert.Equal(t, true, status["found"])
				assert.Equal(t, false, status["claimed"])
				assert.Equal(t, float64(1000), status["amount"])
			})

			t.Run("03_UnknownStatus", func(t *testing.T) {
				path := "/api/vouchers/" + uuid.Must(uuid.NewV7()).String() + "/status"
				resp, body := ctx.makeRequest(t, http.MethodGet, path, nil, false)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var status map[string]any
				require.NoError(t, json.Unmarshal(body, &status))
				assert.Equal(t, false, status["found"])
			})

			t.Run("04_WithdrawRequest", func(t *testing.T) {
				resp, body := ctx.makeRequest(t, http.MethodGet, "/api/vouchers/"+voucher.ID+"/lnurlw", nil, false)
				require.Equal(t, http.StatusOK, resp.StatusCode)

				var withdraw map[string]any
				require.NoError(t, json.Unmarshal(body, &withdraw))
				assert.Equal(t, "withdrawRequest", withdraw["tag"], string(body))
				assert.Equal(t, float64(1000*1000), withdraw["maxWithdrawable"])
				assert.Equal(t, withdraw["minWithdrawable"], withdraw["maxWithdrawable"])
			})

			t.Run("05_Cancel", func(t *testing.T) {
				resp, _ := ctx.makeRequest(t, http.MethodDelete, "/api/vouchers/"+voucher.ID, nil, true)
				require.Equal(t, http.StatusNoContent, resp.StatusCode)

				resp, body := ctx.makeRequest(t, http.MethodGet, "/api/vouchers/"+voucher.ID+"/lnurlw", nil, false)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				var lnurlErr map[string]any
				require.NoError(t, json.Unmarshal(body, &lnurlErr))
				assert.Equal(t, "ERROR", lnurlErr["status"])
				assert.Equal(t, "voucher cancelled", lnurlErr["reason"])
			})
		})
	}
}

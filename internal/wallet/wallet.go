// Package wallet is a client for the custodial Lightning wallet GraphQL API
// (Blink/Galoy-compatible) the gateway pays from and receives into.
package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/allisson/boltgate/internal/config"
	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/money"
)

// PaymentStatus is the result status of an outgoing Lightning payment.
type PaymentStatus string

// Payment statuses reported by lnInvoicePaymentSend.
const (
	PaymentSuccess     PaymentStatus = "SUCCESS"
	PaymentPending     PaymentStatus = "PENDING"
	PaymentAlreadyPaid PaymentStatus = "ALREADY_PAID"
	PaymentFailure     PaymentStatus = "FAILURE"
)

// InvoiceStatus is the settlement status of an incoming invoice.
type InvoiceStatus string

// Invoice statuses reported by lnInvoicePaymentStatus.
const (
	InvoicePaid    InvoiceStatus = "PAID"
	InvoicePending InvoiceStatus = "PENDING"
	InvoiceExpired InvoiceStatus = "EXPIRED"
)

// Credentials identify the wallet account a call acts on.
type Credentials struct {
	APIKey      string //nolint:gosec // plaintext only in memory
	Environment string
}

// Wallet is one currency wallet of an account.
type Wallet struct {
	ID       string `json:"id"`
	Currency string `json:"walletCurrency"`
	Balance  int64  `json:"balance"`
}

// Invoice is an incoming invoice created on a wallet.
type Invoice struct {
	PaymentRequest string `json:"paymentRequest"`
	PaymentHash    string `json:"paymentHash"`
	Satoshis       int64  `json:"satoshis"`
}

// Config holds the wallet client settings.
type Config struct {
	ProductionURL string
	StagingURL    string
	Timeout       time.Duration
}

// Client talks to the wallet GraphQL endpoint of each environment.
type Client struct {
	cfg        Config
	httpClient *http.Client
	rates      singleflight.Group
}

// NewClient creates a wallet client. A nil httpClient uses a default client.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) endpoint(environment string) string {
	if environment == config.EnvironmentStaging {
		return c.cfg.StagingURL
	}
	return c.cfg.ProductionURL
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// statusError is returned by do for non-2xx HTTP responses.
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("wallet api returned status %d: %s", e.StatusCode, e.Body)
}

// do executes a GraphQL operation and decodes its data into out.
func (c *Client) do(ctx context.Context, environment, apiKey string, req graphQLRequest, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(environment), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build graphql request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("X-API-KEY", apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read graphql response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}

// classify maps a transport or protocol error of a non-payment call to a wallet error.
func classify(err error) error {
	var se *statusError
	if errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden) {
		return apperrors.Wrap(ErrInvalidCredentials, err.Error())
	}
	return apperrors.Wrap(ErrRequestFailed, err.Error())
}

const meQuery = `query me { me { defaultAccount { wallets { id walletCurrency balance } } } }`

// GetWallets lists the wallets of the account behind the credentials.
// It doubles as a credential check.
func (c *Client) GetWallets(ctx context.Context, creds Credentials) ([]Wallet, error) {
	var data struct {
		Me *struct {
			DefaultAccount struct {
				Wallets []Wallet `json:"wallets"`
			} `json:"defaultAccount"`
		} `json:"me"`
	}
	if err := c.do(ctx, creds.Environment, creds.APIKey, graphQLRequest{Query: meQuery}, &data); err != nil {
		return nil, classify(err)
	}
	if data.Me == nil {
		return nil, ErrInvalidCredentials
	}
	return data.Me.DefaultAccount.Wallets, nil
}

// FindWallet returns the wallet with the given id, or the first wallet of the given
// currency when id is empty.
func FindWallet(wallets []Wallet, id, currency string) (Wallet, error) {
	for _, w := range wallets {
		if id != "" && w.ID == id {
			return w, nil
		}
		if id == "" && w.Currency == currency {
			return w, nil
		}
	}
	return Wallet{}, ErrWalletNotFound
}

const lnInvoiceCreateMutation = `mutation lnInvoiceCreate($input: LnInvoiceCreateInput!) {
  lnInvoiceCreate(input: $input) { invoice { paymentRequest paymentHash satoshis } errors { message } }
}`

// CreateLnInvoice creates an incoming invoice on a BTC wallet.
func (c *Client) CreateLnInvoice(
	ctx context.Context,
	creds Credentials,
	walletID string,
	sats int64,
	memo string,
	expiresIn time.Duration,
) (*Invoice, error) {
	input := map[string]any{"walletId": walletID, "amount": sats, "memo": memo}
	if minutes := int64(expiresIn / time.Minute); minutes > 0 {
		input["expiresIn"] = minutes
	}

	var data struct {
		LnInvoiceCreate struct {
			Invoice *Invoice       `json:"invoice"`
			Errors  []graphQLError `json:"errors"`
		} `json:"lnInvoiceCreate"`
	}
	req := graphQLRequest{Query: lnInvoiceCreateMutation, Variables: map[string]any{"input": input}}
	if err := c.do(ctx, creds.Environment, creds.APIKey, req, &data); err != nil {
		return nil, classify(err)
	}
	if len(data.LnInvoiceCreate.Errors) > 0 {
		return nil, apperrors.Wrap(ErrRequestFailed, data.LnInvoiceCreate.Errors[0].Message)
	}
	if data.LnInvoiceCreate.Invoice == nil {
		return nil, apperrors.Wrap(ErrRequestFailed, "wallet returned no invoice")
	}
	return data.LnInvoiceCreate.Invoice, nil
}

const lnInvoicePaymentSendMutation = `mutation lnInvoicePaymentSend($input: LnInvoicePaymentInput!) {
  lnInvoicePaymentSend(input: $input) { status errors { message code } }
}`

// PayLnInvoice pays a BOLT11 invoice from a wallet.
//
// A nil error means SUCCESS or PENDING. Definite failures wrap ErrPaymentFailed;
// timeouts, transport errors and server errors return ErrPaymentUnknown.
func (c *Client) PayLnInvoice(
	ctx context.Context,
	creds Credentials,
	walletID, paymentRequest, memo string,
) (PaymentStatus, error) {
	var data struct {
		LnInvoicePaymentSend struct {
			Status PaymentStatus  `json:"status"`
			Errors []graphQLError `json:"errors"`
		} `json:"lnInvoicePaymentSend"`
	}
	input := map[string]any{"walletId": walletID, "paymentRequest": paymentRequest, "memo": memo}
	req := graphQLRequest{Query: lnInvoicePaymentSendMutation, Variables: map[string]any{"input": input}}

	if err := c.do(ctx, creds.Environment, creds.APIKey, req, &data); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			return PaymentFailure, apperrors.Wrap(ErrPaymentFailed, err.Error())
		}
		return "", apperrors.Wrap(ErrPaymentUnknown, err.Error())
	}

	result := data.LnInvoicePaymentSend
	switch result.Status {
	case PaymentSuccess, PaymentPending:
		return result.Status, nil
	case PaymentAlreadyPaid:
		return result.Status, ErrPaymentAlreadyPaid
	case PaymentFailure:
		return result.Status, paymentFailure(result.Errors)
	default:
		if len(result.Errors) > 0 {
			return PaymentFailure, paymentFailure(result.Errors)
		}
		return result.Status, apperrors.Wrap(ErrPaymentUnknown, fmt.Sprintf("unexpected status %q", result.Status))
	}
}

// paymentFailure picks the most specific definite-failure error for the reported messages.
func paymentFailure(errs []graphQLError) error {
	for _, e := range errs {
		msg := strings.ToLower(e.Message + " " + e.Code)
		switch {
		case strings.Contains(msg, "insufficient"):
			return apperrors.Wrap(ErrPaymentInsufficientBalance, e.Message)
		case strings.Contains(msg, "expired"):
			return apperrors.Wrap(ErrPaymentInvoiceExpired, e.Message)
		case strings.Contains(msg, "already paid"):
			return apperrors.Wrap(ErrPaymentAlreadyPaid, e.Message)
		}
	}
	if len(errs) > 0 {
		return apperrors.Wrap(ErrPaymentFailed, errs[0].Message)
	}
	return ErrPaymentFailed
}

const lnInvoicePaymentStatusQuery = `query lnInvoicePaymentStatus($input: LnInvoicePaymentStatusInput!) {
  lnInvoicePaymentStatus(input: $input) { status errors { message } }
}`

// GetInvoiceStatus reports whether an incoming invoice was paid.
func (c *Client) GetInvoiceStatus(ctx context.Context, creds Credentials, paymentRequest string) (InvoiceStatus, error) {
	var data struct {
		LnInvoicePaymentStatus struct {
			Status InvoiceStatus  `json:"status"`
			Errors []graphQLError `json:"errors"`
		} `json:"lnInvoicePaymentStatus"`
	}
	req := graphQLRequest{
		Query:     lnInvoicePaymentStatusQuery,
		Variables: map[string]any{"input": map[string]any{"paymentRequest": paymentRequest}},
	}
	if err := c.do(ctx, creds.Environment, creds.APIKey, req, &data); err != nil {
		return "", classify(err)
	}
	if len(data.LnInvoicePaymentStatus.Errors) > 0 {
		return "", apperrors.Wrap(ErrRequestFailed, data.LnInvoicePaymentStatus.Errors[0].Message)
	}
	return data.LnInvoicePaymentStatus.Status, nil
}

const realtimePriceQuery = `query realtimePrice($currency: DisplayCurrency) {
  realtimePrice(currency: $currency) { btcSatPrice { base offset } }
}`

// GetExchangeRate fetches the current USD price of one satoshi. Concurrent callers for
// the same environment share one upstream request; results are never cached. The shared
// request is detached from any single caller and bounded by the client timeout.
func (c *Client) GetExchangeRate(ctx context.Context, environment string) (money.Rate, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.rates.DoChan(environment, func() (any, error) {
		var data struct {
			RealtimePrice *struct {
				BtcSatPrice struct {
					Base   int64 `json:"base"`
					Offset int32 `json:"offset"`
				} `json:"btcSatPrice"`
			} `json:"realtimePrice"`
		}
		req := graphQLRequest{Query: realtimePriceQuery, Variables: map[string]any{"currency": money.CurrencyUSD}}
		if err := c.do(shared, environment, "", req, &data); err != nil {
			return nil, err
		}
		if data.RealtimePrice == nil {
			return nil, errors.New("empty realtimePrice")
		}
		return money.NewRate(data.RealtimePrice.BtcSatPrice.Base, data.RealtimePrice.BtcSatPrice.Offset)
	})

	select {
	case <-ctx.Done():
		return money.Rate{}, apperrors.Wrap(ErrRateUnavailable, ctx.Err().Error())
	case res := <-ch:
		if res.Err != nil {
			return money.Rate{}, apperrors.Wrap(ErrRateUnavailable, res.Err.Error())
		}
		return res.Val.(money.Rate), nil
	}
}

package wallet

import (
	apperrors "github.com/allisson/boltgate/internal/errors"
)

// Wallet errors. Payment errors are split so callers can tell a definite failure,
// which is safe to roll back, from an unknown outcome, which is not.
var (
	// ErrInvalidCredentials indicates the wallet rejected the API key.
	ErrInvalidCredentials = apperrors.Wrap(apperrors.ErrUnauthorized, "invalid wallet credentials")

	// ErrWalletNotFound indicates the account has no wallet with the requested id or currency.
	ErrWalletNotFound = apperrors.Wrap(apperrors.ErrNotFound, "wallet not found")

	// ErrRequestFailed indicates a non-payment wallet call failed.
	ErrRequestFailed = apperrors.Wrap(apperrors.ErrUpstream, "wallet request failed")

	// ErrRateUnavailable indicates the exchange rate could not be fetched.
	ErrRateUnavailable = apperrors.Wrap(apperrors.ErrUpstream, "exchange rate unavailable")

	// ErrPaymentFailed indicates the wallet definitely did not send the payment.
	ErrPaymentFailed = apperrors.Wrap(apperrors.ErrUpstream, "payment failed")

	// ErrPaymentInsufficientBalance is a definite failure caused by the paying wallet balance.
	ErrPaymentInsufficientBalance = apperrors.Wrap(ErrPaymentFailed, "insufficient wallet balance")

	// ErrPaymentInvoiceExpired is a definite failure caused by an expired invoice.
	ErrPaymentInvoiceExpired = apperrors.Wrap(ErrPaymentFailed, "invoice expired")

	// ErrPaymentAlreadyPaid is a definite failure: the invoice was settled before.
	ErrPaymentAlreadyPaid = apperrors.Wrap(ErrPaymentFailed, "invoice already paid")

	// ErrPaymentUnknown indicates the payment outcome could not be determined (timeout,
	// transport error, server error). The payment may or may not have been sent.
	ErrPaymentUnknown = apperrors.Wrap(apperrors.ErrUpstream, "payment status unknown")
)

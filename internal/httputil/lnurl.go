package httputil

import (
	"errors"

	"github.com/allisson/boltgate/internal/lnurl"
	"github.com/allisson/boltgate/internal/wallet"
)

// PaymentReason returns the wallet-facing reason for invoice and wallet errors shared by
// every LNURL-withdraw flow. ok is false when err is none of them.
func PaymentReason(err error) (reason string, ok bool) {
	switch {
	case errors.Is(err, lnurl.ErrInvoiceEmpty),
		errors.Is(err, lnurl.ErrInvoiceNoAmount),
		errors.Is(err, lnurl.ErrInvoiceExpired),
		errors.Is(err, lnurl.ErrInvoiceWrongChain),
		errors.Is(err, lnurl.ErrInvoiceDecode):
		return invoiceReason(err), true
	case errors.Is(err, wallet.ErrPaymentInsufficientBalance):
		return "payment failed: insufficient wallet balance", true
	case errors.Is(err, wallet.ErrPaymentInvoiceExpired):
		return "payment failed: invoice expired", true
	case errors.Is(err, wallet.ErrPaymentAlreadyPaid):
		return "invoice already paid", true
	case errors.Is(err, wallet.ErrPaymentFailed):
		return "payment failed", true
	case errors.Is(err, wallet.ErrPaymentUnknown):
		return "payment status unknown", true
	case errors.Is(err, wallet.ErrRateUnavailable):
		return "exchange rate unavailable, please try again", true
	case errors.Is(err, wallet.ErrInvalidCredentials), errors.Is(err, wallet.ErrRequestFailed):
		return "wallet unavailable, please try again", true
	}
	return "", false
}

// invoiceReason hides decoder internals behind the sentinel message.
func invoiceReason(err error) string {
	for _, sentinel := range []error{
		lnurl.ErrInvoiceEmpty,
		lnurl.ErrInvoiceNoAmount,
		lnurl.ErrInvoiceExpired,
		lnurl.ErrInvoiceWrongChain,
		lnurl.ErrInvoiceDecode,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return lnurl.ErrInvoiceDecode.Error()
}

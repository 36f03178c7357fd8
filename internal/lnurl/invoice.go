package lnurl

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"

	"github.com/allisson/boltgate/internal/money"
)

// Invoice decoding errors.
var (
	ErrInvoiceDecode     = errors.New("invalid lightning invoice")
	ErrInvoiceNoAmount   = errors.New("invoice must specify an amount")
	ErrInvoiceExpired    = errors.New("invoice expired")
	ErrInvoiceEmpty      = errors.New("missing lightning invoice")
	ErrInvoiceWrongChain = errors.New("invoice is for an unsupported network")
)

// Invoice holds the fields of a BOLT11 payment request the gateway relies on.
type Invoice struct {
	PaymentRequest string
	PaymentHash    string
	AmountMsat     int64
	AmountSats     int64
	Description    string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the invoice expiry has passed at the given time.
func (i *Invoice) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}

// networkFor picks chain parameters from the invoice human-readable prefix.
// Longer prefixes are checked first since "lnbcrt" starts with "lnbc".
func networkFor(invoice string) (*chaincfg.Params, error) {
	switch {
	case strings.HasPrefix(invoice, "lnbcrt"):
		return &chaincfg.RegressionNetParams, nil
	case strings.HasPrefix(invoice, "lntbs"):
		return &chaincfg.SigNetParams, nil
	case strings.HasPrefix(invoice, "lntb"):
		return &chaincfg.TestNet3Params, nil
	case strings.HasPrefix(invoice, "lnbc"):
		return &chaincfg.MainNetParams, nil
	default:
		return nil, ErrInvoiceWrongChain
	}
}

// DecodeInvoice parses a BOLT11 payment request and rejects amountless or expired invoices.
// Millisatoshi amounts are rounded up to whole satoshis.
func DecodeInvoice(paymentRequest string, now time.Time) (*Invoice, error) {
	pr := strings.ToLower(strings.TrimSpace(paymentRequest))
	pr = strings.TrimPrefix(pr, "lightning:")
	if pr == "" {
		return nil, ErrInvoiceEmpty
	}

	net, err := networkFor(pr)
	if err != nil {
		return nil, err
	}

	decoded, err := zpay32.Decode(pr, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvoiceDecode, err)
	}
	if decoded.MilliSat == nil || *decoded.MilliSat == 0 {
		return nil, ErrInvoiceNoAmount
	}

	msat := int64(*decoded.MilliSat)
	invoice := &Invoice{
		PaymentRequest: pr,
		AmountMsat:     msat,
		AmountSats:     money.MsatToSatsCeil(msat),
		CreatedAt:      decoded.Timestamp,
		ExpiresAt:      decoded.Timestamp.Add(decoded.Expiry()),
	}
	if decoded.PaymentHash != nil {
		invoice.PaymentHash = hex.EncodeToString(decoded.PaymentHash[:])
	}
	if decoded.Description != nil {
		invoice.Description = *decoded.Description
	}

	if invoice.Expired(now) {
		return nil, ErrInvoiceExpired
	}
	return invoice, nil
}

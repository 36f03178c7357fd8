// Package lnurl implements the wire formats of LUD-01 (bech32 LNURL), LUD-03
// (withdrawRequest) and LUD-06 (payRequest), plus BOLT11 invoice decoding.
package lnurl

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Response tags and status values.
const (
	TagWithdrawRequest = "withdrawRequest"
	TagPayRequest      = "payRequest"

	StatusOK    = "OK"
	StatusError = "ERROR"
)

const hrp = "lnurl"

// StatusResponse is the generic LNURL result body.
type StatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Error builds an LNURL error body. LNURL services answer HTTP 200 with this body.
func Error(reason string) StatusResponse {
	return StatusResponse{Status: StatusError, Reason: reason}
}

// OK builds an LNURL success body.
func OK() StatusResponse {
	return StatusResponse{Status: StatusOK}
}

// WithdrawRequest is the LUD-03 first-step response. Amounts are in millisatoshis.
type WithdrawRequest struct {
	Tag                string `json:"tag"`
	Callback           string `json:"callback"`
	K1                 string `json:"k1"`
	MinWithdrawable    int64  `json:"minWithdrawable"`
	MaxWithdrawable    int64  `json:"maxWithdrawable"`
	DefaultDescription string `json:"defaultDescription"`
}

// NewWithdrawRequest fills the tag of a withdrawRequest.
func NewWithdrawRequest(callback, k1 string, minMsat, maxMsat int64, description string) WithdrawRequest {
	return WithdrawRequest{
		Tag:                TagWithdrawRequest,
		Callback:           callback,
		K1:                 k1,
		MinWithdrawable:    minMsat,
		MaxWithdrawable:    maxMsat,
		DefaultDescription: description,
	}
}

// PayRequest is the LUD-06 first-step response. Amounts are in millisatoshis.
type PayRequest struct {
	Tag            string `json:"tag"`
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed int    `json:"commentAllowed"`
}

// NewPayRequest fills the tag and metadata of a payRequest.
func NewPayRequest(callback string, minMsat, maxMsat int64, description string, commentAllowed int) PayRequest {
	return PayRequest{
		Tag:            TagPayRequest,
		Callback:       callback,
		MinSendable:    minMsat,
		MaxSendable:    maxMsat,
		Metadata:       Metadata(description),
		CommentAllowed: commentAllowed,
	}
}

// InvoiceResponse is the LUD-06 callback response.
type InvoiceResponse struct {
	PR     string `json:"pr"`
	Routes []any  `json:"routes"`
}

// NewInvoiceResponse wraps a payment request with an empty route list.
func NewInvoiceResponse(paymentRequest string) InvoiceResponse {
	return InvoiceResponse{PR: paymentRequest, Routes: []any{}}
}

// Metadata renders the LUD-06 metadata string for a plain-text description.
func Metadata(description string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(description)
	return fmt.Sprintf(`[["text/plain","%s"]]`, escaped)
}

// Encode returns the uppercase bech32 LNURL for a URL.
func Encode(rawURL string) (string, error) {
	converted, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert lnurl bits: %w", err)
	}
	encoded, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", fmt.Errorf("failed to encode lnurl: %w", err)
	}
	return strings.ToUpper(encoded), nil
}

// Decode returns the URL embedded in a bech32 LNURL.
func Decode(lnurl string) (string, error) {
	prefix, data, err := bech32.DecodeNoLimit(strings.ToLower(lnurl))
	if err != nil {
		return "", fmt.Errorf("failed to decode lnurl: %w", err)
	}
	if prefix != hrp {
		return "", fmt.Errorf("unexpected lnurl prefix %q", prefix)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("failed to convert lnurl bits: %w", err)
	}
	return string(converted), nil
}

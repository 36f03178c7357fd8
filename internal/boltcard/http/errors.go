package http

import (
	"errors"

	"github.com/allisson/boltgate/internal/boltcard/domain"
	apperrors "github.com/allisson/boltgate/internal/errors"
	"github.com/allisson/boltgate/internal/httputil"
)

// lnurlReason maps a use case error to the reason shown by the wallet app. Unknown
// errors never leak their message.
func lnurlReason(err error) string {
	var formatErr *domain.FormatError
	if errors.As(err, &formatErr) {
		return formatErr.Error()
	}
	if reason, ok := httputil.PaymentReason(err); ok {
		return reason
	}

	for _, known := range []struct {
		err    error
		reason string
	}{
		{domain.ErrTapAuthentication, "card authentication failed"},
		{domain.ErrCounterReplay, "card counter replay detected, please tap again"},
		{domain.ErrTapAlreadyUsed, "tap already used, please tap the card again"},
		{domain.ErrCardNotFound, "card not found"},
		{domain.ErrCardWiped, "card has been wiped"},
		{domain.ErrCardDisabled, "card is disabled"},
		{domain.ErrCardNotActive, "card is not active"},
		{domain.ErrInsufficientBalance, "insufficient card balance"},
		{domain.ErrLimitExceeded, "spending limit exceeded"},
		{domain.ErrInvalidAmount, "invalid amount"},
	} {
		if errors.Is(err, known.err) {
			return known.reason
		}
	}

	if errors.Is(err, apperrors.ErrInvalidInput) {
		return "invalid request"
	}
	return "internal error"
}

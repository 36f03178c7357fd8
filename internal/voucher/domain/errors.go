package domain

import (
	"github.com/allisson/boltgate/internal/errors"
)

// Voucher errors.
var (
	// ErrVoucherNotFound indicates no voucher matches the charge id.
	ErrVoucherNotFound = errors.Wrap(errors.ErrNotFound, "voucher not found")

	// ErrVoucherAlreadyClaimed indicates another redemption won the claim.
	ErrVoucherAlreadyClaimed = errors.Wrap(errors.ErrConflict, "voucher already claimed")

	// ErrVoucherExpired indicates the voucher lifetime has passed.
	ErrVoucherExpired = errors.Wrap(errors.ErrConflict, "voucher expired")

	// ErrVoucherCancelled indicates the issuer cancelled the voucher.
	ErrVoucherCancelled = errors.Wrap(errors.ErrConflict, "voucher cancelled")

	// ErrInvalidAmount indicates a non-positive voucher amount or an invoice outside the
	// voucher value.
	ErrInvalidAmount = errors.Wrap(errors.ErrInvalidInput, "invalid voucher amount")

	// ErrInvalidExpiry indicates an unknown expiry preset.
	ErrInvalidExpiry = errors.Wrap(errors.ErrInvalidInput, "invalid voucher expiry")

	// ErrInvalidCommission indicates a commission outside 0..100 percent.
	ErrInvalidCommission = errors.Wrap(errors.ErrInvalidInput, "commission must be between 0 and 100")
)

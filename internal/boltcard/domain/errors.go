package domain

import (
	"github.com/allisson/boltgate/internal/errors"
)

// Boltcard errors grouped by the failure classes the LNURL and admin layers report.
var (
	// ErrInvalidPICCData indicates the p parameter is not 32 hex characters.
	ErrInvalidPICCData = errors.Wrap(errors.ErrInvalidInput, "invalid PICCData format")

	// ErrInvalidSunMAC indicates the c parameter is not 16 hex characters.
	ErrInvalidSunMAC = errors.Wrap(errors.ErrInvalidInput, "invalid SunMAC format")

	// ErrTapAuthentication is the single error returned for any failed tap verification.
	ErrTapAuthentication = errors.Wrap(errors.ErrUnauthorized, "card authentication failed")

	// ErrCounterReplay indicates the tap counter did not advance past the stored counter.
	ErrCounterReplay = errors.Wrap(errors.ErrConflict, "card counter replay detected")

	// ErrTapAlreadyUsed indicates a withdraw was already completed for this tap.
	ErrTapAlreadyUsed = errors.Wrap(errors.ErrConflict, "tap already used, please tap the card again")

	// ErrCardNotFound indicates no card matches the identifier.
	ErrCardNotFound = errors.Wrap(errors.ErrNotFound, "card not found")

	// ErrCardWiped indicates the card was wiped and can no longer be used.
	ErrCardWiped = errors.Wrap(errors.ErrForbidden, "card has been wiped")

	// ErrCardDisabled indicates the card is disabled.
	ErrCardDisabled = errors.Wrap(errors.ErrForbidden, "card is disabled")

	// ErrCardNotActive indicates the card has not been activated yet.
	ErrCardNotActive = errors.Wrap(errors.ErrForbidden, "card is not active")

	// ErrInvalidTransition indicates the requested status change is not allowed.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid card status transition")

	// ErrCardAlreadyWiped indicates a wipe was requested for a wiped card.
	ErrCardAlreadyWiped = errors.Wrap(errors.ErrConflict, "card already wiped")

	// ErrUIDMismatch indicates the proven UID does not match the stored UID.
	ErrUIDMismatch = errors.Wrap(errors.ErrForbidden, "card uid does not match")

	// ErrInsufficientBalance indicates the card balance cannot cover the amount.
	ErrInsufficientBalance = errors.Wrap(errors.ErrInvalidInput, "insufficient card balance")

	// ErrLimitExceeded indicates the amount exceeds the per-transaction or daily limit.
	ErrLimitExceeded = errors.Wrap(errors.ErrInvalidInput, "spending limit exceeded")

	// ErrNegativeBalance indicates an operation would leave the balance below zero.
	ErrNegativeBalance = errors.Wrap(errors.ErrInvalidInput, "balance cannot be negative")

	// ErrInvalidAmount indicates a non-positive or malformed amount.
	ErrInvalidAmount = errors.Wrap(errors.ErrInvalidInput, "invalid amount")

	// ErrTopUpNotFound indicates no pending top-up matches the payment hash.
	ErrTopUpNotFound = errors.Wrap(errors.ErrNotFound, "pending top-up not found")

	// ErrInvalidResetToken indicates the reset confirmation token is invalid or expired.
	ErrInvalidResetToken = errors.Wrap(errors.ErrUnauthorized, "invalid or expired reset token")
)

// FormatError describes a malformed tap parameter. It unwraps to ErrInvalidPICCData
// or ErrInvalidSunMAC and its message is safe to show to the wallet user.
type FormatError struct {
	Field  string
	Detail string
	Err    error
}

func (e *FormatError) Error() string {
	return "Invalid " + e.Field + " format: " + e.Detail
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/hex"
	"fmt"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/boltgate/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Hex validates that a string is hex encoded with exactly the given number of characters.
// Empty strings pass so Required can report them.
func Hex(chars int) validation.Rule {
	return validation.By(func(value any) error {
		s, ok := value.(string)
		if !ok {
			return validation.NewError("validation_hex_type", "must be a string")
		}
		if s == "" {
			return nil
		}
		if len(s) != chars {
			return validation.NewError(
				"validation_hex_length",
				fmt.Sprintf("must be %d hex characters", chars),
			)
		}
		if _, err := hex.DecodeString(s); err != nil {
			return validation.NewError("validation_hex", "must be valid hex")
		}
		return nil
	})
}

// Currency validates a wallet currency code.
var Currency = validation.In("BTC", "USD").Error("must be BTC or USD")

// Environment validates a wallet environment name.
var Environment = validation.In("production", "staging").Error("must be production or staging")

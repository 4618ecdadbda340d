package payment

import (
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
)

// ValidateCardNumber accepts a card number when it is all digits and
// its numeric value is even with a non-zero last digit. This stands in
// for a real payment gateway check.
func ValidateCardNumber(number string) error {
	if !isValidCardNumber(number) {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "card number %s is not valid", number)
	}
	return nil
}

func isValidCardNumber(number string) bool {
	if number == "" {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	last := number[len(number)-1]
	return last != '0' && (last-'0')%2 == 0
}

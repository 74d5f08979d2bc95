package usecase

import (
	"strings"

	"github.com/shopspring/decimal"

	domainErrors "github.com/wekeepgrowing/hospital-payment/internal/domain/errors"
)

// NormalizePhoneNumber converts the local and international forms of a
// Kenyan mobile number (07.., 01.., 7.., +2547.., 2547..) to 2547XXXXXXXX.
func NormalizePhoneNumber(phone string) (string, error) {
	digits := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	digits = strings.TrimPrefix(digits, "+")

	if digits == "" {
		return "", domainErrors.NewValidationError("phoneNumber", "is required")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", domainErrors.NewValidationError("phoneNumber", "must contain digits only")
		}
	}

	switch {
	case len(digits) == 10 && digits[0] == '0' && isMobilePrefix(digits[1]):
		digits = "254" + digits[1:]
	case len(digits) == 9 && isMobilePrefix(digits[0]):
		digits = "254" + digits
	case len(digits) == 12 && strings.HasPrefix(digits, "254") && isMobilePrefix(digits[3]):
	default:
		return "", domainErrors.NewValidationError("phoneNumber", "must be a Kenyan mobile number such as 0712345678")
	}

	return digits, nil
}

func isMobilePrefix(b byte) bool {
	return b == '7' || b == '1'
}

// validateAmount enforces a non-negative amount with at most two decimal places.
func validateAmount(amount decimal.Decimal, allowZero bool) error {
	if amount.IsNegative() {
		return domainErrors.NewValidationError("amount", "must not be negative")
	}
	if !allowZero && amount.IsZero() {
		return domainErrors.NewValidationError("amount", "must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return domainErrors.NewValidationError("amount", "must have at most two decimal places")
	}
	if amount.GreaterThan(maxAmount) {
		return domainErrors.NewValidationError("amount", "is too large")
	}
	return nil
}

// numeric(12,2)
var maxAmount = decimal.RequireFromString("9999999999.99")

package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// Fractional digits accepted on input for each unit.
const (
	BRLDecimals    int32 = 2
	PlaxDecimals   int32 = 6
	WeightDecimals int32 = 3
)

// Parse reads a plain decimal string ("12", "-3.5", "+0.25") with at most
// maxDecimals fractional digits. Exponents and thousands separators are rejected.
func Parse(input string, maxDecimals int32) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	unsigned := trimmed
	if unsigned[0] == '-' || unsigned[0] == '+' {
		unsigned = unsigned[1:]
	}
	parts := strings.SplitN(unsigned, ".", 2)
	wholePart := parts[0]
	if wholePart == "" && (len(parts) == 1 || parts[1] == "") {
		return decimal.Zero, ErrInvalidAmount
	}
	if !isDigits(wholePart) {
		return decimal.Zero, ErrInvalidAmount
	}
	if len(parts) == 2 {
		fracPart := parts[1]
		if !isDigits(fracPart) {
			return decimal.Zero, ErrInvalidAmount
		}
		if int32(len(fracPart)) > maxDecimals {
			return decimal.Zero, ErrTooManyDecimals
		}
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

// ParsePositive is Parse restricted to values strictly greater than zero.
func ParsePositive(input string, maxDecimals int32) (decimal.Decimal, error) {
	value, err := Parse(input, maxDecimals)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return value, nil
}

func FormatBRL(value decimal.Decimal) string {
	return value.StringFixedBank(BRLDecimals)
}

// FormatPlax keeps the full token precision so balances survive a round trip.
func FormatPlax(value decimal.Decimal) string {
	return value.StringFixedBank(PlaxDecimals)
}

func FormatWeight(value decimal.Decimal) string {
	return value.StringFixedBank(2)
}

func isDigits(value string) bool {
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

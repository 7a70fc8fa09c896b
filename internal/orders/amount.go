package orders

import (
	"github.com/shopspring/decimal"

	"OpenMCP-Stellar/internal/errors"
)

// Precision is the number of fractional digits the ledger keeps for amounts.
const Precision = 7

// ParsePositive parses a strictly positive decimal with at most Precision
// fractional digits.
func ParsePositive(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.New(errors.CodeInvalidArgument, field+" is not a decimal number",
			errors.WithMetadata(field, s))
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, errors.New(errors.CodeInvalidArgument, field+" must be positive",
			errors.WithMetadata(field, s))
	}
	if -d.Exponent() > Precision && !d.Equal(d.Truncate(Precision)) {
		return decimal.Decimal{}, errors.New(errors.CodeInvalidArgument, field+" has more than 7 decimal places",
			errors.WithMetadata(field, s))
	}
	return d, nil
}

// Format renders d with trailing zeros removed.
func Format(d decimal.Decimal) string {
	return d.Truncate(Precision).String()
}

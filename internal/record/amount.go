package record

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fractional digits carried through the
// ledger. Inputs with more precision are rounded half away from zero
// at parse time; all later arithmetic is exact.
const AmountScale = 4

// ParseAmount parses a monetary amount. Amounts must be non-negative
// decimal numbers; they are normalized to AmountScale digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errors.New("amount is empty")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount %s", d)
	}

	return d.Round(AmountScale), nil
}

// FormatAmount renders an amount with exactly AmountScale fractional
// digits, the precision the statement output promises.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

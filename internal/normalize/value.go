package normalize

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/castrometro/SGM-sub005/pkg/errors"
)

// Sentinel tokens that payroll analysts type into cells to mean "nothing
// here". All of them normalize to integer zero, case-insensitively.
var emptySentinels = map[string]struct{}{
	"":    {},
	"x":   {},
	"-":   {},
	"n/a": {},
	"na":  {},
}

// Value canonicalizes a raw cell value into the textual form of an integer
// currency amount. Sentinel tokens collapse to "0"; anything else is parsed
// as a decimal and rounded to the nearest integer, halves away from zero
// (0.5 rounds to 1, -0.5 to -1). Returns UnparseableValue for non-empty,
// non-sentinel, non-numeric content.
//
// Value is idempotent: normalizing an already-normalized integer string
// returns it unchanged.
func Value(raw string) (string, error) {
	if _, ok := emptySentinels[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return "0", nil
	}

	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.UnparseableValue(raw)
	}

	// decimal.Round rounds half away from zero, which is the convention the
	// source system uses for currency cells.
	return d.Round(0).String(), nil
}

// Amount converts a raw cell into an int64 currency unit by way of Value.
func Amount(raw string) (int64, error) {
	normalized, err := Value(raw)
	if err != nil {
		return 0, err
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return 0, errors.UnparseableValue(raw)
	}

	return d.IntPart(), nil
}

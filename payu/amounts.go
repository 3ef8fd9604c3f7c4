package payu

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// convertibleKeys are the only field names whose values are converted
// between decimal major units and PayU's minor-unit string format. All
// other fields pass through unchanged, with nested structures still
// traversed.
var convertibleKeys = map[string]struct{}{
	"amount":      {},
	"total":       {},
	"available":   {},
	"unitPrice":   {},
	"totalAmount": {},
}

// ToMinorUnits returns a copy of a JSON-like tree (map[string]any, []any,
// scalars) with every convertible value multiplied by 100 and rendered as
// an integer string. Nil values under convertible keys pass through
// unchanged. The input is never mutated.
func ToMinorUnits(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if _, ok := convertibleKeys[k]; ok && val != nil {
				out[k] = toMinorString(val)
			} else {
				out[k] = ToMinorUnits(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = ToMinorUnits(val)
		}
		return out
	default:
		return data
	}
}

// ToMajorUnits is the inverse of ToMinorUnits: convertible values are
// parsed and divided by 100, returned as decimals.
func ToMajorUnits(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if _, ok := convertibleKeys[k]; ok && val != nil {
				out[k] = toMajorDecimal(val)
			} else {
				out[k] = ToMajorUnits(val)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = ToMajorUnits(val)
		}
		return out
	default:
		return data
	}
}

// toMinorString renders an amount value as PayU's integer-cent string.
// Unparseable values are passed through so a malformed field surfaces in
// the gateway's own validation error instead of being silently dropped.
func toMinorString(v any) any {
	d, ok := toDecimal(v)
	if !ok {
		return v
	}
	return d.Shift(2).Truncate(0).String()
}

// toMajorDecimal parses a centified value back into a decimal amount.
func toMajorDecimal(v any) any {
	d, ok := toDecimal(v)
	if !ok {
		return v
	}
	return d.Shift(-2)
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case fmt.Stringer:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

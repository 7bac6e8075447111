package currency

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/kwachalink/corridor_compliance/pkg/errors"
)

// Normalize converts the heterogeneous amount shapes the upstream API emits
// into canonical Money. Accepted shapes, most specific first:
//
//   - a {amount, currency} object (amount may itself be a nested object)
//   - a bare scalar number or numeric string
//   - nil / absent, which normalizes to zero in the fallback currency
//
// An explicit currency is validated and never overridden; the fallback applies
// only when an amount is present and its currency is truly absent. Negative
// amounts are refused: adjustments enter through their own path, never through
// boundary ingestion. This runs once at the system boundary so internal logic
// never re-checks shape or sign.
func Normalize(raw any, fallback Code) (Money, error) {
	if !fallback.Supported() {
		return Money{}, errors.Validation("fallback currency %q is not supported", fallback)
	}
	m, err := normalize(raw, fallback)
	if err != nil {
		return Money{}, err
	}
	if m.Amount.IsNegative() {
		return Money{}, errors.Validation("amount %s must not be negative", m.Amount)
	}
	return m, nil
}

func normalize(raw any, fallback Code) (Money, error) {
	switch v := raw.(type) {
	case nil:
		return Zero(fallback), nil
	case Money:
		if !v.Currency.Supported() {
			return Money{}, errors.Validation("unsupported currency code %q", v.Currency)
		}
		return v, nil
	case map[string]any:
		return normalizeObject(v, fallback)
	default:
		amount, err := toDecimal(raw)
		if err != nil {
			return Money{}, err
		}
		return Money{Amount: amount, Currency: fallback}, nil
	}
}

func normalizeObject(obj map[string]any, fallback Code) (Money, error) {
	code := fallback
	if rawCode, ok := obj["currency"]; ok && rawCode != nil {
		s, ok := rawCode.(string)
		if !ok {
			return Money{}, errors.Validation("currency field has non-string type %T", rawCode)
		}
		parsed, err := Parse(s)
		if err != nil {
			return Money{}, err
		}
		code = parsed
	}

	rawAmount, ok := obj["amount"]
	if !ok || rawAmount == nil {
		return Zero(code), nil
	}

	// nested {amount:{amount,currency}}: the inner, more specific currency wins
	if nested, ok := rawAmount.(map[string]any); ok {
		return normalizeObject(nested, code)
	}

	amount, err := toDecimal(rawAmount)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: code}, nil
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, errors.Validation("amount %q is not numeric", v)
		}
		return d, nil
	default:
		return decimal.Decimal{}, errors.Validation("amount has unsupported type %T", raw)
	}
}

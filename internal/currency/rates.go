package currency

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwachalink/corridor_compliance/pkg/errors"
)

// ExchangeRate expresses 1 unit of Base in Quote units.
type ExchangeRate struct {
	Base  Code            `json:"base"`
	Quote Code            `json:"quote"`
	Rate  decimal.Decimal `json:"rate"`
	AsOf  time.Time       `json:"as_of"`
}

// RateTable resolves an exchange rate between two currencies. Implementations
// must fail with a RateNotFoundError kind when no rate exists; they never
// guess. asOf may be zero, meaning "latest available".
type RateTable interface {
	GetRate(base, quote Code, asOf time.Time) (ExchangeRate, error)
}

// Snapshot is an immutable in-memory rate table. Build a new one on every rate
// refresh so concurrent readers never observe a table mid-update.
type Snapshot struct {
	rates map[string]ExchangeRate
}

func pairKey(base, quote Code) string {
	return fmt.Sprintf("%s/%s", base, quote)
}

// NewSnapshot validates and indexes the given rates. Later entries for the
// same pair win. Rates must be strictly positive and both codes supported.
func NewSnapshot(rates []ExchangeRate) (*Snapshot, error) {
	indexed := make(map[string]ExchangeRate, len(rates))
	for _, r := range rates {
		if !r.Base.Supported() || !r.Quote.Supported() {
			return nil, errors.Validation("rate %s/%s references an unsupported currency", r.Base, r.Quote)
		}
		if !r.Rate.IsPositive() {
			return nil, errors.Validation("rate %s/%s must be positive, got %s", r.Base, r.Quote, r.Rate)
		}
		indexed[pairKey(r.Base, r.Quote)] = r
	}
	return &Snapshot{rates: indexed}, nil
}

// GetRate resolves the pair directly, or by inverting the stored opposite
// direction when only that is present.
func (s *Snapshot) GetRate(base, quote Code, asOf time.Time) (ExchangeRate, error) {
	if base == quote {
		return ExchangeRate{Base: base, Quote: quote, Rate: decimal.NewFromInt(1), AsOf: asOf}, nil
	}
	if r, ok := s.rates[pairKey(base, quote)]; ok {
		return r, nil
	}
	if r, ok := s.rates[pairKey(quote, base)]; ok {
		return ExchangeRate{
			Base:  base,
			Quote: quote,
			Rate:  decimal.NewFromInt(1).Div(r.Rate),
			AsOf:  r.AsOf,
		}, nil
	}
	return ExchangeRate{}, errors.RateNotFound("no rate between %s and %s", base, quote)
}

// Convert converts money into the target currency, rounding half-even to the
// target's minor unit. It fails closed when no rate path exists.
func Convert(m Money, to Code, rates RateTable, asOf time.Time) (Money, error) {
	if m.Currency == to {
		return m.Round(), nil
	}
	rate, err := rates.GetRate(m.Currency, to, asOf)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Mul(rate.Rate), Currency: to}.Round(), nil
}

// ConvertEstimated is the degraded-mode display fallback: when no rate exists
// it converts 1:1 and reports estimated=true so the host can label the value.
// Never use it in money-moving or reporting paths.
func ConvertEstimated(m Money, to Code, rates RateTable, asOf time.Time) (Money, bool) {
	converted, err := Convert(m, to, rates, asOf)
	if err != nil {
		return Money{Amount: m.Amount, Currency: to}.Round(), true
	}
	return converted, false
}

// Sum converts every amount into the target currency and adds them. Each item
// is rounded to the target minor unit before summation, so the result does not
// depend on input ordering.
func Sum(amounts []Money, target Code, rates RateTable, asOf time.Time) (Money, error) {
	total := Zero(target)
	for _, m := range amounts {
		converted, err := Convert(m, target, rates, asOf)
		if err != nil {
			return Money{}, err
		}
		total, err = total.Add(converted)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// Package reporting folds transactions, users, and fees into dashboard KPIs
// and drives the compliance report lifecycle.
//
// Aggregation is a pure function of its inputs: the period and as-of time are
// explicit, no clock is read, so any historical snapshot can be regenerated
// exactly.
package reporting

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwachalink/corridor_compliance/internal/currency"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// CountMetric is a count with its period-over-period trend.
type CountMetric struct {
	Current  int64           `json:"current"`
	Previous int64           `json:"previous"`
	TrendPct decimal.Decimal `json:"trend_pct"`
}

// VolumeMetric is a monetary total with its period-over-period trend.
type VolumeMetric struct {
	Current  currency.Money  `json:"current"`
	Previous currency.Money  `json:"previous"`
	TrendPct decimal.Decimal `json:"trend_pct"`
}

// ForexStatus is the dashboard's corridor rate line. Estimated means no rate
// was available and the value is a 1:1 placeholder the UI must label.
type ForexStatus struct {
	Base      currency.Code   `json:"base"`
	Quote     currency.Code   `json:"quote"`
	Rate      decimal.Decimal `json:"rate"`
	AsOf      time.Time       `json:"as_of"`
	Estimated bool            `json:"estimated"`
}

// Snapshot is the aggregated dashboard state for one period.
type Snapshot struct {
	Period            models.Period                     `json:"period"`
	AsOf              time.Time                         `json:"as_of"`
	ReportingCurrency currency.Code                     `json:"reporting_currency"`
	Transactions      CountMetric                       `json:"transactions"`
	UsersByType       map[string]CountMetric            `json:"users_by_type"`
	VolumeByCurrency  map[currency.Code]VolumeMetric    `json:"volume_by_currency"`
	TotalVolume       currency.Money                    `json:"total_volume"`
	FeeRevenue        currency.Money                    `json:"fee_revenue"`
	FeeRevenueTrend   decimal.Decimal                   `json:"fee_revenue_trend_pct"`
	FlaggedCount      int64                             `json:"flagged_count"`
	Forex             ForexStatus                       `json:"forex"`
}

// Input carries everything Aggregate consumes. Transactions and users may
// span any range; the aggregator filters to the period and its predecessor.
type Input struct {
	Transactions      []models.Transaction
	Users             []models.Customer
	Rates             currency.RateTable
	Period            models.Period
	AsOf              time.Time
	ReportingCurrency currency.Code
	ForexBase         currency.Code
	ForexQuote        currency.Code
}

var hundred = decimal.NewFromInt(100)

// Trend computes (current-previous)/previous*100 with the zero-previous edge
// cases pinned: both zero yields 0, growth from zero yields 100. Display code
// downstream must never see Inf or NaN here.
func Trend(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsZero() {
			return decimal.Zero
		}
		return hundred
	}
	return current.Sub(previous).Div(previous).Mul(hundred)
}

// TrendInt is Trend over integer counts.
func TrendInt(current, previous int64) decimal.Decimal {
	return Trend(decimal.NewFromInt(current), decimal.NewFromInt(previous))
}

// inPeriod uses half-open [start, end) so a transaction on the boundary
// belongs to exactly one of two adjacent periods.
func inPeriod(t time.Time, p models.Period) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// countable reports whether a transaction contributes to volume and fees.
// Failed transfers never moved money.
func countable(tx models.Transaction) bool {
	return tx.Status != models.TransactionStatusFailed
}

// Aggregate computes the dashboard snapshot for in.Period.
func Aggregate(in Input) (*Snapshot, error) {
	previous := in.Period.Previous()

	snap := &Snapshot{
		Period:            in.Period,
		AsOf:              in.AsOf,
		ReportingCurrency: in.ReportingCurrency,
		UsersByType:       make(map[string]CountMetric),
		VolumeByCurrency:  make(map[currency.Code]VolumeMetric),
	}

	// transaction count, per-currency volume, fees
	var curCount, prevCount, flagged int64
	curVolume := make(map[currency.Code]decimal.Decimal)
	prevVolume := make(map[currency.Code]decimal.Decimal)
	var curFees, prevFees []currency.Money

	for _, tx := range in.Transactions {
		switch {
		case inPeriod(tx.CreatedAt, in.Period):
			curCount++
			if tx.Flagged {
				flagged++
			}
			if countable(tx) {
				code := tx.Amount.Currency
				curVolume[code] = curVolume[code].Add(tx.Amount.Amount)
				curFees = append(curFees, tx.Fee)
			}
		case inPeriod(tx.CreatedAt, previous):
			prevCount++
			if countable(tx) {
				code := tx.Amount.Currency
				prevVolume[code] = prevVolume[code].Add(tx.Amount.Amount)
				prevFees = append(prevFees, tx.Fee)
			}
		}
	}

	snap.Transactions = CountMetric{
		Current:  curCount,
		Previous: prevCount,
		TrendPct: TrendInt(curCount, prevCount),
	}
	snap.FlaggedCount = flagged

	// per-currency volume with trend, in native currency
	codes := make([]currency.Code, 0, len(curVolume))
	for code := range curVolume {
		codes = append(codes, code)
	}
	for code := range prevVolume {
		if _, ok := curVolume[code]; !ok {
			codes = append(codes, code)
		}
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	subtotals := make([]currency.Money, 0, len(codes))
	for _, code := range codes {
		cur := currency.New(curVolume[code], code).Round()
		prev := currency.New(prevVolume[code], code).Round()
		snap.VolumeByCurrency[code] = VolumeMetric{
			Current:  cur,
			Previous: prev,
			TrendPct: Trend(cur.Amount, prev.Amount),
		}
		subtotals = append(subtotals, cur)
	}

	// total volume: per-currency subtotals converted once, then summed, so
	// the reported figure matches subtotal x rate exactly
	total, err := currency.Sum(subtotals, in.ReportingCurrency, in.Rates, in.AsOf)
	if err != nil {
		return nil, err
	}
	snap.TotalVolume = total

	curFeeTotal, err := currency.Sum(curFees, in.ReportingCurrency, in.Rates, in.AsOf)
	if err != nil {
		return nil, err
	}
	prevFeeTotal, err := currency.Sum(prevFees, in.ReportingCurrency, in.Rates, in.AsOf)
	if err != nil {
		return nil, err
	}
	snap.FeeRevenue = curFeeTotal
	snap.FeeRevenueTrend = Trend(curFeeTotal.Amount, prevFeeTotal.Amount)

	// cumulative user counts by type, as of period end vs period start
	curUsers := make(map[string]int64)
	prevUsers := make(map[string]int64)
	for _, u := range in.Users {
		typ := u.Type
		if typ == "" {
			typ = "customer"
		}
		if u.RegistrationDate.Before(in.Period.End) {
			curUsers[typ]++
		}
		if u.RegistrationDate.Before(in.Period.Start) {
			prevUsers[typ]++
		}
	}
	for typ, cur := range curUsers {
		snap.UsersByType[typ] = CountMetric{
			Current:  cur,
			Previous: prevUsers[typ],
			TrendPct: TrendInt(cur, prevUsers[typ]),
		}
	}

	// corridor forex line, estimated when the table has no rate
	if in.ForexBase != "" && in.ForexQuote != "" {
		rate, err := in.Rates.GetRate(in.ForexBase, in.ForexQuote, in.AsOf)
		if err != nil {
			snap.Forex = ForexStatus{
				Base:      in.ForexBase,
				Quote:     in.ForexQuote,
				Rate:      decimal.NewFromInt(1),
				AsOf:      in.AsOf,
				Estimated: true,
			}
		} else {
			snap.Forex = ForexStatus{
				Base:      in.ForexBase,
				Quote:     in.ForexQuote,
				Rate:      rate.Rate,
				AsOf:      rate.AsOf,
				Estimated: false,
			}
		}
	}

	return snap, nil
}

// Metrics flattens a snapshot into the metric map a compliance report stores.
func (s *Snapshot) Metrics() map[string]decimal.Decimal {
	m := map[string]decimal.Decimal{
		"transaction_count":       decimal.NewFromInt(s.Transactions.Current),
		"transaction_count_trend": s.Transactions.TrendPct,
		"total_volume":            s.TotalVolume.Amount,
		"fee_revenue":             s.FeeRevenue.Amount,
		"flagged_count":           decimal.NewFromInt(s.FlaggedCount),
	}
	for typ, c := range s.UsersByType {
		m["users_"+typ] = decimal.NewFromInt(c.Current)
	}
	for code, v := range s.VolumeByCurrency {
		m["volume_"+string(code)] = v.Current.Amount
	}
	return m
}

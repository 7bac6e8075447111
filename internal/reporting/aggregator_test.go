package reporting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwachalink/corridor_compliance/internal/currency"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

var (
	june = models.Period{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	asOf = june.End
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func corridorRates(t *testing.T) currency.RateTable {
	t.Helper()
	snap, err := currency.NewSnapshot([]currency.ExchangeRate{
		{Base: currency.CNY, Quote: currency.MWK, Rate: decimal.NewFromFloat(117.6), AsOf: asOf},
	})
	require.NoError(t, err)
	return snap
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		previous string
		want     string
	}{
		{"both zero", "0", "0", "0"},
		{"growth from zero", "5", "0", "100"},
		{"fifty percent up", "150", "100", "50"},
		{"half down", "50", "100", "-50"},
		{"flat", "100", "100", "0"},
		{"collapse to zero", "0", "100", "-100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trend(d(t, tt.current), d(t, tt.previous))
			assert.True(t, got.Equal(d(t, tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func mkTx(id string, amount decimal.Decimal, code currency.Code, at time.Time) models.Transaction {
	m := currency.New(amount, code)
	return models.Transaction{
		ID:        id,
		Amount:    m,
		Fee:       currency.Zero(code),
		NetAmount: m,
		Status:    models.TransactionStatusCompleted,
		CreatedAt: at,
	}
}

func TestAggregateMixedCurrencyVolume(t *testing.T) {
	mid := june.Start.Add(10 * 24 * time.Hour)
	in := Input{
		Transactions: []models.Transaction{
			mkTx("m1", decimal.NewFromInt(20_000_000), currency.MWK, mid),
			mkTx("m2", decimal.NewFromInt(25_000_000), currency.MWK, mid.Add(time.Hour)),
			mkTx("c1", decimal.NewFromInt(500_000), currency.CNY, mid.Add(2*time.Hour)),
			mkTx("c2", decimal.NewFromInt(390_000), currency.CNY, mid.Add(3*time.Hour)),
		},
		Rates:             corridorRates(t),
		Period:            june,
		AsOf:              asOf,
		ReportingCurrency: currency.MWK,
		ForexBase:         currency.CNY,
		ForexQuote:        currency.MWK,
	}

	snap, err := Aggregate(in)
	require.NoError(t, err)

	// per-currency subtotals stay native
	assert.True(t, snap.VolumeByCurrency[currency.MWK].Current.Amount.Equal(decimal.NewFromInt(45_000_000)))
	assert.True(t, snap.VolumeByCurrency[currency.CNY].Current.Amount.Equal(decimal.NewFromInt(890_000)))

	// 45,000,000 MWK + 890,000 CNY * 117.6 = 149,664,000 MWK exactly
	assert.True(t, snap.TotalVolume.Amount.Equal(decimal.NewFromInt(149_664_000)),
		"got %s", snap.TotalVolume.Amount)
	assert.Equal(t, currency.MWK, snap.TotalVolume.Currency)

	assert.Equal(t, int64(4), snap.Transactions.Current)
	assert.True(t, snap.Forex.Rate.Equal(decimal.NewFromFloat(117.6)))
	assert.False(t, snap.Forex.Estimated)
}

func TestAggregatePeriodBoundariesHalfOpen(t *testing.T) {
	in := Input{
		Transactions: []models.Transaction{
			mkTx("at-start", decimal.NewFromInt(100), currency.MWK, june.Start),
			mkTx("at-end", decimal.NewFromInt(100), currency.MWK, june.End),
			mkTx("prev", decimal.NewFromInt(100), currency.MWK, june.Start.Add(-time.Hour)),
		},
		Rates:             corridorRates(t),
		Period:            june,
		AsOf:              asOf,
		ReportingCurrency: currency.MWK,
	}

	snap, err := Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Transactions.Current, "start inclusive, end exclusive")
	assert.Equal(t, int64(1), snap.Transactions.Previous)
}

func TestAggregateExcludesFailedFromVolumeNotCount(t *testing.T) {
	mid := june.Start.Add(24 * time.Hour)
	failed := mkTx("f1", decimal.NewFromInt(1_000_000), currency.MWK, mid)
	failed.Status = models.TransactionStatusFailed

	in := Input{
		Transactions: []models.Transaction{
			mkTx("ok", decimal.NewFromInt(500), currency.MWK, mid),
			failed,
		},
		Rates:             corridorRates(t),
		Period:            june,
		AsOf:              asOf,
		ReportingCurrency: currency.MWK,
	}

	snap, err := Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Transactions.Current)
	assert.True(t, snap.TotalVolume.Amount.Equal(decimal.NewFromInt(500)))
}

func TestAggregateFlaggedCount(t *testing.T) {
	mid := june.Start.Add(24 * time.Hour)
	flagged := mkTx("f1", decimal.NewFromInt(2_000_000), currency.MWK, mid)
	flagged.Flagged = true

	in := Input{
		Transactions:      []models.Transaction{mkTx("ok", decimal.NewFromInt(500), currency.MWK, mid), flagged},
		Rates:             corridorRates(t),
		Period:            june,
		AsOf:              asOf,
		ReportingCurrency: currency.MWK,
	}

	snap, err := Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.FlaggedCount)
}

func TestAggregateCumulativeUsersByType(t *testing.T) {
	in := Input{
		Users: []models.Customer{
			{ID: "u1", Type: "customer", RegistrationDate: june.Start.Add(-30 * 24 * time.Hour)},
			{ID: "u2", Type: "customer", RegistrationDate: june.Start.Add(24 * time.Hour)},
			{ID: "u3", Type: "merchant", RegistrationDate: june.Start.Add(48 * time.Hour)},
			{ID: "u4", RegistrationDate: june.End.Add(time.Hour)}, // after the period
		},
		Rates:             corridorRates(t),
		Period:            june,
		AsOf:              asOf,
		ReportingCurrency: currency.MWK,
	}

	snap, err := Aggregate(in)
	require.NoError(t, err)

	// counts are cumulative as of period end vs period start
	assert.Equal(t, int64(2), snap.UsersByType["customer"].Current)
	assert.Equal(t, int64(1), snap.UsersByType["customer"].Previous)
	assert.Equal(t, int64(1), snap.UsersByType["merchant"].Current)
	assert.Equal(t, int64(0), snap.UsersByType["merchant"].Previous)
	assert.True(t, snap.UsersByType["customer"].TrendPct.Equal(decimal.NewFromInt(100)))
}

func TestAggregateForexEstimatedFallback(t *testing.T) {
	empty, err := currency.NewSnapshot(nil)
	require.NoError(t, err)

	in := Input{
		Transactions: []models.Transaction{
			mkTx("m1", decimal.NewFromInt(100), currency.MWK, june.Start.Add(time.Hour)),
		},
		Rates:             empty,
		Period:            june,
		AsOf:              asOf,
		ReportingCurrency: currency.MWK,
		ForexBase:         currency.CNY,
		ForexQuote:        currency.MWK,
	}

	snap, err := Aggregate(in)
	require.NoError(t, err)
	assert.True(t, snap.Forex.Estimated, "missing rate must be labelled, never silent")
	assert.True(t, snap.Forex.Rate.Equal(decimal.NewFromInt(1)))
}

func TestAggregateFailsClosedOnUnconvertibleVolume(t *testing.T) {
	empty, err := currency.NewSnapshot(nil)
	require.NoError(t, err)

	in := Input{
		Transactions: []models.Transaction{
			mkTx("c1", decimal.NewFromInt(100), currency.CNY, june.Start.Add(time.Hour)),
		},
		Rates:             empty,
		Period:            june,
		AsOf:              asOf,
		ReportingCurrency: currency.MWK,
	}

	_, err = Aggregate(in)
	assert.Error(t, err)
}

func TestSnapshotMetrics(t *testing.T) {
	mid := june.Start.Add(24 * time.Hour)
	in := Input{
		Transactions: []models.Transaction{
			mkTx("m1", decimal.NewFromInt(45_000_000), currency.MWK, mid),
		},
		Users: []models.Customer{
			{ID: "u1", Type: "customer", RegistrationDate: june.Start.Add(time.Hour)},
		},
		Rates:             corridorRates(t),
		Period:            june,
		AsOf:              asOf,
		ReportingCurrency: currency.MWK,
	}

	snap, err := Aggregate(in)
	require.NoError(t, err)

	m := snap.Metrics()
	assert.True(t, m["transaction_count"].Equal(decimal.NewFromInt(1)))
	assert.True(t, m["total_volume"].Equal(decimal.NewFromInt(45_000_000)))
	assert.True(t, m["users_customer"].Equal(decimal.NewFromInt(1)))
	assert.True(t, m["volume_MWK"].Equal(decimal.NewFromInt(45_000_000)))
}

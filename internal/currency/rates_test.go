package currency

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwachalink/corridor_compliance/pkg/errors"
)

var asOf = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

func corridorRates(t *testing.T) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot([]ExchangeRate{
		{Base: CNY, Quote: MWK, Rate: decimal.NewFromFloat(117.6), AsOf: asOf},
		{Base: USD, Quote: MWK, Rate: decimal.NewFromInt(1730), AsOf: asOf},
	})
	require.NoError(t, err)
	return snap
}

func TestNewSnapshotValidation(t *testing.T) {
	_, err := NewSnapshot([]ExchangeRate{{Base: CNY, Quote: MWK, Rate: decimal.Zero}})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = NewSnapshot([]ExchangeRate{{Base: "XXX", Quote: MWK, Rate: decimal.NewFromInt(1)}})
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestGetRateDirectAndInverted(t *testing.T) {
	rates := corridorRates(t)

	direct, err := rates.GetRate(CNY, MWK, asOf)
	require.NoError(t, err)
	assert.True(t, direct.Rate.Equal(decimal.NewFromFloat(117.6)))

	inverted, err := rates.GetRate(MWK, CNY, asOf)
	require.NoError(t, err)
	assert.True(t, inverted.Rate.Equal(decimal.NewFromInt(1).Div(decimal.NewFromFloat(117.6))))
	assert.Equal(t, MWK, inverted.Base)
	assert.Equal(t, CNY, inverted.Quote)
}

func TestGetRateSameCurrency(t *testing.T) {
	rates := corridorRates(t)
	r, err := rates.GetRate(MWK, MWK, asOf)
	require.NoError(t, err)
	assert.True(t, r.Rate.Equal(decimal.NewFromInt(1)))
}

func TestGetRateFailsClosed(t *testing.T) {
	rates := corridorRates(t)
	_, err := rates.GetRate(EUR, ZAR, asOf)
	assert.True(t, errors.IsKind(err, errors.KindRateNotFound))
}

func TestConvert(t *testing.T) {
	rates := corridorRates(t)

	got, err := Convert(New(decimal.NewFromInt(890_000), CNY), MWK, rates, asOf)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(104_664_000)), "got %s", got.Amount)
	assert.Equal(t, MWK, got.Currency)
}

func TestConvertRoundTripStaysWithinMinorUnit(t *testing.T) {
	rates := corridorRates(t)
	rate := decimal.NewFromFloat(117.6)

	// converting through the quote currency and back may lose at most half a
	// quote minor unit, scaled by the rate
	tolerance := rate.Mul(decimal.NewFromFloat(0.005))

	for _, raw := range []string{"1000", "45000000", "999999.99", "0.01"} {
		original := New(d(t, raw), MWK)
		there, err := Convert(original, CNY, rates, asOf)
		require.NoError(t, err)
		back, err := Convert(there, MWK, rates, asOf)
		require.NoError(t, err)

		diff := back.Amount.Sub(original.Amount).Abs()
		assert.True(t, diff.LessThanOrEqual(tolerance),
			"%s MWK round-trip drifted by %s", raw, diff)
	}
}

func TestConvertFailsClosedWithoutRate(t *testing.T) {
	rates := corridorRates(t)
	_, err := Convert(New(decimal.NewFromInt(100), EUR), ZAR, rates, asOf)
	assert.True(t, errors.IsKind(err, errors.KindRateNotFound))
}

func TestConvertEstimatedFallsBackOneToOne(t *testing.T) {
	rates := corridorRates(t)

	got, estimated := ConvertEstimated(New(decimal.NewFromInt(250), EUR), ZAR, rates, asOf)
	assert.True(t, estimated)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, ZAR, got.Currency)

	got, estimated = ConvertEstimated(New(decimal.NewFromInt(890_000), CNY), MWK, rates, asOf)
	assert.False(t, estimated)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(104_664_000)))
}

func TestSumConvertsEachItemOnce(t *testing.T) {
	rates := corridorRates(t)
	items := []Money{
		New(decimal.NewFromInt(45_000_000), MWK),
		New(decimal.NewFromInt(890_000), CNY),
	}

	total, err := Sum(items, MWK, rates, asOf)
	require.NoError(t, err)
	assert.True(t, total.Amount.Equal(decimal.NewFromInt(149_664_000)), "got %s", total.Amount)
}

func TestSumOrderIndependent(t *testing.T) {
	rates := corridorRates(t)
	forward := []Money{
		New(d(t, "100.335"), CNY),
		New(d(t, "200.115"), MWK),
		New(d(t, "33.995"), USD),
	}
	reversed := []Money{forward[2], forward[1], forward[0]}

	a, err := Sum(forward, MWK, rates, asOf)
	require.NoError(t, err)
	b, err := Sum(reversed, MWK, rates, asOf)
	require.NoError(t, err)
	assert.True(t, a.Equal(b), "%s vs %s", a, b)
}

func TestSumFailsClosedOnMissingRate(t *testing.T) {
	rates := corridorRates(t)
	_, err := Sum([]Money{New(decimal.NewFromInt(10), EUR)}, MWK, rates, asOf)
	assert.True(t, errors.IsKind(err, errors.KindRateNotFound))
}

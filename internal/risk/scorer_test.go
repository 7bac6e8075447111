package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kwachalink/corridor_compliance/internal/currency"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

func mwk(amount int64) currency.Money {
	return currency.New(decimal.NewFromInt(amount), currency.MWK)
}

func tx(amount currency.Money) models.Transaction {
	return models.Transaction{ID: "tx-1", Amount: amount}
}

// a seasoned account with no other signals
var cleanHistory = History{AccountAgeDays: 400}

func TestScoreTransactionHighAmountAloneReachesHighBand(t *testing.T) {
	cfg := DefaultConfig()

	got := ScoreTransaction(tx(mwk(1_500_000)), cleanHistory, cfg)

	assert.Equal(t, cfg.HighScoreFloor, got.Score)
	assert.Equal(t, RiskLevelHigh, got.Level)
	assert.Equal(t, []string{FactorHighAmount}, got.Factors)
}

func TestScoreTransactionAmountBands(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name       string
		amount     currency.Money
		wantScore  int
		wantLevel  RiskLevel
		wantFactor string
	}{
		{"at high cutoff", mwk(1_000_000), cfg.HighScoreFloor, RiskLevelHigh, FactorHighAmount},
		{"just below high cutoff", mwk(999_999), cfg.MediumScoreFloor, RiskLevelMedium, FactorMediumAmount},
		{"at medium cutoff", mwk(100_000), cfg.MediumScoreFloor, RiskLevelMedium, FactorMediumAmount},
		{"below medium cutoff", mwk(99_999), 0, RiskLevelLow, ""},
		{"cny high cutoff", currency.New(decimal.NewFromInt(60_000), currency.CNY), cfg.HighScoreFloor, RiskLevelHigh, FactorHighAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreTransaction(tx(tt.amount), cleanHistory, cfg)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantLevel, got.Level)
			if tt.wantFactor == "" {
				assert.Empty(t, got.Factors)
			} else {
				assert.Contains(t, got.Factors, tt.wantFactor)
			}
		})
	}
}

func TestScoreTransactionSignalsAreAdditive(t *testing.T) {
	cfg := DefaultConfig()
	history := History{
		AccountAgeDays:       5,
		PriorFlagCount:       2,
		HighRiskCounterparty: true,
	}

	got := ScoreTransaction(tx(mwk(150_000)), history, cfg)

	// medium amount 40 + new account 15 + 2 prior flags 10 + counterparty 15
	assert.Equal(t, 80, got.Score)
	assert.Equal(t, RiskLevelCritical, got.Level)
	assert.ElementsMatch(t, []string{
		FactorMediumAmount, FactorNewAccount, FactorPriorFlags, FactorHighRiskCounterparty,
	}, got.Factors)
}

func TestScoreTransactionPriorFlagsCapped(t *testing.T) {
	cfg := DefaultConfig()
	got := ScoreTransaction(tx(mwk(1)), History{AccountAgeDays: 400, PriorFlagCount: 50}, cfg)
	assert.Equal(t, cfg.PriorFlagCap, got.Score)
}

func TestScoreTransactionClampedAtHundred(t *testing.T) {
	cfg := DefaultConfig()
	history := History{
		AccountAgeDays:       1,
		PriorFlagCount:       50,
		HighRiskCounterparty: true,
	}
	got := ScoreTransaction(tx(mwk(5_000_000)), history, cfg)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, RiskLevelCritical, got.Level)
}

func TestScoreTransactionJurisdictionList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HighRiskJurisdictions = []string{"KP"}

	got := ScoreTransaction(tx(mwk(1)), History{AccountAgeDays: 400, CounterpartyCountry: "KP"}, cfg)
	assert.Equal(t, cfg.JurisdictionRiskWeight, got.Score)
	assert.Contains(t, got.Factors, FactorHighRiskCounterparty)

	got = ScoreTransaction(tx(mwk(1)), History{AccountAgeDays: 400, CounterpartyCountry: "MW"}, cfg)
	assert.Zero(t, got.Score)
}

func TestScoreCustomer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HighRiskJurisdictions = []string{"KP"}

	tests := []struct {
		name      string
		customer  models.Customer
		signals   Signals
		wantScore int
	}{
		{"clean profile", models.Customer{}, Signals{AccountAgeDays: 400}, 0},
		{"new account", models.Customer{}, Signals{AccountAgeDays: 3}, 15},
		{
			"rejected documents capped",
			models.Customer{},
			Signals{AccountAgeDays: 400, RejectedDocuments: 5},
			20,
		},
		{
			"country from profile",
			models.Customer{Country: "KP"},
			Signals{AccountAgeDays: 400},
			15,
		},
		{
			"everything",
			models.Customer{Country: "KP"},
			Signals{AccountAgeDays: 1, PriorFlagCount: 4, RejectedDocuments: 2},
			70,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreCustomer(tt.customer, tt.signals, cfg)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, cfg.Level(tt.wantScore), got.Level)
		})
	}
}

func TestLevelBands(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		score int
		want  RiskLevel
	}{
		{0, RiskLevelLow},
		{39, RiskLevelLow},
		{40, RiskLevelMedium},
		{69, RiskLevelMedium},
		{70, RiskLevelHigh},
		{79, RiskLevelHigh},
		{80, RiskLevelCritical},
		{100, RiskLevelCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Level(tt.score), "score %d", tt.score)
	}
}

func TestScoringIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	history := History{AccountAgeDays: 10, PriorFlagCount: 1, HighRiskCounterparty: true}
	first := ScoreTransaction(tx(mwk(1_500_000)), history, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ScoreTransaction(tx(mwk(1_500_000)), history, cfg))
	}
}

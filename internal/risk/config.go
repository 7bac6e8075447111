// Package risk computes 0-100 risk scores and risk bands for customers and
// transactions. Scoring is pure: identical inputs and configuration always
// produce identical results, so scores can be replayed for audit.
package risk

import (
	"github.com/shopspring/decimal"

	"github.com/kwachalink/corridor_compliance/internal/currency"
)

// Config is the scoring configuration surface. Every threshold is data, not
// code; hosts override any of it without a rebuild.
type Config struct {
	// Per-currency amount cutoffs. An amount at or above the high cutoff
	// scores the full high-amount weight; at or above medium, the medium
	// weight.
	HighAmountThresholds   map[currency.Code]decimal.Decimal `mapstructure:"high_amount_thresholds" validate:"required,min=1"`
	MediumAmountThresholds map[currency.Code]decimal.Decimal `mapstructure:"medium_amount_thresholds" validate:"required,min=1"`

	// Accounts younger than this are treated as a risk signal.
	NewAccountWindowDays int `mapstructure:"new_account_window_days" validate:"gte=0"`

	// Points added per prior flag, capped at PriorFlagCap.
	PriorFlagWeight int `mapstructure:"prior_flag_weight" validate:"gte=0"`
	PriorFlagCap    int `mapstructure:"prior_flag_cap" validate:"gte=0"`

	// Points added for a high-risk counterparty jurisdiction.
	JurisdictionRiskWeight int `mapstructure:"jurisdiction_risk_weight" validate:"gte=0"`

	// Band floors: inclusive-lower, exclusive-upper except the top band.
	CriticalScoreFloor int `mapstructure:"critical_score_floor" validate:"gt=0,lte=100"`
	HighScoreFloor     int `mapstructure:"high_score_floor" validate:"gt=0,lte=100"`
	MediumScoreFloor   int `mapstructure:"medium_score_floor" validate:"gt=0,lte=100"`

	// Flags created at a score above this floor skip manual triage and open
	// directly under investigation.
	AutoEscalateScoreFloor int `mapstructure:"auto_escalate_score_floor" validate:"gt=0,lte=100"`

	// Currency all dashboard totals are reported in.
	ReportingCurrency currency.Code `mapstructure:"reporting_currency" validate:"required"`

	// Jurisdictions treated as high-risk counterparty locations.
	HighRiskJurisdictions []string `mapstructure:"high_risk_jurisdictions"`
}

// DefaultConfig returns the corridor defaults. The admin console historically
// carried two divergent MWK cutoffs (1,000,000 and 100,000); this table is the
// single source of truth: 1,000,000 is the high cutoff, 100,000 the medium.
func DefaultConfig() Config {
	return Config{
		HighAmountThresholds: map[currency.Code]decimal.Decimal{
			currency.MWK: decimal.NewFromInt(1_000_000),
			currency.CNY: decimal.NewFromInt(60_000),
			currency.USD: decimal.NewFromInt(10_000),
		},
		MediumAmountThresholds: map[currency.Code]decimal.Decimal{
			currency.MWK: decimal.NewFromInt(100_000),
			currency.CNY: decimal.NewFromInt(6_000),
			currency.USD: decimal.NewFromInt(1_000),
		},
		NewAccountWindowDays:   30,
		PriorFlagWeight:        5,
		PriorFlagCap:           20,
		JurisdictionRiskWeight: 15,
		CriticalScoreFloor:     80,
		HighScoreFloor:         70,
		MediumScoreFloor:       40,
		AutoEscalateScoreFloor: 90,
		ReportingCurrency:      currency.BaseCurrency,
		HighRiskJurisdictions:  nil,
	}
}

// Level bands a score: score >= CriticalScoreFloor is Critical, then High and
// Medium at their floors, Low below.
func (c Config) Level(score int) RiskLevel {
	switch {
	case score >= c.CriticalScoreFloor:
		return RiskLevelCritical
	case score >= c.HighScoreFloor:
		return RiskLevelHigh
	case score >= c.MediumScoreFloor:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwachalink/corridor_compliance/internal/currency"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.LogLevel, cfg.LogLevel)
	assert.Equal(t, want.ForexBase, cfg.ForexBase)
	assert.Equal(t, want.Risk.HighScoreFloor, cfg.Risk.HighScoreFloor)
	assert.True(t, cfg.Risk.HighAmountThresholds[currency.MWK].Equal(decimal.NewFromInt(1_000_000)))
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
forex_base: CNY
forex_quote: MWK
risk:
  high_amount_thresholds:
    MWK: "2000000"
    CNY: "120000"
  medium_amount_thresholds:
    MWK: "200000"
  new_account_window_days: 14
  auto_escalate_score_floor: 85
  reporting_currency: MWK
  high_risk_jurisdictions:
    - KP
    - IR
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 14, cfg.Risk.NewAccountWindowDays)
	assert.Equal(t, 85, cfg.Risk.AutoEscalateScoreFloor)
	assert.Equal(t, []string{"KP", "IR"}, cfg.Risk.HighRiskJurisdictions)

	// keys survive viper's lowercasing as canonical currency codes
	assert.True(t, cfg.Risk.HighAmountThresholds[currency.MWK].Equal(decimal.NewFromInt(2_000_000)))
	assert.True(t, cfg.Risk.HighAmountThresholds[currency.CNY].Equal(decimal.NewFromInt(120_000)))
	assert.True(t, cfg.Risk.MediumAmountThresholds[currency.MWK].Equal(decimal.NewFromInt(200_000)))

	// untouched keys keep their defaults
	assert.Equal(t, Default().Risk.HighScoreFloor, cfg.Risk.HighScoreFloor)
	assert.Equal(t, Default().Risk.PriorFlagCap, cfg.Risk.PriorFlagCap)
}

func TestLoadRejectsUnknownCurrency(t *testing.T) {
	path := writeConfig(t, `
risk:
  high_amount_thresholds:
    XXX: "100"
`)
	_, err := Load(path, nil)
	assert.True(t, errors.IsKind(err, errors.KindValidation), "got %v", err)
}

func TestLoadRejectsNonPositiveThreshold(t *testing.T) {
	path := writeConfig(t, `
risk:
  high_amount_thresholds:
    MWK: "0"
`)
	_, err := Load(path, nil)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestLoadRejectsInvertedScoreFloors(t *testing.T) {
	path := writeConfig(t, `
risk:
  high_score_floor: 30
`)
	_, err := Load(path, nil)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level: shouty
`)
	_, err := Load(path, nil)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestValidatedRejectsUnsupportedReportingCurrency(t *testing.T) {
	cfg := Default()
	cfg.Risk.ReportingCurrency = "XXX"
	_, err := validated(&cfg)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

package risk

import (
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// RiskLevel re-exports the shared band type for scorer callers.
type RiskLevel = models.RiskLevel

const (
	RiskLevelLow      = models.RiskLevelLow
	RiskLevelMedium   = models.RiskLevelMedium
	RiskLevelHigh     = models.RiskLevelHigh
	RiskLevelCritical = models.RiskLevelCritical
)

// Risk factor labels surfaced to investigators on flagged transactions.
const (
	FactorHighAmount           = "High Amount"
	FactorMediumAmount         = "Medium Amount"
	FactorNewAccount           = "New Account"
	FactorPriorFlags           = "Prior Flags"
	FactorHighRiskCounterparty = "High-Risk Counterparty"
	FactorRejectedDocuments    = "Rejected Documents"
)

// fixed component weights not exposed on the config surface
const (
	newAccountWeight       = 15
	rejectedDocumentWeight = 10
	rejectedDocumentCap    = 20
)

// History carries the account signals transaction scoring consumes. The host
// assembles it from its own records; the scorer never loads anything.
type History struct {
	AccountAgeDays       int
	PriorFlagCount       int
	HighRiskCounterparty bool
	CounterpartyCountry  string
}

// Signals carries the customer-level scoring inputs.
type Signals struct {
	AccountAgeDays    int
	PriorFlagCount    int
	HighRiskCountry   bool
	RejectedDocuments int
}

// Assessment is a scoring result: the clamped score, its band, and the factor
// labels that contributed.
type Assessment struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

func clampScore(score int) int {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}

// ScoreTransaction scores one transaction against the configured thresholds.
// The amount component alone reaches the high band when the amount meets the
// currency's high cutoff, so large transfers are flagged without any other
// signal present.
func ScoreTransaction(tx models.Transaction, history History, cfg Config) Assessment {
	score := 0
	factors := make([]string, 0, 4)

	if high, ok := cfg.HighAmountThresholds[tx.Amount.Currency]; ok && tx.Amount.Amount.GreaterThanOrEqual(high) {
		score += cfg.HighScoreFloor
		factors = append(factors, FactorHighAmount)
	} else if medium, ok := cfg.MediumAmountThresholds[tx.Amount.Currency]; ok && tx.Amount.Amount.GreaterThanOrEqual(medium) {
		score += cfg.MediumScoreFloor
		factors = append(factors, FactorMediumAmount)
	}

	if history.AccountAgeDays < cfg.NewAccountWindowDays {
		score += newAccountWeight
		factors = append(factors, FactorNewAccount)
	}

	if history.PriorFlagCount > 0 {
		weight := history.PriorFlagCount * cfg.PriorFlagWeight
		if weight > cfg.PriorFlagCap {
			weight = cfg.PriorFlagCap
		}
		score += weight
		factors = append(factors, FactorPriorFlags)
	}

	if history.HighRiskCounterparty || cfg.isHighRiskJurisdiction(history.CounterpartyCountry) {
		score += cfg.JurisdictionRiskWeight
		factors = append(factors, FactorHighRiskCounterparty)
	}

	score = clampScore(score)
	return Assessment{Score: score, Level: cfg.Level(score), Factors: factors}
}

// ScoreCustomer scores a customer profile. A Critical result blocks KYC
// auto-approval; only a recorded manual override clears the gate.
func ScoreCustomer(c models.Customer, signals Signals, cfg Config) Assessment {
	score := 0
	factors := make([]string, 0, 4)

	if signals.AccountAgeDays < cfg.NewAccountWindowDays {
		score += newAccountWeight
		factors = append(factors, FactorNewAccount)
	}

	if signals.PriorFlagCount > 0 {
		weight := signals.PriorFlagCount * cfg.PriorFlagWeight
		if weight > cfg.PriorFlagCap {
			weight = cfg.PriorFlagCap
		}
		score += weight
		factors = append(factors, FactorPriorFlags)
	}

	if signals.HighRiskCountry || cfg.isHighRiskJurisdiction(c.Country) {
		score += cfg.JurisdictionRiskWeight
		factors = append(factors, FactorHighRiskCounterparty)
	}

	if signals.RejectedDocuments > 0 {
		weight := signals.RejectedDocuments * rejectedDocumentWeight
		if weight > rejectedDocumentCap {
			weight = rejectedDocumentCap
		}
		score += weight
		factors = append(factors, FactorRejectedDocuments)
	}

	score = clampScore(score)
	return Assessment{Score: score, Level: cfg.Level(score), Factors: factors}
}

func (c Config) isHighRiskJurisdiction(country string) bool {
	if country == "" {
		return false
	}
	for _, j := range c.HighRiskJurisdictions {
		if j == country {
			return true
		}
	}
	return false
}

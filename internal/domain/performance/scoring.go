package performance

import (
	"fmt"

	"github.com/pos/analytics/internal/domain/report"
	"github.com/pos/analytics/internal/domain/shared"
	"github.com/pos/analytics/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Config holds the scoring weights, revenue target and risk thresholds.
// Callers may override any of them per computation.
type Config struct {
	TargetRevenue    decimal.Decimal `json:"target_revenue"`
	RevenueWeight    decimal.Decimal `json:"revenue_weight"`
	MarginWeight     decimal.Decimal `json:"margin_weight"`
	CollectionWeight decimal.Decimal `json:"collection_weight"`
	// HighRiskRatio and MediumRiskRatio are outstanding/given thresholds, exclusive
	HighRiskRatio   decimal.Decimal `json:"high_risk_ratio"`
	MediumRiskRatio decimal.Decimal `json:"medium_risk_ratio"`
	// OverdueIsHighRisk escalates any group holding overdue credit to high
	OverdueIsHighRisk bool `json:"overdue_is_high_risk"`
}

// DefaultConfig returns the stock weights 0.4/0.35/0.25 and thresholds 0.5/0.2
func DefaultConfig() Config {
	return Config{
		TargetRevenue:     decimal.NewFromInt(100000),
		RevenueWeight:     decimal.RequireFromString("0.4"),
		MarginWeight:      decimal.RequireFromString("0.35"),
		CollectionWeight:  decimal.RequireFromString("0.25"),
		HighRiskRatio:     decimal.RequireFromString("0.5"),
		MediumRiskRatio:   decimal.RequireFromString("0.2"),
		OverdueIsHighRisk: true,
	}
}

// Validate checks the config is usable
func (c Config) Validate() error {
	if !c.TargetRevenue.IsPositive() {
		return invalidConfig("target revenue must be positive")
	}
	for _, w := range []decimal.Decimal{c.RevenueWeight, c.MarginWeight, c.CollectionWeight} {
		if w.IsNegative() {
			return invalidConfig("weights must not be negative")
		}
	}
	if !valueobject.Sum(c.RevenueWeight, c.MarginWeight, c.CollectionWeight).IsPositive() {
		return invalidConfig("at least one weight must be positive")
	}
	if c.MediumRiskRatio.IsNegative() || c.HighRiskRatio.LessThan(c.MediumRiskRatio) {
		return invalidConfig("risk thresholds must satisfy 0 <= medium <= high")
	}
	return nil
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%s: %w", msg, shared.ErrInvalidOptions)
}

// Components are the three clamped inputs of the composite score
type Components struct {
	Revenue    decimal.Decimal `json:"revenue"`
	Margin     decimal.Decimal `json:"margin"`
	Collection decimal.Decimal `json:"collection"`
}

// ComponentsOf computes the score components of an aggregate, each in [0, 100]
func (c Config) ComponentsOf(a report.DimensionAggregate) Components {
	revenue := decimal.Zero
	if c.TargetRevenue.IsPositive() {
		revenue = a.TotalRevenue.Div(c.TargetRevenue).Mul(valueobject.Hundred())
	}
	collection := valueobject.Hundred()
	if a.HasCredit() {
		collection = a.CreditCollectionRate
	}
	return Components{
		Revenue:    valueobject.ClampPercent(revenue),
		Margin:     valueobject.ClampPercent(a.ProfitMargin),
		Collection: valueobject.ClampPercent(collection),
	}
}

// PerformanceScore returns the weighted composite in [0, 100], rounded half away from zero
func (c Config) PerformanceScore(a report.DimensionAggregate) int {
	parts := c.ComponentsOf(a)
	score := valueobject.Sum(
		c.RevenueWeight.Mul(parts.Revenue),
		c.MarginWeight.Mul(parts.Margin),
		c.CollectionWeight.Mul(parts.Collection),
	)
	return int(valueobject.ClampPercent(score.Round(0)).IntPart())
}

// ClassifyRisk returns the risk level of an aggregate. Groups without credit
// extended are low risk regardless of score.
func (c Config) ClassifyRisk(a report.DimensionAggregate) report.RiskLevel {
	if !a.HasCredit() {
		return report.RiskLow
	}
	ratio := a.OutstandingRatio()
	switch {
	case ratio.GreaterThan(c.HighRiskRatio):
		return report.RiskHigh
	case c.OverdueIsHighRisk && a.HasOverdueCredit:
		return report.RiskHigh
	case ratio.GreaterThan(c.MediumRiskRatio):
		return report.RiskMedium
	default:
		return report.RiskLow
	}
}

// Score fills PerformanceScore and RiskLevel on a copy of the aggregate
func (c Config) Score(a report.DimensionAggregate) report.DimensionAggregate {
	a.PerformanceScore = c.PerformanceScore(a)
	a.RiskLevel = c.ClassifyRisk(a)
	return a
}

// ScoreAll scores every aggregate and returns a new slice
func (c Config) ScoreAll(aggs []report.DimensionAggregate) []report.DimensionAggregate {
	out := make([]report.DimensionAggregate, len(aggs))
	for i, a := range aggs {
		out[i] = c.Score(a)
	}
	return out
}

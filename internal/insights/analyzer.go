// Package insights derives aggregate optimization metrics and actionable
// tips from a user's transaction history. Like the selection engine it is
// pure and stateless: callers supply the history and card set, and every
// call computes from scratch.
package insights

import (
	"math"
	"time"

	"github.com/metapayd/cardwise/internal/domain"
	"github.com/metapayd/cardwise/internal/engine"
)

// Analyzer computes spending analyses over transaction histories.
type Analyzer struct {
	catalog domain.Catalog
	engine  *engine.Engine
	tips    TipConfig
}

// NewAnalyzer creates an analyzer. Zero-valued TipConfig fields fall back
// to the defaults.
func NewAnalyzer(catalog domain.Catalog, eng *engine.Engine, tips TipConfig) *Analyzer {
	def := DefaultTipConfig()
	if tips.BaselineRate == 0 {
		tips.BaselineRate = def.BaselineRate
	}
	if tips.MaxTips == 0 {
		tips.MaxTips = def.MaxTips
	}
	if tips.MinMonthlySpend == 0 {
		tips.MinMonthlySpend = def.MinMonthlySpend
	}
	if tips.CategoryCodes == nil {
		tips.CategoryCodes = def.CategoryCodes
	}

	return &Analyzer{
		catalog: catalog,
		engine:  eng,
		tips:    tips,
	}
}

// Analyze aggregates a transaction history into totals, a per-category
// breakdown, an optimization rate, and improvement tips. An empty history
// yields zero totals and a vacuous 100% optimization rate.
func (a *Analyzer) Analyze(transactions []*domain.Transaction, cards []*domain.Card) *domain.SpendingAnalysis {
	analysis := &domain.SpendingAnalysis{
		CategoryBreakdown: make(map[string]*domain.CategorySummary),
		GeneratedAt:       time.Now().UTC(),
	}

	for _, tx := range transactions {
		analysis.TotalSpent += tx.Amount
		analysis.TotalRewards += tx.RewardEarned
		analysis.PotentialReward += tx.PotentialReward
		analysis.MissedSavings += math.Max(0, tx.PotentialReward-tx.RewardEarned)

		category := a.categoryName(tx.MCC)
		summary, ok := analysis.CategoryBreakdown[category]
		if !ok {
			summary = &domain.CategorySummary{}
			analysis.CategoryBreakdown[category] = summary
		}
		summary.Spent += tx.Amount
		summary.Rewards += tx.RewardEarned
		summary.Transactions++
	}

	if analysis.PotentialReward > 0 {
		analysis.OptimizationRate = round2(analysis.TotalRewards / analysis.PotentialReward * 100)
	} else {
		// No potential upside means nothing was left on the table.
		analysis.OptimizationRate = 100
	}

	analysis.TotalSpent = round2(analysis.TotalSpent)
	analysis.TotalRewards = round2(analysis.TotalRewards)
	analysis.PotentialReward = round2(analysis.PotentialReward)
	analysis.MissedSavings = round2(analysis.MissedSavings)

	analysis.Tips = a.generateTips(analysis.CategoryBreakdown, cards)

	return analysis
}

// categoryName resolves an MCC to a catalog category, bucketing unknown
// codes under "Other" rather than failing.
func (a *Analyzer) categoryName(code string) string {
	if a.catalog != nil {
		if entry, ok := a.catalog.Lookup(code); ok {
			return entry.Name
		}
	}
	return domain.CategoryOther
}

// round2 rounds to the currency's minor unit using round-half-up.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

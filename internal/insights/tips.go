package insights

import (
	"math"
	"sort"

	"github.com/metapayd/cardwise/internal/domain"
)

// TipConfig controls optimization tip generation.
type TipConfig struct {
	// BaselineRate is the assumed average reward percentage the user
	// currently earns. Tip upside is measured against it.
	BaselineRate float64

	// MaxTips caps how many top-spend categories are considered.
	MaxTips int

	// MinMonthlySpend is the materiality threshold: categories at or
	// below it produce no tip.
	MinMonthlySpend float64

	// CategoryCodes maps category names back to a representative MCC
	// for rate lookup. Categories outside the table are skipped.
	CategoryCodes map[string]string
}

// DefaultTipConfig returns the standard tip generation settings.
func DefaultTipConfig() TipConfig {
	return TipConfig{
		BaselineRate:    1.5,
		MaxTips:         3,
		MinMonthlySpend: 100,
		CategoryCodes: map[string]string{
			"Restaurants":       "5812",
			"Grocery Stores":    "5411",
			"Gas Stations":      "5541",
			"Electronics":       "5732",
			"Department Stores": "5311",
		},
	}
}

// generateTips suggests better cards for the top spending categories.
// Tips preserve the spend-descending order of their source categories;
// equal spends break ties by name so output is deterministic.
func (a *Analyzer) generateTips(breakdown map[string]*domain.CategorySummary, cards []*domain.Card) []domain.OptimizationTip {
	type categorySpend struct {
		name  string
		spent float64
	}

	ranked := make([]categorySpend, 0, len(breakdown))
	for name, summary := range breakdown {
		ranked = append(ranked, categorySpend{name: name, spent: summary.Spent})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].spent != ranked[j].spent {
			return ranked[i].spent > ranked[j].spent
		}
		return ranked[i].name < ranked[j].name
	})

	if len(ranked) > a.tips.MaxTips {
		ranked = ranked[:a.tips.MaxTips]
	}

	var tips []domain.OptimizationTip
	for _, category := range ranked {
		if category.spent <= a.tips.MinMonthlySpend {
			continue
		}

		code, ok := a.tips.CategoryCodes[category.name]
		if !ok {
			continue
		}

		bestCard, bestRate := a.bestCardForCode(code, cards)
		if bestCard == nil {
			continue
		}

		extra := math.Max(0, category.spent*(bestRate-a.tips.BaselineRate)/100)
		tips = append(tips, domain.OptimizationTip{
			Category:      category.name,
			MonthlySpend:  round2(category.spent),
			SuggestedCard: bestCard.Name,
			ExtraReward:   round2(extra),
		})
	}

	return tips
}

// bestCardForCode finds the card with the highest resolved rate for a
// category code. Ties keep the first-listed card.
func (a *Analyzer) bestCardForCode(code string, cards []*domain.Card) (*domain.Card, float64) {
	var best *domain.Card
	bestRate := 0.0

	for _, card := range cards {
		rate := a.engine.EffectiveRate(card, code)
		if rate > bestRate {
			bestRate = rate
			best = card
		}
	}

	return best, bestRate
}

// Package engine implements the card selection and rewards optimization
// engine: reward rate resolution, reward valuation, multi-factor card
// scoring, and optimal card ranking. Every operation is a pure function
// over its inputs; the engine holds no mutable state beyond the compiled
// policy set and is safe for concurrent use.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/metapayd/cardwise/internal/domain"
)

var (
	// ErrInvalidInput is returned for negative purchase amounts.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoActiveCards is returned when selection has no candidate cards.
	ErrNoActiveCards = errors.New("no active cards available")
)

// Scoring weights. These are design constants, not tunable at call time:
// reward value dominates, fees drag at half their monthly amortization,
// and utilization penalties stack across the two thresholds.
const (
	rewardWeight = 10.0
	feeWeight    = 0.5

	utilizationSoftLimit   = 0.3
	utilizationHardLimit   = 0.8
	utilizationSoftPenalty = 5.0
	utilizationHardPenalty = 15.0

	goalMatchBonus   = 5.0
	debtPayoffBonus  = 3.0
	debtPayoffMalus  = 2.0
	networkBonus     = 1.0

	// fallbackRate applies when a card declares no default rate at all.
	fallbackRate = 1.0
)

// Engine evaluates cards against purchases.
type Engine struct {
	catalog  domain.Catalog
	policies *PolicySet
}

// New creates an engine. The catalog is required; policies may be nil,
// in which case no card is ever excluded from candidacy.
func New(catalog domain.Catalog, policies *PolicySet) *Engine {
	return &Engine{
		catalog:  catalog,
		policies: policies,
	}
}

// EffectiveRate resolves the reward percentage a card earns for a
// category code. A category override is authoritative regardless of its
// magnitude; otherwise the card's default rate applies, and a card that
// declares no default at all earns the fallback rate.
func (e *Engine) EffectiveRate(card *domain.Card, categoryCode string) float64 {
	if rate, ok := card.Rewards.CategoryRates[categoryCode]; ok {
		return rate
	}
	if card.Rewards.DefaultRate > 0 {
		return card.Rewards.DefaultRate
	}
	return fallbackRate
}

// RewardValue computes the monetary value of the reward earned on a
// purchase. Points programs are converted through PointValue; a points
// program without a point value earns zero rather than failing, since a
// partial estimate is more useful than blocking the flow.
func (e *Engine) RewardValue(card *domain.Card, categoryCode string, amount float64) (float64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: amount must be non-negative", ErrInvalidInput)
	}

	reward := amount * e.EffectiveRate(card, categoryCode) / 100

	if card.Rewards.Type == domain.RewardPoints {
		reward *= card.Rewards.PointValue
	}

	return round2(reward), nil
}

// Score computes the composite ranking score for one card and purchase.
func (e *Engine) Score(card *domain.Card, categoryCode string, amount float64, prefs domain.Preferences) (float64, error) {
	reward, err := e.RewardValue(card, categoryCode, amount)
	if err != nil {
		return 0, err
	}

	score := reward * rewardWeight
	score -= (card.AnnualFee / 12) * feeWeight

	u := card.Utilization()
	if u > utilizationSoftLimit {
		score -= utilizationSoftPenalty
	}
	if u > utilizationHardLimit {
		score -= utilizationHardPenalty
	}

	score += preferenceBonus(card, prefs)

	if card.Network == domain.NetworkVisa || card.Network == domain.NetworkMastercard {
		score += networkBonus
	}

	return round2(score), nil
}

// preferenceBonus scores goal alignment. No goal means no adjustment.
func preferenceBonus(card *domain.Card, prefs domain.Preferences) float64 {
	switch prefs.PrimaryGoal {
	case domain.GoalCashback:
		if card.Rewards.Type == domain.RewardCashback {
			return goalMatchBonus
		}
	case domain.GoalTravel:
		if card.Rewards.Type == domain.RewardPoints {
			return goalMatchBonus
		}
	case domain.GoalDebtPayoff:
		if card.Utilization() < utilizationSoftLimit {
			return debtPayoffBonus
		}
		return -debtPayoffMalus
	}
	return 0
}

type scoredCard struct {
	quote domain.CardQuote
	score float64
}

// Recommend ranks the user's cards for a purchase and returns the best
// card with an optional runner-up. Only active cards not excluded by a
// selection policy are candidates. Ranking is a stable descending sort
// by score, so among equal scores the first-listed card wins; callers
// relying on tie-break behavior can count on input order.
func (e *Engine) Recommend(cards []*domain.Card, categoryCode string, amount float64, prefs domain.Preferences) (*domain.Recommendation, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%w: amount must be non-negative", ErrInvalidInput)
	}

	var scored []scoredCard
	for _, card := range cards {
		if !card.Active {
			continue
		}
		if e.policies != nil && e.policies.Excludes(card, categoryCode, amount) {
			continue
		}

		reward, err := e.RewardValue(card, categoryCode, amount)
		if err != nil {
			return nil, err
		}
		score, err := e.Score(card, categoryCode, amount, prefs)
		if err != nil {
			return nil, err
		}

		scored = append(scored, scoredCard{
			quote: domain.CardQuote{
				Card:   card,
				Reward: reward,
				Rate:   e.EffectiveRate(card, categoryCode),
			},
			score: score,
		})
	}

	if len(scored) == 0 {
		return nil, ErrNoActiveCards
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	best := scored[0]
	rec := &domain.Recommendation{
		Recommended: best.quote,
		Category:    e.categoryName(categoryCode),
		Reasons:     e.reasons(best.quote, categoryCode, prefs),
	}

	if len(scored) > 1 {
		alt := scored[1].quote
		rec.Alternative = &alt
		rec.PotentialSavings = round2(best.quote.Reward - alt.Reward)
	}

	return rec, nil
}

// reasons composes the structured justification for a recommendation:
// rate source, fee, utilization, and goal alignment, in that order.
func (e *Engine) reasons(quote domain.CardQuote, categoryCode string, prefs domain.Preferences) []domain.Reason {
	card := quote.Card
	reasons := make([]domain.Reason, 0, 4)

	if _, ok := card.Rewards.CategoryRates[categoryCode]; ok {
		reasons = append(reasons, domain.Reason{
			Kind: domain.ReasonCategoryRate,
			Text: fmt.Sprintf("Earns %g%% rewards on %s", quote.Rate, strings.ToLower(e.categoryName(categoryCode))),
		})
	} else {
		reasons = append(reasons, domain.Reason{
			Kind: domain.ReasonBaseRate,
			Text: fmt.Sprintf("Best available rate of %g%% for this purchase", quote.Rate),
		})
	}

	if card.AnnualFee == 0 {
		reasons = append(reasons, domain.Reason{
			Kind: domain.ReasonNoAnnualFee,
			Text: "No annual fee",
		})
	}

	if card.Utilization() < utilizationSoftLimit {
		reasons = append(reasons, domain.Reason{
			Kind: domain.ReasonLowUtilization,
			Text: "Good credit utilization",
		})
	}

	if preferenceBonus(card, prefs) > 0 {
		var text string
		switch prefs.PrimaryGoal {
		case domain.GoalCashback:
			text = "Aligns with your cashback goal"
		case domain.GoalTravel:
			text = "Aligns with your travel goal"
		case domain.GoalDebtPayoff:
			text = "Supports your debt payoff goal"
		}
		reasons = append(reasons, domain.Reason{
			Kind: domain.ReasonGoalMatch,
			Text: text,
		})
	}

	return reasons
}

// categoryName resolves a category code through the catalog, falling back
// to "Unknown". Unknown codes are not an error: recommendations stay
// available even with an incomplete catalog.
func (e *Engine) categoryName(categoryCode string) string {
	if e.catalog != nil {
		if entry, ok := e.catalog.Lookup(categoryCode); ok {
			return entry.Name
		}
	}
	return domain.CategoryUnknown
}

// round2 rounds to the currency's minor unit using round-half-up.
func round2(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

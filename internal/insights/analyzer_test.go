package insights

import (
	"testing"

	"github.com/metapayd/cardwise/internal/domain"
	"github.com/metapayd/cardwise/internal/engine"
)

type stubCatalog map[string]domain.CatalogEntry

func (c stubCatalog) Lookup(code string) (domain.CatalogEntry, bool) {
	entry, ok := c[code]
	return entry, ok
}

func testCatalog() domain.Catalog {
	return stubCatalog{
		"5411": {Code: "5411", Name: "Grocery Stores"},
		"5812": {Code: "5812", Name: "Restaurants"},
		"5541": {Code: "5541", Name: "Gas Stations"},
		"5732": {Code: "5732", Name: "Electronics"},
	}
}

func testAnalyzer(tips TipConfig) *Analyzer {
	cat := testCatalog()
	return NewAnalyzer(cat, engine.New(cat, nil), tips)
}

func tx(mcc string, amount, earned, potential float64) *domain.Transaction {
	return &domain.Transaction{
		MCC:             mcc,
		Amount:          amount,
		RewardEarned:    earned,
		PotentialReward: potential,
	}
}

func groceryCard() *domain.Card {
	return &domain.Card{
		ID:     "card-grocery",
		Name:   "Grocery Rewards",
		Active: true,
		Rewards: domain.RewardProgram{
			DefaultRate: 1.5,
			CategoryRates: map[string]float64{
				"5411": 3.0,
			},
			Type: domain.RewardCashback,
		},
	}
}

func TestAnalyzeEmptyHistory(t *testing.T) {
	a := testAnalyzer(TipConfig{})

	analysis := a.Analyze(nil, []*domain.Card{groceryCard()})

	if analysis.TotalSpent != 0 {
		t.Errorf("expected 0 total spent, got %g", analysis.TotalSpent)
	}
	if analysis.TotalRewards != 0 {
		t.Errorf("expected 0 total rewards, got %g", analysis.TotalRewards)
	}
	if analysis.OptimizationRate != 100 {
		t.Errorf("expected vacuous 100%% optimization rate, got %g", analysis.OptimizationRate)
	}
	if len(analysis.CategoryBreakdown) != 0 {
		t.Errorf("expected empty breakdown, got %d categories", len(analysis.CategoryBreakdown))
	}
	if len(analysis.Tips) != 0 {
		t.Errorf("expected no tips, got %d", len(analysis.Tips))
	}
}

func TestAnalyzeAggregates(t *testing.T) {
	a := testAnalyzer(TipConfig{})

	transactions := []*domain.Transaction{
		tx("5411", 89.47, 3.58, 3.58),
		tx("5812", 12.85, 0.26, 0.51),
		// Earned above potential: missed savings floors at zero.
		tx("9999", 50.00, 1.00, 0.80),
	}

	analysis := a.Analyze(transactions, nil)

	if analysis.TotalSpent != 152.32 {
		t.Errorf("expected total spent 152.32, got %g", analysis.TotalSpent)
	}
	if analysis.TotalRewards != 4.84 {
		t.Errorf("expected total rewards 4.84, got %g", analysis.TotalRewards)
	}
	if analysis.PotentialReward != 4.89 {
		t.Errorf("expected potential reward 4.89, got %g", analysis.PotentialReward)
	}
	if analysis.MissedSavings != 0.25 {
		t.Errorf("expected missed savings 0.25, got %g", analysis.MissedSavings)
	}
	// 4.84 / 4.89 * 100 = 98.977...
	if analysis.OptimizationRate != 98.98 {
		t.Errorf("expected optimization rate 98.98, got %g", analysis.OptimizationRate)
	}

	grocery := analysis.CategoryBreakdown["Grocery Stores"]
	if grocery == nil || grocery.Spent != 89.47 || grocery.Transactions != 1 {
		t.Errorf("unexpected grocery bucket: %+v", grocery)
	}

	other := analysis.CategoryBreakdown[domain.CategoryOther]
	if other == nil || other.Spent != 50.00 {
		t.Error("expected unknown code bucketed under Other")
	}
}

func TestOptimizationRateVacuouslyComplete(t *testing.T) {
	a := testAnalyzer(TipConfig{})

	analysis := a.Analyze([]*domain.Transaction{
		tx("5411", 25, 0.50, 0),
	}, nil)

	if analysis.OptimizationRate != 100 {
		t.Errorf("expected 100 with zero potential, got %g", analysis.OptimizationRate)
	}
}

func TestTipsTopCategoriesBySpend(t *testing.T) {
	a := testAnalyzer(TipConfig{})
	cards := []*domain.Card{groceryCard()}

	transactions := []*domain.Transaction{
		tx("5411", 500, 0, 0),
		tx("5812", 400, 0, 0),
		tx("5541", 300, 0, 0),
		// Fourth-highest category never produces a tip.
		tx("5732", 200, 0, 0),
	}

	analysis := a.Analyze(transactions, cards)

	if len(analysis.Tips) != 3 {
		t.Fatalf("expected 3 tips, got %d", len(analysis.Tips))
	}

	wantOrder := []string{"Grocery Stores", "Restaurants", "Gas Stations"}
	for i, want := range wantOrder {
		if analysis.Tips[i].Category != want {
			t.Errorf("tip %d: expected %s, got %s", i, want, analysis.Tips[i].Category)
		}
	}

	// Grocery: 500 * (3.0 - 1.5) / 100 = 7.50 extra per month.
	if analysis.Tips[0].ExtraReward != 7.50 {
		t.Errorf("expected grocery extra reward 7.50, got %g", analysis.Tips[0].ExtraReward)
	}
	if analysis.Tips[0].SuggestedCard != "Grocery Rewards" {
		t.Errorf("unexpected suggested card %s", analysis.Tips[0].SuggestedCard)
	}
	// Restaurants resolve to the default rate, which equals the baseline.
	if analysis.Tips[1].ExtraReward != 0 {
		t.Errorf("expected zero extra reward at baseline rate, got %g", analysis.Tips[1].ExtraReward)
	}
}

func TestTipsSkipImmaterialAndUnmappedCategories(t *testing.T) {
	a := testAnalyzer(TipConfig{})
	cards := []*domain.Card{groceryCard()}

	transactions := []*domain.Transaction{
		// Highest spend, but unknown codes bucket to "Other", which has
		// no representative MCC.
		tx("9999", 5000, 0, 0),
		tx("5812", 150, 0, 0),
		// At the materiality threshold: spend <= 100 produces no tip.
		tx("5411", 100, 0, 0),
	}

	analysis := a.Analyze(transactions, cards)

	if len(analysis.Tips) != 1 {
		t.Fatalf("expected 1 tip, got %d", len(analysis.Tips))
	}
	if analysis.Tips[0].Category != "Restaurants" {
		t.Errorf("expected Restaurants tip, got %s", analysis.Tips[0].Category)
	}
}

func TestTipsRequireCards(t *testing.T) {
	a := testAnalyzer(TipConfig{})

	analysis := a.Analyze([]*domain.Transaction{
		tx("5411", 500, 0, 0),
	}, nil)

	if len(analysis.Tips) != 0 {
		t.Errorf("expected no tips without cards, got %d", len(analysis.Tips))
	}
}

func TestTipsBaselineRateConfigurable(t *testing.T) {
	a := testAnalyzer(TipConfig{BaselineRate: 0.5})
	cards := []*domain.Card{groceryCard()}

	analysis := a.Analyze([]*domain.Transaction{
		tx("5411", 500, 0, 0),
	}, cards)

	if len(analysis.Tips) != 1 {
		t.Fatalf("expected 1 tip, got %d", len(analysis.Tips))
	}
	// 500 * (3.0 - 0.5) / 100 = 12.50
	if analysis.Tips[0].ExtraReward != 12.50 {
		t.Errorf("expected extra reward 12.50, got %g", analysis.Tips[0].ExtraReward)
	}
}

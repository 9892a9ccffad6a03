package domain

import (
	"time"
)

// CategorySummary aggregates spending within one catalog category.
type CategorySummary struct {
	Spent        float64 `json:"spent"`
	Rewards      float64 `json:"rewards"`
	Transactions int     `json:"transactions"`
}

// OptimizationTip suggests a better card for a high-spend category.
type OptimizationTip struct {
	Category string `json:"category"`

	// MonthlySpend is the observed spend in the analyzed period.
	MonthlySpend float64 `json:"monthlySpend"`

	// SuggestedCard is the name of the card with the best resolved rate.
	SuggestedCard string `json:"suggestedCard"`

	// ExtraReward estimates the additional monthly reward of switching.
	ExtraReward float64 `json:"extraReward"`
}

// SpendingAnalysis is the analyzer's output over a transaction history.
type SpendingAnalysis struct {
	TotalSpent      float64 `json:"totalSpent"`
	TotalRewards    float64 `json:"totalRewards"`
	PotentialReward float64 `json:"potentialReward"`

	// MissedSavings sums per-transaction max(0, potential - earned).
	MissedSavings float64 `json:"missedSavings"`

	// CategoryBreakdown is keyed by catalog-resolved category name,
	// with "Other" collecting unknown codes.
	CategoryBreakdown map[string]*CategorySummary `json:"categoryBreakdown"`

	// OptimizationRate is earned/potential as a percentage; 100 when
	// there was no potential upside.
	OptimizationRate float64 `json:"optimizationRate"`

	Tips []OptimizationTip `json:"tips"`

	GeneratedAt time.Time `json:"generatedAt"`
}

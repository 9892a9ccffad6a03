package domain

import (
	"strings"
	"time"
)

// CardQuote is a card together with its expected reward for one purchase.
type CardQuote struct {
	Card   *Card   `json:"card"`
	Reward float64 `json:"reward"`
	Rate   float64 `json:"rate"`
}

// ReasonKind identifies which factor a recommendation reason describes.
type ReasonKind string

const (
	// ReasonCategoryRate: the rate came from a category override.
	ReasonCategoryRate ReasonKind = "category_rate"

	// ReasonBaseRate: the rate is the card's default rate.
	ReasonBaseRate ReasonKind = "base_rate"

	// ReasonNoAnnualFee: the card carries no annual fee.
	ReasonNoAnnualFee ReasonKind = "no_annual_fee"

	// ReasonLowUtilization: utilization is below the first penalty threshold.
	ReasonLowUtilization ReasonKind = "low_utilization"

	// ReasonGoalMatch: the card earned a goal-alignment bonus.
	ReasonGoalMatch ReasonKind = "goal_match"
)

// Reason is one structured component of a recommendation's justification.
// The engine emits these; presentation layers decide how to render them.
type Reason struct {
	Kind ReasonKind `json:"kind"`
	Text string     `json:"text"`
}

// Recommendation is the selector's output for a single purchase.
type Recommendation struct {
	// Recommended is the best-scoring active card.
	Recommended CardQuote `json:"recommended"`

	// Alternative is the runner-up, nil when only one card qualified.
	Alternative *CardQuote `json:"alternative,omitempty"`

	// PotentialSavings is recommended reward minus alternative reward,
	// zero when there is no alternative.
	PotentialSavings float64 `json:"potentialSavings"`

	// Category is the catalog-resolved category name, "Unknown" for codes
	// the catalog does not know.
	Category string `json:"category"`

	Reasons []Reason `json:"reasons"`
}

// ReasonText renders the reasons as a single advisory string. The engine
// never parses this back; it exists for display surfaces only.
func (r *Recommendation) ReasonText() string {
	parts := make([]string, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		parts = append(parts, reason.Text)
	}
	return strings.Join(parts, " • ")
}

// RecommendationRecord is a persisted recommendation for later retrieval.
type RecommendationRecord struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	MCC    string  `json:"mcc"`
	Amount float64 `json:"amount"`

	CardID           string   `json:"cardId"`
	CardName         string   `json:"cardName"`
	ExpectedReward   float64  `json:"expectedReward"`
	RewardRate       float64  `json:"rewardRate"`
	PotentialSavings float64  `json:"potentialSavings"`
	Category         string   `json:"category"`
	Reasons          []Reason `json:"reasons"`

	CreatedAt time.Time `json:"createdAt"`
}

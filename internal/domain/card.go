// Package domain defines the core interfaces and types for Cardwise.
package domain

import (
	"time"
)

// RewardType is the unit a card's reward program pays out in.
type RewardType string

const (
	// RewardCashback pays a percentage of spend directly in currency.
	RewardCashback RewardType = "cashback"

	// RewardPoints pays in points, converted to currency via PointValue.
	RewardPoints RewardType = "points"
)

// Card networks with near-universal acceptance get a small score bonus.
const (
	NetworkVisa       = "Visa"
	NetworkMastercard = "Mastercard"
)

// RewardProgram describes how a card earns rewards.
type RewardProgram struct {
	// DefaultRate is the reward percentage applied when no category
	// override matches.
	DefaultRate float64 `json:"defaultRate"`

	// CategoryRates maps merchant category codes to override percentages.
	// An entry here is authoritative for that category regardless of
	// magnitude relative to the default.
	CategoryRates map[string]float64 `json:"categoryRates,omitempty"`

	// Type is "cashback" or "points".
	Type RewardType `json:"type"`

	// PointValue is the currency value of one point. Only meaningful for
	// points programs; a points program without it earns zero currency.
	PointValue float64 `json:"pointValue,omitempty"`
}

// Card represents a payment card in a user's wallet.
type Card struct {
	ID       string `json:"id"`
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Network  string `json:"network"`
	LastFour string `json:"lastFour"`
	Active   bool   `json:"active"`

	// Balance and CreditLimit feed the utilization term of the score.
	// The engine treats them as given and does not enforce
	// balance <= creditLimit.
	Balance     float64 `json:"balance"`
	CreditLimit float64 `json:"creditLimit"`

	AnnualFee float64 `json:"annualFee"`

	Rewards RewardProgram `json:"rewards"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Utilization returns balance/creditLimit. A zero or negative credit limit
// is treated as fully utilized, the worst case for scoring.
func (c *Card) Utilization() float64 {
	if c.CreditLimit <= 0 {
		return 1.0
	}
	return c.Balance / c.CreditLimit
}

package domain

import (
	"time"
)

// PolicyConfig defines a card selection policy: a CEL expression that
// excludes a card from candidacy when it evaluates to true. Policies run
// before scoring; with none loaded, every active card is a candidate.
//
// Expressions see the candidate card and the purchase:
//
//	network, reward_type (string)
//	annual_fee, balance, credit_limit, utilization, amount (double)
//	mcc (string)
//
// Example: `utilization > 0.9 && amount > 50.0`
type PolicyConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is the CEL exclusion predicate. Must return bool.
	Expression string `json:"expression"`

	// Enabled policies are compiled into the selector.
	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

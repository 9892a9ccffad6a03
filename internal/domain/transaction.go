package domain

import (
	"time"
)

// Transaction is a historical purchase, read-only to the engine.
type Transaction struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	MerchantName string `json:"merchantName,omitempty"`

	// MCC is the merchant category code, used for catalog and rate lookup.
	MCC string `json:"mcc"`

	// CardID is the card actually used for the purchase.
	CardID string `json:"cardId"`

	Amount float64 `json:"amount"`

	// RewardEarned is the reward actually received.
	RewardEarned float64 `json:"rewardEarned"`

	// PotentialReward is the reward the optimal card would have earned.
	PotentialReward float64 `json:"potentialReward"`

	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// TransactionRequest is the API request payload for recording a transaction.
type TransactionRequest struct {
	MerchantName    string  `json:"merchantName,omitempty"`
	MCC             string  `json:"mcc"`
	CardID          string  `json:"cardId"`
	Amount          float64 `json:"amount"`
	RewardEarned    float64 `json:"rewardEarned"`
	PotentialReward float64 `json:"potentialReward"`
}

// ToTransaction converts a request to a Transaction domain object.
func (r *TransactionRequest) ToTransaction(userID string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		UserID:          userID,
		MerchantName:    r.MerchantName,
		MCC:             r.MCC,
		CardID:          r.CardID,
		Amount:          r.Amount,
		RewardEarned:    r.RewardEarned,
		PotentialReward: r.PotentialReward,
		Timestamp:       now,
		CreatedAt:       now,
	}
}

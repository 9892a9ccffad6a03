package domain

// Goal is a user's primary optimization goal.
type Goal string

const (
	GoalCashback   Goal = "cashback"
	GoalTravel     Goal = "travel"
	GoalDebtPayoff Goal = "debt_payoff"
)

// Preferences holds user-level optimization preferences.
// A zero value disables the goal-alignment bonus entirely.
type Preferences struct {
	PrimaryGoal Goal `json:"primaryGoal,omitempty"`
}

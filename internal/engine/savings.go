package engine

import (
	"math"

	"tipid/internal/core"
)

// Projection statuses for MonthsToGoal.
const (
	ProjectionAchieved    = "achieved"
	ProjectionNotPossible = "not_possible"
	ProjectionMonths      = "months"
)

type GoalProgress struct {
	Percentage int     `json:"percentage"`
	Remaining  float64 `json:"remaining"`
	Achieved   bool    `json:"achieved"`
}

type Projection struct {
	Status string `json:"status"`
	Months int    `json:"months,omitempty"`
}

// Estimate is a time-to-goal at a fixed monthly contribution.
type Estimate struct {
	Months int `json:"months"`
	Days   int `json:"days"`
}

// Progress can exceed 100% when a goal is overshot.
func Progress(g core.SavingsGoal) GoalProgress {
	p := GoalProgress{
		Remaining: g.TargetAmount - g.SavedAmount,
		Achieved:  g.Achieved(),
	}
	if g.TargetAmount > 0 {
		p.Percentage = round(g.SavedAmount / g.TargetAmount * 100)
	}
	return p
}

// MonthsToGoal assumes the unspent monthly budget goes into the goal.
func MonthsToGoal(g core.SavingsGoal, monthlyRemainingBudget float64) Projection {
	if g.Achieved() {
		return Projection{Status: ProjectionAchieved}
	}
	if monthlyRemainingBudget <= 0 {
		return Projection{Status: ProjectionNotPossible}
	}
	remaining := g.TargetAmount - g.SavedAmount
	return Projection{
		Status: ProjectionMonths,
		Months: int(math.Ceil(remaining / monthlyRemainingBudget)),
	}
}

// SavingsRate is how much has to be put aside per day, week or month
// (1, 7 or 30 days) to close the gap.
func SavingsRate(g core.SavingsGoal, rate core.SavingsRate) float64 {
	if g.Achieved() {
		return 0
	}
	return (g.TargetAmount - g.SavedAmount) / rate.Days()
}

// TimeToGoal estimates how long a steady monthly contribution takes. ok is
// false when the contribution is not positive.
func TimeToGoal(g core.SavingsGoal, monthly float64) (Estimate, bool) {
	if g.Achieved() {
		return Estimate{}, true
	}
	if monthly <= 0 {
		return Estimate{}, false
	}
	remaining := g.TargetAmount - g.SavedAmount
	return Estimate{
		Months: int(math.Ceil(remaining / monthly)),
		Days:   int(math.Ceil(remaining / monthly * 30)),
	}, true
}

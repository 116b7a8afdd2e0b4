// Package engine derives dashboard figures from snapshots of expenses,
// budgets and goals. Nothing here performs I/O, returns an error or mutates
// its input; "now" is always passed in.
package engine

import (
	"fmt"
	"math"
	"time"

	"tipid/internal/core"
)

const (
	SeverityWarning = "warning"
	SeverityDanger  = "danger"
	SeverityInfo    = "info"
	SeveritySuccess = "success"
)

// BudgetSummary is the headline block of the dashboard.
type BudgetSummary struct {
	TotalBudget  float64 `json:"totalBudget"`
	TotalSpent   float64 `json:"totalSpent"`
	Remaining    float64 `json:"remaining"`
	WeeklySpent  float64 `json:"weeklySpent"`
	MonthlySpent float64 `json:"monthlySpent"`
	Percentage   int     `json:"percentage"`
}

type Alert struct {
	Severity string `json:"severity"`
	Title    string `json:"title"`
	Message  string `json:"message"`
}

// Exhaustion predicts when the remaining budget runs out.
type Exhaustion struct {
	DailyAverage  float64   `json:"dailyAverage"`
	DaysRemaining int       `json:"daysRemaining"`
	Date          time.Time `json:"date"`
}

// round is half-up rounding to the nearest integer.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func TotalSpent(expenses []core.Expense) float64 {
	var total float64
	for _, e := range expenses {
		total += e.Amount
	}
	return total
}

func spentSince(expenses []core.Expense, from time.Time) float64 {
	var total float64
	for _, e := range expenses {
		if !e.OccurredOn.Before(from) {
			total += e.Amount
		}
	}
	return total
}

// WeeklySpent sums expenses on or after now minus seven days.
func WeeklySpent(expenses []core.Expense, now time.Time) float64 {
	return spentSince(expenses, now.Add(-7*24*time.Hour))
}

// MonthlySpent sums expenses on or after midnight of the same day last month.
// Days missing from the previous month roll forward (Mar 31 -> Mar 3).
func MonthlySpent(expenses []core.Expense, now time.Time) float64 {
	from := time.Date(now.Year(), now.Month()-1, now.Day(), 0, 0, 0, 0, now.Location())
	return spentSince(expenses, from)
}

func BudgetPercentage(spent, budget float64) int {
	if budget <= 0 {
		return 0
	}
	return round(spent / budget * 100)
}

// Remaining may be negative when the budget is overspent.
func Remaining(budget, spent float64) float64 {
	return budget - spent
}

func Summarize(budget float64, expenses []core.Expense, now time.Time) BudgetSummary {
	spent := TotalSpent(expenses)
	return BudgetSummary{
		TotalBudget:  budget,
		TotalSpent:   spent,
		Remaining:    Remaining(budget, spent),
		WeeklySpent:  WeeklySpent(expenses, now),
		MonthlySpent: MonthlySpent(expenses, now),
		Percentage:   BudgetPercentage(spent, budget),
	}
}

// BudgetAlert returns nil below 80%.
func BudgetAlert(percentage int) *Alert {
	switch {
	case percentage >= 100:
		return &Alert{
			Severity: SeverityDanger,
			Title:    "Budget Exceeded!",
			Message:  "You have exceeded your budget. Consider reviewing your expenses.",
		}
	case percentage >= 90:
		return &Alert{
			Severity: SeverityDanger,
			Title:    "Budget Alert",
			Message:  fmt.Sprintf("You've spent %d%% of your budget. Budget exceeded soon!", percentage),
		}
	case percentage >= 80:
		return &Alert{
			Severity: SeverityWarning,
			Title:    "Budget Alert",
			Message:  fmt.Sprintf("You've spent %d%% of your budget. Try to reduce non-essential expenses.", percentage),
		}
	}
	return nil
}

// DailyAverage divides the spend of the trailing window by its length in
// days, not by the number of days that had activity.
func DailyAverage(expenses []core.Expense, windowDays int, now time.Time) float64 {
	if windowDays <= 0 {
		return 0
	}
	from := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	return spentSince(expenses, from) / float64(windowDays)
}

// PredictExhaustion uses the last seven days of spending. It returns nil when
// nothing is left or nothing is being spent.
func PredictExhaustion(budget float64, expenses []core.Expense, now time.Time) *Exhaustion {
	remaining := Remaining(budget, TotalSpent(expenses))
	avg := DailyAverage(expenses, 7, now)
	if remaining <= 0 || avg <= 0 {
		return nil
	}
	days := int(math.Floor(remaining / avg))
	return &Exhaustion{
		DailyAverage:  avg,
		DaysRemaining: days,
		Date:          now.AddDate(0, 0, days),
	}
}

// FilterEssential keeps the expenses whose essential flag equals essential.
func FilterEssential(expenses []core.Expense, essential bool) []core.Expense {
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.IsEssential == essential {
			out = append(out, e)
		}
	}
	return out
}

package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"tipid/internal/core"
)

// PriceComparison compares what a user pays for an item with a market price.
type PriceComparison struct {
	Item            string  `json:"item"`
	Category        string  `json:"category"`
	UserPrice       float64 `json:"userPrice"`
	MarketPrice     float64 `json:"marketPrice"`
	Variance        float64 `json:"variance"`
	VariancePercent int     `json:"variancePercent"`
	Overpaying      bool    `json:"overpaying"`
	Message         string  `json:"message"`
}

// InsightInput is everything the alerts tab looks at. Summary is nil when
// the user has no active budget and Goal is nil when there is no goal.
type InsightInput struct {
	Summary  *BudgetSummary
	Expenses []core.Expense
	Goal     *core.SavingsGoal
	Now      time.Time
}

func ComparePrice(userPrice, marketPrice float64) PriceComparison {
	c := PriceComparison{
		UserPrice:   userPrice,
		MarketPrice: marketPrice,
		Variance:    userPrice - marketPrice,
	}
	if marketPrice > 0 {
		c.VariancePercent = round(c.Variance / marketPrice * 100)
	}
	c.Overpaying = c.Variance > 0
	switch {
	case c.VariancePercent > 0:
		c.Message = fmt.Sprintf("You are paying %d%% more than average.", c.VariancePercent)
	case c.VariancePercent < 0:
		c.Message = fmt.Sprintf("You are paying %d%% less than average.", -c.VariancePercent)
	default:
		c.Message = "You are paying the average price."
	}
	return c
}

// AverageItemPrice averages the expenses in category whose description
// mentions item, on or after from. ok is false when nothing matches.
func AverageItemPrice(expenses []core.Expense, category, item string, from time.Time) (float64, bool) {
	item = strings.ToLower(strings.TrimSpace(item))
	var sum float64
	var n int
	for _, e := range expenses {
		if !strings.EqualFold(e.Category, category) || e.OccurredOn.Before(from) {
			continue
		}
		if item != "" && !strings.Contains(strings.ToLower(e.Description), item) {
			continue
		}
		sum += e.Amount
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Insights builds the alert list: the budget alert, a week-over-week
// non-essential increase, and a success note when under budget while saving.
func Insights(in InsightInput) []Alert {
	var alerts []Alert
	if in.Summary != nil {
		if a := BudgetAlert(in.Summary.Percentage); a != nil {
			alerts = append(alerts, *a)
		}
	}

	const week = 7 * 24 * time.Hour
	nonEssential := FilterEssential(in.Expenses, false)
	thisWeek := sumWithin(nonEssential, in.Now.Add(-week), in.Now, false)
	lastWeek := sumWithin(nonEssential, in.Now.Add(-2*week), in.Now.Add(-week), true)
	if thisWeek > lastWeek {
		alerts = append(alerts, Alert{
			Severity: SeverityInfo,
			Title:    "Spending Up",
			Message:  "Non-essential expenses increased this week.",
		})
	}

	if in.Summary != nil && in.Summary.Percentage < 80 && in.Goal != nil && in.Goal.SavedAmount > 0 {
		alerts = append(alerts, Alert{
			Severity: SeveritySuccess,
			Title:    "On Track",
			Message:  "Staying under budget helped increase your savings.",
		})
	}
	return alerts
}

// FormatCurrency renders amounts the way the dashboard shows them, with
// thousands separators and at most two decimals ("₱12,345.5").
func FormatCurrency(symbol string, amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = math.Abs(amount)
	}
	return sign + symbol + humanize.CommafWithDigits(amount, 2)
}

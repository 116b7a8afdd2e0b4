package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipid/internal/core"
	"tipid/internal/engine"
)

func TestDashboardBudgetAlerts(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ann")
	require.True(t, f.budgets.Create(f.ctx, u.ID, BudgetInput{Amount: "5000", Timeframe: "week"}).Success)
	require.True(t, f.expenses.Create(f.ctx, u.ID, ExpenseInput{Amount: "1200", Category: "Food & Dining", Description: "groceries", Date: "2025-03-12", IsEssential: true}).Success)

	r := f.dashboard.Load(f.ctx, f.sess(u), testNow)
	require.True(t, r.Success, r.Message)
	d := r.Data
	assert.Equal(t, 5000.0, d.Summary.TotalBudget)
	assert.Equal(t, 1200.0, d.Summary.TotalSpent)
	assert.Equal(t, 3800.0, d.Summary.Remaining)
	assert.Equal(t, 24, d.Summary.Percentage)
	assert.Nil(t, d.Alert)
	require.NotNil(t, d.Budget)

	require.True(t, f.expenses.Create(f.ctx, u.ID, ExpenseInput{Amount: "3000", Category: "Shopping", Description: "shoes", Date: "2025-03-12"}).Success)

	d = f.dashboard.Load(f.ctx, f.sess(u), testNow).Data
	assert.Equal(t, 84, d.Summary.Percentage)
	require.NotNil(t, d.Alert)
	assert.Equal(t, engine.SeverityWarning, d.Alert.Severity)
	assert.Len(t, d.Breakdown, 2)
	assert.Len(t, d.Recent, 2)
}

func TestDashboardSeedsGoalWithoutBudget(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ann")

	r := f.dashboard.Load(f.ctx, f.sess(u), testNow)
	require.True(t, r.Success, r.Message)
	d := r.Data
	assert.Nil(t, d.Budget)
	assert.Nil(t, d.Alert)
	assert.Nil(t, d.Exhaustion)
	assert.Zero(t, d.Summary.Percentage)
	assert.NotNil(t, d.Recent)
	assert.NotNil(t, d.Alerts)
	require.NotNil(t, d.Goal)
	assert.Equal(t, DefaultGoalName, d.Goal.Name)
	require.NotNil(t, d.GoalProgress)
	assert.Equal(t, 60, d.GoalProgress.Percentage)
	assert.Equal(t, 6000.0, d.SavingsRates[core.RateDaily])
	assert.Equal(t, 200.0, d.SavingsRates[core.RateMonthly])
	assert.Nil(t, d.TimeToGoal, "no leftover budget to contribute")
}

func TestDashboardGoalRatesAndTimeToGoal(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ann")
	require.True(t, f.budgets.Create(f.ctx, u.ID, BudgetInput{Amount: "4000", Timeframe: "month"}).Success)
	require.True(t, f.expenses.Create(f.ctx, u.ID, ExpenseInput{Amount: "1000", Category: "Food & Dining", Description: "groceries", Date: "2025-03-12"}).Success)

	d := f.dashboard.Load(f.ctx, f.sess(u), testNow).Data
	require.NotNil(t, d.Goal)
	assert.Equal(t, 6000.0, d.SavingsRates[core.RateDaily])
	assert.InDelta(t, 857.14, d.SavingsRates[core.RateWeekly], 0.01)
	assert.Equal(t, 200.0, d.SavingsRates[core.RateMonthly])
	require.NotNil(t, d.TimeToGoal)
	assert.Equal(t, engine.Estimate{Months: 2, Days: 60}, *d.TimeToGoal)
}

func TestDashboardSweepsLapsedBudget(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ann")
	goal, err := f.store.CreateGoal(f.ctx, core.SavingsGoal{OwnerID: u.ID, Name: "Phone", TargetAmount: 15000, SavedAmount: 9000})
	require.NoError(t, err)
	b := f.lapsedBudget(t, u.ID, 1000, goal.ID)
	f.spend(t, u.ID, b.ID, 600)

	r := f.dashboard.Load(f.ctx, f.sess(u), testNow)
	require.True(t, r.Success, r.Message)
	assert.Nil(t, r.Data.Budget, "lapsed budget is no longer active")
	require.NotNil(t, r.Data.Goal)
	assert.Equal(t, 9400.0, r.Data.Goal.SavedAmount)

	r = f.dashboard.Load(f.ctx, f.sess(u), testNow)
	assert.Equal(t, 9400.0, r.Data.Goal.SavedAmount)
}

func TestMonthlyRemaining(t *testing.T) {
	assert.Zero(t, monthlyRemaining(nil, 100))
	assert.InDelta(t, 520.0, monthlyRemaining(&core.Budget{Timeframe: core.TimeframeWeek}, 120), 1e-9)
	assert.Equal(t, 120.0, monthlyRemaining(&core.Budget{Timeframe: core.TimeframeMonth}, 120))
}

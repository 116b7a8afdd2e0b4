package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"tipid/internal/core"
	"tipid/internal/engine"
	"tipid/internal/log"
	"tipid/internal/session"
	"tipid/internal/store"
)

const recentExpenses = 5

// Dashboard is everything the home screen and analytics tabs show.
// Budget, Alert, Exhaustion and the goal fields are nil when absent.
type Dashboard struct {
	Summary      engine.BudgetSummary         `json:"summary"`
	Budget       *core.Budget                 `json:"budget"`
	Alert        *engine.Alert                `json:"alert"`
	Breakdown    []engine.CategoryShare       `json:"breakdown"`
	Split        engine.Split                 `json:"split"`
	Donut        engine.Donut                 `json:"donut"`
	DailyTrend   []engine.TrendPoint          `json:"dailyTrend"`
	WeeklyTrend  []engine.TrendPoint          `json:"weeklyTrend"`
	MonthlyTrend []engine.TrendPoint          `json:"monthlyTrend"`
	TrendChange  engine.TrendChange           `json:"trendChange"`
	Exhaustion   *engine.Exhaustion           `json:"exhaustion"`
	Goal         *core.SavingsGoal            `json:"goal"`
	GoalProgress *engine.GoalProgress         `json:"goalProgress"`
	MonthsToGoal *engine.Projection           `json:"monthsToGoal"`
	SavingsRates map[core.SavingsRate]float64 `json:"savingsRates"`
	TimeToGoal   *engine.Estimate             `json:"timeToGoal"` // at the current monthly leftover
	Alerts       []engine.Alert               `json:"alerts"`
	Recent       []core.Expense               `json:"recent"`
}

type DashboardService struct {
	store   store.Store
	budgets *BudgetService
	goals   *GoalService
	logger  *log.Logger
}

func NewDashboardService(st store.Store, budgets *BudgetService, goals *GoalService, logger *log.Logger) *DashboardService {
	return &DashboardService{
		store:   st,
		budgets: budgets,
		goals:   goals,
		logger:  logger.WithComponent(log.ComponentDashboard),
	}
}

// Load finalizes lapsed budgets, then reads the active budget, the
// expenses and the goal concurrently and derives the dashboard. A failing
// sweep is logged and does not block the rest.
func (s *DashboardService) Load(ctx context.Context, sess session.Session, now time.Time) Result[Dashboard] {
	owner := sess.UserID

	if _, err := s.budgets.FinalizeExpired(ctx, owner, now); err != nil {
		s.logger.ErrorContext(ctx, "Budget sweep failed",
			log.FieldUserID, owner, log.FieldOperation, log.OpSweep, log.FieldError, err)
	}

	var (
		budget   *core.Budget
		expenses []core.Expense
		goal     *core.SavingsGoal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.store.ActiveBudget(gctx, owner)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		budget = &b
		return nil
	})
	g.Go(func() error {
		list, err := s.store.ListExpenses(gctx, owner, store.ExpenseFilter{})
		expenses = list
		return err
	})
	g.Go(func() error {
		gl, err := s.goals.latestOrDefault(gctx, owner)
		if err != nil {
			return err
		}
		goal = &gl
		return nil
	})
	if err := g.Wait(); err != nil {
		logFailure(ctx, s.logger, "Failed to load dashboard", err, log.OpRead, owner)
		return fail[Dashboard]("Failed to load dashboard")
	}

	return ok("Dashboard loaded", Build(budget, expenses, goal, now))
}

// Build derives the dashboard from already loaded records. The budget
// figures use only the expenses attached to the active budget; analytics
// use every expense.
func Build(budget *core.Budget, expenses []core.Expense, goal *core.SavingsGoal, now time.Time) Dashboard {
	if expenses == nil {
		expenses = []core.Expense{}
	}

	var attached []core.Expense
	amount := 0.0
	if budget != nil {
		amount = budget.Amount
		for _, e := range expenses {
			if e.BudgetID == budget.ID {
				attached = append(attached, e)
			}
		}
	}

	summary := engine.Summarize(amount, attached, now)
	summary.WeeklySpent = engine.WeeklySpent(expenses, now)
	summary.MonthlySpent = engine.MonthlySpent(expenses, now)

	breakdown := engine.CategoryBreakdown(expenses)
	weekly := engine.Trend(expenses, engine.Weekly, now)

	d := Dashboard{
		Summary:      summary,
		Budget:       budget,
		Breakdown:    breakdown,
		Split:        engine.EssentialSplit(expenses),
		Donut:        engine.DonutStops(breakdown, engine.DefaultPalette),
		DailyTrend:   engine.Trend(expenses, engine.Daily, now),
		WeeklyTrend:  weekly,
		MonthlyTrend: engine.Trend(expenses, engine.Monthly, now),
		TrendChange:  engine.CompareTrend(weekly),
		Goal:         goal,
		Recent:       expenses[:min(recentExpenses, len(expenses))],
	}

	in := engine.InsightInput{Expenses: expenses, Goal: goal, Now: now}
	if budget != nil {
		d.Alert = engine.BudgetAlert(summary.Percentage)
		d.Exhaustion = engine.PredictExhaustion(budget.Amount, attached, now)
		in.Summary = &summary
	}
	d.Alerts = engine.Insights(in)
	if d.Alerts == nil {
		d.Alerts = []engine.Alert{}
	}

	if goal != nil {
		progress := engine.Progress(*goal)
		d.GoalProgress = &progress
		monthly := monthlyRemaining(budget, summary.Remaining)
		projection := engine.MonthsToGoal(*goal, monthly)
		d.MonthsToGoal = &projection
		d.SavingsRates = make(map[core.SavingsRate]float64, 3)
		for _, rate := range []core.SavingsRate{core.RateDaily, core.RateWeekly, core.RateMonthly} {
			d.SavingsRates[rate] = engine.SavingsRate(*goal, rate)
		}
		if est, ok := engine.TimeToGoal(*goal, monthly); ok {
			d.TimeToGoal = &est
		}
	}
	return d
}

// monthlyRemaining scales the unspent budget of a weekly period to a month.
func monthlyRemaining(budget *core.Budget, remaining float64) float64 {
	if budget == nil {
		return 0
	}
	if budget.Timeframe == core.TimeframeWeek {
		return remaining * 52 / 12
	}
	return remaining
}

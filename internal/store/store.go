// Package store declares the persistence ports used by the services.
//
// Implementations return core.ErrNotFound for missing records and
// core.ErrConflict for uniqueness violations, wrapped with context.
package store

import (
	"context"
	"time"

	"tipid/internal/core"
)

// ExpenseFilter narrows ListExpenses. Zero values mean "no constraint";
// From and To are inclusive calendar dates.
type ExpenseFilter struct {
	From      time.Time
	To        time.Time
	Category  string
	Essential *bool
	BudgetID  string
}

// Match reports whether e passes the filter.
func (f ExpenseFilter) Match(e core.Expense) bool {
	if !f.From.IsZero() && e.OccurredOn.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.OccurredOn.After(f.To) {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Essential != nil && e.IsEssential != *f.Essential {
		return false
	}
	if f.BudgetID != "" && e.BudgetID != f.BudgetID {
		return false
	}
	return true
}

// Session is a persisted login.
type Session struct {
	Token        string
	UserID       string
	ExpiresAt    time.Time
	LastActivity time.Time
}

type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	UserByID(ctx context.Context, id string) (core.User, error)
	UserByUsername(ctx context.Context, username string) (core.User, error)
	UserByEmail(ctx context.Context, email string) (core.User, error)
}

type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, ownerID, id string) (core.Expense, error)
	// ListExpenses returns newest first.
	ListExpenses(ctx context.Context, ownerID string, f ExpenseFilter) ([]core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, ownerID, id string) error
}

type BudgetStore interface {
	// CreateBudget deactivates every other budget of the owner and inserts
	// b as the active one, atomically.
	CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
	ActiveBudget(ctx context.Context, ownerID string) (core.Budget, error)
	UpdateBudget(ctx context.Context, b core.Budget) error
	// DueBudgets lists unprocessed budgets whose end date is before now.
	DueBudgets(ctx context.Context, ownerID string, now time.Time) ([]core.Budget, error)
	OwnersWithDueBudgets(ctx context.Context, now time.Time) ([]string, error)
	// FinalizeBudget marks b processed and inactive and, when transfer is
	// positive and b has a goal, adds transfer to that goal, atomically.
	// It reports false without changing anything if b was already processed.
	FinalizeBudget(ctx context.Context, b core.Budget, transfer float64) (bool, error)
}

type GoalStore interface {
	CreateGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, error)
	GetGoal(ctx context.Context, ownerID, id string) (core.SavingsGoal, error)
	LatestGoal(ctx context.Context, ownerID string) (core.SavingsGoal, error)
	UpdateGoal(ctx context.Context, g core.SavingsGoal) error
	AddToGoal(ctx context.Context, ownerID, id string, amount float64) (core.SavingsGoal, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	// LookupSession returns the session and its user while it is unexpired.
	LookupSession(ctx context.Context, token string, now time.Time) (Session, core.User, error)
	RenewSession(ctx context.Context, token string, now, expiresAt time.Time) error
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type PriceStore interface {
	MarketPrice(ctx context.Context, item string) (core.MarketPrice, error)
	ListMarketPrices(ctx context.Context) ([]core.MarketPrice, error)
}

// Store is the full persistence backend.
type Store interface {
	UserStore
	ExpenseStore
	BudgetStore
	GoalStore
	SessionStore
	PriceStore
	Ping(ctx context.Context) error
	Close() error
}

// DefaultMarketPrices are the reference prices every backend starts with.
var DefaultMarketPrices = []core.MarketPrice{
	{Category: "Food & Dining", Item: "Tomatoes", Price: 110},
	{Category: "Food & Dining", Item: "Rice", Price: 55},
	{Category: "Food & Dining", Item: "Chicken", Price: 190},
	{Category: "Transportation", Item: "Gasoline", Price: 62},
	{Category: "Bills & Utilities", Item: "Electricity", Price: 12},
}

// Package storetest is a conformance suite every store.Store must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tipid/internal/core"
	"tipid/internal/store"
)

// Suite runs against a fresh store per test.
type Suite struct {
	suite.Suite
	New   func(t *testing.T) store.Store
	store store.Store
	ctx   context.Context
	now   time.Time
}

// Run executes the suite with stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	suite.Run(t, &Suite{New: newStore})
}

func (s *Suite) SetupTest() {
	s.store = s.New(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
}

func (s *Suite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *Suite) day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *Suite) user(name string) core.User {
	u, err := s.store.CreateUser(s.ctx, core.User{
		Username: name,
		Email:    name + "@x.com",
		FullName: name,
		Password: "plain$secret1",
	})
	s.Require().NoError(err)
	return u
}

func (s *Suite) TestUsersAreUnique() {
	u := s.user("anncruz")
	s.NotEmpty(u.ID)

	_, err := s.store.CreateUser(s.ctx, core.User{Username: "anncruz", Email: "other@x.com"})
	s.True(errors.Is(err, core.ErrConflict), "duplicate username: %v", err)

	_, err = s.store.CreateUser(s.ctx, core.User{Username: "other", Email: "anncruz@x.com"})
	s.True(errors.Is(err, core.ErrConflict), "duplicate email: %v", err)

	got, err := s.store.UserByUsername(s.ctx, "anncruz")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)
	s.Equal("plain$secret1", got.Password)

	got, err = s.store.UserByEmail(s.ctx, "anncruz@x.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	_, err = s.store.UserByUsername(s.ctx, "AnnCruz")
	s.True(errors.Is(err, core.ErrNotFound), "usernames match exactly: %v", err)
}

func (s *Suite) TestExpenseCRUDAndFilters() {
	u := s.user("ann")
	other := s.user("bob")

	essential := true
	mk := func(owner string, amount float64, cat string, on time.Time, ess bool) core.Expense {
		e, err := s.store.CreateExpense(s.ctx, core.Expense{
			OwnerID: owner, Amount: amount, Category: cat, Description: cat + " item",
			OccurredOn: on, IsEssential: ess,
		})
		s.Require().NoError(err)
		return e
	}
	a := mk(u.ID, 100, "Food & Dining", s.day(2025, 3, 1), true)
	mk(u.ID, 50, "Shopping", s.day(2025, 3, 5), false)
	mk(u.ID, 25, "Food & Dining", s.day(2025, 2, 1), true)
	mk(other.ID, 999, "Food & Dining", s.day(2025, 3, 1), true)

	all, err := s.store.ListExpenses(s.ctx, u.ID, store.ExpenseFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("2025-03-05", all[0].OccurredOn.Format(core.DateLayout), "newest first")

	ranged, err := s.store.ListExpenses(s.ctx, u.ID, store.ExpenseFilter{From: s.day(2025, 3, 1), To: s.day(2025, 3, 5)})
	s.Require().NoError(err)
	s.Len(ranged, 2)

	food, err := s.store.ListExpenses(s.ctx, u.ID, store.ExpenseFilter{Category: "Food & Dining"})
	s.Require().NoError(err)
	s.Len(food, 2)

	ess, err := s.store.ListExpenses(s.ctx, u.ID, store.ExpenseFilter{Essential: &essential})
	s.Require().NoError(err)
	s.Len(ess, 2)

	a.Amount = 120
	a.Description = "groceries"
	s.Require().NoError(s.store.UpdateExpense(s.ctx, a))
	got, err := s.store.GetExpense(s.ctx, u.ID, a.ID)
	s.Require().NoError(err)
	s.Equal(120.0, got.Amount)
	s.Equal("groceries", got.Description)

	_, err = s.store.GetExpense(s.ctx, other.ID, a.ID)
	s.True(errors.Is(err, core.ErrNotFound), "other owners cannot read: %v", err)
	s.True(errors.Is(s.store.DeleteExpense(s.ctx, other.ID, a.ID), core.ErrNotFound))

	s.Require().NoError(s.store.DeleteExpense(s.ctx, u.ID, a.ID))
	_, err = s.store.GetExpense(s.ctx, u.ID, a.ID)
	s.True(errors.Is(err, core.ErrNotFound))
}

func (s *Suite) budget(owner string, amount float64, start time.Time, tf core.Timeframe, goalID string) core.Budget {
	b, err := s.store.CreateBudget(s.ctx, core.Budget{
		OwnerID: owner, Amount: amount, Timeframe: tf,
		StartDate: start, EndDate: tf.EndDate(start), GoalID: goalID,
	})
	s.Require().NoError(err)
	return b
}

func (s *Suite) TestSingleActiveBudget() {
	u := s.user("ann")
	first := s.budget(u.ID, 1000, s.day(2025, 3, 1), core.TimeframeWeek, "")
	second := s.budget(u.ID, 5000, s.day(2025, 3, 10), core.TimeframeMonth, "")

	active, err := s.store.ActiveBudget(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, active.ID)
	s.NotEqual(first.ID, active.ID)

	active.Amount = 6000
	active.EndDate = active.Timeframe.EndDate(active.StartDate)
	s.Require().NoError(s.store.UpdateBudget(s.ctx, active))
	active, err = s.store.ActiveBudget(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(6000.0, active.Amount)

	other := s.user("bob")
	_, err = s.store.ActiveBudget(s.ctx, other.ID)
	s.True(errors.Is(err, core.ErrNotFound))
}

func (s *Suite) TestFinalizeBudgetTransfersOnce() {
	u := s.user("ann")
	goal, err := s.store.CreateGoal(s.ctx, core.SavingsGoal{OwnerID: u.ID, Name: "Phone", TargetAmount: 15000, SavedAmount: 9000})
	s.Require().NoError(err)

	b := s.budget(u.ID, 1000, s.day(2025, 3, 1), core.TimeframeWeek, goal.ID)

	due, err := s.store.DueBudgets(s.ctx, u.ID, s.now)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	owners, err := s.store.OwnersWithDueBudgets(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal([]string{u.ID}, owners)

	applied, err := s.store.FinalizeBudget(s.ctx, b, 400)
	s.Require().NoError(err)
	s.True(applied)

	applied, err = s.store.FinalizeBudget(s.ctx, b, 400)
	s.Require().NoError(err)
	s.False(applied)

	g, err := s.store.GetGoal(s.ctx, u.ID, goal.ID)
	s.Require().NoError(err)
	s.Equal(9400.0, g.SavedAmount)

	due, err = s.store.DueBudgets(s.ctx, u.ID, s.now)
	s.Require().NoError(err)
	s.Empty(due)
	_, err = s.store.ActiveBudget(s.ctx, u.ID)
	s.True(errors.Is(err, core.ErrNotFound), "processed budgets are no longer active")
}

func (s *Suite) TestFinalizeBudgetConcurrentCallersApplyOnce() {
	u := s.user("ann")
	goal, err := s.store.CreateGoal(s.ctx, core.SavingsGoal{OwnerID: u.ID, Name: "Phone", TargetAmount: 15000})
	s.Require().NoError(err)
	b := s.budget(u.ID, 1000, s.day(2025, 3, 1), core.TimeframeWeek, goal.ID)

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.FinalizeBudget(s.ctx, b, 250)
			if err == nil && ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, applied)

	g, err := s.store.GetGoal(s.ctx, u.ID, goal.ID)
	s.Require().NoError(err)
	s.Equal(250.0, g.SavedAmount)
}

func (s *Suite) TestGoals() {
	u := s.user("ann")
	_, err := s.store.LatestGoal(s.ctx, u.ID)
	s.True(errors.Is(err, core.ErrNotFound))

	first, err := s.store.CreateGoal(s.ctx, core.SavingsGoal{OwnerID: u.ID, Name: "Phone", TargetAmount: 100, CreatedAt: s.now.Add(-time.Hour)})
	s.Require().NoError(err)
	second, err := s.store.CreateGoal(s.ctx, core.SavingsGoal{OwnerID: u.ID, Name: "Laptop", TargetAmount: 500, CreatedAt: s.now})
	s.Require().NoError(err)

	latest, err := s.store.LatestGoal(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)

	first.SavedAmount = 40
	s.Require().NoError(s.store.UpdateGoal(s.ctx, first))
	g, err := s.store.AddToGoal(s.ctx, u.ID, first.ID, 15)
	s.Require().NoError(err)
	s.Equal(55.0, g.SavedAmount)

	_, err = s.store.AddToGoal(s.ctx, "nobody", first.ID, 15)
	s.True(errors.Is(err, core.ErrNotFound))
}

func (s *Suite) TestSessions() {
	u := s.user("ann")
	sess := store.Session{Token: "tok", UserID: u.ID, ExpiresAt: s.now.Add(time.Hour), LastActivity: s.now}
	s.Require().NoError(s.store.CreateSession(s.ctx, sess))

	got, owner, err := s.store.LookupSession(s.ctx, "tok", s.now)
	s.Require().NoError(err)
	s.Equal(u.ID, got.UserID)
	s.Equal("ann", owner.Username)

	_, _, err = s.store.LookupSession(s.ctx, "tok", s.now.Add(2*time.Hour))
	s.True(errors.Is(err, core.ErrNotFound), "expired sessions are not returned")

	s.Require().NoError(s.store.RenewSession(s.ctx, "tok", s.now, s.now.Add(3*time.Hour)))
	_, _, err = s.store.LookupSession(s.ctx, "tok", s.now.Add(2*time.Hour))
	s.NoError(err)

	n, err := s.store.DeleteExpiredSessions(s.ctx, s.now.Add(4*time.Hour))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	s.Require().NoError(s.store.CreateSession(s.ctx, store.Session{Token: "t2", UserID: u.ID, ExpiresAt: s.now.Add(time.Hour)}))
	s.Require().NoError(s.store.DeleteSession(s.ctx, "t2"))
	_, _, err = s.store.LookupSession(s.ctx, "t2", s.now)
	s.True(errors.Is(err, core.ErrNotFound))
}

func (s *Suite) TestMarketPrices() {
	p, err := s.store.MarketPrice(s.ctx, "tomatoes")
	s.Require().NoError(err)
	s.Equal(110.0, p.Price)
	s.Equal("Food & Dining", p.Category)

	_, err = s.store.MarketPrice(s.ctx, "caviar")
	s.True(errors.Is(err, core.ErrNotFound))

	all, err := s.store.ListMarketPrices(s.ctx)
	s.Require().NoError(err)
	require.Len(s.T(), all, len(store.DefaultMarketPrices))
}

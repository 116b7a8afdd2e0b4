package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipid/internal/amqp"
	"tipid/internal/core"
	"tipid/internal/log"
	"tipid/internal/services"
	"tipid/internal/store/memory"
)

var testNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

type fakeExporter struct {
	mu       sync.Mutex
	exported []core.Expense
	owners   []string
	removed  []string
	err      error
}

func (f *fakeExporter) Export(_ context.Context, e core.Expense, owner string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.exported = append(f.exported, e)
	f.owners = append(f.owners, owner)
	return "2025 Expenses!A2:G2", nil
}

func (f *fakeExporter) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.removed = append(f.removed, id)
	return nil
}

type env struct {
	ctx      context.Context
	store    *memory.Store
	budgets  *services.BudgetService
	exporter *fakeExporter
	worker   *EventWorker
	owner    core.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memory.New()
	budgets := services.NewBudgetService(st, nil, log.Discard())
	budgets.SetClock(func() time.Time { return testNow }, time.UTC)
	exp := &fakeExporter{}
	w := NewEventWorker(st, budgets, exp, log.Discard())
	w.now = func() time.Time { return testNow }

	owner, err := st.CreateUser(context.Background(), core.User{Username: "anncruz", Email: "ann@x.com", FullName: "Ann", Password: "plain$secret1"})
	require.NoError(t, err)
	return &env{ctx: context.Background(), store: st, budgets: budgets, exporter: exp, worker: w, owner: owner}
}

func (e *env) expense(t *testing.T) core.Expense {
	t.Helper()
	x, err := e.store.CreateExpense(e.ctx, core.Expense{
		OwnerID: e.owner.ID, Amount: 120, Category: "Food & Dining", Description: "lunch",
		OccurredOn: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return x
}

// lapsed stores a week budget that ended before testNow, linked to a goal.
func (e *env) lapsed(t *testing.T, owner string, amount float64) core.SavingsGoal {
	t.Helper()
	g, err := e.store.CreateGoal(e.ctx, core.SavingsGoal{OwnerID: owner, Name: "Phone", TargetAmount: 15000})
	require.NoError(t, err)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = e.store.CreateBudget(e.ctx, core.Budget{
		OwnerID: owner, Amount: amount, Timeframe: core.TimeframeWeek,
		StartDate: start, EndDate: core.TimeframeWeek.EndDate(start), GoalID: g.ID,
	})
	require.NoError(t, err)
	return g
}

func TestHandleExpenseCreatedExports(t *testing.T) {
	e := newEnv(t)
	x := e.expense(t)

	err := e.worker.HandleExpenseCreated(e.ctx, amqp.NewExpenseEvent(e.owner.ID, x.ID))
	require.NoError(t, err)
	require.Len(t, e.exporter.exported, 1)
	assert.Equal(t, x.ID, e.exporter.exported[0].ID)
	assert.Equal(t, "anncruz", e.exporter.owners[0])
}

func TestHandleExpenseCreatedSkipsDeletedExpense(t *testing.T) {
	e := newEnv(t)

	err := e.worker.HandleExpenseCreated(e.ctx, amqp.NewExpenseEvent(e.owner.ID, "gone"))
	require.NoError(t, err)
	assert.Empty(t, e.exporter.exported)
}

func TestHandleExpenseCreatedReturnsExportFailure(t *testing.T) {
	e := newEnv(t)
	x := e.expense(t)
	e.exporter.err = assert.AnError

	err := e.worker.HandleExpenseCreated(e.ctx, amqp.NewExpenseEvent(e.owner.ID, x.ID))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestHandleExpenseDeleted(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, e.worker.HandleExpenseDeleted(e.ctx, amqp.NewExpenseEvent(e.owner.ID, "exp-1")))
	assert.Equal(t, []string{"exp-1"}, e.exporter.removed)
}

func TestNilExporterSkips(t *testing.T) {
	e := newEnv(t)
	w := NewEventWorker(e.store, e.budgets, nil, log.Discard())
	x := e.expense(t)

	assert.NoError(t, w.HandleExpenseCreated(e.ctx, amqp.NewExpenseEvent(e.owner.ID, x.ID)))
	assert.NoError(t, w.HandleExpenseDeleted(e.ctx, amqp.NewExpenseEvent(e.owner.ID, x.ID)))
}

func TestHandleBudgetSweep(t *testing.T) {
	e := newEnv(t)
	g := e.lapsed(t, e.owner.ID, 1000)

	require.NoError(t, e.worker.HandleBudgetSweep(e.ctx, amqp.NewBudgetSweepEvent(e.owner.ID)))
	got, err := e.store.GetGoal(e.ctx, e.owner.ID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.SavedAmount)

	// Redelivery does not credit twice.
	require.NoError(t, e.worker.HandleBudgetSweep(e.ctx, amqp.NewBudgetSweepEvent(e.owner.ID)))
	got, err = e.store.GetGoal(e.ctx, e.owner.ID, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got.SavedAmount)
}

type countingPruner struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPruner) Prune(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 0, nil
}

func TestSweeperSweepOnce(t *testing.T) {
	e := newEnv(t)
	bob, err := e.store.CreateUser(e.ctx, core.User{Username: "bob", Email: "bob@x.com", FullName: "Bob", Password: "plain$secret1"})
	require.NoError(t, err)
	e.lapsed(t, e.owner.ID, 100)
	e.lapsed(t, bob.ID, 100)

	s := NewSweeper(e.budgets, nil, SweeperConfig{}, log.Discard())
	s.now = func() time.Time { return testNow }

	assert.Equal(t, 2, s.SweepOnce(e.ctx))
	assert.Zero(t, s.SweepOnce(e.ctx))
}

func TestSweeperLifecycle(t *testing.T) {
	e := newEnv(t)
	g := e.lapsed(t, e.owner.ID, 300)

	pruner := &countingPruner{}
	s := NewSweeper(e.budgets, pruner, SweeperConfig{SweepInterval: time.Hour, PruneInterval: 5 * time.Millisecond}, log.Discard())
	s.now = func() time.Time { return testNow }

	require.NoError(t, s.Start(e.ctx))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(e.ctx), "second start fails")

	// The startup sweep runs before the first tick.
	require.Eventually(t, func() bool {
		got, err := e.store.GetGoal(e.ctx, e.owner.ID, g.ID)
		return err == nil && got.SavedAmount == 300
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		pruner.mu.Lock()
		defer pruner.mu.Unlock()
		return pruner.calls > 0
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.False(t, s.IsRunning())
	assert.NoError(t, s.Stop(ctx), "stopping twice is a no-op")
}

func TestSweeperRunStopsWithContext(t *testing.T) {
	e := newEnv(t)
	s := NewSweeper(e.budgets, nil, SweeperConfig{SweepInterval: time.Hour}, log.Discard())

	ctx, cancel := context.WithCancel(e.ctx)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, s.IsRunning, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

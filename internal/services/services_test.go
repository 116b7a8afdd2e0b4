package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tipid/internal/auth"
	"tipid/internal/core"
	"tipid/internal/log"
	"tipid/internal/session"
	"tipid/internal/store/memory"
)

// Wednesday afternoon.
var testNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu      sync.Mutex
	created []string
	deleted []string
	swept   []string
	err     error
}

func (p *recordingPublisher) PublishExpenseCreated(_ context.Context, _, expenseID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, expenseID)
	return p.err
}

func (p *recordingPublisher) PublishExpenseDeleted(_ context.Context, _, expenseID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, expenseID)
	return p.err
}

func (p *recordingPublisher) PublishBudgetSweep(_ context.Context, ownerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.swept = append(p.swept, ownerID)
	return p.err
}

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	publisher *recordingPublisher
	sessions  *session.Manager
	auth      *AuthService
	expenses  *ExpenseService
	budgets   *BudgetService
	goals     *GoalService
	dashboard *DashboardService
	prices    *PriceService
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := log.Discard()
	st := memory.New()
	pub := &recordingPublisher{}

	f := &fixture{ctx: context.Background(), store: st, publisher: pub, now: testNow}
	clock := func() time.Time { return f.now }

	f.sessions = session.NewManager(st, session.Options{TTL: time.Hour}, logger)
	f.sessions.SetClock(clock)
	f.auth = NewAuthService(st, f.sessions, auth.NewHasher(auth.SchemeBcrypt).WithCost(bcrypt.MinCost), logger)
	f.expenses = NewExpenseService(st, st, pub, logger)
	f.expenses.SetClock(clock, time.UTC)
	f.budgets = NewBudgetService(st, pub, logger)
	f.budgets.SetClock(clock, time.UTC)
	f.goals = NewGoalService(st, "₱", logger)
	f.dashboard = NewDashboardService(st, f.budgets, f.goals, logger)
	f.prices = NewPriceService(st, logger)
	return f
}

func (f *fixture) user(t *testing.T, name string) core.User {
	t.Helper()
	u, err := f.store.CreateUser(f.ctx, core.User{Username: name, Email: name + "@x.com", FullName: name, Password: "plain$secret1"})
	require.NoError(t, err)
	return u
}

func (f *fixture) sess(u core.User) session.Session {
	return session.Session{UserID: u.ID, Username: u.Username}
}

// Package memory is a process-local Store used by tests and by
// DATA_BACKEND=memory. Nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tipid/internal/core"
	"tipid/internal/store"
)

type Store struct {
	mu       sync.Mutex
	users    map[string]core.User
	expenses map[string]core.Expense
	budgets  map[string]core.Budget
	goals    map[string]core.SavingsGoal
	sessions map[string]store.Session
	prices   []core.MarketPrice
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[string]core.User),
		expenses: make(map[string]core.Expense),
		budgets:  make(map[string]core.Budget),
		goals:    make(map[string]core.SavingsGoal),
		sessions: make(map[string]store.Session),
		prices:   append([]core.MarketPrice(nil), store.DefaultMarketPrices...),
		now:      time.Now,
	}
}

func newID() string { return uuid.NewString() }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Users

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return core.User{}, fmt.Errorf("username %q: %w", u.Username, core.ErrConflict)
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return core.User{}, fmt.Errorf("email %q: %w", u.Email, core.ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByID(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
}

func (s *Store) UserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("email %q: %w", email, core.ErrNotFound)
}

// Expenses

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, ownerID, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (s *Store) ListExpenses(_ context.Context, ownerID string, f store.ExpenseFilter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.OwnerID == ownerID && f.Match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredOn.Equal(out[j].OccurredOn) {
			return out[i].OccurredOn.After(out[j].OccurredOn)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.expenses[e.ID]
	if !ok || old.OwnerID != e.OwnerID {
		return fmt.Errorf("expense %s: %w", e.ID, core.ErrNotFound)
	}
	e.CreatedAt = old.CreatedAt
	s.expenses[e.ID] = e
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	delete(s.expenses, id)
	return nil
}

// Budgets

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.budgets {
		if other.OwnerID == b.OwnerID && other.IsActive {
			other.IsActive = false
			s.budgets[id] = other
		}
	}
	if b.ID == "" {
		b.ID = newID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	b.IsActive = true
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) ActiveBudget(_ context.Context, ownerID string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.OwnerID == ownerID && b.IsActive {
			return b, nil
		}
	}
	return core.Budget{}, fmt.Errorf("active budget for %s: %w", ownerID, core.ErrNotFound)
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.budgets[b.ID]
	if !ok || old.OwnerID != b.OwnerID {
		return fmt.Errorf("budget %s: %w", b.ID, core.ErrNotFound)
	}
	b.CreatedAt = old.CreatedAt
	b.Processed = old.Processed
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) DueBudgets(_ context.Context, ownerID string, now time.Time) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.OwnerID == ownerID && !b.Processed && b.Expired(now) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndDate.Before(out[j].EndDate) })
	return out, nil
}

func (s *Store) OwnersWithDueBudgets(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, b := range s.budgets {
		if b.Processed || !b.Expired(now) {
			continue
		}
		if _, ok := seen[b.OwnerID]; !ok {
			seen[b.OwnerID] = struct{}{}
			out = append(out, b.OwnerID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) FinalizeBudget(_ context.Context, b core.Budget, transfer float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.budgets[b.ID]
	if !ok || cur.OwnerID != b.OwnerID {
		return false, fmt.Errorf("budget %s: %w", b.ID, core.ErrNotFound)
	}
	if cur.Processed {
		return false, nil
	}
	cur.Processed = true
	cur.IsActive = false
	s.budgets[b.ID] = cur

	if transfer > 0 && cur.GoalID != "" {
		if g, ok := s.goals[cur.GoalID]; ok && g.OwnerID == cur.OwnerID {
			g.SavedAmount += transfer
			s.goals[g.ID] = g
		}
	}
	return true, nil
}

// Goals

func (s *Store) CreateGoal(_ context.Context, g core.SavingsGoal) (core.SavingsGoal, error) {
	if err := g.Validate(); err != nil {
		return core.SavingsGoal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = newID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) GetGoal(_ context.Context, ownerID, id string) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.SavingsGoal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	return g, nil
}

func (s *Store) LatestGoal(_ context.Context, ownerID string) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest core.SavingsGoal
	found := false
	for _, g := range s.goals {
		if g.OwnerID != ownerID {
			continue
		}
		if !found || g.CreatedAt.After(latest.CreatedAt) {
			latest, found = g, true
		}
	}
	if !found {
		return core.SavingsGoal{}, fmt.Errorf("goal for %s: %w", ownerID, core.ErrNotFound)
	}
	return latest, nil
}

func (s *Store) UpdateGoal(_ context.Context, g core.SavingsGoal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.goals[g.ID]
	if !ok || old.OwnerID != g.OwnerID {
		return fmt.Errorf("goal %s: %w", g.ID, core.ErrNotFound)
	}
	g.CreatedAt = old.CreatedAt
	s.goals[g.ID] = g
	return nil
}

func (s *Store) AddToGoal(_ context.Context, ownerID, id string, amount float64) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.SavingsGoal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	g.SavedAmount += amount
	s.goals[id] = g
	return g, nil
}

// Sessions

func (s *Store) CreateSession(_ context.Context, sess store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[sess.UserID]; !ok {
		return fmt.Errorf("user %s: %w", sess.UserID, core.ErrNotFound)
	}
	s.sessions[sess.Token] = sess
	return nil
}

func (s *Store) LookupSession(_ context.Context, token string, now time.Time) (store.Session, core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok || !sess.ExpiresAt.After(now) {
		return store.Session{}, core.User{}, fmt.Errorf("session: %w", core.ErrNotFound)
	}
	u, ok := s.users[sess.UserID]
	if !ok {
		return store.Session{}, core.User{}, fmt.Errorf("session user: %w", core.ErrNotFound)
	}
	return sess, u, nil
}

func (s *Store) RenewSession(_ context.Context, token string, now, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return fmt.Errorf("session: %w", core.ErrNotFound)
	}
	sess.LastActivity = now
	sess.ExpiresAt = expiresAt
	s.sessions[token] = sess
	return nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for token, sess := range s.sessions {
		if !sess.ExpiresAt.After(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n, nil
}

// Prices

func (s *Store) MarketPrice(_ context.Context, item string) (core.MarketPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.prices {
		if strings.EqualFold(p.Item, strings.TrimSpace(item)) {
			return p, nil
		}
	}
	return core.MarketPrice{}, fmt.Errorf("market price %q: %w", item, core.ErrNotFound)
}

func (s *Store) ListMarketPrices(context.Context) ([]core.MarketPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MarketPrice(nil), s.prices...), nil
}

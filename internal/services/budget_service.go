package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tipid/internal/amqp"
	"tipid/internal/core"
	"tipid/internal/engine"
	"tipid/internal/log"
	"tipid/internal/store"
	"tipid/internal/validate"
)

// BudgetInput is the set/edit budget form. GoalID is optional; when empty
// the owner's latest goal is linked.
type BudgetInput struct {
	Amount    string `json:"amount"`
	Timeframe string `json:"timeframe"`
	GoalID    string `json:"goalId,omitempty"`
}

// BudgetStorage is what BudgetService needs from the store.
type BudgetStorage interface {
	store.BudgetStore
	store.ExpenseStore
	store.GoalStore
}

type BudgetService struct {
	store     BudgetStorage
	publisher Publisher
	logger    *log.Logger
	events    *log.StructuredLogger
	loc       *time.Location
	now       Clock
}

func NewBudgetService(st BudgetStorage, publisher Publisher, logger *log.Logger) *BudgetService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	logger = logger.WithComponent(log.ComponentBudget)
	return &BudgetService{
		store:     st,
		publisher: publisher,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
		loc:       time.Local,
		now:       time.Now,
	}
}

// SetClock sets the time source and the zone budget periods start in.
func (s *BudgetService) SetClock(now Clock, loc *time.Location) {
	s.now = now
	if loc != nil {
		s.loc = loc
	}
}

func (s *BudgetService) parse(in BudgetInput) (float64, core.Timeframe, string) {
	if r := validate.BudgetForm(in.Amount); !r.IsValid {
		return 0, "", r.Message
	}
	tf, err := core.ParseTimeframe(in.Timeframe)
	if err != nil {
		return 0, "", "Please select a valid timeframe"
	}
	amount, _ := strconv.ParseFloat(strings.TrimSpace(in.Amount), 64)
	return amount, tf, ""
}

// Create replaces the owner's active budget with a new one starting today.
func (s *BudgetService) Create(ctx context.Context, ownerID string, in BudgetInput) Result[core.Budget] {
	amount, tf, msg := s.parse(in)
	if msg != "" {
		return fail[core.Budget](msg)
	}

	goalID := in.GoalID
	if goalID == "" {
		if g, err := s.store.LatestGoal(ctx, ownerID); err == nil {
			goalID = g.ID
		} else if !errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "Goal lookup failed, budget not linked", log.FieldUserID, ownerID, log.FieldError, err)
		}
	} else if msg := s.checkGoal(ctx, ownerID, goalID, log.OpCreate, "Failed to set budget"); msg != "" {
		return fail[core.Budget](msg)
	}

	start := core.StartOfDay(s.now().In(s.loc))
	b, err := s.store.CreateBudget(ctx, core.Budget{
		OwnerID:   ownerID,
		Amount:    amount,
		Timeframe: tf,
		StartDate: start,
		EndDate:   tf.EndDate(start),
		GoalID:    goalID,
	})
	if err != nil {
		logFailure(ctx, s.logger, "Failed to set budget", err, log.OpCreate, ownerID)
		return fail[core.Budget]("Failed to set budget")
	}

	s.logger.InfoContext(ctx, "Budget set",
		log.NewFields().WithUser(ownerID, "").WithBudget(b.ID, b.Amount, string(b.Timeframe)).ToSlice()...)

	// Creating a budget is when earlier ones are most likely to have lapsed.
	logPublish(ctx, s.logger, amqp.RoutingBudgetSweep, s.publisher.PublishBudgetSweep(ctx, ownerID))
	return ok("Budget set successfully!", b)
}

// EditActive changes amount and timeframe of the active budget, keeping
// its start date and recomputing the end date.
func (s *BudgetService) EditActive(ctx context.Context, ownerID string, in BudgetInput) Result[core.Budget] {
	amount, tf, msg := s.parse(in)
	if msg != "" {
		return fail[core.Budget](msg)
	}

	b, err := s.store.ActiveBudget(ctx, ownerID)
	if errors.Is(err, core.ErrNotFound) {
		return fail[core.Budget]("No active budget")
	}
	if err != nil {
		logFailure(ctx, s.logger, "Failed to load active budget", err, log.OpUpdate, ownerID)
		return fail[core.Budget]("Failed to update budget")
	}

	if in.GoalID != "" && in.GoalID != b.GoalID {
		if msg := s.checkGoal(ctx, ownerID, in.GoalID, log.OpUpdate, "Failed to update budget"); msg != "" {
			return fail[core.Budget](msg)
		}
		b.GoalID = in.GoalID
	}
	b.Amount = amount
	b.Timeframe = tf
	b.EndDate = tf.EndDate(b.StartDate.In(s.loc))

	if err := s.store.UpdateBudget(ctx, b); err != nil {
		logFailure(ctx, s.logger, "Failed to update budget", err, log.OpUpdate, ownerID)
		return fail[core.Budget]("Failed to update budget")
	}
	return ok("Budget updated successfully!", b)
}

// checkGoal returns the failure message when goalID is not a goal of the
// owner, or "" when the budget may be linked to it.
func (s *BudgetService) checkGoal(ctx context.Context, ownerID, goalID, op, failure string) string {
	_, err := s.store.GetGoal(ctx, ownerID, goalID)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, core.ErrNotFound):
		return "No savings goal found"
	default:
		logFailure(ctx, s.logger, "Goal lookup failed", err, op, ownerID)
		return failure
	}
}

func (s *BudgetService) Active(ctx context.Context, ownerID string) Result[core.Budget] {
	b, err := s.store.ActiveBudget(ctx, ownerID)
	if errors.Is(err, core.ErrNotFound) {
		return fail[core.Budget]("No active budget")
	}
	if err != nil {
		logFailure(ctx, s.logger, "Failed to load active budget", err, log.OpRead, ownerID)
		return fail[core.Budget]("No active budget")
	}
	return ok("Active budget", b)
}

// FinalizeExpired processes every unprocessed budget of the owner whose
// period ended before now: the leftover (amount minus the expenses attached
// to the budget) moves to the linked goal and the budget is marked
// processed. This is the only place budgets are finalized; the store
// guarantees each budget is applied at most once. It returns how many
// budgets this call finalized.
func (s *BudgetService) FinalizeExpired(ctx context.Context, ownerID string, now time.Time) (int, error) {
	due, err := s.store.DueBudgets(ctx, ownerID, now)
	if err != nil {
		return 0, fmt.Errorf("list due budgets: %w", err)
	}

	var errs []error
	applied := 0
	for _, b := range due {
		attached, err := s.store.ListExpenses(ctx, ownerID, store.ExpenseFilter{BudgetID: b.ID})
		if err != nil {
			errs = append(errs, fmt.Errorf("budget %s: list expenses: %w", b.ID, err))
			continue
		}
		leftover := engine.Remaining(b.Amount, engine.TotalSpent(attached))
		transfer := 0.0
		if leftover > 0 && b.GoalID != "" {
			transfer = leftover
		}

		done, err := s.store.FinalizeBudget(ctx, b, transfer)
		if err != nil {
			errs = append(errs, fmt.Errorf("budget %s: finalize: %w", b.ID, err))
			continue
		}
		if done {
			applied++
			s.events.LogBudgetFinalized(ctx, ownerID, b.ID, b.GoalID, transfer)
		}
	}
	return applied, errors.Join(errs...)
}

// SweepAll finalizes due budgets for every owner that has any.
func (s *BudgetService) SweepAll(ctx context.Context, now time.Time) (int, error) {
	owners, err := s.store.OwnersWithDueBudgets(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list owners with due budgets: %w", err)
	}

	var errs []error
	total := 0
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.FinalizeExpired(ctx, owner, now)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("owner %s: %w", owner, err))
		}
	}
	return total, errors.Join(errs...)
}

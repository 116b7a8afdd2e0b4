package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"tipid/internal/core"
	"tipid/internal/engine"
	"tipid/internal/log"
	"tipid/internal/store"
	"tipid/internal/validate"
)

// Defaults for the goal seeded on first use.
const (
	DefaultGoalName   = "New Phone"
	DefaultGoalTarget = 15000
	DefaultGoalSaved  = 9000
)

// GoalInput is the create/edit goal form. Current may be empty.
type GoalInput struct {
	Name    string `json:"name"`
	Target  string `json:"targetAmount"`
	Current string `json:"currentAmount"`
}

type GoalService struct {
	goals    store.GoalStore
	currency string
	logger   *log.Logger
}

func NewGoalService(goals store.GoalStore, currencySymbol string, logger *log.Logger) *GoalService {
	return &GoalService{
		goals:    goals,
		currency: currencySymbol,
		logger:   logger.WithComponent(log.ComponentGoal),
	}
}

func parseGoal(in GoalInput) (core.SavingsGoal, string) {
	if r := validate.SavingsGoalForm(in.Name, in.Target, in.Current); !r.IsValid {
		return core.SavingsGoal{}, r.Message
	}
	target, _ := strconv.ParseFloat(strings.TrimSpace(in.Target), 64)
	var current float64
	if c := strings.TrimSpace(in.Current); c != "" {
		current, _ = strconv.ParseFloat(c, 64)
	}
	return core.SavingsGoal{
		Name:         strings.TrimSpace(in.Name),
		TargetAmount: target,
		SavedAmount:  current,
	}, ""
}

func (s *GoalService) Create(ctx context.Context, ownerID string, in GoalInput) Result[core.SavingsGoal] {
	g, msg := parseGoal(in)
	if msg != "" {
		return fail[core.SavingsGoal](msg)
	}
	g.OwnerID = ownerID

	created, err := s.goals.CreateGoal(ctx, g)
	if err != nil {
		logFailure(ctx, s.logger, "Failed to create savings goal", err, log.OpCreate, ownerID)
		return fail[core.SavingsGoal]("Failed to create savings goal")
	}
	return ok("Savings goal created successfully!", created)
}

func (s *GoalService) Latest(ctx context.Context, ownerID string) Result[core.SavingsGoal] {
	g, err := s.goals.LatestGoal(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			logFailure(ctx, s.logger, "Failed to load savings goal", err, log.OpRead, ownerID)
		}
		return fail[core.SavingsGoal]("No savings goal found")
	}
	return ok("Savings goal found", g)
}

// GetOrCreateDefault returns the latest goal, seeding the default one when
// the owner has none.
func (s *GoalService) GetOrCreateDefault(ctx context.Context, ownerID string) Result[core.SavingsGoal] {
	g, err := s.latestOrDefault(ctx, ownerID)
	if err != nil {
		logFailure(ctx, s.logger, "Failed to create savings goal", err, log.OpCreate, ownerID)
		return fail[core.SavingsGoal]("Failed to create savings goal")
	}
	return ok("Savings goal found", g)
}

func (s *GoalService) latestOrDefault(ctx context.Context, ownerID string) (core.SavingsGoal, error) {
	g, err := s.goals.LatestGoal(ctx, ownerID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.SavingsGoal{}, err
	}
	s.logger.InfoContext(ctx, "Seeding default savings goal", log.FieldUserID, ownerID)
	return s.goals.CreateGoal(ctx, core.SavingsGoal{
		OwnerID:      ownerID,
		Name:         DefaultGoalName,
		TargetAmount: DefaultGoalTarget,
		SavedAmount:  DefaultGoalSaved,
	})
}

func (s *GoalService) Update(ctx context.Context, ownerID, id string, in GoalInput) Result[core.SavingsGoal] {
	fields, msg := parseGoal(in)
	if msg != "" {
		return fail[core.SavingsGoal](msg)
	}

	g, err := s.goals.GetGoal(ctx, ownerID, id)
	if errors.Is(err, core.ErrNotFound) {
		return fail[core.SavingsGoal]("No savings goal found")
	}
	if err != nil {
		logFailure(ctx, s.logger, "Failed to load savings goal", err, log.OpUpdate, ownerID)
		return fail[core.SavingsGoal]("Failed to update goal")
	}

	g.Name = fields.Name
	g.TargetAmount = fields.TargetAmount
	if strings.TrimSpace(in.Current) != "" {
		g.SavedAmount = fields.SavedAmount
	}
	return s.save(ctx, g, "Goal updated successfully!")
}

// Reset sets the saved amount back to zero.
func (s *GoalService) Reset(ctx context.Context, ownerID, id string) Result[core.SavingsGoal] {
	g, err := s.goals.GetGoal(ctx, ownerID, id)
	if errors.Is(err, core.ErrNotFound) {
		return fail[core.SavingsGoal]("No savings goal found")
	}
	if err != nil {
		logFailure(ctx, s.logger, "Failed to load savings goal", err, log.OpUpdate, ownerID)
		return fail[core.SavingsGoal]("Failed to update goal")
	}
	g.SavedAmount = 0
	return s.save(ctx, g, "Goal reset successfully!")
}

func (s *GoalService) save(ctx context.Context, g core.SavingsGoal, msg string) Result[core.SavingsGoal] {
	if err := s.goals.UpdateGoal(ctx, g); err != nil {
		logFailure(ctx, s.logger, "Failed to update goal", err, log.OpUpdate, g.OwnerID)
		return fail[core.SavingsGoal]("Failed to update goal")
	}
	return ok(msg, g)
}

// AddAmount puts a manual contribution into the goal.
func (s *GoalService) AddAmount(ctx context.Context, ownerID, id, amount string) Result[core.SavingsGoal] {
	if r := validate.Amount(amount, "Amount"); !r.IsValid {
		return fail[core.SavingsGoal](r.Message)
	}
	value, _ := strconv.ParseFloat(strings.TrimSpace(amount), 64)

	g, err := s.goals.AddToGoal(ctx, ownerID, id, value)
	if errors.Is(err, core.ErrNotFound) {
		return fail[core.SavingsGoal]("No savings goal found")
	}
	if err != nil {
		logFailure(ctx, s.logger, "Failed to add to goal", err, log.OpUpdate, ownerID)
		return fail[core.SavingsGoal]("Failed to add to goal")
	}
	return ok("Added "+engine.FormatCurrency(s.currency, value)+" to savings goal!", g)
}

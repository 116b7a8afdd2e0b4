package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"tipid/internal/amqp"
	"tipid/internal/core"
	"tipid/internal/log"
	"tipid/internal/store"
	"tipid/internal/validate"
)

// ExpenseInput is the add/edit form. Amount and Date are raw user input.
type ExpenseInput struct {
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
	IsEssential bool   `json:"isEssential"`
}

// ExpenseService orchestrates expense operations across storage and AMQP
type ExpenseService struct {
	expenses  store.ExpenseStore
	budgets   store.BudgetStore
	publisher Publisher
	logger    *log.Logger
	events    *log.StructuredLogger
	loc       *time.Location
	now       Clock
}

func NewExpenseService(expenses store.ExpenseStore, budgets store.BudgetStore, publisher Publisher, logger *log.Logger) *ExpenseService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	logger = logger.WithComponent(log.ComponentExpense)
	return &ExpenseService{
		expenses:  expenses,
		budgets:   budgets,
		publisher: publisher,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
		loc:       time.Local,
		now:       time.Now,
	}
}

// SetClock sets the time source and the zone calendar dates are read in.
func (s *ExpenseService) SetClock(now Clock, loc *time.Location) {
	s.now = now
	if loc != nil {
		s.loc = loc
	}
}

// parse validates the form and builds the expense fields it carries.
func (s *ExpenseService) parse(in ExpenseInput) (core.Expense, string) {
	if r := validate.ExpenseForm(in.Amount, in.Description, in.Date); !r.IsValid {
		return core.Expense{}, r.Message
	}
	amount, _ := strconv.ParseFloat(strings.TrimSpace(in.Amount), 64)
	date, err := core.ParseDate(in.Date, s.loc)
	if err != nil {
		return core.Expense{}, "Invalid date format"
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "Other"
	}
	return core.Expense{
		Amount:      amount,
		Category:    category,
		Description: strings.TrimSpace(in.Description),
		OccurredOn:  date,
		IsEssential: in.IsEssential,
	}, ""
}

func (s *ExpenseService) Create(ctx context.Context, ownerID string, in ExpenseInput) Result[core.Expense] {
	e, msg := s.parse(in)
	if msg != "" {
		return fail[core.Expense](msg)
	}
	e.OwnerID = ownerID
	e.BudgetID = s.budgetFor(ctx, ownerID, e.OccurredOn)

	created, err := s.expenses.CreateExpense(ctx, e)
	if msg, invalid := validationMessage(err); invalid {
		return fail[core.Expense](msg)
	}
	if err != nil {
		logFailure(ctx, s.logger, "Failed to save expense", err, log.OpCreate, ownerID)
		return fail[core.Expense]("Failed to save expense. Please try again.")
	}
	s.events.LogExpenseCreated(ctx, ownerID, created.ID, created.Amount, created.Category)

	logPublish(ctx, s.logger, amqp.RoutingExpenseCreated, s.publisher.PublishExpenseCreated(ctx, ownerID, created.ID))
	return ok("Expense saved successfully!", created)
}

// budgetFor returns the id of the owner's active budget when on falls in
// its period, or "".
func (s *ExpenseService) budgetFor(ctx context.Context, ownerID string, on time.Time) string {
	b, err := s.budgets.ActiveBudget(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			s.logger.WarnContext(ctx, "Active budget lookup failed", log.FieldUserID, ownerID, log.FieldError, err)
		}
		return ""
	}
	if b.Expired(s.now()) || on.Before(b.StartDate) || !on.Before(b.EndDate) {
		return ""
	}
	return b.ID
}

func (s *ExpenseService) list(ctx context.Context, ownerID string, f store.ExpenseFilter) Result[[]core.Expense] {
	list, err := s.expenses.ListExpenses(ctx, ownerID, f)
	if err != nil {
		logFailure(ctx, s.logger, "Failed to fetch expenses", err, log.OpList, ownerID)
		return fail[[]core.Expense]("Failed to fetch expenses")
	}
	if list == nil {
		list = []core.Expense{}
	}
	return ok("Expenses fetched successfully", list)
}

// List returns every expense of the owner, newest first.
func (s *ExpenseService) List(ctx context.Context, ownerID string) Result[[]core.Expense] {
	return s.list(ctx, ownerID, store.ExpenseFilter{})
}

// ListRange returns expenses dated from..to, both inclusive.
func (s *ExpenseService) ListRange(ctx context.Context, ownerID string, from, to time.Time) Result[[]core.Expense] {
	return s.list(ctx, ownerID, store.ExpenseFilter{From: from, To: to})
}

func (s *ExpenseService) ListByCategory(ctx context.Context, ownerID, category string) Result[[]core.Expense] {
	return s.list(ctx, ownerID, store.ExpenseFilter{Category: category})
}

func (s *ExpenseService) ListByEssential(ctx context.Context, ownerID string, essential bool) Result[[]core.Expense] {
	return s.list(ctx, ownerID, store.ExpenseFilter{Essential: &essential})
}

func (s *ExpenseService) Update(ctx context.Context, ownerID, id string, in ExpenseInput) Result[core.Expense] {
	fields, msg := s.parse(in)
	if msg != "" {
		return fail[core.Expense](msg)
	}

	e, err := s.expenses.GetExpense(ctx, ownerID, id)
	if errors.Is(err, core.ErrNotFound) {
		return fail[core.Expense]("Expense not found")
	}
	if err != nil {
		logFailure(ctx, s.logger, "Failed to load expense", err, log.OpUpdate, ownerID)
		return fail[core.Expense]("Failed to update expense")
	}

	// A new date may move the expense into or out of the active period.
	if !fields.OccurredOn.Equal(e.OccurredOn) {
		e.BudgetID = s.budgetFor(ctx, ownerID, fields.OccurredOn)
	}
	e.Amount = fields.Amount
	e.Category = fields.Category
	e.Description = fields.Description
	e.OccurredOn = fields.OccurredOn
	e.IsEssential = fields.IsEssential

	if err := s.expenses.UpdateExpense(ctx, e); err != nil {
		if msg, invalid := validationMessage(err); invalid {
			return fail[core.Expense](msg)
		}
		if errors.Is(err, core.ErrNotFound) {
			return fail[core.Expense]("Expense not found")
		}
		logFailure(ctx, s.logger, "Failed to update expense", err, log.OpUpdate, ownerID)
		return fail[core.Expense]("Failed to update expense")
	}
	return ok("Expense updated successfully!", e)
}

func (s *ExpenseService) Delete(ctx context.Context, ownerID, id string) Result[struct{}] {
	if err := s.expenses.DeleteExpense(ctx, ownerID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fail[struct{}]("Expense not found")
		}
		logFailure(ctx, s.logger, "Failed to delete expense", err, log.OpDelete, ownerID)
		return fail[struct{}]("Failed to delete expense")
	}

	logPublish(ctx, s.logger, amqp.RoutingExpenseDeleted, s.publisher.PublishExpenseDeleted(ctx, ownerID, id))
	return ok("Expense deleted successfully!", struct{}{})
}

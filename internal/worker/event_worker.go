package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tipid/internal/amqp"
	"tipid/internal/core"
	"tipid/internal/log"
	"tipid/internal/sheets"
	"tipid/internal/store"
)

// BudgetFinalizer settles budgets whose period has ended.
type BudgetFinalizer interface {
	FinalizeExpired(ctx context.Context, ownerID string, now time.Time) (int, error)
	SweepAll(ctx context.Context, now time.Time) (int, error)
}

// ExpenseSource is what the worker reads to export an expense.
type ExpenseSource interface {
	GetExpense(ctx context.Context, ownerID, id string) (core.Expense, error)
	UserByID(ctx context.Context, id string) (core.User, error)
}

var _ ExpenseSource = (store.Store)(nil)

// EventWorker handles messages from the AMQP queue. A nil exporter turns
// spreadsheet export off.
type EventWorker struct {
	expenses ExpenseSource
	budgets  BudgetFinalizer
	exporter sheets.ExpenseExporter
	logger   *log.Logger
	now      func() time.Time
}

var _ amqp.Handler = (*EventWorker)(nil)

func NewEventWorker(expenses ExpenseSource, budgets BudgetFinalizer, exporter sheets.ExpenseExporter, logger *log.Logger) *EventWorker {
	return &EventWorker{
		expenses: expenses,
		budgets:  budgets,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// HandleExpenseCreated exports the expense to the spreadsheet.
func (w *EventWorker) HandleExpenseCreated(ctx context.Context, ev amqp.ExpenseEvent) error {
	if w.exporter == nil {
		w.logger.DebugContext(ctx, "No exporter configured, skipping export", log.FieldExpenseID, ev.ExpenseID)
		return nil
	}

	e, err := w.expenses.GetExpense(ctx, ev.OwnerID, ev.ExpenseID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before we got to it.
		w.logger.WarnContext(ctx, "Expense no longer exists, skipping export",
			log.FieldExpenseID, ev.ExpenseID, log.FieldUserID, ev.OwnerID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	owner := ev.OwnerID
	if u, err := w.expenses.UserByID(ctx, ev.OwnerID); err == nil {
		owner = u.Username
	} else {
		w.logger.WarnContext(ctx, "Owner lookup failed, exporting owner id", log.FieldUserID, ev.OwnerID, log.FieldError, err)
	}

	ref, err := w.exporter.Export(ctx, e, owner)
	if err != nil {
		return fmt.Errorf("export expense: %w", err)
	}

	w.logger.InfoContext(ctx, "Exported expense",
		log.FieldExpenseID, e.ID,
		log.FieldUserID, ev.OwnerID,
		"sheets_ref", ref,
		log.FieldAmount, e.Amount)
	return nil
}

// HandleExpenseDeleted removes the exported row.
func (w *EventWorker) HandleExpenseDeleted(ctx context.Context, ev amqp.ExpenseEvent) error {
	if w.exporter == nil {
		w.logger.DebugContext(ctx, "No exporter configured, skipping removal", log.FieldExpenseID, ev.ExpenseID)
		return nil
	}
	if err := w.exporter.Remove(ctx, ev.ExpenseID); err != nil {
		return fmt.Errorf("remove exported expense: %w", err)
	}
	w.logger.InfoContext(ctx, "Removed exported expense", log.FieldExpenseID, ev.ExpenseID, log.FieldUserID, ev.OwnerID)
	return nil
}

// HandleBudgetSweep finalizes the owner's lapsed budgets.
func (w *EventWorker) HandleBudgetSweep(ctx context.Context, ev amqp.BudgetSweepEvent) error {
	n, err := w.budgets.FinalizeExpired(ctx, ev.OwnerID, w.now())
	if err != nil {
		return fmt.Errorf("finalize budgets for %s: %w", ev.OwnerID, err)
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "Finalized budgets", log.FieldUserID, ev.OwnerID, "count", n)
	}
	return nil
}

package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Routing keys on the exchange. The consumer queue is bound to all of them.
const (
	RoutingExpenseCreated = "expense.created"
	RoutingExpenseDeleted = "expense.deleted"
	RoutingBudgetSweep    = "budget.sweep"
)

// RoutingKeys lists every key the consumer queue is bound to.
var RoutingKeys = []string{RoutingExpenseCreated, RoutingExpenseDeleted, RoutingBudgetSweep}

// ExpenseEvent carries only identifiers; the worker reloads whatever else
// it needs.
type ExpenseEvent struct {
	OwnerID   string    `json:"owner_id"`
	ExpenseID string    `json:"expense_id"`
	Timestamp time.Time `json:"timestamp"`
}

// BudgetSweepEvent asks the worker to finalize the owner's expired budgets.
type BudgetSweepEvent struct {
	OwnerID   string    `json:"owner_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(ownerID, expenseID string) ExpenseEvent {
	return ExpenseEvent{OwnerID: ownerID, ExpenseID: expenseID, Timestamp: time.Now()}
}

func NewBudgetSweepEvent(ownerID string) BudgetSweepEvent {
	return BudgetSweepEvent{OwnerID: ownerID, Timestamp: time.Now()}
}

func decodeExpenseEvent(data []byte) (ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ExpenseEvent{}, err
	}
	if ev.OwnerID == "" || ev.ExpenseID == "" {
		return ExpenseEvent{}, fmt.Errorf("expense event missing owner or expense id")
	}
	return ev, nil
}

func decodeBudgetSweepEvent(data []byte) (BudgetSweepEvent, error) {
	var ev BudgetSweepEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return BudgetSweepEvent{}, err
	}
	if ev.OwnerID == "" {
		return BudgetSweepEvent{}, fmt.Errorf("sweep event missing owner id")
	}
	return ev, nil
}

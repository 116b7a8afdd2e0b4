package sheets

import (
	"context"

	"tipid/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseExporter mirrors expenses into an external spreadsheet.
	ExpenseExporter interface {
		// Export appends e and returns a reference to the written row.
		Export(ctx context.Context, e core.Expense, owner string) (rowRef string, err error)
		// Remove clears the row exported for expenseID. Missing rows are
		// not an error.
		Remove(ctx context.Context, expenseID string) error
	}
)

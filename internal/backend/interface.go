package backend

import (
	"context"

	"tipid/internal/amqp"
	"tipid/internal/services"
	"tipid/internal/sheets"
	"tipid/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is the persistence store plus the event publisher that
// goes with it.
type BackendResult struct {
	Store     store.Store
	Publisher services.Publisher
	// AMQP is nil when no broker is configured or reachable.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateExporter returns nil when spreadsheet export is not configured.
	CreateExporter(ctx context.Context, config Config) (sheets.ExpenseExporter, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Messaging, optional for every backend type
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Spreadsheet export, optional
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Package services binds the engine and validation to storage. Public
// operations return a Result envelope and never a Go error; collaborator
// failures are logged and mapped to a user-facing message.
package services

import (
	"context"
	"errors"
	"time"

	"tipid/internal/core"
	"tipid/internal/log"
)

// Result is the uniform response envelope.
type Result[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func ok[T any](msg string, data T) Result[T] {
	return Result[T]{Success: true, Message: msg, Data: data}
}

func fail[T any](msg string) Result[T] {
	return Result[T]{Message: msg}
}

// Publisher emits domain events. Publishing is best effort.
type Publisher interface {
	PublishExpenseCreated(ctx context.Context, ownerID, expenseID string) error
	PublishExpenseDeleted(ctx context.Context, ownerID, expenseID string) error
	PublishBudgetSweep(ctx context.Context, ownerID string) error
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishExpenseCreated(context.Context, string, string) error { return nil }
func (NopPublisher) PublishExpenseDeleted(context.Context, string, string) error { return nil }
func (NopPublisher) PublishBudgetSweep(context.Context, string) error            { return nil }

// Clock is the time source of a service.
type Clock func() time.Time

// validationMessage returns the user-facing message of a ValidationError
// wrapped in err.
func validationMessage(err error) (string, bool) {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	return "", false
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrConflict):
		return log.ErrorTypeConflict
	case errors.Is(err, core.ErrInvalidInput):
		return log.ErrorTypeValidation
	case errors.Is(err, core.ErrUnauthorized):
		return log.ErrorTypeAuth
	default:
		return log.ErrorTypeDatabase
	}
}

func logFailure(ctx context.Context, logger *log.Logger, msg string, err error, op, ownerID string) {
	log.NewStructuredLogger(logger).LogError(ctx, msg, err, logger.Component(), op, errorType(err),
		log.NewFields().WithUser(ownerID, ""))
}

func logPublish(ctx context.Context, logger *log.Logger, routingKey string, err error) {
	if err != nil {
		logger.WarnContext(ctx, "Failed to publish event",
			log.FieldRoutingKey, routingKey,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}

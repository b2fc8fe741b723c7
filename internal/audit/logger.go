// Package audit records ledger activity as structured audit events.
package audit

import (
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/models"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named("audit")}
}

// LogTransaction records a committed ledger transaction.
func (a *Logger) LogTransaction(userID string, txn *models.Transaction) {
	fields := []zap.Field{
		zap.String("event_type", string(txn.Type)),
		zap.String("status", StatusSuccess),
		zap.String("user_id", userID),
		zap.Int64("transaction_id", txn.ID),
		zap.String("amount", txn.Amount.String()),
		zap.String("description", txn.Description),
	}
	if txn.FromAccountID != nil {
		fields = append(fields, zap.Int64("from_account", *txn.FromAccountID))
	}
	if txn.ToAccountID != nil {
		fields = append(fields, zap.Int64("to_account", *txn.ToAccountID))
	}
	a.logger.Info("AUDIT", fields...)
}

// LogError records a rejected or failed operation. subject names the user
// or account the operation was attempted on.
func (a *Logger) LogError(operation, subject string, err error) {
	a.logger.Warn("AUDIT",
		zap.String("event_type", operation),
		zap.String("status", StatusFailed),
		zap.String("subject", subject),
		zap.Error(err),
	)
}

func (a *Logger) LogOperation(operation, userID, details string) {
	a.logger.Info("AUDIT",
		zap.String("event_type", operation),
		zap.String("status", StatusSuccess),
		zap.String("user_id", userID),
		zap.String("details", details),
	)
}

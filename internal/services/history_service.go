package services

import (
	"context"

	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/store"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// HistoryService reads transaction history, newest first.
type HistoryService struct {
	store *store.Store
}

func NewHistoryService(st *store.Store) *HistoryService {
	return &HistoryService{store: st}
}

// NormalizeLimit maps a non-positive limit to the default and caps the rest.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// ForUser returns transactions touching any account the user owns. A user
// without accounts has an empty history.
func (s *HistoryService) ForUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	return s.store.ListTransactionsForUser(ctx, userID, NormalizeLimit(limit))
}

func (s *HistoryService) ForAccount(ctx context.Context, accountID int64, limit int) ([]models.Transaction, error) {
	return s.store.ListTransactionsForAccount(ctx, accountID, NormalizeLimit(limit))
}

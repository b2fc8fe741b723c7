package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/store"
)

// AccountService exposes account reads and the raw balance primitives.
// The primitives do not write transaction records; ledger movements go
// through LedgerService.
type AccountService struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewAccountService(st *store.Store, logger *zap.Logger) *AccountService {
	return &AccountService{
		store:  st,
		logger: logger.Named("accounts"),
		now:    time.Now,
	}
}

func (s *AccountService) Get(ctx context.Context, accountID int64) (*models.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

func (s *AccountService) GetByUser(ctx context.Context, userID string) ([]models.Account, error) {
	return s.store.ListAccountsByUser(ctx, userID)
}

func (s *AccountService) GetByUserAndType(ctx context.Context, userID string, accountType models.AccountType) (*models.Account, error) {
	if !accountType.Valid() {
		return nil, apperr.InvalidOperation("unknown account type %q", accountType)
	}
	return s.store.GetAccountByUserAndType(ctx, userID, accountType)
}

func (s *AccountService) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (s *AccountService) GetBalanceByType(ctx context.Context, userID string, accountType models.AccountType) (decimal.Decimal, error) {
	account, err := s.GetByUserAndType(ctx, userID, accountType)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// SetBalance overwrites a balance. Negative balances are rejected.
func (s *AccountService) SetBalance(ctx context.Context, accountID int64, newBalance decimal.Decimal) (*models.Account, error) {
	if newBalance.IsNegative() {
		return nil, apperr.InvalidAmount("balance cannot be negative, got %s", newBalance)
	}
	return s.mutate(ctx, accountID, func(account *models.Account) (decimal.Decimal, error) {
		return newBalance, nil
	})
}

func (s *AccountService) AddToBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.Account, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	return s.mutate(ctx, accountID, func(account *models.Account) (decimal.Decimal, error) {
		return account.Balance.Add(amount), nil
	})
}

func (s *AccountService) SubtractFromBalance(ctx context.Context, accountID int64, amount decimal.Decimal) (*models.Account, error) {
	if err := requirePositive(amount); err != nil {
		return nil, err
	}
	return s.mutate(ctx, accountID, func(account *models.Account) (decimal.Decimal, error) {
		if account.Balance.LessThan(amount) {
			return decimal.Zero, apperr.InsufficientFunds("insufficient funds in %s", account.Name)
		}
		return account.Balance.Sub(amount), nil
	})
}

func (s *AccountService) mutate(ctx context.Context, accountID int64, next func(*models.Account) (decimal.Decimal, error)) (*models.Account, error) {
	var account *models.Account
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		account, err = q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		balance, err := next(account)
		if err != nil {
			return err
		}
		return q.UpdateAccountBalance(ctx, account, balance, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("balance updated", zap.Int64("account_id", account.ID), zap.String("balance", account.Balance.String()))
	return account, nil
}

// GetSummary returns every account of the user with the cash total and the
// gold bar count. A user without accounts gets an empty summary.
func (s *AccountService) GetSummary(ctx context.Context, userID string) (*models.AccountSummary, error) {
	accounts, err := s.store.ListAccountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := models.Summarize(accounts)
	return &summary, nil
}

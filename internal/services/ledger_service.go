package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/audit"
	"github.com/treasurehunt/backend/internal/events"
	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/store"
)

// LedgerService runs every balance-moving operation. Each call is one unit
// of work: lock the rows, mutate, append exactly one transaction, commit.
type LedgerService struct {
	store     *store.Store
	publisher events.Publisher
	audit     *audit.Logger
	logger    *zap.Logger
	now       func() time.Time
}

func NewLedgerService(st *store.Store, publisher events.Publisher, auditLogger *audit.Logger, logger *zap.Logger) *LedgerService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &LedgerService{
		store:     st,
		publisher: publisher,
		audit:     auditLogger,
		logger:    logger.Named("ledger"),
		now:       time.Now,
	}
}

// SendMoneyParams describes a payment from one user to another. Empty
// account types default to checking.
type SendMoneyParams struct {
	FromUserID      string
	ToUserID        string
	Amount          decimal.Decimal
	FromAccountType models.AccountType
	ToAccountType   models.AccountType
	Description     string
}

func (s *LedgerService) GoldBarValue() int64 {
	return models.GoldBarRate
}

// creditedBalance is the destination policy shared by every operation that
// moves value into an account: credit cards have their debt paid down,
// floored at zero, and every other account type is credited.
func creditedBalance(account *models.Account, amount decimal.Decimal) decimal.Decimal {
	if account.IsLoan() {
		return decimal.Max(account.Balance.Sub(amount), decimal.Zero)
	}
	return account.Balance.Add(amount)
}

func requirePositive(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return apperr.InvalidAmount("amount must be greater than zero, got %s", amount)
	}
	return nil
}

func accountRef(id int64) *int64 {
	return &id
}

// Transfer moves amount between two accounts of the same user.
func (s *LedgerService) Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, description string) (*models.Transaction, error) {
	var (
		txn   *models.Transaction
		owner string
	)
	err := func() error {
		if err := requirePositive(amount); err != nil {
			return err
		}
		if fromAccountID == toAccountID {
			return apperr.InvalidOperation("cannot transfer an account to itself")
		}

		return s.store.InTx(ctx, func(q *store.Queries) error {
			locked, err := q.LockAccounts(ctx, fromAccountID, toAccountID)
			if err != nil {
				return err
			}
			from, to := locked[fromAccountID], locked[toAccountID]
			owner = from.UserID

			if from.Type == models.AccountTypeTreasureChest || to.Type == models.AccountTypeTreasureChest {
				return apperr.InvalidOperation("cannot transfer to or from a treasure chest, use gold exchange instead")
			}
			if from.UserID != to.UserID {
				return apperr.InvalidOperation("cannot transfer between different users, use send money instead")
			}
			if from.IsLoan() {
				return apperr.InvalidOperation("cannot transfer from a credit card account")
			}
			if from.Balance.LessThan(amount) {
				return apperr.InsufficientFunds("insufficient funds in %s", from.Name)
			}

			now := s.now()
			if err := q.UpdateAccountBalance(ctx, from, from.Balance.Sub(amount), now); err != nil {
				return err
			}
			if err := q.UpdateAccountBalance(ctx, to, creditedBalance(to, amount), now); err != nil {
				return err
			}

			if description == "" {
				description = fmt.Sprintf("Transfer from %s to %s", from.Name, to.Name)
			}
			txn = &models.Transaction{
				FromAccountID: accountRef(from.ID),
				ToAccountID:   accountRef(to.ID),
				Amount:        amount,
				Type:          models.TransactionTypeTransfer,
				Description:   description,
				CreatedAt:     now,
			}
			return q.InsertTransaction(ctx, txn)
		})
	}()
	if err != nil {
		s.failed("transfer", fmt.Sprintf("account:%d", fromAccountID), err)
		return nil, err
	}

	s.committed(ctx, owner, txn, events.New(events.TransactionCompleted, owner, txn))
	return txn, nil
}

// Deposit brings amount into an account from outside the ledger.
func (s *LedgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*models.Transaction, error) {
	var (
		txn   *models.Transaction
		owner string
	)
	err := func() error {
		if err := requirePositive(amount); err != nil {
			return err
		}

		return s.store.InTx(ctx, func(q *store.Queries) error {
			account, err := q.LockAccount(ctx, accountID)
			if err != nil {
				return err
			}
			owner = account.UserID

			if account.Type == models.AccountTypeTreasureChest {
				return apperr.InvalidOperation("cannot deposit to a treasure chest, use collect gold instead")
			}

			now := s.now()
			if err := q.UpdateAccountBalance(ctx, account, creditedBalance(account, amount), now); err != nil {
				return err
			}

			if description == "" {
				description = "External deposit"
			}
			txn = &models.Transaction{
				ToAccountID: accountRef(account.ID),
				Amount:      amount,
				Type:        models.TransactionTypeDeposit,
				Description: description,
				CreatedAt:   now,
			}
			return q.InsertTransaction(ctx, txn)
		})
	}()
	if err != nil {
		s.failed("deposit", fmt.Sprintf("account:%d", accountID), err)
		return nil, err
	}

	s.committed(ctx, owner, txn, events.New(events.TransactionCompleted, owner, txn))
	return txn, nil
}

// Withdraw sends amount out of the ledger. On a credit card the withdrawal
// is a charge and raises the debt instead.
func (s *LedgerService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*models.Transaction, error) {
	var (
		txn   *models.Transaction
		owner string
	)
	err := func() error {
		if err := requirePositive(amount); err != nil {
			return err
		}

		return s.store.InTx(ctx, func(q *store.Queries) error {
			account, err := q.LockAccount(ctx, accountID)
			if err != nil {
				return err
			}
			owner = account.UserID

			if account.Type == models.AccountTypeTreasureChest {
				return apperr.InvalidOperation("cannot withdraw from a treasure chest, use gold exchange instead")
			}

			var newBalance decimal.Decimal
			if account.IsLoan() {
				newBalance = account.Balance.Add(amount)
			} else {
				if account.Balance.LessThan(amount) {
					return apperr.InsufficientFunds("insufficient funds in %s", account.Name)
				}
				newBalance = account.Balance.Sub(amount)
			}

			now := s.now()
			if err := q.UpdateAccountBalance(ctx, account, newBalance, now); err != nil {
				return err
			}

			if description == "" {
				description = "External withdrawal"
			}
			txn = &models.Transaction{
				FromAccountID: accountRef(account.ID),
				Amount:        amount,
				Type:          models.TransactionTypeWithdrawal,
				Description:   description,
				CreatedAt:     now,
			}
			return q.InsertTransaction(ctx, txn)
		})
	}()
	if err != nil {
		s.failed("withdrawal", fmt.Sprintf("account:%d", accountID), err)
		return nil, err
	}

	s.committed(ctx, owner, txn, events.New(events.TransactionCompleted, owner, txn))
	return txn, nil
}

// CollectGoldBar adds exactly one bar to the user's treasure chest.
func (s *LedgerService) CollectGoldBar(ctx context.Context, userID string) (*models.Transaction, error) {
	var txn *models.Transaction
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		locked, err := lockByType(ctx, q, userID, models.AccountTypeTreasureChest)
		if err != nil {
			return err
		}
		chest := locked[0]

		one := decimal.NewFromInt(1)
		now := s.now()
		if err := q.UpdateAccountBalance(ctx, chest, chest.Balance.Add(one), now); err != nil {
			return err
		}

		txn = &models.Transaction{
			ToAccountID: accountRef(chest.ID),
			Amount:      one,
			Type:        models.TransactionTypeDeposit,
			Description: "Gold bar collected from game",
			CreatedAt:   now,
		}
		return q.InsertTransaction(ctx, txn)
	})
	if err != nil {
		s.failed("collect_gold", userID, err)
		return nil, err
	}

	s.committed(ctx, userID, txn, events.New(events.GoldCollected, userID, txn))
	return txn, nil
}

// ExchangeGold converts bars from the treasure chest into cash at the fixed
// gold bar rate. The transaction amount is the bar count.
func (s *LedgerService) ExchangeGold(ctx context.Context, userID string, bars int64, toAccountType models.AccountType) (*models.Transaction, error) {
	var txn *models.Transaction
	err := func() error {
		if toAccountType != models.AccountTypeChecking && toAccountType != models.AccountTypeSavings {
			return apperr.InvalidOperation("can only exchange gold to checking or savings account")
		}
		if bars <= 0 {
			return apperr.InvalidAmount("number of gold bars must be greater than zero, got %d", bars)
		}

		return s.store.InTx(ctx, func(q *store.Queries) error {
			locked, err := lockByType(ctx, q, userID, models.AccountTypeTreasureChest, toAccountType)
			if err != nil {
				return err
			}
			chest, to := locked[0], locked[1]

			barCount := decimal.NewFromInt(bars)
			if chest.Balance.LessThan(barCount) {
				return apperr.InsufficientFunds("insufficient gold bars: have %d, need %d", chest.Balance.IntPart(), bars)
			}

			cash := barCount.Mul(decimal.NewFromInt(models.GoldBarRate))
			now := s.now()
			if err := q.UpdateAccountBalance(ctx, chest, chest.Balance.Sub(barCount), now); err != nil {
				return err
			}
			if err := q.UpdateAccountBalance(ctx, to, creditedBalance(to, cash), now); err != nil {
				return err
			}

			txn = &models.Transaction{
				FromAccountID: accountRef(chest.ID),
				ToAccountID:   accountRef(to.ID),
				Amount:        barCount,
				Type:          models.TransactionTypeGoldExchange,
				Description:   fmt.Sprintf("Exchanged %d gold bars for $%s", bars, cash),
				CreatedAt:     now,
			}
			return q.InsertTransaction(ctx, txn)
		})
	}()
	if err != nil {
		s.failed("gold_exchange", userID, err)
		return nil, err
	}

	s.committed(ctx, userID, txn, events.New(events.GoldExchanged, userID, txn))
	return txn, nil
}

// SendMoney pays another user. A credit card destination has its debt paid
// down, the same as a transfer or deposit into one.
func (s *LedgerService) SendMoney(ctx context.Context, p SendMoneyParams) (*models.Transaction, error) {
	if p.FromAccountType == "" {
		p.FromAccountType = models.AccountTypeChecking
	}
	if p.ToAccountType == "" {
		p.ToAccountType = models.AccountTypeChecking
	}

	var txn *models.Transaction
	err := func() error {
		if p.FromUserID == p.ToUserID {
			return apperr.InvalidOperation("cannot send money to yourself, use transfer instead")
		}
		if p.FromAccountType == models.AccountTypeTreasureChest || p.ToAccountType == models.AccountTypeTreasureChest {
			return apperr.InvalidOperation("cannot send or receive gold bars, use checking or savings")
		}
		if !p.FromAccountType.Valid() || !p.ToAccountType.Valid() {
			return apperr.InvalidOperation("unknown account type")
		}
		if err := requirePositive(p.Amount); err != nil {
			return err
		}

		return s.store.InTx(ctx, func(q *store.Queries) error {
			sender, err := q.GetUser(ctx, p.FromUserID)
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.NotFound("sender %s not found", p.FromUserID)
			}
			if err != nil {
				return err
			}
			recipient, err := q.GetUser(ctx, p.ToUserID)
			if errors.Is(err, apperr.ErrNotFound) {
				return apperr.NotFound("recipient %s not found", p.ToUserID)
			}
			if err != nil {
				return err
			}

			from, err := q.GetAccountByUserAndType(ctx, p.FromUserID, p.FromAccountType)
			if err != nil {
				return err
			}
			to, err := q.GetAccountByUserAndType(ctx, p.ToUserID, p.ToAccountType)
			if err != nil {
				return err
			}
			locked, err := q.LockAccounts(ctx, from.ID, to.ID)
			if err != nil {
				return err
			}
			from, to = locked[from.ID], locked[to.ID]

			if from.Balance.LessThan(p.Amount) {
				return apperr.InsufficientFunds("insufficient funds in %s", from.Name)
			}

			now := s.now()
			if err := q.UpdateAccountBalance(ctx, from, from.Balance.Sub(p.Amount), now); err != nil {
				return err
			}
			if err := q.UpdateAccountBalance(ctx, to, creditedBalance(to, p.Amount), now); err != nil {
				return err
			}

			description := p.Description
			if description == "" {
				description = fmt.Sprintf("Transfer from %s to %s", sender.Name, recipient.Name)
			}
			txn = &models.Transaction{
				FromAccountID: accountRef(from.ID),
				ToAccountID:   accountRef(to.ID),
				Amount:        p.Amount,
				Type:          models.TransactionTypeTransfer,
				Description:   description,
				CreatedAt:     now,
			}
			return q.InsertTransaction(ctx, txn)
		})
	}()
	if err != nil {
		s.failed("send_money", p.FromUserID, err)
		return nil, err
	}

	s.committed(ctx, p.FromUserID, txn,
		events.New(events.MoneySent, p.FromUserID, txn).WithCounterparty(p.ToUserID),
		events.New(events.MoneyReceived, p.ToUserID, txn).WithCounterparty(p.FromUserID),
	)
	return txn, nil
}

// lockByType resolves the user's accounts of the given types and locks them
// in ascending id order. The result follows the order of types.
func lockByType(ctx context.Context, q *store.Queries, userID string, types ...models.AccountType) ([]*models.Account, error) {
	ids := make([]int64, 0, len(types))
	for _, t := range types {
		account, err := q.GetAccountByUserAndType(ctx, userID, t)
		if err != nil {
			return nil, err
		}
		ids = append(ids, account.ID)
	}

	locked, err := q.LockAccounts(ctx, ids...)
	if err != nil {
		return nil, err
	}
	accounts := make([]*models.Account, len(ids))
	for i, id := range ids {
		accounts[i] = locked[id]
	}
	return accounts, nil
}

func (s *LedgerService) committed(ctx context.Context, userID string, txn *models.Transaction, evs ...events.Event) {
	s.audit.LogTransaction(userID, txn)
	for _, ev := range evs {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("publish event failed",
				zap.String("event_id", ev.ID),
				zap.String("event_type", string(ev.Type)),
				zap.Error(err))
		}
	}
}

func (s *LedgerService) failed(operation, subject string, err error) {
	s.audit.LogError(operation, subject, err)
	if apperr.KindOf(err) == apperr.KindInternal {
		s.logger.Error("ledger operation failed", zap.String("operation", operation), zap.Error(err))
	}
}

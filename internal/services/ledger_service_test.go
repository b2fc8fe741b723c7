package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/audit"
	"github.com/treasurehunt/backend/internal/events"
	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/store"
)

func TestLedgerService_Scenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice")
	env.createUser(t, "bob", "Bob")

	checking := env.account(t, "alice", models.AccountTypeChecking)
	savings := env.account(t, "alice", models.AccountTypeSavings)

	txn, err := env.ledger.Transfer(ctx, checking.ID, savings.ID, dec(200), "")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeTransfer, txn.Type)
	assert.Equal(t, "200", txn.Amount.String())
	assert.Equal(t, "Transfer from Checking Account to Savings Account", txn.Description)
	assertBalance(t, 800, env.balance(t, "alice", models.AccountTypeChecking))
	assertBalance(t, 700, env.balance(t, "alice", models.AccountTypeSavings))

	for i := 0; i < 3; i++ {
		_, err := env.ledger.CollectGoldBar(ctx, "alice")
		require.NoError(t, err)
	}
	assertBalance(t, 3, env.balance(t, "alice", models.AccountTypeTreasureChest))

	txn, err = env.ledger.ExchangeGold(ctx, "alice", 2, models.AccountTypeChecking)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeGoldExchange, txn.Type)
	assert.Equal(t, "2", txn.Amount.String())
	assert.Equal(t, "Exchanged 2 gold bars for $14000", txn.Description)
	assertBalance(t, 1, env.balance(t, "alice", models.AccountTypeTreasureChest))
	assertBalance(t, 14800, env.balance(t, "alice", models.AccountTypeChecking))

	txn, err = env.ledger.SendMoney(ctx, SendMoneyParams{FromUserID: "alice", ToUserID: "bob", Amount: dec(100)})
	require.NoError(t, err)
	assert.Equal(t, "Transfer from Alice to Bob", txn.Description)
	assertBalance(t, 14700, env.balance(t, "alice", models.AccountTypeChecking))
	assertBalance(t, 1100, env.balance(t, "bob", models.AccountTypeChecking))

	// transfer, 3 collections, exchange, send
	assert.Equal(t, 6, env.transactionCount(t, "alice"))
	assert.Equal(t, 1, env.transactionCount(t, "bob"))
}

func TestLedgerService_Transfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice")
	env.createUser(t, "bob", "Bob")

	checking := env.account(t, "alice", models.AccountTypeChecking)
	savings := env.account(t, "alice", models.AccountTypeSavings)
	chest := env.account(t, "alice", models.AccountTypeTreasureChest)
	card := env.account(t, "alice", models.AccountTypeCreditCard)
	bobChecking := env.account(t, "bob", models.AccountTypeChecking)

	t.Run("treasure chest endpoint", func(t *testing.T) {
		_, err := env.ledger.Transfer(ctx, checking.ID, chest.ID, dec(1), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("different users", func(t *testing.T) {
		_, err := env.ledger.Transfer(ctx, checking.ID, bobChecking.ID, dec(10), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("credit card source", func(t *testing.T) {
		_, err := env.ledger.Transfer(ctx, card.ID, checking.ID, dec(10), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("same account", func(t *testing.T) {
		_, err := env.ledger.Transfer(ctx, checking.ID, checking.ID, dec(10), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("non positive amount", func(t *testing.T) {
		_, err := env.ledger.Transfer(ctx, checking.ID, savings.ID, dec(0), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))
		_, err = env.ledger.Transfer(ctx, checking.ID, savings.ID, dec(-5), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := env.ledger.Transfer(ctx, checking.ID, 9999, dec(10), "")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("insufficient funds leaves balances unchanged", func(t *testing.T) {
		_, err := env.ledger.Transfer(ctx, savings.ID, checking.ID, dec(501), "")
		assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))
		assertBalance(t, 500, env.balance(t, "alice", models.AccountTypeSavings))
		assertBalance(t, 1000, env.balance(t, "alice", models.AccountTypeChecking))
	})

	assert.Equal(t, 0, env.transactionCount(t, "alice"))

	t.Run("credit card destination pays down debt floored at zero", func(t *testing.T) {
		_, err := env.ledger.Withdraw(ctx, card.ID, dec(50), "")
		require.NoError(t, err)

		txn, err := env.ledger.Transfer(ctx, checking.ID, card.ID, dec(80), "Pay card")
		require.NoError(t, err)
		assert.Equal(t, "80", txn.Amount.String())
		assert.Equal(t, "Pay card", txn.Description)
		assertBalance(t, 920, env.balance(t, "alice", models.AccountTypeChecking))
		assertBalance(t, 0, env.balance(t, "alice", models.AccountTypeCreditCard))
	})
}

func TestLedgerService_DepositWithdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice")

	checking := env.account(t, "alice", models.AccountTypeChecking)
	chest := env.account(t, "alice", models.AccountTypeTreasureChest)
	card := env.account(t, "alice", models.AccountTypeCreditCard)

	t.Run("deposit", func(t *testing.T) {
		txn, err := env.ledger.Deposit(ctx, checking.ID, dec(250), "")
		require.NoError(t, err)
		assert.Nil(t, txn.FromAccountID)
		assert.Equal(t, checking.ID, *txn.ToAccountID)
		assert.Equal(t, "External deposit", txn.Description)
		assertBalance(t, 1250, env.balance(t, "alice", models.AccountTypeChecking))
	})

	t.Run("deposit to treasure chest", func(t *testing.T) {
		_, err := env.ledger.Deposit(ctx, chest.ID, dec(1), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("withdraw", func(t *testing.T) {
		txn, err := env.ledger.Withdraw(ctx, checking.ID, dec(50), "")
		require.NoError(t, err)
		assert.Equal(t, checking.ID, *txn.FromAccountID)
		assert.Nil(t, txn.ToAccountID)
		assert.Equal(t, models.TransactionTypeWithdrawal, txn.Type)
		assertBalance(t, 1200, env.balance(t, "alice", models.AccountTypeChecking))
	})

	t.Run("withdraw more than balance", func(t *testing.T) {
		_, err := env.ledger.Withdraw(ctx, checking.ID, dec(5000), "")
		assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))
		assertBalance(t, 1200, env.balance(t, "alice", models.AccountTypeChecking))
	})

	t.Run("withdraw from treasure chest", func(t *testing.T) {
		_, err := env.ledger.Withdraw(ctx, chest.ID, dec(1), "")
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("credit card withdrawal is a charge", func(t *testing.T) {
		_, err := env.ledger.Withdraw(ctx, card.ID, dec(50), "")
		require.NoError(t, err)
		assertBalance(t, 50, env.balance(t, "alice", models.AccountTypeCreditCard))
	})

	t.Run("credit card deposit pays down debt floored at zero", func(t *testing.T) {
		_, err := env.ledger.Deposit(ctx, card.ID, dec(30), "")
		require.NoError(t, err)
		assertBalance(t, 20, env.balance(t, "alice", models.AccountTypeCreditCard))

		_, err = env.ledger.Deposit(ctx, card.ID, dec(100), "")
		require.NoError(t, err)
		assertBalance(t, 0, env.balance(t, "alice", models.AccountTypeCreditCard))
	})
}

func TestLedgerService_Gold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice")

	t.Run("collect for unknown user", func(t *testing.T) {
		_, err := env.ledger.CollectGoldBar(ctx, "ghost")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	txn, err := env.ledger.CollectGoldBar(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeDeposit, txn.Type)
	assert.Equal(t, "1", txn.Amount.String())
	assert.Nil(t, txn.FromAccountID)
	assert.Equal(t, "Gold bar collected from game", txn.Description)

	t.Run("exchange more bars than held", func(t *testing.T) {
		_, err := env.ledger.ExchangeGold(ctx, "alice", 2, models.AccountTypeSavings)
		assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))
		assertBalance(t, 1, env.balance(t, "alice", models.AccountTypeTreasureChest))
		assertBalance(t, 500, env.balance(t, "alice", models.AccountTypeSavings))
	})

	t.Run("exchange to credit card", func(t *testing.T) {
		_, err := env.ledger.ExchangeGold(ctx, "alice", 1, models.AccountTypeCreditCard)
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("exchange zero bars", func(t *testing.T) {
		_, err := env.ledger.ExchangeGold(ctx, "alice", 0, models.AccountTypeChecking)
		assert.True(t, errors.Is(err, apperr.ErrInvalidAmount))
	})

	t.Run("exchange to savings", func(t *testing.T) {
		txn, err := env.ledger.ExchangeGold(ctx, "alice", 1, models.AccountTypeSavings)
		require.NoError(t, err)
		chest := env.account(t, "alice", models.AccountTypeTreasureChest)
		savings := env.account(t, "alice", models.AccountTypeSavings)
		assert.Equal(t, chest.ID, *txn.FromAccountID)
		assert.Equal(t, savings.ID, *txn.ToAccountID)
		assertBalance(t, 0, chest.Balance)
		assertBalance(t, 7500, savings.Balance)
	})

	t.Run("exchange beyond int64 cash", func(t *testing.T) {
		const bars = int64(2_000_000_000_000_000)
		chest := env.account(t, "alice", models.AccountTypeTreasureChest)
		_, err := env.accounts.SetBalance(ctx, chest.ID, dec(bars))
		require.NoError(t, err)

		txn, err := env.ledger.ExchangeGold(ctx, "alice", bars, models.AccountTypeSavings)
		require.NoError(t, err)
		assert.Equal(t, "2000000000000000", txn.Amount.String())
		assert.Equal(t, "14000000000000007500", env.balance(t, "alice", models.AccountTypeSavings).String())
	})

	assert.Equal(t, int64(7000), env.ledger.GoldBarValue())
}

func TestLedgerService_SendMoney(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice")
	env.createUser(t, "bob", "Bob")

	t.Run("to self", func(t *testing.T) {
		_, err := env.ledger.SendMoney(ctx, SendMoneyParams{FromUserID: "alice", ToUserID: "alice", Amount: dec(1)})
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("gold bars", func(t *testing.T) {
		_, err := env.ledger.SendMoney(ctx, SendMoneyParams{
			FromUserID: "alice", ToUserID: "bob", Amount: dec(1), ToAccountType: models.AccountTypeTreasureChest,
		})
		assert.True(t, errors.Is(err, apperr.ErrInvalidOperation))
	})

	t.Run("unknown recipient", func(t *testing.T) {
		_, err := env.ledger.SendMoney(ctx, SendMoneyParams{FromUserID: "alice", ToUserID: "ghost", Amount: dec(1)})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		assert.Contains(t, err.Error(), "recipient ghost not found")
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := env.ledger.SendMoney(ctx, SendMoneyParams{
			FromUserID: "alice", ToUserID: "bob", Amount: dec(600), FromAccountType: models.AccountTypeSavings,
		})
		assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))
	})

	t.Run("credit card destination pays down debt", func(t *testing.T) {
		bobCard := env.account(t, "bob", models.AccountTypeCreditCard)
		_, err := env.ledger.Withdraw(ctx, bobCard.ID, dec(40), "")
		require.NoError(t, err)

		_, err = env.ledger.SendMoney(ctx, SendMoneyParams{
			FromUserID: "alice", ToUserID: "bob", Amount: dec(100), ToAccountType: models.AccountTypeCreditCard,
		})
		require.NoError(t, err)
		assertBalance(t, 900, env.balance(t, "alice", models.AccountTypeChecking))
		assertBalance(t, 0, env.balance(t, "bob", models.AccountTypeCreditCard))
	})

	t.Run("notifies both users", func(t *testing.T) {
		before := len(env.publisher.all())
		txn, err := env.ledger.SendMoney(ctx, SendMoneyParams{FromUserID: "bob", ToUserID: "alice", Amount: dec(25), Description: "Lunch"})
		require.NoError(t, err)

		published := env.publisher.all()[before:]
		require.Len(t, published, 2)
		assert.Equal(t, events.MoneySent, published[0].Type)
		assert.Equal(t, "bob", published[0].UserID)
		assert.Equal(t, "alice", published[0].CounterpartyID)
		assert.Equal(t, events.MoneyReceived, published[1].Type)
		assert.Equal(t, "alice", published[1].UserID)
		assert.Equal(t, txn.ID, published[1].Transaction.ID)
	})
}

func TestLedgerService_ConcurrentTransfersNeverOverdraw(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "Alice")
	checking := env.account(t, "alice", models.AccountTypeChecking)
	savings := env.account(t, "alice", models.AccountTypeSavings)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Transfer(ctx, checking.ID, savings.ID, dec(100), "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds), err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assertBalance(t, 0, env.balance(t, "alice", models.AccountTypeChecking))
	assertBalance(t, 1500, env.balance(t, "alice", models.AccountTypeSavings))
	assert.Equal(t, 10, env.transactionCount(t, "alice"))
}

func TestLedgerService_TransferRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	logger := zap.NewNop()
	service := NewLedgerService(store.New(db, store.Postgres), nil, audit.NewLogger(logger), logger)
	service.now = func() time.Time { return time.UnixMilli(1700000000000) }
	columns := []string{"id", "user_id", "type", "name", "balance", "version", "created_at", "updated_at"}

	mock.ExpectBegin()

	// Locks are taken lowest id first
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(1, "alice", "savings", "Savings Account", "500", 1, 0, 0))
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(2, "alice", "checking", "Checking Account", "1000", 3, 0, 0))

	mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
		WithArgs("800", int64(1700000000000), int64(2), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
		WithArgs("700", int64(1700000000000), int64(1), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs(int64(2), int64(1), "200", "transfer", "Transfer from Checking Account to Savings Account", int64(1700000000000)).
		WillReturnError(errors.New("disk full"))

	mock.ExpectRollback()

	_, err = service.Transfer(context.Background(), 2, 1, dec(200), "")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrInternal))
	assert.Contains(t, err.Error(), "insert transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

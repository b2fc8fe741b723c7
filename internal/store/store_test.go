package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/models"
)

var accountRowColumns = []string{"id", "user_id", "type", "name", "balance", "version", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, Postgres), mock
}

func TestDialect_Rebind(t *testing.T) {
	query := "SELECT * FROM t WHERE a = $1 OR b = $1 LIMIT $12"
	assert.Equal(t, query, Postgres.rebind(query))
	assert.Equal(t, "SELECT * FROM t WHERE a = ?1 OR b = ?1 LIMIT ?12", SQLite.rebind(query))
}

func TestDialect_LockClause(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", Postgres.lockClause())
	assert.Equal(t, "", SQLite.lockClause())
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%alice%", containsPattern("ALICE"))
	assert.Equal(t, `%50\%\_off%`, containsPattern("50%_off"))
	assert.Equal(t, "%%", containsPattern(""))
}

func TestStore_LockAccounts(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	t.Run("locks in ascending id order", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, type, name, balance, version, created_at, updated_at FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(3, "alice", "savings", "Savings Account", "500", 1, now, now))
		mock.ExpectQuery("SELECT id, user_id, type, name, balance, version, created_at, updated_at FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(9, "alice", "checking", "Checking Account", "1000.00", 4, now, now))
		mock.ExpectCommit()

		var locked map[int64]*models.Account
		err := st.InTx(ctx, func(q *Queries) error {
			var err error
			locked, err = q.LockAccounts(ctx, 9, 3)
			return err
		})
		require.NoError(t, err)
		assert.Len(t, locked, 2)
		assert.True(t, locked[9].Balance.Equal(decimal.NewFromInt(1000)))
		assert.Equal(t, models.AccountTypeSavings, locked[3].Type)
		assert.Equal(t, 4, locked[9].Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(accountRowColumns))
		mock.ExpectRollback()

		err := st.InTx(ctx, func(q *Queries) error {
			_, err := q.LockAccounts(ctx, 1, 1)
			return err
		})
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_UpdateAccountBalance(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("successful update", func(t *testing.T) {
		account := &models.Account{ID: 1, Balance: decimal.NewFromInt(1000), Version: 1}
		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs("800", sqlmock.AnyArg(), int64(1), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := st.UpdateAccountBalance(ctx, account, decimal.NewFromInt(800), time.Now())
		assert.NoError(t, err)
		assert.Equal(t, "800", account.Balance.String())
		assert.Equal(t, 2, account.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		account := &models.Account{ID: 1, Balance: decimal.NewFromInt(1000), Version: 1}
		mock.ExpectExec("UPDATE accounts").
			WithArgs("800", sqlmock.AnyArg(), int64(1), 1).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := st.UpdateAccountBalance(ctx, account, decimal.NewFromInt(800), time.Now())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "optimistic lock failed for account 1")
		assert.True(t, account.Balance.Equal(decimal.NewFromInt(1000)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_InsertTransaction(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	to := int64(2)

	txn := &models.Transaction{
		ToAccountID: &to,
		Amount:      decimal.NewFromInt(1),
		Type:        models.TransactionTypeDeposit,
		Description: "Gold bar collected from game",
		CreatedAt:   time.Now(),
	}
	mock.ExpectQuery("INSERT INTO transactions \\(from_account_id, to_account_id, amount, type, description, created_at\\)").
		WithArgs(nil, int64(2), "1", "deposit", "Gold bar collected from game", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(77))

	require.NoError(t, st.InsertTransaction(ctx, txn))
	assert.Equal(t, int64(77), txn.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListTransactionsForUser(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now().UnixMilli()

	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE from_account_id IN \\(SELECT id FROM accounts WHERE user_id = \\$1\\) (.+) ORDER BY created_at DESC, id DESC LIMIT \\$2").
		WithArgs("alice", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "from_account_id", "to_account_id", "amount", "type", "description", "created_at"}).
			AddRow(2, 1, nil, "25.50", "withdrawal", "External withdrawal", now).
			AddRow(1, nil, 1, "100", "deposit", "External deposit", now-1000))

	txns, err := st.ListTransactionsForUser(ctx, "alice", 50)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Nil(t, txns[0].ToAccountID)
	assert.Equal(t, int64(1), *txns[0].FromAccountID)
	assert.Nil(t, txns[1].FromAccountID)
	assert.Equal(t, "25.5", txns[0].Amount.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UserQueries(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("get missing user", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, created_at FROM users WHERE id = \\$1").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}))

		_, err := st.GetUser(ctx, "ghost")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("rename missing user", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET name = \\$1 WHERE id = \\$2").
			WithArgs("Bob", "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := st.UpdateUserName(ctx, "ghost", "Bob")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("search escapes wildcards", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, created_at FROM users WHERE LOWER\\(id\\) LIKE \\$1").
			WithArgs(`%100\%%`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).
				AddRow("p1", "100% Pirate", time.Now().UnixMilli()))

		users, err := st.SearchUsers(ctx, "100%")
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InTxCommitFailure(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := st.InTx(context.Background(), func(q *Queries) error { return nil })
	assert.True(t, errors.Is(err, apperr.ErrInternal))
	assert.Contains(t, err.Error(), "commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/models"
)

const accountColumns = `id, user_id, type, name, balance, version, created_at, updated_at`

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account   models.Account
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&account.ID, &account.UserID, &account.Type, &account.Name,
		&account.Balance, &account.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	account.CreatedAt = fromMillis(createdAt)
	account.UpdatedAt = fromMillis(updatedAt)
	return &account, nil
}

// GetAccount reads an account without locking it.
func (q *Queries) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	account, err := scanAccount(q.queryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("account %d not found", id)
	}
	return account, internal(err, "get account")
}

// LockAccount reads an account and holds its row until the transaction ends.
func (q *Queries) LockAccount(ctx context.Context, id int64) (*models.Account, error) {
	account, err := scanAccount(q.queryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1`+q.dialect.lockClause(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("account %d not found", id)
	}
	return account, internal(err, "lock account")
}

func (q *Queries) GetAccountByUserAndType(ctx context.Context, userID string, accountType models.AccountType) (*models.Account, error) {
	account, err := scanAccount(q.queryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1 AND type = $2`, userID, accountType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("%s account not found for user %s", accountType, userID)
	}
	return account, internal(err, "get account by type")
}

// LockAccounts locks the given accounts in ascending id order so that two
// operations over the same pair can never deadlock. The result is keyed by id.
func (q *Queries) LockAccounts(ctx context.Context, ids ...int64) (map[int64]*models.Account, error) {
	ordered := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}
	slices.Sort(ordered)

	locked := make(map[int64]*models.Account, len(ordered))
	for _, id := range ordered {
		account, err := q.LockAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = account
	}
	return locked, nil
}

func (q *Queries) ListAccountsByUser(ctx context.Context, userID string) ([]models.Account, error) {
	rows, err := q.query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1
		ORDER BY id`, userID)
	if err != nil {
		return nil, internal(err, "list accounts")
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, internal(err, "scan account")
		}
		accounts = append(accounts, *account)
	}
	return accounts, internal(rows.Err(), "list accounts")
}

func (q *Queries) InsertAccount(ctx context.Context, userID string, accountType models.AccountType, balance decimal.Decimal, now time.Time) (*models.Account, error) {
	account := &models.Account{
		UserID:    userID,
		Type:      accountType,
		Name:      accountType.DisplayName(),
		Balance:   balance,
		Version:   1,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	err := q.queryRow(ctx, `
		INSERT INTO accounts (user_id, type, name, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		userID, accountType, account.Name, balance, account.Version, toMillis(now), toMillis(now)).Scan(&account.ID)
	if isUniqueViolation(err) {
		return nil, apperr.Conflict("user %s already has a %s account", userID, accountType)
	}
	if err != nil {
		return nil, internal(err, "insert account")
	}
	return account, nil
}

// UpdateAccountBalance persists a new balance for a row read in the same
// transaction and refreshes account in place.
func (q *Queries) UpdateAccountBalance(ctx context.Context, account *models.Account, newBalance decimal.Decimal, now time.Time) error {
	result, err := q.exec(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		newBalance, toMillis(now), account.ID, account.Version)
	if err != nil {
		return internal(err, "update account balance")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return internal(err, "update account balance")
	}
	if rowsAffected == 0 {
		return apperr.Wrap(apperr.KindInternal, fmt.Errorf("optimistic lock failed for account %d", account.ID), "update account balance")
	}

	account.Balance = newBalance
	account.Version++
	account.UpdatedAt = now.UTC()
	return nil
}

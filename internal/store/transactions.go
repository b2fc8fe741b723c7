package store

import (
	"context"
	"database/sql"

	"github.com/treasurehunt/backend/internal/models"
)

const transactionColumns = `id, from_account_id, to_account_id, amount, type, description, created_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		txn       models.Transaction
		from, to  sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&txn.ID, &from, &to, &txn.Amount, &txn.Type, &txn.Description, &createdAt); err != nil {
		return nil, err
	}
	if from.Valid {
		txn.FromAccountID = &from.Int64
	}
	if to.Valid {
		txn.ToAccountID = &to.Int64
	}
	txn.CreatedAt = fromMillis(createdAt)
	return &txn, nil
}

// InsertTransaction appends a ledger record and sets its id.
func (q *Queries) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	err := q.queryRow(ctx, `
		INSERT INTO transactions (from_account_id, to_account_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		txn.FromAccountID, txn.ToAccountID, txn.Amount, txn.Type, txn.Description, toMillis(txn.CreatedAt)).Scan(&txn.ID)
	return internal(err, "insert transaction")
}

// ListTransactionsForUser returns transactions touching any account the user
// owns, newest first.
func (q *Queries) ListTransactionsForUser(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	return q.listTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE from_account_id IN (SELECT id FROM accounts WHERE user_id = $1)
		   OR to_account_id IN (SELECT id FROM accounts WHERE user_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
}

func (q *Queries) ListTransactionsForAccount(ctx context.Context, accountID int64, limit int) ([]models.Transaction, error) {
	return q.listTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, accountID, limit)
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, internal(err, "list transactions")
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, internal(err, "scan transaction")
		}
		txns = append(txns, *txn)
	}
	return txns, internal(rows.Err(), "list transactions")
}

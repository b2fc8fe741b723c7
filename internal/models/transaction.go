package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeTransfer     TransactionType = "transfer"
	TransactionTypeDeposit      TransactionType = "deposit"
	TransactionTypeWithdrawal   TransactionType = "withdrawal"
	TransactionTypeGoldExchange TransactionType = "gold_exchange"
)

// Transaction is an append-only ledger record. A nil endpoint is the
// outside world: the source of a deposit or the sink of a withdrawal.
type Transaction struct {
	ID            int64           `json:"id" db:"id" example:"42"`
	FromAccountID *int64          `json:"from_account_id" db:"from_account_id" example:"1"`
	ToAccountID   *int64          `json:"to_account_id" db:"to_account_id" example:"2"`
	Amount        decimal.Decimal `json:"amount" db:"amount" swaggertype:"string" example:"200"` // Bar count for gold_exchange
	Type          TransactionType `json:"type" db:"type" example:"transfer"`
	Description   string          `json:"description" db:"description"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// Touches reports whether the transaction moves value in or out of accountID.
func (t *Transaction) Touches(accountID int64) bool {
	return (t.FromAccountID != nil && *t.FromAccountID == accountID) ||
		(t.ToAccountID != nil && *t.ToAccountID == accountID)
}

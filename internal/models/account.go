package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoldBarRate is the cash value of a single gold bar.
const GoldBarRate = 7000

type AccountType string

const (
	AccountTypeChecking      AccountType = "checking"
	AccountTypeSavings       AccountType = "savings"
	AccountTypeTreasureChest AccountType = "treasure_chest"
	AccountTypeCreditCard    AccountType = "credit_card"
)

// ParseAccountType returns the account type named by s.
func ParseAccountType(s string) (AccountType, bool) {
	t := AccountType(s)
	return t, t.Valid()
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings, AccountTypeTreasureChest, AccountTypeCreditCard:
		return true
	}
	return false
}

// IsLoan reports whether the balance of this account type is an amount owed.
func (t AccountType) IsLoan() bool {
	return t == AccountTypeCreditCard
}

func (t AccountType) DisplayName() string {
	switch t {
	case AccountTypeChecking:
		return "Checking Account"
	case AccountTypeSavings:
		return "Savings Account"
	case AccountTypeTreasureChest:
		return "Treasure Chest"
	case AccountTypeCreditCard:
		return "Credit Card"
	}
	return string(t)
}

// DefaultAccount describes one account every user is provisioned with.
type DefaultAccount struct {
	Type    AccountType
	Balance decimal.Decimal
}

// DefaultAccounts lists the provisioned account types with their seed balances.
var DefaultAccounts = []DefaultAccount{
	{Type: AccountTypeChecking, Balance: decimal.NewFromInt(1000)},
	{Type: AccountTypeSavings, Balance: decimal.NewFromInt(500)},
	{Type: AccountTypeTreasureChest, Balance: decimal.Zero},
	{Type: AccountTypeCreditCard, Balance: decimal.Zero},
}

type Account struct {
	ID        int64           `json:"id" db:"id" example:"1"`
	UserID    string          `json:"user_id" db:"user_id" example:"player-7f3a"`
	Type      AccountType     `json:"type" db:"type" example:"checking"`
	Name      string          `json:"name" db:"name" example:"Checking Account"`
	Balance   decimal.Decimal `json:"balance" db:"balance" swaggertype:"string" example:"1000"` // Cash, bar count, or debt for credit cards
	Version   int             `json:"-" db:"version"`                                            // for optimistic locking
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

func (a *Account) IsLoan() bool {
	return a.Type.IsLoan()
}

// AccountSummary is the per-user balance overview.
type AccountSummary struct {
	Accounts  []Account       `json:"accounts"`
	TotalCash decimal.Decimal `json:"total_cash" swaggertype:"string" example:"1500"` // Sum of every non treasure chest balance
	GoldBars  int64           `json:"gold_bars" example:"3"`
}

// Summarize builds the summary of the given accounts. Credit card debt is
// counted in TotalCash as-is.
func Summarize(accounts []Account) AccountSummary {
	summary := AccountSummary{Accounts: accounts, TotalCash: decimal.Zero}
	if summary.Accounts == nil {
		summary.Accounts = []Account{}
	}
	for _, acc := range accounts {
		if acc.Type == AccountTypeTreasureChest {
			summary.GoldBars = acc.Balance.IntPart()
			continue
		}
		summary.TotalCash = summary.TotalCash.Add(acc.Balance)
	}
	return summary
}

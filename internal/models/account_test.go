package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseAccountType(t *testing.T) {
	typ, ok := ParseAccountType("treasure_chest")
	assert.True(t, ok)
	assert.Equal(t, AccountTypeTreasureChest, typ)

	_, ok = ParseAccountType("brokerage")
	assert.False(t, ok)
}

func TestAccountType_IsLoan(t *testing.T) {
	assert.True(t, AccountTypeCreditCard.IsLoan())
	assert.False(t, AccountTypeChecking.IsLoan())
	assert.False(t, AccountTypeTreasureChest.IsLoan())
}

func TestDefaultAccounts(t *testing.T) {
	assert.Len(t, DefaultAccounts, 4)
	seeds := map[AccountType]string{}
	for _, d := range DefaultAccounts {
		seeds[d.Type] = d.Balance.String()
	}
	assert.Equal(t, map[AccountType]string{
		AccountTypeChecking:      "1000",
		AccountTypeSavings:       "500",
		AccountTypeTreasureChest: "0",
		AccountTypeCreditCard:    "0",
	}, seeds)
}

func TestSummarize(t *testing.T) {
	t.Run("counts credit card debt as cash", func(t *testing.T) {
		summary := Summarize([]Account{
			{Type: AccountTypeChecking, Balance: decimal.NewFromInt(800)},
			{Type: AccountTypeSavings, Balance: decimal.NewFromInt(700)},
			{Type: AccountTypeTreasureChest, Balance: decimal.NewFromInt(3)},
			{Type: AccountTypeCreditCard, Balance: decimal.NewFromInt(50)},
		})
		assert.True(t, summary.TotalCash.Equal(decimal.NewFromInt(1550)))
		assert.Equal(t, int64(3), summary.GoldBars)
	})

	t.Run("no treasure chest", func(t *testing.T) {
		summary := Summarize(nil)
		assert.Empty(t, summary.Accounts)
		assert.NotNil(t, summary.Accounts)
		assert.True(t, summary.TotalCash.IsZero())
		assert.Equal(t, int64(0), summary.GoldBars)
	})
}

func TestTransaction_Touches(t *testing.T) {
	from, to := int64(1), int64(2)
	tx := Transaction{FromAccountID: &from, ToAccountID: &to}
	assert.True(t, tx.Touches(1))
	assert.True(t, tx.Touches(2))
	assert.False(t, tx.Touches(3))

	deposit := Transaction{ToAccountID: &to}
	assert.False(t, deposit.Touches(1))
	assert.True(t, deposit.Touches(2))
}

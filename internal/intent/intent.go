// Package intent turns a spoken or typed request into a ledger command.
package intent

import (
	"context"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionCheckBalance    Action = "check_balance"
	ActionTransfer        Action = "transfer"
	ActionSendMoney       Action = "send_money"
	ActionExchangeGold    Action = "exchange_gold"
	ActionGetTransactions Action = "get_transactions"
	ActionHelp            Action = "help"
	ActionUnknown         Action = "unknown"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCheckBalance, ActionTransfer, ActionSendMoney, ActionExchangeGold,
		ActionGetTransactions, ActionHelp, ActionUnknown:
		return true
	}
	return false
}

const (
	ParserKeywords = "keywords"
	ParserGemini   = "gemini"
)

// AllAccounts is the account type used when a request names no account.
const AllAccounts = "all"

// DefaultConfidenceThreshold is the confidence below which a command is
// treated as unknown.
const DefaultConfidenceThreshold = 0.5

// Params holds the arguments of a command. Only the fields relevant to the
// action are set.
type Params struct {
	AccountType   string          `json:"account_type,omitempty"`
	FromAccount   string          `json:"from_account,omitempty"`
	ToAccount     string          `json:"to_account,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	RecipientName string          `json:"recipient_name,omitempty"`
	Bars          int64           `json:"bars,omitempty"`
	Limit         int             `json:"limit,omitempty"`
}

type Command struct {
	Action      Action  `json:"action"`
	Params      Params  `json:"parameters"`
	Confidence  float64 `json:"confidence"`
	Parser      string  `json:"parser,omitempty"`
	ParserError string  `json:"parser_error,omitempty"`
}

type Parser interface {
	Parse(ctx context.Context, transcript string) (Command, error)
}

// Resolve downgrades commands the parser was not sure about, or did not
// recognise, to ActionUnknown.
func Resolve(cmd Command, threshold float64) Command {
	if !cmd.Action.Valid() || cmd.Confidence < threshold {
		cmd.Action = ActionUnknown
	}
	return cmd
}

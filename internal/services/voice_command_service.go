package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/treasurehunt/backend/internal/apperr"
	"github.com/treasurehunt/backend/internal/intent"
	"github.com/treasurehunt/backend/internal/models"
)

// actionError marks a result for a request that could not be parsed at all.
const actionError intent.Action = "error"

const voiceHistoryLimit = 5

var moneyPrinter = message.NewPrinter(language.English)

func formatMoney(amount decimal.Decimal) string {
	return moneyPrinter.Sprintf("%.2f", amount.InexactFloat64())
}

// CommandResult is the outcome of a voice command, phrased for speech.
type CommandResult struct {
	Success        bool          `json:"success"`
	Action         intent.Action `json:"action"`
	SpokenResponse string        `json:"spoken_response"`
	Data           any           `json:"data,omitempty"`
	Error          string        `json:"error,omitempty"`
	Parser         string        `json:"parser,omitempty"`
}

// VoiceCommandService parses a transcript and runs the matching ledger
// operation on behalf of the speaking user.
type VoiceCommandService struct {
	parser    intent.Parser
	threshold float64
	users     *UserService
	accounts  *AccountService
	ledger    *LedgerService
	history   *HistoryService
	logger    *zap.Logger
}

func NewVoiceCommandService(parser intent.Parser, threshold float64, users *UserService, accounts *AccountService,
	ledger *LedgerService, history *HistoryService, logger *zap.Logger) *VoiceCommandService {
	return &VoiceCommandService{
		parser:    parser,
		threshold: threshold,
		users:     users,
		accounts:  accounts,
		ledger:    ledger,
		history:   history,
		logger:    logger.Named("voice_command"),
	}
}

func (s *VoiceCommandService) Execute(ctx context.Context, userID, transcript string) CommandResult {
	cmd, err := s.parser.Parse(ctx, transcript)
	if err != nil {
		s.logger.Error("parse voice command", zap.String("user_id", userID), zap.Error(err))
		return CommandResult{
			Action:         actionError,
			SpokenResponse: fmt.Sprintf("An error occurred: %v", err),
			Error:          err.Error(),
		}
	}
	cmd = intent.Resolve(cmd, s.threshold)

	var result CommandResult
	switch cmd.Action {
	case intent.ActionCheckBalance:
		result = s.checkBalance(ctx, userID, cmd.Params)
	case intent.ActionTransfer:
		result = s.transfer(ctx, userID, cmd.Params)
	case intent.ActionSendMoney:
		result = s.sendMoney(ctx, userID, cmd.Params)
	case intent.ActionExchangeGold:
		result = s.exchangeGold(ctx, userID, cmd.Params)
	case intent.ActionGetTransactions:
		result = s.getTransactions(ctx, userID, cmd.Params)
	case intent.ActionHelp:
		result = help()
	default:
		result = unknown()
	}

	result.Action = cmd.Action
	result.Parser = cmd.Parser
	s.logger.Info("voice command executed",
		zap.String("user_id", userID),
		zap.String("action", string(cmd.Action)),
		zap.String("parser", cmd.Parser),
		zap.Bool("success", result.Success))
	return result
}

// failure phrases err for speech. Ledger errors are spoken as-is; anything
// else is prefixed with what was being attempted.
func (s *VoiceCommandService) failure(what string, err error) CommandResult {
	if apperr.KindOf(err) == apperr.KindInternal {
		s.logger.Error(what, zap.Error(err))
		return CommandResult{SpokenResponse: fmt.Sprintf("%s: %v", what, err), Error: err.Error()}
	}
	return CommandResult{SpokenResponse: err.Error(), Error: err.Error()}
}

func invalid(spoken, reason string) CommandResult {
	return CommandResult{SpokenResponse: spoken, Error: reason}
}

func accountTypeOr(value string, fallback models.AccountType) (models.AccountType, error) {
	if value == "" {
		return fallback, nil
	}
	t, ok := models.ParseAccountType(value)
	if !ok {
		return "", apperr.InvalidOperation("I don't know a %s account", value)
	}
	return t, nil
}

func (s *VoiceCommandService) checkBalance(ctx context.Context, userID string, p intent.Params) CommandResult {
	if p.AccountType == "" || p.AccountType == intent.AllAccounts {
		summary, err := s.accounts.GetSummary(ctx, userID)
		if err != nil {
			return s.failure("Error checking balance", err)
		}
		if len(summary.Accounts) == 0 {
			return invalid("You don't have any accounts yet.", "No accounts")
		}

		parts := make([]string, 0, len(summary.Accounts))
		for _, acc := range summary.Accounts {
			parts = append(parts, describeBalance(acc.Type, acc.Balance, false))
		}
		return CommandResult{
			Success:        true,
			SpokenResponse: strings.Join(parts, ". ") + ".",
			Data:           summary,
		}
	}

	accountType, err := accountTypeOr(p.AccountType, models.AccountTypeChecking)
	if err != nil {
		return s.failure("Error checking balance", err)
	}
	balance, err := s.accounts.GetBalanceByType(ctx, userID, accountType)
	if err != nil {
		return s.failure("Error checking balance", err)
	}
	return CommandResult{
		Success:        true,
		SpokenResponse: describeBalance(accountType, balance, true) + ".",
		Data:           map[string]any{"account_type": accountType, "balance": balance},
	}
}

func describeBalance(t models.AccountType, balance decimal.Decimal, single bool) string {
	switch t {
	case models.AccountTypeTreasureChest:
		return fmt.Sprintf("You have %d gold bars in your treasure chest", balance.IntPart())
	case models.AccountTypeCreditCard:
		if balance.IsPositive() {
			return fmt.Sprintf("You owe $%s on your credit card", formatMoney(balance))
		}
		return "Your credit card has no balance"
	}
	if single {
		return fmt.Sprintf("Your %s account balance is $%s", t, formatMoney(balance))
	}
	return fmt.Sprintf("Your %s account has $%s", t, formatMoney(balance))
}

func (s *VoiceCommandService) transfer(ctx context.Context, userID string, p intent.Params) CommandResult {
	if !p.Amount.IsPositive() {
		return invalid("Please specify a valid amount to transfer.", "Invalid amount")
	}
	fromType, err := accountTypeOr(p.FromAccount, models.AccountTypeChecking)
	if err != nil {
		return s.failure("Transfer failed", err)
	}
	toType, err := accountTypeOr(p.ToAccount, models.AccountTypeSavings)
	if err != nil {
		return s.failure("Transfer failed", err)
	}

	from, err := s.accounts.GetByUserAndType(ctx, userID, fromType)
	if err != nil {
		return s.failure("Transfer failed", err)
	}
	to, err := s.accounts.GetByUserAndType(ctx, userID, toType)
	if err != nil {
		return s.failure("Transfer failed", err)
	}

	txn, err := s.ledger.Transfer(ctx, from.ID, to.ID, p.Amount, "Voice command transfer")
	if err != nil {
		return s.failure("Transfer failed", err)
	}

	fromBalance, err := s.accounts.GetBalance(ctx, from.ID)
	if err != nil {
		return s.failure("Transfer failed", err)
	}
	toBalance, err := s.accounts.GetBalance(ctx, to.ID)
	if err != nil {
		return s.failure("Transfer failed", err)
	}

	var spoken string
	if toType == models.AccountTypeCreditCard {
		spoken = fmt.Sprintf("Done! I've transferred $%s from %s to pay off your credit card. Your %s balance is now $%s, and your credit card balance is $%s.",
			formatMoney(p.Amount), fromType, fromType, formatMoney(fromBalance), formatMoney(toBalance))
	} else {
		spoken = fmt.Sprintf("Done! I've transferred $%s from %s to %s. Your %s balance is now $%s, and your %s balance is $%s.",
			formatMoney(p.Amount), fromType, toType, fromType, formatMoney(fromBalance), toType, formatMoney(toBalance))
	}
	return CommandResult{
		Success:        true,
		SpokenResponse: spoken,
		Data: map[string]any{
			"transaction_id": txn.ID,
			"amount":         p.Amount,
			"from_balance":   fromBalance,
			"to_balance":     toBalance,
		},
	}
}

func (s *VoiceCommandService) sendMoney(ctx context.Context, userID string, p intent.Params) CommandResult {
	name := strings.TrimSpace(p.RecipientName)
	if name == "" {
		return invalid("Please specify who you want to send money to.", "No recipient specified")
	}
	if !p.Amount.IsPositive() {
		return invalid("Please specify a valid amount to send.", "Invalid amount")
	}
	fromType, err := accountTypeOr(p.FromAccount, models.AccountTypeChecking)
	if err != nil {
		return s.failure("Send failed", err)
	}

	matches, err := s.users.Search(ctx, name)
	if err != nil {
		return s.failure("Send failed", err)
	}
	switch {
	case len(matches) == 0:
		return invalid(fmt.Sprintf("I couldn't find anyone named %s. Please check the name and try again.", name), "Recipient not found")
	case len(matches) > 1:
		names := make([]string, 0, 3)
		for _, u := range matches[:min(3, len(matches))] {
			names = append(names, u.Name)
		}
		result := invalid(fmt.Sprintf("I found multiple people matching that name: %s. Please be more specific.", strings.Join(names, ", ")),
			"Multiple recipients found")
		result.Data = map[string]any{"matches": matches[:min(5, len(matches))]}
		return result
	}

	recipient := matches[0]
	if recipient.ID == userID {
		return invalid("You can't send money to yourself. Use transfer instead.", "Cannot send to self")
	}

	txn, err := s.ledger.SendMoney(ctx, SendMoneyParams{
		FromUserID:      userID,
		ToUserID:        recipient.ID,
		Amount:          p.Amount,
		FromAccountType: fromType,
		ToAccountType:   models.AccountTypeChecking,
		Description:     "Voice command: Send to " + recipient.Name,
	})
	if err != nil {
		return s.failure("Send failed", err)
	}

	balance, err := s.accounts.GetBalanceByType(ctx, userID, fromType)
	if err != nil {
		return s.failure("Send failed", err)
	}
	return CommandResult{
		Success: true,
		SpokenResponse: fmt.Sprintf("Done! I've sent $%s to %s. Your %s balance is now $%s.",
			formatMoney(p.Amount), recipient.Name, fromType, formatMoney(balance)),
		Data: map[string]any{
			"transaction_id": txn.ID,
			"recipient_name": recipient.Name,
			"amount":         p.Amount,
			"new_balance":    balance,
		},
	}
}

func (s *VoiceCommandService) exchangeGold(ctx context.Context, userID string, p intent.Params) CommandResult {
	bars := p.Bars
	if bars == 0 {
		bars = 1
	}
	if bars < 0 {
		return invalid("Please specify how many gold bars you want to exchange.", "Invalid number of bars")
	}
	toType, err := accountTypeOr(p.ToAccount, models.AccountTypeChecking)
	if err != nil {
		return s.failure("Exchange failed", err)
	}

	txn, err := s.ledger.ExchangeGold(ctx, userID, bars, toType)
	if err != nil {
		return s.failure("Exchange failed", err)
	}

	cash := decimal.NewFromInt(bars * s.ledger.GoldBarValue())
	balance, err := s.accounts.GetBalanceByType(ctx, userID, toType)
	if err != nil {
		return s.failure("Exchange failed", err)
	}
	remaining, err := s.accounts.GetBalanceByType(ctx, userID, models.AccountTypeTreasureChest)
	if err != nil {
		return s.failure("Exchange failed", err)
	}

	barWord := "bars"
	if bars == 1 {
		barWord = "bar"
	}
	return CommandResult{
		Success: true,
		SpokenResponse: fmt.Sprintf("Done! I've exchanged %d gold %s for $%s. Your %s balance is now $%s. You have %d gold bars remaining.",
			bars, barWord, formatMoney(cash), toType, formatMoney(balance), remaining.IntPart()),
		Data: map[string]any{
			"transaction_id": txn.ID,
			"bars_exchanged": bars,
			"cash_received":  cash,
			"new_balance":    balance,
			"remaining_gold": remaining.IntPart(),
		},
	}
}

func (s *VoiceCommandService) getTransactions(ctx context.Context, userID string, p intent.Params) CommandResult {
	limit := p.Limit
	if limit <= 0 {
		limit = voiceHistoryLimit
	}

	var (
		txns []models.Transaction
		err  error
	)
	if p.AccountType == "" || p.AccountType == intent.AllAccounts {
		txns, err = s.history.ForUser(ctx, userID, limit)
	} else {
		var accountType models.AccountType
		accountType, err = accountTypeOr(p.AccountType, models.AccountTypeChecking)
		if err == nil {
			var account *models.Account
			account, err = s.accounts.GetByUserAndType(ctx, userID, accountType)
			if err == nil {
				txns, err = s.history.ForAccount(ctx, account.ID, limit)
			}
		}
	}
	if err != nil {
		return s.failure("Error getting transactions", err)
	}

	if len(txns) == 0 {
		return CommandResult{
			Success:        true,
			SpokenResponse: "You don't have any recent transactions.",
			Data:           map[string]any{"transactions": txns},
		}
	}

	parts := []string{fmt.Sprintf("Here are your last %d transactions:", len(txns))}
	for i, txn := range txns[:min(voiceHistoryLimit, len(txns))] {
		parts = append(parts, fmt.Sprintf("%d. %s", i+1, describeTransaction(txn)))
	}
	return CommandResult{
		Success:        true,
		SpokenResponse: strings.Join(parts, " "),
		Data:           map[string]any{"transactions": txns},
	}
}

func describeTransaction(txn models.Transaction) string {
	switch txn.Type {
	case models.TransactionTypeDeposit:
		return fmt.Sprintf("Deposit of $%s", formatMoney(txn.Amount))
	case models.TransactionTypeWithdrawal:
		return fmt.Sprintf("Withdrawal of $%s", formatMoney(txn.Amount))
	case models.TransactionTypeGoldExchange:
		return fmt.Sprintf("Gold exchange of %d bars", txn.Amount.IntPart())
	}
	return fmt.Sprintf("Transfer of $%s", formatMoney(txn.Amount))
}

func help() CommandResult {
	return CommandResult{
		Success: true,
		SpokenResponse: "I can help you with the following commands: " +
			"Say 'check my balance' to see your account balances. " +
			"Say 'transfer' followed by an amount and account names to move money between your accounts. " +
			"Say 'send' followed by an amount and a person's name to send them money. " +
			"Say 'exchange gold' to convert your gold bars to cash. " +
			"Say 'show transactions' to see your recent activity.",
		Data: map[string]any{"commands": []intent.Action{
			intent.ActionCheckBalance, intent.ActionTransfer, intent.ActionSendMoney,
			intent.ActionExchangeGold, intent.ActionGetTransactions,
		}},
	}
}

func unknown() CommandResult {
	return CommandResult{
		SpokenResponse: "I'm sorry, I didn't understand that. You can ask me to check your balance, transfer money, " +
			"send money to someone, exchange gold bars, or show your transactions. Say 'help' for more options.",
		Error: "Unknown command",
	}
}

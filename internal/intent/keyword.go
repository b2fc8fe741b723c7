package intent

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(p)
	}
	return res
}

var (
	balancePatterns = compileAll(
		`\b(balance|how much|what'?s? my|check my|show my)\b.*\b(account|money|have|got)\b`,
		`\bbalance\b`,
		`\bhow much (do i|money|in)\b`,
		`\bcheck(ing)?\s+(balance|account)\b`,
		`\bcheck\s+(my\s+)?(gold|treasure|saving|checking|credit)\b`,
		`\bhow much.*\b(credit|card|gold|saving|checking)\b`,
	)
	transferPatterns = compileAll(
		`\b(transfer|move)\b`,
	)
	sendPatterns = compileAll(
		`\b(send|pay|give)\b.*\b(to|money|\d+|dollar|buck)\b`,
		`\b(send|pay)\s+\w+\s*\$?\d+`,
		`\b(send|pay)\s+\$?\d+`,
	)
	goldPatterns = compileAll(
		`\b(exchange|convert|sell)\b.*\bgold\b`,
		`\bgold\b.*\b(exchange|convert|cash)\b`,
	)
	historyPatterns = compileAll(
		`\b(transactions?|history|activity)\b`,
		`\brecent\b`,
	)
	helpPatterns = compileAll(
		`\b(help|what can you|how do i|commands)\b`,
	)

	amountPatterns = compileAll(
		`\$\s*(\d+(?:\.\d{2})?)`,
		`(\d+(?:\.\d{2})?)\s*(?:dollars?|bucks?)`,
		`(\d+(?:\.\d{2})?)\s*(?:to|from)`,
	)
	digitsPattern = regexp.MustCompile(`\d+`)
	namePatterns  = compileAll(
		`\bto\s+([A-Z][a-z]+)`,
		`\bsend\s+(?:\w+\s+)*?([A-Z][a-z]+)`,
		`\bpay\s+([A-Z][a-z]+)`,
	)
)

var wordNumbers = map[string]int64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	"hundred": 100, "thousand": 1000,
}

var notNames = map[string]bool{
	"my": true, "the": true, "a": true, "an": true, "to": true, "from": true,
	"checking": true, "savings": true, "account": true,
}

// KeywordParser recognises commands with regular expressions. It never
// fails and is the fallback for model-backed parsers.
type KeywordParser struct{}

func NewKeywordParser() *KeywordParser {
	return &KeywordParser{}
}

func (p *KeywordParser) Parse(_ context.Context, transcript string) (Command, error) {
	cmd := parseKeywords(transcript)
	cmd.Parser = ParserKeywords
	return cmd, nil
}

func parseKeywords(transcript string) Command {
	original := strings.TrimSpace(transcript)
	text := strings.ToLower(original)

	if matchAny(balancePatterns, text) {
		accountType := AllAccounts
		switch {
		case strings.Contains(text, "saving"):
			accountType = "savings"
		case strings.Contains(text, "checking"), strings.Contains(text, "main"):
			accountType = "checking"
		case strings.Contains(text, "credit"), strings.Contains(text, "card"):
			accountType = "credit_card"
		case strings.Contains(text, "gold"), strings.Contains(text, "treasure"):
			accountType = "treasure_chest"
		}
		return Command{Action: ActionCheckBalance, Params: Params{AccountType: accountType}, Confidence: 0.85}
	}

	if matchAny(transferPatterns, text) {
		amount := extractAmount(text)
		from, to := "checking", "savings"
		if strings.Contains(text, "from saving") {
			from = "savings"
		}
		if strings.Contains(text, "from checking") || strings.Contains(text, "from main") {
			from = "checking"
		}
		if strings.Contains(text, "to saving") {
			to = "savings"
		}
		if strings.Contains(text, "to checking") || strings.Contains(text, "to main") {
			to = "checking"
		}
		if strings.Contains(text, "to credit") || strings.Contains(text, "pay off") || strings.Contains(text, "pay credit") {
			to = "credit_card"
		}
		if amount.IsPositive() {
			return Command{
				Action:     ActionTransfer,
				Params:     Params{FromAccount: from, ToAccount: to, Amount: amount},
				Confidence: 0.80,
			}
		}
	}

	if matchAny(sendPatterns, text) {
		amount := extractAmount(text)
		recipient := extractName(original)
		if amount.IsPositive() && recipient != "" {
			return Command{
				Action:     ActionSendMoney,
				Params:     Params{RecipientName: recipient, Amount: amount, FromAccount: "checking"},
				Confidence: 0.75,
			}
		}
	}

	if matchAny(goldPatterns, text) {
		bars := extractNumber(text)
		if bars == 0 {
			bars = 1
		}
		to := "checking"
		if strings.Contains(text, "saving") {
			to = "savings"
		}
		return Command{Action: ActionExchangeGold, Params: Params{Bars: bars, ToAccount: to}, Confidence: 0.80}
	}

	if matchAny(historyPatterns, text) {
		accountType := AllAccounts
		switch {
		case strings.Contains(text, "saving"):
			accountType = "savings"
		case strings.Contains(text, "checking"):
			accountType = "checking"
		}
		return Command{Action: ActionGetTransactions, Params: Params{AccountType: accountType, Limit: 5}, Confidence: 0.85}
	}

	if matchAny(helpPatterns, text) {
		return Command{Action: ActionHelp, Confidence: 0.90}
	}

	return Command{Action: ActionUnknown}
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// extractAmount finds a dollar amount written with digits ("$50", "50 bucks")
// or with words ("twenty five dollars", "one hundred").
func extractAmount(text string) decimal.Decimal {
	text = strings.ToLower(text)
	for _, re := range amountPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if amount, err := decimal.NewFromString(m[1]); err == nil {
				return amount
			}
		}
	}

	var total, current int64
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, "$,.")
		if val, ok := wordNumbers[word]; ok {
			if val >= 100 {
				if current == 0 {
					current = val
				} else {
					current *= val
				}
			} else {
				current += val
			}
			continue
		}
		if current > 0 && isCurrencyWord(word) {
			total = current
			current = 0
		}
	}
	if current > 0 {
		total = current
	}
	return decimal.NewFromInt(total)
}

func isCurrencyWord(word string) bool {
	switch word {
	case "dollar", "dollars", "buck", "bucks":
		return true
	}
	return false
}

// extractNumber returns the first count in text, as digits or as a word from
// one to ten, or zero.
func extractNumber(text string) int64 {
	if m := digitsPattern.FindString(text); m != "" {
		n, err := decimal.NewFromString(m)
		if err == nil {
			return n.IntPart()
		}
	}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if val, ok := wordNumbers[strings.Trim(word, ",.!?")]; ok && val <= 10 {
			return val
		}
	}
	return 0
}

// extractName looks for a capitalised name after "to", "send" or "pay".
// It needs the transcript in its original case.
func extractName(text string) string {
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(text); m != nil && !notNames[strings.ToLower(m[1])] {
			return m[1]
		}
	}

	lower := strings.ToLower(text)
	for _, keyword := range []string{"to ", "send ", "pay "} {
		idx := strings.Index(lower, keyword)
		if idx < 0 {
			continue
		}
		for _, word := range strings.Fields(text[idx+len(keyword):]) {
			first := []rune(word)[0]
			if !unicode.IsUpper(first) {
				continue
			}
			switch strings.ToLower(word) {
			case "dollars", "bucks", "checking", "savings":
				continue
			}
			return strings.Trim(word, ".,!?")
		}
	}
	return ""
}

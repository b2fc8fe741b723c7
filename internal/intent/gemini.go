package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// SystemPrompt instructs the model to answer with a single JSON command.
const SystemPrompt = `You are a banking voice command parser. Your job is to convert natural language banking requests into structured JSON commands.

Available commands:
1. check_balance - Check account balance
   - account_type: "checking", "savings", "credit_card", or "treasure_chest" (gold bars)
   - If user says "all" or doesn't specify, use "all"

2. transfer - Transfer money between user's own accounts
   - from_account: "checking" or "savings"
   - to_account: "checking", "savings", or "credit_card" (to pay off debt)
   - amount: number (in dollars)

3. send_money - Send money to another person
   - recipient_name: string (the person's name to search for)
   - amount: number (in dollars)
   - from_account: "checking" or "savings" (default: "checking")

4. exchange_gold - Convert gold bars to cash
   - bars: number of gold bars to exchange
   - to_account: "checking" or "savings" (default: "checking")

5. get_transactions - Get recent transaction history
   - account_type: "checking", "savings", "credit_card", "treasure_chest", or "all"
   - limit: number (default: 5)

6. help - User needs help or is confused
   - No parameters needed

7. unknown - Cannot understand the request
   - No parameters needed

RULES:
- Always respond with valid JSON only, no other text
- Parse amounts carefully: "fifty dollars" = 50, "one hundred" = 100, "5 bucks" = 5
- Account synonyms: "main account" = "checking", "emergency fund" = "savings", "gold" = "treasure_chest"
- If the user mentions a person's name for sending money, extract it as recipient_name
- Be flexible with phrasing but strict with JSON format

Response format:
{
  "action": "command_name",
  "parameters": { ... },
  "confidence": 0.0-1.0
}

Examples:
User: "What's my balance?"
{"action": "check_balance", "parameters": {"account_type": "all"}, "confidence": 0.95}

User: "Transfer 50 dollars from checking to savings"
{"action": "transfer", "parameters": {"from_account": "checking", "to_account": "savings", "amount": 50}, "confidence": 0.95}

User: "Send 20 bucks to John"
{"action": "send_money", "parameters": {"recipient_name": "John", "amount": 20, "from_account": "checking"}, "confidence": 0.90}

User: "Exchange 2 gold bars"
{"action": "exchange_gold", "parameters": {"bars": 2, "to_account": "checking"}, "confidence": 0.95}

User: "Show my recent transactions"
{"action": "get_transactions", "parameters": {"account_type": "all", "limit": 5}, "confidence": 0.92}

User: "Gibberish asdfasdf"
{"action": "unknown", "parameters": {}, "confidence": 0.1}`

// ContentGenerator is the part of the genai client the parser needs.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// GeminiParser asks a generative model to classify the transcript.
type GeminiParser struct {
	generator ContentGenerator
	model     string
}

func NewGeminiParser(generator ContentGenerator, model string) *GeminiParser {
	return &GeminiParser{generator: generator, model: model}
}

func (p *GeminiParser) Parse(ctx context.Context, transcript string) (Command, error) {
	prompt := fmt.Sprintf("User: \"%s\"\n\nRespond with JSON only:", transcript)
	resp, err := p.generator.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return Command{}, fmt.Errorf("gemini request failed: %w", err)
	}

	var cmd Command
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text())), &cmd); err != nil {
		return Command{}, fmt.Errorf("gemini returned invalid JSON: %w", err)
	}
	cmd.Parser = ParserGemini
	return cmd, nil
}

// stripCodeFence removes a markdown code block wrapped around the payload.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return ""
	}
	end := len(lines)
	if strings.HasPrefix(strings.TrimSpace(lines[end-1]), "```") {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}

// FallbackParser tries primary and falls back when it fails. The primary
// error is kept on the command.
type FallbackParser struct {
	primary  Parser
	fallback Parser
	logger   *zap.Logger
}

func NewFallbackParser(primary, fallback Parser, logger *zap.Logger) *FallbackParser {
	return &FallbackParser{primary: primary, fallback: fallback, logger: logger.Named("intent")}
}

func (p *FallbackParser) Parse(ctx context.Context, transcript string) (Command, error) {
	cmd, err := p.primary.Parse(ctx, transcript)
	if err == nil {
		return cmd, nil
	}
	p.logger.Warn("intent parser failed, falling back", zap.Error(err))

	cmd, fallbackErr := p.fallback.Parse(ctx, transcript)
	if fallbackErr != nil {
		return Command{}, errors.Join(err, fallbackErr)
	}
	cmd.ParserError = err.Error()
	return cmd, nil
}

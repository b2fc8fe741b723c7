package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.text, genai.RoleModel)}},
	}, nil
}

func TestGeminiParser_Parse(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		gen := &fakeGenerator{text: `{"action": "send_money", "parameters": {"recipient_name": "John", "amount": 20, "from_account": "checking"}, "confidence": 0.9}`}
		parser := NewGeminiParser(gen, "gemini-2.0-flash")

		cmd, err := parser.Parse(context.Background(), "Send 20 bucks to John")
		require.NoError(t, err)
		assert.Equal(t, "gemini-2.0-flash", gen.model)
		assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
		assert.Equal(t, ActionSendMoney, cmd.Action)
		assert.Equal(t, "John", cmd.Params.RecipientName)
		assert.Equal(t, "20", cmd.Params.Amount.String())
		assert.InDelta(t, 0.9, cmd.Confidence, 0.001)
		assert.Equal(t, ParserGemini, cmd.Parser)
	})

	t.Run("fenced json", func(t *testing.T) {
		gen := &fakeGenerator{text: "```json\n{\"action\": \"exchange_gold\", \"parameters\": {\"bars\": 2, \"to_account\": \"checking\"}, \"confidence\": 0.95}\n```"}
		cmd, err := NewGeminiParser(gen, "m").Parse(context.Background(), "Exchange 2 gold bars")
		require.NoError(t, err)
		assert.Equal(t, ActionExchangeGold, cmd.Action)
		assert.Equal(t, int64(2), cmd.Params.Bars)
	})

	t.Run("invalid json", func(t *testing.T) {
		gen := &fakeGenerator{text: "I think you want your balance"}
		_, err := NewGeminiParser(gen, "m").Parse(context.Background(), "balance")
		assert.Error(t, err)
	})

	t.Run("request error", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota exceeded")}
		_, err := NewGeminiParser(gen, "m").Parse(context.Background(), "balance")
		assert.ErrorContains(t, err, "quota exceeded")
	})
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("  {\"a\":1}  "))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}"))
}

func TestFallbackParser(t *testing.T) {
	logger := zap.NewNop()

	t.Run("primary succeeds", func(t *testing.T) {
		gen := &fakeGenerator{text: `{"action": "help", "parameters": {}, "confidence": 0.9}`}
		parser := NewFallbackParser(NewGeminiParser(gen, "m"), NewKeywordParser(), logger)

		cmd, err := parser.Parse(context.Background(), "what can you do")
		require.NoError(t, err)
		assert.Equal(t, ParserGemini, cmd.Parser)
		assert.Empty(t, cmd.ParserError)
	})

	t.Run("primary fails", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("network down")}
		parser := NewFallbackParser(NewGeminiParser(gen, "m"), NewKeywordParser(), logger)

		cmd, err := parser.Parse(context.Background(), "Transfer 50 dollars to savings")
		require.NoError(t, err)
		assert.Equal(t, ActionTransfer, cmd.Action)
		assert.Equal(t, ParserKeywords, cmd.Parser)
		assert.Contains(t, cmd.ParserError, "network down")
	})
}

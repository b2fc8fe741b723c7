package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/audit"
	"github.com/treasurehunt/backend/internal/database"
	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/services"
	"github.com/treasurehunt/backend/internal/store"
)

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *services.AccountService) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	st := store.New(db, store.SQLite)
	require.NoError(t, st.Migrate(context.Background()))

	logger := zap.NewNop()
	users := services.NewUserService(st, logger)
	accounts := services.NewAccountService(st, logger)
	hub := NewHub(accounts, users, logger)
	ledger := services.NewLedgerService(st, hub, audit.NewLogger(logger), logger)

	srv := httptest.NewServer(NewServer(hub, users, accounts, ledger, []string{"*"}, logger))
	t.Cleanup(func() {
		srv.Close()
		db.Close()
	})
	return srv, accounts
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

// expect reads until the named event arrives, skipping summary refreshes.
func expect(t *testing.T, conn *websocket.Conn, event string, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg inbound
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Event == event {
			if v != nil {
				require.NoError(t, json.Unmarshal(msg.Data, v))
			}
			return
		}
		require.NotEqual(t, EventError, msg.Event, "unexpected error: %s", msg.Data)
	}
}

func TestServer_GameSession(t *testing.T) {
	srv, accounts := newTestServer(t)
	alice := dial(t, srv)

	send(t, alice, "collectGold", nil)
	var failure struct {
		Message string `json:"message"`
	}
	expect(t, alice, EventError, &failure)
	assert.Equal(t, errNotJoined.Error(), failure.Message)

	send(t, alice, "join", "alice")
	var player struct {
		ID       string           `json:"id"`
		Name     string           `json:"name"`
		Gold     int64            `json:"gold"`
		Accounts []models.Account `json:"accounts"`
	}
	expect(t, alice, EventPlayerData, &player)
	assert.Equal(t, "alice", player.ID)
	assert.Equal(t, "Player alice", player.Name)
	assert.Len(t, player.Accounts, 4)

	send(t, alice, "collectGold", nil)
	var collected struct {
		GoldBars int64 `json:"goldBars"`
	}
	expect(t, alice, EventGoldCollected, &collected)
	assert.Equal(t, int64(1), collected.GoldBars)

	send(t, alice, "exchangeGold", map[string]any{"bars": 1, "toAccountType": "savings"})
	var exchanged struct {
		Summary      models.AccountSummary `json:"summary"`
		ExchangeRate int64                 `json:"exchangeRate"`
	}
	expect(t, alice, EventGoldExchanged, &exchanged)
	assert.Equal(t, int64(models.GoldBarRate), exchanged.ExchangeRate)
	assert.Equal(t, int64(0), exchanged.Summary.GoldBars)

	checking := player.Accounts[0]
	savings := player.Accounts[1]
	send(t, alice, "transfer", map[string]any{"fromAccountId": savings.ID, "toAccountId": checking.ID, "amount": 500})
	expect(t, alice, EventTransferComplete, nil)

	balance, err := accounts.GetBalance(context.Background(), checking.ID)
	require.NoError(t, err)
	assert.Equal(t, "1500", balance.String())

	send(t, alice, "fly", nil)
	expect(t, alice, EventError, &failure)
	assert.Equal(t, `unknown event "fly"`, failure.Message)
}

func TestServer_SendMoneyNotifiesRecipient(t *testing.T) {
	srv, _ := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	send(t, alice, "join", "alice")
	expect(t, alice, EventPlayerData, nil)
	send(t, bob, "join", map[string]string{"playerId": "bob"})
	var bobData struct {
		Accounts []models.Account `json:"accounts"`
	}
	expect(t, bob, EventPlayerData, &bobData)

	send(t, alice, "sendMoney", map[string]any{"toUserId": "bob", "amount": "100"})
	var sent struct {
		Summary   models.AccountSummary `json:"summary"`
		Recipient models.User           `json:"recipient"`
	}
	expect(t, alice, EventMoneySent, &sent)
	assert.Equal(t, "bob", sent.Recipient.ID)
	assert.Equal(t, "1400", sent.Summary.TotalCash.String())

	var received struct {
		Summary models.AccountSummary `json:"summary"`
		Sender  models.User           `json:"sender"`
	}
	expect(t, bob, EventMoneyReceived, &received)
	assert.Equal(t, "alice", received.Sender.ID)
	assert.Equal(t, "1600", received.Summary.TotalCash.String())

	// Alice cannot move Bob's money.
	send(t, alice, "transfer", map[string]any{"fromAccountId": bobData.Accounts[0].ID, "toAccountId": bobData.Accounts[1].ID, "amount": 1})
	var failure struct {
		Message string `json:"message"`
	}
	expect(t, alice, EventError, &failure)
	assert.Contains(t, failure.Message, "does not belong to you")
}

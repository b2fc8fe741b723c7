// Package realtime pushes ledger activity to connected game and wallet
// clients over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/events"
	"github.com/treasurehunt/backend/internal/models"
)

// Outbound event names.
const (
	EventPlayerData       = "playerData"
	EventGoldCollected    = "goldCollected"
	EventGoldExchanged    = "goldExchanged"
	EventTransferComplete = "transferComplete"
	EventAccountSummary   = "accountSummary"
	EventMoneySent        = "moneySent"
	EventMoneyReceived    = "moneyReceived"
	EventError            = "error"
)

type SummaryReader interface {
	GetSummary(ctx context.Context, userID string) (*models.AccountSummary, error)
}

type UserReader interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

type message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub tracks the live connections of every joined user. A user may be
// connected from several clients at once, for example the game and a wallet.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*Client]struct{}
	summaries SummaryReader
	users     UserReader
	logger    *zap.Logger
}

func NewHub(summaries SummaryReader, users UserReader, logger *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		summaries: summaries,
		users:     users,
		logger:    logger.Named("realtime"),
	}
}

// Register binds c to userID, releasing any user it was bound to before.
func (h *Hub) Register(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev := c.UserID(); prev != "" {
		h.remove(prev, c)
	}
	c.setUserID(userID)
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][c] = struct{}{}
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if userID := c.UserID(); userID != "" {
		h.remove(userID, c)
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) remove(userID string, c *Client) {
	set := h.clients[userID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// SendToUser delivers an event to every connection of userID and reports how
// many accepted it.
func (h *Hub) SendToUser(userID, event string, data any) int {
	payload, err := json.Marshal(message{Event: event, Data: data})
	if err != nil {
		h.logger.Error("encode realtime message", zap.String("event", event), zap.Error(err))
		return 0
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.enqueue(payload) {
			delivered++
		}
	}
	return delivered
}

// Publish forwards a committed ledger event to the user's connections. The
// recipient of a payment gets moneyReceived; every other event refreshes the
// account summary.
func (h *Hub) Publish(ctx context.Context, ev events.Event) error {
	if h.Connections(ev.UserID) == 0 {
		return nil
	}

	summary, err := h.summaries.GetSummary(ctx, ev.UserID)
	if err != nil {
		return err
	}

	if ev.Type == events.MoneyReceived {
		sender, err := h.users.Get(ctx, ev.CounterpartyID)
		if err != nil {
			return err
		}
		h.SendToUser(ev.UserID, EventMoneyReceived, map[string]any{
			"transaction": ev.Transaction,
			"summary":     summary,
			"sender":      sender,
		})
		return nil
	}

	h.SendToUser(ev.UserID, EventAccountSummary, summary)
	return nil
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/services"
)

const actionTimeout = 10 * time.Second

var errNotJoined = errors.New("join before sending game actions")

// Server upgrades HTTP requests to WebSocket connections and runs the game
// protocol on them. Every action after join acts as the joined player.
type Server struct {
	hub      *Hub
	users    *services.UserService
	accounts *services.AccountService
	ledger   *services.LedgerService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewServer accepts connections from allowedOrigins; "*" allows any origin.
func NewServer(hub *Hub, users *services.UserService, accounts *services.AccountService, ledger *services.LedgerService,
	allowedOrigins []string, logger *zap.Logger) *Server {
	return &Server{
		hub:      hub,
		users:    users,
		accounts: accounts,
		ledger:   ledger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
		logger: logger.Named("realtime"),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(s.hub, conn)
	go c.writePump()
	c.readPump(func(env Envelope) {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := s.dispatch(ctx, c, env); err != nil {
			c.replyError(err.Error())
		}
	})
}

type exchangeGoldRequest struct {
	Bars          int64              `json:"bars"`
	ToAccountType models.AccountType `json:"toAccountType"`
}

type transferRequest struct {
	FromAccountID int64           `json:"fromAccountId"`
	ToAccountID   int64           `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}

type sendMoneyRequest struct {
	ToUserID        string             `json:"toUserId"`
	Amount          decimal.Decimal    `json:"amount"`
	FromAccountType models.AccountType `json:"fromAccountType"`
	ToAccountType   models.AccountType `json:"toAccountType"`
	Description     string             `json:"description"`
}

func (s *Server) dispatch(ctx context.Context, c *Client, env Envelope) error {
	if env.Event == "join" {
		return s.join(ctx, c, env.Data)
	}

	userID := c.UserID()
	if userID == "" {
		return errNotJoined
	}

	switch env.Event {
	case "getUser":
		user, err := s.users.GetWithAccounts(ctx, userID)
		if err != nil {
			return err
		}
		c.reply(EventPlayerData, playerData(user))

	case "collectGold":
		txn, err := s.ledger.CollectGoldBar(ctx, userID)
		if err != nil {
			return err
		}
		chest, err := s.accounts.GetByUserAndType(ctx, userID, models.AccountTypeTreasureChest)
		if err != nil {
			return err
		}
		c.reply(EventGoldCollected, map[string]any{
			"transaction": txn,
			"goldBars":    chest.Balance.IntPart(),
		})

	case "exchangeGold":
		req := exchangeGoldRequest{Bars: 1, ToAccountType: models.AccountTypeChecking}
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		txn, err := s.ledger.ExchangeGold(ctx, userID, req.Bars, req.ToAccountType)
		if err != nil {
			return err
		}
		summary, err := s.accounts.GetSummary(ctx, userID)
		if err != nil {
			return err
		}
		c.reply(EventGoldExchanged, map[string]any{
			"transaction":  txn,
			"summary":      summary,
			"exchangeRate": s.ledger.GoldBarValue(),
		})

	case "transfer":
		var req transferRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		from, err := s.accounts.Get(ctx, req.FromAccountID)
		if err != nil {
			return err
		}
		if from.UserID != userID {
			return fmt.Errorf("account %d does not belong to you", req.FromAccountID)
		}
		txn, err := s.ledger.Transfer(ctx, req.FromAccountID, req.ToAccountID, req.Amount, req.Description)
		if err != nil {
			return err
		}
		summary, err := s.accounts.GetSummary(ctx, userID)
		if err != nil {
			return err
		}
		c.reply(EventTransferComplete, map[string]any{
			"transaction": txn,
			"summary":     summary,
		})

	case "getAccountSummary":
		summary, err := s.accounts.GetSummary(ctx, userID)
		if err != nil {
			return err
		}
		c.reply(EventAccountSummary, summary)

	case "sendMoney":
		var req sendMoneyRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		txn, err := s.ledger.SendMoney(ctx, services.SendMoneyParams{
			FromUserID:      userID,
			ToUserID:        req.ToUserID,
			Amount:          req.Amount,
			FromAccountType: req.FromAccountType,
			ToAccountType:   req.ToAccountType,
			Description:     req.Description,
		})
		if err != nil {
			return err
		}
		summary, err := s.accounts.GetSummary(ctx, userID)
		if err != nil {
			return err
		}
		recipient, err := s.users.Get(ctx, req.ToUserID)
		if err != nil {
			return err
		}
		c.reply(EventMoneySent, map[string]any{
			"transaction": txn,
			"summary":     summary,
			"recipient":   recipient,
		})

	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
	return nil
}

// join accepts the player id either as a bare JSON string or as
// {"playerId": "..."}.
func (s *Server) join(ctx context.Context, c *Client, data json.RawMessage) error {
	var playerID string
	if err := json.Unmarshal(data, &playerID); err != nil {
		var req struct {
			PlayerID string `json:"playerId"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return errors.New("join requires a player id")
		}
		playerID = req.PlayerID
	}
	if playerID == "" {
		return errors.New("join requires a player id")
	}

	user, created, err := s.users.GetOrCreate(ctx, playerID, "")
	if err != nil {
		return err
	}
	s.hub.Register(user.ID, c)
	s.logger.Info("player joined",
		zap.String("user_id", user.ID),
		zap.Bool("created", created),
		zap.Int("connections", s.hub.Connections(user.ID)))

	c.reply(EventPlayerData, playerData(user))
	return nil
}

func playerData(user *models.UserWithAccounts) map[string]any {
	summary := models.Summarize(user.Accounts)
	return map[string]any{
		"id":       user.ID,
		"name":     user.Name,
		"gold":     summary.GoldBars,
		"accounts": summary.Accounts,
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid payload: %v", err)
	}
	return nil
}

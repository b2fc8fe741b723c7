package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/treasurehunt/backend/internal/services"
)

// TokenIssuer signs session tokens for players.
type TokenIssuer interface {
	IssueToken(userID string) (string, time.Time, error)
}

type SessionHandler struct {
	users     *services.UserService
	ledger    *services.LedgerService
	tokens    TokenIssuer
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewSessionHandler(users *services.UserService, ledger *services.LedgerService, tokens TokenIssuer, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		users:     users,
		ledger:    ledger,
		tokens:    tokens,
		validator: services.NewValidationHelper(),
		logger:    logger.Named("session"),
	}
}

// StartSession signs a player in, creating the player on first visit
// @Summary Start a game session
// @Description Get or create the player and return a bearer token for the protected API
// @Tags Session
// @Accept json
// @Produce json
// @Param request body object{playerId=string,name=string} true "Player identity"
// @Success 200 {object} object{success=bool,token=string,expiresAt=string,created=bool,user=models.UserWithAccounts}
// @Failure 400 {object} services.ErrorResponse
// @Router /session [post]
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId" validate:"required,max=128"`
		Name     string `json:"name" validate:"max=64"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	user, created, err := h.users.GetOrCreate(r.Context(), req.PlayerID, req.Name)
	if err != nil {
		services.SendAppError(w, err)
		return
	}

	token, expiresAt, err := h.tokens.IssueToken(user.ID)
	if err != nil {
		h.logger.Error("issue token", zap.String("user_id", user.ID), zap.Error(err))
		services.SendErrorResponse(w, "Could not start session", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     token,
		"expiresAt": expiresAt,
		"created":   created,
		"user":      user,
	})
}

// GoldRate returns the cash value of one gold bar
// @Summary Gold bar exchange rate
// @Tags Session
// @Produce json
// @Success 200 {object} object{success=bool,rate=int64}
// @Router /gold-rate [get]
func (h *SessionHandler) GoldRate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"rate":    h.ledger.GoldBarValue(),
	})
}

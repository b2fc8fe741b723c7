package handlers

import (
	"net/http"

	"github.com/treasurehunt/backend/internal/services"
)

type AccountHandler struct {
	accounts *services.AccountService
	history  *services.HistoryService
}

func NewAccountHandler(accounts *services.AccountService, history *services.HistoryService) *AccountHandler {
	return &AccountHandler{accounts: accounts, history: history}
}

// GetAccount returns an account owned by the signed-in player
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account id"
// @Success 200 {object} object{success=bool,account=models.Account}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	if !requireOwner(w, r, account.UserID) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "account": account})
}

// GetTransactions returns the history of one account, newest first
// @Summary Account transaction history
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account id"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} object{success=bool,transactions=[]models.Transaction}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id}/transactions [get]
func (h *AccountHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	if !requireOwner(w, r, account.UserID) {
		return
	}
	limit, ok := limitQuery(w, r)
	if !ok {
		return
	}
	txns, err := h.history.ForAccount(r.Context(), id, limit)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transactions": txns})
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/treasurehunt/backend/internal/models"
	"github.com/treasurehunt/backend/internal/services"
)

type UserHandler struct {
	users     *services.UserService
	accounts  *services.AccountService
	history   *services.HistoryService
	validator *services.ValidationHelper
}

func NewUserHandler(users *services.UserService, accounts *services.AccountService, history *services.HistoryService) *UserHandler {
	return &UserHandler{
		users:     users,
		accounts:  accounts,
		history:   history,
		validator: services.NewValidationHelper(),
	}
}

// ListUsers searches players by name
// @Summary List players
// @Description Case-insensitive name search; an empty search lists every player
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name fragment"
// @Success 200 {object} object{success=bool,users=[]models.User}
// @Router /users [get]
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
}

// CreateUser registers a player with the default accounts
// @Summary Create player
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{id=string,name=string} true "New player"
// @Success 201 {object} object{success=bool,user=models.UserWithAccounts}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id" validate:"required,max=128"`
		Name string `json:"name" validate:"max=64"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	user, err := h.users.Create(r.Context(), req.ID, req.Name)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

// GetUser returns a player and their accounts
// @Summary Get player
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "Player id"
// @Success 200 {object} object{success=bool,user=models.User}
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if userID == id {
		user, err := h.users.GetWithAccounts(r.Context(), id)
		if err != nil {
			services.SendAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
		return
	}

	// Other players only see the public profile.
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

// RenameUser changes the display name of the signed-in player
// @Summary Rename player
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Player id"
// @Param request body object{name=string} true "New name"
// @Success 200 {object} object{success=bool,user=models.User}
// @Failure 403 {object} services.ErrorResponse
// @Router /users/{id} [put]
func (h *UserHandler) RenameUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireOwner(w, r, id) {
		return
	}

	var req struct {
		Name string `json:"name" validate:"required,max=64"`
	}
	if !decodeJSON(w, r, h.validator, &req) {
		return
	}

	user, err := h.users.Rename(r.Context(), id, req.Name)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

// DeleteUser removes the signed-in player and their accounts
// @Summary Delete player
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "Player id"
// @Success 200 {object} object{success=bool}
// @Failure 403 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{id} [delete]
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireOwner(w, r, id) {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// GetAccounts lists the player's accounts
// @Summary List player accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Player id"
// @Success 200 {object} object{success=bool,accounts=[]models.Account}
// @Failure 403 {object} services.ErrorResponse
// @Router /users/{id}/accounts [get]
func (h *UserHandler) GetAccounts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireOwner(w, r, id) {
		return
	}
	accounts, err := h.accounts.GetByUser(r.Context(), id)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "accounts": accounts})
}

// GetAccountByType returns one of the player's accounts
// @Summary Get player account by type
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Player id"
// @Param type path string true "checking, savings, treasure_chest or credit_card"
// @Success 200 {object} object{success=bool,account=models.Account}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /users/{id}/accounts/{type} [get]
func (h *UserHandler) GetAccountByType(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireOwner(w, r, id) {
		return
	}
	accountType, ok := models.ParseAccountType(chi.URLParam(r, "type"))
	if !ok {
		services.SendErrorResponse(w, "Invalid account type", http.StatusBadRequest, nil)
		return
	}
	account, err := h.accounts.GetByUserAndType(r.Context(), id, accountType)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "account": account})
}

// GetSummary returns the player's accounts with cash and gold totals
// @Summary Account summary
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path string true "Player id"
// @Success 200 {object} object{success=bool,summary=models.AccountSummary}
// @Failure 403 {object} services.ErrorResponse
// @Router /users/{id}/summary [get]
func (h *UserHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireOwner(w, r, id) {
		return
	}
	summary, err := h.accounts.GetSummary(r.Context(), id)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": summary})
}

// GetTransactions returns the player's history, newest first
// @Summary Player transaction history
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Player id"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} object{success=bool,transactions=[]models.Transaction}
// @Failure 403 {object} services.ErrorResponse
// @Router /users/{id}/transactions [get]
func (h *UserHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireOwner(w, r, id) {
		return
	}
	limit, ok := limitQuery(w, r)
	if !ok {
		return
	}
	txns, err := h.history.ForUser(r.Context(), id, limit)
	if err != nil {
		services.SendAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "transactions": txns})
}
